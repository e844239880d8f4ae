// Command vmfa-cli manages add-ons from the command line against the same
// database and plugin directory as the server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vrsandeep/vmfa-addons/internal/core"
)

// appLoader opens the application and returns the function releasing it.
type appLoader func() (*core.App, func(), error)

func loadApp() (*core.App, func(), error) {
	app, err := core.New()
	if err != nil {
		return nil, nil, err
	}
	return app, app.Close, nil
}

func main() {
	if err := newRootCmd(loadApp).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(load appLoader) *cobra.Command {
	root := &cobra.Command{
		Use:   "vmfa-cli",
		Short: "Manage Virtual Media Folders add-ons",
		Long: `vmfa-cli lists, installs, updates, activates, deactivates and deletes
the add-ons of the Virtual Media Folders catalog.

It reads config.yml, .env and VMFA_ environment variables from the current
directory, exactly like the server.`,
		Version:       core.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newListCmd(load),
		newDetailsCmd(load),
		newCheckUpdatesCmd(load),
		newUsersCmd(load),
		newJobsCmd(load),
	)
	for _, verb := range actionVerbs {
		root.AddCommand(newActionCmd(load, verb))
	}
	return root
}

// withApp opens the application for the duration of fn.
func withApp(load appLoader, fn func(app *core.App) error) error {
	app, release, err := load()
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer release()
	return fn(app)
}
