package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vrsandeep/vmfa-addons/internal/addons"
	"github.com/vrsandeep/vmfa-addons/internal/core"
)

// cliSession identifies command-line requests to the token issuer.
const cliSession = "vmfa-cli"

var actionVerbs = []struct {
	verb  string
	short string
}{
	{addons.ActionInstall, "Install the latest release of an add-on"},
	{addons.ActionUpdate, "Reinstall an add-on from its latest release"},
	{addons.ActionActivate, "Activate an installed add-on"},
	{addons.ActionDeactivate, "Deactivate an add-on"},
	{addons.ActionDelete, "Deactivate and remove an add-on"},
}

// errActionFailed makes the process exit non-zero after the error notice
// has been printed.
var errActionFailed = errors.New("action failed")

// dispatch runs one action as a trusted local administrator and prints the
// resulting notice.
func dispatch(cmd *cobra.Command, app *core.App, action, slug string) error {
	res, err := app.Dispatcher().Dispatch(cmd.Context(), addons.Request{
		Action:  action,
		Slug:    slug,
		Session: cliSession,
		Token:   app.Tokens().Issue(cliSession, addons.TokenAction),
		Admin:   true,
		Actor:   "cli",
	})
	if err != nil {
		return err
	}
	if res.Notice.Type == addons.NoticeError {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", res.Notice.Message)
		return errActionFailed
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Notice.Message)
	return nil
}

func newActionCmd(load appLoader, action struct{ verb, short string }) *cobra.Command {
	return &cobra.Command{
		Use:           action.verb + " <slug>",
		Short:         action.short,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *core.App) error {
				return dispatch(cmd, app, action.verb, args[0])
			})
		},
	}
}

func newCheckUpdatesCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "check-updates",
		Short: "Forget cached release tags and report pending updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *core.App) error {
				if err := dispatch(cmd, app, addons.ActionCheckUpdates, ""); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d update(s) available.\n", app.Resolver().UpdateCount(cmd.Context()))
				return nil
			})
		},
	}
}
