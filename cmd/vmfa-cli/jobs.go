package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vrsandeep/vmfa-addons/internal/core"
	"github.com/vrsandeep/vmfa-addons/internal/jobs"
)

func newJobsCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run background jobs on demand",
	}

	run := &cobra.Command{
		Use:       "run <job-id>",
		Short:     "Run a job and wait for it to finish",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.JobAddonReleaseRefresh, jobs.JobTransientPurge},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *core.App) error {
				jm := app.JobManager()
				if err := jm.RunJob(args[0], app); err != nil {
					return err
				}
				jm.Wait()
				for _, st := range jm.GetStatus() {
					if st.ID != args[0] {
						continue
					}
					if st.Status == jobs.StatusFailed {
						return fmt.Errorf("%s failed: %s", st.ID, st.Message)
					}
					fmt.Fprintln(cmd.OutOrStdout(), st.Message)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(run)
	return cmd
}
