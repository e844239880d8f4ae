package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vrsandeep/vmfa-addons/internal/auth"
	"github.com/vrsandeep/vmfa-addons/internal/core"
	"github.com/vrsandeep/vmfa-addons/internal/models"
)

func newUsersCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts that can sign in to the admin page",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *core.App) error {
				users, err := app.Store().ListUsers()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tUSERNAME\tROLE\tCREATED")
				for _, u := range users {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Role, u.CreatedAt.Format("2006-01-02"))
				}
				return tw.Flush()
			})
		},
	}

	var role string
	add := &cobra.Command{
		Use:   "add <username> <password>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != models.RoleAdmin && role != models.RoleUser {
				return fmt.Errorf("role must be %q or %q", models.RoleAdmin, models.RoleUser)
			}
			return withApp(load, func(app *core.App) error {
				hash, err := auth.HashPassword(args[1])
				if err != nil {
					return err
				}
				user, err := app.Store().CreateUser(args[0], hash, role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %s (id %d).\n", user.Role, user.Username, user.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&role, "role", models.RoleAdmin, "Account role: admin or user")

	passwd := &cobra.Command{
		Use:   "passwd <username> <password>",
		Short: "Change the password of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *core.App) error {
				user, err := app.Store().GetUserByUsername(args[0])
				if err != nil {
					return fmt.Errorf("user %s not found", args[0])
				}
				hash, err := auth.HashPassword(args[1])
				if err != nil {
					return err
				}
				if err := app.Store().UpdateUserPassword(user.ID, hash); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password of %s updated.\n", user.Username)
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete an account and its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *core.App) error {
				user, err := app.Store().GetUserByUsername(args[0])
				if err != nil {
					return fmt.Errorf("user %s not found", args[0])
				}
				if err := app.Store().DeleteUser(user.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", user.Username)
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, passwd, remove)
	return cmd
}
