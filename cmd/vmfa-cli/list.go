package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vrsandeep/vmfa-addons/internal/addons"
	"github.com/vrsandeep/vmfa-addons/internal/core"
)

type listItem struct {
	Slug            string `json:"slug" yaml:"slug"`
	Title           string `json:"title" yaml:"title"`
	Status          string `json:"status" yaml:"status"`
	Installed       string `json:"installed_version,omitempty" yaml:"installed_version,omitempty"`
	Latest          string `json:"latest_version,omitempty" yaml:"latest_version,omitempty"`
	UpdateAvailable bool   `json:"update_available" yaml:"update_available"`
}

func newListCmd(load appLoader) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog add-ons and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *core.App) error {
				rows := app.Resolver().Overview(cmd.Context())
				items := make([]listItem, 0, len(rows))
				for _, row := range rows {
					items = append(items, listItem{
						Slug:            row.Entry.Slug,
						Title:           row.Entry.Title,
						Status:          row.Status.Label,
						Installed:       row.Status.Version,
						Latest:          row.LatestVersion,
						UpdateAvailable: row.UpdateAvailable,
					})
				}
				return writeList(cmd.OutOrStdout(), format, items)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func writeList(w io.Writer, format string, items []listItem) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(items)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SLUG\tTITLE\tSTATUS\tINSTALLED\tLATEST\tUPDATE")
		for _, it := range items {
			update := ""
			if it.UpdateAvailable {
				update = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", it.Slug, it.Title, it.Status, dash(it.Installed), dash(it.Latest), update)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newDetailsCmd(load appLoader) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "details <slug>",
		Short: "Show the plugin information of an add-on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *core.App) error {
				details, err := app.Resolver().Details(cmd.Context(), addons.SanitizeKey(args[0]))
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				switch format {
				case "json":
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					return enc.Encode(details)
				case "yaml":
					return yaml.NewEncoder(w).Encode(details)
				}
				fmt.Fprintf(w, "%s\n", details.Name)
				fmt.Fprintf(w, "  Version:           %s\n", dash(details.Version))
				fmt.Fprintf(w, "  Requires at least: %s\n", dash(details.Requires))
				fmt.Fprintf(w, "  Tested up to:      %s\n", dash(details.Tested))
				fmt.Fprintf(w, "  Requires PHP:      %s\n", dash(details.RequiresPHP))
				fmt.Fprintf(w, "  Homepage:          %s\n", details.Homepage)
				for _, s := range details.Sections {
					fmt.Fprintf(w, "  Section:           %s\n", s.Key)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "text", "Output format: text, json or yaml")
	return cmd
}
