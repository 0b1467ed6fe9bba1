package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"telemetry-broker/internal/model"
	"telemetry-broker/internal/store"
)

func SourcesCmd() *cobra.Command {
	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage registered data sources",
	}

	addCmd := &cobra.Command{
		Use:   "add [id]",
		Short: "Register a data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			disabled, _ := cmd.Flags().GetBool("disabled")
			src := model.Source{ID: args[0], Active: !disabled}
			if cmd.Flags().Changed("source-config") {
				cfg, _ := cmd.Flags().GetString("source-config")
				src.Config = &cfg
			}

			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.AddSource(cmd.Context(), src); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Registered source %s (%s)\n", src.ID, activeLabel(src.Active))
			return nil
		},
	}
	addCmd.Flags().Bool("disabled", false, "register the source as disabled")
	addCmd.Flags().String("source-config", "", "opaque configuration stored with the source")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered data sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			sources, err := st.ListSources(cmd.Context())
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sources registered.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tCONFIG")
			for _, src := range sources {
				cfg := "-"
				if src.Config != nil {
					cfg = *src.Config
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", src.ID, activeLabel(src.Active), cfg)
			}
			return w.Flush()
		},
	}

	sourcesCmd.AddCommand(addCmd, listCmd,
		setActiveCmd("enable", "Allow a source to submit data", true),
		setActiveCmd("disable", "Reject further submissions from a source", false),
		&cobra.Command{
			Use:   "delete [id]",
			Short: "Remove a source together with its queued records",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := openStore(cmd)
				if err != nil {
					return err
				}
				defer st.Close()

				if err := st.DeleteSource(cmd.Context(), args[0]); err != nil {
					return notFound(err, args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted source %s\n", args[0])
				return nil
			},
		},
	)
	return sourcesCmd
}

func setActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SetSourceActive(cmd.Context(), args[0], active); err != nil {
				return notFound(err, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Source %s is now %s\n", args[0], activeLabel(active))
			return nil
		},
	}
}

func activeLabel(active bool) string {
	if active {
		return color.New(color.FgGreen).Sprint("active")
	}
	return color.New(color.FgRed).Sprint("disabled")
}

func notFound(err error, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("source %s is not registered", id)
	}
	return err
}
