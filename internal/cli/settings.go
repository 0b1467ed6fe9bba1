package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func SettingsCmd() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change broker settings",
	}

	settingsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print every setting",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := openStore(cmd)
				if err != nil {
					return err
				}
				defer st.Close()

				settings, err := st.AllSettings(cmd.Context())
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(settings))
				for k := range settings {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, settings[k])
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get [key]",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := openStore(cmd)
				if err != nil {
					return err
				}
				defer st.Close()

				value, ok, err := st.GetSetting(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("setting %s does not exist", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set [key] [value]",
			Short: "Create or replace a setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := openStore(cmd)
				if err != nil {
					return err
				}
				defer st.Close()

				if err := st.SetSetting(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s=%s\n", args[0], args[1])
				return nil
			},
		},
	)
	return settingsCmd
}
