package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"telemetry-broker/internal/model"
)

func RecordsCmd() *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect the queued telemetry records",
	}

	unsentCmd := &cobra.Command{
		Use:   "unsent",
		Short: "List the newest unsent records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID, _ := cmd.Flags().GetString("source")
			limit, _ := cmd.Flags().GetInt("limit")

			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			var records []model.Record
			if sourceID != "" {
				records, err = st.UnsentBySource(cmd.Context(), sourceID, limit)
			} else {
				records, err = st.LastUnsent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tBYTES")
			for _, r := range records {
				fmt.Fprintf(w, "%d\t%s\t%d\n", r.ID, r.SourceID, len(r.Data))
			}
			return w.Flush()
		},
	}
	unsentCmd.Flags().String("source", "", "only records of this source")
	unsentCmd.Flags().Int("limit", 20, "maximum number of records")

	recordsCmd.AddCommand(unsentCmd,
		&cobra.Command{
			Use:   "count",
			Short: "Print the number of queued records",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := openStore(cmd)
				if err != nil {
					return err
				}
				defer st.Close()

				n, err := st.CountRecords(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete [id...]",
			Short: "Delete records by id",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ids := make([]int64, 0, len(args))
				for _, arg := range args {
					id, err := strconv.ParseInt(arg, 10, 64)
					if err != nil {
						return fmt.Errorf("invalid record id %q", arg)
					}
					ids = append(ids, id)
				}

				st, err := openStore(cmd)
				if err != nil {
					return err
				}
				defer st.Close()

				if err := st.DeleteRecords(cmd.Context(), ids); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d record(s)\n", len(ids))
				return nil
			},
		},
		&cobra.Command{
			Use:   "purge-sent",
			Short: "Delete every record already forwarded to the hub",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := openStore(cmd)
				if err != nil {
					return err
				}
				defer st.Close()

				n, err := st.DeleteSent(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Purged %d sent record(s)\n", n)
				return nil
			},
		},
	)
	return recordsCmd
}
