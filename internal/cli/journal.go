package cli

import (
	"github.com/spf13/cobra"
)

// NewJournalCmd inspects writes made against placeholder attempts.
func NewJournalCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the suspect-write journal",
	}

	var limit int
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List writes that were never matched to a backend attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := engineFor(cmd, *configPath)
			if err != nil {
				return err
			}
			defer eng.Close()

			entries, err := eng.journal.Pending(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		},
	}
	pending.Flags().IntVar(&limit, "limit", 50, "maximum entries to list, 0 for all")
	cmd.AddCommand(pending)
	return cmd
}
