package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/models"
	"github.com/bankwatch/bankwatch/internal/store"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored transaction totals",
	Long: `Show the total number of stored transactions and the most
recently processed records.

Example:
  bankwatch stats --db ./data/bankwatch.db --limit 10`,
	RunE: runStats,
}

var statsFlags struct {
	Limit int
}

func init() {
	statsCmd.Flags().IntVar(&statsFlags.Limit, "limit", 5, "How many recent transactions to show")

	RootCmd.AddCommand(statsCmd)
}

type statsOutput struct {
	Total  int64                       `json:"total"`
	Latest []*models.TransactionRecord `json:"latest"`
}

func runStats(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(logging.WithOutput(io.Discard))
	sqliteStore, err := store.NewSQLiteStore(globalFlags.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open transaction store: %w", err)
	}
	defer sqliteStore.Close()

	total, err := sqliteStore.Count()
	if err != nil {
		return fmt.Errorf("failed to read store totals: %w", err)
	}
	latest, err := sqliteStore.Latest(statsFlags.Limit)
	if err != nil {
		return fmt.Errorf("failed to read latest transactions: %w", err)
	}

	if globalFlags.JSON {
		out, err := json.MarshalIndent(statsOutput{Total: total, Latest: latest}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Total transactions: %d\n", total)
	if len(latest) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Most recent:")
	}
	for _, rec := range latest {
		direction := "+"
		amount := rec.CreditAmount
		if rec.IsDebit() {
			direction = "-"
			amount = rec.DebitAmount
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s%s %s  %s\n",
			rec.TranDate, direction, amount.String(), rec.CurrCode, rec.Remark)
	}

	return nil
}
