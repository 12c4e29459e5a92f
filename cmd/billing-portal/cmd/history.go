package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/db"
)

var (
	historyInvoiceID string
	historyLimit     int
)

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Display invoice export history",
	Long: `Display statistics and the most recent invoice exports recorded in
HISTORY_DB_PATH by the portal and the export command.

Shows:
- Total number of exports and distinct invoices
- Exports per source (portal, cli)
- Last export timestamp
- The latest exports, newest first

Example:
  billing-portal history
  billing-portal history --invoice <id> --limit 5`,
	Run: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyInvoiceID, "invoice", "", "Only show exports of this invoice ID")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of exports to list")
}

func runHistory(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig([]string{"history", "dbPath"})
	exitOnError(err, "failed to load configuration")

	slog.Debug("Opening database", "path", cfg.History.DBPath)
	conn, err := db.Open(cfg.History.DBPath)
	exitOnError(err, "failed to open database")
	defer conn.Close()

	history := db.NewExportHistory(conn)
	ctx := cmd.Context()

	stats, err := history.GetStats(ctx)
	exitOnError(err, "failed to get statistics")

	records, err := history.Recent(ctx, historyInvoiceID, historyLimit)
	exitOnError(err, "failed to get export records")

	fmt.Println("\n=== Export Statistics ===")
	fmt.Printf("Database:          %s\n", conn.Path())
	fmt.Printf("Total exports:     %d\n", stats.TotalExports)
	fmt.Printf("Distinct invoices: %d\n", stats.DistinctInvoices)
	fmt.Printf("From portal:       %d\n", stats.FromPortal)
	fmt.Printf("From cli:          %d\n", stats.FromCLI)

	if stats.LastExport.Valid {
		fmt.Printf("Last export:       %s\n", stats.LastExport.String)
	} else {
		fmt.Printf("Last export:       (never)\n")
	}

	if len(records) > 0 {
		fmt.Println("\n=== Recent Exports ===")
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "EXPORTED AT\tINVOICE\tUSER\tSOURCE\tBYTES")
		for _, r := range records {
			number := r.InvoiceNumber
			if number == "" {
				number = r.InvoiceID
			}
			user := r.UserEmail
			if user == "" {
				user = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
				r.ExportedAt.Local().Format("2006-01-02 15:04:05"), number, user, r.Source, r.Bytes)
		}
		tw.Flush()
	}

	fmt.Println()
}
