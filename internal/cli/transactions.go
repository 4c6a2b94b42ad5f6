package cli

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pendergraft/verichain/pkg/client"
)

func createTransactionsCmd() *cobra.Command {
	var q client.TransactionQuery

	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txs"},
		Short:   "List issue and revoke transactions",
		Long: `List the issue and revoke transactions submitted through the server.

Newest first. Use --cursor with the value printed at the bottom of a page
to fetch the next one.

EXAMPLES:
  verichain transactions
  verichain transactions --kind revoke --status failed
  verichain transactions --student 0xAb58... --limit 50
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().ListTransactions(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			if jsonOutput {
				return printJSON(resp)
			}

			if len(resp.Data) == 0 {
				fmt.Println("No transactions found")
				return nil
			}

			colorize := colorEnabled(os.Stdout)
			rows := make([]table.Row, 0, len(resp.Data))
			for _, tx := range resp.Data {
				rows = append(rows, table.Row{
					tx.CreatedAt.Local().Format("2006-01-02 15:04"),
					tx.Kind,
					paint(tx.Status, statusColor(tx.Status), colorize),
					truncateAddress(tx.StudentAddress),
					tx.CredentialType,
					truncateHash(tx.TxHash),
				})
			}
			renderTable(os.Stdout, table.Row{"WHEN", "KIND", "STATUS", "STUDENT", "TYPE", "TX"}, rows)

			if resp.Pagination.HasMore {
				fmt.Printf("\nMore available: --cursor %s\n", resp.Pagination.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&q.Kind, "kind", "", "filter by kind (issue, revoke)")
	cmd.Flags().StringVar(&q.Status, "status", "", "filter by status (pending, confirmed, failed)")
	cmd.Flags().StringVar(&q.Student, "student", "", "filter by student address")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "number of items to show")
	cmd.Flags().StringVar(&q.Cursor, "cursor", "", "page cursor")

	return cmd
}

func statusColor(status string) string {
	switch status {
	case "confirmed":
		return ansiGreen
	case "pending":
		return ansiYellow
	case "failed":
		return ansiRed
	default:
		return ""
	}
}
