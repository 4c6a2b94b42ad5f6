package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pendergraft/verichain/pkg/client"
)

func createCredentialsCmd() *cobra.Command {
	var student string
	var types bool

	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "List credentials",
		Long: `List the connected student's active credentials.

With --student, list every credential of that student, revoked ones
included. This needs the contract owner's wallet.

EXAMPLES:
  # My credentials
  verichain credentials

  # Admin lookup of a student
  verichain credentials --student 0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B

  # Credential types the ledger accepts
  verichain credentials --types
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := newClient()
			switch {
			case types:
				return listCredentialTypes(ctx, c)
			case student != "":
				return listStudentCredentials(ctx, c, student)
			default:
				return listMyCredentials(ctx, c)
			}
		},
	}

	cmd.Flags().StringVar(&student, "student", "", "student wallet address (admin)")
	cmd.Flags().BoolVar(&types, "types", false, "list credential types")

	return cmd
}

func listMyCredentials(ctx context.Context, c *client.Client) error {
	creds, err := c.MyCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}

	if jsonOutput {
		return printJSON(map[string]any{"data": creds, "count": len(creds)})
	}

	if len(creds) == 0 {
		fmt.Println("You have no active credentials.")
		return nil
	}

	rows := make([]table.Row, 0, len(creds))
	for _, cr := range creds {
		rows = append(rows, table.Row{cr.Title, credentialDetail(cr), truncateHash(cr.DocumentHash), formatDate(cr)})
	}
	renderTable(os.Stdout, table.Row{"CREDENTIAL", "DETAIL", "FINGERPRINT", "ISSUED"}, rows)

	return nil
}

func listStudentCredentials(ctx context.Context, c *client.Client, student string) error {
	creds, err := c.StudentCredentials(ctx, student)
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}

	if jsonOutput {
		return printJSON(map[string]any{"student": student, "data": creds, "count": len(creds)})
	}

	if len(creds) == 0 {
		fmt.Printf("No credentials found for %s\n", student)
		return nil
	}

	rows := make([]table.Row, 0, len(creds))
	for _, cr := range creds {
		active := "yes"
		if cr.Active != nil {
			active = yesNo(*cr.Active)
		}
		rows = append(rows, table.Row{cr.Title, truncateHash(cr.DocumentHash), formatDate(cr), active})
	}
	fmt.Printf("Credentials of %s\n", student)
	renderTable(os.Stdout, table.Row{"CREDENTIAL", "FINGERPRINT", "ISSUED", "ACTIVE"}, rows)

	return nil
}

func listCredentialTypes(ctx context.Context, c *client.Client) error {
	types, err := c.CredentialTypes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list credential types: %w", err)
	}

	if jsonOutput {
		return printJSON(map[string]any{"data": types})
	}

	for _, t := range types {
		fmt.Println(t)
	}
	return nil
}

// credentialDetail shows the student name behind a student ID, or the
// metadata CID when one is present.
func credentialDetail(cr client.Credential) string {
	if cr.Profile != nil && cr.Profile.Name != "" {
		return cr.Profile.Name
	}
	if cr.MetadataCID != "" {
		return cr.MetadataCID
	}
	return ""
}

func formatDate(cr client.Credential) string {
	if cr.IssueDate.IsZero() {
		return ""
	}
	return cr.IssueDate.Local().Format("2006-01-02")
}
