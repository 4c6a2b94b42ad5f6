package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/verichain/pkg/client"
)

const studentIDType = "STUDENT_ID"

func createIssueCmd() *cobra.Command {
	var student string
	var credentialType string
	var name string
	var hash string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "issue [file]",
		Short: "Issue a credential to a student",
		Long: `Anchor a credential for a student on the ledger.

Documents are hashed locally and only the fingerprint is submitted. A
STUDENT_ID credential takes --name instead of a document: the server pins
a profile and records its content identifier.

Requires the server's connected wallet to be the contract owner.

EXAMPLES:
  # Issue a diploma from a local file
  verichain issue --student 0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B --type DIPLOMA diploma.pdf

  # Issue from a precomputed fingerprint
  verichain issue --student 0xAb58... --type TRANSCRIPT --hash 0x9f86...

  # Issue a student ID
  verichain issue --student 0xAb58... --type STUDENT_ID --name "Ada Lovelace"
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if credentialType == "" {
				credentialType = defaultCredentialType()
			}
			req := client.IssueRequest{
				StudentAddress: student,
				CredentialType: strings.ToUpper(credentialType),
				Name:           name,
			}
			if req.CredentialType != studentIDType {
				digest, err := resolveDigest(args, hash)
				if err != nil {
					return err
				}
				req.DocumentHash = digest
			} else if len(args) > 0 || hash != "" {
				return fmt.Errorf("%s credentials take --name, not a document", studentIDType)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runIssue(ctx, newClient(), &req)
		},
	}

	cmd.Flags().StringVar(&student, "student", "", "student wallet address (required)")
	cmd.Flags().StringVar(&credentialType, "type", "", "credential type (default from verichain.toml, else DIPLOMA)")
	cmd.Flags().StringVar(&name, "name", "", "student name for STUDENT_ID credentials")
	cmd.Flags().StringVar(&hash, "hash", "", "fingerprint to issue instead of a file")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for confirmation")
	_ = cmd.MarkFlagRequired("student")

	return cmd
}

func createRevokeCmd() *cobra.Command {
	var student string
	var hash string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "revoke [file]",
		Short: "Revoke a student's credential",
		Long: `Mark a previously issued credential as revoked.

Revoked credentials stay on the ledger but no longer verify and are hidden
from the student's listing.

EXAMPLES:
  verichain revoke --student 0xAb58... diploma.pdf
  verichain revoke --student 0xAb58... --hash 0x9f86...
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := resolveDigest(args, hash)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			fmt.Fprintf(os.Stderr, "Revoking %s for %s\n", digest, student)
			result, err := newClient().Revoke(ctx, client.RevokeRequest{
				StudentAddress: student,
				DocumentHash:   digest,
			})
			if err != nil {
				return fmt.Errorf("revoke failed: %w", err)
			}
			return printTxResult(result)
		},
	}

	cmd.Flags().StringVar(&student, "student", "", "student wallet address (required)")
	cmd.Flags().StringVar(&hash, "hash", "", "fingerprint to revoke instead of a file")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for confirmation")
	_ = cmd.MarkFlagRequired("student")

	return cmd
}

// runIssue submits req. On success the request's fingerprint and name are
// cleared so the same request value cannot be resubmitted by accident.
func runIssue(ctx context.Context, c *client.Client, req *client.IssueRequest) error {
	subject := req.DocumentHash
	if req.CredentialType == studentIDType {
		subject = req.Name
	}
	fmt.Fprintf(os.Stderr, "📤 Issuing %s (%s) to %s\n", req.CredentialType, subject, req.StudentAddress)

	result, err := c.Issue(ctx, *req)
	if err != nil {
		return fmt.Errorf("issue failed: %w", err)
	}

	req.DocumentHash = ""
	req.Name = ""
	return printTxResult(result)
}

func printTxResult(result *client.TxResult) error {
	if jsonOutput {
		return printJSON(result)
	}

	colorize := colorEnabled(os.Stdout)
	fmt.Println()
	switch result.Status {
	case "confirmed":
		fmt.Println(paint("✅ "+result.Message, ansiGreen, colorize))
	case "pending":
		fmt.Println(paint("⏳ "+result.Message, ansiYellow, colorize))
		fmt.Println("   Check later with 'verichain transactions --status pending'")
	default:
		fmt.Println(paint("❌ "+result.Message, ansiRed, colorize))
	}
	printField("Student", result.StudentAddress)
	if result.CredentialType != "" {
		printField("Type", result.CredentialType)
	}
	printField("Fingerprint", result.DocumentHash)
	if result.MetadataCID != "" {
		printField("Profile CID", result.MetadataCID)
	}
	printField("Tx hash", result.TxHash)
	if result.BlockNumber > 0 {
		printField("Block", fmt.Sprintf("%d", result.BlockNumber))
	}

	return nil
}

func defaultCredentialType() string {
	if cfg := loadProjectConfigSilent(); cfg != nil && cfg.Issue.CredentialType != "" {
		return cfg.Issue.CredentialType
	}
	return "DIPLOMA"
}
