package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/verichain/pkg/client"
)

func createVerifyCmd() *cobra.Command {
	var hash string
	var upload bool
	var useSession bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "verify [file]",
		Short: "Check whether a document was issued by the institution",
		Long: `Check a document's fingerprint against the credential ledger.

By default the file is hashed locally and only the fingerprint is sent.
Use --upload to let the server hash the document instead, or --session to
run the lookup through a verifier session and poll for the outcome.

EXAMPLES:
  # Verify a local document
  verichain verify diploma.pdf

  # Verify a fingerprint someone sent you
  verichain verify --hash 0x9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08

  # Poll a verifier session instead of a single request
  verichain verify diploma.pdf --session --timeout 30s
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			c := newClient()
			if upload {
				if len(args) == 0 {
					return fmt.Errorf("--upload requires a document file")
				}
				return runVerifyUpload(ctx, c, args[0])
			}

			digest, err := resolveDigest(args, hash)
			if err != nil {
				return err
			}
			if useSession {
				return runVerifySession(ctx, c, digest)
			}
			return runVerify(ctx, c, digest)
		},
	}

	cmd.Flags().StringVar(&hash, "hash", "", "fingerprint to check instead of a file")
	cmd.Flags().BoolVar(&upload, "upload", false, "send the document and let the server hash it")
	cmd.Flags().BoolVar(&useSession, "session", false, "use a verifier session and poll for the outcome")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the ledger")

	return cmd
}

func runVerify(ctx context.Context, c *client.Client, digest string) error {
	fmt.Fprintf(os.Stderr, "🔍 Checking %s\n", digest)

	result, err := c.Verify(ctx, digest)
	if err != nil {
		return fmt.Errorf("verification request failed: %w", err)
	}
	return printVerifyResult(result)
}

func runVerifyUpload(ctx context.Context, c *client.Client, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	fmt.Fprintf(os.Stderr, "🔍 Uploading %s (%d bytes)\n", path, len(content))

	result, err := c.VerifyDocument(ctx, content)
	if err != nil {
		return fmt.Errorf("verification request failed: %w", err)
	}
	return printVerifyResult(result)
}

func runVerifySession(ctx context.Context, c *client.Client, digest string) error {
	s, err := c.CreateVerifierSession(ctx)
	if err != nil {
		return fmt.Errorf("creating verifier session: %w", err)
	}
	// The session is only useful for this one lookup.
	defer func() {
		_ = c.DeleteVerifierSession(context.Background(), s.ID)
	}()

	if _, err := c.SelectDigest(ctx, s.ID, digest); err != nil {
		return fmt.Errorf("selecting fingerprint: %w", err)
	}
	if _, err := c.StartLookup(ctx, s.ID); err != nil {
		return fmt.Errorf("starting lookup: %w", err)
	}

	fmt.Fprintf(os.Stderr, "🔍 Checking %s (session %s)\n", digest, s.ID)

	done, err := c.AwaitOutcome(ctx, s.ID, 500*time.Millisecond)
	if err != nil {
		return fmt.Errorf("waiting for outcome: %w", err)
	}

	result := &client.VerifyResult{
		Digest:   done.State.Digest,
		Outcome:  done.State.Outcome,
		Verified: done.State.Outcome == client.OutcomeConfirmed,
		Message:  done.Message,
		Detail:   done.State.Detail,
	}
	if done.State.CheckedAt != nil {
		result.CheckedAt = *done.State.CheckedAt
	}
	return printVerifyResult(result)
}

func printVerifyResult(result *client.VerifyResult) error {
	if jsonOutput {
		return printJSON(result)
	}

	colorize := colorEnabled(os.Stdout)
	fmt.Println()
	switch result.Outcome {
	case client.OutcomeConfirmed:
		fmt.Println(paint("✅ AUTHENTIC", ansiGreen, colorize))
	case client.OutcomeRejected:
		label := "❌ NOT RECOGNIZED"
		if result.Recorded {
			label = "❌ REVOKED"
		}
		fmt.Println(paint(label, ansiRed, colorize))
	default:
		fmt.Println(paint("⏳ "+result.Outcome, ansiYellow, colorize))
	}
	if result.Message != "" {
		fmt.Printf("   %s\n", result.Message)
	}
	fmt.Printf("   Fingerprint: %s\n", result.Digest)
	if result.Detail != "" {
		fmt.Printf("   Detail:      %s\n", result.Detail)
	}

	return nil
}
