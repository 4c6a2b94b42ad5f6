package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pendergraft/verichain/internal/fingerprint"
)

func createHashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash <file>",
		Short: "Compute a document fingerprint",
		Long: `Compute the SHA-256 fingerprint of a document locally.

The file never leaves this machine. The printed value is the digest that
'verichain issue' anchors on chain and 'verichain verify' looks up.

EXAMPLES:
  verichain hash diploma.pdf
  verichain hash diploma.pdf --json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHash(args[0])
		},
	}

	return cmd
}

func runHash(path string) error {
	d, err := fingerprint.FromFile(path)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{
			"file":      path,
			"digest":    d.Encoded,
			"algorithm": d.Algorithm,
			"size":      d.Size,
		})
	}

	fmt.Println(d.Encoded)
	return nil
}

// resolveDigest returns the fingerprint to use from either a file argument
// or an explicit hash flag. Exactly one must be given.
func resolveDigest(args []string, hash string) (string, error) {
	switch {
	case len(args) > 0 && hash != "":
		return "", fmt.Errorf("pass either a file or --hash, not both")
	case len(args) > 0:
		d, err := fingerprint.FromFile(args[0])
		if err != nil {
			return "", err
		}
		return d.Encoded, nil
	case hash != "":
		return fingerprint.Normalize(hash)
	default:
		return "", fmt.Errorf("a document file or --hash is required")
	}
}
