package wallet

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PassphraseFunc supplies the passphrase for account. Returning an error
// wrapping ErrDeclined means the user refused.
type PassphraseFunc func(ctx context.Context, account string) (string, error)

// PassphraseFromFile reads the passphrase from path on every request.
func PassphraseFromFile(path string) PassphraseFunc {
	return func(ctx context.Context, account string) (string, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading passphrase file: %w", err)
		}
		return strings.TrimRight(string(b), "\r\n"), nil
	}
}

// PassphraseFromTerminal prompts on the controlling terminal. An empty
// answer or a non-interactive stdin counts as declined.
func PassphraseFromTerminal() PassphraseFunc {
	return func(ctx context.Context, account string) (string, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", fmt.Errorf("%w: stdin is not a terminal", ErrDeclined)
		}
		fmt.Fprintf(os.Stderr, "Passphrase for %s: ", account)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if len(b) == 0 {
			return "", ErrDeclined
		}
		return string(b), nil
	}
}

// StaticPassphrase always returns pass.
func StaticPassphrase(pass string) PassphraseFunc {
	return func(context.Context, string) (string, error) {
		return pass, nil
	}
}
