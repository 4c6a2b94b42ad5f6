package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

// colorEnabled reports whether f is a terminal that should get ANSI styling.
func colorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// localTheme returns the theme saved in the global config, dark by default.
func localTheme() string {
	if cfg, err := loadGlobalConfig(); err == nil && strings.EqualFold(cfg.Theme, "light") {
		return "light"
	}
	return "dark"
}

// tableStyle picks the table style for the theme. Plain output never
// carries colour codes.
func tableStyle(theme string, colorize bool) table.Style {
	if !colorize {
		return table.StyleRounded
	}
	if theme == "light" {
		return table.StyleColoredBright
	}
	return table.StyleColoredDark
}

func renderTable(w io.Writer, header table.Row, rows []table.Row) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(tableStyle(localTheme(), w == os.Stdout && colorEnabled(os.Stdout)))
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	tw.Render()
}

func paint(s, color string, colorize bool) string {
	if !colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncateAddress(addr string) string {
	if len(addr) <= 14 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func truncateHash(h string) string {
	if len(h) <= 18 {
		return h
	}
	return h[:10] + "..." + h[len(h)-6:]
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printField(label, value string) {
	fmt.Printf("%-12s %s\n", label+":", value)
}
