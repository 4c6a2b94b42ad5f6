package session

import (
	"fmt"
	"strings"
)

// Theme is the display theme preference.
type Theme string

// Themes. Dark is the default.
const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme accepts "dark" or "light" in any case.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeDark:
		return ThemeDark, nil
	case ThemeLight:
		return ThemeLight, nil
	}
	return "", fmt.Errorf("unknown theme %q (want dark or light)", s)
}

// OrDefault returns t, or ThemeDark if t is not a known theme.
func (t Theme) OrDefault() Theme {
	if t == ThemeLight {
		return ThemeLight
	}
	return ThemeDark
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t.OrDefault() == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}
