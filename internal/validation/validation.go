// Package validation provides input validation for VeriChain.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
)

// MaxStudentNameLength bounds the name pinned into a student profile.
const MaxStudentNameLength = 128

// ValidateAddress validates an Ethereum address. Mixed-case input must
// carry a valid EIP-55 checksum.
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	// Check hex characters
	for _, c := range addr[2:] {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return errors.New("invalid address: contains non-hex characters")
		}
	}
	body := addr[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if common.HexToAddress(addr).Hex() != addr {
			return errors.New("invalid address: bad checksum")
		}
	}
	return nil
}

// ValidateCredentialType checks credType against the configured list.
func ValidateCredentialType(credType string, allowed []string) error {
	if credType == "" {
		return errors.New("credential type is required")
	}
	for _, a := range allowed {
		if a == credType {
			return nil
		}
	}
	return fmt.Errorf("unknown credential type %q: must be one of %s", credType, strings.Join(allowed, ", "))
}

// ValidateStudentName validates the display name recorded in a student profile
func ValidateStudentName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("student name is required")
	}
	if len(trimmed) > MaxStudentNameLength {
		return fmt.Errorf("student name too long (max %d chars)", MaxStudentNameLength)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return errors.New("student name contains control characters")
		}
	}
	return nil
}

// ClampLimit bounds a page size, substituting def for non-positive values.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
