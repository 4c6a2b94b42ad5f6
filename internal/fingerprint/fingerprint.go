// Package fingerprint computes and validates the document fingerprints
// recorded on the credential ledger.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ipfs/go-cid"
)

const (
	// Prefix starts every file digest fingerprint.
	Prefix = "0x"

	// ProfilePrefix marks a fingerprint that names a pinned student profile
	// instead of the bytes of a file.
	ProfilePrefix = "ipfs-json-cid:"

	// Algorithm is the only digest algorithm in use.
	Algorithm = "sha256"

	encodedLen = len(Prefix) + sha256.Size*2
)

// ErrInvalidFingerprint is returned when a fingerprint string is malformed.
var ErrInvalidFingerprint = errors.New("invalid fingerprint")

// Digest is the fingerprint of a document's full byte content.
type Digest struct {
	Algorithm string `json:"algorithm"`
	Encoded   string `json:"encoded"`
	Size      int64  `json:"size"`
}

// String returns the encoded fingerprint.
func (d Digest) String() string {
	return d.Encoded
}

// IsZero reports whether d holds no fingerprint.
func (d Digest) IsZero() bool {
	return d.Encoded == ""
}

// Compute fingerprints b. Identical content always yields identical output.
func Compute(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest{
		Algorithm: Algorithm,
		Encoded:   Prefix + hex.EncodeToString(sum[:]),
		Size:      int64(len(b)),
	}
}

// FromReader reads r to the end and fingerprints its content.
func FromReader(r io.Reader) (Digest, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Digest{}, fmt.Errorf("reading content: %w", err)
	}
	return Compute(b), nil
}

// FromFile fingerprints the file at path.
func FromFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return FromReader(f)
}

// Normalize validates a user-supplied fingerprint and returns its canonical
// form. File digests are lowercased; profile fingerprints must carry a
// decodable CID.
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, ProfilePrefix) {
		ref := strings.TrimPrefix(s, ProfilePrefix)
		if _, err := cid.Decode(ref); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidFingerprint, err)
		}
		return s, nil
	}

	if len(s) != encodedLen {
		return "", fmt.Errorf("%w: must be %d characters", ErrInvalidFingerprint, encodedLen)
	}
	if !strings.HasPrefix(s, Prefix) && !strings.HasPrefix(s, "0X") {
		return "", fmt.Errorf("%w: must start with %s", ErrInvalidFingerprint, Prefix)
	}
	body := strings.ToLower(s[len(Prefix):])
	if _, err := hex.DecodeString(body); err != nil {
		return "", fmt.Errorf("%w: contains non-hex characters", ErrInvalidFingerprint)
	}
	return Prefix + body, nil
}

// Parse normalizes s into a Digest. Size is unknown for parsed values.
func Parse(s string) (Digest, error) {
	encoded, err := Normalize(s)
	if err != nil {
		return Digest{}, err
	}
	alg := Algorithm
	if strings.HasPrefix(encoded, ProfilePrefix) {
		alg = "cid"
	}
	return Digest{Algorithm: alg, Encoded: encoded}, nil
}

// ProfileFingerprint builds the fingerprint recorded for a pinned profile.
func ProfileFingerprint(ref string) string {
	return ProfilePrefix + ref
}

// ProfileRef returns the CID named by a profile fingerprint.
func ProfileRef(s string) (string, bool) {
	if !strings.HasPrefix(s, ProfilePrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, ProfilePrefix), true
}
