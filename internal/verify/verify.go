// Package verify checks downloaded artifacts against recorded checksums.
package verify

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
)

// ErrMismatch is returned when content does not hash to the expected digest.
var ErrMismatch = errors.New("checksum mismatch")

// MismatchError describes a failed verification.
type MismatchError struct {
	Path string
	Want digest.Digest
	Got  digest.Digest
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: computed checksum '%s' doesn't match expected '%s'", e.Path, e.Got.Encoded(), e.Want.Encoded())
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

// File verifies that the file at path hashes to want.
func File(path string, want digest.Digest) error {
	if err := want.Validate(); err != nil {
		return fmt.Errorf("invalid expected digest '%s': %w", want, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	// Compute with the expected algorithm so Got is comparable in the error.
	digester := want.Algorithm().Digester()
	if _, err := io.Copy(digester.Hash(), f); err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	if got := digester.Digest(); got != want {
		return &MismatchError{Path: path, Want: want, Got: got}
	}
	return nil
}

// Compute returns the sha256 digest of the file at path.
func Compute(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	return FromReader(f)
}

// FromReader returns the sha256 digest of everything read from r.
func FromReader(r io.Reader) (digest.Digest, error) {
	d, err := digest.Canonical.FromReader(r)
	if err != nil {
		return "", fmt.Errorf("compute digest: %w", err)
	}
	return d, nil
}
