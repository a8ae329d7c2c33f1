// Package receipt records what was installed, so upgrades can skip
// reinstalling an identical artifact.
package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/stelligent/mu-formula/formula"
)

// ErrNotFound is returned when no receipt exists for a formula.
var ErrNotFound = errors.New("no install receipt")

// Receipt describes one installed formula.
type Receipt struct {
	Formula     string    `toml:"formula"`
	Binary      string    `toml:"binary"`
	Path        string    `toml:"path"`
	Channel     string    `toml:"channel"`
	Version     string    `toml:"version"`
	OS          string    `toml:"os"`
	URL         string    `toml:"url"`
	SHA256      string    `toml:"sha256"`
	InstalledAt time.Time `toml:"installed_at"`
}

// New builds a receipt for r installed at path.
func New(r formula.Resolved, path string, now time.Time) Receipt {
	return Receipt{
		Formula:     r.Formula,
		Binary:      r.Binary,
		Path:        path,
		Channel:     r.Channel.String(),
		Version:     r.Version,
		OS:          r.OS.String(),
		URL:         r.Artifact.URL,
		SHA256:      r.Artifact.SHA256,
		InstalledAt: now.UTC().Truncate(time.Second),
	}
}

// Matches reports whether the receipt records exactly the artifact r resolves to.
func (rc Receipt) Matches(r formula.Resolved) bool {
	return rc.Formula == r.Formula &&
		rc.Channel == r.Channel.String() &&
		rc.Version == r.Version &&
		rc.SHA256 == r.Artifact.SHA256
}

// Store keeps receipts as TOML files in a directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".toml")
}

// Load returns the receipt for the named formula.
func (s *Store) Load(name string) (Receipt, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return Receipt{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("read receipt: %w", err)
	}
	var rc Receipt
	if err := toml.Unmarshal(data, &rc); err != nil {
		return Receipt{}, fmt.Errorf("decode receipt %s: %w", s.path(name), err)
	}
	return rc, nil
}

// Save writes rc, replacing any previous receipt for the same formula.
func (s *Store) Save(rc Receipt) error {
	if rc.Formula == "" {
		return errors.New("receipt has no formula name")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create receipt dir: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(rc); err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+rc.Formula+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write receipt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(rc.Formula)); err != nil {
		return fmt.Errorf("replace receipt: %w", err)
	}
	return nil
}

// Delete removes the receipt for the named formula. A missing receipt is not an error.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove receipt: %w", err)
	}
	return nil
}
