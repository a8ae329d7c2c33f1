// Package install places verified artifacts into a bin directory under the
// formula's canonical executable name.
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/fluxcd/pkg/lockedfile"

	"github.com/stelligent/mu-formula/formula"
	"github.com/stelligent/mu-formula/internal/verify"
)

// Installer owns one bin directory.
type Installer struct {
	binDir  string
	lockDir string
}

// Option configures an Installer.
type Option func(*Installer)

// WithLockDir keeps lock files out of the bin directory.
func WithLockDir(dir string) Option {
	return func(i *Installer) {
		i.lockDir = dir
	}
}

// New returns an Installer writing to binDir.
func New(binDir string, opts ...Option) *Installer {
	i := &Installer{binDir: binDir, lockDir: binDir}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// BinDir returns the target directory.
func (i *Installer) BinDir() string {
	return i.binDir
}

// Path returns where binary is installed. The name cannot escape the bin directory.
//
//	Path("mu-cli") → "<bin>/mu-cli"
func (i *Installer) Path(binary string) (string, error) {
	if binary == "" {
		return "", errors.New("binary name is empty")
	}
	if binary != filepath.Base(binary) || binary == "." || binary == ".." {
		return "", fmt.Errorf("binary %q must be a plain file name", binary)
	}
	p, err := securejoin.SecureJoin(i.binDir, binary)
	if err != nil {
		return "", fmt.Errorf("resolve install path: %w", err)
	}
	if filepath.Dir(p) != filepath.Clean(i.binDir) {
		return "", fmt.Errorf("install path for %q resolves outside %s", binary, i.binDir)
	}
	return p, nil
}

// Installed reports whether binary exists as a regular file in the bin directory.
func (i *Installer) Installed(binary string) (string, bool) {
	p, err := i.Path(binary)
	if err != nil {
		return "", false
	}
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return p, false
	}
	return p, true
}

// Install verifies artifactPath against r's checksum and places it at
// <bin>/<r.Binary>, replacing any previous install. Nothing is written
// when verification fails. Repeated installs of the same artifact
// converge to the same file.
func (i *Installer) Install(ctx context.Context, r formula.Resolved, artifactPath string) (string, error) {
	if err := verify.File(artifactPath, r.Artifact.Digest()); err != nil {
		return "", err
	}

	dst, err := i.Path(r.Binary)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(i.binDir, 0o755); err != nil {
		return "", fmt.Errorf("create bin dir: %w", err)
	}
	unlock, err := i.lock(r.Binary)
	if err != nil {
		return "", err
	}
	defer unlock()

	if err := copyAtomic(artifactPath, dst, 0o755); err != nil {
		return "", err
	}
	return dst, nil
}

// Uninstall removes binary from the bin directory. A missing binary is not an error.
func (i *Installer) Uninstall(binary string) error {
	dst, err := i.Path(binary)
	if err != nil {
		return err
	}
	unlock, err := i.lock(binary)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", dst, err)
	}
	return nil
}

// lock takes an exclusive file lock for binary.
func (i *Installer) lock(binary string) (func(), error) {
	if err := os.MkdirAll(i.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	mutex := lockedfile.MutexAt(filepath.Join(i.lockDir, "."+binary+".lock"))
	unlock, err := mutex.Lock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", binary, err)
	}
	return unlock, nil
}

// copyAtomic copies src next to dst and renames it into place.
func copyAtomic(src, dst string, mode os.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod binary: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename binary: %w", err)
	}
	return nil
}
