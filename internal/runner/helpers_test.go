package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"

	"github.com/stelligent/mu-formula/formula"
	"github.com/stelligent/mu-formula/internal/fetch"
	"github.com/stelligent/mu-formula/internal/install"
	"github.com/stelligent/mu-formula/internal/receipt"
)

const (
	stableScript = "#!/bin/sh\n[ \"$1\" = \"--version\" ] || exit 2\necho \"mu version 1.0.1\"\n"
	develScript  = "#!/bin/sh\necho \"mu version 1.1.1-develop\"\n"
)

// fakeFetcher serves artifact bodies from memory.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	return &fakeFetcher{bodies: bodies, calls: map[string]int{}}
}

func (f *fakeFetcher) body(url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	b, ok := f.bodies[url]
	if !ok {
		return "", fmt.Errorf("%s: %w", url, fetch.ErrNotFound)
	}
	return b, nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, dir string) (string, error) {
	b, err := f.body(url)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "artifact-*")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	_, err = tmp.WriteString(b)
	return tmp.Name(), err
}

func (f *fakeFetcher) Checksum(ctx context.Context, url string) (digest.Digest, error) {
	b, err := f.body(url)
	if err != nil {
		return "", err
	}
	return digest.Canonical.FromString(b), nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func testFormula() *formula.Formula {
	f := formula.Default()
	for _, ch := range formula.Channels() {
		rel := f.Releases[ch]
		script := stableScript
		if ch == formula.Devel {
			script = develScript
		}
		for _, target := range formula.SupportedOS() {
			a := rel.Artifacts[target]
			a.SHA256 = sum(script)
			rel.Artifacts[target] = a
		}
		f.Releases[ch] = rel
	}
	return f
}

func bodiesFor(f *formula.Formula) map[string]string {
	bodies := map[string]string{}
	for ch, rel := range f.Releases {
		for _, a := range rel.Artifacts {
			if ch == formula.Devel {
				bodies[a.URL] = develScript
			} else {
				bodies[a.URL] = stableScript
			}
		}
	}
	return bodies
}

func newRunner(t *testing.T, f *formula.Formula, fetcher Fetcher) *Runner {
	t.Helper()
	root := t.TempDir()
	return &Runner{
		Formula:     f,
		Fetcher:     fetcher,
		Installer:   install.New(filepath.Join(root, "bin"), install.WithLockDir(filepath.Join(root, "state"))),
		Receipts:    receipt.NewStore(filepath.Join(root, "state", "receipts")),
		DownloadDir: filepath.Join(root, "state", "downloads"),
		Log:         zerolog.Nop(),
		Now:         func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) },
	}
}
