// Package runner drives a formula through resolve, fetch, verify, place
// and self-test. Each step finishes before the next starts; the first
// failure ends the invocation.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"

	"github.com/stelligent/mu-formula/formula"
	"github.com/stelligent/mu-formula/internal/install"
	"github.com/stelligent/mu-formula/internal/receipt"
	"github.com/stelligent/mu-formula/internal/selftest"
	"github.com/stelligent/mu-formula/internal/verify"
)

// ErrNotInstalled is returned by operations that need an existing install.
var ErrNotInstalled = errors.New("not installed")

// Fetcher downloads artifacts.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string) (string, error)
	Checksum(ctx context.Context, url string) (digest.Digest, error)
}

// Runner ties a formula to a fetcher, a bin directory and a receipt store.
type Runner struct {
	Formula     *formula.Formula
	Fetcher     Fetcher
	Installer   *install.Installer
	Receipts    *receipt.Store
	DownloadDir string
	Log         zerolog.Logger
	// Now is used for receipt timestamps; nil means time.Now.
	Now func() time.Time
}

// Options selects what to install.
type Options struct {
	// OS defaults to the host.
	OS formula.OS
	// Channel defaults to stable.
	Channel formula.Channel
	// Force reinstalls even when the receipt matches.
	Force bool
	// SkipTest skips the post-install self-test.
	SkipTest bool
}

// Report describes a finished install.
type Report struct {
	Resolved formula.Resolved
	Path     string
	// Skipped is set when the recorded install already matched.
	Skipped bool
	// Version is the first line printed by the self-test.
	Version string
	// TestErr is the self-test failure, if any. The install is kept.
	TestErr error
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve picks the artifact for opts.
func (r *Runner) Resolve(opts Options) (formula.Resolved, error) {
	if opts.OS == "" {
		return r.Formula.ResolveHost(opts.Channel)
	}
	return r.Formula.Resolve(opts.OS, opts.Channel)
}

// Install runs the full sequence. Self-test failures are returned in
// Report.TestErr, not as the error: the binary stays installed.
func (r *Runner) Install(ctx context.Context, opts Options) (Report, error) {
	res, err := r.Resolve(opts)
	if err != nil {
		return Report{}, err
	}
	log := r.Log.With().
		Str("formula", res.Formula).
		Str("channel", res.Channel.String()).
		Str("version", res.Version).
		Str("os", res.OS.String()).
		Logger()
	log.Info().Str("url", res.Artifact.URL).Msg("Resolved artifact")

	if !opts.Force {
		if path, ok := r.current(res); ok {
			log.Info().Str("path", path).Msg("Already installed")
			return Report{Resolved: res, Path: path, Skipped: true}, nil
		}
	}

	artifact, err := r.Fetcher.Fetch(ctx, res.Artifact.URL, r.DownloadDir)
	if err != nil {
		return Report{}, fmt.Errorf("fetch %s: %w", res.AssetName(), err)
	}
	defer os.Remove(artifact)
	log.Debug().Str("artifact", artifact).Msg("Fetched artifact")

	path, err := r.Installer.Install(ctx, res, artifact)
	if err != nil {
		return Report{}, fmt.Errorf("install %s: %w", res.Formula, err)
	}
	log.Info().Str("path", path).Msg("Installed")

	if err := r.Receipts.Save(receipt.New(res, path, r.now())); err != nil {
		return Report{}, err
	}

	report := Report{Resolved: res, Path: path}
	if opts.SkipTest {
		return report, nil
	}
	result, err := selftest.Run(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Self-test failed; the install was kept")
		report.TestErr = err
		return report, nil
	}
	report.Version = result.Version()
	log.Info().Str("reported", report.Version).Msg("Self-test passed")
	return report, nil
}

// Upgrade reinstalls when the formula resolves to a different artifact
// than the one recorded. An empty opts.Channel keeps the installed channel.
func (r *Runner) Upgrade(ctx context.Context, opts Options) (Report, error) {
	rc, err := r.Receipts.Load(r.Formula.Name)
	if errors.Is(err, receipt.ErrNotFound) {
		return Report{}, fmt.Errorf("%s: %w", r.Formula.Name, ErrNotInstalled)
	}
	if err != nil {
		return Report{}, err
	}
	if opts.Channel == "" {
		ch, err := formula.ParseChannel(rc.Channel)
		if err != nil {
			return Report{}, fmt.Errorf("receipt: %w", err)
		}
		opts.Channel = ch
	}
	if opts.OS == "" && rc.OS != "" {
		opts.OS = formula.OS(rc.OS)
	}
	return r.Install(ctx, opts)
}

// current returns the install path when the receipt and the file on disk
// both match res.
func (r *Runner) current(res formula.Resolved) (string, bool) {
	path, ok := r.Installer.Installed(res.Binary)
	if !ok {
		return "", false
	}
	rc, err := r.Receipts.Load(res.Formula)
	if err != nil || !rc.Matches(res) {
		return "", false
	}
	if err := verify.File(path, res.Artifact.Digest()); err != nil {
		r.Log.Debug().Err(err).Msg("Installed binary no longer matches its receipt")
		return "", false
	}
	return path, true
}

// Test runs the self-test against the installed binary.
func (r *Runner) Test(ctx context.Context) (selftest.Result, error) {
	path, ok := r.Installer.Installed(r.Formula.Binary)
	if !ok {
		return selftest.Result{}, fmt.Errorf("%s: %w", r.Formula.Binary, ErrNotInstalled)
	}
	return selftest.Run(ctx, path)
}

// Uninstall removes the binary and its receipt.
func (r *Runner) Uninstall(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.Installer.Uninstall(r.Formula.Binary); err != nil {
		return err
	}
	if err := r.Receipts.Delete(r.Formula.Name); err != nil {
		return err
	}
	r.Log.Info().Str("formula", r.Formula.Name).Msg("Uninstalled")
	return nil
}

// Info summarizes the formula and what is installed.
type Info struct {
	Name     string
	Desc     string
	Homepage string
	Binary   string
	Releases map[formula.Channel]string
	// Installed is nil when nothing is recorded.
	Installed *receipt.Receipt
	Path      string
	// Digest is the checksum of the binary on disk, empty when it is missing.
	Digest digest.Digest
	// Modified is set when the binary on disk no longer matches the receipt.
	Modified bool
}

// Info returns the formula summary and the install receipt, if any.
func (r *Runner) Info() (Info, error) {
	info := Info{
		Name:     r.Formula.Name,
		Desc:     r.Formula.Desc,
		Homepage: r.Formula.Homepage,
		Binary:   r.Formula.Binary,
		Releases: make(map[formula.Channel]string, len(r.Formula.Releases)),
	}
	for ch, rel := range r.Formula.Releases {
		info.Releases[ch] = rel.Version
	}
	path, err := r.Installer.Path(r.Formula.Binary)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", r.Formula.Name, err)
	}
	info.Path = path

	if p, ok := r.Installer.Installed(r.Formula.Binary); ok {
		d, err := verify.Compute(p)
		if err != nil {
			return Info{}, err
		}
		info.Digest = d
	}

	rc, err := r.Receipts.Load(r.Formula.Name)
	switch {
	case errors.Is(err, receipt.ErrNotFound):
	case err != nil:
		return Info{}, err
	default:
		info.Installed = &rc
		want := digest.NewDigestFromEncoded(digest.SHA256, rc.SHA256)
		info.Modified = info.Digest != want
	}
	return info, nil
}
