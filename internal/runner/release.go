package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/stelligent/mu-formula/formula"
	"github.com/stelligent/mu-formula/internal/verify"
)

// maxConcurrentChecks bounds parallel downloads in VerifyAll and Bump.
const maxConcurrentChecks = 4

// Check is the result of comparing one recorded artifact with its remote content.
type Check struct {
	Channel formula.Channel
	OS      formula.OS
	URL     string
	Want    digest.Digest
	Got     digest.Digest
	Err     error
}

// OK reports whether the remote content matched.
func (c Check) OK() bool {
	return c.Err == nil
}

// VerifyAll downloads every artifact the formula records and compares it
// with its checksum. It returns one Check per artifact, in channel then OS
// order, and an error joining all failures.
func (r *Runner) VerifyAll(ctx context.Context) ([]Check, error) {
	var checks []Check
	for _, ch := range formula.Channels() {
		rel, ok := r.Formula.Release(ch)
		if !ok {
			continue
		}
		for _, os := range rel.Platforms() {
			a := rel.Artifacts[os]
			checks = append(checks, Check{Channel: ch, OS: os, URL: a.URL, Want: a.Digest()})
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)
	for i := range checks {
		c := &checks[i]
		g.Go(func() error {
			got, err := r.Fetcher.Checksum(ctx, c.URL)
			switch {
			case err != nil:
				c.Err = err
			case got != c.Want:
				c.Got = got
				c.Err = &verify.MismatchError{Path: c.URL, Want: c.Want, Got: got}
			default:
				c.Got = got
			}
			r.Log.Debug().Str("channel", c.Channel.String()).Str("os", c.OS.String()).
				Bool("ok", c.Err == nil).Msg("Checked artifact")
			// Failures are collected, not fatal, so every artifact is reported.
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, c := range checks {
		if c.Err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", c.Channel, c.OS, c.Err))
		}
	}
	return checks, errors.Join(errs...)
}

// ExpandURL fills an asset URL template for one platform.
// Supported variables: {{version}}, {{os}} (macos, linux), {{goos}}
// (darwin, linux), {{arch}}.
//
//	ExpandURL(".../download/{{version}}/mu-{{goos}}-{{arch}}", "v1.2.0", formula.MacOS, "amd64")
//	→ ".../download/v1.2.0/mu-darwin-amd64"
func ExpandURL(tmpl, version string, os formula.OS, arch string) string {
	return strings.NewReplacer(
		"{{version}}", version,
		"{{os}}", os.String(),
		"{{goos}}", os.GOOS(),
		"{{arch}}", arch,
	).Replace(tmpl)
}

// BumpOptions describes a release cut.
type BumpOptions struct {
	Version     string
	URLTemplate string
	// Arch defaults to amd64, the only architecture mu publishes.
	Arch string
	// Platforms defaults to every supported OS.
	Platforms []formula.OS
}

// Bump builds a new release record by expanding the URL template per
// platform and digesting each remote asset. The formula is not modified.
func (r *Runner) Bump(ctx context.Context, opts BumpOptions) (formula.Release, error) {
	if opts.Version == "" {
		return formula.Release{}, errors.New("version is required")
	}
	if !strings.Contains(opts.URLTemplate, "{{") {
		return formula.Release{}, fmt.Errorf("url template %q has no variables", opts.URLTemplate)
	}
	arch := opts.Arch
	if arch == "" {
		arch = "amd64"
	}
	platforms := opts.Platforms
	if len(platforms) == 0 {
		platforms = formula.SupportedOS()
	}

	for _, os := range platforms {
		if !os.Supported() {
			return formula.Release{}, &formula.PlatformError{OS: os}
		}
	}

	artifacts := make([]formula.Artifact, len(platforms))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)
	for i, os := range platforms {
		url := ExpandURL(opts.URLTemplate, opts.Version, os, arch)
		g.Go(func() error {
			d, err := r.Fetcher.Checksum(ctx, url)
			if err != nil {
				return fmt.Errorf("%s: %w", os, err)
			}
			artifacts[i] = formula.Artifact{URL: url, SHA256: d.Encoded()}
			r.Log.Info().Str("os", os.String()).Str("url", url).Str("sha256", d.Encoded()).Msg("Digested asset")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return formula.Release{}, err
	}

	rel := formula.Release{Version: opts.Version, Artifacts: make(map[formula.OS]formula.Artifact, len(platforms))}
	for i, os := range platforms {
		rel.Artifacts[os] = artifacts[i]
	}
	return rel, nil
}
