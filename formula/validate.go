package formula

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// Validate checks the formula for structural problems. All problems are
// reported together.
func (f *Formula) Validate() error {
	var errs []error

	if f.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	switch {
	case f.Binary == "":
		errs = append(errs, errors.New("binary is required"))
	case strings.ContainsAny(f.Binary, `/\`) || f.Binary == "." || f.Binary == "..":
		errs = append(errs, fmt.Errorf("binary %q must be a plain file name", f.Binary))
	}
	if _, ok := f.Releases[Stable]; !ok {
		errs = append(errs, fmt.Errorf("release %q is required", Stable))
	}

	for _, ch := range f.channels() {
		rel := f.Releases[ch]
		if !ch.Known() {
			errs = append(errs, &ChannelError{Formula: f.Name, Channel: ch})
			continue
		}
		if rel.Version == "" {
			errs = append(errs, fmt.Errorf("%s: version is required", ch))
		}
		if len(rel.Artifacts) == 0 {
			errs = append(errs, fmt.Errorf("%s: at least one artifact is required", ch))
		}
		for _, os := range rel.Platforms() {
			if err := validateArtifact(os, rel.Artifacts[os]); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", ch, err))
			}
		}
	}
	errs = append(errs, f.validateAssetNames()...)

	return errors.Join(errs...)
}

// validateAssetNames requires devel assets to be published under the stable
// names. The rendered Ruby install step has a single bin.install per OS.
func (f *Formula) validateAssetNames() []error {
	stable, ok := f.Releases[Stable]
	if !ok {
		return nil
	}
	devel, ok := f.Releases[Devel]
	if !ok {
		return nil
	}
	var errs []error
	for _, os := range devel.Platforms() {
		s, ok := stable.Artifacts[os]
		if !ok {
			continue
		}
		if got, want := devel.Artifacts[os].AssetName(), s.AssetName(); got != want {
			errs = append(errs, fmt.Errorf("devel: %s asset %q must be named like the stable asset %q", os, got, want))
		}
	}
	return errs
}

func validateArtifact(os OS, a Artifact) error {
	if !os.Supported() {
		return &PlatformError{OS: os}
	}
	u, err := url.Parse(a.URL)
	if err != nil {
		return fmt.Errorf("%s: parse url: %w", os, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%s: url %q must be an absolute http(s) url", os, a.URL)
	}
	if a.SHA256 != strings.ToLower(a.SHA256) {
		return fmt.Errorf("%s: sha256 must be lowercase hex", os)
	}
	if err := a.Digest().Validate(); err != nil {
		return fmt.Errorf("%s: sha256 %q: %w", os, a.SHA256, err)
	}
	return nil
}

// Lint returns warnings that do not make the formula unusable.
func (f *Formula) Lint() []string {
	var warnings []string
	for _, ch := range f.channels() {
		rel := f.Releases[ch]
		if rel.Version != "" && !semver.IsValid(rel.Version) {
			warnings = append(warnings, fmt.Sprintf("%s: version %q is not a semver tag", ch, rel.Version))
		}
		for _, os := range SupportedOS() {
			if _, ok := rel.Artifacts[os]; !ok {
				warnings = append(warnings, fmt.Sprintf("%s: no artifact for %s", ch, os))
			}
		}
	}

	stable, hasStable := f.Releases[Stable]
	devel, hasDevel := f.Releases[Devel]
	if hasStable && hasDevel {
		if stable.Version == devel.Version {
			warnings = append(warnings, fmt.Sprintf("devel and stable share version %q", stable.Version))
		}
		for _, os := range stable.Platforms() {
			d, ok := devel.Artifacts[os]
			if !ok {
				continue
			}
			if d == stable.Artifacts[os] {
				warnings = append(warnings, fmt.Sprintf("devel artifact for %s is identical to stable", os))
			}
		}
	}
	return warnings
}

// channels returns the formula's channels, known ones first.
func (f *Formula) channels() []Channel {
	out := make([]Channel, 0, len(f.Releases))
	for _, ch := range Channels() {
		if _, ok := f.Releases[ch]; ok {
			out = append(out, ch)
		}
	}
	var unknown []Channel
	for ch := range f.Releases {
		if !ch.Known() {
			unknown = append(unknown, ch)
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return append(out, unknown...)
}
