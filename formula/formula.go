// Package formula describes a prebuilt-binary package: where each release
// channel's artifact lives per OS, its checksum, and the canonical name the
// binary is installed under.
package formula

import (
	"path"
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Artifact is the downloadable binary for one OS of one release.
type Artifact struct {
	URL    string `toml:"url" yaml:"url"`
	SHA256 string `toml:"sha256" yaml:"sha256"`
}

// Digest returns the artifact checksum as an OCI digest (sha256:<hex>).
// The result is not validated; see Formula.Validate.
func (a Artifact) Digest() digest.Digest {
	return digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(a.SHA256))
}

// AssetName returns the last path segment of the artifact URL.
func (a Artifact) AssetName() string {
	u := a.URL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return path.Base(u)
}

// Release is the record of one channel: a version tag and its per-OS artifacts.
// Version is an opaque tag and is never parsed for ordering.
type Release struct {
	Version   string          `toml:"version" yaml:"version"`
	Artifacts map[OS]Artifact `toml:"artifacts" yaml:"artifacts"`
}

// Platforms returns the OS keys of r in stable order.
func (r Release) Platforms() []OS {
	keys := make([]OS, 0, len(r.Artifacts))
	for k := range r.Artifacts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (r Release) clone() Release {
	out := Release{Version: r.Version}
	if r.Artifacts != nil {
		out.Artifacts = make(map[OS]Artifact, len(r.Artifacts))
		for k, v := range r.Artifacts {
			out.Artifacts[k] = v
		}
	}
	return out
}

// Formula is the declarative package record.
type Formula struct {
	Name     string `toml:"name" yaml:"name"`
	Desc     string `toml:"desc" yaml:"desc"`
	Homepage string `toml:"homepage" yaml:"homepage"`
	// Binary is the canonical executable name the artifact is installed as.
	Binary string `toml:"binary" yaml:"binary"`
	// Bottle is carried through to the rendered Homebrew formula only.
	Bottle   string              `toml:"bottle,omitempty" yaml:"bottle,omitempty"`
	Releases map[Channel]Release `toml:"releases" yaml:"releases"`
}

// Resolved is the single (url, sha256, version) triplet selected for an
// OS and channel.
type Resolved struct {
	Formula  string
	Binary   string
	Channel  Channel
	Version  string
	OS       OS
	Artifact Artifact
}

// AssetName returns the file name of the artifact as published.
func (r Resolved) AssetName() string {
	return r.Artifact.AssetName()
}

// Resolve selects the channel record, then indexes its artifacts by OS.
func (f *Formula) Resolve(os OS, ch Channel) (Resolved, error) {
	if ch == "" {
		ch = DefaultChannel
	}
	rel, ok := f.Releases[ch]
	if !ok {
		return Resolved{}, &ChannelError{Formula: f.Name, Channel: ch}
	}
	if !os.Supported() {
		return Resolved{}, &PlatformError{Formula: f.Name, Channel: ch, OS: os}
	}
	art, ok := rel.Artifacts[os]
	if !ok || art.URL == "" {
		return Resolved{}, &PlatformError{Formula: f.Name, Channel: ch, OS: os}
	}
	return Resolved{
		Formula:  f.Name,
		Binary:   f.Binary,
		Channel:  ch,
		Version:  rel.Version,
		OS:       os,
		Artifact: art,
	}, nil
}

// ResolveHost resolves for the running OS.
func (f *Formula) ResolveHost(ch Channel) (Resolved, error) {
	return f.Resolve(HostOS(), ch)
}

// Release returns the record for ch.
func (f *Formula) Release(ch Channel) (Release, bool) {
	r, ok := f.Releases[ch]
	return r, ok
}

// SetRelease replaces the record of one channel, as done when a release is cut.
func (f *Formula) SetRelease(ch Channel, r Release) {
	if f.Releases == nil {
		f.Releases = make(map[Channel]Release)
	}
	f.Releases[ch] = r.clone()
}

// Clone returns a deep copy of f.
func (f *Formula) Clone() *Formula {
	out := *f
	out.Releases = make(map[Channel]Release, len(f.Releases))
	for ch, r := range f.Releases {
		out.Releases[ch] = r.clone()
	}
	return &out
}
