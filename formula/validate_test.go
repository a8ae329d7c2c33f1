package formula

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(f *Formula)
		wantErr string
	}{
		{
			name:   "default",
			mutate: func(*Formula) {},
		},
		{
			name:    "missing name",
			mutate:  func(f *Formula) { f.Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "binary with separator",
			mutate:  func(f *Formula) { f.Binary = "bin/mu-cli" },
			wantErr: "plain file name",
		},
		{
			name:    "missing stable",
			mutate:  func(f *Formula) { delete(f.Releases, Stable) },
			wantErr: `release "stable" is required`,
		},
		{
			name: "missing version",
			mutate: func(f *Formula) {
				r := f.Releases[Devel]
				r.Version = ""
				f.Releases[Devel] = r
			},
			wantErr: "devel: version is required",
		},
		{
			name:    "unknown channel",
			mutate:  func(f *Formula) { f.Releases["nightly"] = f.Releases[Devel] },
			wantErr: `channel "nightly" not defined`,
		},
		{
			name: "unsupported os key",
			mutate: func(f *Formula) {
				f.Releases[Stable].Artifacts["windows"] = f.Releases[Stable].Artifacts[Linux]
			},
			wantErr: `platform "windows" not supported`,
		},
		{
			name: "relative url",
			mutate: func(f *Formula) {
				f.Releases[Stable].Artifacts[Linux] = Artifact{
					URL:    "mu-linux-amd64",
					SHA256: f.Releases[Stable].Artifacts[Linux].SHA256,
				}
			},
			wantErr: "absolute http(s) url",
		},
		{
			name: "short checksum",
			mutate: func(f *Formula) {
				a := f.Releases[Stable].Artifacts[MacOS]
				a.SHA256 = a.SHA256[:63]
				f.Releases[Stable].Artifacts[MacOS] = a
			},
			wantErr: "macos: sha256",
		},
		{
			name: "uppercase checksum",
			mutate: func(f *Formula) {
				a := f.Releases[Stable].Artifacts[MacOS]
				a.SHA256 = strings.ToUpper(a.SHA256)
				f.Releases[Stable].Artifacts[MacOS] = a
			},
			wantErr: "lowercase hex",
		},
		{
			name: "devel asset renamed",
			mutate: func(f *Formula) {
				a := f.Releases[Devel].Artifacts[Linux]
				a.URL = "https://github.com/stelligent/mu/releases/download/v1.1.1-develop/mu-linux-x86_64"
				f.Releases[Devel].Artifacts[Linux] = a
			},
			wantErr: `devel: linux asset "mu-linux-x86_64" must be named like the stable asset "mu-linux-amd64"`,
		},
		{
			name: "devel only os",
			mutate: func(f *Formula) {
				delete(f.Releases[Stable].Artifacts, MacOS)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := Default()
			tt.mutate(f)
			err := f.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	t.Parallel()
	f := Default()
	f.Name = ""
	f.Binary = ""
	err := f.Validate()
	if err == nil {
		t.Fatal("Validate() = nil")
	}
	for _, want := range []string{"name is required", "binary is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %q, missing %q", err, want)
		}
	}
}

func TestLint(t *testing.T) {
	t.Parallel()
	if got := Default().Lint(); len(got) != 0 {
		t.Errorf("Lint() on default = %v, want none", got)
	}

	f := Default()
	f.SetRelease(Devel, f.Releases[Stable])
	r := f.Releases[Stable]
	r.Version = "latest"
	f.Releases[Stable] = r

	warnings := strings.Join(f.Lint(), "\n")
	for _, want := range []string{
		`stable: version "latest" is not a semver tag`,
		"devel artifact for linux is identical to stable",
	} {
		if !strings.Contains(warnings, want) {
			t.Errorf("Lint() = %q, missing %q", warnings, want)
		}
	}
}
