package formula

import (
	"errors"
	"runtime"
	"testing"
)

func TestParseOS(t *testing.T) {
	tests := []struct {
		in   string
		want OS
	}{
		{"macos", MacOS},
		{"darwin", MacOS},
		{"OSX", MacOS},
		{" linux ", Linux},
		{"Linux", Linux},
	}
	for _, tc := range tests {
		got, err := ParseOS(tc.in)
		if err != nil {
			t.Errorf("ParseOS(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseOS(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseOS_Empty(t *testing.T) {
	got, err := ParseOS("")
	if err != nil {
		t.Fatalf("ParseOS(\"\") error = %v", err)
	}
	if got != HostOS() {
		t.Errorf("ParseOS(\"\") = %q, want host %q", got, HostOS())
	}
}

func TestParseOS_Unsupported(t *testing.T) {
	for _, in := range []string{"windows", "plan9", "freebsd"} {
		if _, err := ParseOS(in); !errors.Is(err, ErrUnsupportedPlatform) {
			t.Errorf("ParseOS(%q) error = %v, want ErrUnsupportedPlatform", in, err)
		}
	}
}

func TestHostOS(t *testing.T) {
	want := map[string]OS{"darwin": MacOS, "linux": Linux}[runtime.GOOS]
	if want == "" {
		want = OS(runtime.GOOS)
	}
	if got := HostOS(); got != want {
		t.Errorf("HostOS() = %q, want %q", got, want)
	}
}

func TestOS_GOOS(t *testing.T) {
	tests := []struct {
		in   OS
		want string
	}{
		{MacOS, "darwin"},
		{Linux, "linux"},
		{OS("windows"), "windows"}, // passthrough
	}
	for _, tc := range tests {
		if got := tc.in.GOOS(); got != tc.want {
			t.Errorf("%q.GOOS() = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseChannel(t *testing.T) {
	tests := []struct {
		in      string
		want    Channel
		wantErr bool
	}{
		{"", Stable, false},
		{"stable", Stable, false},
		{"master", Stable, false},
		{"devel", Devel, false},
		{"DEVELOP", Devel, false},
		{"development", Devel, false},
		{"nightly", "", true},
	}
	for _, tc := range tests {
		got, err := ParseChannel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseChannel(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseChannel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestChannelFor(t *testing.T) {
	if got := ChannelFor(false); got != Stable {
		t.Errorf("ChannelFor(false) = %q, want stable", got)
	}
	if got := ChannelFor(true); got != Devel {
		t.Errorf("ChannelFor(true) = %q, want devel", got)
	}
}
