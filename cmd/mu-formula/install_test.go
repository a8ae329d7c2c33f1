//go:build unix

package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelligent/mu-formula/formula"
)

const fakeMu = "#!/bin/sh\necho \"mu version 1.0.1\"\n"

func TestInstallLifecycle(t *testing.T) {
	host := formula.HostOS()
	if !host.Supported() {
		t.Skipf("host %s is not a supported platform", host)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(fakeMu))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	path := filepath.Join(dir, "mu-cli.yaml")
	f := formula.Default()
	f.SetRelease(formula.Stable, formula.Release{
		Version: "v1.0.1",
		Artifacts: map[formula.OS]formula.Artifact{
			host: {URL: srv.URL + "/download/v1.0.1/mu-" + host.GOOS() + "-amd64", SHA256: sum(fakeMu)},
		},
	})
	require.NoError(t, f.Save(path))

	out, _, err := executeIn(t, dir, "--formula", path, "install")
	require.NoError(t, err)
	assert.Contains(t, out, "installed mu-cli v1.0.1 (stable")
	assert.Contains(t, out, "self-test: mu version 1.0.1")

	bin := filepath.Join(dir, "bin", "mu-cli")
	st, err := os.Stat(bin)
	require.NoError(t, err)
	assert.NotZero(t, st.Mode()&0o111, "installed binary is executable")

	out, _, err = executeIn(t, dir, "--formula", path, "install")
	require.NoError(t, err)
	assert.Contains(t, out, "already installed")

	// upgrade stays on the channel recorded at install time.
	t.Setenv("MU_FORMULA_CHANNEL", "devel")
	out, _, err = executeIn(t, dir, "--formula", path, "upgrade")
	require.NoError(t, err)
	assert.Contains(t, out, "v1.0.1 (stable) is already installed")
	t.Setenv("MU_FORMULA_CHANNEL", "stable")

	out, _, err = executeIn(t, dir, "--formula", path, "test")
	require.NoError(t, err)
	assert.Equal(t, "mu version 1.0.1\n", out)

	out, _, err = executeIn(t, dir, "--formula", path, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "v1.0.1 (stable, "+host.String()+")")
	assert.NotContains(t, out, "changed since install")

	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho patched\n"), 0o755))
	out, _, err = executeIn(t, dir, "--formula", path, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "changed since install")

	out, _, err = executeIn(t, dir, "--formula", path, "uninstall")
	require.NoError(t, err)
	assert.Contains(t, out, "uninstalled mu-cli")
	_, err = os.Stat(bin)
	assert.True(t, os.IsNotExist(err))
}

func TestInstall_ChecksumMismatch(t *testing.T) {
	host := formula.HostOS()
	if !host.Supported() {
		t.Skipf("host %s is not a supported platform", host)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not the release"))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	path := filepath.Join(dir, "mu-cli.toml")
	f := formula.Default()
	f.SetRelease(formula.Stable, formula.Release{
		Version:   "v1.0.1",
		Artifacts: map[formula.OS]formula.Artifact{host: {URL: srv.URL + "/mu-" + host.GOOS() + "-amd64", SHA256: sum(fakeMu)}},
	})
	require.NoError(t, f.Save(path))

	_, _, err := executeIn(t, dir, "--formula", path, "install")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doesn't match expected")
	_, err = os.Stat(filepath.Join(dir, "bin", "mu-cli"))
	assert.True(t, os.IsNotExist(err))
}

func TestInstall_SelfTestFailure(t *testing.T) {
	host := formula.HostOS()
	if !host.Supported() {
		t.Skipf("host %s is not a supported platform", host)
	}
	const broken = "#!/bin/sh\nexit 3\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(broken))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	path := filepath.Join(dir, "mu-cli.toml")
	f := formula.Default()
	f.SetRelease(formula.Stable, formula.Release{
		Version:   "v1.0.1",
		Artifacts: map[formula.OS]formula.Artifact{host: {URL: srv.URL + "/mu-" + host.GOOS() + "-amd64", SHA256: sum(broken)}},
	})
	require.NoError(t, f.Save(path))

	_, stderr, err := executeIn(t, dir, "--formula", path, "install")
	require.NoError(t, err, "the install is kept")
	assert.Contains(t, stderr, "warning:")

	_, _, err = executeIn(t, dir, "--formula", path, "install", "--force", "--strict")
	require.Error(t, err)

	_, _, err = executeIn(t, dir, "--formula", path, "test")
	require.Error(t, err)
}
