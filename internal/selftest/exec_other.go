//go:build !unix

package selftest

import "os/exec"

// setGracefulShutdown is a no-op on non-Unix platforms; cmd.Cancel defaults
// to os.Process.Kill.
func setGracefulShutdown(cmd *exec.Cmd) {
	_ = cmd
}
