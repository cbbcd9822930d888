//go:build windows

package venv

import "os/exec"

// setProcessGroup is a no-op on Windows; process trees are terminated via
// the job the process belongs to when killed.
func setProcessGroup(_ *exec.Cmd) {}

// killProcessGroup kills the command's process.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
