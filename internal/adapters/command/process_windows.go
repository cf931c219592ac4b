//go:build windows

package command

import "os/exec"

// configureProcAttr is a no-op on Windows (Setpgid not supported); the
// default cancel kills the direct child only.
func configureProcAttr(_ *exec.Cmd) {}
