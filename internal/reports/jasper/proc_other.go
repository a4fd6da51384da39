//go:build !unix

package jasper

import "os/exec"

func configureProcess(cmd *exec.Cmd) {}
