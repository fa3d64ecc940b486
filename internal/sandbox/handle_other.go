//go:build !unix

package sandbox

import (
	"errors"
	"os/exec"
)

func startGroup(cmd *exec.Cmd) (Handle, error) {
	return nil, errors.New("process-group execution is only supported on unix hosts")
}
