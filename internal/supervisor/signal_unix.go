//go:build !windows

package supervisor

import (
	"os"
	"syscall"
)

func terminateProcess(p *os.Process) error { return p.Signal(syscall.SIGTERM) }
