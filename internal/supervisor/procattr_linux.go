package supervisor

import "syscall"

// sysProcAttr asks the kernel to SIGTERM the backend if the shell dies without
// running its shutdown routine.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}
}
