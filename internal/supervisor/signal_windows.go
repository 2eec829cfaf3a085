//go:build windows

package supervisor

import "os"

// Windows has no SIGTERM for arbitrary processes.
func terminateProcess(p *os.Process) error { return p.Kill() }
