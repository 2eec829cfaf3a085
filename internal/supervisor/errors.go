package supervisor

import (
	"errors"
	"fmt"
	"strings"
)

// runtimeNotFoundError signals that no candidate interpreter passed its probe.
type runtimeNotFoundError struct{ tried []string }

func (e runtimeNotFoundError) Error() string {
	if len(e.tried) == 0 {
		return "runtime not found: no candidates configured"
	}
	return "runtime not found: tried " + strings.Join(e.tried, ", ")
}

// IsRuntimeNotFound reports whether err means no usable runtime was located.
func IsRuntimeNotFound(err error) bool {
	var e runtimeNotFoundError
	return errors.As(err, &e)
}

// allPortsBusyError signals that every port of the scanned range had a listener.
type allPortsBusyError struct {
	host       string
	start, end int
}

func (e allPortsBusyError) Error() string {
	return fmt.Sprintf("no free port on %s in range %d-%d", e.host, e.start, e.end)
}

// IsAllPortsBusy reports whether err means the port scan found nothing free.
func IsAllPortsBusy(err error) bool {
	var e allPortsBusyError
	return errors.As(err, &e)
}

// spawnError wraps the OS error returned when the backend could not be started.
type spawnError struct {
	path string
	err  error
}

func (e spawnError) Error() string { return fmt.Sprintf("start backend %s: %v", e.path, e.err) }

func (e spawnError) Unwrap() error { return e.err }

// IsSpawnError reports whether err came from process creation itself.
func IsSpawnError(err error) bool {
	var e spawnError
	return errors.As(err, &e)
}

// backendExitedError signals that the child exited before readiness was declared.
type backendExitedError struct {
	pid  int
	err  error
	tail string
}

func (e backendExitedError) Error() string {
	status := "exit status 0"
	if e.err != nil {
		status = e.err.Error()
	}
	msg := fmt.Sprintf("backend pid %d exited before ready: %s", e.pid, status)
	if e.tail != "" {
		msg += "; stderr tail: " + e.tail
	}
	return msg
}

func (e backendExitedError) Unwrap() error { return e.err }

// IsBackendExited reports whether err means the backend died during startup.
func IsBackendExited(err error) bool {
	var e backendExitedError
	return errors.As(err, &e)
}
