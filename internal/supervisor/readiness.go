package supervisor

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// State is the readiness state of a backend launch.
type State string

const (
	StateIdle           State = "idle"
	StateStarting       State = "starting"
	StateReady          State = "ready"
	StateReadyByTimeout State = "ready_by_timeout"
	StateFailed         State = "failed"
	StateStopped        State = "stopped"
)

// DefaultReadyPatterns are stdout substrings that mean the HTTP listener is bound.
var DefaultReadyPatterns = []string{"Running on", "Serving Flask app"}

// outcome is the single resolution of a launch.
type outcome struct {
	state State
	err   error
	at    time.Time
}

// readyCell resolves exactly once; later resolve calls are no-ops.
type readyCell struct {
	once sync.Once
	done chan struct{}
	res  outcome
}

func newReadyCell() *readyCell { return &readyCell{done: make(chan struct{})} }

// resolve records o if the cell is still open and reports whether it won.
func (c *readyCell) resolve(o outcome) bool {
	won := false
	c.once.Do(func() {
		if o.at.IsZero() {
			o.at = time.Now()
		}
		c.res = o
		won = true
		close(c.done)
	})
	return won
}

func (c *readyCell) Done() <-chan struct{} { return c.done }

// result must only be read after Done is closed.
func (c *readyCell) result() outcome { return c.res }

// lineMatcher reports whether an output line signals readiness.
type lineMatcher struct{ patterns []string }

func (m lineMatcher) Match(line string) bool {
	for _, p := range m.patterns {
		if p != "" && strings.Contains(line, p) {
			return true
		}
	}
	return false
}

// isHealthy checks if url answers 2xx within timeout.
func isHealthy(client *http.Client, url string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// pollHealth resolves the cell as ready on the first 2xx from url. It returns when
// the cell resolves or stop is closed.
func pollHealth(client *http.Client, url string, interval time.Duration, cell *readyCell, stop <-chan struct{}) {
	for {
		if isHealthy(client, url, time.Second) {
			cell.resolve(outcome{state: StateReady})
			return
		}
		select {
		case <-stop:
			return
		case <-cell.Done():
			return
		case <-time.After(interval):
		}
	}
}
