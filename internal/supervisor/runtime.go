package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultVersionArg   = "--version"
	defaultProbeTimeout = 5 * time.Second
	probeWaitDelay      = 500 * time.Millisecond
)

// DefaultCandidates is the probe order used when no candidates are configured.
var DefaultCandidates = []string{
	"python",
	"python3",
	"python3.12",
	"python3.11",
	"python3.10",
	"python3.9",
	"/usr/bin/python3",
	"/usr/local/bin/python3",
}

// Runtime is a resolved interpreter that answered its version probe.
type Runtime struct {
	Name    string  // candidate as configured
	Path    string  // resolved executable path
	Version Version // parsed from probe output; zero if unparseable
}

// Locator probes candidate interpreters in order.
type Locator struct {
	Candidates []string
	VersionArg string
	// Timeout bounds each probe; a probe that hangs counts as a failed candidate.
	Timeout time.Duration
	// MinVersion rejects candidates that report an older version (e.g. "3.9").
	// Candidates whose output has no parseable version are accepted. Empty disables.
	MinVersion string
	Log        zerolog.Logger
}

// Locate returns the first candidate whose probe exits 0 and does not report a
// version below MinVersion.
// Probing is sequential; worst-case latency is len(Candidates)*Timeout.
func (l Locator) Locate(ctx context.Context) (Runtime, error) {
	var min Version
	if strings.TrimSpace(l.MinVersion) != "" {
		v, ok := ParseVersion(l.MinVersion)
		if !ok {
			return Runtime{}, fmt.Errorf("invalid minimum runtime version %q", l.MinVersion)
		}
		min = v
	}
	tried := make([]string, 0, len(l.Candidates))
	for _, c := range l.Candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Runtime{}, err
		}
		tried = append(tried, c)
		rt, err := l.probe(ctx, c)
		if err != nil {
			l.Log.Debug().Str("candidate", c).Err(err).Msg("runtime probe failed")
			continue
		}
		if !min.IsZero() && rt.Version.IsZero() {
			l.Log.Debug().Str("candidate", c).Msg("runtime version unparseable; accepting on exit status")
		}
		if !min.IsZero() && !rt.Version.IsZero() && rt.Version.Less(min) {
			l.Log.Debug().Str("candidate", c).Str("version", rt.Version.String()).Str("min", min.String()).Msg("runtime too old")
			continue
		}
		l.Log.Info().Str("candidate", c).Str("path", rt.Path).Str("version", rt.Version.String()).Msg("runtime found")
		return rt, nil
	}
	return Runtime{}, runtimeNotFoundError{tried: tried}
}

func (l Locator) probe(ctx context.Context, name string) (Runtime, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	arg := l.VersionArg
	if arg == "" {
		arg = defaultVersionArg
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(pctx, name, arg)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = probeWaitDelay
	if err := cmd.Run(); err != nil {
		if errors.Is(pctx.Err(), context.DeadlineExceeded) {
			return Runtime{}, fmt.Errorf("probe timed out after %s", timeout)
		}
		return Runtime{}, err
	}
	v, _ := ParseVersion(out.String())
	return Runtime{Name: name, Path: cmd.Path, Version: v}, nil
}

// moduleCheckScript exits 0 when the module named by argv[1] is importable.
const moduleCheckScript = "import importlib.util,sys; sys.exit(0 if importlib.util.find_spec(sys.argv[1]) else 1)"

// MissingModules runs the runtime once per module and returns those that are not
// importable. A module whose check times out is reported missing.
func MissingModules(ctx context.Context, rt Runtime, modules []string, timeout time.Duration) ([]string, error) {
	if rt.Path == "" {
		return nil, errors.New("runtime path is empty")
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	var missing []string
	for _, m := range modules {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return missing, err
		}
		mctx, cancel := context.WithTimeout(ctx, timeout)
		cmd := exec.CommandContext(mctx, rt.Path, "-c", moduleCheckScript, m)
		cmd.WaitDelay = probeWaitDelay
		if err := cmd.Run(); err != nil {
			missing = append(missing, m)
		}
		cancel()
	}
	return missing, nil
}
