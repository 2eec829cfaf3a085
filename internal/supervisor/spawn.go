package supervisor

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// pipeWaitDelay bounds how long Wait keeps copying output after the child exits,
	// in case a grandchild still holds the pipes open.
	pipeWaitDelay = 2 * time.Second
	tailLines     = 50
	maxLineBytes  = 64 * 1024
)

// Stream names which child output a line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// SpawnSpec describes one backend launch. Script and Dir are chosen by the caller.
type SpawnSpec struct {
	Runtime Runtime
	Script  string
	Args    []string
	Dir     string
	// Env overrides the inherited environment; keys present here win.
	Env map[string]string
	// OnLine receives every complete output line. It may be called concurrently
	// for stdout and stderr.
	OnLine func(Stream, string)
}

// Process is the exclusively-owned handle of a spawned backend.
type Process struct {
	cmd     *exec.Cmd
	pid     int
	started time.Time

	done    chan struct{}
	exitErr error

	stdoutTail *tailBuffer
	stderrTail *tailBuffer

	termOnce sync.Once
}

// Spawn starts the backend with captured standard streams.
func Spawn(spec SpawnSpec) (*Process, error) {
	path := spec.Runtime.Path
	if path == "" {
		path = spec.Runtime.Name
	}
	if path == "" {
		return nil, spawnError{path: "", err: errors.New("runtime path is empty")}
	}
	args := make([]string, 0, len(spec.Args)+1)
	if spec.Script != "" {
		args = append(args, spec.Script)
	}
	args = append(args, spec.Args...)

	cmd := exec.Command(path, args...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(os.Environ(), spec.Env)
	cmd.SysProcAttr = sysProcAttr()
	cmd.WaitDelay = pipeWaitDelay

	p := &Process{
		cmd:        cmd,
		done:       make(chan struct{}),
		stdoutTail: newTailBuffer(tailLines),
		stderrTail: newTailBuffer(tailLines),
	}
	onLine := spec.OnLine
	if onLine == nil {
		onLine = func(Stream, string) {}
	}
	stdout := &lineWriter{emit: func(line string) {
		p.stdoutTail.add(line)
		onLine(StreamStdout, line)
	}}
	stderr := &lineWriter{emit: func(line string) {
		p.stderrTail.add(line)
		onLine(StreamStderr, line)
	}}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, spawnError{path: path, err: err}
	}
	p.pid = cmd.Process.Pid
	p.started = time.Now()

	go func() {
		err := cmd.Wait()
		stdout.Flush()
		stderr.Flush()
		p.exitErr = err
		close(p.done)
	}()
	return p, nil
}

// PID returns the child's process id.
func (p *Process) PID() int { return p.pid }

// Done is closed once the child has exited and its output is drained.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the child has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Err returns the Wait error; only meaningful after Done is closed.
func (p *Process) Err() error {
	if !p.Exited() {
		return nil
	}
	return p.exitErr
}

// ExitCode returns the exit status, or -1 while running or when killed by a signal.
func (p *Process) ExitCode() int {
	if !p.Exited() || p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// StdoutTail and StderrTail return the last captured lines.
func (p *Process) StdoutTail() string { return p.stdoutTail.String() }
func (p *Process) StderrTail() string { return p.stderrTail.String() }

// terminate delivers the termination signal at most once. It reports whether a
// signal was sent by this call.
func (p *Process) terminate() bool {
	sent := false
	p.termOnce.Do(func() {
		if p.Exited() {
			return
		}
		_ = terminateProcess(p.cmd.Process)
		sent = true
	})
	return sent
}

// kill force-stops the child.
func (p *Process) kill() {
	if p.Exited() {
		return
	}
	_ = p.cmd.Process.Kill()
}

// mergeEnv returns base with every key of overrides replaced; overrides are
// appended in sorted order.
func mergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		k := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k = kv[:i]
		}
		if _, ok := overrides[k]; ok {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}

// lineWriter splits written bytes into lines and emits each complete one.
type lineWriter struct {
	mu   sync.Mutex
	buf  []byte
	emit func(string)
}

func (lw *lineWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		lw.emitLocked(lw.buf[:idx])
		lw.buf = lw.buf[idx+1:]
	}
	if len(lw.buf) > maxLineBytes {
		lw.emitLocked(lw.buf)
		lw.buf = nil
	}
	return len(p), nil
}

// Flush emits a trailing partial line, if any.
func (lw *lineWriter) Flush() {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if len(lw.buf) > 0 {
		lw.emitLocked(lw.buf)
		lw.buf = nil
	}
}

func (lw *lineWriter) emitLocked(b []byte) {
	line := strings.TrimRight(string(b), "\r")
	if line == "" {
		return
	}
	lw.emit(line)
}

// tailBuffer keeps the last n lines in a ring.
type tailBuffer struct {
	mu    sync.Mutex
	ring  []string
	idx   int
	count int
}

func newTailBuffer(n int) *tailBuffer { return &tailBuffer{ring: make([]string, n)} }

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	t.ring[t.idx] = line
	t.idx = (t.idx + 1) % len(t.ring)
	if t.count < len(t.ring) {
		t.count++
	}
	t.mu.Unlock()
}

func (t *tailBuffer) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, t.count)
	if t.count == len(t.ring) {
		for i := 0; i < t.count; i++ {
			out[i] = t.ring[(t.idx+i)%len(t.ring)]
		}
	} else {
		copy(out, t.ring[:t.count])
	}
	return out
}

func (t *tailBuffer) String() string { return strings.Join(t.lines(), "\n") }
