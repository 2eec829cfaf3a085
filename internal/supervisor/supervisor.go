package supervisor

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Supervisor owns the backend's lifecycle. At most one child is live at a time.
type Supervisor struct {
	cfg        Config
	log        zerolog.Logger
	publisher  EventPublisher
	httpClient *http.Client

	mu       sync.Mutex
	proc     *Process
	endpoint Endpoint
	runtime  Runtime
	state    State
	err      string
}

// Result describes how a launch resolved.
type Result struct {
	State    State
	Endpoint Endpoint
	Runtime  Runtime
	PID      int
	Elapsed  time.Duration
}

// Snapshot is a read-only view of the supervisor state.
type Snapshot struct {
	State    State
	Endpoint Endpoint
	Runtime  Runtime
	PID      int
	Running  bool
	Err      string
}

// New constructs a Supervisor; zero Config fields take package defaults.
func New(cfg Config, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		cfg:        cfg.withDefaults(),
		log:        log.With().Str("component", "supervisor").Logger(),
		publisher:  noopPublisher{},
		httpClient: &http.Client{Timeout: 0}, // health checks carry their own deadlines
		state:      StateIdle,
	}
}

// SetPublisher installs an EventPublisher for emitting lifecycle events.
func (s *Supervisor) SetPublisher(p EventPublisher) {
	if p == nil {
		s.publisher = noopPublisher{}
		return
	}
	s.publisher = p
}

// Locator returns the runtime locator configured for this supervisor.
func (s *Supervisor) Locator() Locator {
	return Locator{
		Candidates: s.cfg.Candidates,
		VersionArg: s.cfg.VersionArg,
		Timeout:    s.cfg.ProbeTimeout,
		MinVersion: s.cfg.MinVersion,
		Log:        s.log,
	}
}

// Start locates a runtime, acquires an endpoint, spawns the backend and blocks
// until readiness resolves. A running backend is stopped first.
func (s *Supervisor) Start(ctx context.Context) (Result, error) {
	began := time.Now()
	if err := s.Stop(ctx); err != nil {
		return Result{State: StateFailed}, err
	}
	s.setState(StateStarting, "")

	rt, err := s.Locator().Locate(ctx)
	if err != nil {
		s.publisher.Publish(Event{Name: "runtime_missing", Fields: map[string]any{"error": err.Error()}})
		return s.fail(began, Result{}, err)
	}
	s.publisher.Publish(Event{Name: "runtime_found", Fields: map[string]any{"path": rt.Path, "version": rt.Version.String()}})

	ep, err := AcquireEndpoint(s.cfg.Host, s.cfg.PortStart, s.cfg.PortEnd)
	if err != nil {
		return s.fail(began, Result{Runtime: rt}, err)
	}

	env := make(map[string]string, len(s.cfg.Env)+2)
	for k, v := range s.cfg.Env {
		env[k] = v
	}
	env[s.cfg.HostEnv] = ep.Host
	env[s.cfg.PortEnv] = strconv.Itoa(ep.Port)

	cell := newReadyCell()
	matcher := lineMatcher{patterns: s.cfg.ReadyPatterns}
	var signalOnce sync.Once
	// signalled is set once a readiness line arms the grace timer; from then
	// on the launch resolves ready even if the child exits during the grace.
	var signalled atomic.Bool
	var pidv atomic.Int64
	onLine := func(stream Stream, line string) {
		if stream == StreamStderr {
			s.log.Warn().Str("stream", string(stream)).Int64("pid", pidv.Load()).Msg(line)
			return
		}
		s.log.Info().Str("stream", string(stream)).Int64("pid", pidv.Load()).Msg(line)
		if !matcher.Match(line) {
			return
		}
		signalOnce.Do(func() {
			signalled.Store(true)
			s.log.Debug().Dur("grace", s.cfg.GracePeriod).Msg("readiness line observed")
			s.publisher.Publish(Event{Name: "ready_signal", Fields: map[string]any{"line": line}})
			time.AfterFunc(s.cfg.GracePeriod, func() {
				cell.resolve(outcome{state: StateReady})
			})
		})
	}

	proc, err := Spawn(SpawnSpec{
		Runtime: rt,
		Script:  s.cfg.Script,
		Args:    s.cfg.Args,
		Dir:     s.cfg.Dir,
		Env:     env,
		OnLine:  onLine,
	})
	if err != nil {
		return s.fail(began, Result{Runtime: rt, Endpoint: ep}, err)
	}
	pid := proc.PID()
	pidv.Store(int64(pid))

	s.mu.Lock()
	s.proc = proc
	s.endpoint = ep
	s.runtime = rt
	s.mu.Unlock()
	backendUp.Set(1)
	s.log.Info().Int("pid", pid).Str("runtime", rt.Path).Str("script", s.cfg.Script).Str("url", ep.URL()).Msg("backend started")
	s.publisher.Publish(Event{Name: "spawn_start", Fields: map[string]any{"pid": pid, "host": ep.Host, "port": ep.Port}})
	go s.watchExit(proc)

	stop := make(chan struct{})
	defer close(stop)
	if !s.cfg.TolerateEarlyExit {
		go func() {
			select {
			case <-proc.Done():
				// Done closes after output is drained, so a readiness line
				// printed before exit has already set signalled.
				if signalled.Load() {
					s.log.Warn().Int("pid", pid).Msg("backend exited during readiness grace period")
					return
				}
				cell.resolve(outcome{state: StateFailed, err: backendExitedError{pid: pid, err: proc.Err(), tail: proc.StderrTail()}})
			case <-stop:
			}
		}()
	}
	if s.cfg.HealthPath != "" {
		go pollHealth(s.httpClient, ep.URL()+s.cfg.HealthPath, s.cfg.HealthInterval, cell, stop)
	}
	fallback := time.AfterFunc(s.cfg.FallbackTimeout, func() {
		cell.resolve(outcome{state: StateReadyByTimeout})
	})
	defer fallback.Stop()

	select {
	case <-cell.Done():
	case <-ctx.Done():
		cell.resolve(outcome{state: StateFailed, err: ctx.Err()})
	}
	o := cell.result()
	res := Result{State: o.state, Endpoint: ep, Runtime: rt, PID: pid, Elapsed: o.at.Sub(began)}
	if o.state == StateFailed {
		s.log.Error().Err(o.err).Int("pid", pid).Msg("backend failed to start")
		s.publisher.Publish(Event{Name: "spawn_failed", Fields: map[string]any{"pid": pid, "error": o.err.Error()}})
		if !proc.Exited() {
			// a launch that failed must not leave its child behind
			_ = s.Stop(context.Background())
		}
		return s.fail(began, res, o.err)
	}

	backendStartsTotal.WithLabelValues(string(o.state)).Inc()
	backendReadySeconds.Observe(res.Elapsed.Seconds())
	s.setState(o.state, "")
	if o.state == StateReadyByTimeout {
		s.log.Warn().Int("pid", pid).Dur("after", res.Elapsed).Msg("no readiness signal; proceeding optimistically")
		s.publisher.Publish(Event{Name: "spawn_timeout", Fields: map[string]any{"pid": pid, "url": ep.URL()}})
	} else {
		s.log.Info().Int("pid", pid).Dur("after", res.Elapsed).Str("url", ep.URL()).Msg("backend ready")
		s.publisher.Publish(Event{Name: "spawn_ready", Fields: map[string]any{"pid": pid, "url": ep.URL()}})
	}
	return res, nil
}

func (s *Supervisor) fail(began time.Time, res Result, err error) (Result, error) {
	res.State = StateFailed
	if res.Elapsed == 0 {
		res.Elapsed = time.Since(began)
	}
	backendStartsTotal.WithLabelValues(string(StateFailed)).Inc()
	s.setState(StateFailed, err.Error())
	return res, err
}

func (s *Supervisor) setState(st State, errMsg string) {
	s.mu.Lock()
	s.state = st
	s.err = errMsg
	s.mu.Unlock()
}

// watchExit releases the handle once the child exits.
func (s *Supervisor) watchExit(p *Process) {
	<-p.Done()
	s.mu.Lock()
	current := s.proc == p
	if current {
		s.proc = nil
	}
	s.mu.Unlock()
	if current {
		backendUp.Set(0)
	}
	ev := s.log.Info()
	if err := p.Err(); err != nil {
		ev = s.log.Warn().Err(err)
	}
	ev.Int("pid", p.PID()).Int("code", p.ExitCode()).Msg("backend exited")
	s.publisher.Publish(Event{Name: "backend_exit", Fields: map[string]any{"pid": p.PID(), "code": p.ExitCode()}})
}

// Terminate sends the termination signal to the running backend and returns
// without waiting. Calling it with no backend, or again for the same backend,
// is a no-op.
func (s *Supervisor) Terminate() {
	s.mu.Lock()
	p := s.proc
	s.mu.Unlock()
	if p == nil {
		return
	}
	if p.terminate() {
		s.log.Info().Int("pid", p.PID()).Msg("terminating backend")
		s.publisher.Publish(Event{Name: "backend_terminate", Fields: map[string]any{"pid": p.PID()}})
	}
}

// Stop terminates the backend and waits for it to exit, killing it after
// StopTimeout or when ctx is done. No backend is a no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	p := s.proc
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	s.Terminate()
	t := time.NewTimer(s.cfg.StopTimeout)
	defer t.Stop()
	select {
	case <-p.Done():
	case <-t.C:
		s.log.Warn().Int("pid", p.PID()).Dur("after", s.cfg.StopTimeout).Msg("backend ignored termination; killing")
		p.kill()
		<-p.Done()
	case <-ctx.Done():
		p.kill()
		<-p.Done()
	}
	s.mu.Lock()
	if s.proc == p {
		s.proc = nil
	}
	s.state = StateStopped
	s.mu.Unlock()
	backendUp.Set(0)
	s.publisher.Publish(Event{Name: "backend_stop", Fields: map[string]any{"pid": p.PID()}})
	return nil
}

// Ready reports whether the last launch resolved successfully and the backend is
// still running.
func (s *Supervisor) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil && (s.state == StateReady || s.state == StateReadyByTimeout)
}

// Snapshot returns a read-only view of the supervisor state.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{State: s.state, Endpoint: s.endpoint, Runtime: s.runtime, Err: s.err}
	if s.proc != nil {
		snap.PID = s.proc.PID()
		snap.Running = true
	}
	return snap
}
