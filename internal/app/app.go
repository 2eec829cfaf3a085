// Package app wires the backend supervisor, the window and the control server
// into one application run.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"deskshell/internal/config"
	"deskshell/internal/httpapi"
	"deskshell/internal/supervisor"
	"deskshell/internal/window"
	"deskshell/pkg/types"
)

// Backend is the part of the supervisor the application drives.
type Backend interface {
	Start(ctx context.Context) (supervisor.Result, error)
	Stop(ctx context.Context) error
	Snapshot() supervisor.Snapshot
	Ready() bool
}

// Option customizes an App.
type Option func(*App)

// WithBackend replaces the supervisor built from the config.
func WithBackend(b Backend) Option { return func(a *App) { a.backend = b } }

// WithWindowFactory replaces window.New.
func WithWindowFactory(f func(window.Options) (window.Window, error)) Option {
	return func(a *App) { a.newWindow = f }
}

// App is the application context: it owns the config, logger, backend, window
// and control server for one run.
type App struct {
	cfg         config.Config
	log         zerolog.Logger
	backend     Backend
	newWindow   func(window.Options) (window.Window, error)
	offlinePath string
	stopTimeout time.Duration

	mu          sync.Mutex
	win         window.Window
	control     *httpapi.Server
	controlAddr string
	url         string
	offline     bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds an App from a validated config.
func New(cfg config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	a := &App{
		cfg:         cfg,
		log:         log.With().Str("component", "app").Logger(),
		newWindow:   window.New,
		stopTimeout: cfg.Readiness.StopTimeout.Std(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.backend == nil {
		sc, err := cfg.SupervisorConfig()
		if err != nil {
			return nil, fmt.Errorf("resolve backend paths: %w", err)
		}
		a.backend = supervisor.New(sc, log)
	}
	p, err := cfg.OfflinePagePath()
	if err != nil {
		return nil, fmt.Errorf("resolve offline page: %w", err)
	}
	a.offlinePath = p
	if a.stopTimeout <= 0 {
		a.stopTimeout = 2 * time.Second
	}
	return a, nil
}

// Run creates the window, starts the backend and points the window at it, or
// at the offline page when the backend cannot start. It returns after the window
// closes or ctx is done, with the application shut down.
func (a *App) Run(ctx context.Context) error {
	defer a.Shutdown("exit")

	if a.cfg.Control.Enabled {
		if err := a.startControl(ctx); err != nil {
			return err
		}
	}

	win, err := a.newWindow(window.Options{
		Kind:   a.cfg.Window.Kind,
		Width:  a.cfg.Window.Width,
		Height: a.cfg.Window.Height,
		Log:    a.log,
	})
	if err != nil {
		return fmt.Errorf("open window: %w", err)
	}
	a.mu.Lock()
	a.win = win
	a.mu.Unlock()

	startCtx, cancelStart := context.WithCancel(ctx)
	defer cancelStart()
	type started struct {
		res supervisor.Result
		err error
	}
	startc := make(chan started, 1)
	go func() {
		res, err := a.backend.Start(startCtx)
		startc <- started{res, err}
	}()

	var st started
	select {
	case st = <-startc:
	case <-win.Done():
		a.log.Info().Msg("window closed during startup")
		cancelStart()
		<-startc
		a.Shutdown("window closed")
		return nil
	case <-ctx.Done():
		cancelStart()
		<-startc
		a.Shutdown("signal")
		return nil
	}

	if st.err == nil && st.res.State == supervisor.StateReadyByTimeout {
		// no readiness signal; a window would only show the browser's own
		// connection error if nothing listens yet
		if err := dialEndpoint(st.res.Endpoint); err != nil {
			st.err = fmt.Errorf("backend not reachable after readiness timeout: %w", err)
		}
	}
	if st.err != nil {
		a.log.Error().Err(st.err).Str("state", string(st.res.State)).Msg("backend did not start; showing offline page")
		a.showOffline(win)
	} else {
		url := st.res.Endpoint.URL()
		a.mu.Lock()
		a.url = url
		a.mu.Unlock()
		a.log.Info().Str("url", url).Str("state", string(st.res.State)).Dur("after", st.res.Elapsed).Msg("loading backend UI")
		if err := win.Load(url); err != nil {
			a.log.Error().Err(err).Str("url", url).Msg("window failed to load backend UI")
			a.showOffline(win)
		}
	}

	select {
	case <-win.Done():
		a.Shutdown("window closed")
	case <-ctx.Done():
		a.Shutdown("signal")
	}
	return nil
}

// endpointDialTimeout bounds the reachability check after a readiness timeout.
const endpointDialTimeout = time.Second

func dialEndpoint(ep supervisor.Endpoint) error {
	conn, err := net.DialTimeout("tcp", ep.Addr(), endpointDialTimeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (a *App) showOffline(win window.Window) {
	a.mu.Lock()
	a.offline = true
	a.mu.Unlock()
	if err := win.Load(window.OfflineURL(a.offlinePath)); err != nil {
		a.log.Error().Err(err).Msg("window failed to load offline page")
	}
}

func (a *App) startControl(ctx context.Context) error {
	httpapi.SetLogger(a.log.With().Str("component", "control").Logger())
	if len(a.cfg.Control.CORSOrigins) > 0 {
		httpapi.SetCORSOrigins(a.cfg.Control.CORSOrigins)
	}
	srv := httpapi.NewServer(a.cfg.Control.Addr, httpapi.NewMux(a))
	addr, err := srv.Start(ctx)
	if err != nil {
		return fmt.Errorf("control server: %w", err)
	}
	a.mu.Lock()
	a.control = srv
	a.controlAddr = addr
	a.mu.Unlock()
	return nil
}

// Shutdown stops the backend, closes the window and stops the control server.
// Only the first call does anything; every lifecycle hook may call it.
func (a *App) Shutdown(reason string) error {
	a.shutdownOnce.Do(func() {
		a.log.Info().Str("reason", reason).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), a.stopTimeout+time.Second)
		defer cancel()

		var errs []error
		if err := a.backend.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop backend: %w", err))
		}
		a.mu.Lock()
		win, control := a.win, a.control
		a.mu.Unlock()
		if win != nil {
			if err := win.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close window: %w", err))
			}
		}
		if control != nil {
			if err := control.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("control server: %w", err))
			}
		}
		a.shutdownErr = errors.Join(errs...)
		if a.shutdownErr != nil {
			a.log.Warn().Err(a.shutdownErr).Msg("shutdown finished with errors")
		}
	})
	return a.shutdownErr
}

// ControlAddr returns the bound control server address, or "" when disabled.
func (a *App) ControlAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.controlAddr
}

// Status implements httpapi.Service.
func (a *App) Status() types.StatusResponse {
	snap := a.backend.Snapshot()
	a.mu.Lock()
	defer a.mu.Unlock()
	return types.StatusResponse{
		Mode:    string(a.cfg.Mode),
		State:   string(snap.State),
		Running: snap.Running,
		URL:     a.url,
		Host:    snap.Endpoint.Host,
		Port:    snap.Endpoint.Port,
		PID:     snap.PID,
		Runtime: types.RuntimeInfo{
			Name:    snap.Runtime.Name,
			Path:    snap.Runtime.Path,
			Version: runtimeVersion(snap.Runtime),
		},
		Offline: a.offline,
		Error:   snap.Err,
	}
}

// Ready implements httpapi.Service.
func (a *App) Ready() bool { return a.backend.Ready() }

// OfflinePage implements httpapi.Service.
func (a *App) OfflinePage() []byte { return window.OfflinePage(a.offlinePath) }

func runtimeVersion(rt supervisor.Runtime) string {
	if rt.Path == "" {
		return ""
	}
	return rt.Version.String()
}
