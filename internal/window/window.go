// Package window opens the top-level surface that displays the backend UI.
//
// Three kinds exist: a Chrome/Chromium app window driven over the DevTools
// protocol (lorca), the user's default browser, and a headless window that only
// records what it was asked to load.
package window

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/skratchdot/open-golang/open"
	"github.com/zserge/lorca"
)

// Kinds accepted by New.
const (
	KindAuto     = "auto"
	KindChrome   = "chrome"
	KindBrowser  = "browser"
	KindHeadless = "headless"
)

// Window is the surface the application points at the backend.
type Window interface {
	// Load navigates the window to url.
	Load(url string) error
	// Done is closed when the user closed the window or Close was called.
	Done() <-chan struct{}
	// Close closes the window. It is safe to call more than once.
	Close() error
}

// Options configures New.
type Options struct {
	Kind   string
	Width  int
	Height int
	Log    zerolog.Logger
}

// Test seams.
var (
	locateChrome = lorca.LocateChrome
	newLorca     = lorca.New
	openURL      = open.Run
)

// ErrNoChrome is returned for KindChrome when no Chrome/Chromium is installed.
var ErrNoChrome = errors.New("window: no Chrome or Chromium installation found")

// New creates a window of the requested kind. KindAuto picks Chrome when it is
// installed and falls back to the default browser otherwise.
func New(opts Options) (Window, error) {
	switch opts.Kind {
	case KindAuto, "":
		if locateChrome() == "" {
			opts.Log.Info().Msg("chrome not found; using the default browser")
			return newBrowserWindow(opts.Log), nil
		}
		w, err := newChromeWindow(opts)
		if err != nil {
			opts.Log.Warn().Err(err).Msg("chrome window failed; using the default browser")
			return newBrowserWindow(opts.Log), nil
		}
		return w, nil
	case KindChrome:
		if locateChrome() == "" {
			return nil, ErrNoChrome
		}
		return newChromeWindow(opts)
	case KindBrowser:
		return newBrowserWindow(opts.Log), nil
	case KindHeadless:
		return NewHeadless(), nil
	default:
		return nil, fmt.Errorf("window: unknown kind %q", opts.Kind)
	}
}

// chromeWindow is an app-mode Chrome window.
type chromeWindow struct {
	ui   lorca.UI
	once sync.Once
	err  error
}

func newChromeWindow(opts Options) (*chromeWindow, error) {
	ui, err := newLorca("", "", opts.Width, opts.Height)
	if err != nil {
		return nil, fmt.Errorf("window: start chrome: %w", err)
	}
	return &chromeWindow{ui: ui}, nil
}

func (w *chromeWindow) Load(url string) error { return w.ui.Load(url) }

func (w *chromeWindow) Done() <-chan struct{} { return w.ui.Done() }

func (w *chromeWindow) Close() error {
	w.once.Do(func() { w.err = w.ui.Close() })
	return w.err
}

// browserWindow hands URLs to the system browser. The browser's lifetime is not
// observable, so Done only closes on Close.
type browserWindow struct {
	log  zerolog.Logger
	done chan struct{}
	once sync.Once
}

func newBrowserWindow(log zerolog.Logger) *browserWindow {
	return &browserWindow{log: log, done: make(chan struct{})}
}

func (w *browserWindow) Load(url string) error {
	w.log.Info().Str("url", url).Msg("opening in default browser")
	return openURL(url)
}

func (w *browserWindow) Done() <-chan struct{} { return w.done }

func (w *browserWindow) Close() error {
	w.once.Do(func() { close(w.done) })
	return nil
}

// Headless records loaded URLs without displaying anything.
type Headless struct {
	mu     sync.Mutex
	loads  []string
	done   chan struct{}
	once   sync.Once
	closed int
}

// NewHeadless returns an open headless window.
func NewHeadless() *Headless { return &Headless{done: make(chan struct{})} }

func (h *Headless) Load(url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return errors.New("window: closed")
	default:
	}
	h.loads = append(h.loads, url)
	return nil
}

func (h *Headless) Done() <-chan struct{} { return h.done }

func (h *Headless) Close() error {
	h.mu.Lock()
	h.closed++
	h.mu.Unlock()
	h.once.Do(func() { close(h.done) })
	return nil
}

// Loads returns every URL loaded so far.
func (h *Headless) Loads() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.loads...)
}

// Closes reports how many times Close was called.
func (h *Headless) Closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
