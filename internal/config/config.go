package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"deskshell/internal/common/fsutil"
	"deskshell/internal/supervisor"
)

// Mode selects where the entry script and working directory are resolved.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModePackaged    Mode = "packaged"
)

// Environment overrides, applied after the config file.
const (
	EnvMode      = "DESKSHELL_ENV"
	EnvLogLevel  = "DESKSHELL_LOG_LEVEL"
	EnvResources = "DESKSHELL_RESOURCES"
)

// Window kinds.
const (
	WindowAuto     = "auto"
	WindowChrome   = "chrome"
	WindowBrowser  = "browser"
	WindowHeadless = "headless"
)

// Config holds runtime parameters for the shell.
type Config struct {
	Mode         Mode   `json:"mode" yaml:"mode" toml:"mode"`
	ResourcesDir string `json:"resources_dir" yaml:"resources_dir" toml:"resources_dir"`
	Script       string `json:"script" yaml:"script" toml:"script"`

	Runtime   RuntimeConfig   `json:"runtime" yaml:"runtime" toml:"runtime"`
	Server    ServerConfig    `json:"server" yaml:"server" toml:"server"`
	Readiness ReadinessConfig `json:"readiness" yaml:"readiness" toml:"readiness"`
	Window    WindowConfig    `json:"window" yaml:"window" toml:"window"`
	Control   ControlConfig   `json:"control" yaml:"control" toml:"control"`
	Log       LogConfig       `json:"log" yaml:"log" toml:"log"`
}

// RuntimeConfig controls interpreter discovery.
type RuntimeConfig struct {
	Candidates      []string `json:"candidates" yaml:"candidates" toml:"candidates"`
	VersionArg      string   `json:"version_arg" yaml:"version_arg" toml:"version_arg"`
	ProbeTimeout    Duration `json:"probe_timeout" yaml:"probe_timeout" toml:"probe_timeout"`
	MinVersion      string   `json:"min_version" yaml:"min_version" toml:"min_version"`
	RequiredModules []string `json:"required_modules" yaml:"required_modules" toml:"required_modules"`
}

// ServerConfig is the endpoint and environment contract with the backend.
type ServerConfig struct {
	Host      string            `json:"host" yaml:"host" toml:"host"`
	PortStart int               `json:"port_start" yaml:"port_start" toml:"port_start"`
	PortEnd   int               `json:"port_end" yaml:"port_end" toml:"port_end"`
	HostEnv   string            `json:"host_env" yaml:"host_env" toml:"host_env"`
	PortEnv   string            `json:"port_env" yaml:"port_env" toml:"port_env"`
	ExtraEnv  map[string]string `json:"extra_env" yaml:"extra_env" toml:"extra_env"`
	Args      []string          `json:"args" yaml:"args" toml:"args"`
}

// ReadinessConfig tunes how a launch is declared ready.
type ReadinessConfig struct {
	Patterns          []string `json:"patterns" yaml:"patterns" toml:"patterns"`
	GracePeriod       Duration `json:"grace_period" yaml:"grace_period" toml:"grace_period"`
	FallbackTimeout   Duration `json:"fallback_timeout" yaml:"fallback_timeout" toml:"fallback_timeout"`
	HealthPath        string   `json:"health_path" yaml:"health_path" toml:"health_path"`
	HealthInterval    Duration `json:"health_interval" yaml:"health_interval" toml:"health_interval"`
	TolerateEarlyExit bool     `json:"tolerate_early_exit" yaml:"tolerate_early_exit" toml:"tolerate_early_exit"`
	StopTimeout       Duration `json:"stop_timeout" yaml:"stop_timeout" toml:"stop_timeout"`
}

// WindowConfig describes the top-level window.
type WindowConfig struct {
	Kind        string `json:"kind" yaml:"kind" toml:"kind"`
	Width       int    `json:"width" yaml:"width" toml:"width"`
	Height      int    `json:"height" yaml:"height" toml:"height"`
	OfflinePage string `json:"offline_page" yaml:"offline_page" toml:"offline_page"`
}

// ControlConfig enables the loopback status/metrics server.
type ControlConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Addr        string   `json:"addr" yaml:"addr" toml:"addr"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// Default returns a Config with every value set.
func Default() Config {
	return Config{
		Mode:   ModePackaged,
		Script: "run_ui.py",
		Runtime: RuntimeConfig{
			Candidates:      append([]string(nil), supervisor.DefaultCandidates...),
			VersionArg:      "--version",
			ProbeTimeout:    Duration(5 * time.Second),
			MinVersion:      "3.9",
			RequiredModules: []string{"flask"},
		},
		Server: ServerConfig{
			Host:      supervisor.DefaultHost,
			PortStart: supervisor.DefaultPortStart,
			PortEnd:   supervisor.DefaultPortEnd,
			HostEnv:   supervisor.DefaultHostEnv,
			PortEnv:   supervisor.DefaultPortEnv,
		},
		Readiness: ReadinessConfig{
			Patterns:        append([]string(nil), supervisor.DefaultReadyPatterns...),
			GracePeriod:     Duration(supervisor.DefaultGracePeriod),
			FallbackTimeout: Duration(supervisor.DefaultFallbackTimeout),
			HealthInterval:  Duration(200 * time.Millisecond),
			StopTimeout:     Duration(2 * time.Second),
		},
		Window: WindowConfig{
			Kind:        WindowAuto,
			Width:       1400,
			Height:      1000,
			OfflinePage: "offline.html",
		},
		Control: ControlConfig{
			Addr: "127.0.0.1:7371",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ApplyEnv overrides fields from environment variables read through getenv.
// DESKSHELL_ENV=development selects development mode; any other non-empty value
// selects packaged mode.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvMode)); v != "" {
		if strings.EqualFold(v, string(ModeDevelopment)) {
			c.Mode = ModeDevelopment
		} else {
			c.Mode = ModePackaged
		}
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(getenv(EnvResources)); v != "" {
		c.ResourcesDir = v
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeDevelopment, ModePackaged:
	default:
		return fmt.Errorf("mode: unknown value %q", c.Mode)
	}
	if strings.TrimSpace(c.Script) == "" {
		return fmt.Errorf("script: must not be empty")
	}
	if len(c.Runtime.Candidates) == 0 {
		return fmt.Errorf("runtime.candidates: at least one candidate required")
	}
	if c.Runtime.MinVersion != "" {
		if _, ok := supervisor.ParseVersion(c.Runtime.MinVersion); !ok {
			return fmt.Errorf("runtime.min_version: cannot parse %q", c.Runtime.MinVersion)
		}
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server.host: must not be empty")
	}
	if c.Server.PortStart <= 0 || c.Server.PortEnd < c.Server.PortStart || c.Server.PortEnd > 65535 {
		return fmt.Errorf("server: invalid port range %d-%d", c.Server.PortStart, c.Server.PortEnd)
	}
	if c.Server.HostEnv == "" || c.Server.PortEnv == "" {
		return fmt.Errorf("server: host_env and port_env must be set")
	}
	for name, d := range map[string]Duration{
		"runtime.probe_timeout":      c.Runtime.ProbeTimeout,
		"readiness.grace_period":     c.Readiness.GracePeriod,
		"readiness.fallback_timeout": c.Readiness.FallbackTimeout,
		"readiness.health_interval":  c.Readiness.HealthInterval,
		"readiness.stop_timeout":     c.Readiness.StopTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s: must not be negative", name)
		}
	}
	if c.Readiness.HealthPath != "" && !strings.HasPrefix(c.Readiness.HealthPath, "/") {
		return fmt.Errorf("readiness.health_path: must start with /")
	}
	switch c.Window.Kind {
	case WindowAuto, WindowChrome, WindowBrowser, WindowHeadless:
	default:
		return fmt.Errorf("window.kind: unknown value %q", c.Window.Kind)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window: invalid size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Control.Enabled {
		if _, _, err := net.SplitHostPort(c.Control.Addr); err != nil {
			return fmt.Errorf("control.addr: %w", err)
		}
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format: unknown value %q", c.Log.Format)
	}
	return nil
}

// BaseDir is where relative paths resolve and the backend runs: the current
// directory in development mode, the resources directory when packaged. An
// unset resources directory defaults to "resources" next to the executable.
func (c Config) BaseDir() (string, error) {
	if c.Mode == ModeDevelopment {
		return os.Getwd()
	}
	if c.ResourcesDir != "" {
		dir, err := fsutil.ExpandHome(c.ResourcesDir)
		if err != nil {
			return "", err
		}
		return filepath.Abs(dir)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), "resources"), nil
}

// ScriptPath returns the absolute path of the backend entry script.
func (c Config) ScriptPath() (string, error) {
	return c.resolve(c.Script)
}

// OfflinePagePath returns the absolute path of the offline page, or "" when
// none is configured.
func (c Config) OfflinePagePath() (string, error) {
	if c.Window.OfflinePage == "" {
		return "", nil
	}
	return c.resolve(c.Window.OfflinePage)
}

func (c Config) resolve(p string) (string, error) {
	p, err := fsutil.ExpandHome(p)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	base, err := c.BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, p), nil
}

// SupervisorConfig maps c onto supervisor.Config with resolved script path and
// working directory.
func (c Config) SupervisorConfig() (supervisor.Config, error) {
	script, err := c.ScriptPath()
	if err != nil {
		return supervisor.Config{}, err
	}
	dir, err := c.BaseDir()
	if err != nil {
		return supervisor.Config{}, err
	}
	return supervisor.Config{
		Candidates:        c.Runtime.Candidates,
		VersionArg:        c.Runtime.VersionArg,
		ProbeTimeout:      c.Runtime.ProbeTimeout.Std(),
		MinVersion:        c.Runtime.MinVersion,
		Host:              c.Server.Host,
		PortStart:         c.Server.PortStart,
		PortEnd:           c.Server.PortEnd,
		HostEnv:           c.Server.HostEnv,
		PortEnv:           c.Server.PortEnv,
		Env:               c.Server.ExtraEnv,
		Script:            script,
		Args:              c.Server.Args,
		Dir:               dir,
		ReadyPatterns:     c.Readiness.Patterns,
		GracePeriod:       c.Readiness.GracePeriod.Std(),
		FallbackTimeout:   c.Readiness.FallbackTimeout.Std(),
		HealthPath:        c.Readiness.HealthPath,
		HealthInterval:    c.Readiness.HealthInterval.Std(),
		TolerateEarlyExit: c.Readiness.TolerateEarlyExit,
		StopTimeout:       c.Readiness.StopTimeout.Std(),
	}, nil
}
