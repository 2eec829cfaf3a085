package supervisor

import "time"

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultPortStart       = 5000
	DefaultPortEnd         = 5100
	DefaultHostEnv         = "WEB_UI_HOST"
	DefaultPortEnv         = "WEB_UI_PORT"
	DefaultGracePeriod     = 2 * time.Second
	DefaultFallbackTimeout = 5 * time.Second
	defaultStopTimeout     = 2 * time.Second
	defaultHealthInterval  = 200 * time.Millisecond
)

// Config encapsulates all tunables for Supervisor construction (no envs; set by callers).
type Config struct {
	// Runtime discovery
	Candidates   []string
	VersionArg   string
	ProbeTimeout time.Duration
	MinVersion   string

	// Endpoint and env contract
	Host      string
	PortStart int
	PortEnd   int
	HostEnv   string
	PortEnv   string
	Env       map[string]string

	// Entry script; path and working dir are resolved by the caller.
	Script string
	Args   []string
	Dir    string

	// Readiness
	ReadyPatterns   []string
	GracePeriod     time.Duration
	FallbackTimeout time.Duration
	// HealthPath, when set, is polled on the backend; a 2xx declares readiness.
	HealthPath     string
	HealthInterval time.Duration
	// TolerateEarlyExit keeps waiting for the fallback timeout when the backend
	// exits before readiness instead of failing the launch.
	TolerateEarlyExit bool

	StopTimeout time.Duration
}

// withDefaults returns a copy of c with zero fields filled.
func (c Config) withDefaults() Config {
	if len(c.Candidates) == 0 {
		c.Candidates = append([]string(nil), DefaultCandidates...)
	}
	if c.VersionArg == "" {
		c.VersionArg = defaultVersionArg
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.PortStart == 0 && c.PortEnd == 0 {
		c.PortStart, c.PortEnd = DefaultPortStart, DefaultPortEnd
	}
	if c.HostEnv == "" {
		c.HostEnv = DefaultHostEnv
	}
	if c.PortEnv == "" {
		c.PortEnv = DefaultPortEnv
	}
	if len(c.ReadyPatterns) == 0 {
		c.ReadyPatterns = append([]string(nil), DefaultReadyPatterns...)
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.FallbackTimeout <= 0 {
		c.FallbackTimeout = DefaultFallbackTimeout
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = defaultHealthInterval
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}
	return c
}
