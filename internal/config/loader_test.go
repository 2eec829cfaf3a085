package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `mode: development
script: app.py
runtime:
  candidates: [python3.12, python3]
  probe_timeout: 750ms
server:
  port_start: 6000
  port_end: 6010
  extra_env:
    FLASK_DEBUG: "0"
readiness:
  grace_period: 1s
window:
  kind: headless
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeDevelopment || cfg.Script != "app.py" || cfg.Server.PortStart != 6000 || cfg.Server.PortEnd != 6010 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Runtime.Candidates) != 2 || cfg.Runtime.Candidates[0] != "python3.12" {
		t.Fatalf("candidates: %v", cfg.Runtime.Candidates)
	}
	if cfg.Runtime.ProbeTimeout.Std() != 750*time.Millisecond || cfg.Readiness.GracePeriod.Std() != time.Second {
		t.Fatalf("durations: probe=%s grace=%s", cfg.Runtime.ProbeTimeout, cfg.Readiness.GracePeriod)
	}
	if cfg.Server.ExtraEnv["FLASK_DEBUG"] != "0" || cfg.Window.Kind != WindowHeadless {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	// untouched keys keep defaults
	if cfg.Readiness.FallbackTimeout.Std() != 5*time.Second || cfg.Window.Width != 1400 || cfg.Server.HostEnv != "WEB_UI_HOST" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"mode":"packaged","resources_dir":"/opt/app","readiness":{"fallback_timeout":"8s","grace_period":0.5,"health_path":"/health"},"control":{"enabled":true,"addr":"127.0.0.1:9000"}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ResourcesDir != "/opt/app" || cfg.Readiness.HealthPath != "/health" || !cfg.Control.Enabled || cfg.Control.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Readiness.FallbackTimeout.Std() != 8*time.Second || cfg.Readiness.GracePeriod.Std() != 500*time.Millisecond {
		t.Fatalf("durations: %s %s", cfg.Readiness.FallbackTimeout, cfg.Readiness.GracePeriod)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", `script = "serve.py"

[runtime]
min_version = "3.10"
required_modules = ["flask", "jinja2"]

[readiness]
stop_timeout = "3s"
tolerate_early_exit = true

[log]
level = "debug"
format = "json"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Script != "serve.py" || cfg.Runtime.MinVersion != "3.10" || len(cfg.Runtime.RequiredModules) != 2 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Readiness.StopTimeout.Std() != 3*time.Second || !cfg.Readiness.TolerateEarlyExit {
		t.Fatalf("readiness: %+v", cfg.Readiness)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log: %+v", cfg.Log)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestResolveAppliesEnv(t *testing.T) {
	env := map[string]string{
		EnvMode:      "development",
		EnvLogLevel:  "warn",
		EnvResources: "/srv/res",
	}
	cfg, err := Resolve("", func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Mode != ModeDevelopment || cfg.Log.Level != "warn" || cfg.ResourcesDir != "/srv/res" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}

	env[EnvMode] = "production"
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "mode: development\n")
	cfg, err = Resolve(p, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Mode != ModePackaged {
		t.Fatalf("env must override file, got %q", cfg.Mode)
	}

	if _, err := Resolve(filepath.Join(d, "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
