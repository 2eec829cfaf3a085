package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"deskshell/internal/config"
)

// withCLIStubs swaps the action functions for the duration of a test.
func withCLIStubs(t *testing.T, stubs func()) {
	t.Helper()
	oldRun, oldProbe, oldDoctor, oldPort := fnRunApp, fnProbe, fnDoctor, fnPort
	t.Cleanup(func() {
		fnRunApp, fnProbe, fnDoctor, fnPort = oldRun, oldProbe, oldDoctor, oldPort
	})
	stubs()
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvMode, config.EnvLogLevel, config.EnvResources} {
		t.Setenv(k, "")
	}
}

func run(args ...string) (int, string, string) {
	var out, errOut bytes.Buffer
	code := MainWithArgs(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestMainWithArgs_DefaultRunsApp(t *testing.T) {
	clearEnv(t)
	var got config.Config
	calls := 0
	withCLIStubs(t, func() {
		fnRunApp = func(_ context.Context, cfg config.Config, _ zerolog.Logger) error {
			calls++
			got = cfg
			return nil
		}
	})
	code, _, _ := run()
	require.Equal(t, 0, code)
	require.Equal(t, 1, calls)
	require.Equal(t, config.ModePackaged, got.Mode)

	code, _, _ = run("run")
	require.Equal(t, 0, code)
	require.Equal(t, 2, calls)
}

func TestMainWithArgs_FlagsOverrideConfig(t *testing.T) {
	clearEnv(t)
	var got config.Config
	withCLIStubs(t, func() {
		fnRunApp = func(_ context.Context, cfg config.Config, _ zerolog.Logger) error {
			got = cfg
			return nil
		}
	})
	code, _, _ := run("--dev", "--log-level", "debug", "--log-format", "json", "run")
	require.Equal(t, 0, code)
	require.Equal(t, config.ModeDevelopment, got.Mode)
	require.Equal(t, "debug", got.Log.Level)
	require.Equal(t, "json", got.Log.Format)
}

func TestMainWithArgs_EnvSelectsDevelopment(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvMode, "Development")
	var got config.Config
	withCLIStubs(t, func() {
		fnRunApp = func(_ context.Context, cfg config.Config, _ zerolog.Logger) error {
			got = cfg
			return nil
		}
	})
	code, _, _ := run()
	require.Equal(t, 0, code)
	require.Equal(t, config.ModeDevelopment, got.Mode)
}

func TestMainWithArgs_LoadsConfigFile(t *testing.T) {
	clearEnv(t)
	p := filepath.Join(t.TempDir(), "deskshell.yaml")
	require.NoError(t, os.WriteFile(p, []byte("script: app.py\nserver:\n  port_start: 6100\n  port_end: 6110\nwindow:\n  kind: headless\n"), 0o644))
	var got config.Config
	withCLIStubs(t, func() {
		fnRunApp = func(_ context.Context, cfg config.Config, _ zerolog.Logger) error {
			got = cfg
			return nil
		}
	})
	code, _, _ := run("-c", p)
	require.Equal(t, 0, code)
	require.Equal(t, "app.py", got.Script)
	require.Equal(t, 6100, got.Server.PortStart)
	require.Equal(t, config.WindowHeadless, got.Window.Kind)
}

func TestMainWithArgs_Errors(t *testing.T) {
	clearEnv(t)
	withCLIStubs(t, func() {
		fnRunApp = func(context.Context, config.Config, zerolog.Logger) error { return errors.New("no window") }
	})
	code, _, errOut := run()
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "no window")

	code, _, _ = run("bogus")
	require.Equal(t, 1, code)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server:\n  port_start: 7000\n  port_end: 6000\n"), 0o644))
	code, _, errOut = run("-c", bad)
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "config")

	code, _, _ = run("--log-level", "loud")
	require.Equal(t, 1, code)
}

func TestMainWithArgs_HelpAndCompletion(t *testing.T) {
	clearEnv(t)
	code, out, _ := run("--help")
	require.Equal(t, 0, code)
	require.Contains(t, out, "doctor")

	code, out, _ = run("completion", "bash")
	require.Equal(t, 0, code)
	require.Contains(t, out, "deskshell")
}

func TestSubcommandsReachActions(t *testing.T) {
	clearEnv(t)
	var calls []string
	stub := func(name string) func(context.Context, config.Config, zerolog.Logger, io.Writer) error {
		return func(_ context.Context, _ config.Config, _ zerolog.Logger, out io.Writer) error {
			calls = append(calls, name)
			_, err := io.WriteString(out, name+"\n")
			return err
		}
	}
	withCLIStubs(t, func() {
		fnProbe = stub("probe")
		fnDoctor = stub("doctor")
		fnPort = stub("port")
	})
	for _, c := range []string{"probe", "doctor", "port"} {
		code, out, _ := run(c)
		require.Equal(t, 0, code, c)
		require.Equal(t, c+"\n", out)
	}
	require.Equal(t, []string{"probe", "doctor", "port"}, calls)
}

// writeFakeRuntime writes a shell script that answers the version probe and
// reports only flask as importable.
func writeFakeRuntime(t *testing.T, version string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script runtime")
	}
	p := filepath.Join(t.TempDir(), "fakepython")
	script := `#!/bin/sh
if [ "$1" = "--version" ]; then echo "Python ` + version + `"; exit 0; fi
if [ "$1" = "-c" ] && [ "$3" = "flask" ]; then exit 0; fi
exit 1
`
	require.NoError(t, os.WriteFile(p, []byte(script), 0o755))
	return p
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "deskshell.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestProbePrintsRuntime(t *testing.T) {
	clearEnv(t)
	py := writeFakeRuntime(t, "3.11.4")
	cfg := writeConfig(t, "runtime:\n  candidates: [\"/nonexistent/python\", \""+py+"\"]\n")
	code, out, errOut := run("-c", cfg, "probe")
	require.Equal(t, 0, code, errOut)
	fields := strings.Split(strings.TrimSpace(out), "\t")
	require.Len(t, fields, 3)
	require.Equal(t, py, fields[0])
	require.Equal(t, "3.11.4", fields[2])
}

func TestProbeRejectsOldRuntime(t *testing.T) {
	clearEnv(t)
	py := writeFakeRuntime(t, "3.6.9")
	cfg := writeConfig(t, "runtime:\n  candidates: [\""+py+"\"]\n")
	code, _, errOut := run("-c", cfg, "probe")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "runtime not found")
}

func TestDoctor(t *testing.T) {
	clearEnv(t)
	py := writeFakeRuntime(t, "3.12.1")
	res := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(res, "run_ui.py"), []byte("print('hi')\n"), 0o644))
	cfg := writeConfig(t, "resources_dir: "+res+"\nruntime:\n  candidates: [\""+py+"\"]\n  required_modules: [flask]\nserver:\n  port_start: 38900\n  port_end: 38999\n")
	code, out, errOut := run("-c", cfg, "doctor")
	require.Equal(t, 0, code, out+errOut)
	require.Contains(t, out, "[ok  ] runtime")
	require.Contains(t, out, "[ok  ] modules")
	require.Contains(t, out, "[ok  ] script")
	require.Contains(t, out, "built-in page")

	cfg = writeConfig(t, "resources_dir: "+res+"\nscript: missing.py\nruntime:\n  candidates: [\""+py+"\"]\n  required_modules: [flask, webview]\nserver:\n  port_start: 38900\n  port_end: 38999\n")
	code, out, errOut = run("-c", cfg, "doctor")
	require.Equal(t, 1, code)
	require.Contains(t, out, "[FAIL] modules")
	require.Contains(t, out, "webview")
	require.Contains(t, out, "[FAIL] script")
	require.Contains(t, errOut, "2 check(s) failed")
}

func TestPortPrintsURL(t *testing.T) {
	clearEnv(t)
	cfg := writeConfig(t, "server:\n  host: 127.0.0.1\n  port_start: 38800\n  port_end: 38899\n")
	code, out, errOut := run("-c", cfg, "port")
	require.Equal(t, 0, code, errOut)
	require.True(t, strings.HasPrefix(out, "http://127.0.0.1:388"), out)
}
