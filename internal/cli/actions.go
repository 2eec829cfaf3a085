package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"deskshell/internal/app"
	"deskshell/internal/common/fsutil"
	"deskshell/internal/config"
	"deskshell/internal/supervisor"
)

// Function variables allow tests to stub the command actions.
var (
	fnRunApp = runApp
	fnProbe  = probe
	fnDoctor = doctor
	fnPort   = port
)

// runApp runs the desktop shell until the window closes or SIGINT/SIGTERM.
func runApp(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

func locator(cfg config.Config, log zerolog.Logger) supervisor.Locator {
	return supervisor.Locator{
		Candidates: cfg.Runtime.Candidates,
		VersionArg: cfg.Runtime.VersionArg,
		Timeout:    cfg.Runtime.ProbeTimeout.Std(),
		MinVersion: cfg.Runtime.MinVersion,
		Log:        log,
	}
}

// probe prints the interpreter the shell would use.
func probe(ctx context.Context, cfg config.Config, log zerolog.Logger, out io.Writer) error {
	rt, err := locator(cfg, log).Locate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\t%s\t%s\n", rt.Name, rt.Path, rt.Version)
	return nil
}

// doctor checks everything a launch needs and prints one line per check.
func doctor(ctx context.Context, cfg config.Config, log zerolog.Logger, out io.Writer) error {
	failed := 0
	check := func(ok bool, name, detail string) {
		mark := "ok  "
		if !ok {
			mark = "FAIL"
			failed++
		}
		fmt.Fprintf(out, "[%s] %-16s %s\n", mark, name, detail)
	}

	rt, err := locator(cfg, log).Locate(ctx)
	if err != nil {
		check(false, "runtime", err.Error())
	} else {
		check(true, "runtime", fmt.Sprintf("%s (%s)", rt.Path, rt.Version))
		missing, err := supervisor.MissingModules(ctx, rt, cfg.Runtime.RequiredModules, cfg.Runtime.ProbeTimeout.Std())
		switch {
		case err != nil:
			check(false, "modules", err.Error())
		case len(missing) > 0:
			check(false, "modules", fmt.Sprintf("missing: %v", missing))
		default:
			check(true, "modules", fmt.Sprintf("%v", cfg.Runtime.RequiredModules))
		}
	}

	if script, err := cfg.ScriptPath(); err != nil {
		check(false, "script", err.Error())
	} else {
		check(fsutil.IsFile(script), "script", script)
	}

	if ep, err := supervisor.AcquireEndpoint(cfg.Server.Host, cfg.Server.PortStart, cfg.Server.PortEnd); err != nil {
		check(false, "port", err.Error())
	} else {
		check(true, "port", ep.URL())
	}

	if page, err := cfg.OfflinePagePath(); err != nil {
		check(false, "offline page", err.Error())
	} else if page == "" || !fsutil.IsFile(page) {
		fmt.Fprintf(out, "[info] %-16s built-in page\n", "offline page")
	} else {
		fmt.Fprintf(out, "[info] %-16s %s\n", "offline page", page)
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

// port prints the URL the backend would be given.
func port(_ context.Context, cfg config.Config, _ zerolog.Logger, out io.Writer) error {
	ep, err := supervisor.AcquireEndpoint(cfg.Server.Host, cfg.Server.PortStart, cfg.Server.PortEnd)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, ep.URL())
	return nil
}
