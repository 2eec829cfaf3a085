package main

// fake_backend stands in for both the interpreter and the backend script.
// With --version it answers like an interpreter; otherwise it behaves like a
// backend web server, driven by FAKE_* environment variables.

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func envDur(key string) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	return d
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		v := os.Getenv("FAKE_VERSION")
		if v == "" {
			v = "Python 3.11.4"
		}
		fmt.Println(v)
		return
	}

	host := os.Getenv("WEB_UI_HOST")
	port := os.Getenv("WEB_UI_PORT")
	addr := net.JoinHostPort(host, port)

	if os.Getenv("FAKE_ENV_DUMP") == "1" {
		wd, _ := os.Getwd()
		script := ""
		if len(os.Args) > 1 {
			script = os.Args[1]
		}
		fmt.Printf("env host=%s port=%s extra=%s\n", host, port, os.Getenv("FAKE_EXTRA"))
		fmt.Printf("cwd %s\n", wd)
		fmt.Printf("script %s\n", script)
	}
	fmt.Fprintln(os.Stderr, "fake backend booting")

	if code := os.Getenv("FAKE_EXIT_CODE"); code != "" && os.Getenv("FAKE_READY_LINE") == "none" {
		time.Sleep(envDur("FAKE_EXIT_AFTER"))
		var n int
		fmt.Sscanf(code, "%d", &n)
		fmt.Fprintln(os.Stderr, "fatal: cannot import flask")
		os.Exit(n)
	}

	var srv *http.Server
	if os.Getenv("FAKE_SERVE") == "1" {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		srv = &http.Server{Addr: addr, Handler: mux}
		go func() { _ = srv.ListenAndServe() }()
	}

	sigCh := make(chan os.Signal, 1)
	if os.Getenv("FAKE_IGNORE_TERM") == "1" {
		signal.Ignore(syscall.SIGTERM)
	} else {
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	}

	time.Sleep(envDur("FAKE_READY_DELAY"))
	if os.Getenv("FAKE_READY_LINE") != "none" {
		fmt.Printf(" * Running on http://%s\n", addr)
	}

	life := time.Hour
	if d := envDur("FAKE_EXIT_AFTER"); d > 0 {
		life = d
	}
	exitC := time.After(life)
	select {
	case <-sigCh:
		fmt.Println("shutting down")
	case <-exitC:
		fmt.Println("exiting on schedule")
	}
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
