package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	for in, want := range map[string]string{
		"":                  "",
		"/opt/app":          "/opt/app",
		"resources":         "resources",
		"~":                 home,
		"~/res/run_ui.py":   filepath.Join(home, "res", "run_ui.py"),
	} {
		got, err := ExpandHome(in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ExpandHome(%q)=%q want %q", in, got, want)
		}
	}
}

func TestIsFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "offline.html")
	if IsFile(p) {
		t.Fatalf("missing file reported as present")
	}
	if err := os.WriteFile(p, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !IsFile(p) {
		t.Fatalf("expected %q to be a file", p)
	}
	if IsFile(dir) {
		t.Fatalf("directory reported as file")
	}
}

func TestFileURL(t *testing.T) {
	dir := t.TempDir()
	u, err := FileURL(filepath.Join(dir, "offline page.html"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !strings.HasPrefix(u, "file:///") {
		t.Fatalf("unexpected url %q", u)
	}
	if !strings.HasSuffix(u, "/offline%20page.html") {
		t.Fatalf("path not escaped: %q", u)
	}
}
