// Package cli is the deskshell command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
)

// MainWithArgs is a testable variant of Main that accepts args and writers
// explicitly. It returns an exit code (0 for success, 1 on error).
func MainWithArgs(args []string, stdout, stderr io.Writer) int {
	root := buildRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(stderr, "deskshell:", err.Error())
		return 1
	}
	return 0
}

// Main returns an exit code for use by cmd/deskshell.
func Main() int { return MainWithArgs(os.Args[1:], os.Stdout, os.Stderr) }
