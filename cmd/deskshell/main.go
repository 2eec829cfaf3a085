package main

import (
	"os"

	"deskshell/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
