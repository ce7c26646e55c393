// Package version reports build/version information for the dgrab CLI,
// the same small surface the teacher's own internal/version exposes for
// its command-line tools, minus the protocol-compatibility and
// terminal-color concerns this module has no use for.
package version

import (
	"fmt"
	"os"
)

const (
	// Name of the tool.
	Name = "dgrab"
	// Version of the tool.
	Version = "0.1.0-develop"
)

// String returns a plain-text version line.
func String() string {
	return fmt.Sprintf("%s %s", Name, Version)
}

// Print writes the version line to stdout.
func Print() {
	fmt.Println(String())
}

// PrintAndExit prints the version line and exits 0.
func PrintAndExit() {
	Print()
	os.Exit(0)
}
