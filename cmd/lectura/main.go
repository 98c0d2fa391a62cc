// Command lectura is the entry point for the lectura course-material
// retrieval assistant. It provides a CLI interface (via Cobra) and an
// optional HTTP server for interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/studyware/lectura/cmd/lectura/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
