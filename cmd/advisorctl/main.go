// Command advisorctl provisions users and manages the course index from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/kailas-cloud/courseadvisor/cmd/advisorctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
