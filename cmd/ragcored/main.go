// Command ragcored runs the hybrid retrieval-augmented answering core as a
// standalone HTTP service.
package main

import (
	"fmt"
	"os"

	"github.com/ragcore/ragcore/cmd/ragcored/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
