// Command sl is the Studlancer workspace CLI.
//
// It drives the local-first editor session (create, edit, publish, list),
// runs the backend API server, and watches draft files for edits.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
