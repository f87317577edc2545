// B-9 voice front-end for a local Ollama model.
// Listens for a wake word, answers typed questions over TCP and serves a
// status dashboard.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
