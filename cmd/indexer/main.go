package main

import (
	"log"
	"os"
)

func main() {
	// Progress goes to stderr, results to stdout
	log.SetOutput(os.Stderr)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
