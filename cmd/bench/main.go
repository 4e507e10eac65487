// Command bench compares the matching algorithms on generated workloads.
//
// Usage:
//
//	go run ./cmd/bench run --preset default --algos linear,gem
//	go run ./cmd/bench verify --preset debug
//	go run ./cmd/bench presets
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
