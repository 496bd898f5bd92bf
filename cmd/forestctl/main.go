// Command forestctl is the operator CLI: one-off reconciliation runs,
// matching diagnostics, single-forest geocoding, cache inspection, and
// snapshot validation.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env.local")

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
