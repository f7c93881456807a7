// ABOUTME: Entry point for the omnibus CLI
// ABOUTME: Peer-to-peer transfers against the Omnibus ledger from the terminal

package main

import (
	"fmt"
	"os"

	"github.com/markalston/omnibus-cli/cmd"
	"github.com/markalston/omnibus-cli/internal/logger"
)

func main() {
	logger.Init()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
