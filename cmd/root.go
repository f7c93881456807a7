// ABOUTME: Root command for the omnibus CLI
// ABOUTME: Handles global flags and configuration

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/markalston/omnibus-cli/internal/config"
)

var (
	apiURL     string
	configPath string
	jsonOutput bool
)

// Exit codes shared by every command
const (
	exitOK       = 0
	exitRejected = 1
	exitError    = 2
	exitSession  = 3
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "omnibus",
	Short: "CLI for Omnibus peer-to-peer transfers",
	Long: `omnibus is a command-line client for the Omnibus ledger.

It signs you in, shows your balance and activity, and sends money to other
users with idempotent, safely retryable transfers.

Exit codes:
  0 - Success
  1 - Transfer rejected (business rule or duplicate request)
  2 - Error (connectivity, invalid input)
  3 - Not logged in or session expired

Environment Variables:
  OMNIBUS_API_URL              Ledger API URL (default: http://localhost:8080/api/v1)
  OMNIBUS_REQUEST_TIMEOUT      Request timeout in seconds (default: 15)
  OMNIBUS_MAX_TRANSFER_AMOUNT  Largest single transfer (default: 1000000)
  OMNIBUS_CONFIG_DIR           Credential and config directory (default: ~/.config/omnibus)
  OMNIBUS_CREDENTIAL_SECRET    Passphrase that seals the stored credential
  OMNIBUS_ALL_PROXY            ssh+socks5://user@host:port?private-key=/path
  LOG_LEVEL, LOG_FORMAT        Logging level and format (text, json)`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Ledger API URL (overrides OMNIBUS_API_URL)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
}

// loadConfig resolves configuration; the --api-url flag wins over every other layer
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = config.NormalizeURL(apiURL)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}
