// ABOUTME: Interactive UI command for the omnibus CLI
// ABOUTME: Runs the bubbletea client with logging redirected to debug.log

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/markalston/omnibus-cli/internal/logger"
	"github.com/markalston/omnibus-cli/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the interactive client",
	Long: `Launch the interactive terminal client.

Sign in, check your balance and recent activity, and send money with a
review step before anything is submitted. Logs are written to debug.log in
the config directory while the UI is running.`,
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(runUI)
	},
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

// runUI runs the interactive client and returns exit code
func runUI(ctx context.Context, w io.Writer, rt *runtime) int {
	closer, err := logger.InitFile(rt.cfg.ConfigDir)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}
	defer closer.Close()

	err = tui.Run(tui.Deps{
		Session:     rt.session,
		Auth:        rt.client,
		Activity:    rt.activity,
		NewWorkflow: rt.newWorkflow,
		Rules:       rt.rules(),
	})
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}
