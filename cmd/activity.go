// ABOUTME: Activity command for the omnibus CLI
// ABOUTME: Lists recent transactions on the primary account

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/markalston/omnibus-cli/internal/activity"
	"github.com/markalston/omnibus-cli/internal/client"
	"github.com/markalston/omnibus-cli/internal/money"
)

var activityLimit int

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "List recent transactions",
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, w io.Writer, rt *runtime) int {
			return runActivity(ctx, w, rt, activityLimit)
		})
	},
}

func init() {
	activityCmd.Flags().IntVarP(&activityLimit, "limit", "n", 20, "Maximum transactions to show (0 for all)")
	rootCmd.AddCommand(activityCmd)
}

// runActivity lists transactions and returns exit code
func runActivity(ctx context.Context, w io.Writer, rt *runtime, limit int) int {
	if code := rt.requireSession(ctx, w); code != exitOK {
		return code
	}

	acct, ok := rt.session.PrimaryAccount()
	if !ok {
		fmt.Fprintln(w, "No account found for this user.")
		return exitError
	}

	txns, err := rt.activity.Transactions(ctx, acct.ID)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		if rt.session.State().Credential == nil {
			return exitSession
		}
		return exitError
	}
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}

	if IsJSONOutput() {
		fmt.Fprintln(w, formatActivityJSON(txns))
	} else {
		fmt.Fprintln(w, formatActivityHuman(txns, acct.ID, time.Now()))
	}
	return exitOK
}

// formatActivityHuman renders transactions as an aligned table
func formatActivityHuman(txns []client.Transaction, accountID string, now time.Time) string {
	if len(txns) == 0 {
		return "No transactions yet."
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tDIRECTION\tAMOUNT\tSTATUS\tDESCRIPTION")
	for _, tx := range txns {
		amount := money.Format(tx.Amount, tx.Currency)
		dir := activity.Direction(tx, accountID)
		if dir == "sent" {
			amount = "-" + amount
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", relativeTime(tx.CreatedAt, now), dir, amount, tx.Status, tx.Description)
	}
	tw.Flush()
	return strings.TrimRight(sb.String(), "\n")
}

// formatActivityJSON formats transactions as JSON
func formatActivityJSON(txns []client.Transaction) string {
	if txns == nil {
		txns = []client.Transaction{}
	}
	data, _ := json.MarshalIndent(txns, "", "  ")
	return string(data)
}

// relativeTime renders an RFC 3339 timestamp as "3 minutes ago"
func relativeTime(ts string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
