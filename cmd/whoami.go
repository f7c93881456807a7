// ABOUTME: Whoami command for the omnibus CLI
// ABOUTME: Shows the signed-in user, primary account balance, and session expiry

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/markalston/omnibus-cli/internal/client"
	"github.com/markalston/omnibus-cli/internal/credential"
	"github.com/markalston/omnibus-cli/internal/money"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user and balance",
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(runWhoami)
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

// runWhoami restores the session and returns exit code
func runWhoami(ctx context.Context, w io.Writer, rt *runtime) int {
	if code := rt.requireSession(ctx, w); code != exitOK {
		return code
	}

	st := rt.session.State()
	if IsJSONOutput() {
		fmt.Fprintln(w, formatWhoamiJSON(st.Profile, st.Credential))
	} else {
		fmt.Fprintln(w, formatWhoamiHuman(st.Profile, st.Credential, time.Now()))
	}
	return exitOK
}

// formatWhoamiHuman formats the profile for human readability
func formatWhoamiHuman(p *client.UserProfile, cred *credential.Credential, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User:     %s\n", p.Username)
	fmt.Fprintf(&sb, "Email:    %s\n", p.Email)

	if acct, ok := p.PrimaryAccount(); ok {
		fmt.Fprintf(&sb, "Account:  %s (%s)\n", acct.AccountNumber, acct.Status)
		fmt.Fprintf(&sb, "Balance:  %s\n", money.Format(acct.Balance, acct.Currency))
	} else {
		sb.WriteString("Account:  none\n")
	}

	exp := cred.ExpiresAt()
	switch {
	case exp.IsZero():
		sb.WriteString("Session:  expiry unknown")
	case cred.Expired(now):
		fmt.Fprintf(&sb, "Session:  expired %s", humanize.RelTime(exp, now, "ago", "from now"))
	default:
		fmt.Fprintf(&sb, "Session:  expires %s", humanize.RelTime(exp, now, "ago", "from now"))
	}
	return sb.String()
}

// formatWhoamiJSON formats the profile as JSON
func formatWhoamiJSON(p *client.UserProfile, cred *credential.Credential) string {
	output := map[string]interface{}{
		"user_id":  p.UserID,
		"username": p.Username,
		"email":    p.Email,
		"accounts": p.Accounts,
	}
	if exp := cred.ExpiresAt(); !exp.IsZero() {
		output["session_expires_at"] = exp.Format(time.RFC3339)
	}
	data, _ := json.MarshalIndent(output, "", "  ")
	return string(data)
}
