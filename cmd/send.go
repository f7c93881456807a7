// ABOUTME: Send command for the omnibus CLI
// ABOUTME: Drives the transfer workflow non-interactively with safe retries

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/markalston/omnibus-cli/internal/money"
	"github.com/markalston/omnibus-cli/internal/transfer"
)

// sendOptions are the send command's flags
type sendOptions struct {
	To      string
	Amount  string
	Note    string
	Yes     bool
	Retries int
}

var sendOpts sendOptions

// retryDelay is the base backoff between submission retries
var retryDelay = 500 * time.Millisecond

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send money to another user",
	Long: `Send money from your primary account to another user.

The recipient is looked up first; you cannot send to yourself. Network
failures are retried with the same idempotency key, so a retried transfer
is never applied twice. A duplicate-request rejection is never retried.

Exit codes:
  0 - Transfer completed (or cancelled at the prompt)
  1 - Transfer rejected (insufficient funds, duplicate request)
  2 - Error (unknown recipient, invalid amount, connectivity)
  3 - Not logged in or session expired`,
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(func(ctx context.Context, w io.Writer, rt *runtime) int {
			return runSend(ctx, w, rt, sendOpts, promptConfirm)
		})
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendOpts.To, "to", "", "Recipient username")
	sendCmd.Flags().StringVar(&sendOpts.Amount, "amount", "", "Amount to send, e.g. 25.00")
	sendCmd.Flags().StringVar(&sendOpts.Note, "note", "", "Optional description")
	sendCmd.Flags().BoolVarP(&sendOpts.Yes, "yes", "y", false, "Skip the confirmation prompt")
	sendCmd.Flags().IntVar(&sendOpts.Retries, "retries", 2, "Retries after a network failure")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(sendCmd)
}

// confirmFunc asks the user to approve the reviewed transfer
type confirmFunc func(summary string) (bool, error)

func promptConfirm(summary string) (bool, error) {
	ok := false
	err := huh.NewConfirm().
		Title("Send this transfer?").
		Description(summary).
		Affirmative("Send").
		Negative("Cancel").
		Value(&ok).
		Run()
	return ok, err
}

// runSend executes the transfer and returns exit code
func runSend(ctx context.Context, w io.Writer, rt *runtime, opts sendOptions, confirm confirmFunc) int {
	if opts.Retries < 0 {
		fmt.Fprintln(w, "Error: --retries must not be negative")
		return exitError
	}
	if code := rt.requireSession(ctx, w); code != exitOK {
		return code
	}

	wf := rt.newWorkflow()
	wf.SetRecipient(opts.To)
	wf.SetAmount(opts.Amount)
	wf.SetDescription(opts.Note)

	if _, err := wf.LookupRecipient(ctx); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitCodeFor(err)
	}
	if err := wf.Review(); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitCodeFor(err)
	}

	if !opts.Yes {
		ok, err := confirm(formatReview(wf.View()))
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return exitError
		}
		if !ok {
			_ = wf.Back()
			fmt.Fprintln(w, "Transfer cancelled")
			return exitOK
		}
	}

	outcome, err := confirmWithRetry(ctx, wf, opts.Retries)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitCodeFor(err)
	}

	if IsJSONOutput() {
		fmt.Fprintln(w, formatOutcomeJSON(outcome))
	} else {
		fmt.Fprintln(w, formatOutcomeHuman(outcome))
	}
	return exitOK
}

// confirmWithRetry resubmits transient failures with the same idempotency key
func confirmWithRetry(ctx context.Context, wf *transfer.Workflow, retries int) (*transfer.Outcome, error) {
	for attempt := 0; ; attempt++ {
		outcome, err := wf.Confirm(ctx)
		if err == nil {
			return outcome, nil
		}
		if !transfer.KindOf(err).Retryable() || attempt >= retries || ctx.Err() != nil {
			return nil, err
		}

		delay := retryDelay * time.Duration(attempt+1)
		slog.Info("Retrying transfer", "attempt", attempt+1, "delay", delay, "error", errors.Unwrap(err))
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(delay):
		}
	}
}

// formatReview summarizes the pending transfer
func formatReview(v transfer.View) string {
	if v.Pending == nil || v.Candidate == nil {
		return ""
	}
	amount, _ := money.ParseAmount(v.Pending.Amount.String())
	s := fmt.Sprintf("To:      %s (%s)\nAmount:  %s\nFrom:    %s",
		v.Candidate.Username, v.Candidate.AccountNumber,
		money.Format(amount, v.Pending.Currency),
		v.Source.AccountNumber)
	if v.Pending.Description != "" {
		s += "\nNote:    " + v.Pending.Description
	}
	return s
}

// formatOutcomeHuman formats a completed transfer for human readability
func formatOutcomeHuman(o *transfer.Outcome) string {
	s := fmt.Sprintf(`Sent %s to %s
Transaction: %s
Status:      %s`, money.Format(o.Amount, o.Currency), o.Recipient, o.TransactionID, o.Status)
	if o.Replayed {
		s += "\n(already processed; this is the original result)"
	}
	return s
}

// formatOutcomeJSON formats a completed transfer as JSON
func formatOutcomeJSON(o *transfer.Outcome) string {
	output := map[string]interface{}{
		"transaction_id": o.TransactionID,
		"status":         o.Status,
		"amount":         o.Amount,
		"currency":       o.Currency,
		"recipient":      o.Recipient,
		"created_at":     o.CreatedAt,
		"replayed":       o.Replayed,
	}
	data, _ := json.MarshalIndent(output, "", "  ")
	return string(data)
}
