// ABOUTME: Tests for the activity command
// ABOUTME: Verifies table formatting, direction signs, and relative times

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/markalston/omnibus-cli/internal/client"
)

func TestFormatActivityHuman(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	txns := []client.Transaction{
		{SourceAccountID: "a1", TargetAccountID: "b1", Amount: decimal.RequireFromString("25"), Currency: "USD",
			Status: "COMPLETED", Description: "rent", CreatedAt: "2026-01-01T11:57:00Z"},
		{SourceAccountID: "b1", TargetAccountID: "a1", Amount: decimal.RequireFromString("1250.5"), Currency: "USD",
			Status: "COMPLETED", Description: "refund", CreatedAt: "2026-01-01T10:00:00Z"},
	}

	output := formatActivityHuman(txns, "a1", now)

	checks := []string{"WHEN", "3 minutes ago", "sent", "-$25.00", "received", "$1,250.50", "2 hours ago", "refund"}
	for _, check := range checks {
		if !strings.Contains(output, check) {
			t.Errorf("expected output to contain '%s', got:\n%s", check, output)
		}
	}
}

func TestFormatActivityHuman_Empty(t *testing.T) {
	if got := formatActivityHuman(nil, "a1", time.Now()); got != "No transactions yet." {
		t.Errorf("unexpected output %q", got)
	}
}

func TestFormatActivityJSON_EmptyIsArray(t *testing.T) {
	if got := formatActivityJSON(nil); got != "[]" {
		t.Errorf("expected empty JSON array, got %q", got)
	}
}

func TestRelativeTime_Unparseable(t *testing.T) {
	if got := relativeTime("yesterday", time.Now()); got != "yesterday" {
		t.Errorf("expected raw value back, got %q", got)
	}
}

func TestActivityCommand_Success(t *testing.T) {
	rt := newTestRuntime(t, &fakeLedger{}, true)

	var buf bytes.Buffer
	exitCode := runActivity(context.Background(), &buf, rt, 20)

	if exitCode != exitOK {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, buf.String())
	}
	for _, want := range []string{"rent", "lunch", "-$25.00", "$12.50"} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("expected output to contain %q, got:\n%s", want, buf.String())
		}
	}
}

func TestActivityCommand_Limit(t *testing.T) {
	withJSON(t)
	rt := newTestRuntime(t, &fakeLedger{}, true)

	var buf bytes.Buffer
	if code := runActivity(context.Background(), &buf, rt, 1); code != exitOK {
		t.Fatalf("expected exit code 0, got %d", code)
	}

	var parsed []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(parsed) != 1 || parsed[0]["id"] != "t2" {
		t.Errorf("expected only the newest transaction, got %v", parsed)
	}
}

func TestActivityCommand_NotLoggedIn(t *testing.T) {
	rt := newTestRuntime(t, &fakeLedger{}, false)

	var buf bytes.Buffer
	if code := runActivity(context.Background(), &buf, rt, 20); code != exitSession {
		t.Errorf("expected exit code 3, got %d", code)
	}
}
