// ABOUTME: Shared fixtures for command tests
// ABOUTME: A scripted httptest ledger and a runtime wired against it

package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/markalston/omnibus-cli/internal/config"
	"github.com/markalston/omnibus-cli/internal/credential"
)

const aliceToken = "tok-alice"

// fakeLedger serves the subset of the ledger API the commands use.
// transferStatuses scripts successive POST /transfers answers.
type fakeLedger struct {
	mu               sync.Mutex
	transferStatuses []int
	transferDetail   string
	keys             []string
	bodies           []map[string]any
}

func (f *fakeLedger) transferCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"status": status, "detail": detail})
}

func (f *fakeLedger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/auth/login" && r.URL.Path != "/auth/register" &&
		r.Header.Get("Authorization") != "Bearer "+aliceToken {
		writeProblem(w, http.StatusUnauthorized, "Full authentication is required")
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/login":
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["password"] != "secret" {
			writeProblem(w, http.StatusUnauthorized, "Bad credentials")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"userId": "u1", "username": req["username"], "token": aliceToken, "expiresInMs": 900000,
		})

	case r.Method == http.MethodPost && r.URL.Path == "/auth/register":
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["username"] == "taken" {
			writeProblem(w, http.StatusConflict, "Username already exists")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"userId": "u1", "username": req["username"], "token": aliceToken, "expiresInMs": 900000,
		})

	case r.URL.Path == "/auth/me":
		writeJSON(w, http.StatusOK, map[string]any{
			"userId":   "u1",
			"username": "alice",
			"email":    "alice@example.com",
			"accounts": []map[string]any{{
				"id": "a1", "accountNumber": "ACC-0001", "balance": 5000.00,
				"currency": "USD", "status": "ACTIVE",
			}},
		})

	case r.URL.Path == "/accounts/lookup":
		switch r.URL.Query().Get("username") {
		case "bob":
			writeJSON(w, http.StatusOK, map[string]any{"accountId": "b1", "username": "bob", "accountNumber": "ACC-0002"})
		case "alice":
			writeJSON(w, http.StatusOK, map[string]any{"accountId": "a1", "username": "alice", "accountNumber": "ACC-0001"})
		default:
			writeProblem(w, http.StatusNotFound, "User not found")
		}

	case r.URL.Path == "/accounts/a1/transactions":
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "t2", "type": "TRANSFER", "status": "COMPLETED", "sourceAccountId": "a1", "targetAccountId": "b1",
				"amount": 25.00, "currency": "USD", "description": "rent", "createdAt": time.Now().Add(-3 * time.Minute).UTC().Format(time.RFC3339)},
			{"id": "t1", "type": "TRANSFER", "status": "COMPLETED", "sourceAccountId": "b1", "targetAccountId": "a1",
				"amount": 12.50, "currency": "USD", "description": "lunch", "createdAt": time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339)},
		})

	case r.Method == http.MethodPost && r.URL.Path == "/transfers":
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.keys = append(f.keys, r.Header.Get("Idempotency-Key"))
		f.bodies = append(f.bodies, body)
		status := http.StatusCreated
		if len(f.transferStatuses) > 0 {
			status = f.transferStatuses[0]
			f.transferStatuses = f.transferStatuses[1:]
		}
		detail := f.transferDetail
		f.mu.Unlock()

		if status >= 300 {
			writeProblem(w, status, detail)
			return
		}
		writeJSON(w, status, map[string]any{
			"transactionId": "tx-1", "status": "COMPLETED", "sourceAccountId": body["sourceAccountId"],
			"targetAccountId": body["targetAccountId"], "amount": body["amount"], "currency": body["currency"],
			"createdAt": time.Now().UTC().Format(time.RFC3339),
		})

	default:
		http.NotFound(w, r)
	}
}

// newTestRuntime wires a runtime against ledger. When signedIn is true a
// valid credential is already persisted.
func newTestRuntime(t *testing.T, ledger *fakeLedger, signedIn bool) *runtime {
	t.Helper()
	server := httptest.NewServer(ledger)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		APIURL:            server.URL,
		RequestTimeout:    5,
		MaxTransferAmount: 1_000_000,
		LookupRate:        1000,
		LookupBurst:       10,
		ConfigDir:         t.TempDir(),
		ActivityCacheTTL:  30,
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		t.Fatalf("newRuntime failed: %v", err)
	}
	t.Cleanup(rt.close)

	if signedIn {
		cred := credential.FromAuth(aliceToken, 900000, time.Now())
		if err := rt.store.Write(cred); err != nil {
			t.Fatalf("failed to seed credential: %v", err)
		}
	}
	return rt
}

// withJSON turns on --json for the duration of the test
func withJSON(t *testing.T) {
	t.Helper()
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })
}
