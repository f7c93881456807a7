// ABOUTME: Test doubles for the transfer package
// ABOUTME: Scripted lookup, submission, and session collaborators

package transfer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/markalston/omnibus-cli/internal/client"
)

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)

type fakeLookup struct {
	results map[string]*client.AccountLookup
	err     error
	gate    chan struct{}
	calls   atomic.Int32
}

func (f *fakeLookup) LookupAccount(ctx context.Context, username string) (*client.AccountLookup, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[username]; ok {
		return r, nil
	}
	return nil, &client.APIError{StatusCode: 404, Detail: "No account for user " + username}
}

type fakeSession struct {
	account   client.Account
	hasAcct   bool
	refreshes atomic.Int32
}

func (f *fakeSession) PrimaryAccount() (client.Account, bool) {
	return f.account, f.hasAcct
}

func (f *fakeSession) RefreshProfile(ctx context.Context) error {
	f.refreshes.Add(1)
	return nil
}

type submission struct {
	key string
	req client.TransferRequest
}

type fakeSubmitter struct {
	mu    sync.Mutex
	sent  []submission
	errs  []error
	resp  *client.TransferResponse
	gate  chan struct{}
	entry chan struct{}
}

func (f *fakeSubmitter) CreateTransfer(ctx context.Context, key string, req *client.TransferRequest) (*client.TransferResponse, error) {
	f.mu.Lock()
	f.sent = append(f.sent, submission{key: key, req: *req})
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()

	if f.entry != nil {
		f.entry <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if err != nil {
		return nil, err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &client.TransferResponse{
		TransactionID: "t1",
		Status:        "COMPLETED",
		Amount:        decimal.NewFromInt(100),
		Currency:      "USD",
		CreatedAt:     "2026-03-01T12:00:00Z",
	}, nil
}

func (f *fakeSubmitter) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, len(f.sent))
	for i, s := range f.sent {
		keys[i] = s.key
	}
	return keys
}

type fakeInvalidator struct {
	count atomic.Int32
}

func (f *fakeInvalidator) Invalidate() {
	f.count.Add(1)
}

func sequentialKeys() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("K%d", n)
	}
}

func newFixture() (*fakeLookup, *fakeSession, *fakeSubmitter) {
	lookup := &fakeLookup{results: map[string]*client.AccountLookup{
		"bob":   {AccountID: "b1", Username: "bob", AccountNumber: "OMN-0002"},
		"alice": {AccountID: "a1", Username: "alice", AccountNumber: "OMN-0001"},
	}}
	session := &fakeSession{
		account: client.Account{ID: "a1", Balance: decimal.NewFromInt(5000), Currency: "USD"},
		hasAcct: true,
	}
	return lookup, session, &fakeSubmitter{}
}
