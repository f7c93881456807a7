// ABOUTME: Recipient resolver that looks up a transfer target by username
// ABOUTME: Rejects unknown users and the caller's own account before review

package transfer

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/markalston/omnibus-cli/internal/client"
)

// Candidate is a resolved recipient pending confirmation
type Candidate struct {
	AccountID     string
	Username      string
	AccountNumber string
}

// LookupAPI resolves a username to an account
type LookupAPI interface {
	LookupAccount(ctx context.Context, username string) (*client.AccountLookup, error)
}

// SourceAccount supplies the caller's primary account
type SourceAccount interface {
	PrimaryAccount() (client.Account, bool)
}

// Resolver performs recipient lookups. It reads the session but never
// mutates it or any workflow state.
type Resolver struct {
	api     LookupAPI
	source  SourceAccount
	limiter *rate.Limiter
}

// NewResolver creates a resolver. A nil limiter means lookups are not throttled.
func NewResolver(api LookupAPI, source SourceAccount, limiter *rate.Limiter) *Resolver {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Resolver{api: api, source: source, limiter: limiter}
}

// Lookup resolves handle to a Candidate. The self-transfer check runs after
// a successful lookup and before the candidate is returned.
func (r *Resolver) Lookup(ctx context.Context, handle string) (*Candidate, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, newError(KindValidation, MsgRecipientRequired, nil)
	}

	source, ok := r.source.PrimaryAccount()
	if !ok {
		return nil, newError(KindNoSourceAccount, MsgNoSourceAccount, nil)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, newError(KindLookupUnavailable, MsgLookupUnavailable, err)
	}

	found, err := r.api.LookupAccount(ctx, handle)
	if err != nil {
		werr := classifyLookup(err)
		slog.Debug("Recipient lookup failed", "username", handle, "kind", werr.Kind, "error", err)
		return nil, werr
	}
	if found == nil || found.AccountID == "" {
		return nil, newError(KindNotFound, MsgNotFound, nil)
	}

	if found.AccountID == source.ID {
		return nil, newError(KindSelfTransfer, MsgSelfTransfer, nil)
	}

	return &Candidate{
		AccountID:     found.AccountID,
		Username:      found.Username,
		AccountNumber: found.AccountNumber,
	}, nil
}
