// ABOUTME: Cached transaction history for the user's accounts
// ABOUTME: Entries are keyed per account and dropped after any transfer

package activity

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/markalston/omnibus-cli/internal/cache"
	"github.com/markalston/omnibus-cli/internal/client"
)

const keyPrefix = "transactions:"

// Fetcher lists an account's transactions
type Fetcher interface {
	Transactions(ctx context.Context, accountID string) ([]client.Transaction, error)
}

// Service reads transaction history through a TTL cache
type Service struct {
	api   Fetcher
	cache *cache.Cache

	// generation moves on every Invalidate; fetches that straddle one are not cached
	generation atomic.Uint64
}

// NewService creates a service with its own cache
func NewService(api Fetcher, ttl time.Duration) *Service {
	return &Service{api: api, cache: cache.New(ttl)}
}

// Transactions returns the account's history, serving from cache when fresh.
func (s *Service) Transactions(ctx context.Context, accountID string) ([]client.Transaction, error) {
	key := keyPrefix + accountID
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]client.Transaction), nil
	}

	gen := s.generation.Load()
	txns, err := s.api.Transactions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	if s.generation.Load() == gen {
		s.cache.Set(key, txns)
	}
	return txns, nil
}

// Invalidate drops every cached transaction list
func (s *Service) Invalidate() {
	s.generation.Add(1)
	s.cache.ClearPrefix(keyPrefix)
}

// Close stops the cache's cleanup loop
func (s *Service) Close() {
	s.cache.Close()
}

// Direction describes tx from the point of view of accountID.
func Direction(tx client.Transaction, accountID string) string {
	switch accountID {
	case tx.SourceAccountID:
		return "sent"
	case tx.TargetAccountID:
		return "received"
	default:
		return "other"
	}
}
