// ABOUTME: Tests for the cached transaction history
// ABOUTME: Verifies cache hits, invalidation, and error passthrough

package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markalston/omnibus-cli/internal/client"
)

type fakeFetcher struct {
	calls  int
	err    error
	during func()
}

func (f *fakeFetcher) Transactions(ctx context.Context, accountID string) ([]client.Transaction, error) {
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	return []client.Transaction{{ID: "t1", SourceAccountID: accountID, TargetAccountID: "b1"}}, nil
}

func TestTransactions_CachesPerAccount(t *testing.T) {
	api := &fakeFetcher{}
	svc := NewService(api, time.Minute)
	defer svc.Close()

	for i := 0; i < 3; i++ {
		txns, err := svc.Transactions(context.Background(), "a1")
		require.NoError(t, err)
		require.Len(t, txns, 1)
	}
	assert.Equal(t, 1, api.calls)

	_, err := svc.Transactions(context.Background(), "a2")
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	api := &fakeFetcher{}
	svc := NewService(api, time.Minute)
	defer svc.Close()

	_, _ = svc.Transactions(context.Background(), "a1")
	svc.Invalidate()
	_, _ = svc.Transactions(context.Background(), "a1")

	assert.Equal(t, 2, api.calls)
}

func TestInvalidate_DuringFetchSkipsCache(t *testing.T) {
	api := &fakeFetcher{}
	svc := NewService(api, time.Minute)
	defer svc.Close()

	api.during = svc.Invalidate
	txns, err := svc.Transactions(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, txns, 1)

	api.during = nil
	_, err = svc.Transactions(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls, "a list fetched across an invalidation must not be served from cache")
}

func TestTransactions_ErrorNotCached(t *testing.T) {
	api := &fakeFetcher{err: client.ErrRequestTimeout}
	svc := NewService(api, time.Minute)
	defer svc.Close()

	_, err := svc.Transactions(context.Background(), "a1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrRequestTimeout))

	api.err = nil
	_, err = svc.Transactions(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
}

func TestDirection(t *testing.T) {
	tx := client.Transaction{SourceAccountID: "a1", TargetAccountID: "b1"}
	assert.Equal(t, "sent", Direction(tx, "a1"))
	assert.Equal(t, "received", Direction(tx, "b1"))
	assert.Equal(t, "other", Direction(tx, "c1"))
}
