// ABOUTME: Tests for session bootstrap, login, logout, and invalidation
// ABOUTME: Uses an in-memory store and a scripted profile fetcher

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markalston/omnibus-cli/internal/client"
	"github.com/markalston/omnibus-cli/internal/credential"
)

type fakeFetcher struct {
	calls   atomic.Int32
	profile *client.UserProfile
	err     error
	gate    chan struct{}
	before  func()
}

func (f *fakeFetcher) Me(ctx context.Context) (*client.UserProfile, error) {
	f.calls.Add(1)
	if f.before != nil {
		f.before()
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.profile, f.err
}

func aliceProfile() *client.UserProfile {
	return &client.UserProfile{
		UserID:   "u1",
		Username: "alice",
		Email:    "alice@example.com",
		Accounts: []client.Account{{
			ID:       "a1",
			Balance:  decimal.NewFromInt(5000),
			Currency: "USD",
			Status:   "ACTIVE",
		}},
	}
}

func TestBootstrap_NoCredential(t *testing.T) {
	fetcher := &fakeFetcher{profile: aliceProfile()}
	m := NewManager(credential.NewMemoryStore(nil), fetcher)
	require.True(t, m.State().IsLoading)

	require.NoError(t, m.Bootstrap(context.Background()))

	st := m.State()
	assert.False(t, st.IsLoading)
	assert.False(t, st.IsAuthenticated())
	assert.Zero(t, fetcher.calls.Load())
}

func TestBootstrap_RestoresSession(t *testing.T) {
	fetcher := &fakeFetcher{profile: aliceProfile()}
	m := NewManager(credential.NewMemoryStore(&credential.Credential{Token: "tok-1"}), fetcher)

	require.NoError(t, m.Bootstrap(context.Background()))

	st := m.State()
	assert.False(t, st.IsLoading)
	assert.True(t, st.IsAuthenticated())
	assert.Equal(t, "alice", st.Profile.Username)

	acct, ok := m.PrimaryAccount()
	require.True(t, ok)
	assert.Equal(t, "a1", acct.ID)
	assert.True(t, acct.Balance.Equal(decimal.NewFromInt(5000)))
}

func TestBootstrap_FailureClearsStore(t *testing.T) {
	cases := map[string]*fakeFetcher{
		"network":   {err: client.ErrRequestTimeout},
		"401":       {err: &client.APIError{StatusCode: 401}},
		"malformed": {profile: &client.UserProfile{Username: "alice"}},
	}
	for name, fetcher := range cases {
		t.Run(name, func(t *testing.T) {
			store := credential.NewMemoryStore(&credential.Credential{Token: "tok-1"})
			m := NewManager(store, fetcher)

			err := m.Bootstrap(context.Background())
			require.Error(t, err)

			cred, _ := store.Read()
			assert.Nil(t, cred)
			st := m.State()
			assert.False(t, st.IsLoading)
			assert.False(t, st.IsAuthenticated())
			assert.Equal(t, int32(1), fetcher.calls.Load())
		})
	}
}

func TestBootstrap_ExactlyOneFetch(t *testing.T) {
	fetcher := &fakeFetcher{profile: aliceProfile(), gate: make(chan struct{})}
	m := NewManager(credential.NewMemoryStore(&credential.Credential{Token: "tok-1"}), fetcher)

	var loadingFlips atomic.Int32
	m.Subscribe(func(s State) {
		if !s.IsLoading {
			loadingFlips.Add(1)
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Bootstrap(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	// a later remount for the same credential does not refetch
	require.NoError(t, m.Bootstrap(context.Background()))

	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, int32(1), loadingFlips.Load())
	assert.True(t, m.State().IsAuthenticated())
}

func TestLogin_FetchFailureKeepsCredential(t *testing.T) {
	store := credential.NewMemoryStore(nil)
	fetcher := &fakeFetcher{err: client.ErrRequestTimeout}
	m := NewManager(store, fetcher)
	require.NoError(t, m.Bootstrap(context.Background()))

	err := m.Login(context.Background(), &credential.Credential{Token: "tok-2"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrRequestTimeout))

	cred, _ := store.Read()
	require.NotNil(t, cred)
	assert.Equal(t, "tok-2", cred.Token)
	assert.False(t, m.State().IsAuthenticated())
}

func TestLogin_Success(t *testing.T) {
	store := credential.NewMemoryStore(nil)
	m := NewManager(store, &fakeFetcher{profile: aliceProfile()})

	var seen []State
	m.Subscribe(func(s State) { seen = append(seen, s) })

	require.NoError(t, m.Login(context.Background(), &credential.Credential{Token: "tok-2"}))

	assert.True(t, m.State().IsAuthenticated())
	require.NotEmpty(t, seen)
	assert.True(t, seen[len(seen)-1].IsAuthenticated())
}

func TestLogin_LogoutDuringFetchIsNotSuccess(t *testing.T) {
	store := credential.NewMemoryStore(nil)
	fetcher := &fakeFetcher{profile: aliceProfile()}
	m := NewManager(store, fetcher)
	require.NoError(t, m.Bootstrap(context.Background()))
	fetcher.before = func() { _ = m.Logout() }

	err := m.Login(context.Background(), &credential.Credential{Token: "tok-2"})

	require.ErrorIs(t, err, ErrSessionChanged)
	st := m.State()
	assert.False(t, st.IsAuthenticated())
	assert.Nil(t, st.Profile)
	cred, _ := store.Read()
	assert.Nil(t, cred)
}

func TestLogin_RejectsEmptyCredential(t *testing.T) {
	m := NewManager(credential.NewMemoryStore(nil), &fakeFetcher{})
	assert.Error(t, m.Login(context.Background(), nil))
	assert.Error(t, m.Login(context.Background(), &credential.Credential{}))
}

func TestLogout_Idempotent(t *testing.T) {
	store := credential.NewMemoryStore(&credential.Credential{Token: "tok-1"})
	m := NewManager(store, &fakeFetcher{profile: aliceProfile()})
	require.NoError(t, m.Bootstrap(context.Background()))

	require.NoError(t, m.Logout())
	require.NoError(t, m.Logout())

	cred, _ := store.Read()
	assert.Nil(t, cred)
	assert.False(t, m.State().IsAuthenticated())
	assert.False(t, m.State().IsLoading)
}

func TestRefreshProfile_NoCredentialIsNoop(t *testing.T) {
	fetcher := &fakeFetcher{profile: aliceProfile()}
	m := NewManager(credential.NewMemoryStore(nil), fetcher)

	require.NoError(t, m.RefreshProfile(context.Background()))
	assert.Zero(t, fetcher.calls.Load())
}

func TestRefreshProfile_ReplacesSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{profile: aliceProfile()}
	m := NewManager(credential.NewMemoryStore(&credential.Credential{Token: "tok-1"}), fetcher)
	require.NoError(t, m.Bootstrap(context.Background()))

	updated := aliceProfile()
	updated.Accounts[0].Balance = decimal.NewFromInt(4900)
	fetcher.profile = updated

	require.NoError(t, m.RefreshProfile(context.Background()))

	acct, _ := m.PrimaryAccount()
	assert.True(t, acct.Balance.Equal(decimal.NewFromInt(4900)))
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestInvalidate_NotifiesSynchronously(t *testing.T) {
	store := credential.NewMemoryStore(&credential.Credential{Token: "tok-1"})
	m := NewManager(store, &fakeFetcher{profile: aliceProfile()})
	require.NoError(t, m.Bootstrap(context.Background()))

	var lost bool
	m.Subscribe(func(s State) {
		if !s.IsAuthenticated() {
			lost = true
		}
	})

	m.Invalidate()

	assert.True(t, lost)
	cred, _ := store.Read()
	assert.Nil(t, cred)
}

func TestSubscribe_Cancel(t *testing.T) {
	m := NewManager(credential.NewMemoryStore(nil), &fakeFetcher{})

	var count int
	cancel := m.Subscribe(func(State) { count++ })
	require.NoError(t, m.Bootstrap(context.Background()))
	cancel()
	m.Invalidate()

	assert.Equal(t, 1, count)
}

func TestClose_DropsLateBootstrapResult(t *testing.T) {
	store := credential.NewMemoryStore(&credential.Credential{Token: "tok-1"})
	fetcher := &fakeFetcher{profile: aliceProfile(), gate: make(chan struct{})}
	m := NewManager(store, fetcher)

	var notified bool
	m.Subscribe(func(State) { notified = true })

	done := make(chan error, 1)
	go func() { done <- m.Bootstrap(context.Background()) }()

	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	m.Close()
	close(fetcher.gate)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.False(t, notified)
	assert.Nil(t, m.State().Profile)
}

func TestBootstrap_LogoutDuringFetchWins(t *testing.T) {
	store := credential.NewMemoryStore(&credential.Credential{Token: "tok-1"})
	fetcher := &fakeFetcher{profile: aliceProfile(), gate: make(chan struct{})}
	m := NewManager(store, fetcher)

	done := make(chan error, 1)
	go func() { done <- m.Bootstrap(context.Background()) }()

	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Logout())
	close(fetcher.gate)
	require.NoError(t, <-done)

	st := m.State()
	assert.False(t, st.IsAuthenticated())
	assert.False(t, st.IsLoading)
}

func TestTransport401_InvalidatesSession(t *testing.T) {
	store := credential.NewMemoryStore(&credential.Credential{Token: "tok-1"})
	fetcher := &fakeFetcher{profile: aliceProfile()}
	m := NewManager(store, fetcher)
	require.NoError(t, m.Bootstrap(context.Background()))

	// mimic the transport: store cleared, then the hook runs, then the caller errors
	fetcher.err = &client.APIError{StatusCode: 401}
	fetcher.profile = nil
	fetcher.before = func() {
		_ = store.Clear()
		m.Invalidate()
	}

	err := m.RefreshProfile(context.Background())
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.False(t, m.State().IsAuthenticated())
}
