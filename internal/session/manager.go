// ABOUTME: Session manager owning the credential and authenticated profile
// ABOUTME: Publishes every state transition synchronously to subscribers

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/markalston/omnibus-cli/internal/client"
	"github.com/markalston/omnibus-cli/internal/credential"
)

var (
	// ErrMalformedProfile is returned when /auth/me answers without a user id.
	ErrMalformedProfile = errors.New("malformed profile response")
	// ErrClosed is returned when a result arrives after Close.
	ErrClosed = errors.New("session manager closed")
	// ErrSessionChanged is returned when a logout or 401 superseded the
	// operation before its result could be applied.
	ErrSessionChanged = errors.New("session changed while signing in")
)

// ProfileFetcher fetches the authenticated user's profile
type ProfileFetcher interface {
	Me(ctx context.Context) (*client.UserProfile, error)
}

// State is a snapshot of the session
type State struct {
	Credential *credential.Credential
	Profile    *client.UserProfile
	IsLoading  bool
}

// IsAuthenticated is true only when a validated profile and its credential are both held.
func (s State) IsAuthenticated() bool {
	return s.Credential != nil && s.Profile != nil
}

type subscriber struct {
	id int
	fn func(State)
}

// Manager is the only component that writes the credential store outside
// the transport's 401 handler.
type Manager struct {
	store credential.Store
	api   ProfileFetcher
	group singleflight.Group

	mu           sync.Mutex
	state        State
	bootstrapped string
	generation   uint64
	closed       bool
	subs         []subscriber
	nextID       int
}

// NewManager creates a manager in the loading state. Call Bootstrap to
// resolve any persisted credential.
func NewManager(store credential.Store, api ProfileFetcher) *Manager {
	return &Manager{
		store: store,
		api:   api,
		state: State{IsLoading: true},
	}
}

// Bootstrap resolves the persisted credential, fetching the profile at most
// once per credential value. Concurrent and repeated calls share that one
// fetch. Any failure clears the store and leaves the session unauthenticated.
func (m *Manager) Bootstrap(ctx context.Context) error {
	cred, err := m.store.Read()
	if err != nil {
		slog.Warn("Failed to read credential", "error", err)
	}
	if cred == nil || cred.Token == "" {
		m.apply(m.currentGeneration(), func(s *State) {
			s.Credential = nil
			s.Profile = nil
			s.IsLoading = false
		})
		return nil
	}

	_, err, _ = m.group.Do(cred.Token, func() (any, error) {
		m.mu.Lock()
		if m.bootstrapped == cred.Token {
			m.mu.Unlock()
			return nil, nil
		}
		m.bootstrapped = cred.Token
		gen := m.generation
		m.mu.Unlock()

		return nil, m.resolve(ctx, gen, cred)
	})
	return err
}

func (m *Manager) resolve(ctx context.Context, gen uint64, cred *credential.Credential) error {
	profile, err := m.api.Me(ctx)
	if err == nil && (profile == nil || profile.UserID == "") {
		err = ErrMalformedProfile
	}

	if err != nil {
		slog.Info("Persisted credential rejected, starting signed out", "error", err)
		m.mu.Lock()
		stale := m.closed || m.generation != gen
		m.mu.Unlock()
		if !stale {
			if clearErr := m.store.Clear(); clearErr != nil {
				slog.Error("Failed to clear credential", "error", clearErr)
			}
		}
		if applyErr := m.apply(gen, func(s *State) {
			s.Credential = nil
			s.Profile = nil
			s.IsLoading = false
		}); errors.Is(applyErr, ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("session bootstrap failed: %w", err)
	}

	// A logout during the fetch wins; that is not a bootstrap failure.
	if applyErr := m.apply(gen, func(s *State) {
		s.Credential = cred
		s.Profile = profile
		s.IsLoading = false
	}); errors.Is(applyErr, ErrClosed) {
		return ErrClosed
	}
	slog.Debug("Session restored", "username", profile.Username)
	return nil
}

// Login persists cred and then fetches the profile. When the fetch fails the
// credential stays persisted and the error is returned. A nil return means
// the session is authenticated; a logout or 401 that lands during the fetch
// yields ErrSessionChanged.
func (m *Manager) Login(ctx context.Context, cred *credential.Credential) error {
	if cred == nil || cred.Token == "" {
		return errors.New("credential is required")
	}
	if err := m.store.Write(cred); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	m.mu.Lock()
	m.generation++
	m.bootstrapped = ""
	gen := m.generation
	m.mu.Unlock()

	m.apply(gen, func(s *State) {
		s.Credential = cred
		s.Profile = nil
		s.IsLoading = false
	})

	profile, err := m.api.Me(ctx)
	if err == nil && (profile == nil || profile.UserID == "") {
		err = ErrMalformedProfile
	}
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	if err := m.apply(gen, func(s *State) { s.Profile = profile }); err != nil {
		slog.Info("Sign-in superseded", "username", profile.Username, "error", err)
		return err
	}
	m.mu.Lock()
	if m.generation == gen {
		m.bootstrapped = cred.Token
	}
	m.mu.Unlock()
	slog.Info("Signed in", "username", profile.Username)
	return nil
}

// Logout clears the store and the in-memory profile. Safe to call repeatedly.
func (m *Manager) Logout() error {
	err := m.store.Clear()
	m.reset()
	if err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// Invalidate is the 401 hook. It tears the session down without surfacing
// an error; the caller's request still fails with its own error.
func (m *Manager) Invalidate() {
	if err := m.store.Clear(); err != nil {
		slog.Error("Failed to clear credential", "error", err)
	}
	m.reset()
}

func (m *Manager) reset() {
	m.mu.Lock()
	m.generation++
	m.bootstrapped = ""
	gen := m.generation
	m.mu.Unlock()

	m.apply(gen, func(s *State) {
		s.Credential = nil
		s.Profile = nil
		s.IsLoading = false
	})
}

// RefreshProfile re-fetches the profile when a credential is present.
func (m *Manager) RefreshProfile(ctx context.Context) error {
	cred, err := m.store.Read()
	if err != nil {
		return fmt.Errorf("failed to read credential: %w", err)
	}
	if cred == nil {
		return nil
	}

	gen := m.currentGeneration()
	profile, err := m.api.Me(ctx)
	if err == nil && (profile == nil || profile.UserID == "") {
		err = ErrMalformedProfile
	}
	if err != nil {
		return fmt.Errorf("failed to refresh profile: %w", err)
	}

	m.apply(gen, func(s *State) {
		s.Credential = cred
		s.Profile = profile
	})
	return nil
}

// State returns the current snapshot
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PrimaryAccount returns the transfer source account, if any.
func (m *Manager) PrimaryAccount() (client.Account, bool) {
	return m.State().Profile.PrimaryAccount()
}

// Subscribe registers fn to receive every state change. Notifications are
// delivered synchronously before the causing operation returns.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs = append(m.subs, subscriber{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Close drops subscribers and ignores any result that arrives afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = nil
}

func (m *Manager) currentGeneration() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// apply mutates state when gen is still current and notifies subscribers.
// A stale generation only ends the loading window and yields
// ErrSessionChanged. Returns ErrClosed once the manager is closed.
func (m *Manager) apply(gen uint64, mutate func(*State)) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	var result error
	before := m.state
	if gen == m.generation {
		mutate(&m.state)
	} else {
		m.state.IsLoading = false
		result = ErrSessionChanged
	}
	after := m.state
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	if before == after {
		return result
	}
	for _, s := range subs {
		s.fn(after)
	}
	return result
}
