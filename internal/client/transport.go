// ABOUTME: RoundTripper that attaches the bearer credential to every request
// ABOUTME: A 401 clears the credential and notifies listeners before the caller sees it

package client

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/markalston/omnibus-cli/internal/credential"
)

// authTransport is the single seam through which every API call passes.
// No retries happen here; retry policy belongs to callers.
type authTransport struct {
	base  http.RoundTripper
	store credential.Store

	mu       sync.RWMutex
	handlers []func()
}

func newAuthTransport(base http.RoundTripper, store credential.Store) *authTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authTransport{base: base, store: store}
}

// RoundTrip implements http.RoundTripper
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cred, err := t.store.Read()
	if err != nil {
		slog.Warn("Credential unreadable, sending request unauthenticated", "error", err)
	}
	if cred != nil && cred.Token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.invalidate(req)
	}
	return resp, nil
}

// invalidate clears the store and runs the unauthorized handlers
// synchronously so the forced logout happens before the response is returned.
func (t *authTransport) invalidate(req *http.Request) {
	slog.Warn("Authorization rejected, clearing session",
		"method", req.Method,
		"path", req.URL.Path,
	)
	if err := t.store.Clear(); err != nil {
		slog.Error("Failed to clear credential", "error", err)
	}

	t.mu.RLock()
	handlers := make([]func(), len(t.handlers))
	copy(handlers, t.handlers)
	t.mu.RUnlock()

	for _, fn := range handlers {
		fn()
	}
}

func (t *authTransport) onUnauthorized(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, fn)
}
