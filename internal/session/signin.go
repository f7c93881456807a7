// ABOUTME: Sign-in and sign-up flows that turn an auth response into a session
// ABOUTME: Both exchange credentials with the service, then hand off to Manager.Login

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/markalston/omnibus-cli/internal/client"
	"github.com/markalston/omnibus-cli/internal/credential"
)

// Authenticator exchanges user secrets for a bearer token
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*client.AuthResponse, error)
	Register(ctx context.Context, username, email, password string) (*client.AuthResponse, error)
}

// now is replaced in tests
var now = time.Now

// SignIn authenticates with username and password and establishes the session.
func SignIn(ctx context.Context, m *Manager, auth Authenticator, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	resp, err := auth.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return establish(ctx, m, resp)
}

// SignUp registers a new user and establishes the session.
func SignUp(ctx context.Context, m *Manager, auth Authenticator, username, email, password string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return errors.New("username, email and password are required")
	}

	resp, err := auth.Register(ctx, username, email, password)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	return establish(ctx, m, resp)
}

func establish(ctx context.Context, m *Manager, resp *client.AuthResponse) error {
	if resp == nil || resp.Token == "" {
		return errors.New("authentication response carried no token")
	}
	return m.Login(ctx, credential.FromAuth(resp.Token, resp.ExpiresInMs, now()))
}
