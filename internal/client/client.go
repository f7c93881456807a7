// ABOUTME: HTTP client for the Omnibus ledger API
// ABOUTME: Every call goes through the authenticated transport

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markalston/omnibus-cli/internal/credential"
)

// DefaultTimeout is the fixed per-request timeout
const DefaultTimeout = 15 * time.Second

// Client is the API client for the Omnibus ledger service
type Client struct {
	baseURL    string
	httpClient *http.Client
	transport  *authTransport
}

type options struct {
	timeout     time.Duration
	base        http.RoundTripper
	dialContext DialContextFunc
}

// Option configures a Client
type Option func(*options)

// WithTimeout overrides the fixed request timeout
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithBaseTransport sets the RoundTripper wrapped by the auth transport
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// WithDialContext routes connections through a custom dialer
func WithDialContext(fn DialContextFunc) Option {
	return func(o *options) { o.dialContext = fn }
}

// New creates a new API client with the given base URL. The store supplies
// the bearer credential and is cleared on any 401.
func New(baseURL string, store credential.Store, opts ...Option) *Client {
	o := &options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(o)
	}

	base := o.base
	if base == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if o.dialContext != nil {
			t.DialContext = o.dialContext
			t.Proxy = nil
		}
		base = t
	}

	transport := newAuthTransport(base, store)
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: transport,
		httpClient: &http.Client{
			Timeout:   o.timeout,
			Transport: transport,
		},
	}
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OnUnauthorized registers fn to run whenever a response is a 401. Handlers
// run after the credential store is cleared and before the call returns.
func (c *Client) OnUnauthorized(fn func()) {
	c.transport.onUnauthorized(fn)
}

// Login calls POST /auth/login
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	var resp AuthResponse
	if _, err := c.do(ctx, http.MethodPost, "/auth/login", &LoginRequest{Username: username, Password: password}, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register calls POST /auth/register
func (c *Client) Register(ctx context.Context, username, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	req := &RegisterRequest{Username: username, Email: email, Password: password}
	if _, err := c.do(ctx, http.MethodPost, "/auth/register", req, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me calls GET /auth/me
func (c *Client) Me(ctx context.Context) (*UserProfile, error) {
	var profile UserProfile
	if _, err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// LookupAccount calls GET /accounts/lookup?username=
func (c *Client) LookupAccount(ctx context.Context, username string) (*AccountLookup, error) {
	var lookup AccountLookup
	path := "/accounts/lookup?username=" + url.QueryEscape(username)
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &lookup); err != nil {
		return nil, err
	}
	return &lookup, nil
}

// Transactions calls GET /accounts/{accountId}/transactions
func (c *Client) Transactions(ctx context.Context, accountID string) ([]Transaction, error) {
	var txns []Transaction
	path := "/accounts/" + url.PathEscape(accountID) + "/transactions"
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// CreateTransfer calls POST /transfers tagged with the idempotency key
func (c *Client) CreateTransfer(ctx context.Context, idempotencyKey string, req *TransferRequest) (*TransferResponse, error) {
	if idempotencyKey == "" {
		return nil, errors.New("idempotency key is required")
	}

	headers := http.Header{}
	headers.Set("Idempotency-Key", idempotencyKey)

	var resp TransferResponse
	respHeader, err := c.do(ctx, http.MethodPost, "/transfers", req, headers, &resp)
	if err != nil {
		return nil, err
	}
	resp.Replayed = strings.EqualFold(respHeader.Get("Idempotency-Replayed"), "true")
	return &resp, nil
}

// do sends one request and decodes a 2xx body into out
func (c *Client) do(ctx context.Context, method, path string, in any, headers http.Header, out any) (http.Header, error) {
	var body *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal input: %w", err)
		}
		body = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.handleRequestError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Header, decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.Header, fmt.Errorf("invalid response from backend: %w", err)
		}
	}
	return resp.Header, nil
}

// handleRequestError converts context errors to named sentinels
func (c *Client) handleRequestError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ErrRequestCanceled
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrRequestTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrRequestTimeout
	}
	return &ConnectionError{BaseURL: c.baseURL, Err: err}
}
