// ABOUTME: Error types returned by the API client
// ABOUTME: Decodes RFC 7807 problem details and names transport failures

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized matches any APIError with status 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRequestCanceled is returned when the caller's context is canceled.
	ErrRequestCanceled = errors.New("request canceled")
	// ErrRequestTimeout is returned when the request deadline passes.
	ErrRequestTimeout = errors.New("request timed out")
)

// APIError is a non-2xx response from the ledger service.
type APIError struct {
	StatusCode int      `json:"status"`
	Title      string   `json:"title"`
	Detail     string   `json:"detail"`
	Errors     []string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("backend error (%d): %s", e.StatusCode, e.Detail)
	case e.Title != "":
		return fmt.Sprintf("backend error (%d): %s", e.StatusCode, e.Title)
	default:
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
}

// Is lets errors.Is(err, ErrUnauthorized) match a 401.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ConnectionError wraps a failure to reach the backend at all.
type ConnectionError struct {
	BaseURL string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to backend at %s: %v", e.BaseURL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a network-level failure that may
// succeed on retry.
func IsTransient(err error) bool {
	var connErr *ConnectionError
	return errors.Is(err, ErrRequestTimeout) || errors.As(err, &connErr)
}

// decodeError reads a problem-detail body. Bodies that are not problem
// details still yield an APIError carrying the status code.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var problem struct {
		Title  string   `json:"title"`
		Detail string   `json:"detail"`
		Errors []string `json:"errors"`
		Error  string   `json:"error"`
	}
	if err := json.Unmarshal(body, &problem); err != nil {
		return apiErr
	}
	apiErr.Title = strings.TrimSpace(problem.Title)
	apiErr.Detail = strings.TrimSpace(problem.Detail)
	apiErr.Errors = problem.Errors
	if apiErr.Detail == "" && problem.Error != "" {
		apiErr.Detail = problem.Error
	}
	return apiErr
}
