// ABOUTME: Error taxonomy for recipient lookup and transfer submission
// ABOUTME: Classifies API failures into user-facing kinds and messages

package transfer

import (
	"errors"
	"net/http"

	"github.com/markalston/omnibus-cli/internal/client"
)

// Kind names a class of workflow failure
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNoSourceAccount
	KindNotFound
	KindSelfTransfer
	KindLookupUnavailable
	KindDuplicate
	KindBusinessRejection
	KindRejected
	KindTransient
	KindSessionInvalid
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNoSourceAccount:
		return "no_source_account"
	case KindNotFound:
		return "not_found"
	case KindSelfTransfer:
		return "self_transfer"
	case KindLookupUnavailable:
		return "lookup_unavailable"
	case KindDuplicate:
		return "duplicate"
	case KindBusinessRejection:
		return "business_rejection"
	case KindRejected:
		return "rejected"
	case KindTransient:
		return "transient"
	case KindSessionInvalid:
		return "session_invalid"
	default:
		return "unknown"
	}
}

// User-facing messages
const (
	MsgNotFound          = "User not found"
	MsgSelfTransfer      = "You cannot send money to yourself"
	MsgLookupUnavailable = "Recipient lookup is unavailable. Please try again."
	MsgNoSourceAccount   = "You have no account to send from"
	MsgDuplicate         = "This transfer may have already been processed (duplicate request). Go back to start a new transfer."
	MsgInsufficientFunds = "Insufficient funds."
	MsgTransferFailed    = "Transfer failed. Please try again."
	MsgTransient         = "Could not reach the server. Retrying is safe; the transfer will not be sent twice."
	MsgSessionInvalid    = "Your session has expired. Please log in again."
)

// Error is a classified workflow failure
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or 0 when err is not a workflow error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Retryable reports whether the same request may be sent again unchanged.
func (k Kind) Retryable() bool {
	return k == KindTransient
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// classifySubmit maps a POST /transfers failure to a workflow error.
func classifySubmit(err error) *Error {
	if errors.Is(err, client.ErrUnauthorized) {
		return newError(KindSessionInvalid, MsgSessionInvalid, err)
	}
	// a canceled submission may still have reached the server
	if client.IsTransient(err) || errors.Is(err, client.ErrRequestCanceled) {
		return newError(KindTransient, MsgTransient, err)
	}

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return newError(KindRejected, MsgTransferFailed, err)
	}

	switch {
	case apiErr.StatusCode == http.StatusConflict:
		return newError(KindDuplicate, MsgDuplicate, err)
	case apiErr.StatusCode == http.StatusUnprocessableEntity:
		return newError(KindBusinessRejection, detailOr(apiErr, MsgInsufficientFunds), err)
	case apiErr.StatusCode >= 500:
		return newError(KindTransient, detailOr(apiErr, MsgTransferFailed), err)
	default:
		return newError(KindRejected, detailOr(apiErr, MsgTransferFailed), err)
	}
}

// classifyLookup maps a GET /accounts/lookup failure to a workflow error.
func classifyLookup(err error) *Error {
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return newError(KindSessionInvalid, MsgSessionInvalid, err)
	case client.StatusCode(err) == http.StatusNotFound:
		return newError(KindNotFound, MsgNotFound, err)
	default:
		return newError(KindLookupUnavailable, MsgLookupUnavailable, err)
	}
}

func detailOr(apiErr *client.APIError, fallback string) string {
	if apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}
