// ABOUTME: Request and response shapes for the Omnibus ledger API
// ABOUTME: Amounts are exact decimals; the wire carries plain JSON numbers

package client

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// AuthResponse is returned by /auth/login and /auth/register
type AuthResponse struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Token       string `json:"token"`
	ExpiresInMs int64  `json:"expiresInMs"`
}

// LoginRequest is the /auth/login payload
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the /auth/register payload
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserProfile is the /auth/me snapshot of the authenticated user
type UserProfile struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Accounts []Account `json:"accounts"`
}

// PrimaryAccount returns the first account, the only transfer source.
func (p *UserProfile) PrimaryAccount() (Account, bool) {
	if p == nil || len(p.Accounts) == 0 {
		return Account{}, false
	}
	return p.Accounts[0], true
}

// Account is a ledger account owned by the user
type Account struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId,omitempty"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	CreatedAt     string          `json:"createdAt"`
}

// AccountLookup is the /accounts/lookup result for a username
type AccountLookup struct {
	AccountID     string `json:"accountId"`
	Username      string `json:"username"`
	AccountNumber string `json:"accountNumber"`
}

// Transaction is one entry of an account's history
type Transaction struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	SourceAccountID string          `json:"sourceAccountId"`
	TargetAccountID string          `json:"targetAccountId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	CreatedAt       string          `json:"createdAt"`
	CompletedAt     *string         `json:"completedAt"`
}

// TransferRequest is the POST /transfers payload
type TransferRequest struct {
	SourceAccountID string      `json:"sourceAccountId"`
	TargetAccountID string      `json:"targetAccountId"`
	Amount          json.Number `json:"amount"`
	Currency        string      `json:"currency"`
	Description     string      `json:"description,omitempty"`
}

// NewTransferRequest builds a request carrying amount as a plain JSON number.
func NewTransferRequest(source, target string, amount decimal.Decimal, currency, description string) *TransferRequest {
	return &TransferRequest{
		SourceAccountID: source,
		TargetAccountID: target,
		Amount:          json.Number(amount.StringFixed(2)),
		Currency:        currency,
		Description:     description,
	}
}

// TransferResponse is the POST /transfers result
type TransferResponse struct {
	TransactionID   string          `json:"transactionId"`
	Status          string          `json:"status"`
	SourceAccountID string          `json:"sourceAccountId"`
	TargetAccountID string          `json:"targetAccountId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	CreatedAt       string          `json:"createdAt"`

	// Replayed is set from the Idempotency-Replayed response header.
	Replayed bool `json:"-"`
}
