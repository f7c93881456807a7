// ABOUTME: Send-money state machine: Input -> Review -> Success
// ABOUTME: Mints one idempotency key per review episode and reuses it on retry

package transfer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/markalston/omnibus-cli/internal/client"
)

// Step is a workflow state
type Step int

const (
	StepInput Step = iota
	StepReview
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepInput:
		return "input"
	case StepReview:
		return "review"
	case StepSuccess:
		return "success"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy is returned while a submission or lookup is outstanding.
	ErrBusy = errors.New("a request is already in flight")
	// ErrWrongStep is returned when an operation is not valid in the current step.
	ErrWrongStep = errors.New("operation not allowed in this step")
	// ErrStaleLookup is returned when the recipient changed while a lookup was in flight.
	ErrStaleLookup = errors.New("recipient changed during lookup")
)

// Submitter posts a transfer
type Submitter interface {
	CreateTransfer(ctx context.Context, idempotencyKey string, req *client.TransferRequest) (*client.TransferResponse, error)
}

// Session is the workflow's read-only view of the session plus its refresh hook
type Session interface {
	SourceAccount
	RefreshProfile(ctx context.Context) error
}

// Invalidator drops cached data that a transfer makes stale
type Invalidator interface {
	Invalidate()
}

// Outcome is a completed transfer
type Outcome struct {
	TransactionID string
	Status        string
	Amount        decimal.Decimal
	Currency      string
	CreatedAt     string
	Recipient     string
	Replayed      bool
}

// View is a snapshot for rendering
type View struct {
	Step        Step
	Recipient   string
	Candidate   *Candidate
	Amount      string
	Description string
	Source      client.Account
	HasSource   bool

	IdempotencyKey string
	Pending        *client.TransferRequest
	LookingUp      bool
	Submitting     bool
	Locked         bool

	LookupErr   *Error
	Err         *Error
	FieldErrors []FieldError
	Outcome     *Outcome
}

// Workflow drives one send-money episode at a time. Methods are safe for
// concurrent use; network calls run without holding the lock.
type Workflow struct {
	resolver *Resolver
	api      Submitter
	session  Session
	activity Invalidator
	rules    Rules
	newKey   func() string

	mu          sync.Mutex
	step        Step
	handle      string
	candidate   *Candidate
	lookupSeq   uint64
	lookingUp   bool
	amountText  string
	description string

	key        string
	pending    *client.TransferRequest
	recipient  string
	submitting bool
	locked     bool

	lookupErr *Error
	err       *Error
	fieldErrs []FieldError
	outcome   *Outcome
}

// Option configures a Workflow
type Option func(*Workflow)

// WithRules overrides the default field limits
func WithRules(r Rules) Option {
	return func(w *Workflow) { w.rules = r }
}

// WithKeyGenerator replaces the UUID idempotency key source
func WithKeyGenerator(fn func() string) Option {
	return func(w *Workflow) { w.newKey = fn }
}

// WithActivity registers a cache to invalidate after a completed transfer
func WithActivity(inv Invalidator) Option {
	return func(w *Workflow) { w.activity = inv }
}

// NewWorkflow creates a workflow in the Input step
func NewWorkflow(resolver *Resolver, api Submitter, session Session, opts ...Option) *Workflow {
	w := &Workflow{
		resolver: resolver,
		api:      api,
		session:  session,
		rules:    DefaultRules(),
		newKey:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetRecipient records the typed handle. Any change discards the held candidate.
func (w *Workflow) SetRecipient(handle string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepInput {
		return
	}
	handle = strings.TrimSpace(handle)
	if handle == w.handle {
		return
	}
	w.handle = handle
	w.candidate = nil
	w.lookupErr = nil
	w.lookingUp = false
	w.lookupSeq++
}

// SetAmount records the typed amount
func (w *Workflow) SetAmount(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepInput {
		w.amountText = strings.TrimSpace(text)
	}
}

// SetDescription records the optional note
func (w *Workflow) SetDescription(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepInput {
		w.description = strings.TrimSpace(text)
	}
}

// LookupRecipient resolves the current handle. A result for a handle that
// has since changed is discarded.
func (w *Workflow) LookupRecipient(ctx context.Context) (*Candidate, error) {
	w.mu.Lock()
	if w.step != StepInput {
		w.mu.Unlock()
		return nil, ErrWrongStep
	}
	handle, seq := w.handle, w.lookupSeq
	w.candidate = nil
	w.lookupErr = nil
	w.lookingUp = true
	w.mu.Unlock()

	cand, err := w.resolver.Lookup(ctx, handle)

	w.mu.Lock()
	if w.lookupSeq != seq || w.step != StepInput {
		w.mu.Unlock()
		return nil, ErrStaleLookup
	}
	w.lookingUp = false

	var werr *Error
	if err != nil && errors.As(err, &werr) && werr.Kind == KindSessionInvalid {
		w.resetLocked()
		w.mu.Unlock()
		return nil, werr
	}
	if err != nil {
		if werr == nil {
			werr = newError(KindLookupUnavailable, MsgLookupUnavailable, err)
		}
		w.lookupErr = werr
		w.mu.Unlock()
		return nil, werr
	}
	w.candidate = cand
	w.mu.Unlock()
	return cand, nil
}

// Review validates the form and advances to Review, minting a fresh
// idempotency key and freezing the request it will be sent with.
func (w *Workflow) Review() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step != StepInput {
		return ErrWrongStep
	}
	if w.lookingUp {
		return ErrBusy
	}

	amount, fieldErrs := w.rules.Validate(Input{
		Recipient:   w.handle,
		Amount:      w.amountText,
		Description: w.description,
	})
	w.fieldErrs = fieldErrs
	if len(fieldErrs) > 0 {
		return newError(KindValidation, fieldErrs[0].Message, nil)
	}

	if w.candidate == nil {
		return newError(KindValidation, MsgLookupRequired, nil)
	}

	source, ok := w.session.PrimaryAccount()
	if !ok {
		return newError(KindNoSourceAccount, MsgNoSourceAccount, nil)
	}
	if w.candidate.AccountID == source.ID {
		w.candidate = nil
		return newError(KindSelfTransfer, MsgSelfTransfer, nil)
	}

	w.key = w.newKey()
	w.pending = client.NewTransferRequest(source.ID, w.candidate.AccountID, amount, source.Currency, w.description)
	w.recipient = w.candidate.Username
	w.locked = false
	w.err = nil
	w.step = StepReview

	slog.Debug("Transfer ready for review", "key", shortKey(w.key), "recipient", w.recipient)
	return nil
}

// Back returns to Input and discards the key so the next attempt gets a new one.
func (w *Workflow) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step != StepReview {
		return ErrWrongStep
	}
	if w.submitting {
		return ErrBusy
	}
	w.key = ""
	w.pending = nil
	w.recipient = ""
	w.locked = false
	w.err = nil
	w.step = StepInput
	return nil
}

// Confirm submits the frozen request with the episode's key. On failure the
// workflow stays in Review; a retry reuses the same key. After a duplicate
// rejection no request is sent again until Back.
func (w *Workflow) Confirm(ctx context.Context) (*Outcome, error) {
	w.mu.Lock()
	if w.step != StepReview {
		w.mu.Unlock()
		return nil, ErrWrongStep
	}
	if w.submitting {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	if w.locked {
		err := w.err
		w.mu.Unlock()
		return nil, err
	}
	if w.key == "" || w.pending == nil {
		w.mu.Unlock()
		return nil, errors.New("no idempotency key for this transfer")
	}
	key, req, recipient := w.key, w.pending, w.recipient
	w.submitting = true
	w.err = nil
	w.mu.Unlock()

	slog.Info("Submitting transfer", "key", shortKey(key), "amount", req.Amount.String(), "currency", req.Currency)
	resp, err := w.api.CreateTransfer(ctx, key, req)

	w.mu.Lock()
	w.submitting = false
	if err != nil {
		werr := classifySubmit(err)
		slog.Warn("Transfer failed", "key", shortKey(key), "kind", werr.Kind, "error", err)
		if werr.Kind == KindSessionInvalid {
			w.resetLocked()
			w.mu.Unlock()
			return nil, werr
		}
		if werr.Kind == KindDuplicate {
			w.locked = true
		}
		w.err = werr
		w.mu.Unlock()
		return nil, werr
	}

	outcome := &Outcome{
		TransactionID: resp.TransactionID,
		Status:        resp.Status,
		Amount:        resp.Amount,
		Currency:      resp.Currency,
		CreatedAt:     resp.CreatedAt,
		Recipient:     recipient,
		Replayed:      resp.Replayed,
	}
	w.outcome = outcome
	w.key = ""
	w.pending = nil
	w.step = StepSuccess
	w.mu.Unlock()

	slog.Info("Transfer completed", "transaction", outcome.TransactionID, "status", outcome.Status, "replayed", outcome.Replayed)

	if err := w.session.RefreshProfile(ctx); err != nil {
		slog.Warn("Failed to refresh profile after transfer", "error", err)
	}
	if w.activity != nil {
		w.activity.Invalidate()
	}
	return outcome, nil
}

// SendAnother leaves Success and starts a clean Input step.
func (w *Workflow) SendAnother() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepSuccess {
		return ErrWrongStep
	}
	w.resetLocked()
	return nil
}

// Reset discards all transient state and returns to Input.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

func (w *Workflow) resetLocked() {
	w.step = StepInput
	w.handle = ""
	w.candidate = nil
	w.lookupSeq++
	w.lookingUp = false
	w.amountText = ""
	w.description = ""
	w.key = ""
	w.pending = nil
	w.recipient = ""
	w.submitting = false
	w.locked = false
	w.lookupErr = nil
	w.err = nil
	w.fieldErrs = nil
	w.outcome = nil
}

// View returns a snapshot of the workflow
func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		Step:           w.step,
		Recipient:      w.handle,
		Amount:         w.amountText,
		Description:    w.description,
		IdempotencyKey: w.key,
		LookingUp:      w.lookingUp,
		Submitting:     w.submitting,
		Locked:         w.locked,
		LookupErr:      w.lookupErr,
		Err:            w.err,
		Outcome:        w.outcome,
	}
	if w.candidate != nil {
		c := *w.candidate
		v.Candidate = &c
	}
	if w.pending != nil {
		p := *w.pending
		v.Pending = &p
	}
	if len(w.fieldErrs) > 0 {
		v.FieldErrors = append([]FieldError(nil), w.fieldErrs...)
	}
	v.Source, v.HasSource = w.session.PrimaryAccount()
	return v
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
