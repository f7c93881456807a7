// ABOUTME: Declarative field rules for the send-money form
// ABOUTME: Returns field/message pairs before any workflow transition

package transfer

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/markalston/omnibus-cli/internal/money"
)

// Field names
const (
	FieldRecipient   = "recipient"
	FieldAmount      = "amount"
	FieldDescription = "description"
)

// Field messages
const (
	MsgRecipientRequired = "Recipient username is required"
	MsgAmountInvalid     = "Enter a valid amount"
	MsgAmountPositive    = "Amount must be positive"
	MsgAmountTooLarge    = "Amount too large"
	MsgAmountPrecision   = "Amount can have at most 2 decimal places"
	MsgDescriptionLong   = "Description must be 255 characters or fewer"
	MsgLookupRequired    = "Look up the recipient before continuing"
)

// FieldError is one failed rule
type FieldError struct {
	Field   string
	Message string
}

// Input is the raw form state
type Input struct {
	Recipient   string
	Amount      string
	Description string
}

// Rules bound the form values
type Rules struct {
	MaxAmount      decimal.Decimal
	MaxDescription int
}

// DefaultRules returns the service's limits
func DefaultRules() Rules {
	return Rules{
		MaxAmount:      decimal.NewFromInt(1_000_000),
		MaxDescription: 255,
	}
}

type rule struct {
	field string
	check func(in Input, amount decimal.Decimal, parsed bool) string
}

func (r Rules) rules() []rule {
	return []rule{
		{FieldRecipient, func(in Input, _ decimal.Decimal, _ bool) string {
			if strings.TrimSpace(in.Recipient) == "" {
				return MsgRecipientRequired
			}
			return ""
		}},
		{FieldAmount, func(_ Input, amount decimal.Decimal, parsed bool) string {
			switch {
			case !parsed:
				return MsgAmountInvalid
			case !amount.IsPositive():
				return MsgAmountPositive
			case amount.GreaterThan(r.MaxAmount):
				return MsgAmountTooLarge
			case !money.FitsCents(amount):
				return MsgAmountPrecision
			}
			return ""
		}},
		{FieldDescription, func(in Input, _ decimal.Decimal, _ bool) string {
			if r.MaxDescription > 0 && utf8.RuneCountInString(strings.TrimSpace(in.Description)) > r.MaxDescription {
				return MsgDescriptionLong
			}
			return ""
		}},
	}
}

// Validate evaluates every rule and returns the parsed amount alongside any
// failures, in field order.
func (r Rules) Validate(in Input) (decimal.Decimal, []FieldError) {
	amount, err := money.ParseAmount(in.Amount)
	parsed := err == nil

	var errs []FieldError
	for _, ru := range r.rules() {
		if msg := ru.check(in, amount, parsed); msg != "" {
			errs = append(errs, FieldError{Field: ru.field, Message: msg})
		}
	}
	return amount, errs
}

// ValidateField checks a single field in isolation, for per-field form
// validation. Unknown fields always pass.
func (r Rules) ValidateField(field, value string) error {
	var in Input
	switch field {
	case FieldRecipient:
		in.Recipient = value
	case FieldAmount:
		in.Amount = value
	case FieldDescription:
		in.Description = value
	default:
		return nil
	}

	amount, err := money.ParseAmount(in.Amount)
	for _, ru := range r.rules() {
		if ru.field != field {
			continue
		}
		if msg := ru.check(in, amount, err == nil); msg != "" {
			return errors.New(msg)
		}
	}
	return nil
}
