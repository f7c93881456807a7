// ABOUTME: huh forms for signing in and composing a transfer
// ABOUTME: Field validators reuse the transfer rules so errors match the workflow

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/markalston/omnibus-cli/internal/transfer"
	"github.com/markalston/omnibus-cli/internal/tui/styles"
)

func newLoginForm(mode, username, email, password *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Welcome to Omnibus").
				Options(
					huh.NewOption("Sign in", modeSignIn),
					huh.NewOption("Create an account", modeRegister),
				).
				Value(mode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(username).
				Validate(required("Username")),
			huh.NewInput().
				Title("Email").
				Value(email).
				Validate(required("Email")),
		).WithHideFunc(func() bool { return *mode != modeRegister }),
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(username).
				Validate(required("Username")),
		).WithHideFunc(func() bool { return *mode == modeRegister }),
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(required("Password")),
		),
	).WithTheme(styles.FormTheme())
}

func newSendForm(rules transfer.Rules, recipient, amount, note *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Recipient").
				Description("Username of the person to pay").
				Placeholder("e.g., bob").
				Value(recipient).
				Validate(fieldValidator(rules, transfer.FieldRecipient)),
			huh.NewInput().
				Title("Amount").
				Placeholder("e.g., 25.00").
				Value(amount).
				Validate(fieldValidator(rules, transfer.FieldAmount)),
			huh.NewInput().
				Title("Note").
				Description("Optional").
				CharLimit(rules.MaxDescription).
				Value(note).
				Validate(fieldValidator(rules, transfer.FieldDescription)),
		).Title("Send money"),
	).WithTheme(styles.FormTheme())
}

func fieldValidator(rules transfer.Rules, field string) func(string) error {
	return func(s string) error {
		return rules.ValidateField(field, s)
	}
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
