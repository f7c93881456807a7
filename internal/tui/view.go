// ABOUTME: Rendering for each TUI screen and the surrounding frame
// ABOUTME: Header shows the signed-in user; footer lists the keys for the active screen

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/markalston/omnibus-cli/internal/activity"
	"github.com/markalston/omnibus-cli/internal/money"
	"github.com/markalston/omnibus-cli/internal/transfer"
	"github.com/markalston/omnibus-cli/internal/tui/icons"
	"github.com/markalston/omnibus-cli/internal/tui/styles"
	"github.com/markalston/omnibus-cli/internal/tui/widgets"
)

// View implements tea.Model
func (a *App) View() string {
	var content string

	switch a.screen {
	case ScreenLoading:
		content = a.spinner.View() + " Restoring your session..."
	case ScreenLogin:
		content = a.viewLogin()
	case ScreenHome:
		content = a.viewHome()
	case ScreenSend:
		content = a.viewSend()
	case ScreenReview:
		content = a.viewReview()
	case ScreenSuccess:
		content = a.viewSuccess()
	}

	return a.wrapWithFrame(content)
}

func (a *App) viewLogin() string {
	var sb strings.Builder
	sb.WriteString(a.renderMessages())
	if a.busy {
		sb.WriteString(a.spinner.View() + " Signing in...")
		return sb.String()
	}
	if a.form != nil {
		sb.WriteString(a.form.View())
	}
	return sb.String()
}

func (a *App) viewHome() string {
	st := a.session.State()
	p := st.Profile
	if p == nil {
		return a.spinner.View() + " Loading..."
	}

	var account strings.Builder
	account.WriteString(styles.Title.Render(icons.User.String() + " " + p.Username))
	account.WriteString("\n")
	if acct, ok := p.PrimaryAccount(); ok {
		account.WriteString(field("Account", acct.AccountNumber+" "+widgets.StatusBadge(acct.Status)))
		account.WriteString(field("Balance", styles.Amount.Render(money.Format(acct.Balance, acct.Currency))))
	} else {
		account.WriteString(styles.StatusWarning.Render(transfer.MsgNoSourceAccount))
		account.WriteString("\n")
	}
	account.WriteString(field("Email", p.Email))

	var sb strings.Builder
	sb.WriteString(a.renderMessages())
	if a.busy {
		sb.WriteString(a.spinner.View() + " Refreshing...\n")
	}
	sb.WriteString(styles.ActivePanel.Width(a.panelWidth()).Render(strings.TrimRight(account.String(), "\n")))
	sb.WriteString("\n")
	sb.WriteString(styles.Panel.Width(a.panelWidth()).Render(a.renderRecent()))
	return sb.String()
}

func (a *App) renderRecent() string {
	var sb strings.Builder
	sb.WriteString(styles.Title.Render("Recent activity"))
	sb.WriteString("\n")

	switch {
	case a.txnErr != "":
		sb.WriteString(styles.StatusCritical.Render(a.txnErr))
		return sb.String()
	case len(a.txns) == 0:
		sb.WriteString(styles.Subtitle.Render("No transactions yet."))
		return sb.String()
	}

	acct, _ := a.session.PrimaryAccount()
	for i, tx := range a.txns {
		if i == recentLimit {
			break
		}
		amount := money.Format(tx.Amount, tx.Currency)
		var line string
		switch activity.Direction(tx, acct.ID) {
		case "sent":
			line = styles.Sent.Render(icons.Sent.String() + " -" + amount)
		case "received":
			line = styles.Received.Render(icons.Received.String() + " +" + amount)
		default:
			line = "  " + amount
		}
		if tx.Description != "" {
			line += "  " + tx.Description
		}
		sb.WriteString(line + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (a *App) viewSend() string {
	var sb strings.Builder
	if acct, ok := a.session.PrimaryAccount(); ok {
		sb.WriteString(styles.Subtitle.Render(fmt.Sprintf("From %s  Available %s",
			acct.AccountNumber, money.Format(acct.Balance, acct.Currency))))
		sb.WriteString("\n\n")
	}
	sb.WriteString(a.renderMessages())
	if a.busy {
		sb.WriteString(a.spinner.View() + " Looking up recipient...")
		return sb.String()
	}
	if a.form != nil {
		sb.WriteString(a.form.View())
	}
	return sb.String()
}

func (a *App) viewReview() string {
	v := a.wf.View()

	var body strings.Builder
	body.WriteString(styles.Title.Render(icons.Send.String() + " Review transfer"))
	body.WriteString("\n")
	if v.Pending != nil {
		amount, _ := money.ParseAmount(v.Pending.Amount.String())
		body.WriteString(field("To", v.Candidate.Username+" ("+v.Candidate.AccountNumber+")"))
		body.WriteString(field("Amount", styles.Amount.Render(money.Format(amount, v.Pending.Currency))))
		if v.Pending.Description != "" {
			body.WriteString(field("Note", v.Pending.Description))
		}
		body.WriteString(field("From", v.Source.AccountNumber))
	}

	var sb strings.Builder
	sb.WriteString(styles.ActivePanel.Width(a.panelWidth()).Render(strings.TrimRight(body.String(), "\n")))
	sb.WriteString("\n")
	switch {
	case a.busy:
		sb.WriteString(a.spinner.View() + " Sending...")
	case v.Err != nil:
		sb.WriteString(styles.StatusCritical.Render(icons.Critical.String() + " " + v.Err.Message))
		if v.Err.Kind.Retryable() {
			sb.WriteString("\n" + styles.Help.Render("Press Enter to retry safely."))
		}
	}
	return sb.String()
}

func (a *App) viewSuccess() string {
	v := a.wf.View()
	o := v.Outcome
	if o == nil {
		return ""
	}

	var body strings.Builder
	body.WriteString(widgets.StatusText("Transfer sent", widgets.StatusOK))
	body.WriteString("\n\n")
	body.WriteString(field("To", o.Recipient))
	body.WriteString(field("Amount", styles.Amount.Render(money.Format(o.Amount, o.Currency))))
	body.WriteString(field("Status", widgets.StatusBadge(o.Status)))
	body.WriteString(field("Reference", o.TransactionID))
	if o.Replayed {
		body.WriteString(styles.Subtitle.Render("Already processed; showing the original result."))
	}
	if acct, ok := a.session.PrimaryAccount(); ok {
		body.WriteString("\n" + field("Balance", money.Format(acct.Balance, acct.Currency)))
	}
	return styles.ActivePanel.Width(a.panelWidth()).Render(strings.TrimRight(body.String(), "\n"))
}

func (a *App) renderMessages() string {
	var sb strings.Builder
	if a.err != "" {
		sb.WriteString(styles.StatusCritical.Render(icons.Critical.String() + " " + a.err))
		sb.WriteString("\n\n")
	}
	if a.info != "" {
		sb.WriteString(styles.StatusOK.Render(icons.Info.String() + " " + a.info))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func field(label, value string) string {
	return styles.Label.Render(label) + value + "\n"
}

// frameWidth leaves one column spare so the frame never wraps
func (a *App) frameWidth() int {
	if a.width-1 < minTerminalWidth {
		return minTerminalWidth
	}
	return a.width - 1
}

func (a *App) panelWidth() int {
	return a.frameWidth() - 4
}

// renderHeader creates the header bar with app branding and context
func (a *App) renderHeader() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	titleStyle := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	contextStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	leftRendered := fmt.Sprintf(" %s %s ", icons.App.String(), titleStyle.Render("Omnibus"))

	rightRendered := ""
	if p := a.session.State().Profile; p != nil && a.screen != ScreenLogin {
		rightRendered = " " + contextStyle.Render(p.Username) + " "
	}

	fillWidth := width - 4 - lipgloss.Width(leftRendered) - lipgloss.Width(rightRendered)
	if fillWidth < 0 {
		fillWidth = 0
	}

	header := "╭─" + leftRendered + strings.Repeat("─", fillWidth) + rightRendered + "─╮"
	return borderStyle.Render(header)
}

// renderFooter creates the footer with keyboard shortcuts and status
func (a *App) renderFooter() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	keyStyle := lipgloss.NewStyle().Foreground(styles.Primary)
	labelStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	statusStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	var shortcuts []string
	switch a.screen {
	case ScreenLoading:
		shortcuts = []string{"ctrl+c Quit"}
	case ScreenLogin:
		shortcuts = []string{"Enter Next", "shift+tab Back", "ctrl+c Quit"}
	case ScreenHome:
		shortcuts = []string{"s Send", "r Refresh", "l Logout", "q Quit"}
	case ScreenSend:
		shortcuts = []string{"Enter Next", "Esc Cancel"}
	case ScreenReview:
		shortcuts = []string{"Enter Confirm", "b Back"}
	case ScreenSuccess:
		shortcuts = []string{"n Send another", "h Home", "q Quit"}
	}

	var styled []string
	for _, s := range shortcuts {
		parts := strings.SplitN(s, " ", 2)
		styled = append(styled, keyStyle.Render(parts[0])+" "+labelStyle.Render(parts[1]))
	}
	leftText := " " + strings.Join(styled, "  ") + " "

	rightText := ""
	if !a.lastUpdate.IsZero() && a.screen == ScreenHome {
		rightText = " " + statusStyle.Render("Updated "+humanize.Time(a.lastUpdate)) + " "
	}

	fillWidth := width - 4 - lipgloss.Width(leftText) - lipgloss.Width(rightText)
	if fillWidth < 0 {
		fillWidth = 0
	}

	footer := "╰─" + leftText + strings.Repeat("─", fillWidth) + rightText + "─╯"
	return borderStyle.Render(footer)
}

// wrapWithFrame wraps content with header and footer
func (a *App) wrapWithFrame(content string) string {
	var sb strings.Builder

	sb.WriteString(a.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(content)
	sb.WriteString("\n")
	sb.WriteString(a.renderFooter())

	return sb.String()
}
