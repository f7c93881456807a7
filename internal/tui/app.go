// ABOUTME: Root bubbletea model for the interactive client
// ABOUTME: Routes between sign-in, home, and the send-money screens and follows session changes

package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/markalston/omnibus-cli/internal/client"
	"github.com/markalston/omnibus-cli/internal/session"
	"github.com/markalston/omnibus-cli/internal/transfer"
	"github.com/markalston/omnibus-cli/internal/tui/styles"
)

// Screen represents the current TUI screen
type Screen int

const (
	ScreenLoading Screen = iota
	ScreenLogin
	ScreenHome
	ScreenSend
	ScreenReview
	ScreenSuccess
)

// Layout constants
const (
	minTerminalWidth = 80
	recentLimit      = 5
)

const (
	modeSignIn   = "signin"
	modeRegister = "register"
)

const msgSessionEnded = "Your session has ended. Please sign in again."

// ActivitySource lists and invalidates cached transaction history
type ActivitySource interface {
	Transactions(ctx context.Context, accountID string) ([]client.Transaction, error)
	Invalidate()
}

// Deps are the components the App drives
type Deps struct {
	Session     *session.Manager
	Auth        session.Authenticator
	Activity    ActivitySource
	NewWorkflow func() *transfer.Workflow
	Rules       transfer.Rules
}

type bootstrapDoneMsg struct{ err error }

type sessionChangedMsg struct{}

type authDoneMsg struct{ err error }

type activityLoadedMsg struct {
	txns []client.Transaction
	err  error
}

type refreshDoneMsg struct{ err error }

type lookupDoneMsg struct{ err error }

type confirmDoneMsg struct {
	outcome *transfer.Outcome
	err     error
}

type loggedOutMsg struct{ err error }

// App is the root model for the TUI
type App struct {
	session     *session.Manager
	auth        session.Authenticator
	activity    ActivitySource
	newWorkflow func() *transfer.Workflow
	rules       transfer.Rules

	ctx         context.Context
	cancel      context.CancelFunc
	sessionCh   chan struct{}
	unsubscribe func()

	screen     Screen
	width      int
	height     int
	spinner    spinner.Model
	busy       bool
	loggingOut bool
	err        string
	info       string
	lastUpdate time.Time

	form *huh.Form

	// Login form values
	loginMode string
	username  string
	email     string
	password  string

	// Send form values
	wf        *transfer.Workflow
	recipient string
	amount    string
	note      string

	txns   []client.Transaction
	txnErr string
}

// New creates the TUI application and subscribes it to session changes
func New(deps Deps) *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		session:     deps.Session,
		auth:        deps.Auth,
		activity:    deps.Activity,
		newWorkflow: deps.NewWorkflow,
		rules:       deps.Rules,
		ctx:         ctx,
		cancel:      cancel,
		sessionCh:   make(chan struct{}, 1),
		screen:      ScreenLoading,
		loginMode:   modeSignIn,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(styles.Primary)),
		),
	}
	a.unsubscribe = deps.Session.Subscribe(a.notifySession)
	return a
}

// notifySession runs on the session manager's goroutine. Notifications
// coalesce; the handler always reads the latest state.
func (a *App) notifySession(session.State) {
	select {
	case a.sessionCh <- struct{}{}:
	default:
	}
}

// Close cancels in-flight requests and drops the session subscription
func (a *App) Close() {
	a.unsubscribe()
	a.cancel()
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	a.busy = true
	return tea.Batch(a.spinner.Tick, a.bootstrap(), a.waitForSession())
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, a.updateForm(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.screen {
		case ScreenLogin:
			return a, a.updateLogin(msg)
		case ScreenHome:
			return a, a.updateHome(msg)
		case ScreenSend:
			return a, a.updateSend(msg)
		case ScreenReview:
			return a, a.updateReview(msg)
		case ScreenSuccess:
			return a, a.updateSuccess(msg)
		}
		return a, nil

	case bootstrapDoneMsg:
		a.busy = false
		if msg.err != nil && client.IsTransient(msg.err) {
			a.err = "Could not reach the ledger: " + msg.err.Error()
		}
		if a.session.State().IsAuthenticated() {
			return a, a.goHome()
		}
		return a, a.showLogin()

	case sessionChangedMsg:
		return a, tea.Batch(a.onSessionChanged(), a.waitForSession())

	case authDoneMsg:
		a.busy = false
		a.password = ""
		if msg.err != nil {
			a.err = authMessage(msg.err)
			return a, a.showLogin()
		}
		if !a.session.State().IsAuthenticated() {
			a.err = msgSessionEnded
			return a, a.showLogin()
		}
		a.err = ""
		a.info = ""
		return a, a.goHome()

	case activityLoadedMsg:
		a.lastUpdate = time.Now()
		if msg.err != nil {
			a.txnErr = msg.err.Error()
			return a, nil
		}
		a.txnErr = ""
		a.txns = msg.txns
		return a, nil

	case refreshDoneMsg:
		a.busy = false
		if msg.err != nil {
			a.err = "Refresh failed: " + msg.err.Error()
		}
		return a, a.loadActivity()

	case lookupDoneMsg:
		return a, a.handleLookupDone(msg)

	case confirmDoneMsg:
		return a, a.handleConfirmDone(msg)

	case loggedOutMsg:
		a.busy = false
		a.loggingOut = false
		if msg.err != nil {
			a.err = "Logout failed: " + msg.err.Error()
		}
		if a.screen != ScreenLogin {
			return a, a.showLogin()
		}
		return a, nil
	}

	// Forward everything else to the active form (huh internals)
	return a, a.updateForm(msg)
}

// onSessionChanged redirects to sign-in whenever authentication is lost
// outside the sign-in screen.
func (a *App) onSessionChanged() tea.Cmd {
	st := a.session.State()
	if st.IsLoading || st.IsAuthenticated() {
		return nil
	}
	if a.screen == ScreenLoading || a.screen == ScreenLogin {
		return nil
	}
	return a.sessionEnded()
}

func (a *App) sessionEnded() tea.Cmd {
	a.wf = nil
	a.txns = nil
	a.busy = false
	a.info = ""
	if a.loggingOut {
		a.err = ""
		a.info = "Signed out"
	} else {
		a.err = msgSessionEnded
	}
	return a.showLogin()
}

func (a *App) updateForm(msg tea.Msg) tea.Cmd {
	if a.form == nil || (a.screen != ScreenLogin && a.screen != ScreenSend) {
		return nil
	}
	model, cmd := a.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		a.form = f
	}
	return cmd
}

func (a *App) updateLogin(msg tea.KeyMsg) tea.Cmd {
	if a.busy {
		return nil
	}
	cmd := a.updateForm(msg)
	if a.form != nil && a.form.State == huh.StateCompleted {
		a.busy = true
		a.err = ""
		return tea.Batch(a.spinner.Tick, a.authenticate())
	}
	return cmd
}

func (a *App) updateHome(msg tea.KeyMsg) tea.Cmd {
	if a.busy {
		return nil
	}
	switch msg.String() {
	case "q":
		return tea.Quit
	case "s":
		a.err = ""
		return a.startSend()
	case "r":
		a.busy = true
		a.err = ""
		return tea.Batch(a.spinner.Tick, a.refresh())
	case "l":
		a.busy = true
		a.loggingOut = true
		return a.logout()
	}
	return nil
}

func (a *App) updateSend(msg tea.KeyMsg) tea.Cmd {
	if a.busy {
		return nil
	}
	if msg.String() == "esc" {
		a.wf = nil
		a.err = ""
		return a.goHome()
	}
	cmd := a.updateForm(msg)
	if a.form != nil && a.form.State == huh.StateCompleted {
		a.wf.SetRecipient(a.recipient)
		a.wf.SetAmount(a.amount)
		a.wf.SetDescription(a.note)
		a.busy = true
		a.err = ""
		return tea.Batch(a.spinner.Tick, a.lookup())
	}
	return cmd
}

func (a *App) updateReview(msg tea.KeyMsg) tea.Cmd {
	// Ignore every key while a submission is outstanding
	if a.busy {
		return nil
	}
	switch msg.String() {
	case "enter", "y":
		if a.wf.View().Locked {
			return nil
		}
		a.busy = true
		a.err = ""
		return tea.Batch(a.spinner.Tick, a.confirm())
	case "b", "esc":
		if err := a.wf.Back(); err != nil {
			return nil
		}
		a.err = ""
		return a.showSendForm()
	}
	return nil
}

func (a *App) updateSuccess(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "n", "enter":
		if err := a.wf.SendAnother(); err != nil {
			return nil
		}
		a.recipient, a.amount, a.note = "", "", ""
		return a.showSendForm()
	case "h", "esc":
		a.wf = nil
		return a.goHome()
	}
	return nil
}

func (a *App) handleLookupDone(msg lookupDoneMsg) tea.Cmd {
	if errors.Is(msg.err, transfer.ErrStaleLookup) || a.wf == nil || a.screen != ScreenSend {
		return nil
	}
	a.busy = false
	if msg.err != nil {
		if transfer.KindOf(msg.err) == transfer.KindSessionInvalid {
			return a.sessionEnded()
		}
		a.err = msg.err.Error()
		return a.showSendForm()
	}
	if err := a.wf.Review(); err != nil {
		a.err = err.Error()
		return a.showSendForm()
	}
	a.screen = ScreenReview
	a.form = nil
	return nil
}

func (a *App) handleConfirmDone(msg confirmDoneMsg) tea.Cmd {
	if a.wf == nil || a.screen != ScreenReview {
		return nil
	}
	a.busy = false
	if msg.err != nil {
		if transfer.KindOf(msg.err) == transfer.KindSessionInvalid {
			return a.sessionEnded()
		}
		a.err = msg.err.Error()
		return nil
	}
	a.err = ""
	a.screen = ScreenSuccess
	return a.loadActivity()
}

func (a *App) goHome() tea.Cmd {
	a.screen = ScreenHome
	a.form = nil
	return a.loadActivity()
}

func (a *App) startSend() tea.Cmd {
	a.wf = a.newWorkflow()
	a.recipient, a.amount, a.note = "", "", ""
	return a.showSendForm()
}

func (a *App) showLogin() tea.Cmd {
	a.screen = ScreenLogin
	a.password = ""
	a.form = newLoginForm(&a.loginMode, &a.username, &a.email, &a.password)
	return a.form.Init()
}

func (a *App) showSendForm() tea.Cmd {
	a.screen = ScreenSend
	a.form = newSendForm(a.rules, &a.recipient, &a.amount, &a.note)
	return a.form.Init()
}

// Commands

func (a *App) waitForSession() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-a.sessionCh:
			return sessionChangedMsg{}
		case <-a.ctx.Done():
			return nil
		}
	}
}

func (a *App) bootstrap() tea.Cmd {
	return func() tea.Msg {
		return bootstrapDoneMsg{err: a.session.Bootstrap(a.ctx)}
	}
}

func (a *App) authenticate() tea.Cmd {
	mode, username, email, password := a.loginMode, a.username, a.email, a.password
	return func() tea.Msg {
		var err error
		if mode == modeRegister {
			err = session.SignUp(a.ctx, a.session, a.auth, username, email, password)
		} else {
			err = session.SignIn(a.ctx, a.session, a.auth, username, password)
		}
		return authDoneMsg{err: err}
	}
}

func (a *App) loadActivity() tea.Cmd {
	acct, ok := a.session.PrimaryAccount()
	if !ok || a.activity == nil {
		return nil
	}
	return func() tea.Msg {
		txns, err := a.activity.Transactions(a.ctx, acct.ID)
		return activityLoadedMsg{txns: txns, err: err}
	}
}

func (a *App) refresh() tea.Cmd {
	return func() tea.Msg {
		if a.activity != nil {
			a.activity.Invalidate()
		}
		return refreshDoneMsg{err: a.session.RefreshProfile(a.ctx)}
	}
}

func (a *App) logout() tea.Cmd {
	return func() tea.Msg {
		return loggedOutMsg{err: a.session.Logout()}
	}
}

func (a *App) lookup() tea.Cmd {
	wf := a.wf
	return func() tea.Msg {
		_, err := wf.LookupRecipient(a.ctx)
		return lookupDoneMsg{err: err}
	}
}

func (a *App) confirm() tea.Cmd {
	wf := a.wf
	return func() tea.Msg {
		outcome, err := wf.Confirm(a.ctx)
		return confirmDoneMsg{outcome: outcome, err: err}
	}
}

// authMessage prefers the server's problem detail
func authMessage(err error) string {
	if errors.Is(err, client.ErrUnauthorized) {
		return "Invalid username or password"
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}

// Run starts the TUI and blocks until the user quits
func Run(deps Deps) error {
	app := New(deps)
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
