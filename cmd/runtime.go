// ABOUTME: Wires configuration into the client, session, and transfer components
// ABOUTME: Every command builds one runtime and closes it on exit

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/markalston/omnibus-cli/internal/activity"
	"github.com/markalston/omnibus-cli/internal/client"
	"github.com/markalston/omnibus-cli/internal/config"
	"github.com/markalston/omnibus-cli/internal/credential"
	"github.com/markalston/omnibus-cli/internal/session"
	"github.com/markalston/omnibus-cli/internal/transfer"
)

type runtime struct {
	cfg      *config.Config
	store    credential.Store
	client   *client.Client
	session  *session.Manager
	activity *activity.Service
	limiter  *rate.Limiter
	cancel   func()
}

func newRuntime(cfg *config.Config) (*runtime, error) {
	opts := []client.Option{client.WithTimeout(cfg.Timeout())}
	if cfg.AllProxy != "" {
		dial, err := client.NewSOCKS5DialContext(cfg.AllProxy)
		if err != nil {
			return nil, fmt.Errorf("invalid OMNIBUS_ALL_PROXY: %w", err)
		}
		opts = append(opts, client.WithDialContext(dial))
	}

	store := credential.NewFileStore(cfg.ConfigDir, cfg.CredentialSecret)
	c := client.New(cfg.APIURL, store, opts...)
	mgr := session.NewManager(store, c)
	c.OnUnauthorized(mgr.Invalidate)

	svc := activity.NewService(c, cfg.ActivityTTL())
	cancel := mgr.Subscribe(func(s session.State) {
		if !s.IsLoading && s.Credential == nil {
			svc.Invalidate()
		}
	})

	return &runtime{
		cfg:      cfg,
		store:    store,
		client:   c,
		session:  mgr,
		activity: svc,
		limiter:  rate.NewLimiter(rate.Limit(cfg.LookupRate), cfg.LookupBurst),
		cancel:   cancel,
	}, nil
}

// rules applies the configured transfer limit to the default field rules
func (rt *runtime) rules() transfer.Rules {
	rules := transfer.DefaultRules()
	rules.MaxAmount = decimal.NewFromInt(rt.cfg.MaxTransferAmount)
	return rules
}

// newWorkflow starts a fresh send-money episode
func (rt *runtime) newWorkflow() *transfer.Workflow {
	resolver := transfer.NewResolver(rt.client, rt.session, rt.limiter)
	return transfer.NewWorkflow(resolver, rt.client, rt.session,
		transfer.WithRules(rt.rules()),
		transfer.WithActivity(rt.activity),
	)
}

// requireSession restores the persisted session. It returns exitOK when
// signed in, or the exit code to stop with after reporting to w.
func (rt *runtime) requireSession(ctx context.Context, w io.Writer) int {
	if err := rt.session.Bootstrap(ctx); err != nil && client.IsTransient(err) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}
	if !rt.session.State().IsAuthenticated() {
		fmt.Fprintln(w, "Not logged in. Run 'omnibus login' first.")
		return exitSession
	}
	return exitOK
}

func (rt *runtime) close() {
	rt.cancel()
	rt.session.Close()
	rt.activity.Close()
}

// runCommand loads config, builds a runtime, and exits with run's code
func runCommand(run func(ctx context.Context, w io.Writer, rt *runtime) int) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	exitCode := func() int {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stdout, "Error: %v\n", err)
			return exitError
		}
		rt, err := newRuntime(cfg)
		if err != nil {
			fmt.Fprintf(os.Stdout, "Error: %v\n", err)
			return exitError
		}
		defer rt.close()
		return run(ctx, os.Stdout, rt)
	}()

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// exitCodeFor maps a workflow error to a process exit code
func exitCodeFor(err error) int {
	switch transfer.KindOf(err) {
	case transfer.KindSessionInvalid:
		return exitSession
	case transfer.KindDuplicate, transfer.KindBusinessRejection, transfer.KindRejected:
		return exitRejected
	default:
		return exitError
	}
}
