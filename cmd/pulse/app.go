package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/dom/pulse/internal/config"
	"github.com/dom/pulse/internal/domain"
	"github.com/dom/pulse/internal/gateway"
	"github.com/dom/pulse/internal/gateway/postgres"
	"github.com/dom/pulse/internal/gateway/rest"
	"github.com/dom/pulse/internal/session"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

// app is the wiring shared by every command.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	gw      *gateway.Gateway
	session *session.Manager
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	gw, err := connect(cfg, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		gw:      gw,
		session: session.NewManager(gw.Auth, gw.Profiles, log),
	}, nil
}

func connect(cfg *config.Config, log *slog.Logger) (*gateway.Gateway, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := postgres.NewConnection(cfg.DatabaseURL, cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		return postgres.NewGateway(db, cfg), nil
	default:
		client := rest.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey,
			rest.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
			rest.WithLogger(log),
		)
		return client.Gateway(), nil
	}
}

type credentials struct {
	email    string
	password string
}

func (c *credentials) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "account email (default $PULSE_EMAIL)")
	fs.StringVar(&c.password, "password", "", "account password (default $PULSE_PASSWORD)")
}

// resolve falls back to the environment, which config.Load may have filled
// from a .env file.
func (c *credentials) resolve() error {
	if c.email == "" {
		c.email = os.Getenv("PULSE_EMAIL")
	}
	if c.password == "" {
		c.password = os.Getenv("PULSE_PASSWORD")
	}
	if strings.TrimSpace(c.email) == "" || c.password == "" {
		return errors.New("credentials required: pass --email and --password or set PULSE_EMAIL and PULSE_PASSWORD")
	}
	return nil
}

// login signs in and returns the settled session state.
func (a *app) login(ctx context.Context, creds *credentials) (session.Snapshot, error) {
	if err := creds.resolve(); err != nil {
		return session.Snapshot{}, err
	}
	return a.session.SignIn(ctx, creds.email, creds.password)
}

// ready signs in and requires a completed profile.
func (a *app) ready(ctx context.Context, creds *credentials) (session.Snapshot, error) {
	snap, err := a.login(ctx, creds)
	if err != nil {
		return snap, err
	}
	if snap.State != session.StateAuthenticatedReady {
		return snap, errors.New("profile incomplete: run 'pulse complete-profile' first")
	}
	return snap, nil
}

// organizer signs in and requires the organizer role.
func (a *app) organizer(ctx context.Context, creds *credentials) (session.Snapshot, error) {
	snap, err := a.ready(ctx, creds)
	if err != nil {
		return snap, err
	}
	if snap.Role != domain.RoleOrganizer {
		return snap, errors.New("this command is for organizer accounts")
	}
	return snap, nil
}

// setup parses args and builds the app. positional is the exact number of
// positional arguments required, or -1 for any.
func setup(fs *pflag.FlagSet, args []string, positional int) (*app, []string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	operands := fs.Args()
	if positional >= 0 && len(operands) != positional {
		fs.Usage()
		return nil, nil, fmt.Errorf("expected %d argument(s), got %d", positional, len(operands))
	}

	a, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	return a, operands, nil
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of pulse %s:\n%s", name, fs.FlagUsages())
	}
	return fs
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
