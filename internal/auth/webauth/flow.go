// Package webauth implements the browser sign-in used when no static
// credential or cached session is available.
//
// A loopback server receives the temporary key pair posted back by the
// CloudBase authorization page. The state parameter ties the callback to the
// URL that was opened.
package webauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/cloudbase-mcp/internal/auth"
	"github.com/jkaninda/cloudbase-mcp/internal/config"
	"github.com/jkaninda/cloudbase-mcp/internal/interactive"
)

const (
	callbackPath    = "/callback"
	shutdownTimeout = 5 * time.Second
)

// Flow is the production auth.Authorizer.
type Flow struct {
	baseURL string
	open    interactive.Opener
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Flow.
type Option func(*Flow)

// WithOpener replaces the browser opener. A nil opener only logs the URL.
func WithOpener(o interactive.Opener) Option {
	return func(f *Flow) { f.open = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) { f.logger = l }
}

// WithClock overrides the time source used for session expiry.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

// New creates a Flow that sends users to baseURL.
func New(baseURL string, opts ...Option) *Flow {
	if baseURL == "" {
		baseURL = config.DefaultAuthBaseURL
	}
	f := &Flow{
		baseURL: baseURL,
		open:    interactive.BrowserOpener,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FromConfig creates a Flow from the auth section of the config file.
func FromConfig(cfg config.AuthConfig, logger *slog.Logger) *Flow {
	opts := []Option{WithLogger(logger)}
	if cfg.NoBrowser {
		opts = append(opts, WithOpener(nil))
	}
	return New(cfg.BaseURL, opts...)
}

// BeginInteractiveAuth opens the authorization page and waits for the
// callback, a server failure, or ctx.
func (f *Flow) BeginInteractiveAuth(ctx context.Context, build auth.URLBuilder) (*auth.Session, error) {
	srv, err := interactive.NewServer(f.logger)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}

	state := uuid.NewString()
	sessions := make(chan *auth.Session, 1)
	errs := make(chan error, 1)
	h := f.handleCallback(state, sessions, errs)
	srv.Handle(http.MethodGet, callbackPath, h)
	srv.Handle(http.MethodPost, callbackPath, h)
	srv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Close(shutdownCtx); err != nil {
			f.logger.Warn("failed to shut down callback server", slog.String("error", err.Error()))
		}
	}()

	authURL, err := f.authURL(srv.URL(callbackPath), state)
	if err != nil {
		return nil, err
	}
	if build != nil {
		authURL = build(authURL)
	}
	interactive.Present(authURL, f.open, f.logger)
	f.logger.Info("waiting for sign-in callback")

	select {
	case s := <-sessions:
		f.logger.Info("sign-in completed", slog.String("secret_id", auth.MaskSecretID(s.SecretID)))
		return s, nil
	case err := <-errs:
		return nil, fmt.Errorf("sign-in failed: %w", err)
	case err := <-srv.Err():
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("sign-in cancelled: %w", ctx.Err())
	}
}

// authURL appends the callback location and state to the base URL.
func (f *Flow) authURL(redirect, state string) (string, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing auth base url: %w", err)
	}
	q := u.Query()
	q.Set("from", "mcp")
	q.Set("redirect_uri", redirect)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// handleCallback accepts the key pair as query or form values.
func (f *Flow) handleCallback(state string, sessions chan<- *auth.Session, errs chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if errParam := r.FormValue("error"); errParam != "" {
			err := fmt.Errorf("authorization error: %s - %s", errParam, r.FormValue("error_description"))
			interactive.WriteErrorPage(w, "Sign-in failed", err)
			deliver(errs, err)
			return
		}

		// A mismatched state is not terminal; the real callback may follow.
		if r.FormValue("state") != state {
			interactive.WriteErrorPage(w, "Sign-in failed", errors.New("invalid state parameter"))
			return
		}

		session, err := f.parseSession(r)
		if err != nil {
			interactive.WriteErrorPage(w, "Sign-in failed", err)
			deliver(errs, err)
			return
		}

		interactive.WriteSuccessPage(w, "Signed in", "You can close this window and return to your assistant.")
		deliver(sessions, session)
	}
}

func (f *Flow) parseSession(r *http.Request) (*auth.Session, error) {
	s := &auth.Session{
		SecretID:     r.FormValue("tmpSecretId"),
		SecretKey:    r.FormValue("tmpSecretKey"),
		SessionToken: r.FormValue("tmpToken"),
		EnvID:        r.FormValue("envId"),
	}
	if s.SecretID == "" || s.SecretKey == "" {
		return nil, errors.New("callback is missing the key pair")
	}
	if exp := r.FormValue("tmpExpired"); exp != "" {
		sec, err := strconv.ParseInt(exp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tmpExpired %q: %w", exp, err)
		}
		s.ExpiresAt = time.Unix(sec, 0)
	}
	if !s.Valid(f.now()) {
		return nil, errors.New("callback key pair has already expired")
	}
	return s, nil
}

// deliver sends without blocking; only the first outcome matters.
func deliver[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}
