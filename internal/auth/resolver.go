package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jkaninda/cloudbase-mcp/internal/config"
)

// Authorizer runs an interactive sign-in. The URLBuilder must be applied to
// the authorization URL before it is shown to the user.
type Authorizer interface {
	BeginInteractiveAuth(ctx context.Context, build URLBuilder) (*Session, error)
}

// Revoker optionally invalidates a session server-side on logout.
type Revoker interface {
	Revoke(ctx context.Context, session *Session) error
}

// ResolveOptions tunes one call to Resolve.
type ResolveOptions struct {
	// IgnoreEnvVars skips the static secret pair in the process environment.
	IgnoreEnvVars bool
	// Region selects the sign-in site. Empty means the domestic site.
	Region string
	// FromLoginPage routes the authorization URL through the login page.
	FromLoginPage bool
}

// Resolver produces a Credential for each client build.
type Resolver struct {
	env        config.Env
	store      *SessionStore
	authorizer Authorizer
	logger     *slog.Logger
	now        func() time.Time

	flights singleflight.Group

	mu      sync.Mutex
	waiting map[string]*signIn
}

// signIn is the context of one shared interactive sign-in. It is detached
// from every caller and cancelled once the last waiter has left.
type signIn struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAuthorizer sets the interactive sign-in flow.
func WithAuthorizer(a Authorizer) Option {
	return func(r *Resolver) { r.authorizer = a }
}

// WithSessionStore shares a session store with other components.
func WithSessionStore(s *SessionStore) Option {
	return func(r *Resolver) { r.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithClock overrides the time source used for session expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a Resolver reading static credentials from env.
func NewResolver(env config.Env, opts ...Option) *Resolver {
	r := &Resolver{
		env:     env,
		store:   NewSessionStore(),
		logger:  slog.Default(),
		now:     time.Now,
		waiting: make(map[string]*signIn),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the session store backing this resolver.
func (r *Resolver) Store() *SessionStore { return r.store }

// Lookup returns a credential without starting an interactive sign-in.
func (r *Resolver) Lookup(opts ResolveOptions) (*Credential, bool) {
	if !opts.IgnoreEnvVars {
		id := r.env.Get(config.EnvSecretID)
		key := r.env.Get(config.EnvSecretKey)
		if id != "" && key != "" {
			return &Credential{
				SecretID:     id,
				SecretKey:    key,
				SessionToken: r.env.Get(config.EnvSessionToken),
				Source:       SourceEnv,
			}, true
		}
	}
	if s, ok := r.store.Get(r.now()); ok {
		return s.credential(SourceSession), true
	}
	return nil, false
}

// Resolve returns the first available credential: static environment pair,
// then the cached session, then an interactive sign-in. Concurrent callers
// needing a sign-in for the same site share one flow.
func (r *Resolver) Resolve(ctx context.Context, opts ResolveOptions) (*Credential, error) {
	if cred, ok := r.Lookup(opts); ok {
		r.logger.Debug("credential resolved", slog.Any("credential", cred))
		return cred, nil
	}
	if r.authorizer == nil {
		return nil, &AuthError{Step: "interactive", Err: ErrNoAuthorizer}
	}

	key := fmt.Sprintf("%s|%t", opts.Region, opts.FromLoginPage)
	for retried := false; ; retried = true {
		session, err := r.awaitSignIn(ctx, key, opts)
		if err == nil {
			cred := session.credential(SourceInteractive)
			r.logger.Debug("credential resolved", slog.Any("credential", cred))
			return cred, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Joining a flight that every earlier waiter had just abandoned
		// yields its cancellation; start a fresh one once.
		if errors.Is(err, errSignInAbandoned) && !retried {
			continue
		}
		return nil, &AuthError{Step: "interactive", Err: err}
	}
}

// errSignInAbandoned marks a shared sign-in cancelled because no caller was
// left waiting for it.
var errSignInAbandoned = errors.New("sign-in abandoned by all callers")

// awaitSignIn joins (or starts) the shared sign-in for key and waits for it
// or for ctx, whichever ends first.
func (r *Resolver) awaitSignIn(ctx context.Context, key string, opts ResolveOptions) (*Session, error) {
	flight := r.join(key)
	defer r.leave(key, flight)

	ch := r.flights.DoChan(key, func() (any, error) {
		// A flight that finished just before this one may already have
		// stored a session.
		if s, ok := r.store.Get(r.now()); ok {
			return s, nil
		}
		r.logger.Info("starting interactive sign-in",
			slog.String("region", opts.Region),
			slog.Bool("from_login_page", opts.FromLoginPage),
		)
		session, err := r.authorizer.BeginInteractiveAuth(flight.ctx, NewURLBuilder(opts.Region, opts.FromLoginPage))
		if err != nil {
			if flight.ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", errSignInAbandoned, err)
			}
			return nil, err
		}
		if !session.Valid(r.now()) {
			return nil, errors.New("sign-in returned no usable key pair")
		}
		r.store.Set(session)
		return session, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	}
}

// join registers a waiter on the sign-in context for key, creating it when
// no sign-in is pending.
func (r *Resolver) join(key string) *signIn {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiting == nil {
		r.waiting = make(map[string]*signIn)
	}
	f, ok := r.waiting[key]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		f = &signIn{ctx: ctx, cancel: cancel}
		r.waiting[key] = f
	}
	f.waiters++
	return f
}

// leave drops a waiter. The last one out cancels the sign-in.
func (r *Resolver) leave(key string, f *signIn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if r.waiting[key] == f {
		delete(r.waiting, key)
	}
}

// Logout drops the cached session and revokes it when the authorizer
// supports revocation. Static environment credentials are unaffected.
func (r *Resolver) Logout(ctx context.Context) error {
	old := r.store.Clear()
	if old == nil {
		return nil
	}
	if rv, ok := r.authorizer.(Revoker); ok {
		if err := rv.Revoke(ctx, old); err != nil {
			return fmt.Errorf("revoke session: %w", err)
		}
	}
	r.logger.Info("signed out")
	return nil
}
