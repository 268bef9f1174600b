// Package envid determines which CloudBase environment tool calls target.
//
// A Resolver is Idle, Resolving or Resolved. Concurrent callers share one
// attempt, which is bounded by a timeout. A resolved id stays authoritative
// until Reset or SetEnvID.
package envid

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jkaninda/cloudbase-mcp/internal/config"
)

// DefaultTimeout bounds one resolution attempt, interactive selection included.
const DefaultTimeout = 600 * time.Second

// SetupResult is what an auto-setup run produced: an environment id, or the
// reason there is none.
type SetupResult struct {
	EnvID   string
	Failure *FailureInfo
}

// Setup runs the automatic environment setup (login, service init, query,
// selection).
type Setup interface {
	AutoSetup(ctx context.Context, ide config.IDE) (SetupResult, error)
}

// SetupFunc adapts a function to Setup.
type SetupFunc func(ctx context.Context, ide config.IDE) (SetupResult, error)

func (f SetupFunc) AutoSetup(ctx context.Context, ide config.IDE) (SetupResult, error) {
	return f(ctx, ide)
}

// Resolver caches the environment id for the life of the process.
type Resolver struct {
	env             config.Env
	setup           Setup
	timeout         time.Duration
	cancelOnTimeout bool
	locale          string
	logger          *slog.Logger

	mu       sync.Mutex
	envID    string
	mirrored bool   // envID was written into env by this resolver
	epoch    uint64 // bumped on timeout, Reset and SetEnvID

	flights singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithCancelOnTimeout cancels the context of an attempt that timed out.
// Without it the attempt keeps running and its result is discarded.
func WithCancelOnTimeout() Option {
	return func(r *Resolver) { r.cancelOnTimeout = true }
}

// WithLocale selects the language of failure messages.
func WithLocale(locale string) Option {
	return func(r *Resolver) { r.locale = locale }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates an Idle resolver.
func NewResolver(env config.Env, setup Setup, opts ...Option) *Resolver {
	r := &Resolver{
		env:     env,
		setup:   setup,
		timeout: DefaultTimeout,
		locale:  LocaleEN,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the attempt bound.
func (r *Resolver) Timeout() time.Duration { return r.timeout }

// Peek returns the cached id without starting a resolution.
func (r *Resolver) Peek() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.envID, r.envID != ""
}

// SetEnvID forces the Resolved state. An attempt still in flight is discarded.
func (r *Resolver) SetEnvID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envID = id
	r.epoch++
	r.env.Set(config.EnvEnvID, id)
	r.mirrored = true
	r.logger.Debug("environment id set", slog.String("env_id", id))
}

// Reset returns the resolver to Idle. The next Resolve starts a fresh attempt.
// A CLOUDBASE_ENV_ID value supplied by the user is left in place; one written
// by this resolver is removed.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mirrored {
		r.env.Unset(config.EnvEnvID)
		r.mirrored = false
	}
	r.envID = ""
	r.epoch++
	r.logger.Debug("environment id cache reset")
}

type outcome struct {
	envID   string
	fromEnv bool
	err     error
}

// Resolve returns the cached id, or joins (or starts) the shared attempt.
// If ctx ends first only this caller stops waiting.
func (r *Resolver) Resolve(ctx context.Context, ide config.IDE) (string, error) {
	r.mu.Lock()
	if r.envID != "" {
		id := r.envID
		r.mu.Unlock()
		return id, nil
	}
	epoch := r.epoch
	r.mu.Unlock()
	return r.await(ctx, epoch, ide)
}

// await joins the shared attempt for epoch. The cache is read again inside
// the attempt: a caller that saw Idle just before a commit gets the committed
// id instead of starting a second fetch.
func (r *Resolver) await(ctx context.Context, epoch uint64, ide config.IDE) (string, error) {
	ch := r.flights.DoChan(strconv.FormatUint(epoch, 10), func() (any, error) {
		if id, ok := r.Peek(); ok {
			return id, nil
		}
		return r.attempt(epoch, ide)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (r *Resolver) attempt(epoch uint64, ide config.IDE) (string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		id, fromEnv, err := r.fetch(ctx, ide)
		done <- outcome{envID: id, fromEnv: fromEnv, err: err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		cancel()
		if o.err != nil {
			r.logger.Warn("environment id resolution failed",
				slog.Duration("elapsed", time.Since(start)),
				slog.String("error", o.err.Error()),
			)
			return "", o.err
		}
		return r.commit(epoch, o), nil

	case <-timer.C:
		r.mu.Lock()
		if r.epoch == epoch {
			r.epoch++
		}
		r.mu.Unlock()

		if r.cancelOnTimeout {
			cancel()
		} else {
			go func() {
				<-done
				cancel()
			}()
		}
		r.logger.Warn("environment id resolution timed out", slog.Duration("timeout", r.timeout))
		info := &FailureInfo{
			Reason:    ReasonTimeout,
			Error:     fmt.Sprintf("environment id resolution timed out after %s", r.timeout),
			ErrorCode: CodeTimeout,
			Details:   Details{TimeoutDuration: r.timeout},
		}
		return "", newResolutionError(info, ErrTimeout, r.locale)
	}
}

// commit stores a successful result unless the attempt went stale.
func (r *Resolver) commit(epoch uint64, o outcome) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.epoch != epoch {
		r.logger.Debug("discarding stale environment id", slog.String("env_id", o.envID))
		if r.envID != "" {
			return r.envID
		}
		return o.envID
	}
	r.envID = o.envID
	if !o.fromEnv {
		r.env.Set(config.EnvEnvID, o.envID)
		r.mirrored = true
	}
	r.logger.Info("environment id resolved", slog.String("env_id", o.envID), slog.Bool("from_env", o.fromEnv))
	return o.envID
}

func (r *Resolver) fetch(ctx context.Context, ide config.IDE) (string, bool, error) {
	if id := r.env.Get(config.EnvEnvID); id != "" {
		return id, true, nil
	}
	if r.setup == nil {
		return "", false, newResolutionError(nil, nil, r.locale)
	}

	res, err := r.setup.AutoSetup(ctx, ide)
	if err != nil {
		info := &FailureInfo{
			Reason:    ReasonUnknown,
			Error:     err.Error(),
			ErrorCode: CodeSetupException,
		}
		return "", false, newResolutionError(info, fmt.Errorf("auto setup: %w", err), r.locale)
	}
	if res.EnvID == "" {
		return "", false, newResolutionError(res.Failure, nil, r.locale)
	}
	return res.EnvID, false, nil
}
