// Package auth resolves the identity material used for CloudBase calls.
//
// Sources are tried in a fixed order: a static secret pair from the process
// environment, the session cached by an earlier sign-in, and finally an
// interactive browser sign-in. Credentials and sessions live in memory only.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Source identifies where a credential came from.
type Source string

const (
	SourceEnv         Source = "env"
	SourceSession     Source = "session"
	SourceInteractive Source = "interactive"
)

// Credential is the identity material for one client build.
// It MUST NOT be serialized or logged in clear text.
type Credential struct {
	SecretID     string
	SecretKey    string
	SessionToken string
	EnvIDHint    string // Environment picked during sign-in, if any.
	Source       Source
}

// LogValue keeps secret material out of structured logs.
func (c *Credential) LogValue() slog.Value {
	if c == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("source", string(c.Source)),
		slog.String("secret_id", MaskSecretID(c.SecretID)),
		slog.Bool("session_token", c.SessionToken != ""),
		slog.String("env_id_hint", c.EnvIDHint),
	)
}

// Session is the result of an interactive sign-in.
type Session struct {
	SecretID     string
	SecretKey    string
	SessionToken string
	EnvID        string
	ExpiresAt    time.Time // Zero means no known expiry.
}

// Valid reports whether the session carries a key pair that has not expired.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.SecretID == "" || s.SecretKey == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

func (s *Session) credential(src Source) *Credential {
	return &Credential{
		SecretID:     s.SecretID,
		SecretKey:    s.SecretKey,
		SessionToken: s.SessionToken,
		EnvIDHint:    s.EnvID,
		Source:       src,
	}
}

// MaskSecretID returns a loggable form of a secret id.
func MaskSecretID(id string) string {
	if len(id) <= 4 {
		return "****"
	}
	return id[:4] + "****"
}

var (
	// ErrAuthExhausted is matched by every AuthError.
	ErrAuthExhausted = errors.New("no credential available")

	// ErrNoAuthorizer is returned when interactive sign-in is required but no
	// authorizer is configured.
	ErrNoAuthorizer = errors.New("interactive sign-in is not available")
)

// AuthError reports that every credential source was exhausted.
type AuthError struct {
	Step string // "interactive" or "session"
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrAuthExhausted, e.Step)
	}
	return fmt.Sprintf("%s: %s: %v", ErrAuthExhausted, e.Step, e.Err)
}

// Unwrap exposes both ErrAuthExhausted and the underlying cause.
func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAuthExhausted}
	}
	return []error{ErrAuthExhausted, e.Err}
}
