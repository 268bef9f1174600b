// Package secrets resolves credential references in the config file, so the
// explicit cloudbase block never has to hold a raw key pair.
//
// A value is either a literal or a reference:
//   - env://VARIABLE
//   - file:///path/to/secret
//   - vault://secret/data/path#field
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Secret holds resolved credential material.
// This type MUST NOT be serialized or logged.
type Secret struct {
	Value    string            // The raw secret value.
	Metadata map[string]string // Backend-specific metadata (e.g., variable, path).
}

// Provider resolves opaque credential references into secret material.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Resolve takes a reference (e.g., "env://TCB_KEY") and returns the
	// raw secret. Returns ErrSecretNotFound if the reference cannot be
	// resolved.
	Resolve(ctx context.Context, ref string) (*Secret, error)

	// Name returns the reference scheme the provider handles, without "://".
	Name() string
}

// ErrSecretNotFound is returned when a credential reference cannot be resolved.
var ErrSecretNotFound = errors.New("secret not found")

var schemes = []string{"env://", "file://", "vault://"}

// IsReference reports whether value uses one of the reference schemes.
func IsReference(value string) bool {
	for _, s := range schemes {
		if strings.HasPrefix(value, s) {
			return true
		}
	}
	return false
}

// Expand returns value unchanged when it is a literal and the resolved
// secret when it is a reference.
func Expand(ctx context.Context, p Provider, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	secret, err := p.Resolve(ctx, value)
	if err != nil {
		return "", err
	}
	return secret.Value, nil
}

// ExpandAll expands every non-empty value in place. Errors name the field,
// never the value.
func ExpandAll(ctx context.Context, p Provider, fields map[string]*string) error {
	for name, v := range fields {
		if v == nil || *v == "" {
			continue
		}
		resolved, err := Expand(ctx, p, *v)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}
		*v = resolved
	}
	return nil
}
