package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/jkaninda/cloudbase-mcp/internal/config"
)

// EnvProvider resolves "env://VARIABLE" references.
type EnvProvider struct {
	env config.Env
}

// NewEnvProvider creates a provider reading env.
func NewEnvProvider(env config.Env) *EnvProvider { return &EnvProvider{env: env} }

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Resolve(_ context.Context, ref string) (*Secret, error) {
	name, ok := strings.CutPrefix(ref, "env://")
	if !ok {
		return nil, fmt.Errorf("%w: env provider only handles env:// references", ErrSecretNotFound)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty environment variable name", ErrSecretNotFound)
	}
	value := p.env.Get(name)
	if value == "" {
		return nil, fmt.Errorf("%w: environment variable %q is not set or empty", ErrSecretNotFound, name)
	}
	return &Secret{
		Value:    value,
		Metadata: map[string]string{"source": "env", "variable": name},
	}, nil
}
