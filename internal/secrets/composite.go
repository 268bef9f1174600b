package secrets

import (
	"context"
	"fmt"
	"strings"
)

// CompositeProvider routes each reference to the provider whose Name matches
// its scheme.
type CompositeProvider struct {
	providers map[string]Provider
}

// NewCompositeProvider creates a router over providers. Nil providers are
// skipped, so optional backends can be passed unconditionally.
func NewCompositeProvider(providers ...Provider) *CompositeProvider {
	c := &CompositeProvider{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p != nil {
			c.providers[p.Name()] = p
		}
	}
	return c
}

func (p *CompositeProvider) Name() string { return "composite" }

func (p *CompositeProvider) Resolve(ctx context.Context, ref string) (*Secret, error) {
	scheme, _, ok := strings.Cut(ref, "://")
	if !ok {
		return nil, fmt.Errorf("%w: not a secret reference", ErrSecretNotFound)
	}
	provider, ok := p.providers[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: no provider configured for %s:// references", ErrSecretNotFound, scheme)
	}
	return provider.Resolve(ctx, ref)
}
