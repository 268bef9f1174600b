package secrets

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jkaninda/cloudbase-mcp/internal/config"
)

const defaultVaultTimeout = 5 * time.Second

// VaultProvider resolves "vault://<kv v2 api path>#<field>" references, e.g.
// vault://secret/data/cloudbase#secret_key. The field selector is required
// because every cloudbase credential is a single string.
type VaultProvider struct {
	address   string
	token     string
	namespace string
	client    *http.Client
}

// NewVaultProvider creates a provider from cfg. VAULT_ADDR, VAULT_TOKEN and
// VAULT_NAMESPACE in env take precedence over the file values.
func NewVaultProvider(cfg config.VaultConfig, env config.Env) (*VaultProvider, error) {
	pick := func(key, fallback string) string {
		if v := env.Get(key); v != "" {
			return v
		}
		return fallback
	}

	address := strings.TrimRight(pick("VAULT_ADDR", cfg.Address), "/")
	if address == "" {
		return nil, fmt.Errorf("vault address is required (secrets.vault.address or VAULT_ADDR)")
	}
	token := pick("VAULT_TOKEN", cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("vault token is required (secrets.vault.token or VAULT_TOKEN)")
	}

	timeout := defaultVaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.TLSSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for dev servers
	}

	return &VaultProvider{
		address:   address,
		token:     token,
		namespace: pick("VAULT_NAMESPACE", cfg.Namespace),
		client:    &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

func (p *VaultProvider) Name() string { return "vault" }

func (p *VaultProvider) Resolve(ctx context.Context, ref string) (*Secret, error) {
	raw, ok := strings.CutPrefix(ref, "vault://")
	if !ok {
		return nil, fmt.Errorf("%w: vault provider only handles vault:// references", ErrSecretNotFound)
	}
	path, field, _ := strings.Cut(raw, "#")
	if path == "" || field == "" {
		return nil, fmt.Errorf("%w: vault reference needs a path and a #field", ErrSecretNotFound)
	}

	data, err := p.read(ctx, path)
	if err != nil {
		return nil, err
	}
	val, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("%w: field %q not found in vault path %q", ErrSecretNotFound, field, path)
	}
	str, ok := val.(string)
	if !ok || str == "" {
		return nil, fmt.Errorf("vault field %q in path %q is not a non-empty string", field, path)
	}
	return &Secret{
		Value:    str,
		Metadata: map[string]string{"source": "vault", "path": path, "field": field},
	}, nil
}

// read fetches the data map of one KV v2 secret.
func (p *VaultProvider) read(ctx context.Context, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.address+"/v1/"+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building vault request: %w", err)
	}
	req.Header.Set("X-Vault-Token", p.token)
	if p.namespace != "" {
		req.Header.Set("X-Vault-Namespace", p.namespace)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vault request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: vault path %q not found", ErrSecretNotFound, path)
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("vault access denied for path %q (check token permissions)", path)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("vault returned status %d for path %q", resp.StatusCode, path)
	}

	// KV v2 envelope: {"data": {"data": {...}, "metadata": {...}}}
	var envelope struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("parsing vault response: %w", err)
	}
	if envelope.Data.Data == nil {
		return nil, fmt.Errorf("%w: vault path %q returned no data", ErrSecretNotFound, path)
	}
	return envelope.Data.Data, nil
}
