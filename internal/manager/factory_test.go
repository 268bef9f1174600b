package manager

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkaninda/cloudbase-mcp/internal/auth"
	"github.com/jkaninda/cloudbase-mcp/internal/config"
)

type spyCreds struct {
	calls int
	cred  *auth.Credential
	err   error
	opts  auth.ResolveOptions
}

func (s *spyCreds) Resolve(_ context.Context, opts auth.ResolveOptions) (*auth.Credential, error) {
	s.calls++
	s.opts = opts
	return s.cred, s.err
}

type spyEnvIDs struct {
	peekCalls    int
	resolveCalls int
	cached       string
	resolved     string
	err          error
	ide          config.IDE
}

func (s *spyEnvIDs) Peek() (string, bool) {
	s.peekCalls++
	return s.cached, s.cached != ""
}

func (s *spyEnvIDs) Resolve(_ context.Context, ide config.IDE) (string, error) {
	s.resolveCalls++
	s.ide = ide
	return s.resolved, s.err
}

func newFactory(creds *spyCreds, envs *spyEnvIDs, env config.Env) *Factory {
	return NewFactory(creds, envs, env, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestBuild_ExplicitOptionsBypassResolvers(t *testing.T) {
	creds := &spyCreds{}
	envs := &spyEnvIDs{}
	env := config.NewMapEnv(map[string]string{
		config.EnvRegion: "ap-guangzhou",
		config.EnvProxy:  "http://proxy.local:3128",
	})
	f := newFactory(creds, envs, env)

	client, err := f.Build(context.Background(), WithCloudBaseOptions(&CloudBaseOptions{
		SecretID:  "AKIDexplicit",
		SecretKey: "key",
		EnvID:     "env-explicit",
		Extra:     map[string]any{"timeout": 30},
	}))
	require.NoError(t, err)

	assert.Zero(t, creds.calls, "credential resolver must not be consulted")
	assert.Zero(t, envs.peekCalls+envs.resolveCalls, "env id resolver must not be consulted")

	cfg := client.Config()
	assert.Equal(t, "AKIDexplicit", cfg.SecretID)
	assert.Equal(t, "env-explicit", cfg.EnvID)
	assert.Equal(t, "ap-guangzhou", cfg.Region, "falls back to the process region")
	assert.Equal(t, "http://proxy.local:3128", cfg.Proxy)
	assert.Equal(t, 30, cfg.Extra["timeout"])
}

func TestBuild_ExplicitRegionAndProxyWin(t *testing.T) {
	env := config.NewMapEnv(map[string]string{
		config.EnvRegion: "ap-guangzhou",
		config.EnvProxy:  "http://env-proxy:1",
	})
	f := newFactory(&spyCreds{}, &spyEnvIDs{}, env)

	client, err := f.Build(context.Background(), WithCloudBaseOptions(&CloudBaseOptions{
		SecretID:  "a",
		SecretKey: "b",
		Region:    config.RegionSingapore,
		Proxy:     "http://opt-proxy:2",
	}))
	require.NoError(t, err)
	assert.Equal(t, config.RegionSingapore, client.Region())
	assert.Equal(t, "http://opt-proxy:2", client.Config().Proxy)
}

func TestBuild_EnvIDPriority(t *testing.T) {
	tests := []struct {
		name        string
		cached      string
		hint        string
		resolved    string
		want        string
		wantResolve int
	}{
		{name: "cache first", cached: "cached", hint: "hint", resolved: "resolved", want: "cached"},
		{name: "hint second", hint: "hint", resolved: "resolved", want: "hint"},
		{name: "full resolution last", resolved: "resolved", want: "resolved", wantResolve: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := &spyCreds{cred: &auth.Credential{SecretID: "a", SecretKey: "b", EnvIDHint: tt.hint}}
			envs := &spyEnvIDs{cached: tt.cached, resolved: tt.resolved}
			f := newFactory(creds, envs, config.NewMapEnv(nil))

			client, err := f.Build(context.Background(), WithIDE(config.IDECodeBuddy))
			require.NoError(t, err)
			assert.Equal(t, tt.want, client.EnvID())
			assert.Equal(t, tt.wantResolve, envs.resolveCalls)
			if tt.wantResolve > 0 {
				assert.Equal(t, config.IDECodeBuddy, envs.ide)
			}
		})
	}
}

func TestBuild_WithoutEnvID(t *testing.T) {
	creds := &spyCreds{cred: &auth.Credential{SecretID: "a", SecretKey: "b"}}
	envs := &spyEnvIDs{resolved: "never"}
	f := newFactory(creds, envs, config.NewMapEnv(map[string]string{config.EnvRegion: config.RegionSingapore}))

	client, err := f.Build(context.Background(), WithoutEnvID())
	require.NoError(t, err)
	assert.Empty(t, client.EnvID())
	assert.Zero(t, envs.peekCalls+envs.resolveCalls)
	assert.Equal(t, 1, creds.calls)
	assert.Equal(t, config.RegionSingapore, creds.opts.Region)
	assert.Equal(t, config.RegionSingapore, client.Region())
}

func TestBuild_Errors(t *testing.T) {
	credErr := &auth.AuthError{Step: "interactive", Err: auth.ErrNoAuthorizer}
	f := newFactory(&spyCreds{err: credErr}, &spyEnvIDs{}, config.NewMapEnv(nil))
	_, err := f.Build(context.Background())
	assert.ErrorIs(t, err, auth.ErrAuthExhausted)

	envErr := errors.New("no env")
	f = newFactory(&spyCreds{cred: &auth.Credential{SecretID: "a", SecretKey: "b"}}, &spyEnvIDs{err: envErr}, config.NewMapEnv(nil))
	_, err = f.Build(context.Background())
	assert.ErrorIs(t, err, envErr)
}

func TestFromConfig(t *testing.T) {
	assert.Nil(t, FromConfig(nil))
	o := FromConfig(&config.CloudBaseConfig{SecretID: "a", SecretKey: "b", SessionToken: "t", EnvID: "e", Region: "r", Proxy: "p"})
	assert.Equal(t, &CloudBaseOptions{SecretID: "a", SecretKey: "b", SessionToken: "t", EnvID: "e", Region: "r", Proxy: "p"}, o)
}

func TestSettingsMode(t *testing.T) {
	assert.Equal(t, "resolved", Settings().Mode())
	assert.True(t, Settings().RequireEnvID)
	assert.Equal(t, "explicit", Settings(WithCloudBaseOptions(&CloudBaseOptions{})).Mode())
	assert.Equal(t, "resolved", Settings(WithCloudBaseOptions(nil)).Mode())
}
