package setup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkaninda/cloudbase-mcp/internal/auth"
	"github.com/jkaninda/cloudbase-mcp/internal/cloudapi"
	"github.com/jkaninda/cloudbase-mcp/internal/config"
	"github.com/jkaninda/cloudbase-mcp/internal/envid"
)

type fakeCreds struct {
	cred *auth.Credential
	err  error
}

func (f fakeCreds) Resolve(context.Context, auth.ResolveOptions) (*auth.Credential, error) {
	return f.cred, f.err
}

// fakeCloud answers by X-TC-Action and records the actions it saw.
type fakeCloud struct {
	mu        sync.Mutex
	responses map[string]string
	actions   []string
	bodies    map[string]string
}

func (f *fakeCloud) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := r.Header.Get("X-TC-Action")
	reqBody, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.actions = append(f.actions, action)
	if f.bodies == nil {
		f.bodies = make(map[string]string)
	}
	f.bodies[action] = string(reqBody)
	body, ok := f.responses[action]
	f.mu.Unlock()
	if !ok {
		body = `{"Error":{"Code":"InvalidAction","Message":"unexpected"},"RequestId":"r"}`
	}
	_, _ = io.WriteString(w, `{"Response":`+body+`}`)
}

func (f *fakeCloud) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actions...)
}

var testCred = &auth.Credential{SecretID: "AKID", SecretKey: "key", Source: auth.SourceSession}

func newTestSetup(t *testing.T, cloud *fakeCloud, creds fakeCreds, opts ...Option) *AutoSetup {
	t.Helper()
	srv := httptest.NewServer(cloud)
	t.Cleanup(srv.Close)
	base := []Option{
		WithClientOptions(cloudapi.WithEndpoint(srv.URL), cloudapi.WithHTTPClient(srv.Client())),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithOpener(nil),
	}
	return New(creds, config.NewMapEnv(nil), append(base, opts...)...)
}

const (
	initialized = `{"Initialized":true,"RequestId":"r"}`
	twoEnvs     = `{"EnvList":[{"EnvId":"env-a","Alias":"a","Status":"NORMAL"},{"EnvId":"env-b","Status":"NORMAL"}],"RequestId":"r"}`
)

func TestAutoSetup(t *testing.T) {
	tests := []struct {
		name       string
		creds      fakeCreds
		responses  map[string]string
		ide        config.IDE
		opts       []Option
		wantEnv    string
		wantReason envid.Reason
		wantCode   string
		wantCreate *envid.CreateEnvError
		wantCalls  []string
	}{
		{
			name:       "login failure",
			creds:      fakeCreds{err: errors.New("browser closed")},
			wantReason: envid.ReasonLoginFailed,
			wantCode:   CodeLoginFailed,
		},
		{
			name:    "env chosen during sign-in",
			creds:   fakeCreds{cred: &auth.Credential{SecretID: "AKID", SecretKey: "key", EnvIDHint: "env-hint"}},
			wantEnv: "env-hint",
		},
		{
			name:  "single environment",
			creds: fakeCreds{cred: testCred},
			responses: map[string]string{
				"CheckTcbService": initialized,
				"DescribeEnvs":    `{"EnvList":[{"EnvId":"env-1","Status":"NORMAL"}],"RequestId":"r"}`,
			},
			wantEnv:   "env-1",
			wantCalls: []string{"CheckTcbService", "DescribeEnvs"},
		},
		{
			name:  "unusable environments are skipped",
			creds: fakeCreds{cred: testCred},
			responses: map[string]string{
				"CheckTcbService": initialized,
				"DescribeEnvs":    `{"EnvList":[{"EnvId":"env-x","Status":"ISOLATE"},{"EnvId":"env-2","Status":"NORMAL"}],"RequestId":"r"}`,
			},
			wantEnv: "env-2",
		},
		{
			name:  "service initialized on demand",
			creds: fakeCreds{cred: testCred},
			responses: map[string]string{
				"CheckTcbService": `{"Initialized":false,"RequestId":"r"}`,
				"InitTcb":         `{"RequestId":"r"}`,
				"DescribeEnvs":    `{"EnvList":[{"EnvId":"env-1"}],"RequestId":"r"}`,
			},
			wantEnv:   "env-1",
			wantCalls: []string{"CheckTcbService", "InitTcb", "DescribeEnvs"},
		},
		{
			name:  "service init skipped",
			creds: fakeCreds{cred: testCred},
			responses: map[string]string{
				"CheckTcbService": `{"Initialized":false,"RequestId":"r"}`,
			},
			opts:       []Option{WithSkipServiceInit(true)},
			wantReason: envid.ReasonTCBInitFailed,
			wantCode:   CodeServiceNotEnabled,
			wantCalls:  []string{"CheckTcbService"},
		},
		{
			name:  "service init fails",
			creds: fakeCreds{cred: testCred},
			responses: map[string]string{
				"CheckTcbService": `{"Initialized":false,"RequestId":"r"}`,
				"InitTcb":         `{"Error":{"Code":"FailedOperation.RealNameNotVerified","Message":"verify first"},"RequestId":"r"}`,
			},
			wantReason: envid.ReasonTCBInitFailed,
			wantCode:   CodeTCBInitFailed,
		},
		{
			name:  "env query fails",
			creds: fakeCreds{cred: testCred},
			responses: map[string]string{
				"CheckTcbService": initialized,
				"DescribeEnvs":    `{"Error":{"Code":"InternalError","Message":"boom"},"RequestId":"r"}`,
			},
			wantReason: envid.ReasonEnvQueryFailed,
			wantCode:   CodeEnvQueryFailed,
		},
		{
			name:  "no environments with creation disabled",
			creds: fakeCreds{cred: testCred},
			responses: map[string]string{
				"CheckTcbService": initialized,
				"DescribeEnvs":    `{"EnvList":[],"RequestId":"r"}`,
			},
			opts:       []Option{WithSkipEnvCreation(true)},
			wantReason: envid.ReasonNoEnvironments,
			wantCode:   CodeNoEnvironments,
			wantCalls:  []string{"CheckTcbService", "DescribeEnvs"},
		},
		{
			name:  "environment created when none exist",
			creds: fakeCreds{cred: testCred},
			responses: map[string]string{
				"CheckTcbService": initialized,
				"DescribeEnvs":    `{"EnvList":[],"RequestId":"r"}`,
				"CreateEnv":       `{"EnvId":"env-new","TranId":"t","RequestId":"r"}`,
			},
			wantEnv:   "env-new",
			wantCalls: []string{"CheckTcbService", "DescribeEnvs", "CreateEnv"},
		},
		{
			name:  "environment creation fails",
			creds: fakeCreds{cred: testCred},
			responses: map[string]string{
				"CheckTcbService": initialized,
				"DescribeEnvs":    `{"EnvList":[],"RequestId":"r"}`,
				"CreateEnv":       `{"Error":{"Code":"LimitExceeded.EnvFreeQuota","Message":"free quota used up"},"RequestId":"r"}`,
			},
			wantReason: envid.ReasonEnvCreationFailed,
			wantCode:   CodeEnvCreationFailed,
			wantCreate: &envid.CreateEnvError{Code: "LimitExceeded.EnvFreeQuota", Message: "free quota used up"},
			wantCalls:  []string{"CheckTcbService", "DescribeEnvs", "CreateEnv"},
		},
		{
			name:  "environment creation returns no id",
			creds: fakeCreds{cred: testCred},
			responses: map[string]string{
				"CheckTcbService": initialized,
				"DescribeEnvs":    `{"EnvList":[],"RequestId":"r"}`,
				"CreateEnv":       `{"RequestId":"r"}`,
			},
			wantReason: envid.ReasonEnvCreationFailed,
			wantCode:   CodeEnvCreationFailed,
			wantCreate: &envid.CreateEnvError{Code: CodeEnvCreationFailed, Message: "environment creation returned no environment id"},
			wantCalls:  []string{"CheckTcbService", "DescribeEnvs", "CreateEnv", "DescribeEnvs"},
		},
		{
			name:  "several environments without a browser",
			creds: fakeCreds{cred: testCred},
			responses: map[string]string{
				"CheckTcbService": initialized,
				"DescribeEnvs":    twoEnvs,
			},
			ide:     config.IDEHeadless,
			opts:    []Option{WithOpener(func(string) error { return errors.New("must not open") })},
			wantEnv: "env-a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cloud := &fakeCloud{responses: tt.responses}
			s := newTestSetup(t, cloud, tt.creds, tt.opts...)

			res, err := s.AutoSetup(context.Background(), tt.ide)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEnv, res.EnvID)
			if tt.wantReason == "" {
				assert.Nil(t, res.Failure)
			} else {
				require.NotNil(t, res.Failure)
				assert.Equal(t, tt.wantReason, res.Failure.Reason)
				assert.Equal(t, tt.wantCode, res.Failure.ErrorCode)
				assert.NotEmpty(t, res.Failure.Error)
				assert.Equal(t, tt.wantCreate, res.Failure.Details.CreateEnv)
			}
			if tt.wantCalls != nil {
				assert.Equal(t, tt.wantCalls, cloud.seen())
			}
		})
	}
}

func TestCreateEnvRequest(t *testing.T) {
	cloud := &fakeCloud{responses: map[string]string{
		"CheckTcbService": initialized,
		"DescribeEnvs":    `{"EnvList":[],"RequestId":"r"}`,
		"CreateEnv":       `{"EnvId":"env-new","RequestId":"r"}`,
	}}
	s := newTestSetup(t, cloud, fakeCreds{cred: testCred}, WithEnvAlias("my-app"))

	res, err := s.AutoSetup(context.Background(), config.IDECursor)
	require.NoError(t, err)
	require.Equal(t, "env-new", res.EnvID)

	cloud.mu.Lock()
	body := cloud.bodies["CreateEnv"]
	cloud.mu.Unlock()
	assert.Contains(t, body, `"Alias":"my-app"`)
	assert.Contains(t, body, `"PackageId":"`+DefaultEnvPackage+`"`)
}

func TestCreateEnvFailureMessage(t *testing.T) {
	cloud := &fakeCloud{responses: map[string]string{
		"CheckTcbService": initialized,
		"DescribeEnvs":    `{"EnvList":[],"RequestId":"r"}`,
		"CreateEnv":       `{"Error":{"Code":"LimitExceeded","Message":"free quota used up"},"RequestId":"r"}`,
	}}
	r := envid.NewResolver(config.NewMapEnv(nil), newTestSetup(t, cloud, fakeCreds{cred: testCred}),
		envid.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := r.Resolve(context.Background(), config.IDECursor)
	var resErr *envid.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, envid.ReasonEnvCreationFailed, resErr.Info.Reason)
	assert.Contains(t, err.Error(), "free quota used up")
}

func TestInitErrorClassification(t *testing.T) {
	got := initError(&cloudapi.APIError{Code: "FailedOperation.RealNameNotVerified", Message: "m"})
	assert.True(t, got.NeedRealNameAuth)
	assert.False(t, got.NeedCamAuth)

	got = initError(&cloudapi.APIError{Code: "UnauthorizedOperation.CamNoAuth", Message: "m"})
	assert.True(t, got.NeedCamAuth)

	got = initError(errors.New("network down"))
	assert.Equal(t, "network down", got.Message)
	assert.Empty(t, got.Code)
}

func TestPickerSelection(t *testing.T) {
	cloud := &fakeCloud{responses: map[string]string{"CheckTcbService": initialized, "DescribeEnvs": twoEnvs}}
	submit := func(values url.Values) func(string) error {
		return func(pageURL string) error {
			go func() {
				u, _ := url.Parse(pageURL)
				// Scrape the state from the rendered page.
				var page string
				for range 100 {
					resp, err := http.Get(pageURL)
					if err == nil {
						b, _ := io.ReadAll(resp.Body)
						_ = resp.Body.Close()
						page = string(b)
						break
					}
					time.Sleep(20 * time.Millisecond)
				}
				values.Set("state", extractState(page))
				u.Path = pickerSubmit
				resp, err := http.PostForm(u.String(), values)
				if err == nil {
					_ = resp.Body.Close()
				}
			}()
			return nil
		}
	}

	t.Run("user picks an environment", func(t *testing.T) {
		s := newTestSetup(t, cloud, fakeCreds{cred: testCred}, WithOpener(submit(url.Values{"value": {"env-b"}})))
		res, err := s.AutoSetup(context.Background(), config.IDECursor)
		require.NoError(t, err)
		assert.Equal(t, "env-b", res.EnvID)
	})

	t.Run("user cancels", func(t *testing.T) {
		s := newTestSetup(t, cloud, fakeCreds{cred: testCred}, WithOpener(submit(url.Values{"cancel": {"1"}})))
		res, err := s.AutoSetup(context.Background(), config.IDECursor)
		require.NoError(t, err)
		require.NotNil(t, res.Failure)
		assert.Equal(t, envid.ReasonCancelled, res.Failure.Reason)
		assert.Equal(t, CodeSelectionCancelled, res.Failure.ErrorCode)
	})

	t.Run("selection times out", func(t *testing.T) {
		s := newTestSetup(t, cloud, fakeCreds{cred: testCred},
			WithOpener(func(string) error { return nil }),
			WithSelectionTimeout(50*time.Millisecond))
		res, err := s.AutoSetup(context.Background(), config.IDECursor)
		require.NoError(t, err)
		require.NotNil(t, res.Failure)
		assert.Equal(t, envid.ReasonTimeout, res.Failure.Reason)
		assert.Equal(t, 50*time.Millisecond, res.Failure.Details.TimeoutDuration)
	})
}

func TestHandleSubmit(t *testing.T) {
	s := New(fakeCreds{}, config.NewMapEnv(nil), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	envs := []Environment{{EnvID: "env-a"}, {EnvID: "env-b"}}

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
		want     *choice
	}{
		{name: "valid", form: url.Values{"state": {"s"}, "value": {"env-b"}}, wantCode: http.StatusOK, want: &choice{envID: "env-b"}},
		{name: "cancel", form: url.Values{"state": {"s"}, "cancel": {"1"}}, wantCode: http.StatusOK, want: &choice{cancelled: true}},
		{name: "bad state", form: url.Values{"state": {"x"}, "value": {"env-b"}}, wantCode: http.StatusBadRequest},
		{name: "unknown env", form: url.Values{"state": {"s"}, "value": {"env-z"}}, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			choices := make(chan choice, 1)
			req := httptest.NewRequest(http.MethodPost, pickerSubmit, strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			s.handleSubmit("s", envs, choices)(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.want == nil {
				assert.Empty(t, choices)
				return
			}
			require.Len(t, choices, 1)
			assert.Equal(t, *tt.want, <-choices)
		})
	}
}

func TestEnvironmentLabel(t *testing.T) {
	assert.Equal(t, "env-1", Environment{EnvID: "env-1"}.Label())
	assert.Equal(t, "env-1", Environment{EnvID: "env-1", Alias: "env-1"}.Label())
	assert.Equal(t, "prod (env-1)", Environment{EnvID: "env-1", Alias: "prod"}.Label())
}

func extractState(page string) string {
	const marker = `name="state" value="`
	i := strings.Index(page, marker)
	if i < 0 {
		return ""
	}
	rest := page[i+len(marker):]
	return rest[:strings.Index(rest, `"`)]
}
