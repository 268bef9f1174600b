package cloudapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAuthorizationKnownVector(t *testing.T) {
	got := authorization("AKIDEXAMPLE", "secretkeyexample", "tcb", "tcb.tencentcloudapi.com",
		[]byte(`{"EnvId":"env-1"}`), time.Unix(1700000000, 0))

	want := "TC3-HMAC-SHA256 Credential=AKIDEXAMPLE/2023-11-14/tcb/tc3_request, " +
		"SignedHeaders=content-type;host, " +
		"Signature=3345311aac665f1e8fd4c99ba11df2f143a364e4da97ec14b028c86ce001bc05"
	if got != want {
		t.Errorf("authorization()\n got %s\nwant %s", got, want)
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(cfg,
		WithEndpoint(srv.URL),
		WithHTTPClient(srv.Client()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestCall_Success(t *testing.T) {
	var gotHeaders http.Header
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"Response":{"EnvList":[{"EnvId":"env-1"}],"RequestId":"req-1"}}`)
	}, Config{SecretID: "AKIDx", SecretKey: "k", SessionToken: "tok"})

	out, err := c.Call(context.Background(), Request{
		Service: "tcb",
		Action:  "DescribeEnvs",
		Params:  map[string]any{"EnvId": "env-1"},
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if out["RequestId"] != "req-1" {
		t.Errorf("RequestId = %v, want req-1", out["RequestId"])
	}
	if gotBody["EnvId"] != "env-1" {
		t.Errorf("body EnvId = %v", gotBody["EnvId"])
	}

	checks := map[string]string{
		"X-TC-Action":  "DescribeEnvs",
		"X-TC-Version": "2018-06-08",
		"X-TC-Region":  DefaultRegion,
		"X-TC-Token":   "tok",
		"Content-Type": contentType,
	}
	for k, want := range checks {
		if got := gotHeaders.Get(k); got != want {
			t.Errorf("header %s = %q, want %q", k, got, want)
		}
	}
	if !strings.HasPrefix(gotHeaders.Get("Authorization"), "TC3-HMAC-SHA256 Credential=AKIDx/") {
		t.Errorf("Authorization = %q", gotHeaders.Get("Authorization"))
	}
}

func TestCall_RequestRegionOverrides(t *testing.T) {
	var region string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		region = r.Header.Get("X-TC-Region")
		_, _ = io.WriteString(w, `{"Response":{"RequestId":"r"}}`)
	}, Config{SecretID: "a", SecretKey: "b", Region: "ap-guangzhou"})

	if _, err := c.Call(context.Background(), Request{Service: "tcb", Action: "X", Region: "ap-singapore"}); err != nil {
		t.Fatal(err)
	}
	if region != "ap-singapore" {
		t.Errorf("region = %q", region)
	}
}

func TestCall_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Response":{"Error":{"Code":"AuthFailure.SignatureFailure","Message":"bad sig"},"RequestId":"req-9"}}`)
	}, Config{SecretID: "a", SecretKey: "b"})

	_, err := c.Call(context.Background(), Request{Service: "tcb", Action: "DescribeEnvs"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Code != "AuthFailure.SignatureFailure" || apiErr.RequestID != "req-9" || apiErr.Action != "DescribeEnvs" {
		t.Errorf("unexpected error fields: %+v", apiErr)
	}
}

func TestCall_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		req     Request
	}{
		{
			name:    "http status",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			req:     Request{Service: "tcb", Action: "A"},
		},
		{
			name:    "malformed envelope",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `{"nope":1}`) },
			req:     Request{Service: "tcb", Action: "A"},
		},
		{
			name:    "unknown service version",
			handler: func(w http.ResponseWriter, r *http.Request) { t.Error("unexpected request") },
			req:     Request{Service: "mystery", Action: "A"},
		},
		{
			name:    "missing action",
			handler: func(w http.ResponseWriter, r *http.Request) { t.Error("unexpected request") },
			req:     Request{Service: "tcb"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler, Config{SecretID: "a", SecretKey: "b"})
			if _, err := c.Call(context.Background(), tt.req); err == nil {
				t.Error("Call() error = nil, want error")
			}
		})
	}
}

func TestCallInto(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Response":{"Total":2,"RequestId":"r"}}`)
	}, Config{SecretID: "a", SecretKey: "b"})

	var out struct {
		Total     int
		RequestID string `json:"RequestId"`
	}
	if err := c.CallInto(context.Background(), Request{Service: "scf", Action: "ListFunctions"}, &out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 2 || out.RequestID != "r" {
		t.Errorf("out = %+v", out)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{SecretID: "a"}); err == nil {
		t.Error("New() without key should fail")
	}
	if _, err := New(Config{SecretID: "a", SecretKey: "b", Proxy: "://bad"}); err == nil {
		t.Error("New() with bad proxy should fail")
	}
	c, err := New(Config{SecretID: "a", SecretKey: "b", Proxy: "http://127.0.0.1:3128", EnvID: "env-1"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Region() != DefaultRegion || c.EnvID() != "env-1" {
		t.Errorf("Region() = %q EnvID() = %q", c.Region(), c.EnvID())
	}
}

func TestConfigLogValueRedacts(t *testing.T) {
	var sb strings.Builder
	slog.New(slog.NewTextHandler(&sb, nil)).Info("x", slog.Any("cfg", Config{SecretID: "AKIDsecret", SecretKey: "topsecret"}))
	if strings.Contains(sb.String(), "topsecret") || strings.Contains(sb.String(), "AKIDsecret") {
		t.Errorf("secret leaked: %s", sb.String())
	}
}
