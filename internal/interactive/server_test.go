package interactive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFreeLoopbackAddr(t *testing.T) {
	addr, err := FreeLoopbackAddr()
	if err != nil {
		t.Fatalf("FreeLoopbackAddr: %v", err)
	}
	if !strings.HasPrefix(addr, "127.0.0.1:") {
		t.Errorf("addr = %q, want 127.0.0.1 prefix", addr)
	}
}

func TestServerServesHandlers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer(logger)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.Handle(http.MethodGet, "/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
	srv.Start()
	defer func() { _ = srv.Close(context.Background()) }()

	var body string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(srv.URL("/ping"))
		if err == nil {
			b, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			body = string(b)
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if body != "pong" {
		t.Fatalf("body = %q, want pong", body)
	}
}

func TestCloseBeforeStart(t *testing.T) {
	srv, err := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestPresent(t *testing.T) {
	tests := []struct {
		name    string
		open    Opener
		wantLog string
		opened  bool
	}{
		{name: "opener succeeds", open: func(string) error { return nil }, wantLog: "opened browser", opened: true},
		{name: "opener fails", open: func(string) error { return errors.New("no display") }, wantLog: "open this URL"},
		{name: "no opener", wantLog: "open this URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			var got string
			open := tt.open
			if open != nil {
				inner := open
				open = func(u string) error { got = u; return inner(u) }
			}
			Present("http://example.test/x", open, logger)
			if !strings.Contains(buf.String(), tt.wantLog) {
				t.Errorf("log = %q, want %q", buf.String(), tt.wantLog)
			}
			if tt.opened && got != "http://example.test/x" {
				t.Errorf("opened %q", got)
			}
		})
	}
}

func TestPagesEscapeAndHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorPage(rec, "Failed", errors.New("<script>x</script>"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "<script>x") {
		t.Error("error message was not escaped")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing security headers")
	}

	rec = httptest.NewRecorder()
	WriteSelectionPage(rec, SelectionPage{
		Title:   "Pick",
		Action:  "/select",
		State:   "s1",
		Options: []Option{{Value: "env-a", Label: "A"}, {Value: "env-b", Label: "B"}},
	})
	body := rec.Body.String()
	for _, want := range []string{`value="env-a" checked`, `value="env-b"`, `name="state" value="s1"`, `action="/select"`} {
		if !strings.Contains(body, want) {
			t.Errorf("selection page missing %q", want)
		}
	}
}
