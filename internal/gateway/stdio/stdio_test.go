package stdio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestStopEndsSession(t *testing.T) {
	started := make(chan struct{})
	g := NewGateway(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, discard())

	done := make(chan error, 1)
	go func() { done <- g.Start(context.Background()) }()
	<-started
	if err := g.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start = %v, want nil after Stop", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestServeErrorIsReturned(t *testing.T) {
	want := errors.New("broken pipe")
	g := NewGateway(func(context.Context) error { return want }, discard())
	if err := g.Start(context.Background()); !errors.Is(err, want) {
		t.Errorf("Start = %v, want %v", err, want)
	}
}

func TestStopBeforeStart(t *testing.T) {
	g := NewGateway(func(context.Context) error { return nil }, discard())
	if err := g.Stop(context.Background()); err != nil {
		t.Errorf("Stop = %v", err)
	}
}
