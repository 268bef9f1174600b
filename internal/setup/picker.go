package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/cloudbase-mcp/internal/envid"
	"github.com/jkaninda/cloudbase-mcp/internal/interactive"
)

const (
	pickerPath      = "/"
	pickerSubmit    = "/select"
	shutdownTimeout = 5 * time.Second
)

var errSelectionCancelled = errors.New("environment selection was cancelled")

// choice is the outcome of one picker submission.
type choice struct {
	envID     string
	cancelled bool
}

// pick shows a selection page and waits for the user, the selection
// timeout, or ctx.
func (a *AutoSetup) pick(ctx context.Context, envs []Environment) (envid.SetupResult, error) {
	srv, err := interactive.NewServer(a.logger)
	if err != nil {
		return envid.SetupResult{}, fmt.Errorf("starting picker server: %w", err)
	}

	state := uuid.NewString()
	choices := make(chan choice, 1)
	srv.Handle(http.MethodGet, pickerPath, a.handlePage(state, envs))
	srv.Handle(http.MethodPost, pickerSubmit, a.handleSubmit(state, envs, choices))
	srv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Close(shutdownCtx); err != nil {
			a.logger.Warn("failed to shut down picker server", slog.String("error", err.Error()))
		}
	}()

	interactive.Present(srv.URL(pickerPath), a.open, a.logger)
	a.logger.Info("waiting for environment selection", slog.Int("candidates", len(envs)))

	timer := time.NewTimer(a.selectionTimeout)
	defer timer.Stop()

	select {
	case c := <-choices:
		if c.cancelled {
			return failed(envid.ReasonCancelled, CodeSelectionCancelled, errSelectionCancelled, envid.Details{}), nil
		}
		a.logger.Info("environment selected", slog.String("env_id", c.envID))
		return envid.SetupResult{EnvID: c.envID}, nil
	case <-timer.C:
		err := fmt.Errorf("no environment was selected within %s", a.selectionTimeout)
		return failed(envid.ReasonTimeout, CodeSelectionTimeout, err, envid.Details{TimeoutDuration: a.selectionTimeout}), nil
	case err := <-srv.Err():
		return envid.SetupResult{}, err
	case <-ctx.Done():
		return failed(envid.ReasonCancelled, CodeCancelled, ctx.Err(), envid.Details{}), nil
	}
}

func (a *AutoSetup) handlePage(state string, envs []Environment) http.HandlerFunc {
	page := interactive.SelectionPage{
		Title:  "Select a CloudBase environment",
		Prompt: "Choose the environment the assistant should work with.",
		Action: pickerSubmit,
		State:  state,
	}
	for _, e := range envs {
		page.Options = append(page.Options, interactive.Option{Value: e.EnvID, Label: e.Label()})
	}
	return func(w http.ResponseWriter, r *http.Request) {
		interactive.WriteSelectionPage(w, page)
	}
}

func (a *AutoSetup) handleSubmit(state string, envs []Environment, choices chan<- choice) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("state") != state {
			interactive.WriteErrorPage(w, "Selection failed", errors.New("invalid state parameter"))
			return
		}
		if r.FormValue("cancel") != "" {
			interactive.WriteSuccessPage(w, "Selection cancelled", "You can close this window.")
			send(choices, choice{cancelled: true})
			return
		}
		id := r.FormValue("value")
		if !slices.ContainsFunc(envs, func(e Environment) bool { return e.EnvID == id }) {
			interactive.WriteErrorPage(w, "Selection failed", fmt.Errorf("unknown environment %q", id))
			return
		}
		interactive.WriteSuccessPage(w, "Environment selected", "Using "+id+". You can close this window.")
		send(choices, choice{envID: id})
	}
}

func send(ch chan<- choice, c choice) {
	select {
	case ch <- c:
	default:
	}
}
