package observability

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jkaninda/cloudbase-mcp/internal/config"
)

const (
	defaultAnomalyWindow = 300 * time.Second
	minAnomalySamples    = 5
)

// AnomalyDetector warns when the error rate of an operation (a tool name, or
// "envid.resolve") exceeds a threshold within a sliding window.
type AnomalyDetector struct {
	mu        sync.Mutex
	errors    map[string]*slidingWindow
	successes map[string]*slidingWindow
	threshold float64
	window    time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

type slidingWindow struct {
	stamps []time.Time
	window time.Duration
}

// NewAnomalyDetector creates a detector, or nil when cfg disables it.
func NewAnomalyDetector(cfg *config.AnomalyConfig, logger *slog.Logger) *AnomalyDetector {
	if cfg == nil || cfg.ErrorRateThreshold <= 0 {
		return nil
	}
	window := defaultAnomalyWindow
	if cfg.WindowSeconds > 0 {
		window = time.Duration(cfg.WindowSeconds) * time.Second
	}
	return &AnomalyDetector{
		errors:    make(map[string]*slidingWindow),
		successes: make(map[string]*slidingWindow),
		threshold: cfg.ErrorRateThreshold,
		window:    window,
		logger:    logger,
		now:       time.Now,
	}
}

// Record adds one outcome for operation and reports whether the error rate is
// above the threshold afterwards.
func (a *AnomalyDetector) Record(operation string, err error) bool {
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if err == nil {
		a.windowFor(a.successes, operation).add(now)
		return false
	}
	a.windowFor(a.errors, operation).add(now)

	errs := float64(a.windowFor(a.errors, operation).count(now))
	total := errs + float64(a.windowFor(a.successes, operation).count(now))
	if total < minAnomalySamples {
		return false
	}
	rate := errs / total
	if rate <= a.threshold {
		return false
	}
	if a.logger != nil {
		a.logger.Warn("anomaly detected: high error rate",
			slog.String("operation", operation),
			slog.Float64("error_rate", rate),
			slog.Float64("threshold", a.threshold),
			slog.Int("samples", int(total)),
		)
	}
	return true
}

func (a *AnomalyDetector) windowFor(m map[string]*slidingWindow, key string) *slidingWindow {
	w, ok := m[key]
	if !ok {
		w = &slidingWindow{window: a.window}
		m[key] = w
	}
	return w
}

func (w *slidingWindow) add(now time.Time) {
	w.stamps = append(w.stamps, now)
	w.prune(now)
}

func (w *slidingWindow) count(now time.Time) int {
	w.prune(now)
	return len(w.stamps)
}

// prune drops entries older than the window.
func (w *slidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.stamps) && w.stamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = w.stamps[i:]
	}
}
