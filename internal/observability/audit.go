package observability

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jkaninda/cloudbase-mcp/internal/manager"
)

// AuditEntry is one line of the result audit log.
type AuditEntry struct {
	Time      time.Time `json:"time"`
	Type      string    `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Result    any       `json:"result"`
}

// AuditLog appends cloud API results as JSONL. Safe for concurrent use.
type AuditLog struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLog opens (or creates) path in append-only mode with 0600
// permissions.
func NewAuditLog(path string, logger *slog.Logger) (*AuditLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{file: f, logger: logger, now: time.Now}, nil
}

// Record appends ev. It has the manager.ResultLogger signature, so it can be
// installed as a result sink. Write failures are logged, not returned.
func (a *AuditLog) Record(ev manager.ResultEvent) {
	data, err := json.Marshal(AuditEntry{
		Time:      a.now().UTC(),
		Type:      ev.Type,
		RequestID: ev.RequestID,
		Result:    ev.Result,
	})
	if err != nil {
		a.logger.Warn("audit entry not serializable", slog.String("request_id", ev.RequestID), slog.Any("error", err))
		return
	}
	data = append(data, '\n')

	a.mu.Lock()
	_, err = a.file.Write(data)
	a.mu.Unlock()
	if err != nil {
		a.logger.Warn("writing audit entry", slog.String("request_id", ev.RequestID), slog.Any("error", err))
	}
}

// Close closes the underlying file.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}
