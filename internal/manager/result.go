package manager

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ResultEventType is the type of every ResultEvent.
const ResultEventType = "capiResult"

// ResultEvent is emitted after a cloud API call whose result is known.
type ResultEvent struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Result    any    `json:"result"`
}

// ResultLogger receives ResultEvents.
type ResultLogger func(ResultEvent)

var requestIDKeys = []string{"RequestId", "requestId", "request_id"}

// ExtractRequestID returns the request correlation id found in result, or "".
// Top-level keys are checked first, then a "Response" envelope.
func ExtractRequestID(result any) string {
	m := asMap(result)
	if m == nil {
		return ""
	}
	if id := lookupRequestID(m); id != "" {
		return id
	}
	if inner, ok := m["Response"].(map[string]any); ok {
		return lookupRequestID(inner)
	}
	return ""
}

// LogResult forwards result to logger. Either may be nil.
func LogResult(logger ResultLogger, result any) {
	if logger == nil || result == nil {
		return
	}
	logger(ResultEvent{
		Type:      ResultEventType,
		RequestID: ExtractRequestID(result),
		Result:    result,
	})
}

func lookupRequestID(m map[string]any) string {
	for _, k := range requestIDKeys {
		if id := scalarID(m[k]); id != "" {
			return id
		}
	}
	return ""
}

// scalarID formats a truthy scalar id. Zero, false and composite values
// yield "".
func scalarID(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
	case int, int32, int64, uint, uint32, uint64:
		if s := fmt.Sprint(t); s != "0" {
			return s
		}
	}
	return ""
}

func asMap(v any) map[string]any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return t
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}
