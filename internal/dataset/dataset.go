// Package dataset appends structured events to newline-delimited JSON files
// for offline dataset capture: finalized orders, classifier audit records,
// non-order messages, and order updates. Each event type gets its own file
// under a configured directory. Writes are best-effort append-only; a failed
// write is an error for the caller to log, never to propagate.
package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event names map one-to-one onto files ("orders" -> orders.ndjson).
const (
	EventOrder       = "orders"
	EventAICheck     = "ai_check"
	EventNonOrder    = "non_order"
	EventOrderUpdate = "order_updates"
)

// Writer appends NDJSON lines, one file per event name. Safe for concurrent
// use.
type Writer struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// NewWriter creates the dataset directory if needed and returns a Writer.
// The now function defaults to time.Now.
func NewWriter(dir string, now func() time.Time) (*Writer, error) {
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{dir: dir, now: now}, nil
}

// Append writes payload as one JSON line to the event's file, injecting a
// UTC timestamp field.
func (w *Writer) Append(event string, payload map[string]any) error {
	record := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		record[k] = v
	}
	record["timestamp"] = w.now().UTC().Format(time.RFC3339Nano)

	line, err := json.Marshal(record)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path(event), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(line)
	return err
}

func (w *Writer) path(event string) string {
	return filepath.Join(w.dir, event+".ndjson")
}
