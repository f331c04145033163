package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"alert-pipeline/internal/model"
)

// LogFileName returns the per-service event log file name.
func LogFileName(service string) string {
	return service + "-alert-data.ndjson"
}

// EventLog appends AlertEvents as newline-delimited JSON. Appends are
// serialized so concurrent writers never interleave partial lines.
type EventLog struct {
	path string
	mu   sync.Mutex
}

// NewEventLog creates the log directory if needed and returns a log for service.
func NewEventLog(dir, service string) (*EventLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create alert log directory: %w", err)
	}
	return &EventLog{path: filepath.Join(dir, LogFileName(service))}, nil
}

// Path returns the log file path.
func (l *EventLog) Path() string {
	return l.path
}

// Append writes one event as a single line. The file is opened per write so
// external rotation is picked up without coordination.
func (l *EventLog) Append(event *model.AlertEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode alert event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open alert log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to write alert event: %w", err)
	}
	return f.Close()
}
