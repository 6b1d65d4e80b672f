package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrorLog appends failure records to a text file so raw judge responses
// that defeated extraction can be inspected later. A nil ErrorLog discards
// everything.
type ErrorLog struct {
	mu   sync.Mutex
	path string
}

// NewErrorLog creates an append-only error log at path.
func NewErrorLog(path string) *ErrorLog {
	return &ErrorLog{path: path}
}

// Logf appends one timestamped record.
func (e *ErrorLog) Logf(format string, args ...any) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(e.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	fmt.Fprintf(f, "[%s] %s\n", time.Now().Format(time.RFC3339), fmt.Sprintf(format, args...))
}
