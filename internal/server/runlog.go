package server

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunEntry is one line of the analysis run log.
type RunEntry struct {
	Time     time.Time `json:"time"`
	Analysis string    `json:"analysis"`
	Columns  []string  `json:"columns,omitempty"`
	Millis   int64     `json:"elapsed_ms"`
	Outcome  string    `json:"outcome"`
	Code     string    `json:"code,omitempty"`
}

// RunLog appends one JSON line per analysis run to a file, so a session
// can be reconstructed after the fact.
type RunLog struct {
	mu   sync.Mutex
	path string
}

// OpenRunLog creates the log directory and returns a log writing to
// analysis_log.jsonl inside it.
func OpenRunLog(dir string) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &RunLog{path: filepath.Join(dir, "analysis_log.jsonl")}, nil
}

// Append writes one entry.
func (l *RunLog) Append(entry RunEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}
