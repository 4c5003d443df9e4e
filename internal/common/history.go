package common

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// HistoryEntry is the verdict of one validation run.
type HistoryEntry struct {
	RunID    string    `json:"runId"`
	File     string    `json:"file"`
	Digest   string    `json:"blake3,omitempty"`
	Size     int64     `json:"size,omitempty"`
	Profile  string    `json:"profile"`
	Valid    bool      `json:"valid"`
	Fatal    bool      `json:"fatal,omitempty"`
	Errors   int       `json:"errors"`
	Warnings int       `json:"warnings"`
	Ts       time.Time `json:"ts"`
}

// History provides append-only access to a JSONL run ledger.
type History struct {
	path string
	mu   sync.Mutex
}

// NewHistory returns a History that writes to the provided path.
func NewHistory(path string) *History {
	return &History{path: path}
}

// Path returns the backing file path for the ledger.
func (h *History) Path() string {
	if h == nil {
		return ""
	}
	return h.path
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Append writes entry as one JSON line. A missing RunID or timestamp is
// filled in; the completed entry is returned.
func (h *History) Append(entry HistoryEntry) (HistoryEntry, error) {
	if h == nil {
		return entry, errors.New("nil history")
	}
	if entry.File == "" {
		return entry, errors.New("history entry missing file")
	}
	if entry.RunID == "" {
		entry.RunID = NewRunID()
	}
	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return entry, err
	}
	dir := filepath.Dir(h.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return entry, err
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return entry, err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return entry, err
	}
	return entry, f.Sync()
}

// ReadHistory loads every entry from the supplied JSONL file.
func ReadHistory(path string) ([]HistoryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var entries []HistoryEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry HistoryEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
