package webui

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Component string    `json:"component,omitempty"`
	Message   string    `json:"message"`
	Raw       string    `json:"raw"`
}

// LogBuffer is a thread-safe ring buffer for log entries. It is installed
// next to stdout as a zerolog writer and backs GET /api/logs.
type LogBuffer struct {
	entries []LogEntry
	size    int
	head    int
	count   int
	mu      sync.RWMutex
}

// NewLogBuffer creates a new log buffer with the specified capacity
func NewLogBuffer(size int) *LogBuffer {
	if size < 1 {
		size = 1000
	}
	return &LogBuffer{
		entries: make([]LogEntry, size),
		size:    size,
	}
}

// Write implements io.Writer for capturing log output
func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	entry := parseEntry(p)

	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries[lb.head] = entry
	lb.head = (lb.head + 1) % lb.size
	if lb.count < lb.size {
		lb.count++
	}

	return len(p), nil
}

// GetEntries returns all log entries in chronological order
func (lb *LogBuffer) GetEntries() []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	result := make([]LogEntry, lb.count)
	if lb.count == 0 {
		return result
	}

	start := 0
	if lb.count == lb.size {
		start = lb.head
	}

	for i := 0; i < lb.count; i++ {
		result[i] = lb.entries[(start+i)%lb.size]
	}

	return result
}

// GetRecentEntries returns the most recent n entries, optionally restricted
// to one level
func (lb *LogBuffer) GetRecentEntries(n int, level string) []LogEntry {
	entries := lb.GetEntries()
	if level != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Level == level {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

// Len returns the number of buffered entries
func (lb *LogBuffer) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.count
}

// Clear clears all log entries
func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.head = 0
	lb.count = 0
}

// zerologLine holds the fields of a zerolog JSON line the buffer keeps
type zerologLine struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Component string `json:"component"`
	Time      any    `json:"time"`
}

// parseEntry decodes a zerolog JSON line; anything else is kept raw at info
func parseEntry(p []byte) LogEntry {
	raw := strings.TrimRight(string(p), "\n")
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     "info",
		Message:   raw,
		Raw:       raw,
	}

	var line zerologLine
	if err := json.Unmarshal(p, &line); err != nil {
		return entry
	}
	if line.Level != "" {
		entry.Level = line.Level
	}
	if line.Message != "" {
		entry.Message = line.Message
	}
	entry.Component = line.Component

	switch t := line.Time.(type) {
	case float64:
		entry.Timestamp = time.Unix(int64(t), 0).UTC()
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			entry.Timestamp = parsed.UTC()
		}
	}
	return entry
}
