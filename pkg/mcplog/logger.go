// Package mcplog records MCP tool calls as JSON lines.
package mcplog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Entry is one JSONL line written per tool call.
type Entry struct {
	Ts            string         `json:"ts"`
	Tool          string         `json:"tool"`
	Params        map[string]any `json:"params"`
	DurationMs    int64          `json:"duration_ms"`
	ResponseBytes int            `json:"response_bytes"`
	// ToolError is set when the tool answered with an error result.
	ToolError bool    `json:"tool_error"`
	Error     *string `json:"error"`
}

// Logger appends entries to a file. It is safe for concurrent use, and a
// nil *Logger discards everything.
type Logger struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// Open opens path for appending, creating parent directories. An empty path
// returns a nil Logger.
func Open(path string) (*Logger, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("mcplog: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("mcplog: open log file: %w", err)
	}
	return &Logger{f: f, enc: json.NewEncoder(f)}, nil
}

// Write appends one entry.
func (l *Logger) Write(e Entry) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(e)
}

// Close closes the file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

const shortStringMax = 64

// SanitizeParams returns a copy of args that is small enough to log. Long
// strings (export documents, mostly) become "<key>_len", lists become
// "<key>_count" and objects "<key>_keys".
func SanitizeParams(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case string:
			if len(val) > shortStringMax {
				out[k+"_len"] = len(val)
				continue
			}
			out[k] = val
		case []any:
			out[k+"_count"] = len(val)
		case map[string]any:
			out[k+"_keys"] = len(val)
		default:
			out[k] = v
		}
	}
	return out
}

// ResponseBytes is the encoded size of a result's content, 0 for nil.
func ResponseBytes(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	b, err := json.Marshal(result.Content)
	if err != nil {
		return 0
	}
	return len(b)
}

// Now is the clock used for entry timestamps.
var Now = time.Now
