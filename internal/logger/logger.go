// Package logger writes the JSON-lines audit trail spec §4.9 requires:
// one redacted AuditEvent per evaluated command, rotated at 10MB.
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dcg-tools/dcg/internal/redact"
)

// defaultMaxLogBytes is the file size at which the log is rotated (10 MB).
const defaultMaxLogBytes = 10 * 1024 * 1024

// DefaultPath returns the well-known audit log location, alongside the
// allow-once ledger under the user's data directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "dcg", "audit.jsonl"), nil
}

// AuditEvent is one logged evaluation, matching spec §4.9's schema.
type AuditEvent struct {
	Timestamp     string `json:"timestamp"`
	Command       string `json:"command"`
	Cwd           string `json:"cwd"`
	ScopePath     string `json:"scope_path,omitempty"`
	Decision      string `json:"decision"`
	RuleID        string `json:"rule_id,omitempty"`
	PackID        string `json:"pack_id,omitempty"`
	Severity      string `json:"severity,omitempty"`
	Source        string `json:"source,omitempty"`
	AllowOnceCode string `json:"allow_once_code,omitempty"`
	Mode          string `json:"mode"`
	Error         string `json:"error,omitempty"`
}

type AuditLogger struct {
	path string
	file *os.File
	mu   sync.Mutex
}

func New(path string) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &AuditLogger{path: path, file: file}, nil
}

// rotateIfNeeded rotates the log file if it has reached defaultMaxLogBytes.
// It renames the current file to <path>.1 (dropping any existing .1) and
// opens a fresh log file. Must be called with l.mu held.
func (l *AuditLogger) rotateIfNeeded() error {
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < defaultMaxLogBytes {
		return nil
	}

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log before rotation: %w", err)
	}

	rotated := l.path + ".1"
	_ = os.Remove(rotated)
	if err := os.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("rotate log: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open fresh log after rotation: %w", err)
	}
	l.file = f
	return nil
}

func (l *AuditLogger) Log(event AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(); err != nil {
		fmt.Fprintf(os.Stderr, "dcg: warning: log rotation failed: %v\n", err)
	}

	event.Command = redact.Redact(event.Command)
	if event.Error != "" {
		event.Error = redact.Redact(event.Error)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	data = append(data, '\n')
	_, err = l.file.Write(data)
	return err
}

func (l *AuditLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
