// Package logger provides a file writer that keeps only the most recent log lines.
package logger

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LogRotator appends to a log file and, once twice maxLines lines were written, rewrites
// the file so it holds only the last maxLines lines.
type LogRotator struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	maxLines int
	recent   [][]byte
	next     int
	written  int
}

// NewLogRotator opens path for appending. A non-positive maxLines disables trimming.
func NewLogRotator(path string, maxLines int) (*LogRotator, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	r := &LogRotator{
		file:     file,
		path:     path,
		maxLines: maxLines,
	}
	if maxLines > 0 {
		r.recent = make([][]byte, 0, maxLines)
	}

	return r, nil
}

// Write implements io.Writer.
func (r *LogRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.file.Write(p)
	if err != nil || r.maxLines <= 0 {
		return n, err
	}

	for line := range bytes.SplitSeq(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		r.remember(bytes.Clone(line))
	}

	if r.written >= r.maxLines*2 {
		if err := r.trim(); err != nil {
			return n, fmt.Errorf("failed to rotate log file: %w", err)
		}
		r.written = len(r.recent)
	}

	return n, nil
}

// Sync flushes the file.
func (r *LogRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Sync()
}

// Close closes the file.
func (r *LogRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

func (r *LogRotator) remember(line []byte) {
	if len(r.recent) < r.maxLines {
		r.recent = append(r.recent, line)
	} else {
		r.recent[r.next] = line
		r.next = (r.next + 1) % r.maxLines
	}
	r.written++
}

// lines returns the remembered lines oldest first.
func (r *LogRotator) lines() [][]byte {
	if len(r.recent) < r.maxLines {
		return r.recent
	}
	ordered := make([][]byte, 0, len(r.recent))
	ordered = append(ordered, r.recent[r.next:]...)
	return append(ordered, r.recent[:r.next]...)
}

// trim replaces the file with the remembered lines.
func (r *LogRotator) trim() error {
	temp, err := os.CreateTemp(filepath.Dir(r.path), "temp-log-")
	if err != nil {
		return err
	}
	tempPath := temp.Name()

	content := append(bytes.Join(r.lines(), []byte("\n")), '\n')
	if _, err := temp.Write(content); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return err
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	r.file.Close()
	if err := os.Rename(tempPath, r.path); err != nil {
		return err
	}

	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	r.file = file

	return nil
}
