package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jonathan/handle-crawler/internal/schemas"
	"github.com/jonathan/handle-crawler/internal/types"
)

// ErrClosed is returned when a closed sink is used.
var ErrClosed = errors.New("sink is closed")

// JSONFile writes records as one JSON array. Records are appended to a
// ".partial" file next to the target as they arrive; Close terminates the
// array and renames it into place, so the target path only ever holds a
// complete document.
type JSONFile struct {
	mu      sync.Mutex
	path    string
	partial string
	file    *os.File
	w       *bufio.Writer
	count   int
	closed  bool
	logger  zerolog.Logger
}

// NewJSONFile creates the partial output file for path.
func NewJSONFile(path string, logger zerolog.Logger) (*JSONFile, error) {
	if path == "" {
		return nil, fmt.Errorf("output path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	partial := path + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	s := &JSONFile{
		path:    path,
		partial: partial,
		file:    f,
		w:       bufio.NewWriter(f),
		logger:  logger,
	}
	if _, err := s.w.WriteString("["); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write output file: %w", err)
	}
	return s, nil
}

// Count returns the number of records written.
func (s *JSONFile) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Emit validates rec against the member record schema and appends it.
func (s *JSONFile) Emit(_ context.Context, rec *types.MemberRecord) error {
	if rec == nil {
		return fmt.Errorf("member record is nil")
	}
	if err := schemas.ValidateMemberRecord(rec); err != nil {
		return fmt.Errorf("record %s rejected: %w", rec.Nickname, err)
	}

	data, err := json.MarshalIndent(rec, "  ", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", rec.Nickname, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	sep := "\n  "
	if s.count > 0 {
		sep = ",\n  "
	}
	if _, err := s.w.WriteString(sep); err != nil {
		return fmt.Errorf("failed to write record %s: %w", rec.Nickname, err)
	}
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write record %s: %w", rec.Nickname, err)
	}
	s.count++
	return nil
}

// Flush writes buffered records to the partial file and syncs it.
func (s *JSONFile) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.flushLocked()
}

func (s *JSONFile) flushLocked() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush output file: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync output file: %w", err)
	}
	return nil
}

// Close terminates the array and moves the file to its final path.
func (s *JSONFile) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	tail := "]\n"
	if s.count > 0 {
		tail = "\n]\n"
	}
	if _, err := s.w.WriteString(tail); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("failed to finish output file: %w", err)
	}
	if err := s.flushLocked(); err != nil {
		_ = s.file.Close()
		return err
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Rename(s.partial, s.path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}

	s.logger.Info().Str("path", s.path).Int("records", s.count).Msg("output written")
	return nil
}

// Abort discards the partial file and leaves any existing output untouched.
func (s *JSONFile) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	_ = s.file.Close()
	if err := os.Remove(s.partial); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove partial output: %w", err)
	}
	return nil
}
