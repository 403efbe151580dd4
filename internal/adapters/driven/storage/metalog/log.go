// Package metalog implements the durable append-only metadata log.
// Records are self-describing JSON lines, one IndexEntry per line, so the
// log can be replayed independently of any other state. The log is the
// source of truth for the whole store: the dedup hash set and the vector
// index artifact are both derived from it.
package metalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parchment-labs/recall/internal/core/domain"
	"github.com/parchment-labs/recall/internal/core/ports/driven"
	"github.com/parchment-labs/recall/internal/logger"
)

// Ensure Log implements the interface.
var _ driven.MetadataLog = (*Log)(nil)

// Log is a file-backed append-only record store.
type Log struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// Open opens (or creates) the log at path. A truncated trailing record
// left by a crash is discarded with a warning before the log is usable;
// this is the only form of repair ever applied.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, errors.New("metalog: path cannot be empty")
	}

	if err := repairTail(path); err != nil {
		return nil, fmt.Errorf("metalog: repairing log: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("metalog: opening log: %w", err)
	}

	return &Log{path: path, file: f}, nil
}

// Append durably writes one entry. The record is flushed to disk before
// Append returns; this is the commit point of the indexing pipeline.
func (l *Log) Append(_ context.Context, entry domain.IndexEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("metalog: %w", domain.ErrEngineClosed)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("metalog: marshalling entry %d: %w", entry.VectorID, err)
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("metalog: appending entry %d: %w", entry.VectorID, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("metalog: syncing log: %w", err)
	}
	return nil
}

// Replay reads all records in log order and resolves superseding appends:
// the latest record for a vector id wins, keeping the position of the
// first occurrence so replay order stays stable across restarts.
func (l *Log) Replay(_ context.Context) ([]domain.IndexEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, fmt.Errorf("metalog: %w", domain.ErrEngineClosed)
	}

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("metalog: opening log for replay: %w", err)
	}
	defer f.Close()

	var (
		entries []domain.IndexEntry
		byID    = make(map[uint64]int)
		lineNo  int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var entry domain.IndexEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("metalog: malformed record at line %d: %w", lineNo, err)
		}

		if at, ok := byID[entry.VectorID]; ok {
			entries[at] = entry
			continue
		}
		byID[entry.VectorID] = len(entries)
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("metalog: scanning log: %w", err)
	}

	return entries, nil
}

// Close releases the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// DefaultPath returns the log path inside a data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "metadata.jsonl")
}

// repairTail truncates a partially written trailing record. A record is
// complete when it ends in a newline and parses as JSON; anything after
// the last complete record is discarded. Corruption before the tail is
// not repairable and surfaces as an error.
func repairTail(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	goodEnd := 0
	offset := 0
	for offset < len(data) {
		nl := bytes.IndexByte(data[offset:], '\n')
		if nl < 0 {
			// No terminating newline: partial write from a crash.
			break
		}
		line := bytes.TrimSpace(data[offset : offset+nl])
		if len(line) > 0 && !json.Valid(line) {
			// A complete but unparseable line is only tolerable at the
			// very end of the file (torn write plus a stray newline).
			if offset+nl+1 >= len(data) {
				break
			}
			return fmt.Errorf("corrupt record at offset %d", offset)
		}
		offset += nl + 1
		goodEnd = offset
	}

	if goodEnd == len(data) {
		return nil
	}

	logger.Warn("metadata log: discarding truncated trailing record (%d bytes)", len(data)-goodEnd)
	return os.Truncate(path, int64(goodEnd))
}
