package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// fileStore keeps the seen identifiers as a sorted, indented JSON array.
// Writes go to a temp file in the same directory and are renamed over the
// old state.
type fileStore struct {
	path string
	log  zerolog.Logger
}

func newFileStore(path string, log zerolog.Logger) *fileStore {
	return &fileStore{path: path, log: log}
}

func (s *fileStore) Load(_ context.Context) (map[string]struct{}, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Info().Str("path", s.path).Msg("state file not found, starting fresh")
			return map[string]struct{}{}, nil
		}
		return map[string]struct{}{}, fmt.Errorf("%w: failed to read %s: %v", ErrCorruptState, s.path, err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return map[string]struct{}{}, fmt.Errorf("%w: failed to unmarshal %s: %v", ErrCorruptState, s.path, err)
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return seen, nil
}

func (s *fileStore) Save(_ context.Context, ids []string) error {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sorted); err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace state file %s: %w", s.path, err)
	}
	return nil
}

func (s *fileStore) Close() error { return nil }
