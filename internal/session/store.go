// Package session persists SessionState to one JSON file per session,
// written with a temp-file-then-rename so a crash mid-write never leaves a
// corrupt file behind.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentscaffold/scaffold/internal/model"
)

// Store persists and retrieves model.SessionState records under Dir, one
// file per session named "<session_id>.json".
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates a Store rooted at dir, creating dir if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

// Save writes state atomically: marshal, write to a .tmp sibling, rename
// over the final path. A reader never observes a partially written file.
func (s *Store) Save(state *model.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session %s: %w", state.SessionID, err)
	}

	path := s.path(state.SessionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing session %s: %w", state.SessionID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming session %s: %w", state.SessionID, err)
	}
	// Stamp the file with a full-precision modification time so List can
	// order two saves made within the filesystem's timestamp granularity.
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		return fmt.Errorf("stamping session %s: %w", state.SessionID, err)
	}
	return nil
}

// Load reads back the session record for sessionID.
func (s *Store) Load(sessionID string) (*model.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", sessionID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("reading session %s: %w", sessionID, err)
	}
	var state model.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", sessionID, model.ErrRecordInvalid, err)
	}
	return &state, nil
}

// List returns every session ID with a record in Dir, newest first by
// modification time.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing session directory: %w", err)
	}

	type sessionFile struct {
		id      string
		modTime int64
	}
	var files []sessionFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, sessionFile{
			id:      strings.TrimSuffix(e.Name(), ".json"),
			modTime: info.ModTime().UnixNano(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime > files[j].modTime })

	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.id)
	}
	return ids, nil
}

// Resume loads the most recently written session, for callers that want to
// continue "the last run" without knowing its ID up front.
func (s *Store) Resume() (*model.SessionState, error) {
	ids, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no sessions to resume: %w", model.ErrNotFound)
	}
	return s.Load(ids[0])
}
