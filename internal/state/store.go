// Package state persists the last notified problem set and decides whether a
// new run should notify.
package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tis24dev/diskwatch/internal/types"
	"github.com/tis24dev/diskwatch/pkg/utils"
)

var legacyHashRe = regexp.MustCompile(`^[0-9a-fA-F]{32,128}$`)

// State is the persisted outcome of the last run that committed.
type State struct {
	Hash      string         `json:"hash"`
	Severity  types.Severity `json:"severity"`
	Payload   string         `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
	// Legacy is set when the file held only a bare hash line.
	Legacy bool `json:"-"`
}

// HadIssues reports whether the stored run was above OK. A legacy state has
// no severity and is assumed to have alerted.
func (s *State) HadIssues() bool {
	if s == nil {
		return false
	}
	return s.Legacy || s.Severity > types.SeverityOK
}

// Store reads and writes the state file.
type Store struct {
	path string
}

// NewStore returns a Store for path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// Load returns the stored state, or nil when no state exists yet. A file
// holding a single hex digest line is accepted as a legacy state.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state %s: %w", s.path, err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	if legacyHashRe.MatchString(trimmed) {
		return &State{Hash: strings.ToLower(trimmed), Legacy: true}, nil
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", s.path, err)
	}
	if st.Hash == "" {
		return nil, fmt.Errorf("parse state %s: missing hash", s.path)
	}
	return &st, nil
}

// Save writes st atomically, creating the parent directory if needed.
func (s *Store) Save(st State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append(data, '\n')
	if err := utils.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write state %s: %w", s.path, err)
	}
	return nil
}
