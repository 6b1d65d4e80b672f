// Package ledger persists per-question vote ledgers as v.json files under
// the meta tree and provides the batch consistency walker used by
// reconciliation and verification passes.
package ledger

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/coderated/gradepipe/internal/domain"
)

// Load reads and decodes the vote ledger at path. Nil maps in legacy files
// are backfilled so callers can mutate immediately.
func Load(path string) (*domain.VoteLedger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", path, err)
	}

	var l domain.VoteLedger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse ledger %s: %w", path, err)
	}
	l.EnsureMaps()
	return &l, nil
}

// Save writes the ledger to path with four-space indentation, creating
// parent directories as needed. The indentation matches the files written
// by the import tooling so diffs stay readable.
func Save(path string, l *domain.VoteLedger) error {
	data, err := json.MarshalIndent(l, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ledger %s: %w", path, err)
	}
	return nil
}

// Store resolves and walks ledgers under a meta directory root.
type Store struct {
	metaDir string
}

// NewStore creates a Store rooted at metaDir.
func NewStore(metaDir string) *Store {
	return &Store{metaDir: metaDir}
}

// MetaDir returns the store's root directory.
func (s *Store) MetaDir() string { return s.metaDir }

// Path returns the ledger path for a question id.
func (s *Store) Path(questionID int) string {
	return domain.IDParts(questionID).LedgerPath(s.metaDir)
}

// Load reads the ledger for a question id.
func (s *Store) Load(questionID int) (*domain.VoteLedger, error) {
	return Load(s.Path(questionID))
}

// Save writes the ledger for a question id.
func (s *Store) Save(questionID int, l *domain.VoteLedger) error {
	return Save(s.Path(questionID), l)
}

// Walk visits every v.json ledger under the meta tree in lexical order.
// Files that fail to parse are skipped; fn decides what to do with each
// decoded ledger. Returning an error from fn stops the walk.
func (s *Store) Walk(fn func(path string, questionID int, l *domain.VoteLedger) error) error {
	return filepath.WalkDir(s.metaDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".v.json") {
			return nil
		}

		questionID, err := QuestionIDFromPath(path)
		if err != nil {
			return nil
		}
		l, err := Load(path)
		if err != nil {
			return nil
		}
		return fn(path, questionID, l)
	})
}

// Issue describes one inconsistent ledger found by VerifyAll.
type Issue struct {
	Path       string
	QuestionID int
	Errors     []error
}

// VerifyAll walks the meta tree and reports every ledger whose votes,
// reasons, or grading history disagree.
func (s *Store) VerifyAll() ([]Issue, error) {
	var issues []Issue
	err := s.Walk(func(path string, questionID int, l *domain.VoteLedger) error {
		if errs := l.Verify(); len(errs) > 0 {
			issues = append(issues, Issue{Path: path, QuestionID: questionID, Errors: errs})
		}
		return nil
	})
	return issues, err
}

// QuestionIDFromPath recovers the question id from a ledger path such as
// meta/000/105/372.v.json by joining the two parent directories with the
// file's leading digits.
func QuestionIDFromPath(path string) (int, error) {
	base := filepath.Base(path)
	fileID, _, _ := strings.Cut(base, ".")
	dir2 := filepath.Base(filepath.Dir(path))
	dir1 := filepath.Base(filepath.Dir(filepath.Dir(path)))

	for _, seg := range []string{dir1, dir2, fileID} {
		if len(seg) != 3 {
			return 0, fmt.Errorf("malformed ledger path %q", path)
		}
	}
	id, err := strconv.Atoi(dir1 + dir2 + fileID)
	if err != nil {
		return 0, fmt.Errorf("malformed ledger path %q: %w", path, err)
	}
	return id, nil
}
