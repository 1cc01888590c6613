// Package store persists analyses as JSON files so insights can be rerun
// without re-reading the spreadsheet.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/datana-cli/internal/analysis"
	"github.com/KaramelBytes/datana-cli/internal/utils"
	"github.com/apex/log"
	"github.com/google/uuid"
)

const fileExt = ".json"

var (
	// ErrNotFound is returned when no saved analysis matches an ID.
	ErrNotFound = errors.New("analysis not found")
	// ErrAmbiguous is returned when an ID prefix matches several analyses.
	ErrAmbiguous = errors.New("analysis id prefix is ambiguous")
)

// Entry is one saved analysis.
type Entry struct {
	ID        string           `json:"id"`
	Source    string           `json:"source"`
	Sheet     string           `json:"sheet,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Result    *analysis.Result `json:"result"`
}

// Summary is the listing view of an Entry.
type Summary struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Sheet     string    `json:"sheet,omitempty"`
	Rows      int       `json:"rows"`
	Revenue   float64   `json:"total_revenue"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a directory of saved analyses, one file per ID.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. The directory is created on first save.
func New(dir string) *Store { return &Store{dir: dir} }

// Dir returns the on-disk location.
func (s *Store) Dir() string { return s.dir }

// Save persists r under a fresh ID.
func (s *Store) Save(r *analysis.Result) (*Entry, error) {
	if r == nil {
		return nil, errors.New("analysis is nil")
	}
	if err := utils.EnsureDir(s.dir); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	e := &Entry{
		ID:        uuid.NewString(),
		Source:    r.File,
		Sheet:     r.Sheet,
		CreatedAt: time.Now(),
		Result:    r,
	}
	data, err := utils.PrettyJSON(e)
	if err != nil {
		return nil, err
	}
	if err := utils.SafeWriteFile(s.path(e.ID), data); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"id": e.ID, "source": e.Source}).Debug("analysis saved")
	return e, nil
}

// Load returns the analysis with the given ID or unique ID prefix.
func (s *Store) Load(id string) (*Entry, error) {
	full, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	return s.read(full)
}

// List returns saved analyses, newest first. Unreadable files are skipped.
func (s *Store) List() ([]Summary, error) {
	ids, err := s.ids()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		e, err := s.read(id)
		if err != nil {
			log.WithError(err).WithField("id", id).Warn("skipping unreadable analysis")
			continue
		}
		sum := Summary{ID: e.ID, Source: e.Source, Sheet: e.Sheet, CreatedAt: e.CreatedAt}
		if e.Result != nil {
			sum.Rows = e.Result.KPI.RowCount
			sum.Revenue = e.Result.KPI.TotalRevenue
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes the analysis with the given ID or unique prefix.
func (s *Store) Delete(id string) (string, error) {
	full, err := s.resolve(id)
	if err != nil {
		return "", err
	}
	if err := os.Remove(s.path(full)); err != nil {
		return "", fmt.Errorf("remove analysis: %w", err)
	}
	log.WithField("id", full).Debug("analysis deleted")
	return full, nil
}

func (s *Store) path(id string) string { return filepath.Join(s.dir, id+fileExt) }

func (s *Store) read(id string) (*Entry, error) {
	b, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read analysis: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("parse analysis %s: %w", id, err)
	}
	return &e, nil
}

func (s *Store) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store: %w", err)
	}
	var ids []string
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileExt))
	}
	return ids, nil
}

func (s *Store) resolve(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}
	ids, err := s.ids()
	if err != nil {
		return "", err
	}
	var match []string
	for _, cand := range ids {
		if cand == id {
			return cand, nil
		}
		if strings.HasPrefix(cand, id) {
			match = append(match, cand)
		}
	}
	switch len(match) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return match[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %d analyses", ErrAmbiguous, id, len(match))
	}
}
