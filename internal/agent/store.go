package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Store reads and writes agent profiles as JSON files in a single directory.
// Profiles are external collaborators as far as the session core is
// concerned: sessions snapshot profile data at creation and never read back.
type Store struct {
	dir    string
	logger zerolog.Logger
}

func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create agents dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Get loads a single profile by id.
func (s *Store) Get(id string) (*Profile, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read agent %s: %w", id, err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse agent %s: %w", id, err)
	}
	return &p, nil
}

// List returns all profiles sorted by ascending priority. An empty language
// filter returns everything.
func (s *Store) List(language string) ([]Profile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read agents dir: %w", err)
	}

	profiles := make([]Profile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.logger.Warn().Err(err).Str("file", e.Name()).Msg("skipping unreadable agent profile")
			continue
		}
		var p Profile
		if err := json.Unmarshal(data, &p); err != nil {
			s.logger.Warn().Err(err).Str("file", e.Name()).Msg("skipping malformed agent profile")
			continue
		}
		if language != "" && p.Language != language {
			continue
		}
		profiles = append(profiles, p)
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		return priorityOf(profiles[i]) < priorityOf(profiles[j])
	})
	return profiles, nil
}

// Search matches the query against name, role, tagline and specialties,
// case-insensitively.
func (s *Store) Search(query string) ([]Profile, error) {
	all, err := s.List("")
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	out := make([]Profile, 0, len(all))
	for _, p := range all {
		if matches(p, q) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Save writes a profile, stamping created/updated timestamps.
func (s *Store) Save(p *Profile) error {
	if p.ID == "" || p.ID != filepath.Base(p.ID) {
		return fmt.Errorf("invalid agent id %q", p.ID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if p.CreatedAt == "" {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal agent %s: %w", p.ID, err)
	}
	if err := os.WriteFile(s.path(p.ID), data, 0o644); err != nil {
		return fmt.Errorf("write agent %s: %w", p.ID, err)
	}
	return nil
}

// Delete removes a profile file.
func (s *Store) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	if err := os.Remove(s.path(id)); err != nil {
		return fmt.Errorf("delete agent %s: %w", id, err)
	}
	return nil
}

func priorityOf(p Profile) int {
	if p.Priority == 0 {
		return 999
	}
	return p.Priority
}

func matches(p Profile, q string) bool {
	if strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Role), q) ||
		strings.Contains(strings.ToLower(p.Tagline), q) {
		return true
	}
	for _, sp := range p.Personality.Specialties {
		if strings.Contains(strings.ToLower(sp), q) {
			return true
		}
	}
	return false
}
