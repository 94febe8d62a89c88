package agent

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestStoreSaveGetDelete(t *testing.T) {
	s := testStore(t)

	p := &Profile{
		ID:       "julie",
		Name:     "Julie",
		Role:     "Care Coordinator",
		Language: "en",
		VoiceConfig: VoiceConfig{
			Enabled: true,
			VoiceID: "voice-1",
		},
	}
	if err := s.Save(p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if p.CreatedAt == "" || p.UpdatedAt == "" {
		t.Fatalf("timestamps not stamped: %+v", p)
	}

	got, err := s.Get("julie")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Julie" || !got.VoiceConfig.Enabled {
		t.Fatalf("unexpected profile: %+v", got)
	}

	if err := s.Delete("julie"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get("julie"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestStoreGetRejectsPathTraversal(t *testing.T) {
	s := testStore(t)
	for _, id := range []string{"", "../secrets", "a/b", ".hidden"} {
		if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestStoreListSortsByPriorityAndFiltersLanguage(t *testing.T) {
	s := testStore(t)
	seed := []*Profile{
		{ID: "c", Name: "C", Language: "en"}, // priority 0 -> sorts last
		{ID: "a", Name: "A", Language: "en", Priority: 2},
		{ID: "b", Name: "B", Language: "es", Priority: 1},
	}
	for _, p := range seed {
		if err := s.Save(p); err != nil {
			t.Fatalf("Save(%s) error = %v", p.ID, err)
		}
	}

	all, err := s.List("")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].ID != "b" || all[1].ID != "a" || all[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", all)
	}

	es, err := s.List("es")
	if err != nil {
		t.Fatalf("List(es) error = %v", err)
	}
	if len(es) != 1 || es[0].ID != "b" {
		t.Fatalf("unexpected language filter result: %+v", es)
	}
}

func TestStoreSearch(t *testing.T) {
	s := testStore(t)
	p := &Profile{
		ID:   "sofia",
		Name: "Sofia",
		Role: "Treatment Advisor",
		Personality: Personality{
			Specialties: []string{"Implants", "Financing"},
		},
	}
	if err := s.Save(p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	hits, err := s.Search("implants")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "sofia" {
		t.Fatalf("unexpected search hits: %+v", hits)
	}

	none, err := s.Search("orthodontics")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no hits, got %+v", none)
	}
}
