package deploy

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "deployments.json"), zerolog.Nop())
}

func TestDeployAndList(t *testing.T) {
	s := testStore(t)

	d, err := s.Deploy("client1", "julie", map[string]any{"greeting": "custom"})
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if !d.Active || d.DeployedAt == "" {
		t.Fatalf("deployment = %+v", d)
	}

	active, err := s.ActiveForClient("client1")
	if err != nil {
		t.Fatalf("ActiveForClient() error = %v", err)
	}
	if len(active) != 1 || active[0].AgentID != "julie" {
		t.Fatalf("active = %+v", active)
	}
	if active[0].Config["greeting"] != "custom" {
		t.Fatalf("config lost on round trip: %+v", active[0].Config)
	}
}

func TestDeployReplacesExistingAssignment(t *testing.T) {
	s := testStore(t)

	if _, err := s.Deploy("client1", "julie", map[string]any{"v": "one"}); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if _, err := s.Deploy("client1", "julie", map[string]any{"v": "two"}); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	active, _ := s.ActiveForClient("client1")
	if len(active) != 1 {
		t.Fatalf("duplicate assignment recorded: %+v", active)
	}
	if active[0].Config["v"] != "two" {
		t.Fatalf("redeploy did not replace config: %+v", active[0].Config)
	}
}

func TestRemoveDeactivatesNotDeletes(t *testing.T) {
	s := testStore(t)
	if _, err := s.Deploy("client1", "julie", nil); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	if err := s.Remove("client1", "julie"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	active, _ := s.ActiveForClient("client1")
	if len(active) != 0 {
		t.Fatalf("removed agent still active: %+v", active)
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	agents := all["client1"].Agents
	if len(agents) != 1 || agents[0].Active || agents[0].RemovedAt == "" {
		t.Fatalf("removal did not keep the audit record: %+v", agents)
	}
}

func TestRemoveErrors(t *testing.T) {
	s := testStore(t)
	if err := s.Remove("ghost", "julie"); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("Remove() error = %v, want ErrClientNotFound", err)
	}

	if _, err := s.Deploy("client1", "julie", nil); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if err := s.Remove("client1", "brian"); !errors.Is(err, ErrNotDeployed) {
		t.Fatalf("Remove() error = %v, want ErrNotDeployed", err)
	}
}

func TestUnknownClientIsEmptyList(t *testing.T) {
	s := testStore(t)
	active, err := s.ActiveForClient("nobody")
	if err != nil {
		t.Fatalf("ActiveForClient() error = %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active = %+v", active)
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deployments.json")

	first := NewStore(path, zerolog.Nop())
	if _, err := first.Deploy("client1", "julie", nil); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	second := NewStore(path, zerolog.Nop())
	active, err := second.ActiveForClient("client1")
	if err != nil {
		t.Fatalf("ActiveForClient() error = %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("deployments lost across reopen: %+v", active)
	}
}
