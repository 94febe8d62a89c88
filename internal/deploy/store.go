package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrClientNotFound = errors.New("client has no deployments")
	ErrNotDeployed    = errors.New("agent not deployed to this client")
)

// Deployment is one agent assignment to a client. Removal flips the active
// flag rather than deleting the record, keeping an audit trail in the file.
type Deployment struct {
	AgentID    string         `json:"agent_id"`
	Config     map[string]any `json:"config"`
	DeployedAt string         `json:"deployed_at"`
	Active     bool           `json:"active"`
	RemovedAt  string         `json:"removed_at,omitempty"`
}

// ClientDeployments groups every assignment for one client id.
type ClientDeployments struct {
	ClientID  string       `json:"client_id"`
	Agents    []Deployment `json:"agents"`
	CreatedAt string       `json:"created_at"`
}

// Store tracks agent-to-client assignments in a flat JSON file. The whole map
// is loaded and rewritten on each mutation under a process-wide lock, which is
// fine at the scale a single relay node serves.
type Store struct {
	mu     sync.Mutex
	path   string
	logger zerolog.Logger
}

func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{path: path, logger: logger.With().Str("component", "deployments").Logger()}
}

// Deploy assigns the agent to the client, replacing any previous assignment
// for the same pair.
func (s *Store) Deploy(clientID, agentID string, config map[string]any) (Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return Deployment{}, err
	}

	client, ok := all[clientID]
	if !ok {
		client = &ClientDeployments{
			ClientID:  clientID,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		all[clientID] = client
	}

	d := Deployment{
		AgentID:    agentID,
		Config:     config,
		DeployedAt: time.Now().UTC().Format(time.RFC3339),
		Active:     true,
	}

	replaced := false
	for i := range client.Agents {
		if client.Agents[i].AgentID == agentID {
			client.Agents[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		client.Agents = append(client.Agents, d)
	}

	if err := s.save(all); err != nil {
		return Deployment{}, err
	}
	s.logger.Info().Str("client_id", clientID).Str("agent_id", agentID).Msg("agent deployed")
	return d, nil
}

// ActiveForClient returns the client's live assignments. A client the file
// has never seen yields an empty list, not an error.
func (s *Store) ActiveForClient(clientID string) ([]Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	client, ok := all[clientID]
	if !ok {
		return nil, nil
	}

	out := make([]Deployment, 0, len(client.Agents))
	for _, d := range client.Agents {
		if d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

// Remove deactivates the assignment, recording when it was removed.
func (s *Store) Remove(clientID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	client, ok := all[clientID]
	if !ok {
		return ErrClientNotFound
	}

	for i := range client.Agents {
		if client.Agents[i].AgentID == agentID {
			client.Agents[i].Active = false
			client.Agents[i].RemovedAt = time.Now().UTC().Format(time.RFC3339)
			return s.save(all)
		}
	}
	return ErrNotDeployed
}

// All returns the full deployment map, keyed by client id.
func (s *Store) All() (map[string]*ClientDeployments, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (map[string]*ClientDeployments, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]*ClientDeployments), nil
		}
		return nil, fmt.Errorf("read deployments file: %w", err)
	}

	all := make(map[string]*ClientDeployments)
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse deployments file: %w", err)
	}
	return all, nil
}

func (s *Store) save(all map[string]*ClientDeployments) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode deployments: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write deployments file: %w", err)
	}
	return nil
}
