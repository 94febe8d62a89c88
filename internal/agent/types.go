package agent

import "errors"

var ErrNotFound = errors.New("agent not found")

// VoiceConfig describes an agent's synthesized-voice setup. Enabled gates
// whether voice sessions may be created against the agent.
type VoiceConfig struct {
	Enabled   bool           `json:"enabled"`
	VoiceID   string         `json:"voice_id"`
	VoiceName string         `json:"voice_name"`
	Settings  map[string]any `json:"settings,omitempty"`
}

// Personality is free-form persona data carried through to sessions and the
// chat responder; the core never interprets individual fields beyond these.
type Personality struct {
	Traits             []string `json:"traits,omitempty"`
	Specialties        []string `json:"specialties,omitempty"`
	CommunicationStyle string   `json:"communication_style,omitempty"`
	Approach           string   `json:"approach,omitempty"`
	Tone               string   `json:"tone,omitempty"`
	Origin             string   `json:"origin,omitempty"`
	Language           string   `json:"language,omitempty"`
}

// Profile is one agent definition, stored as <id>.json in the agents
// directory.
type Profile struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Role         string      `json:"role,omitempty"`
	Tagline      string      `json:"tagline,omitempty"`
	Language     string      `json:"language,omitempty"`
	Priority     int         `json:"priority,omitempty"`
	Avatar       string      `json:"avatar,omitempty"`
	Personality  Personality `json:"personality"`
	Capabilities []string    `json:"capabilities,omitempty"`
	VoiceConfig  VoiceConfig `json:"voice_config"`
	AudioSample  string      `json:"audioSample,omitempty"`
	CreatedAt    string      `json:"created_at,omitempty"`
	UpdatedAt    string      `json:"updated_at,omitempty"`
}
