package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ndimarco/aria/internal/agent"
	"github.com/ndimarco/aria/internal/observability"
)

type fakeProfiles struct {
	profiles map[string]*agent.Profile
}

func (f *fakeProfiles) Get(id string) (*agent.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, agent.ErrNotFound
	}
	return p, nil
}

func testManager() (*Manager, *fakeProfiles) {
	profiles := &fakeProfiles{profiles: map[string]*agent.Profile{
		"julie": {
			ID:           "julie",
			Name:         "Julie",
			Capabilities: []string{"scheduling"},
			VoiceConfig:  agent.VoiceConfig{Enabled: true, VoiceID: "v1", VoiceName: "Nicole"},
		},
		"mute": {
			ID:          "mute",
			Name:        "Mute",
			VoiceConfig: agent.VoiceConfig{Enabled: false},
		},
	}}
	answerer := func(sessionID string, _ json.RawMessage) json.RawMessage {
		return json.RawMessage(`{"type":"answer","sdp":"placeholder"}`)
	}
	return NewManager(profiles, answerer), profiles
}

func TestCreateSnapshotsAgentProfile(t *testing.T) {
	m, profiles := testManager()

	s, err := m.Create("julie", "u1", map[string]any{"codec": "opus"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.Status != StatusInitiated {
		t.Fatalf("Status = %q, want %q", s.Status, StatusInitiated)
	}
	if s.VoiceConfig.VoiceID != "v1" || s.AgentName != "Julie" {
		t.Fatalf("snapshot missing profile data: %+v", s)
	}

	// A later profile edit must not leak into the live session.
	profiles.profiles["julie"].VoiceConfig.VoiceID = "v2"
	profiles.profiles["julie"].Name = "Changed"

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.VoiceConfig.VoiceID != "v1" || got.AgentName != "Julie" {
		t.Fatalf("session observed profile edit: %+v", got)
	}
}

func TestCreateRejectsMissingOrVoicelessAgent(t *testing.T) {
	m, _ := testManager()

	if _, err := m.Create("ghost", "", nil); !errors.Is(err, agent.ErrNotFound) {
		t.Fatalf("error = %v, want agent.ErrNotFound", err)
	}
	if _, err := m.Create("mute", "", nil); !errors.Is(err, ErrVoiceUnsupported) {
		t.Fatalf("error = %v, want ErrVoiceUnsupported", err)
	}
	if m.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after failed creates", m.Count())
	}
}

func TestOfferAnswerStateProgression(t *testing.T) {
	m, _ := testManager()
	s, err := m.Create("julie", "", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	answer, status, err := m.SubmitOffer(s.ID, json.RawMessage(`{"type":"offer","sdp":"v=0"}`))
	if err != nil {
		t.Fatalf("SubmitOffer() error = %v", err)
	}
	if status != StatusAnswerSent {
		t.Fatalf("status after offer = %q, want %q", status, StatusAnswerSent)
	}
	if len(answer) == 0 {
		t.Fatalf("expected synthesized answer")
	}

	status, err = m.SubmitAnswer(s.ID, json.RawMessage(`{"type":"answer","sdp":"remote"}`))
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
	if status != StatusAnswerReceived {
		t.Fatalf("status after answer = %q, want %q", status, StatusAnswerReceived)
	}

	// Resubmitting the answer overwrites without error and without
	// regressing the state.
	status, err = m.SubmitAnswer(s.ID, json.RawMessage(`{"type":"answer","sdp":"remote2"}`))
	if err != nil {
		t.Fatalf("SubmitAnswer() resubmit error = %v", err)
	}
	if status != StatusAnswerReceived {
		t.Fatalf("status after resubmit = %q, want %q", status, StatusAnswerReceived)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Answer) != `{"type":"answer","sdp":"remote2"}` {
		t.Fatalf("Answer = %s, want overwritten payload", got.Answer)
	}
}

func TestOfferDoesNotRegressStatus(t *testing.T) {
	m, _ := testManager()
	s, _ := m.Create("julie", "", nil)

	if _, _, err := m.SubmitOffer(s.ID, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("SubmitOffer() error = %v", err)
	}
	if _, err := m.SubmitAnswer(s.ID, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}

	// A re-offer after the answer overwrites the payload but the lifecycle
	// stays at answer-received.
	_, status, err := m.SubmitOffer(s.ID, json.RawMessage(`{"renegotiate":true}`))
	if err != nil {
		t.Fatalf("SubmitOffer() error = %v", err)
	}
	if status != StatusAnswerReceived {
		t.Fatalf("status = %q, want %q", status, StatusAnswerReceived)
	}
}

func TestAppendCandidateKeepsOrderAndStatus(t *testing.T) {
	m, _ := testManager()
	s, _ := m.Create("julie", "", nil)

	for i := 0; i < 3; i++ {
		count, err := m.AppendCandidate(s.ID, json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i)))
		if err != nil {
			t.Fatalf("AppendCandidate(%d) error = %v", i, err)
		}
		if count != i+1 {
			t.Fatalf("count = %d, want %d", count, i+1)
		}
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusInitiated {
		t.Fatalf("candidates changed status to %q", got.Status)
	}
	for i, c := range got.Candidates {
		if string(c.Payload) != fmt.Sprintf(`{"seq":%d}`, i) {
			t.Fatalf("candidate %d = %s, order not preserved", i, c.Payload)
		}
		if c.ReceivedAt.IsZero() {
			t.Fatalf("candidate %d missing receipt timestamp", i)
		}
	}
}

func TestUnknownSessionErrors(t *testing.T) {
	m, _ := testManager()
	if _, _, err := m.SubmitOffer("nope", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SubmitOffer error = %v, want ErrNotFound", err)
	}
	if _, err := m.SubmitAnswer("nope", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SubmitAnswer error = %v, want ErrNotFound", err)
	}
	if _, err := m.AppendCandidate("nope", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AppendCandidate error = %v, want ErrNotFound", err)
	}
	if err := m.Terminate("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Terminate error = %v, want ErrNotFound", err)
	}
}

func TestTerminateRemovesAndFiresHook(t *testing.T) {
	m, _ := testManager()
	var torn []string
	m.SetRemoveHook(func(id string) { torn = append(torn, id) })

	s, _ := m.Create("julie", "", nil)
	if err := m.Terminate(s.ID); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	if _, err := m.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after terminate error = %v, want ErrNotFound", err)
	}
	if len(torn) != 1 || torn[0] != s.ID {
		t.Fatalf("teardown hook calls = %v, want [%s]", torn, s.ID)
	}
}

func TestProjectionOmitsPayloads(t *testing.T) {
	m, _ := testManager()
	s, _ := m.Create("julie", "u1", nil)
	if _, _, err := m.SubmitOffer(s.ID, json.RawMessage(`{"big":"blob"}`)); err != nil {
		t.Fatalf("SubmitOffer() error = %v", err)
	}

	proj, err := m.Project(s.ID)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if !proj.HasOffer || !proj.HasAnswer {
		t.Fatalf("projection flags wrong: %+v", proj)
	}
	data, err := json.Marshal(proj)
	if err != nil {
		t.Fatalf("marshal projection: %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("bad projection payload: %s", data)
	}
	for _, forbidden := range []string{"blob", "sdp"} {
		if strings.Contains(string(data), forbidden) {
			t.Fatalf("projection leaked payload contents: %s", data)
		}
	}
}

func TestConcurrentCandidatesAndAnswerLoseNothing(t *testing.T) {
	m, _ := testManager()
	s, _ := m.Create("julie", "", nil)

	const candidates = 64
	var wg sync.WaitGroup
	wg.Add(candidates + 1)
	for i := 0; i < candidates; i++ {
		go func(i int) {
			defer wg.Done()
			if _, err := m.AppendCandidate(s.ID, json.RawMessage(fmt.Sprintf(`{"i":%d}`, i))); err != nil {
				t.Errorf("AppendCandidate(%d) error = %v", i, err)
			}
		}(i)
	}
	go func() {
		defer wg.Done()
		if _, err := m.SubmitAnswer(s.ID, json.RawMessage(`{"type":"answer"}`)); err != nil {
			t.Errorf("SubmitAnswer() error = %v", err)
		}
	}()
	wg.Wait()

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Candidates) != candidates {
		t.Fatalf("candidates = %d, want %d (lost update)", len(got.Candidates), candidates)
	}
	if len(got.Answer) == 0 {
		t.Fatalf("answer lost")
	}
}

func TestStageWindowObservesNegotiation(t *testing.T) {
	m, _ := testManager()
	w := observability.NewStageWindow(16)
	m.SetStageWindow(w)

	s, err := m.Create("julie", "", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := m.AppendCandidate(s.ID, json.RawMessage(`{"candidate":"early"}`)); err != nil {
		t.Fatalf("AppendCandidate() error = %v", err)
	}
	if _, _, err := m.SubmitOffer(s.ID, json.RawMessage(`{"type":"offer"}`)); err != nil {
		t.Fatalf("SubmitOffer() error = %v", err)
	}
	if _, _, err := m.SubmitOffer(s.ID, json.RawMessage(`{"type":"offer"}`)); err != nil {
		t.Fatalf("SubmitOffer() resubmit error = %v", err)
	}
	if _, err := m.SubmitAnswer(s.ID, json.RawMessage(`{"type":"answer"}`)); err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}

	snap := w.Snapshot()
	samples := make(map[string]int, len(snap.Stages))
	for _, st := range snap.Stages {
		samples[st.Stage] = st.Samples
	}
	if samples["create_to_offer"] != 1 {
		t.Fatalf("create_to_offer samples = %d, want 1", samples["create_to_offer"])
	}
	if samples["offer_to_answer"] != 1 || samples["negotiation_total"] != 1 {
		t.Fatalf("answer stages = %+v", samples)
	}
	indicators := make(map[string]int, len(snap.Indicators))
	for _, in := range snap.Indicators {
		indicators[in.Name] = in.Count
	}
	if indicators["ice_before_offer"] != 1 {
		t.Fatalf("ice_before_offer = %d, want 1", indicators["ice_before_offer"])
	}
	if indicators["offer_resubmitted"] != 1 {
		t.Fatalf("offer_resubmitted = %d, want 1", indicators["offer_resubmitted"])
	}
}
