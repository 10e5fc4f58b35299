package senate

import (
	"context"
	"testing"

	"github.com/nidhogg/curia/internal/event"
	"github.com/nidhogg/curia/internal/memory"
	"github.com/nidhogg/curia/internal/oratory"
	"github.com/nidhogg/curia/internal/relation"
	"go.uber.org/zap"
)

func newTestMember(t *testing.T, id string, rank int) *Member {
	t.Helper()
	m, err := NewMember(Profile{ID: id, Name: id, Faction: "test", Rank: rank},
		nil, oratory.Fallback{}, relation.DefaultConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("new member %s: %v", id, err)
	}
	return m
}

// regardRecords builds relationship records that put the overall regard
// toward target at 0.8 (political, personal, mentor and family maxed).
func regardRecords(target string) []relation.Record {
	return []relation.Record{
		{TargetID: target, Type: relation.Political, Value: 1},
		{TargetID: target, Type: relation.Personal, Value: 1},
		{TargetID: target, Type: relation.Mentor, Value: 1},
		{TargetID: target, Type: relation.Family, Value: 1},
	}
}

var agenda = Topic{ID: "t1", Text: "the grain dole", Category: "fiscal"}

// One admired peer at 0.8 regard contributes 0.16 of influence, short
// of the swing threshold: the member stays neutral.
func TestSingleAdmiredPeerDoesNotSwing(t *testing.T) {
	m := newTestMember(t, "cato", 5)
	m.Relations().Restore(regardRecords("mentor1"))

	m.BeginTopic(agenda)
	got := m.DecideStance(context.Background(), agenda, map[string]event.Stance{
		"mentor1": event.StanceSupport,
	})

	if got != event.StanceNeutral {
		t.Errorf("expected neutral with influence below threshold, got %s", got)
	}
	if m.CurrentPhase() != PhaseStanceDecided {
		t.Errorf("expected stance_decided, got %s", m.CurrentPhase())
	}
}

func TestTwoAdmiredPeersSwingNeutral(t *testing.T) {
	m := newTestMember(t, "cato", 5)
	m.Relations().Restore(regardRecords("mentor1"))
	m.Relations().Restore(regardRecords("mentor2"))

	m.BeginTopic(agenda)
	got := m.DecideStance(context.Background(), agenda, map[string]event.Stance{
		"mentor1": event.StanceSupport,
		"mentor2": event.StanceSupport,
	})

	if got != event.StanceSupport {
		t.Errorf("expected swing to support, got %s", got)
	}

	swings := m.Memory().Query(memory.Query{Tags: []string{"stance_swing", "topic:t1"}})
	if len(swings) != 1 {
		t.Fatalf("expected 1 stance swing memory, got %d", len(swings))
	}
}

func TestPeersBelowInfluenceFloorAreIgnored(t *testing.T) {
	m := newTestMember(t, "cato", 5)
	// Political 1.0 alone puts the overall at exactly the floor, which
	// is not strictly above it.
	m.Relations().Restore([]relation.Record{
		{TargetID: "p1", Type: relation.Political, Value: 1},
	})
	m.Relations().Restore([]relation.Record{
		{TargetID: "p2", Type: relation.Political, Value: 1},
	})

	m.BeginTopic(agenda)
	got := m.DecideStance(context.Background(), agenda, map[string]event.Stance{
		"p1": event.StanceSupport,
		"p2": event.StanceSupport,
	})

	if got != event.StanceNeutral {
		t.Errorf("expected neutral when regard sits at the floor, got %s", got)
	}
}

func TestDecideStanceIsIdempotent(t *testing.T) {
	m := newTestMember(t, "cato", 5)
	m.Relations().Restore(regardRecords("mentor1"))
	m.Relations().Restore(regardRecords("mentor2"))

	m.BeginTopic(agenda)
	first := m.DecideStance(context.Background(), agenda, map[string]event.Stance{
		"mentor1": event.StanceSupport,
		"mentor2": event.StanceSupport,
	})

	// A second call with different peers returns the cached stance.
	second := m.DecideStance(context.Background(), agenda, map[string]event.Stance{
		"mentor1": event.StanceOppose,
		"mentor2": event.StanceOppose,
	})
	if first != second {
		t.Errorf("expected cached stance %s, got %s", first, second)
	}
}

func TestVoteNeutralResolvesDeterministically(t *testing.T) {
	want := oratory.DeterministicBinary("cato", "t1")
	wantChoice := event.ChoiceOppose
	if want == event.StanceSupport {
		wantChoice = event.ChoiceSupport
	}

	for i := 0; i < 20; i++ {
		m := newTestMember(t, "cato", 5)
		m.BeginTopic(agenda)
		got := m.Vote(context.Background(), agenda, true)
		if got != wantChoice {
			t.Fatalf("run %d: expected %s, got %s", i, wantChoice, got)
		}
		if m.CurrentPhase() != PhaseVoted {
			t.Errorf("expected voted phase, got %s", m.CurrentPhase())
		}
	}
}

func TestSpeakCarriesStanceAndTopic(t *testing.T) {
	m := newTestMember(t, "cato", 5)
	m.BeginTopic(agenda)

	speech := m.Speak(context.Background(), agenda)
	if speech.SourceID != "cato" {
		t.Errorf("expected speaker cato, got %s", speech.SourceID)
	}
	if speech.TopicID != "t1" || speech.Topic != agenda.Text {
		t.Errorf("unexpected topic fields: %+v", speech)
	}
	if speech.Content == "" {
		t.Error("expected non-empty speech text")
	}
	if m.CurrentPhase() != PhaseSpeechDelivered {
		t.Errorf("expected speech_delivered, got %s", m.CurrentPhase())
	}
}

func swingToSupport(t *testing.T, m *Member) {
	t.Helper()
	m.Relations().Restore(regardRecords("mentor1"))
	m.Relations().Restore(regardRecords("mentor2"))
	m.BeginTopic(agenda)
	got := m.DecideStance(context.Background(), agenda, map[string]event.Stance{
		"mentor1": event.StanceSupport,
		"mentor2": event.StanceSupport,
	})
	if got != event.StanceSupport {
		t.Fatalf("setup: expected support stance, got %s", got)
	}
}

func TestConsiderInterjectionSupportsAdmiredAlly(t *testing.T) {
	m := newTestMember(t, "cato", 5)
	swingToSupport(t, m)

	speech := event.Speech{
		Base:    event.NewBase("mentor1", ""),
		TopicID: "t1",
		Topic:   agenda.Text,
		Stance:  event.StanceSupport,
	}
	ij := m.ConsiderInterjection(speech)
	if ij == nil {
		t.Fatal("expected a support interjection")
	}
	if ij.Interjection != event.InterjectSupport {
		t.Errorf("expected support, got %s", ij.Interjection)
	}
	if ij.TargetID != "mentor1" {
		t.Errorf("expected target mentor1, got %s", ij.TargetID)
	}
	if ij.Intensity <= 0 || ij.Intensity > 1 {
		t.Errorf("expected intensity in (0,1], got %f", ij.Intensity)
	}
}

func TestConsiderInterjectionChallengesDespisedOpponent(t *testing.T) {
	m := newTestMember(t, "cato", 5)
	swingToSupport(t, m)
	m.Relations().Restore([]relation.Record{
		{TargetID: "enemy", Type: relation.Political, Value: -1},
		{TargetID: "enemy", Type: relation.Personal, Value: -1},
	})

	speech := event.Speech{
		Base:    event.NewBase("enemy", ""),
		TopicID: "t1",
		Topic:   agenda.Text,
		Stance:  event.StanceOppose,
	}
	ij := m.ConsiderInterjection(speech)
	if ij == nil {
		t.Fatal("expected a challenge interjection")
	}
	if ij.Interjection != event.InterjectChallenge {
		t.Errorf("expected challenge, got %s", ij.Interjection)
	}
}

func TestConsiderInterjectionEmotionalOnGrudge(t *testing.T) {
	m := newTestMember(t, "cato", 5)
	m.Relations().Restore([]relation.Record{
		{TargetID: "rival", Type: relation.Personal, Value: -0.8},
	})

	speech := event.Speech{
		Base:    event.NewBase("rival", ""),
		TopicID: "t1",
		Topic:   agenda.Text,
		Stance:  event.StanceNeutral,
	}
	ij := m.ConsiderInterjection(speech)
	if ij == nil {
		t.Fatal("expected an emotional interjection")
	}
	if ij.Interjection != event.InterjectEmotional {
		t.Errorf("expected emotional, got %s", ij.Interjection)
	}
}

func TestConsiderInterjectionStaysSilentByDefault(t *testing.T) {
	m := newTestMember(t, "cato", 5)
	m.BeginTopic(agenda)

	speech := event.Speech{
		Base:    event.NewBase("stranger", ""),
		TopicID: "t1",
		Topic:   agenda.Text,
		Stance:  event.StanceSupport,
	}
	if ij := m.ConsiderInterjection(speech); ij != nil {
		t.Errorf("expected silence toward a stranger, got %s", ij.Interjection)
	}
}

func TestConsiderReaction(t *testing.T) {
	m := newTestMember(t, "cato", 5)
	swingToSupport(t, m)

	agree := event.Speech{
		Base: event.NewBase("b", ""), TopicID: "t1", Topic: agenda.Text,
		Stance: event.StanceSupport,
	}
	r := m.ConsiderReaction(agree)
	if r == nil || r.Reaction != event.ReactionPositive {
		t.Errorf("expected positive reaction to agreement, got %+v", r)
	}
	if r != nil && r.TargetEventID != agree.EventID {
		t.Errorf("expected reaction to reference the speech, got %s", r.TargetEventID)
	}

	disagree := event.Speech{
		Base: event.NewBase("b", ""), TopicID: "t1", Topic: agenda.Text,
		Stance: event.StanceOppose,
	}
	if r := m.ConsiderReaction(disagree); r == nil || r.Reaction != event.ReactionNegative {
		t.Errorf("expected negative reaction to disagreement, got %+v", r)
	}

	neutral := event.Speech{
		Base: event.NewBase("b", ""), TopicID: "t1", Topic: agenda.Text,
		Stance: event.StanceNeutral,
	}
	if r := m.ConsiderReaction(neutral); r != nil {
		t.Errorf("expected no reaction to a neutral speech, got %+v", r)
	}

	own := event.Speech{
		Base: event.NewBase("cato", ""), TopicID: "t1", Topic: agenda.Text,
		Stance: event.StanceSupport,
	}
	if r := m.ConsiderReaction(own); r != nil {
		t.Error("expected no reaction to own speech")
	}
}
