package senate

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nidhogg/curia/internal/event"
	"github.com/nidhogg/curia/internal/memory"
	"github.com/nidhogg/curia/internal/oratory"
	"github.com/nidhogg/curia/internal/relation"
	"go.uber.org/zap"
)

// Topic is one item on the session agenda.
type Topic struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

func (t Topic) motion() oratory.Motion {
	return oratory.Motion{ID: t.ID, Text: t.Text, Category: t.Category}
}

// Profile is a member's fixed identity. Rank determines speaking and
// interruption priority.
type Profile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Faction string `json:"faction"`
	Rank    int    `json:"rank"`
}

// Phase is a member's decision state for the active topic.
type Phase string

const (
	PhaseUncommitted     Phase = "uncommitted"
	PhaseStanceDecided   Phase = "stance_decided"
	PhaseSpeechDelivered Phase = "speech_delivered"
	PhaseVoted           Phase = "voted"
)

// Influence tuning. A peer only sways a member when the overall regard
// passes the floor, and a neutral base stance only flips when the
// accumulated pull clears the swing threshold.
const (
	influenceFloor     = 0.3
	influenceWeight    = 0.2
	swingThreshold     = 0.2
	abstainProbability = 0.2
)

// Interjection triggers.
const (
	interjectAllyFloor  = 0.5
	interjectRivalFloor = -0.4
	interjectGrudge     = -0.5
)

// Member is one autonomous participant. It exclusively owns its memory
// ledger and relationship manager; other members read relationship
// state only through snapshot accessors.
type Member struct {
	Profile

	mem    *memory.Ledger
	rels   *relation.Manager
	bus    *event.Bus
	orator oratory.Orator
	rng    *rand.Rand
	logger *zap.Logger

	mu          sync.Mutex
	topicID     string
	phase       Phase
	stance      event.Stance
	rationale   string
	stanceKnown bool
}

// NewMember creates a member, wires its relationship manager onto the
// bus at rank priority, and subscribes its observation handler.
func NewMember(p Profile, bus *event.Bus, orator oratory.Orator, relCfg relation.Config, logger *zap.Logger) (*Member, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("member requires an id")
	}
	if orator == nil {
		orator = oratory.Fallback{}
	}

	mem := memory.NewLedger(p.ID, logger)
	rels, err := relation.NewManager(p.ID, p.Rank, mem, bus, relCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("member %s: %w", p.ID, err)
	}

	m := &Member{
		Profile: p,
		mem:     mem,
		rels:    rels,
		bus:     bus,
		orator:  orator,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  logger,
		phase:   PhaseUncommitted,
		stance:  event.StanceNeutral,
	}
	rels.SetStanceSource(m.stanceOn)
	if bus != nil {
		bus.SubscribeAll(p.Rank, m.observe)
	}
	return m, nil
}

// observe records every event the member witnesses.
func (m *Member) observe(ev event.Event) error {
	m.mem.Record(ev)
	return nil
}

// BeginTopic resets the decision pipeline for a new topic.
func (m *Member) BeginTopic(t Topic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topicID = t.ID
	m.phase = PhaseUncommitted
	m.stance = event.StanceNeutral
	m.rationale = ""
	m.stanceKnown = false
}

// CurrentPhase returns the current decision phase.
func (m *Member) CurrentPhase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Stance returns the member's stance on the active topic, if decided.
func (m *Member) Stance(topicID string) (event.Stance, bool) {
	return m.stanceOn(topicID)
}

func (m *Member) stanceOn(topicID string) (event.Stance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.topicID == topicID && m.stanceKnown {
		return m.stance, true
	}
	return event.StanceNeutral, false
}

// DecideStance computes the base stance through the orator, applies
// relationship influence from peers with known stances, and caches the
// result. Calling again for the same topic returns the cached stance.
func (m *Member) DecideStance(ctx context.Context, t Topic, peers map[string]event.Stance) event.Stance {
	m.mu.Lock()
	if m.topicID == t.ID && m.stanceKnown {
		cached := m.stance
		m.mu.Unlock()
		return cached
	}
	m.mu.Unlock()

	base, rationale, err := m.orator.DecideBaseStance(ctx, t.motion(), m.speaker())
	if err != nil {
		m.logger.Warn("base stance failed, defaulting to neutral",
			zap.String("member", m.ID), zap.Error(err))
		base, rationale = event.StanceNeutral, "no position reached"
	}

	influence, contributors := m.accumulateInfluence(t, peers)

	final := base
	if base == event.StanceNeutral && math.Abs(influence) > swingThreshold {
		if influence > 0 {
			final = event.StanceSupport
		} else {
			final = event.StanceOppose
		}
		m.mem.Remember(
			fmt.Sprintf("swayed from neutral to %s on %q by %s (influence %+.3f)",
				final, t.Text, strings.Join(contributors, ", "), influence),
			0.6, 0.01, "",
			"stance_swing", "topic:"+t.ID,
		)
		m.logger.Debug("stance swung by relationships",
			zap.String("member", m.ID),
			zap.String("topic", t.ID),
			zap.Float64("influence", influence))
	}

	m.mu.Lock()
	m.topicID = t.ID
	m.stance = final
	m.rationale = rationale
	m.stanceKnown = true
	m.phase = PhaseStanceDecided
	m.mu.Unlock()
	return final
}

// accumulateInfluence sums the pull of peers whose overall regard
// passes the floor, signed by their stance direction.
func (m *Member) accumulateInfluence(t Topic, peers map[string]event.Stance) (float64, []string) {
	ids := make([]string, 0, len(peers))
	for id := range peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var influence float64
	var contributors []string
	for _, id := range ids {
		if id == m.ID {
			continue
		}
		st := peers[id]
		if st == event.StanceNeutral {
			continue
		}
		overall := m.rels.Overall(id)
		if math.Abs(overall) <= influenceFloor {
			continue
		}
		influence += overall * influenceWeight * st.Sign()
		contributors = append(contributors, id)
	}
	return influence, contributors
}

// Speak composes and returns the member's speech event for the active
// topic. The caller publishes it. Decides a stance first if needed.
func (m *Member) Speak(ctx context.Context, t Topic) event.Speech {
	stance, known := m.stanceOn(t.ID)
	if !known {
		stance = m.DecideStance(ctx, t, nil)
	}

	text, err := m.orator.ComposeSpeech(ctx, t.motion(), m.speaker(), stance)
	if err != nil {
		m.logger.Warn("speech composition failed, using template",
			zap.String("member", m.ID), zap.Error(err))
		text, _ = oratory.Fallback{}.ComposeSpeech(ctx, t.motion(), m.speaker(), stance)
	}

	m.mu.Lock()
	m.phase = PhaseSpeechDelivered
	m.mu.Unlock()

	return event.Speech{
		Base:    event.NewBase(m.ID, ""),
		TopicID: t.ID,
		Topic:   t.Text,
		Stance:  stance,
		Content: text,
	}
}

// Vote resolves the member's ballot. A neutral stance is forced to a
// binary choice through the orator; with testing=false a weakly held
// neutral position may abstain instead. testing=true disables that
// randomness so identical inputs always yield identical votes.
func (m *Member) Vote(ctx context.Context, t Topic, testing bool) event.Choice {
	stance, known := m.stanceOn(t.ID)
	if !known {
		stance = m.DecideStance(ctx, t, nil)
	}

	if stance == event.StanceNeutral {
		if !testing && m.rng.Float64() < abstainProbability {
			m.setPhase(PhaseVoted)
			return event.ChoiceAbstain
		}
		resolved, err := m.orator.BreakNeutral(ctx, t.motion(), m.speaker())
		if err != nil || resolved == event.StanceNeutral {
			resolved = oratory.DeterministicBinary(m.ID, t.ID)
		}
		stance = resolved
	}

	m.setPhase(PhaseVoted)
	if stance == event.StanceSupport {
		return event.ChoiceSupport
	}
	return event.ChoiceOppose
}

// ConsiderInterjection decides deterministically whether to interrupt
// the given speech. Returns nil when the member stays silent.
func (m *Member) ConsiderInterjection(speech event.Speech) *event.Interjection {
	if speech.SourceID == m.ID {
		return nil
	}
	overall := m.rels.Overall(speech.SourceID)
	personal := m.rels.Get(speech.SourceID, relation.Personal)
	own, known := m.stanceOn(speech.TopicID)

	agreeing := known && own != event.StanceNeutral &&
		speech.Stance != event.StanceNeutral && own == speech.Stance
	opposing := known && own != event.StanceNeutral &&
		speech.Stance != event.StanceNeutral && own != speech.Stance

	switch {
	case overall > interjectAllyFloor && agreeing:
		return m.interjection(speech.SourceID, event.InterjectSupport, overall)
	case overall < interjectRivalFloor && opposing:
		return m.interjection(speech.SourceID, event.InterjectChallenge, -overall)
	case personal < interjectGrudge:
		return m.interjection(speech.SourceID, event.InterjectEmotional, -personal)
	}
	return nil
}

func (m *Member) interjection(target string, kind event.InterjectionKind, intensity float64) *event.Interjection {
	if intensity > 1 {
		intensity = 1
	}
	if intensity < 0 {
		intensity = 0
	}
	return &event.Interjection{
		Base:         event.NewBase(m.ID, target),
		Interjection: kind,
		Intensity:    intensity,
	}
}

// ConsiderReaction decides whether to visibly react to a speech the
// member did not interrupt. Agreement earns approval, disagreement
// disapproval; neutral positions stay quiet.
func (m *Member) ConsiderReaction(speech event.Speech) *event.Reaction {
	if speech.SourceID == m.ID || speech.Stance == event.StanceNeutral {
		return nil
	}
	own, known := m.stanceOn(speech.TopicID)
	if !known || own == event.StanceNeutral {
		return nil
	}

	kind := event.ReactionPositive
	if own != speech.Stance {
		kind = event.ReactionNegative
	}
	return &event.Reaction{
		Base:          event.NewBase(m.ID, speech.SourceID),
		TargetEventID: speech.EventID,
		Reaction:      kind,
	}
}

// RelationSnapshot returns a copy of all relationship records.
func (m *Member) RelationSnapshot() []relation.Record {
	return m.rels.Snapshot()
}

// OverallRegard returns the weighted overall value toward a target.
func (m *Member) OverallRegard(targetID string) float64 {
	return m.rels.Overall(targetID)
}

// Relations exposes the owned relationship manager. Only the owning
// member may mutate through it; everyone else uses RelationSnapshot.
func (m *Member) Relations() *relation.Manager { return m.rels }

// Memory exposes the owned memory ledger.
func (m *Member) Memory() *memory.Ledger { return m.mem }

func (m *Member) speaker() oratory.Speaker {
	return oratory.Speaker{ID: m.ID, Name: m.Name, Faction: m.Faction, Rank: m.Rank}
}

func (m *Member) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}
