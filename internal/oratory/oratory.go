// Package oratory is the boundary to the content-generation
// collaborator. Implementations produce base stances and speech text;
// every failure degrades to a deterministic default so a session is
// never blocked on content generation.
package oratory

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/nidhogg/curia/internal/event"
)

// Motion is the deliberated proposal as the orator sees it.
type Motion struct {
	ID       string
	Text     string
	Category string
}

// Speaker is the member profile the orator speaks for.
type Speaker struct {
	ID      string
	Name    string
	Faction string
	Rank    int
}

// Orator decides base stances and composes speech text.
type Orator interface {
	// DecideBaseStance returns the speaker's unbiased stance and a
	// short rationale, before relationship influence is applied.
	DecideBaseStance(ctx context.Context, m Motion, s Speaker) (event.Stance, string, error)

	// ComposeSpeech produces the delivered speech text.
	ComposeSpeech(ctx context.Context, m Motion, s Speaker, stance event.Stance) (string, error)

	// BreakNeutral forces a binary support/oppose resolution for a
	// member voting from a neutral stance.
	BreakNeutral(ctx context.Context, m Motion, s Speaker) (event.Stance, error)
}

// DeterministicBinary resolves a neutral stance to support or oppose
// from a stable hash of member and motion, so replays agree.
func DeterministicBinary(memberID, motionID string) event.Stance {
	h := fnv.New32a()
	h.Write([]byte(memberID))
	h.Write([]byte{0})
	h.Write([]byte(motionID))
	if h.Sum32()%2 == 0 {
		return event.StanceSupport
	}
	return event.StanceOppose
}

// Fallback is the deterministic orator used when no provider is
// configured, and the degradation target when a provider fails.
type Fallback struct{}

// DecideBaseStance always returns neutral, the documented safe default.
func (Fallback) DecideBaseStance(_ context.Context, m Motion, _ Speaker) (event.Stance, string, error) {
	return event.StanceNeutral, fmt.Sprintf("undecided on %q", m.Text), nil
}

// ComposeSpeech returns a templated line carrying stance and topic so
// offline transcripts stay readable.
func (Fallback) ComposeSpeech(_ context.Context, m Motion, s Speaker, stance event.Stance) (string, error) {
	switch stance {
	case event.StanceSupport:
		return fmt.Sprintf("%s of %s rises in support of %q.", s.Name, s.Faction, m.Text), nil
	case event.StanceOppose:
		return fmt.Sprintf("%s of %s rises against %q.", s.Name, s.Faction, m.Text), nil
	}
	return fmt.Sprintf("%s of %s reserves judgment on %q.", s.Name, s.Faction, m.Text), nil
}

// BreakNeutral resolves deterministically.
func (Fallback) BreakNeutral(_ context.Context, m Motion, s Speaker) (event.Stance, error) {
	return DeterministicBinary(s.ID, m.ID), nil
}
