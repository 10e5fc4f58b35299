package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the wire-level event type identifier used for subscriptions.
type Kind string

const (
	KindSpeech             Kind = "speech"
	KindVote               Kind = "vote"
	KindReaction           Kind = "reaction"
	KindInterjection       Kind = "interjection"
	KindRelationshipChange Kind = "relationship_change"
	KindDebateStart        Kind = "debate_start"
	KindDebateEnd          Kind = "debate_end"
	KindSessionEnd         Kind = "session_end"
)

// Stance is a member's position on a topic.
type Stance string

const (
	StanceSupport Stance = "support"
	StanceOppose  Stance = "oppose"
	StanceNeutral Stance = "neutral"
)

// Sign maps a stance to +1/-1 for influence arithmetic; neutral is 0.
func (s Stance) Sign() float64 {
	switch s {
	case StanceSupport:
		return 1
	case StanceOppose:
		return -1
	}
	return 0
}

// Choice is a ballot entry in a vote.
type Choice string

const (
	ChoiceSupport Choice = "support"
	ChoiceOppose  Choice = "oppose"
	ChoiceAbstain Choice = "abstain"
)

// ReactionKind classifies a reaction to a prior speech.
type ReactionKind string

const (
	ReactionPositive ReactionKind = "positive"
	ReactionNegative ReactionKind = "negative"
)

// InterjectionKind classifies an interruption of an in-progress speech.
type InterjectionKind string

const (
	InterjectSupport   InterjectionKind = "support"
	InterjectChallenge InterjectionKind = "challenge"
	InterjectEmotional InterjectionKind = "emotional"
)

// Event is an immutable record flowing through the bus. Source and
// Target are member IDs; either may be empty for system events.
type Event interface {
	ID() string
	Kind() Kind
	Timestamp() time.Time
	Source() string
	Target() string
}

// Base carries the fields shared by every event variant.
type Base struct {
	EventID  string    `json:"id"`
	At       time.Time `json:"at"`
	SourceID string    `json:"source,omitempty"`
	TargetID string    `json:"target,omitempty"`
}

func (b Base) ID() string           { return b.EventID }
func (b Base) Timestamp() time.Time { return b.At }
func (b Base) Source() string       { return b.SourceID }
func (b Base) Target() string       { return b.TargetID }

// NewBase allocates a base with a fresh ID and the current time.
func NewBase(source, target string) Base {
	return Base{
		EventID:  uuid.New().String(),
		At:       time.Now(),
		SourceID: source,
		TargetID: target,
	}
}

// Speech is one member's delivered speech on a topic.
type Speech struct {
	Base
	TopicID string `json:"topic_id"`
	Topic   string `json:"topic"`
	Stance  Stance `json:"stance"`
	Content string `json:"content"`
}

func (Speech) Kind() Kind { return KindSpeech }

// Reaction is a member's response to a prior speech event.
type Reaction struct {
	Base
	TargetEventID string       `json:"target_event_id"`
	Reaction      ReactionKind `json:"reaction"`
}

func (Reaction) Kind() Kind { return KindReaction }

// Interjection is a bounded interruption aimed at the current speaker.
// Target is the interrupted member; Intensity is in [0,1].
type Interjection struct {
	Base
	Interjection InterjectionKind `json:"interjection"`
	Intensity    float64          `json:"intensity"`
}

func (Interjection) Kind() Kind { return KindInterjection }

// Vote carries the full ballot map for one proposal.
type Vote struct {
	Base
	Proposal string            `json:"proposal"`
	TopicID  string            `json:"topic_id"`
	Ballots  map[string]Choice `json:"ballots"`
}

func (Vote) Kind() Kind { return KindVote }

// RelationshipChange is published whenever a relationship value moves.
// Source is the owning member, Target the other party.
type RelationshipChange struct {
	Base
	RelType        string  `json:"rel_type"`
	OldValue       float64 `json:"old_value"`
	NewValue       float64 `json:"new_value"`
	Delta          float64 `json:"delta"`
	Reason         string  `json:"reason"`
	CausingEventID string  `json:"causing_event_id,omitempty"`
}

func (RelationshipChange) Kind() Kind { return KindRelationshipChange }

// DebateStart opens a debate round on a topic.
type DebateStart struct {
	Base
	TopicID string `json:"topic_id"`
	Topic   string `json:"topic"`
	Round   int    `json:"round"`
}

func (DebateStart) Kind() Kind { return KindDebateStart }

// DebateEnd closes the debate on a topic.
type DebateEnd struct {
	Base
	TopicID string `json:"topic_id"`
}

func (DebateEnd) Kind() Kind { return KindDebateEnd }

// SessionEnd marks the session boundary, whether completed or cut short.
type SessionEnd struct {
	Base
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"` // "completed" | "sunset" | "cancelled"
}

func (SessionEnd) Kind() Kind { return KindSessionEnd }
