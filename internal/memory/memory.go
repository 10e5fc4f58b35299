package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/curia/internal/event"
	"go.uber.org/zap"
)

// DefaultThreshold is the importance floor below which items are
// excluded from retrieval. Items are never force-deleted.
const DefaultThreshold = 0.05

// defaultDecayRate is the per-day importance loss for items that do not
// specify their own rate.
const defaultDecayRate = 0.01

// Item is a single remembered observation.
type Item struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Content    string    `json:"content"`
	EventID    string    `json:"event_id,omitempty"`
	Importance float64   `json:"importance"` // [0,1]
	DecayRate  float64   `json:"decay_rate"` // importance lost per day
	Tags       []string  `json:"tags"`
}

// Query selects items by tag set (AND semantics). Limit <= 0 means no
// limit. A zero MinImportance applies the default retrieval threshold;
// a negative value disables the floor entirely.
type Query struct {
	Tags          []string
	Limit         int
	MinImportance float64
}

/// Ledger is one member's memory store. Mutation is single-writer: only
// the owning member records or decays; readers get copies.
type Ledger struct {
	ownerID      string
	mu           sync.RWMutex
	items        []Item
	observations []string
	logger       *zap.Logger
}

// NewLedger creates an empty memory ledger for a member.
func NewLedger(ownerID string, logger *zap.Logger) *Ledger {
	return &Ledger{ownerID: ownerID, logger: logger}
}

// OwnerID returns the owning member's ID.
func (l *Ledger) OwnerID() string { return l.ownerID }

// Record stores an observed event as a memory item and appends a coarse
// observation string for textual recall.
func (l *Ledger) Record(ev event.Event) Item {
	content, importance, tags := describe(ev)
	item := Item{
		ID:         uuid.New().String(),
		Timestamp:  ev.Timestamp(),
		Content:    content,
		EventID:    ev.ID(),
		Importance: importance,
		DecayRate:  defaultDecayRate,
		Tags:       tags,
	}

	l.mu.Lock()
	l.items = append(l.items, item)
	l.observations = append(l.observations, content)
	l.mu.Unlock()
	return item
}

// Remember stores a free-text memory, used for relationship audit
// entries and stance-swing records. eventID links the causing event and
// may be empty.
func (l *Ledger) Remember(content string, importance, decayRate float64, eventID string, tags ...string) Item {
	if decayRate <= 0 {
		decayRate = defaultDecayRate
	}
	item := Item{
		ID:         uuid.New().String(),
		Timestamp:  time.Now(),
		Content:    content,
		EventID:    eventID,
		Importance: clamp01(importance),
		DecayRate:  decayRate,
		Tags:       tags,
	}

	l.mu.Lock()
	l.items = append(l.items, item)
	l.observations = append(l.observations, content)
	l.mu.Unlock()
	return item
}

// Restore loads persisted items without generating observations.
func (l *Ledger) Restore(items []Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, items...)
}

// Query returns matching items newest-first.
func (l *Ledger) Query(q Query) []Item {
	min := q.MinImportance
	if min == 0 {
		min = DefaultThreshold
	} else if min < 0 {
		min = 0
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Item
	for i := len(l.items) - 1; i >= 0; i-- {
		item := l.items[i]
		if item.Importance < min {
			continue
		}
		if !hasAllTags(item.Tags, q.Tags) {
			continue
		}
		out = append(out, item)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// Decay reduces each item's importance by its own rate times elapsed
// days. Items falling below the retrieval threshold stay stored but
// drop out of default queries. Returns the number of items touched.
func (l *Ledger) Decay(elapsedDays float64) int {
	if elapsedDays <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	touched := 0
	for i := range l.items {
		if l.items[i].Importance <= 0 {
			continue
		}
		l.items[i].Importance -= l.items[i].DecayRate * elapsedDays
		if l.items[i].Importance < 0 {
			l.items[i].Importance = 0
		}
		touched++
	}
	return touched
}

// Observations returns the most recent textual observations, oldest
// first within the returned window.
func (l *Ledger) Observations(limit int) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 || limit > len(l.observations) {
		limit = len(l.observations)
	}
	out := make([]string, limit)
	copy(out, l.observations[len(l.observations)-limit:])
	return out
}

// Items returns a snapshot copy of everything stored.
func (l *Ledger) Items() []Item {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

// describe turns an event into memory content, base importance, and tags.
func describe(ev event.Event) (string, float64, []string) {
	tags := []string{string(ev.Kind())}
	if ev.Source() != "" {
		tags = append(tags, "from:"+ev.Source())
	}
	if ev.Target() != "" {
		tags = append(tags, "to:"+ev.Target())
	}

	switch e := ev.(type) {
	case event.Speech:
		tags = append(tags, "topic:"+e.TopicID)
		return fmt.Sprintf("%s spoke %s on %q", e.SourceID, e.Stance, e.Topic), 0.4, tags
	case event.Vote:
		tags = append(tags, "topic:"+e.TopicID)
		return fmt.Sprintf("vote held on %q with %d ballots", e.Proposal, len(e.Ballots)), 0.6, tags
	case event.Reaction:
		return fmt.Sprintf("%s reacted %s to speech %s", e.SourceID, e.Reaction, e.TargetEventID), 0.2, tags
	case event.Interjection:
		return fmt.Sprintf("%s interjected (%s) against %s", e.SourceID, e.Interjection, e.TargetID), 0.3 + 0.2*e.Intensity, tags
	case event.RelationshipChange:
		tags = append(tags, "relationship", string(event.KindRelationshipChange))
		return fmt.Sprintf("relationship %s of %s toward %s moved %.3f", e.RelType, e.SourceID, e.TargetID, e.Delta), 0.2, tags
	case event.DebateStart:
		tags = append(tags, "topic:"+e.TopicID)
		return fmt.Sprintf("debate round %d opened on %q", e.Round, e.Topic), 0.1, tags
	case event.DebateEnd:
		tags = append(tags, "topic:"+e.TopicID)
		return fmt.Sprintf("debate closed on topic %s", e.TopicID), 0.1, tags
	case event.SessionEnd:
		return fmt.Sprintf("session %s ended: %s", e.SessionID, e.Reason), 0.3, tags
	}
	return fmt.Sprintf("observed %s event %s", ev.Kind(), ev.ID()), 0.1, tags
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
