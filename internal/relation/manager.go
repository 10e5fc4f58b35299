package relation

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/nidhogg/curia/internal/event"
	"github.com/nidhogg/curia/internal/memory"
	"go.uber.org/zap"
)

// Type classifies a relationship dimension.
type Type string

const (
	Political Type = "political"
	Personal  Type = "personal"
	Mentor    Type = "mentor"
	Rival     Type = "rival"
	Family    Type = "family"
)

// AllTypes lists every relationship type in a fixed order so that
// iteration stays deterministic.
var AllTypes = []Type{Political, Personal, Mentor, Rival, Family}

// Weights allocates the contribution of each type to the overall score.
type Weights map[Type]float64

// DefaultWeights returns the standard allocation.
func DefaultWeights() Weights {
	return Weights{
		Political: 0.30,
		Personal:  0.30,
		Rival:     0.20,
		Mentor:    0.15,
		Family:    0.05,
	}
}

// Validate checks that the weights sum to 1.0.
func (w Weights) Validate() error {
	var sum float64
	for _, v := range w {
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("relationship weights sum to %.6f, want 1.0", sum)
	}
	return nil
}

// Record is the persistable state of one relationship value.
type Record struct {
	OwnerID       string    `json:"owner_id"`
	TargetID      string    `json:"target_id"`
	Type          Type      `json:"rel_type"`
	Value         float64   `json:"value"`
	DecayPerMonth float64   `json:"decay_per_month"`
	LastUpdated   time.Time `json:"last_updated"`
	Context       string    `json:"context"`
	Tags          []string  `json:"tags"`
}

// Config tunes a manager. Weights must sum to 1; decay rates are
// per-month pulls toward neutral.
type Config struct {
	Weights        Weights
	DecayPerMonth  map[Type]float64
	MinDecayMemory float64 // minimum |change| that earns a memory item
}

// DefaultConfig returns the standard manager configuration.
func DefaultConfig() Config {
	return Config{
		Weights: DefaultWeights(),
		DecayPerMonth: map[Type]float64{
			Political: 0.08,
			Personal:  0.04,
			Rival:     0.06,
			Mentor:    0.02,
			Family:    0.01,
		},
		MinDecayMemory: 0.01,
	}
}

// Update deltas applied by the bus handlers.
const (
	speechAgreementDelta        = 0.05
	voteAlignedDelta            = 0.10
	voteOpposedDelta            = 0.08
	reactionPositiveDelta       = 0.05
	reactionNegativeDelta       = 0.03
	interjectSupportPolitical   = 0.08
	interjectSupportPersonal    = 0.05
	interjectChallengePolitical = 0.08
	interjectEmotionalPersonal  = 0.10
)

// StanceSource reports the owner's current stance on a topic, if any.
type StanceSource func(topicID string) (event.Stance, bool)

// Manager owns one member's typed relationship values toward others.
// All values stay in [-1,1]; every change is paired with a memory entry
// and, unless suppressed, a RelationshipChange event on the bus.
type Manager struct {
	ownerID string
	rank    int

	mu     sync.RWMutex
	values map[Type]map[string]*Record

	// speakerOf maps observed speech event IDs to their speaker so
	// reactions at the owner's own speeches can be recognized.
	speakerOf map[string]string

	stanceOf StanceSource
	mem      *memory.Ledger
	bus      *event.Bus
	cfg      Config
	logger   *zap.Logger
}

// NewManager creates a manager and registers its event handlers on the
// bus at the owner's rank priority. bus may be nil for detached use.
func NewManager(ownerID string, rank int, mem *memory.Ledger, bus *event.Bus, cfg Config, logger *zap.Logger) (*Manager, error) {
	if cfg.Weights == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		ownerID:   ownerID,
		rank:      rank,
		values:    make(map[Type]map[string]*Record),
		speakerOf: make(map[string]string),
		mem:       mem,
		bus:       bus,
		cfg:       cfg,
		logger:    logger,
	}
	if bus != nil {
		bus.Subscribe(event.KindSpeech, rank, m.onSpeech)
		bus.Subscribe(event.KindVote, rank, m.onVote)
		bus.Subscribe(event.KindReaction, rank, m.onReaction)
		bus.Subscribe(event.KindInterjection, rank, m.onInterjection)
	}
	return m, nil
}

// SetStanceSource wires the owner's stance lookup used by the speech
// handler.
func (m *Manager) SetStanceSource(src StanceSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stanceOf = src
}

// OwnerID returns the owning member's ID.
func (m *Manager) OwnerID() string { return m.ownerID }

// Get returns the value of one relationship type toward a target.
// Unknown pairs read as 0.
func (m *Manager) Get(targetID string, t Type) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.values[t][targetID]; ok {
		return rec.Value
	}
	return 0
}

// All returns every typed value toward a target as a fresh map.
func (m *Manager) All(targetID string) map[Type]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Type]float64, len(AllTypes))
	for _, t := range AllTypes {
		if rec, ok := m.values[t][targetID]; ok {
			out[t] = rec.Value
		}
	}
	return out
}

// Overall computes the weighted sum of typed values toward a target.
func (m *Manager) Overall(targetID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum float64
	for _, t := range AllTypes {
		if rec, ok := m.values[t][targetID]; ok {
			sum += m.cfg.Weights[t] * rec.Value
		}
	}
	return sum
}

// Update applies a delta and publishes a RelationshipChange event.
func (m *Manager) Update(targetID string, t Type, delta float64, reason, causingEventID string) float64 {
	return m.update(targetID, t, delta, reason, causingEventID, false)
}

// UpdateSilent applies a delta without publishing a change event. The
// paired memory entry is still written.
func (m *Manager) UpdateSilent(targetID string, t Type, delta float64, reason, causingEventID string) float64 {
	return m.update(targetID, t, delta, reason, causingEventID, true)
}

func (m *Manager) update(targetID string, t Type, delta float64, reason, causingEventID string, silent bool) float64 {
	if targetID == m.ownerID {
		return 0
	}

	m.mu.Lock()
	rec := m.record(targetID, t)
	old := rec.Value
	if old < -1 || old > 1 {
		// Out-of-range stored value is an invariant violation; clamp
		// defensively and flag it.
		m.logger.Error("relationship value out of range",
			zap.String("owner", m.ownerID),
			zap.String("target", targetID),
			zap.String("type", string(t)),
			zap.Float64("value", old))
		old = clamp(old)
	}
	rec.Value = clamp(old + delta)
	rec.LastUpdated = time.Now()
	rec.Context = reason
	newValue := rec.Value
	m.mu.Unlock()

	if m.mem != nil {
		importance := math.Min(1, 0.2+math.Abs(delta)*3)
		m.mem.Remember(
			fmt.Sprintf("%s toward %s: %+.3f (%.3f → %.3f) because %s", t, targetID, delta, old, newValue, reason),
			importance, 0.005, causingEventID,
			"relationship", string(t), "about:"+targetID,
		)
	}

	if !silent && m.bus != nil {
		m.bus.Publish(event.RelationshipChange{
			Base:           event.NewBase(m.ownerID, targetID),
			RelType:        string(t),
			OldValue:       old,
			NewValue:       newValue,
			Delta:          newValue - old,
			Reason:         reason,
			CausingEventID: causingEventID,
		})
	}
	return newValue
}

// ApplyDecay pulls every value toward neutral for the elapsed days. A
// step never crosses zero: a sign flip clamps to exactly 0. Memory
// entries are only written for changes above the configured threshold.
// Must not run concurrently with live dispatch for the same member.
func (m *Manager) ApplyDecay(elapsedDays float64) {
	if elapsedDays <= 0 {
		return
	}

	type change struct {
		target   string
		relType  Type
		old, new float64
	}
	var changes []change

	m.mu.Lock()
	for _, t := range AllTypes {
		targets := sortedKeys(m.values[t])
		for _, target := range targets {
			rec := m.values[t][target]
			if rec.Value == 0 {
				continue
			}
			daily := rec.DecayPerMonth / 30.0
			amount := daily * elapsedDays * sign(rec.Value)
			next := rec.Value - amount
			if sign(next) != sign(rec.Value) {
				next = 0
			}
			if next == rec.Value {
				continue
			}
			changes = append(changes, change{target, t, rec.Value, next})
			rec.Value = next
			rec.LastUpdated = time.Now()
		}
	}
	m.mu.Unlock()

	if m.mem == nil {
		return
	}
	for _, c := range changes {
		if math.Abs(c.new-c.old) < m.cfg.MinDecayMemory {
			continue
		}
		m.mem.Remember(
			fmt.Sprintf("%s toward %s faded %.3f → %.3f over %.0f days", c.relType, c.target, c.old, c.new, elapsedDays),
			0.1, 0.005, "",
			"relationship", "decay", string(c.relType), "about:"+c.target,
		)
	}
}

// Snapshot returns all records as copies, ordered by target then type.
func (m *Manager) Snapshot() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, t := range AllTypes {
		for _, target := range sortedKeys(m.values[t]) {
			rec := *m.values[t][target]
			rec.Tags = append([]string(nil), rec.Tags...)
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TargetID != out[j].TargetID {
			return out[i].TargetID < out[j].TargetID
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Restore loads persisted records, replacing any current value for the
// same (target, type) pair.
func (m *Manager) Restore(records []Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if r.OwnerID != "" && r.OwnerID != m.ownerID {
			continue
		}
		r.OwnerID = m.ownerID
		r.Value = clamp(r.Value)
		cp := r
		if m.values[r.Type] == nil {
			m.values[r.Type] = make(map[string]*Record)
		}
		m.values[r.Type][r.TargetID] = &cp
	}
}

// record returns the stored record for (target, type), creating it with
// the configured decay rate. Caller must hold the write lock.
func (m *Manager) record(targetID string, t Type) *Record {
	if m.values[t] == nil {
		m.values[t] = make(map[string]*Record)
	}
	rec, ok := m.values[t][targetID]
	if !ok {
		rec = &Record{
			OwnerID:       m.ownerID,
			TargetID:      targetID,
			Type:          t,
			DecayPerMonth: m.cfg.DecayPerMonth[t],
			LastUpdated:   time.Now(),
			Tags:          []string{"relationship", string(t)},
		}
		m.values[t][targetID] = rec
	}
	return rec
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func sortedKeys(m map[string]*Record) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
