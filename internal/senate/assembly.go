package senate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nidhogg/curia/internal/event"
	"github.com/nidhogg/curia/internal/oratory"
	"github.com/nidhogg/curia/internal/relation"
	"go.uber.org/zap"
)

// Assembly owns the roster and the append-only session history. It
// serializes sessions and decay sweeps: live dispatch and decay never
// run concurrently for the same members.
type Assembly struct {
	bus      *event.Bus
	calendar *Calendar
	orator   oratory.Orator
	relCfg   relation.Config
	logger   *zap.Logger

	mu      sync.Mutex
	members []*Member
	byID    map[string]*Member
	history []*Result
}

// NewAssembly creates an empty assembly.
func NewAssembly(bus *event.Bus, cal *Calendar, orator oratory.Orator, relCfg relation.Config, logger *zap.Logger) *Assembly {
	return &Assembly{
		bus:      bus,
		calendar: cal,
		orator:   orator,
		relCfg:   relCfg,
		logger:   logger,
		byID:     make(map[string]*Member),
	}
}

// AddMember registers a new member on the roster.
func (a *Assembly) AddMember(p Profile) (*Member, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.byID[p.ID]; exists {
		return nil, fmt.Errorf("member %s already on the roster", p.ID)
	}
	m, err := NewMember(p, a.bus, a.orator, a.relCfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.members = append(a.members, m)
	a.byID[p.ID] = m
	a.logger.Info("member joined the roster",
		zap.String("id", p.ID),
		zap.String("name", p.Name),
		zap.String("faction", p.Faction),
		zap.Int("rank", p.Rank))
	return m, nil
}

// Member returns a roster member by ID.
func (a *Assembly) Member(id string) (*Member, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.byID[id]
	return m, ok
}

// Members returns the roster in insertion order.
func (a *Assembly) Members() []*Member {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Member, len(a.members))
	copy(out, a.members)
	return out
}

// SeedFactions initializes political alignment: members of the same
// faction start at sameDelta toward each other, different factions at
// otherDelta. Seeding is silent: no change events, no bus traffic.
func (a *Assembly) SeedFactions(sameDelta, otherDelta float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range a.members {
		for _, other := range a.members {
			if m.ID == other.ID {
				continue
			}
			delta := otherDelta
			reason := fmt.Sprintf("opposing faction %s", other.Faction)
			if m.Faction == other.Faction {
				delta = sameDelta
				reason = fmt.Sprintf("shared faction %s", m.Faction)
			}
			if delta != 0 {
				m.Relations().UpdateSilent(other.ID, relation.Political, delta, reason, "")
			}
		}
	}
}

// Convene runs one session and archives the result. It holds the
// assembly lock for the whole session: one logical timeline.
func (a *Assembly) Convene(ctx context.Context, day time.Time, topics []Topic, cfg SessionConfig) (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	orch := NewOrchestrator(a.bus, a.members, a.calendar, cfg, a.logger)
	res, err := orch.Run(ctx, day, topics)
	if err != nil {
		return nil, err
	}
	a.history = append(a.history, res)
	return res, nil
}

// AdvanceDays applies memory and relationship decay to every member.
// Invoked between sessions; the lock keeps it out of live dispatch.
func (a *Assembly) AdvanceDays(days float64) {
	if days <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range a.members {
		m.Relations().ApplyDecay(days)
		m.Memory().Decay(days)
	}
	a.logger.Info("decay applied", zap.Float64("days", days), zap.Int("members", len(a.members)))
}

// History returns the archived session results, oldest first.
func (a *Assembly) History() []*Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Result, len(a.history))
	copy(out, a.history)
	return out
}
