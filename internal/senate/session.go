package senate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/curia/internal/event"
	"go.uber.org/zap"
)

// ErrSessionForbidden is returned when the precondition check fails
// before any phase begins.
var ErrSessionForbidden = errors.New("session cannot convene")

// SessionConfig tunes one convened session.
type SessionConfig struct {
	Rounds      int    `json:"rounds"`
	Testing     bool   `json:"testing"`      // disables probabilistic abstention
	TurnBudget  int    `json:"turn_budget"`  // max speeches before sunset; 0 = unlimited
	PresidingID string `json:"presiding_id"` // tie breaker; default highest rank
}

// TopicPhase is the orchestration state of one agenda item.
type TopicPhase string

const (
	TopicAgendaIntroduced TopicPhase = "agenda_introduced"
	TopicDebating         TopicPhase = "debating"
	TopicVoting           TopicPhase = "voting"
	TopicTabulated        TopicPhase = "tabulated"
)

// Session end reasons.
const (
	EndCompleted = "completed"
	EndSunset    = "sunset"
	EndCancelled = "cancelled"
)

// Tally is the tabulated result of one vote. It is created per topic,
// archived into the session result, and never mutated afterward.
type Tally struct {
	Proposal  string                  `json:"proposal"`
	Ballots   map[string]event.Choice `json:"ballots"`
	For       int                     `json:"for"`
	Against   int                     `json:"against"`
	Abstained int                     `json:"abstained"`
	Outcome   string                  `json:"outcome"` // "passed" | "rejected"
	TieBroken bool                    `json:"tie_broken"`
}

// TopicResult archives how one agenda item played out.
type TopicResult struct {
	Topic         Topic      `json:"topic"`
	Phase         TopicPhase `json:"phase"`
	Tally         *Tally     `json:"tally,omitempty"`
	Speeches      int        `json:"speeches"`
	Interjections int        `json:"interjections"`
	Reactions     int        `json:"reactions"`
}

// Result is the append-only record of a convened session.
type Result struct {
	SessionID string        `json:"session_id"`
	Day       time.Time     `json:"day"`
	Topics    []TopicResult `json:"topics"`
	Ended     string        `json:"ended"`
}

/// Orchestrator sequences one session: per topic it introduces the
// agenda, runs debate rounds with interjection windows, holds the vote,
// and tabulates. Members speak in rank order, seniors first.
type Orchestrator struct {
	bus      *event.Bus
	members  []*Member // rank desc, stable
	calendar *Calendar
	cfg      SessionConfig
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator over the given members.
func NewOrchestrator(bus *event.Bus, members []*Member, cal *Calendar, cfg SessionConfig, logger *zap.Logger) *Orchestrator {
	if cfg.Rounds <= 0 {
		cfg.Rounds = 1
	}
	ordered := make([]*Member, len(members))
	copy(ordered, members)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Rank > ordered[j].Rank
	})
	if cfg.PresidingID == "" && len(ordered) > 0 {
		cfg.PresidingID = ordered[0].ID
	}
	return &Orchestrator{
		bus:      bus,
		members:  ordered,
		calendar: cal,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run convenes a session over the given topics. The calendar
// precondition is checked before any phase begins; a forbidden day is
// reported, never thrown mid-flow. A turn-budget or context boundary
// ends the session cleanly between speeches with a session-end event.
func (o *Orchestrator) Run(ctx context.Context, day time.Time, topics []Topic) (*Result, error) {
	if err := o.calendar.CanConvene(day); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionForbidden, err)
	}
	if len(o.members) == 0 {
		return nil, fmt.Errorf("%w: the assembly has no members", ErrSessionForbidden)
	}

	res := &Result{
		SessionID: uuid.New().String(),
		Day:       day,
	}
	o.logger.Info("session convened",
		zap.String("session", res.SessionID),
		zap.Time("day", day),
		zap.Int("topics", len(topics)),
		zap.Int("members", len(o.members)))

	spoken := 0
	for _, topic := range topics {
		tr, reason := o.runTopic(ctx, topic, &spoken)
		res.Topics = append(res.Topics, tr)
		if reason != "" {
			res.Ended = reason
			o.endSession(res)
			return res, nil
		}
	}

	res.Ended = EndCompleted
	o.endSession(res)
	return res, nil
}

// runTopic runs one agenda item. A non-empty returned reason means the
// session boundary was reached and remaining topics must be dropped.
func (o *Orchestrator) runTopic(ctx context.Context, topic Topic, spoken *int) (TopicResult, string) {
	tr := TopicResult{Topic: topic, Phase: TopicAgendaIntroduced}

	for _, m := range o.members {
		m.BeginTopic(topic)
	}

	// Seniors decide first; their stances feed juniors' influence.
	book := make(map[string]event.Stance, len(o.members))
	for _, m := range o.members {
		book[m.ID] = m.DecideStance(ctx, topic, book)
	}

	tr.Phase = TopicDebating
	for round := 1; round <= o.cfg.Rounds; round++ {
		o.bus.Publish(event.DebateStart{
			Base:    event.NewBase("", ""),
			TopicID: topic.ID,
			Topic:   topic.Text,
			Round:   round,
		})

		for _, m := range o.members {
			// The boundary is honored between speeches so no reaction
			// or relationship update is ever half-applied.
			if reason := o.boundaryReached(ctx, *spoken); reason != "" {
				return tr, reason
			}

			speech := m.Speak(ctx, topic)
			o.bus.Publish(speech)
			tr.Speeches++
			*spoken++

			interjected := o.interjectionWindow(speech, &tr)
			o.reactionWindow(speech, interjected, &tr)
		}
	}

	o.bus.Publish(event.DebateEnd{Base: event.NewBase("", ""), TopicID: topic.ID})

	tr.Phase = TopicVoting
	ballots := make(map[string]event.Choice, len(o.members))
	for _, m := range o.members {
		ballots[m.ID] = m.Vote(ctx, topic, o.cfg.Testing)
	}
	o.bus.Publish(event.Vote{
		Base:     event.NewBase("", ""),
		Proposal: topic.Text,
		TopicID:  topic.ID,
		Ballots:  ballots,
	})

	tr.Tally = o.tabulate(topic, ballots)
	tr.Phase = TopicTabulated
	o.logger.Info("topic tabulated",
		zap.String("topic", topic.ID),
		zap.String("outcome", tr.Tally.Outcome),
		zap.Int("for", tr.Tally.For),
		zap.Int("against", tr.Tally.Against),
		zap.Int("abstained", tr.Tally.Abstained))
	return tr, ""
}

// interjectionWindow gives every other member, seniors first, one
// chance to interrupt. At most one interjection per member per speech
// is processed; further attempts are ignored, not errors.
func (o *Orchestrator) interjectionWindow(speech event.Speech, tr *TopicResult) map[string]bool {
	interjected := make(map[string]bool)
	for _, p := range o.members {
		if p.ID == speech.SourceID || interjected[p.ID] {
			continue
		}
		ij := p.ConsiderInterjection(speech)
		if ij == nil {
			continue
		}
		interjected[p.ID] = true
		o.bus.Publish(*ij)
		tr.Interjections++
	}
	return interjected
}

// reactionWindow collects reactions from members who stayed out of the
// interjection window.
func (o *Orchestrator) reactionWindow(speech event.Speech, interjected map[string]bool, tr *TopicResult) {
	for _, p := range o.members {
		if p.ID == speech.SourceID || interjected[p.ID] {
			continue
		}
		r := p.ConsiderReaction(speech)
		if r == nil {
			continue
		}
		o.bus.Publish(*r)
		tr.Reactions++
	}
}

// tabulate counts ballots; a support/oppose tie is broken by the
// presiding member's own ballot.
func (o *Orchestrator) tabulate(topic Topic, ballots map[string]event.Choice) *Tally {
	t := &Tally{Proposal: topic.Text, Ballots: ballots}
	for _, c := range ballots {
		switch c {
		case event.ChoiceSupport:
			t.For++
		case event.ChoiceOppose:
			t.Against++
		default:
			t.Abstained++
		}
	}

	switch {
	case t.For > t.Against:
		t.Outcome = "passed"
	case t.Against > t.For:
		t.Outcome = "rejected"
	default:
		t.TieBroken = true
		if ballots[o.cfg.PresidingID] == event.ChoiceSupport {
			t.Outcome = "passed"
		} else {
			t.Outcome = "rejected"
		}
	}
	return t
}

func (o *Orchestrator) boundaryReached(ctx context.Context, spoken int) string {
	if ctx.Err() != nil {
		return EndCancelled
	}
	if o.cfg.TurnBudget > 0 && spoken >= o.cfg.TurnBudget {
		return EndSunset
	}
	return ""
}

func (o *Orchestrator) endSession(res *Result) {
	o.bus.Publish(event.SessionEnd{
		Base:      event.NewBase("", ""),
		SessionID: res.SessionID,
		Reason:    res.Ended,
	})
	o.logger.Info("session ended",
		zap.String("session", res.SessionID),
		zap.String("reason", res.Ended))
}
