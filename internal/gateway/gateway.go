// Package gateway streams a human-readable session transcript to chat
// platforms. Sinks are outbound only; the assembly never takes input
// from them.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nidhogg/curia/internal/event"
	"go.uber.org/zap"
)

// observerPriority keeps the transcriber behind every member handler.
const observerPriority = -1 << 20

// TranscriptSink delivers one transcript line to a platform channel.
type TranscriptSink interface {
	Platform() string
	Post(ctx context.Context, line string) error
	Close() error
}

// Transcriber formats bus events into transcript lines and fans them
// out to every registered sink.
type Transcriber struct {
	sinks  map[string]TranscriptSink
	names  func(memberID string) string
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewTranscriber creates a transcriber. names resolves member IDs to
// display names; pass nil to print raw IDs.
func NewTranscriber(names func(string) string, logger *zap.Logger) *Transcriber {
	if names == nil {
		names = func(id string) string { return id }
	}
	return &Transcriber{
		sinks:  make(map[string]TranscriptSink),
		names:  names,
		logger: logger,
	}
}

// Register adds a sink. A second sink for the same platform replaces
// the first.
func (t *Transcriber) Register(sink TranscriptSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks[sink.Platform()] = sink
	t.logger.Info("registered transcript sink", zap.String("platform", sink.Platform()))
}

// Attach subscribes the transcriber to all events at observer priority.
// Delivery runs off the dispatch path so a slow platform cannot stall
// the session.
func (t *Transcriber) Attach(bus *event.Bus) *event.Subscription {
	return bus.SubscribeAll(observerPriority, func(ev event.Event) error {
		line := t.format(ev)
		if line == "" {
			return nil
		}
		go t.fanout(line)
		return nil
	})
}

func (t *Transcriber) fanout(line string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for platform, sink := range t.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := sink.Post(ctx, line); err != nil {
			t.logger.Warn("transcript delivery failed",
				zap.String("platform", platform), zap.Error(err))
		}
		cancel()
	}
}

func (t *Transcriber) format(ev event.Event) string {
	switch e := ev.(type) {
	case event.DebateStart:
		return fmt.Sprintf("— Round %d: debate opens on %q —", e.Round, e.Topic)
	case event.Speech:
		return fmt.Sprintf("%s (%s): %s", t.names(e.SourceID), e.Stance, e.Content)
	case event.Interjection:
		return fmt.Sprintf("%s interjects (%s) against %s",
			t.names(e.SourceID), e.Interjection, t.names(e.TargetID))
	case event.Vote:
		return t.formatVote(e)
	case event.DebateEnd:
		return "— debate closed —"
	case event.SessionEnd:
		return fmt.Sprintf("=== session %s ended: %s ===", e.SessionID, e.Reason)
	}
	return ""
}

func (t *Transcriber) formatVote(v event.Vote) string {
	var counts [3]int
	for _, c := range v.Ballots {
		switch c {
		case event.ChoiceSupport:
			counts[0]++
		case event.ChoiceOppose:
			counts[1]++
		default:
			counts[2]++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Vote on %q: %d for, %d against, %d abstained",
		v.Proposal, counts[0], counts[1], counts[2])
	return b.String()
}

// Close shuts down all sinks.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for platform, sink := range t.sinks {
		if err := sink.Close(); err != nil {
			t.logger.Error("sink close failed",
				zap.String("platform", platform), zap.Error(err))
		}
	}
	return nil
}
