package oratory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nidhogg/curia/internal/event"
	"github.com/nidhogg/curia/internal/provider"
	"go.uber.org/zap"
)

// LLMOrator generates stances and speeches through the provider router.
// Any provider failure or malformed response degrades to the Fallback
// orator; a session never blocks on generation.
type LLMOrator struct {
	router   *provider.Router
	fallback Fallback
	logger   *zap.Logger
}

// NewLLMOrator creates an orator backed by the given router.
func NewLLMOrator(router *provider.Router, logger *zap.Logger) *LLMOrator {
	return &LLMOrator{router: router, logger: logger}
}

// DecideBaseStance asks the model for a stance plus rationale as JSON.
func (o *LLMOrator) DecideBaseStance(ctx context.Context, m Motion, s Speaker) (event.Stance, string, error) {
	prompt := fmt.Sprintf(
		`You are %s, a member of the %s faction in a deliberative assembly.
The motion before the assembly (%s): %q

Decide your position. Reply with JSON only:
{"stance":"support|oppose|neutral","rationale":"one sentence"}`,
		s.Name, s.Faction, m.Category, m.Text)

	resp, err := o.router.Route(ctx, s.ID, &provider.ChatRequest{
		Messages:  []provider.Message{{Role: "user", Content: prompt}},
		MaxTokens: 256,
	})
	if err != nil {
		o.logger.Warn("stance generation failed, using neutral default",
			zap.String("member", s.ID), zap.Error(err))
		return o.fallback.DecideBaseStance(ctx, m, s)
	}

	var parsed struct {
		Stance    string `json:"stance"`
		Rationale string `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &parsed); err != nil {
		o.logger.Warn("stance response malformed, using neutral default",
			zap.String("member", s.ID), zap.Error(err))
		return o.fallback.DecideBaseStance(ctx, m, s)
	}

	switch event.Stance(parsed.Stance) {
	case event.StanceSupport, event.StanceOppose, event.StanceNeutral:
		return event.Stance(parsed.Stance), parsed.Rationale, nil
	}
	return o.fallback.DecideBaseStance(ctx, m, s)
}

// ComposeSpeech asks the model for the speech text.
func (o *LLMOrator) ComposeSpeech(ctx context.Context, m Motion, s Speaker, stance event.Stance) (string, error) {
	prompt := fmt.Sprintf(
		`You are %s of the %s faction, rank %d. Deliver a short speech (at most 120 words) taking the %s position on the motion: %q. Speech text only.`,
		s.Name, s.Faction, s.Rank, stance, m.Text)

	resp, err := o.router.Route(ctx, s.ID, &provider.ChatRequest{
		Messages:  []provider.Message{{Role: "user", Content: prompt}},
		MaxTokens: 512,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		o.logger.Warn("speech generation failed, using template",
			zap.String("member", s.ID), zap.Error(err))
		return o.fallback.ComposeSpeech(ctx, m, s, stance)
	}
	return strings.TrimSpace(resp.Content), nil
}

// BreakNeutral asks for a binary resolution; on failure it resolves
// deterministically.
func (o *LLMOrator) BreakNeutral(ctx context.Context, m Motion, s Speaker) (event.Stance, error) {
	prompt := fmt.Sprintf(
		`You are %s. You must now vote on %q and may not abstain. Reply with exactly one word: support or oppose.`,
		s.Name, m.Text)

	resp, err := o.router.Route(ctx, s.ID, &provider.ChatRequest{
		Messages:  []provider.Message{{Role: "user", Content: prompt}},
		MaxTokens: 8,
	})
	if err != nil {
		return o.fallback.BreakNeutral(ctx, m, s)
	}
	switch strings.ToLower(strings.TrimSpace(resp.Content)) {
	case "support":
		return event.StanceSupport, nil
	case "oppose":
		return event.StanceOppose, nil
	}
	return o.fallback.BreakNeutral(ctx, m, s)
}

// extractJSON trims any prose around the first JSON object in a reply.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
