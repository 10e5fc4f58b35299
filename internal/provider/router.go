package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router holds the registered providers and routes each member's
// requests to its bound provider, falling back down a configured chain.
type Router struct {
	providers map[string]Provider
	bindings  map[string]string   // memberID -> providerID
	fallbacks map[string][]string // memberID -> fallback chain
	defaults  string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		bindings:  make(map[string]string),
		fallbacks: make(map[string][]string),
		logger:    logger,
	}
}

// Register adds a provider; the first registered becomes the default.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider",
		zap.String("id", p.ID()),
		zap.String("name", p.Name()))
}

// SetDefault sets the default provider ID.
func (r *Router) SetDefault(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = providerID
}

// Bind routes a member's requests to a specific provider.
func (r *Router) Bind(memberID, providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[memberID] = providerID
}

// SetFallbacks configures the fallback chain for a member.
func (r *Router) SetFallbacks(memberID string, providerIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[memberID] = providerIDs
}

// Route sends the request through the member's provider, then the
// fallback chain.
func (r *Router) Route(ctx context.Context, memberID string, req *ChatRequest) (*ChatResponse, error) {
	r.mu.RLock()
	primary := r.providerFor(memberID)
	chain := r.fallbacks[memberID]
	r.mu.RUnlock()

	if primary == nil {
		return nil, fmt.Errorf("no provider available for member %s", memberID)
	}

	resp, err := primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	r.logger.Warn("primary provider failed, trying fallbacks",
		zap.String("member", memberID), zap.Error(err))

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range chain {
		fb, ok := r.providers[id]
		if !ok {
			continue
		}
		resp, err = fb.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		r.logger.Warn("fallback provider failed",
			zap.String("provider", id), zap.Error(err))
	}
	return nil, fmt.Errorf("all providers failed for member %s: %w", memberID, err)
}

// Empty reports whether any provider is registered.
func (r *Router) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) == 0
}

func (r *Router) providerFor(memberID string) Provider {
	if id, ok := r.bindings[memberID]; ok {
		if p, ok := r.providers[id]; ok {
			return p
		}
	}
	return r.providers[r.defaults]
}
