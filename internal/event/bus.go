package event

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Handler processes a single event. A returned error is reported to the
// bus error sink and never propagates to the publisher.
type Handler func(Event) error

// ErrorSink receives handler failures. The default sink logs them.
type ErrorSink func(ev Event, err error)

// Subscription is the handle returned by Subscribe, used to unsubscribe.
type Subscription struct {
	kind     Kind
	wildcard bool
	priority int
	seq      int
	handler  Handler
}

// Bus is the central dispatcher. Handlers for an event run in descending
// priority order (the priority is the owning member's rank), registration
// order breaking ties. Dispatch is synchronous: Publish returns only after
// every handler has run, giving callers a causal barrier.
type Bus struct {
	mu       sync.RWMutex
	subs     map[Kind][]*Subscription
	wildcard []*Subscription
	nextSeq  int
	sink     ErrorSink
	logger   *zap.Logger
}

// NewBus creates a bus whose error sink logs to the given logger.
func NewBus(logger *zap.Logger) *Bus {
	b := &Bus{
		subs:   make(map[Kind][]*Subscription),
		logger: logger,
	}
	b.sink = func(ev Event, err error) {
		logger.Warn("event handler failed",
			zap.String("event", ev.ID()),
			zap.String("kind", string(ev.Kind())),
			zap.Error(err))
	}
	return b
}

// SetErrorSink replaces the default logging sink.
func (b *Bus) SetErrorSink(sink ErrorSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sink != nil {
		b.sink = sink
	}
}

// Subscribe registers a handler for one event kind.
func (b *Bus) Subscribe(kind Kind, priority int, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscription{kind: kind, priority: priority, seq: b.nextSeq, handler: h}
	b.nextSeq++
	b.subs[kind] = insertOrdered(b.subs[kind], sub)
	return sub
}

// SubscribeAll registers a handler for every event kind.
func (b *Bus) SubscribeAll(priority int, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscription{wildcard: true, priority: priority, seq: b.nextSeq, handler: h}
	b.nextSeq++
	b.wildcard = insertOrdered(b.wildcard, sub)
	return sub
}

// Unsubscribe removes a subscription. Safe to call with handles the bus
// no longer holds.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.wildcard {
		b.wildcard = remove(b.wildcard, sub)
		return
	}
	b.subs[sub.kind] = remove(b.subs[sub.kind], sub)
}

// Publish delivers the event to all handlers for its kind plus wildcard
// handlers, as one dispatch cycle. A failing handler is isolated: the
// error goes to the sink and remaining handlers still run. Returns true
// when delivery itself completed. Handlers may publish further events;
// the nested dispatch completes before the outer one continues.
func (b *Bus) Publish(ev Event) bool {
	if ev == nil {
		return false
	}

	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs[ev.Kind()])+len(b.wildcard))
	targets = append(targets, b.subs[ev.Kind()]...)
	targets = append(targets, b.wildcard...)
	sink := b.sink
	b.mu.RUnlock()

	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].priority != targets[j].priority {
			return targets[i].priority > targets[j].priority
		}
		return targets[i].seq < targets[j].seq
	})

	for _, sub := range targets {
		b.invoke(sub, ev, sink)
	}
	return true
}

func (b *Bus) invoke(sub *Subscription, ev Event, sink ErrorSink) {
	defer func() {
		if r := recover(); r != nil {
			sink(ev, fmt.Errorf("handler panic: %v", r))
		}
	}()
	if err := sub.handler(ev); err != nil {
		sink(ev, err)
	}
}

// insertOrdered keeps each list sorted by priority desc, then seq asc.
func insertOrdered(list []*Subscription, sub *Subscription) []*Subscription {
	i := sort.Search(len(list), func(i int) bool {
		return list[i].priority < sub.priority
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = sub
	return list
}

func remove(list []*Subscription, sub *Subscription) []*Subscription {
	for i, s := range list {
		if s == sub {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
