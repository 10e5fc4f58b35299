package event

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	return NewBus(zap.NewNop())
}

func speech(source string) Speech {
	return Speech{
		Base:    NewBase(source, ""),
		TopicID: "t1",
		Topic:   "land reform",
		Stance:  StanceSupport,
		Content: "a speech",
	}
}

func TestPublishPriorityOrder(t *testing.T) {
	bus := newTestBus(t)

	var order []string
	sub := func(name string) Handler {
		return func(Event) error {
			order = append(order, name)
			return nil
		}
	}

	bus.Subscribe(KindSpeech, 3, sub("mid"))
	bus.Subscribe(KindSpeech, 9, sub("high"))
	bus.Subscribe(KindSpeech, 1, sub("low"))

	bus.Publish(speech("a"))

	want := []string{"high", "mid", "low"}
	if len(order) != len(want) {
		t.Fatalf("expected %d invocations, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestPublishRegistrationOrderBreaksTies(t *testing.T) {
	bus := newTestBus(t)

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		n := name
		bus.Subscribe(KindSpeech, 5, func(Event) error {
			order = append(order, n)
			return nil
		})
	}

	bus.Publish(speech("a"))

	want := []string{"first", "second", "third"}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestWildcardReceivesEveryKind(t *testing.T) {
	bus := newTestBus(t)

	var kinds []Kind
	bus.SubscribeAll(0, func(ev Event) error {
		kinds = append(kinds, ev.Kind())
		return nil
	})

	bus.Publish(speech("a"))
	bus.Publish(Vote{Base: NewBase("", ""), Proposal: "p", TopicID: "t1", Ballots: nil})

	if len(kinds) != 2 {
		t.Fatalf("expected 2 events, got %d", len(kinds))
	}
	if kinds[0] != KindSpeech || kinds[1] != KindVote {
		t.Errorf("expected [speech vote], got %v", kinds)
	}
}

func TestFailingHandlerIsIsolated(t *testing.T) {
	bus := newTestBus(t)

	var sunk []error
	bus.SetErrorSink(func(_ Event, err error) {
		sunk = append(sunk, err)
	})

	ran := false
	bus.Subscribe(KindSpeech, 10, func(Event) error {
		return errors.New("handler broke")
	})
	bus.Subscribe(KindSpeech, 5, func(Event) error {
		ran = true
		return nil
	})

	if ok := bus.Publish(speech("a")); !ok {
		t.Fatal("expected publish to report delivery")
	}
	if !ran {
		t.Error("expected lower-priority handler to run after failure")
	}
	if len(sunk) != 1 {
		t.Fatalf("expected 1 sunk error, got %d", len(sunk))
	}
}

func TestPanickingHandlerIsIsolated(t *testing.T) {
	bus := newTestBus(t)

	var sunk []error
	bus.SetErrorSink(func(_ Event, err error) {
		sunk = append(sunk, err)
	})

	ran := false
	bus.Subscribe(KindSpeech, 10, func(Event) error {
		panic("handler exploded")
	})
	bus.Subscribe(KindSpeech, 5, func(Event) error {
		ran = true
		return nil
	})

	if ok := bus.Publish(speech("a")); !ok {
		t.Fatal("expected publish to report delivery despite panic")
	}
	if !ran {
		t.Error("expected remaining handler to run after panic")
	}
	if len(sunk) != 1 {
		t.Fatalf("expected 1 sunk error, got %d", len(sunk))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := newTestBus(t)

	calls := 0
	sub := bus.Subscribe(KindSpeech, 0, func(Event) error {
		calls++
		return nil
	})

	bus.Publish(speech("a"))
	bus.Unsubscribe(sub)
	bus.Publish(speech("a"))

	if calls != 1 {
		t.Errorf("expected 1 call after unsubscribe, got %d", calls)
	}

	// Unsubscribing twice is harmless.
	bus.Unsubscribe(sub)
	bus.Unsubscribe(nil)
}

func TestHandlerMayPublishDuringDispatch(t *testing.T) {
	bus := newTestBus(t)

	var got []Kind
	bus.Subscribe(KindSpeech, 5, func(ev Event) error {
		bus.Publish(RelationshipChange{
			Base:    NewBase("a", "b"),
			RelType: "political",
			Delta:   0.05,
		})
		return nil
	})
	bus.SubscribeAll(0, func(ev Event) error {
		got = append(got, ev.Kind())
		return nil
	})

	bus.Publish(speech("a"))

	// The nested dispatch completes before the outer wildcard runs.
	if len(got) != 2 {
		t.Fatalf("expected 2 observed events, got %d", len(got))
	}
	if got[0] != KindRelationshipChange || got[1] != KindSpeech {
		t.Errorf("expected nested change before outer speech, got %v", got)
	}
}

func TestPublishNilReturnsFalse(t *testing.T) {
	bus := newTestBus(t)
	if bus.Publish(nil) {
		t.Error("expected false for nil event")
	}
}
