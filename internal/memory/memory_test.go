package memory

import (
	"testing"

	"github.com/nidhogg/curia/internal/event"
	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return NewLedger("cato", zap.NewNop())
}

func TestRecordSpeechEvent(t *testing.T) {
	l := newTestLedger(t)

	sp := event.Speech{
		Base:    event.NewBase("caesar", ""),
		TopicID: "t1",
		Topic:   "land reform",
		Stance:  event.StanceSupport,
		Content: "words",
	}
	item := l.Record(sp)

	if item.EventID != sp.EventID {
		t.Errorf("expected event id %s, got %s", sp.EventID, item.EventID)
	}
	if item.Importance != 0.4 {
		t.Errorf("expected speech importance 0.4, got %f", item.Importance)
	}

	got := l.Query(Query{Tags: []string{"speech", "from:caesar", "topic:t1"}})
	if len(got) != 1 {
		t.Fatalf("expected 1 item by tags, got %d", len(got))
	}
}

func TestQueryAndSemanticsNewestFirst(t *testing.T) {
	l := newTestLedger(t)

	l.Remember("first", 0.5, 0.01, "", "alpha")
	l.Remember("second", 0.5, 0.01, "", "alpha", "beta")
	l.Remember("third", 0.5, 0.01, "", "beta")

	got := l.Query(Query{Tags: []string{"alpha", "beta"}})
	if len(got) != 1 {
		t.Fatalf("expected 1 item matching both tags, got %d", len(got))
	}
	if got[0].Content != "second" {
		t.Errorf("expected item 'second', got %q", got[0].Content)
	}

	all := l.Query(Query{})
	if len(all) != 3 {
		t.Fatalf("expected 3 items, got %d", len(all))
	}
	if all[0].Content != "third" || all[2].Content != "first" {
		t.Errorf("expected newest first, got %q .. %q", all[0].Content, all[2].Content)
	}

	limited := l.Query(Query{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("expected limit 2, got %d", len(limited))
	}
}

func TestDecayExcludesFromDefaultQueries(t *testing.T) {
	l := newTestLedger(t)

	l.Remember("fading", 0.10, 0.01, "", "note")
	l.Remember("durable", 0.90, 0.001, "", "note")

	// 10 days: fading drops to 0.0, durable to 0.89.
	touched := l.Decay(10)
	if touched != 2 {
		t.Errorf("expected 2 items touched, got %d", touched)
	}

	got := l.Query(Query{Tags: []string{"note"}})
	if len(got) != 1 {
		t.Fatalf("expected 1 retrievable item, got %d", len(got))
	}
	if got[0].Content != "durable" {
		t.Errorf("expected durable item, got %q", got[0].Content)
	}

	// The faded item is still stored, just below the threshold.
	if len(l.Items()) != 2 {
		t.Errorf("expected 2 stored items, got %d", len(l.Items()))
	}

	// Disabling the floor retrieves it again.
	all := l.Query(Query{Tags: []string{"note"}, MinImportance: -1})
	if len(all) != 2 {
		t.Errorf("expected 2 items with the floor disabled, got %d", len(all))
	}
}

func TestDecayNeverGoesNegative(t *testing.T) {
	l := newTestLedger(t)
	l.Remember("brief", 0.05, 0.5, "", "note")

	l.Decay(100)

	items := l.Items()
	if items[0].Importance != 0 {
		t.Errorf("expected importance clamped to 0, got %f", items[0].Importance)
	}
}

func TestObservationsWindow(t *testing.T) {
	l := newTestLedger(t)
	l.Remember("one", 0.5, 0.01, "")
	l.Remember("two", 0.5, 0.01, "")
	l.Remember("three", 0.5, 0.01, "")

	got := l.Observations(2)
	if len(got) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(got))
	}
	if got[0] != "two" || got[1] != "three" {
		t.Errorf("expected [two three], got %v", got)
	}
}

func TestRememberClampsImportance(t *testing.T) {
	l := newTestLedger(t)
	item := l.Remember("big", 3.0, 0.01, "")
	if item.Importance != 1 {
		t.Errorf("expected importance clamped to 1, got %f", item.Importance)
	}
}

func TestRestoreSkipsObservations(t *testing.T) {
	l := newTestLedger(t)
	l.Restore([]Item{{ID: "x", Content: "restored", Importance: 0.5}})

	if len(l.Items()) != 1 {
		t.Fatalf("expected 1 restored item, got %d", len(l.Items()))
	}
	if len(l.Observations(0)) != 0 {
		t.Errorf("expected no observations from restore, got %d", len(l.Observations(0)))
	}
}
