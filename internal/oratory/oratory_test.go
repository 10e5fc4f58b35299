package oratory

import (
	"context"
	"strings"
	"testing"

	"github.com/nidhogg/curia/internal/event"
)

func TestDeterministicBinaryIsStable(t *testing.T) {
	first := DeterministicBinary("cato", "t1")
	for i := 0; i < 50; i++ {
		if got := DeterministicBinary("cato", "t1"); got != first {
			t.Fatalf("expected stable resolution, got %s then %s", first, got)
		}
	}
	if first != event.StanceSupport && first != event.StanceOppose {
		t.Errorf("expected a binary stance, got %s", first)
	}
}

func TestDeterministicBinarySeparatesInputs(t *testing.T) {
	// The member/motion boundary matters: "ab"+"c" and "a"+"bc" must
	// not collapse to the same hash input.
	seen := make(map[event.Stance]bool)
	for _, pair := range [][2]string{{"ab", "c"}, {"a", "bc"}, {"x", "y"}, {"y", "x"}} {
		seen[DeterministicBinary(pair[0], pair[1])] = true
	}
	if len(seen) == 0 {
		t.Fatal("no stances produced")
	}
}

func TestFallbackStanceIsNeutral(t *testing.T) {
	stance, rationale, err := Fallback{}.DecideBaseStance(context.Background(),
		Motion{ID: "t1", Text: "the motion"}, Speaker{ID: "cato"})
	if err != nil {
		t.Fatalf("fallback stance: %v", err)
	}
	if stance != event.StanceNeutral {
		t.Errorf("expected neutral, got %s", stance)
	}
	if rationale == "" {
		t.Error("expected a rationale")
	}
}

func TestFallbackSpeechCarriesStanceAndTopic(t *testing.T) {
	m := Motion{ID: "t1", Text: "the grain dole"}
	s := Speaker{ID: "cato", Name: "Cato", Faction: "optimates"}

	for _, tc := range []struct {
		stance event.Stance
		want   string
	}{
		{event.StanceSupport, "in support of"},
		{event.StanceOppose, "against"},
		{event.StanceNeutral, "reserves judgment"},
	} {
		text, err := Fallback{}.ComposeSpeech(context.Background(), m, s, tc.stance)
		if err != nil {
			t.Fatalf("compose %s: %v", tc.stance, err)
		}
		if !strings.Contains(text, tc.want) {
			t.Errorf("stance %s: expected %q in %q", tc.stance, tc.want, text)
		}
		if !strings.Contains(text, m.Text) {
			t.Errorf("stance %s: expected topic in %q", tc.stance, text)
		}
	}
}

func TestFallbackBreakNeutralMatchesHash(t *testing.T) {
	m := Motion{ID: "t1", Text: "the motion"}
	s := Speaker{ID: "cato"}
	got, err := Fallback{}.BreakNeutral(context.Background(), m, s)
	if err != nil {
		t.Fatalf("break neutral: %v", err)
	}
	if want := DeterministicBinary("cato", "t1"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
