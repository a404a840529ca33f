package layout

import (
	"testing"
)

func TestFixedMetrics(t *testing.T) {
	g := FixedMetrics{}.Measure(Font{Size: 10}, []byte("a b"))
	if len(g.Advances) != 3 || g.Width() != 12.5 {
		t.Fatalf("unexpected advances %v", g.Advances)
	}
	if g.Ascent != 8 || g.Descent != 2 {
		t.Fatalf("unexpected extents %v/%v", g.Ascent, g.Descent)
	}
}

func TestOpenTypeMetrics(t *testing.T) {
	m := NewOpenTypeMetrics()

	regular := m.Measure(Font{Family: "serif", Size: 12}, []byte("Hello"))
	bold := m.Measure(Font{Family: "serif", Size: 12, Style: Bold}, []byte("Hello"))
	big := m.Measure(Font{Family: "serif", Size: 24}, []byte("Hello"))
	mono := m.Measure(Font{Family: "monospace", Size: 12}, []byte("iiWW"))

	if len(regular.Advances) != 5 || regular.Width() <= 0 {
		t.Fatalf("unexpected measurement %+v", regular)
	}
	if bold.Width() <= regular.Width() {
		t.Errorf("bold should be wider: %v vs %v", bold.Width(), regular.Width())
	}
	if big.Width() < 1.9*regular.Width() {
		t.Errorf("double size should be about twice as wide: %v vs %v", big.Width(), regular.Width())
	}
	if regular.Ascent <= 0 || regular.Descent <= 0 {
		t.Errorf("unexpected extents %v/%v", regular.Ascent, regular.Descent)
	}
	if mono.Advances[0] != mono.Advances[3] {
		t.Errorf("monospace advances differ: %v", mono.Advances)
	}

	if err := m.SetFontData(false, 0, []byte("not a font")); err == nil {
		t.Error("expected error for broken font data")
	}
}
