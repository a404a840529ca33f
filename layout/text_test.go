package layout

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractText(t *testing.T) {
	doc := formatString(t, "<p>Hello world</p><p>Next <b>bold</b>er</p>", testConfig(t))

	text, rects := doc.ExtractText(1, "\n")
	if text != "Hello world\nNext bolder" {
		t.Fatalf("unexpected text %q", text)
	}
	if n := utf8.RuneCountInString(text); len(rects) != n {
		t.Fatalf("expected %d rectangles, got %d", n, len(rects))
	}

	// "Hello": 5 runes of 5 units
	for i := range 5 {
		want := Rect{X: float64(i) * 5, Y: 0, W: 5, H: 10}
		if rects[i] != want {
			t.Errorf("rune %d: expected %v, got %v", i, want, rects[i])
		}
	}
	if space := rects[5]; space.X != 25 || space.W != 2.5 {
		t.Errorf("expected space box after Hello, got %v", space)
	}
	if sep := rects[11]; sep != (Rect{}) {
		t.Errorf("separator must have empty box, got %v", sep)
	}
	if next := rects[12]; next.Y != 10 {
		t.Errorf("expected second line at 10, got %v", next)
	}
}

func TestExtractTextWrapped(t *testing.T) {
	doc := formatString(t, "<p>"+strings.Repeat("abcd ", 8)+"</p>", testConfig(t))
	text, _ := doc.ExtractText(1, "|")
	if text != "abcd abcd abcd abcd|abcd abcd abcd abcd" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractTextUnicode(t *testing.T) {
	// decomposed e + combining acute is composed on intake
	doc := formatString(t, "<p>cafe\u0301 nai\u0308ve</p>", testConfig(t))
	text, rects := doc.ExtractText(1, "\n")
	if text != "caf\u00e9 na\u00efve" {
		t.Fatalf("unexpected text %q", text)
	}
	if len(rects) != 10 {
		t.Fatalf("expected 10 rectangles, got %d", len(rects))
	}
}
