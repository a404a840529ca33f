package css

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestParseInline(t *testing.T) {
	p := NewParser(zaptest.NewLogger(t))

	props := p.ParseInline([]byte(`text-align: Center; font-size: 1.5em; font-weight:700 ; margin-left: 10%; font-style: italic !important`))

	if got := props["text-align"].Keyword; got != "center" {
		t.Errorf("text-align: expected center, got %q", got)
	}
	fs := props["font-size"]
	if fs.Value != 1.5 || fs.Unit != "em" {
		t.Errorf("font-size: expected 1.5em, got %v%s", fs.Value, fs.Unit)
	}
	if !props["font-weight"].IsBold() {
		t.Errorf("font-weight 700 should be bold")
	}
	ml := props["margin-left"]
	if px, ok := ml.ToPixels(10, 200); !ok || px != 20 {
		t.Errorf("margin-left: expected 20px, got %v (%v)", px, ok)
	}
	if got := props["font-style"].Keyword; got != "italic" {
		t.Errorf("font-style: expected italic, got %q", got)
	}
}

func TestParseInlineEmpty(t *testing.T) {
	p := NewParser(nil)
	if props := p.ParseInline([]byte("   ")); len(props) != 0 {
		t.Fatalf("expected no properties, got %v", props)
	}
	if props := p.ParseInline([]byte("::: garbage")); props == nil {
		t.Fatal("expected non-nil map for broken input")
	}
}

func TestFontSize(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  float64
		ok    bool
	}{
		{"em", Value{Raw: "2em", Value: 2, Unit: "em"}, 20, true},
		{"px", Value{Raw: "14px", Value: 14, Unit: "px"}, 14, true},
		{"percent", Value{Raw: "50%", Value: 50, Unit: "%"}, 5, true},
		{"keyword", Value{Raw: "large", Keyword: "large"}, 13.2, true},
		{"relative keyword", Value{Raw: "larger", Keyword: "larger"}, 12, true},
		{"garbage", Value{Raw: "inherit", Keyword: "inherit"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.value.FontSize(10, 11)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && (got < tt.want-0.001 || got > tt.want+0.001) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
