package debug

import (
	"testing"
)

func TestTreeWriter_Line(t *testing.T) {
	tests := []struct {
		name   string
		depth  int
		format string
		args   []any
		want   string
	}{
		{"no depth", 0, "test", nil, "test\n"},
		{"depth 1", 1, "indented", nil, "  indented\n"},
		{"depth 2", 2, "double indent", nil, "    double indent\n"},
		{"with formatting", 1, "value: %d", []any{42}, "  value: 42\n"},
		{"multiple args", 0, "%s = %d", []any{"count", 5}, "count = 5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.Line(tt.depth, tt.format, tt.args...)
			if got := tw.String(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_TextBlock(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		depth int
		value string
		want  string
	}{
		{"empty value", 0, 0, "", "text: \n"},
		{"plain", 0, 1, "hello", "  text: \"hello\"\n"},
		{"control characters", 0, 0, "a\tb\n", "text: \"a\\tb\\n\"\n"},
		{"unicode", 0, 0, "café", "text: \"café\"\n"},
		{"truncated", 3, 0, "abcdef", "text: \"abc\"...\n"},
		{"truncated unicode", 2, 0, "ééé", "text: \"éé\"...\n"},
		{"exact limit", 3, 0, "abc", "text: \"abc\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter().WithTextLimit(tt.limit)
			tw.TextBlock(tt.depth, "text", tt.value)
			if got := tw.String(); got != tt.want {
				t.Errorf("TextBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_Nested(t *testing.T) {
	tw := NewTreeWriter()
	tw.Line(0, "root")
	tw.Line(1, "child %d", 1)
	tw.TextBlock(2, "run", "x")
	tw.Line(1, "child %d", 2)

	want := "root\n  child 1\n    run: \"x\"\n  child 2\n"
	if got := tw.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
