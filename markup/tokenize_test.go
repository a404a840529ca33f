package markup

import (
	"errors"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	src := `<!DOCTYPE html><p class="x" ID="a1">Fish &amp; chips<!-- note --><br/></p>`
	tokens := Collect(TokenizeString(src))

	want := []struct {
		kind Kind
		name string
		text string
	}{
		{StartTag, "p", ""},
		{Text, "", "Fish & chips"},
		{SelfClosingTag, "br", ""},
		{EndTag, "p", ""},
	}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(tokens), tokens)
	}
	for i, w := range want {
		got := tokens[i]
		if got.Kind != w.kind || got.Name != w.name || string(got.Text) != w.text {
			t.Errorf("token %d: expected %v %q %q, got %v", i, w.kind, w.name, w.text, got)
		}
	}

	if v, ok := tokens[0].Attr("id"); !ok || v != "a1" {
		t.Errorf("expected id attribute a1, got %q (%v)", v, ok)
	}
	if _, ok := tokens[0].Attr("style"); ok {
		t.Error("unexpected style attribute")
	}
	if v, ok := tokens[0].AttrAny("name", "class"); !ok || v != "x" {
		t.Errorf("AttrAny: expected x, got %q", v)
	}
}

func TestTokenizeOffsets(t *testing.T) {
	src := "<p>one</p><p>two</p>"
	for tok := range TokenizeString(src) {
		if tok.Offset < 0 || tok.Offset >= len(src) {
			t.Fatalf("offset %d out of range", tok.Offset)
		}
		switch tok.Kind {
		case Text:
			if !strings.HasPrefix(src[tok.Offset:], string(tok.Text)) {
				t.Errorf("text %q does not start at offset %d", tok.Text, tok.Offset)
			}
		case StartTag:
			if !strings.HasPrefix(src[tok.Offset:], "<"+tok.Name) {
				t.Errorf("tag %q does not start at offset %d", tok.Name, tok.Offset)
			}
		}
	}
}

func TestTokenizeXML(t *testing.T) {
	src := `<section><title><p>Chapter</p></title></section>`

	var html, xml []string
	for tok := range TokenizeString(src) {
		html = append(html, tok.Kind.String()+":"+tok.Name)
	}
	for tok := range TokenizeString(src, XML()) {
		xml = append(xml, tok.Kind.String()+":"+tok.Name)
	}

	if strings.Contains(strings.Join(html, " "), "start:p") {
		t.Errorf("html mode should keep title content raw, got %v", html)
	}
	if !strings.Contains(strings.Join(xml, " "), "start:p") {
		t.Errorf("xml mode should tokenize title content, got %v", xml)
	}
}

type failingReader struct{ n int }

var errBroken = errors.New("broken")

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n > 0 {
		return 0, errBroken
	}
	r.n++
	return copy(p, "<p>text"), nil
}

func TestTokenizeError(t *testing.T) {
	tokens := Collect(Tokenize(&failingReader{}))
	if len(tokens) == 0 {
		t.Fatal("expected tokens")
	}
	last := tokens[len(tokens)-1]
	if last.Kind != Error || !errors.Is(last.Err, errBroken) {
		t.Fatalf("expected trailing error token, got %v", last)
	}
}

func TestTokenizeStop(t *testing.T) {
	n := 0
	for range TokenizeString("<a>1</a><b>2</b><c>3</c>") {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("expected iteration to stop at 2, got %d", n)
	}
}

func TestFromSlice(t *testing.T) {
	in := Collect(TokenizeString("<i>x</i>"))
	out := Collect(FromSlice(in))
	if len(in) != len(out) {
		t.Fatalf("expected %d tokens, got %d", len(in), len(out))
	}
}
