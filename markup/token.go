// Package markup turns HTML-like markup into a lazy sequence of typed tokens.
package markup

import (
	"fmt"
	"strings"
)

// Kind is the type of markup token.
type Kind int

const (
	StartTag Kind = iota
	EndTag
	SelfClosingTag
	Text
	Error
)

func (k Kind) String() string {
	switch k {
	case StartTag:
		return "start"
	case EndTag:
		return "end"
	case SelfClosingTag:
		return "self-closing"
	case Text:
		return "text"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Attr is a single tag attribute, name is always lower case.
type Attr struct {
	Name  string
	Value string
}

// Token is one lexical unit of the markup stream.
//
// Text is decoded (entities resolved) and is only valid until the sequence
// producing the token advances. Offset is the byte position of the token in
// the original stream and serves as its reparse index.
type Token struct {
	Kind   Kind
	Name   string
	Attrs  []Attr
	Text   []byte
	Offset int
	Err    error
}

// IsTag reports whether token is a start, end or self-closing tag.
func (t *Token) IsTag() bool {
	return t.Kind == StartTag || t.Kind == EndTag || t.Kind == SelfClosingTag
}

// IsStart reports whether token opens an element (self-closing tags do too).
func (t *Token) IsStart() bool {
	return t.Kind == StartTag || t.Kind == SelfClosingTag
}

// Attr returns value of the named attribute. Lookup is case-insensitive.
func (t *Token) Attr(name string) (string, bool) {
	for _, a := range t.Attrs {
		if strings.EqualFold(a.Name, name) {
			return a.Value, true
		}
	}
	return "", false
}

// AttrAny returns value of the first present attribute from the list.
func (t *Token) AttrAny(names ...string) (string, bool) {
	for _, n := range names {
		if v, ok := t.Attr(n); ok {
			return v, true
		}
	}
	return "", false
}

func (t Token) String() string {
	switch t.Kind {
	case Text:
		return fmt.Sprintf("text@%d %q", t.Offset, t.Text)
	case Error:
		return fmt.Sprintf("error@%d %v", t.Offset, t.Err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%d <%s", t.Kind, t.Offset, t.Name)
	for _, a := range t.Attrs {
		fmt.Fprintf(&b, " %s=%q", a.Name, a.Value)
	}
	b.WriteByte('>')
	return b.String()
}
