package markup

import (
	"bytes"
	"errors"
	"io"
	"iter"
	"strings"

	"golang.org/x/net/html"
)

type options struct {
	xml bool
}

// Option changes tokenizer behavior.
type Option func(*options)

// XML makes tokenizer treat content of every element as markup. Without it
// elements like title and style hold raw text as HTML requires, which breaks
// XML vocabularies (FictionBook title has paragraphs inside).
func XML() Option {
	return func(o *options) { o.xml = true }
}

// Tokenize returns single pass sequence of tokens read from r. Comments and
// doctype declarations are dropped. Sequence ends silently at the end of
// input, any other read failure is reported as an Error token which is always
// the last one.
func Tokenize(r io.Reader, opts ...Option) iter.Seq[Token] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return func(yield func(Token) bool) {
		z := html.NewTokenizer(r)
		offset := 0
		for {
			tt := z.Next()
			start := offset
			offset += len(z.Raw())

			var tok Token
			switch tt {
			case html.ErrorToken:
				if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
					yield(Token{Kind: Error, Offset: start, Err: err})
				}
				return
			case html.TextToken:
				tok = Token{Kind: Text, Text: z.Text(), Offset: start}
			case html.StartTagToken:
				if o.xml {
					z.NextIsNotRawText()
				}
				tok = tagToken(z, tt, start)
			case html.EndTagToken:
				tok = tagToken(z, tt, start)
			case html.SelfClosingTagToken:
				// XHTML allows <script/> and <title/>, they have no raw content
				z.NextIsNotRawText()
				tok = tagToken(z, tt, start)
			default:
				continue
			}
			if !yield(tok) {
				return
			}
		}
	}
}

// TokenizeBytes is a convenience wrapper for in-memory markup.
func TokenizeBytes(data []byte, opts ...Option) iter.Seq[Token] {
	return Tokenize(bytes.NewReader(data), opts...)
}

// TokenizeString is a convenience wrapper for in-memory markup.
func TokenizeString(s string, opts ...Option) iter.Seq[Token] {
	return Tokenize(strings.NewReader(s), opts...)
}

func tagToken(z *html.Tokenizer, tt html.TokenType, offset int) Token {
	name, hasAttr := z.TagName()
	tok := Token{Name: string(name), Offset: offset}
	switch tt {
	case html.StartTagToken:
		tok.Kind = StartTag
	case html.SelfClosingTagToken:
		tok.Kind = SelfClosingTag
	default:
		tok.Kind = EndTag
	}
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		tok.Attrs = append(tok.Attrs, Attr{Name: string(key), Value: string(val)})
	}
	return tok
}

// Collect drains sequence into a slice copying token text so it remains
// valid. Intended for small streams (outlines, tests).
func Collect(seq iter.Seq[Token]) []Token {
	var out []Token
	for t := range seq {
		if t.Text != nil {
			t.Text = bytes.Clone(t.Text)
		}
		out = append(out, t)
	}
	return out
}

// FromSlice turns previously collected tokens back into a sequence.
func FromSlice(tokens []Token) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for _, t := range tokens {
			if !yield(t) {
				return
			}
		}
	}
}
