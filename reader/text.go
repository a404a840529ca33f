package reader

import (
	"slices"
	"strings"

	"go.uber.org/zap"

	"reflow/layout"
	"reflow/text"
)

// PageText returns text of page n with runs separated by sep, and
// rectangles of every rune.
func (s *Session) PageText(n int, sep string) (string, []layout.Rect, error) {
	if err := s.CheckPage(n); err != nil {
		return "", nil, err
	}
	out, rects := s.Doc.ExtractText(n, sep)
	return out, rects, nil
}

// Splitter returns sentence splitter for the book language, nil when there
// is no model for it.
func (s *Session) Splitter(log *zap.Logger) *text.Splitter {
	return text.NewSplitter(s.Book.Tag(), log)
}

// PageSentences returns sentences of page n, whitespace trimmed. Nil
// splitter gives whole page as one sentence.
func (s *Session) PageSentences(n int, sp *text.Splitter) ([]string, error) {
	out, _, err := s.PageText(n, " ")
	if err != nil {
		return nil, err
	}
	var list []string
	for sentence := range sp.Sentences(out) {
		if sentence = strings.TrimSpace(sentence); len(sentence) > 0 {
			list = append(list, sentence)
		}
	}
	return list, nil
}

// PageWords returns number of words on page n.
func (s *Session) PageWords(n int) (int, error) {
	out, _, err := s.PageText(n, " ")
	if err != nil {
		return 0, err
	}
	return len(slices.Collect(text.Words(out, false))), nil
}
