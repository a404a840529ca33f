// Package text splits extracted page text into sentences and words.
package text

import (
	"iter"
	"strings"
	"unicode"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/data"
	"github.com/neurosnap/sentences/english"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type Splitter struct {
	*sentences.DefaultSentenceTokenizer
}

func tryLoadModel(name string) (*sentences.Storage, error) {
	raw, err := data.Asset("data/" + name + ".json")
	if err != nil {
		return nil, err
	}
	return sentences.LoadTraining(raw)
}

// NewSplitter returns sentence splitter trained for the language, nil when
// there is no model for it. Nil splitter returns text as a single sentence.
func NewSplitter(lang language.Tag, log *zap.Logger) *Splitter {
	base, confidence := lang.Base()
	if confidence == language.No {
		log.Warn("Unable to determine language base, turning off sentence splitting", zap.Stringer("tag", lang))
		return nil
	}

	if base.String() == "en" {
		tok, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			log.Warn("Unable to load sentences tokenizer data", zap.Stringer("tag", lang), zap.Error(err))
			return nil
		}
		return &Splitter{tok}
	}

	// models are named after languages ("german.json")
	name := strings.ToLower(display.English.Languages().Name(base))
	model, err := tryLoadModel(name)
	if err != nil {
		log.Warn("Unable to find suitable sentence tokenizer model, turning off sentence splitting", zap.Stringer("language", lang), zap.String("model", name))
		return nil
	}
	return &Splitter{sentences.NewSentenceTokenizer(model)}
}

// Sentences returns an iterator over sentences of in. Whitespace between
// sentences stays with the preceding sentence, so concatenation of results
// gives back the input.
func (s *Splitter) Sentences(in string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if s == nil {
			if len(in) > 0 {
				yield(in)
			}
			return
		}

		found := s.Tokenize(in)
		for i := 0; i < len(found)-1; i++ {
			text := found[i].Text

			// tokenizer attaches separating spaces to the next sentence
			next := found[i+1].Text
			for idx, sym := range next {
				if !unicode.IsSpace(sym) {
					text += next[:idx]
					found[i+1].Text = next[idx:]
					break
				}
			}
			if !yield(text) {
				return
			}
		}
		if len(found) > 0 {
			yield(found[len(found)-1].Text)
		}
	}
}

// Words returns an iterator over words of in. NBSP is not a separator unless
// breakNBSP is set.
func Words(in string, breakNBSP bool) iter.Seq[string] {
	return func(yield func(string) bool) {
		var word strings.Builder
		for _, sym := range in {
			if isSeparator(sym, breakNBSP) {
				if word.Len() > 0 && !yield(word.String()) {
					return
				}
				word.Reset()
				continue
			}
			word.WriteRune(sym)
		}
		if word.Len() > 0 {
			yield(word.String())
		}
	}
}

func isSeparator(r rune, breakNBSP bool) bool {
	if uint32(r) <= unicode.MaxLatin1 {
		switch r {
		case '\t', '\n', '\v', '\f', '\r', ' ', 0x85:
			return true
		case 0xA0:
			return breakNBSP
		}
		return false
	}
	return unicode.IsSpace(r)
}
