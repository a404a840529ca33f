package layout

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"reflow/markup"
)

type tagFunc func(f *formatter, t *markup.Token)

// tagRule tells formatter what to do with a tag. Tags with anchor set emit an
// anchor on start even when they carry no id.
type tagRule struct {
	start  tagFunc
	end    tagFunc
	anchor bool
}

// Dialect is a named tag table. Tags not in the table are ignored but their
// content is still laid out.
type Dialect struct {
	Name string
	tags map[string]tagRule
}

// Tags returns sorted names of tags the dialect understands.
func (d *Dialect) Tags() []string {
	names := make([]string, 0, len(d.tags))
	for name := range d.tags {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (d *Dialect) String() string {
	return d.Name
}

// extend returns copy of the dialect with rules added or replaced.
func (d *Dialect) extend(name string, rules map[string]tagRule) *Dialect {
	n := &Dialect{Name: name, tags: make(map[string]tagRule, len(d.tags)+len(rules))}
	for k, v := range d.tags {
		n.tags[k] = v
	}
	for k, v := range rules {
		n.tags[k] = v
	}
	return n
}

var (
	// Reflow handles HTML subset found in EPUB chapters and plain HTML.
	Reflow = &Dialect{Name: "reflow", tags: reflowTags()}
	// Mobi adds Mobipocket extensions: page breaks, record images and links
	// by stream position.
	Mobi = Reflow.extend("mobi", mobiTags())
	// FictionBook handles FictionBook 2 XML documents.
	FictionBook = &Dialect{Name: "fictionbook", tags: fictionBookTags()}
)

// DialectByName returns dialect by its name (case insensitive). "html" and
// "epub" are accepted for Reflow, "fb2" for FictionBook.
func DialectByName(name string) (*Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "reflow", "html", "xhtml", "epub", "markdown":
		return Reflow, nil
	case "mobi", "prc", "azw":
		return Mobi, nil
	case "fictionbook", "fb2":
		return FictionBook, nil
	}
	return nil, fmt.Errorf("unknown markup dialect %q", name)
}

// Shared rule builders.

func inline(change func(f *formatter, t *markup.Token, st *Style)) tagRule {
	return tagRule{
		start: func(f *formatter, t *markup.Token) {
			f.push(t, func(st *Style) { change(f, t, st) })
		},
		end: popTag,
	}
}

func fontStyle(flags FontStyle) tagRule {
	return inline(func(_ *formatter, _ *markup.Token, st *Style) { st.Font.Style |= flags })
}

func fontScale(k float64) tagRule {
	return inline(func(_ *formatter, _ *markup.Token, st *Style) { st.Font.Size *= k })
}

func popTag(f *formatter, t *markup.Token) {
	f.styles.Pop(t.Name)
}

func hidden() tagRule {
	return tagRule{
		start: func(f *formatter, t *markup.Token) {
			f.styles.Push(t.Name, func(st *Style) { st.Hidden = true })
		},
		end: popTag,
	}
}

func blockRule(change func(f *formatter, t *markup.Token, st *Style), gap func(f *formatter) float64) tagRule {
	return tagRule{
		start: func(f *formatter, t *markup.Token) {
			f.block(t, func(st *Style) {
				if change != nil {
					change(f, t, st)
				}
			})
		},
		end: func(f *formatter, t *markup.Token) {
			var g float64
			if gap != nil {
				g = gap(f)
			}
			f.endBlock(t, g)
		},
	}
}

func paragraphGap(f *formatter) float64 { return f.cfg.ParagraphGap }

// flush only ends current line.
var flush = tagRule{
	start: func(f *formatter, _ *markup.Token) {
		f.flushLine(true)
		f.pendingSpace = false
	},
}

func headingRule(level int) tagRule {
	return tagRule{
		start:  func(f *formatter, t *markup.Token) { f.heading(t, level, AlignLeft) },
		end:    func(f *formatter, t *markup.Token) { f.endHeading(t) },
		anchor: true,
	}
}

func listRule() tagRule {
	return blockRule(func(f *formatter, _ *markup.Token, st *Style) {
		st.Align = AlignLeft
		st.Margin += 2 * f.cfg.FontSize
	}, paragraphGap)
}

func reflowTags() map[string]tagRule {
	tags := map[string]tagRule{
		"head":     hidden(),
		"style":    hidden(),
		"script":   hidden(),
		"title":    hidden(),
		"template": hidden(),

		"p": {
			start: func(f *formatter, t *markup.Token) {
				f.block(t, nil)
				f.indentPending = true
			},
			end: func(f *formatter, t *markup.Token) {
				f.indentPending = false
				f.endBlock(t, f.cfg.ParagraphGap)
			},
		},
		"div":        blockRule(nil, nil),
		"section":    blockRule(nil, nil),
		"article":    blockRule(nil, nil),
		"blockquote": blockRule(func(f *formatter, _ *markup.Token, st *Style) { st.Margin += 2 * f.cfg.FontSize }, paragraphGap),
		"center":     blockRule(func(_ *formatter, _ *markup.Token, st *Style) { st.Align = AlignCenter }, nil),
		"pre": blockRule(func(_ *formatter, _ *markup.Token, st *Style) {
			st.Pre = true
			st.Align = AlignLeft
			st.Font.Family = "monospace"
		}, paragraphGap),

		"br": {start: func(f *formatter, _ *markup.Token) { f.lineBreak() }},
		"hr": {start: func(f *formatter, _ *markup.Token) { f.rule() }},

		"b":      fontStyle(Bold),
		"strong": fontStyle(Bold),
		"i":      fontStyle(Italic),
		"em":     fontStyle(Italic),
		"cite":   fontStyle(Italic),
		"dfn":    fontStyle(Italic),
		"var":    fontStyle(Italic),
		"u":      fontStyle(Underline),
		"ins":    fontStyle(Underline),
		"s":      fontStyle(Strike),
		"strike": fontStyle(Strike),
		"del":    fontStyle(Strike),
		"small":  fontScale(0.8),
		"big":    fontScale(1.2),
		"sup":    fontScale(0.7),
		"sub":    fontScale(0.7),
		"span":   inline(func(*formatter, *markup.Token, *Style) {}),
		"font":   inline(fontTag),
		"code":   inline(monospace),
		"tt":     inline(monospace),
		"kbd":    inline(monospace),
		"samp":   inline(monospace),

		"ul": listRule(),
		"ol": listRule(),
		"dl": listRule(),
		"li": {start: flush.start, anchor: true},
		"dd": flush,
		"dt": flush,
		"tr": flush,
		"td": {start: func(f *formatter, _ *markup.Token) { f.pendingSpace = true }},
		"th": {start: func(f *formatter, _ *markup.Token) { f.pendingSpace = true }},

		"img": {start: func(f *formatter, t *markup.Token) {
			if src, ok := t.Attr("src"); ok {
				f.image(src)
			}
		}},
		"image": {start: func(f *formatter, t *markup.Token) {
			// SVG wrapped cover images
			if ref, ok := hrefAttr(t); ok {
				f.image(ref)
			}
		}},
		"a": {
			start: func(f *formatter, t *markup.Token) {
				if href, ok := t.Attr("href"); ok {
					f.startLink(href)
				}
			},
			end:    func(f *formatter, _ *markup.Token) { f.endLink() },
			anchor: true,
		},
		"pagebreak": {start: func(f *formatter, t *markup.Token) {
			src, _ := t.Attr("src")
			f.pageBreak(src)
		}},
	}
	for level := 1; level <= 6; level++ {
		tags["h"+strconv.Itoa(level)] = headingRule(level)
	}
	return tags
}

func monospace(_ *formatter, _ *markup.Token, st *Style) {
	st.Font.Family = "monospace"
}

// fontSizes are sizes of HTML font element relative to size 3.
var fontSizes = [...]float64{0.6, 0.75, 0.89, 1, 1.2, 1.5, 2}

func fontTag(f *formatter, t *markup.Token, st *Style) {
	if face, ok := t.Attr("face"); ok && len(face) > 0 {
		st.Font.Family = face
	}
	v, ok := t.Attr("size")
	if !ok {
		return
	}
	v = strings.TrimSpace(v)
	n, err := strconv.Atoi(strings.TrimPrefix(v, "+"))
	if err != nil {
		return
	}
	if strings.HasPrefix(v, "+") || strings.HasPrefix(v, "-") {
		st.Font.Size *= math.Pow(1.2, float64(n))
		return
	}
	n = min(max(n, 1), len(fontSizes))
	st.Font.Size = f.cfg.FontSize * fontSizes[n-1]
}

// hrefAttr returns value of any attribute with name ending in "href"
// (xlink:href, l:href...). Leading '#' of local references is dropped.
func hrefAttr(t *markup.Token) (string, bool) {
	for _, a := range t.Attrs {
		if strings.HasSuffix(strings.ToLower(a.Name), "href") {
			return strings.TrimPrefix(a.Value, "#"), true
		}
	}
	return "", false
}

func mobiTags() map[string]tagRule {
	return map[string]tagRule{
		"mbp:pagebreak": {start: func(f *formatter, _ *markup.Token) { f.pageBreak("") }},
		"img": {start: func(f *formatter, t *markup.Token) {
			if ref, ok := t.AttrAny("recindex", "src"); ok {
				f.image(ref)
			}
		}},
		"a": {
			start: func(f *formatter, t *markup.Token) {
				if pos, ok := t.Attr("filepos"); ok {
					if n, err := strconv.Atoi(strings.TrimSpace(pos)); err == nil {
						f.startLink(FileposPrefix + strconv.Itoa(n))
						return
					}
				}
				if href, ok := t.Attr("href"); ok {
					f.startLink(href)
				}
			},
			end:    func(f *formatter, _ *markup.Token) { f.endLink() },
			anchor: true,
		},
		"p": {
			start: func(f *formatter, t *markup.Token) {
				f.block(t, nil)
				f.indentPending = true
				if v, ok := t.Attr("width"); ok {
					if w, err := strconv.ParseFloat(strings.TrimSuffix(v, "em"), 64); err == nil && w > 0 {
						// explicit indent replaces configured one for this paragraph
						f.indentPending = false
						f.fixedSpace(w * f.cfg.FontSize)
					}
				}
			},
			end: func(f *formatter, t *markup.Token) {
				f.indentPending = false
				gap := f.cfg.ParagraphGap
				if v, ok := t.Attr("height"); ok {
					if h, err := strconv.ParseFloat(strings.TrimSuffix(v, "em"), 64); err == nil {
						gap = h * f.cfg.FontSize
					}
				}
				f.endBlock(t, gap)
			},
		},
	}
}

func fictionBookTags() map[string]tagRule {
	return map[string]tagRule{
		"description": hidden(),
		"binary":      hidden(),
		"stylesheet":  hidden(),

		"body": {
			start: func(f *formatter, t *markup.Token) {
				f.pageBreak("")
				if name, ok := t.Attr("name"); ok && name == "notes" {
					f.styles.Push(t.Name, func(st *Style) { st.Font.Size *= 0.9 })
					return
				}
				f.styles.Push(t.Name, nil)
			},
			end: popTag,
		},
		"section": {
			start: func(f *formatter, t *markup.Token) {
				if f.sections == 0 {
					f.pageBreak("")
				} else {
					f.flushLine(true)
				}
				f.sections++
				f.styles.Push(t.Name, nil)
			},
			end: func(f *formatter, t *markup.Token) {
				f.flushLine(true)
				f.sections = max(f.sections-1, 0)
				f.styles.Pop(t.Name)
			},
			anchor: true,
		},
		"title": {
			start: func(f *formatter, t *markup.Token) {
				level := min(f.sections+1, 5)
				f.heading(t, level, AlignCenter)
			},
			end: func(f *formatter, t *markup.Token) { f.endHeading(t) },
		},
		"subtitle": blockRule(func(_ *formatter, _ *markup.Token, st *Style) {
			st.Align = AlignCenter
			st.Font.Style |= Bold
		}, paragraphGap),
		"p": {
			start: func(f *formatter, t *markup.Token) {
				f.block(t, nil)
				// paragraphs of titles and verses are not indented
				f.indentPending = !f.styles.Has("title") && !f.styles.Has("stanza")
			},
			end: func(f *formatter, t *markup.Token) {
				f.indentPending = false
				f.endBlock(t, f.cfg.ParagraphGap)
			},
		},
		"v": blockRule(nil, nil),
		"poem": blockRule(func(f *formatter, _ *markup.Token, st *Style) {
			st.Align = AlignLeft
			st.Margin += 2 * f.cfg.FontSize
		}, paragraphGap),
		"stanza": blockRule(nil, paragraphGap),
		"epigraph": blockRule(func(f *formatter, _ *markup.Token, st *Style) {
			st.Align = AlignRight
			st.Font.Style |= Italic
			st.Margin += f.cfg.Width / 3
		}, paragraphGap),
		"cite": blockRule(func(f *formatter, _ *markup.Token, st *Style) {
			st.Font.Style |= Italic
			st.Margin += 2 * f.cfg.FontSize
		}, paragraphGap),
		"text-author": blockRule(func(_ *formatter, _ *markup.Token, st *Style) {
			st.Align = AlignRight
			st.Font.Style |= Italic
		}, nil),
		"annotation": blockRule(func(_ *formatter, _ *markup.Token, st *Style) { st.Font.Style |= Italic }, paragraphGap),

		"emphasis":      fontStyle(Italic),
		"strong":        fontStyle(Bold),
		"strikethrough": fontStyle(Strike),
		"sup":           fontScale(0.7),
		"sub":           fontScale(0.7),
		"code":          inline(monospace),
		"style":         inline(func(*formatter, *markup.Token, *Style) {}),

		"empty-line": {start: func(f *formatter, _ *markup.Token) { f.lineBreak() }},
		"image": {start: func(f *formatter, t *markup.Token) {
			ref, ok := hrefAttr(t)
			if !ok {
				return
			}
			block := !f.styles.Has("p") && !f.styles.Has("v")
			if block {
				f.flushLine(true)
				f.styles.Push("image", func(st *Style) { st.Align = AlignCenter })
			}
			f.image(ref)
			if block {
				f.flushLine(true)
				f.styles.Pop("image")
			}
		}},
		"a": {
			start: func(f *formatter, t *markup.Token) {
				if ref, ok := hrefAttr(t); ok {
					f.startLink(ref)
				}
			},
			end:    func(f *formatter, _ *markup.Token) { f.endLink() },
			anchor: true,
		},
	}
}
