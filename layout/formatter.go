package layout

import (
	"errors"
	"fmt"
	"iter"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"reflow/css"
	"reflow/markup"
)

// Config describes how token stream is laid out.
type Config struct {
	Width  float64 // content width of a page in layout units
	Height float64 // content height of a page in layout units

	FontFamily string
	FontSize   float64
	Align      Align // default alignment of text

	LineGap      float64 // added to the height of every line
	ParagraphGap float64 // vertical space after a paragraph
	HeadingGap   float64 // vertical space after a heading
	Indent       float64 // first line indent of paragraphs

	Dialect *Dialect    // tag table, Reflow when nil
	Metrics FontMetrics // text measurement, required
	Images  ImageSource // image lookup, images are skipped when nil
	Arena   *Arena      // allocator for decoded text, new one when nil
	Log     *zap.Logger
}

// DefaultConfig returns configuration for a "B format" paperback page at 96
// DPI with 0.4 inch borders, the bundled Go fonts and justified text.
func DefaultConfig() Config {
	const dpi, border = 96, 0.4 * 96
	return Config{
		Width:      5.12*dpi - 2*border,
		Height:     7.8*dpi - 2*border,
		FontFamily: "serif",
		FontSize:   11,
		Align:      AlignJustify,
		HeadingGap: 10,
		Dialect:    Reflow,
		Metrics:    NewOpenTypeMetrics(),
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("page size must be positive, got %gx%g", c.Width, c.Height))
	}
	if c.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("font size must be positive, got %g", c.FontSize))
	}
	if c.Metrics == nil {
		errs = append(errs, errors.New("font metrics are required"))
	}
	return errors.Join(errs...)
}

type formatter struct {
	cfg     Config
	log     *zap.Logger
	dialect *Dialect
	css     *css.Parser
	styles  *StyleStack
	line    lineBuilder
	pages   *paginator
	fonts   fontTable
	arena   *Arena
	spaces  map[FontRef]float64

	reparse       int
	base          string
	pendingSpace  bool
	indentPending bool
	inLink        bool
	lastFont      FontRef
	partial       bool
	sections      int // open FictionBook sections
}

// Format lays out token stream into pages. Stream is consumed once. When
// tokenizer reports an error formatting stops and document produced so far is
// returned marked as partial. Error is returned only for invalid
// configuration.
func Format(tokens iter.Seq[markup.Token], cfg Config) (*Document, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid layout configuration: %w", err)
	}
	f := newFormatter(cfg)
	f.log.Debug("Formatting starting", zap.String("dialect", f.dialect.Name),
		zap.Float64("width", cfg.Width), zap.Float64("height", cfg.Height))

	for tok := range tokens {
		f.reparse = tok.Offset
		if f.pages.blank() {
			f.pages.reparse = tok.Offset
		}

		switch tok.Kind {
		case markup.Error:
			f.partial = true
			f.log.Warn("Markup is malformed, formatting stopped", zap.Int("offset", tok.Offset), zap.Error(tok.Err))
		case markup.Text:
			f.text(tok.Text)
		case markup.StartTag:
			f.startTag(&tok)
		case markup.SelfClosingTag:
			f.startTag(&tok)
			f.endTag(&tok)
		case markup.EndTag:
			f.endTag(&tok)
		}
		if f.partial {
			break
		}
	}

	pages := f.finish()
	doc := newDocument(pages, f.fonts.list, f.arena, cfg.Metrics, f.partial)
	f.log.Debug("Formatting completed", zap.Int("pages", len(doc.pages)),
		zap.Int("anchors", len(doc.anchors)), zap.Int("arena", f.arena.Size()), zap.Bool("partial", f.partial))
	return doc, nil
}

func newFormatter(cfg Config) *formatter {
	f := &formatter{
		cfg:      cfg,
		log:      cfg.Log,
		dialect:  cfg.Dialect,
		arena:    cfg.Arena,
		spaces:   make(map[FontRef]float64),
		lastFont: -1,
	}
	if f.log == nil {
		f.log = zap.NewNop()
	}
	f.log = f.log.Named("layout")
	if f.dialect == nil {
		f.dialect = Reflow
	}
	if f.arena == nil {
		f.arena = NewArena()
	}
	f.css = css.NewParser(f.log)
	f.styles = NewStyleStack(Style{
		Font:  Font{Family: cfg.FontFamily, Size: cfg.FontSize},
		Align: cfg.Align,
	})
	f.pages = newPaginator(cfg.Height)
	return f
}

// finish performs final flush, seals last page and drops pages which carry
// nothing visible.
func (f *formatter) finish() []*Page {
	f.endLink()
	f.flushLine(true)
	if len(f.line.items) > 0 {
		f.pages.placeMarkers(f.line.takeMarkers())
	}
	return prunePages(f.pages.finish())
}

func (f *formatter) startTag(t *markup.Token) {
	rule := f.dialect.tags[t.Name]
	if rule.start != nil {
		rule.start(f, t)
	}
	if f.styles.Current().Hidden {
		return
	}
	id, _ := t.Attr("id")
	if rule.anchor && len(id) == 0 {
		id, _ = t.Attr("name")
	}
	if rule.anchor || len(id) > 0 {
		f.anchor(id)
	}
}

func (f *formatter) endTag(t *markup.Token) {
	if rule := f.dialect.tags[t.Name]; rule.end != nil {
		rule.end(f, t)
	}
}

// text lays out words of a text token.
func (f *formatter) text(raw []byte) {
	st := f.styles.Current()
	if st.Hidden || len(raw) == 0 {
		return
	}
	text := f.intern(raw)
	if st.Pre {
		f.preformatted(text)
		return
	}
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRune(text[i:])
		if isBreakingSpace(r) {
			f.pendingSpace = true
			i += size
			continue
		}
		j := i + size
		for j < len(text) {
			r, size = utf8.DecodeRune(text[j:])
			if isBreakingSpace(r) {
				break
			}
			j += size
		}
		f.word(text[i:j])
		i = j
	}
}

// preformatted keeps line breaks and runs of spaces.
func (f *formatter) preformatted(text []byte) {
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRune(text[i:])
		switch {
		case r == '\n':
			f.lineBreak()
			i += size
		case r == '\r':
			i += size
		case isBreakingSpace(r):
			n := 0
			for i < len(text) {
				r, size = utf8.DecodeRune(text[i:])
				if r == '\n' || !isBreakingSpace(r) {
					break
				}
				if r == '\t' {
					n += 4
				} else {
					n++
				}
				i += size
			}
			f.pendingSpace = false
			f.fixedSpace(float64(n) * f.spaceWidth(f.styles.Current().Font))
		default:
			j := i + size
			for j < len(text) {
				r, size = utf8.DecodeRune(text[j:])
				if r == '\n' || r == '\r' || isBreakingSpace(r) {
					break
				}
				j += size
			}
			f.word(text[i:j])
			i = j
		}
	}
}

// intern copies decoded text into the arena, composing it into NFC first.
func (f *formatter) intern(raw []byte) []byte {
	if norm.NFC.QuickSpan(raw) == len(raw) {
		return f.arena.Copy(raw)
	}
	return f.arena.Copy(norm.NFC.Bytes(raw))
}

func isBreakingSpace(r rune) bool {
	switch r {
	case '\u00a0', '\u2007', '\u202f', '\u2060', '\ufeff':
		return false
	}
	return unicode.IsSpace(r)
}

// avail returns width available to the line under construction.
func (f *formatter) avail() float64 {
	return max(f.cfg.Width-f.line.margin, 1)
}

// startContent prepares line for the first visible item.
func (f *formatter) startContent() {
	if f.line.hasContent() {
		return
	}
	f.line.margin = min(f.styles.Current().Margin, f.cfg.Width*0.75)
	if f.indentPending {
		f.indentPending = false
		if f.cfg.Indent != 0 {
			st := f.styles.Current()
			ref := f.fonts.intern(st.Font)
			g := f.cfg.Metrics.Measure(st.Font, nil)
			f.line.add(Instr{Kind: InstrFixedSpace, Box: Rect{W: max(f.cfg.Indent, 0)}, Font: ref, Reparse: f.reparse}, g.Ascent, g.Descent)
		}
	}
}

// word adds a single unbreakable piece of text to the line wrapping it first
// when it does not fit. Text wider than a whole line is broken between runes.
func (f *formatter) word(w []byte) {
	st := f.styles.Current()
	ref := f.fonts.intern(st.Font)
	g := f.cfg.Metrics.Measure(st.Font, w)
	width := g.Width()

	f.startContent()
	var space float64
	if f.pendingSpace && f.line.hasContent() {
		space = f.spaceWidth(st.Font)
	}
	f.pendingSpace = false

	if f.line.hasContent() && f.line.x+space+width > f.avail() {
		f.flushLine(false)
		f.startContent()
		space = 0
	}
	if space > 0 {
		f.line.add(Instr{Kind: InstrElasticSpace, Box: Rect{W: space}, Font: ref, Reparse: f.reparse}, g.Ascent, g.Descent)
	}
	f.setFont(ref)

	if f.line.x+width <= f.avail() || len(g.Advances) < 2 {
		f.run(w, width, ref, g)
		return
	}

	// does not fit even on an empty line
	start, x, chunk := 0, f.line.x, 0.0
	k := 0
	for i := range string(w) {
		if k >= len(g.Advances) {
			break
		}
		adv := g.Advances[k]
		k++
		if x+adv > f.avail() && i > start {
			f.run(w[start:i], chunk, ref, g)
			f.flushLine(false)
			f.startContent()
			start, x, chunk = i, f.line.x, 0
		}
		x += adv
		chunk += adv
	}
	f.run(w[start:], chunk, ref, g)
}

func (f *formatter) run(text []byte, width float64, ref FontRef, g Glyphs) {
	f.line.add(Instr{Kind: InstrTextRun, Box: Rect{W: width}, Data: text, Font: ref, Reparse: f.reparse}, g.Ascent, g.Descent)
}

func (f *formatter) fixedSpace(width float64) {
	if width <= 0 {
		return
	}
	st := f.styles.Current()
	ref := f.fonts.intern(st.Font)
	g := f.cfg.Metrics.Measure(st.Font, nil)
	f.startContent()
	f.line.add(Instr{Kind: InstrFixedSpace, Box: Rect{W: width}, Font: ref, Reparse: f.reparse}, g.Ascent, g.Descent)
}

// setFont records font change in the instruction stream.
func (f *formatter) setFont(ref FontRef) {
	if ref == f.lastFont {
		return
	}
	f.lastFont = ref
	f.line.add(Instr{Kind: InstrSetFont, Font: ref, Reparse: f.reparse}, 0, 0)
}

// spaceWidth is a heuristic of size/2.5 corrected down to the width of the
// space glyph of the font when it is narrower.
func (f *formatter) spaceWidth(font Font) float64 {
	ref := f.fonts.intern(font)
	if w, ok := f.spaces[ref]; ok {
		return w
	}
	w := font.Size / 2.5
	if g := f.cfg.Metrics.Measure(font, []byte{' '}); len(g.Advances) == 1 && g.Advances[0] > 0 {
		w = min(w, g.Advances[0])
	}
	f.spaces[ref] = w
	return w
}

// lineHeight returns height of an empty line in the current font.
func (f *formatter) lineHeight() float64 {
	font := f.styles.Current().Font
	g := f.cfg.Metrics.Measure(font, nil)
	if h := g.Ascent + g.Descent; h > 0 {
		return h + f.cfg.LineGap
	}
	return font.Size + f.cfg.LineGap
}

// flushLine moves line under construction to the page. Line with nothing
// visible is not placed, its markers wait for the next line.
func (f *formatter) flushLine(paragraphEnd bool) {
	if !f.line.hasContent() {
		f.line.dropSpaces()
		return
	}
	items, height := f.line.finish(f.avail(), f.styles.Current().Align, paragraphEnd)
	f.pages.place(items, height+f.cfg.LineGap)
	f.line.reset()
}

// hidden reports whether content at this point is not displayed.
func (f *formatter) hidden() bool {
	return f.styles.Current().Hidden
}

// lineBreak ends current line, on an empty line it leaves a blank one.
func (f *formatter) lineBreak() {
	if f.hidden() {
		return
	}
	if f.line.hasContent() {
		f.flushLine(true)
		return
	}
	f.pages.gap(f.lineHeight())
}

// block ends current line and opens new block level frame.
func (f *formatter) block(t *markup.Token, change func(*Style)) {
	f.flushLine(true)
	f.pendingSpace = false
	f.push(t, change)
}

// endBlock ends current line, closes block frame and adds gap below.
func (f *formatter) endBlock(t *markup.Token, gap float64) {
	f.flushLine(true)
	f.pendingSpace = false
	f.styles.Pop(t.Name)
	f.pages.gap(gap)
}

// push opens style frame for tag applying change and then presentational
// attributes of the tag.
func (f *formatter) push(t *markup.Token, change func(*Style)) {
	f.styles.Push(t.Name, func(st *Style) {
		if change != nil {
			change(st)
		}
		f.applyAttrs(t, st)
	})
}

func (f *formatter) applyAttrs(t *markup.Token, st *Style) {
	if v, ok := t.Attr("align"); ok {
		if a, err := ParseAlign(v); err == nil {
			st.Align = a
		}
	}
	v, ok := t.Attr("style")
	if !ok {
		return
	}
	props := f.css.ParseInline([]byte(v))
	if p, ok := props["text-align"]; ok {
		if a, err := ParseAlign(p.Keyword); err == nil {
			st.Align = a
		}
	}
	if p, ok := props["font-size"]; ok {
		if size, ok := p.FontSize(st.Font.Size, f.cfg.FontSize); ok {
			st.Font.Size = size
		}
	}
	if p, ok := props["font-weight"]; ok {
		if p.IsBold() {
			st.Font.Style |= Bold
		} else if p.Keyword == "normal" || p.Keyword == "lighter" || (p.Keyword == "" && p.Value > 0) {
			st.Font.Style &^= Bold
		}
	}
	if p, ok := props["font-style"]; ok {
		switch p.Keyword {
		case "italic", "oblique":
			st.Font.Style |= Italic
		case "normal":
			st.Font.Style &^= Italic
		}
	}
	if p, ok := props["text-decoration"]; ok {
		switch p.Keyword {
		case "underline":
			st.Font.Style |= Underline
		case "line-through":
			st.Font.Style |= Strike
		case "none":
			st.Font.Style &^= Underline | Strike
		}
	}
	if p, ok := props["font-family"]; ok && len(p.Keyword) > 0 {
		st.Font.Family = p.Keyword
	}
	if p, ok := props["margin-left"]; ok {
		if px, ok := p.ToPixels(st.Font.Size, f.cfg.Width); ok && px > 0 {
			st.Margin += px
		}
	}
	if p, ok := props["display"]; ok && p.Keyword == "none" {
		st.Hidden = true
	}
}

// heading starts heading of the given level (1 is the largest).
func (f *formatter) heading(t *markup.Token, level int, align Align) {
	f.block(t, func(st *Style) {
		st.Align = align
		st.Font.Size = f.cfg.FontSize * (1 + float64(5-level)*0.2)
		st.Font.Style |= Bold
	})
}

func (f *formatter) endHeading(t *markup.Token) {
	f.endBlock(t, f.cfg.HeadingGap)
}

// pageBreak seals current page, when src is known it becomes the base of the
// following content and a base anchor is emitted.
func (f *formatter) pageBreak(src string) {
	if f.hidden() {
		return
	}
	f.flushLine(true)
	if len(f.line.items) > 0 {
		f.pages.placeMarkers(f.line.takeMarkers())
	}
	f.pages.pageBreak()
	f.pendingSpace = false
	if len(src) > 0 {
		f.base = src
		f.line.add(Instr{Kind: InstrAnchor, Data: f.arena.CopyString(src), Base: true, Reparse: f.reparse}, 0, 0)
	}
}

// anchor emits named location at the current position. Id may be empty.
func (f *formatter) anchor(id string) {
	f.line.add(Instr{Kind: InstrAnchor, Data: f.arena.CopyString(id), Reparse: f.reparse}, 0, 0)
}

func (f *formatter) startLink(target string) {
	if f.hidden() {
		return
	}
	f.endLink()
	f.line.add(Instr{Kind: InstrLinkStart, Data: f.arena.CopyString(target), Reparse: f.reparse}, 0, 0)
	f.inLink = true
}

func (f *formatter) endLink() {
	if !f.inLink {
		return
	}
	f.line.add(Instr{Kind: InstrLinkEnd, Reparse: f.reparse}, 0, 0)
	f.inLink = false
}

// image places image referenced from markup, missing images are skipped.
func (f *formatter) image(ref string) {
	if f.cfg.Images == nil || len(ref) == 0 || f.hidden() {
		return
	}
	img, ok := f.cfg.Images.LookupImage(ref, f.base)
	if !ok || img == nil || img.Width <= 0 || img.Height <= 0 {
		f.log.Debug("Image not found, skipping", zap.String("ref", ref), zap.String("scope", f.base))
		return
	}

	f.startContent()
	w, h := float64(img.Width), float64(img.Height)
	if avail := f.avail(); w > avail {
		h, w = h*avail/w, avail
	}
	var space float64
	if f.pendingSpace && f.line.hasContent() {
		space = f.spaceWidth(f.styles.Current().Font)
	}
	f.pendingSpace = false
	if f.line.hasContent() && f.line.x+space+w > f.avail() {
		f.flushLine(false)
		f.startContent()
		space = 0
	}
	if space > 0 {
		st := f.styles.Current()
		g := f.cfg.Metrics.Measure(st.Font, nil)
		f.line.add(Instr{Kind: InstrElasticSpace, Box: Rect{W: space}, Font: f.fonts.intern(st.Font), Reparse: f.reparse}, g.Ascent, g.Descent)
	}
	f.line.add(Instr{Kind: InstrImage, Box: Rect{W: w}, Image: img, Data: f.arena.CopyString(img.ID), Reparse: f.reparse}, h, 0)
}

// rule draws horizontal separator across available width.
func (f *formatter) rule() {
	if f.hidden() {
		return
	}
	f.flushLine(true)
	f.pendingSpace = false
	margin := min(f.styles.Current().Margin, f.cfg.Width*0.75)
	h := f.lineHeight()
	f.pages.place([]Instr{{
		Kind:    InstrLine,
		Box:     Rect{X: margin, Y: h / 2, W: f.cfg.Width - margin, H: 1},
		Reparse: f.reparse,
	}}, h)
}
