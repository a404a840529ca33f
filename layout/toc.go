package layout

import (
	"iter"
	"strings"

	"reflow/markup"
	"reflow/utils/debug"
)

// TocItem is an entry of the table of contents. Level is nesting depth the
// entry was found at.
type TocItem struct {
	Title    string
	Target   string
	Dest     *Destination
	Children []*TocItem
	Level    int
}

// BuildTocTree builds table of contents from outline markup (NCX navMap or
// XHTML nav). Returned item is a synthetic root whose children are top level
// entries, nil when outline has no entries. When resolver is nil
// destinations are left for Resolve.
func BuildTocTree(tokens iter.Seq[markup.Token], r Resolver) *TocItem {
	b := tocBuilder{root: &TocItem{Level: -1}}
	for tok := range tokens {
		if tok.Kind == markup.Error {
			break
		}
		b.token(&tok)
	}
	b.flush()

	if len(b.root.Children) == 0 {
		return nil
	}
	if r != nil {
		b.root.Resolve(r)
	}
	return b.root
}

// Resolve resolves destinations of the item and all its descendants.
func (t *TocItem) Resolve(r Resolver) {
	t.Walk(func(item *TocItem, _ int) bool {
		if len(item.Target) > 0 {
			item.Dest = r.ResolveDestination(item.Target)
		}
		return true
	})
}

// Walk calls fn for every descendant of t in document order with its depth
// (children of t have depth 0). Children of an item are skipped when fn
// returns false.
func (t *TocItem) Walk(fn func(item *TocItem, depth int) bool) {
	var walk func(items []*TocItem, depth int)
	walk = func(items []*TocItem, depth int) {
		for _, item := range items {
			if fn(item, depth) {
				walk(item.Children, depth+1)
			}
		}
	}
	walk(t.Children, 0)
}

// Count returns number of descendants.
func (t *TocItem) Count() int {
	n := 0
	t.Walk(func(*TocItem, int) bool { n++; return true })
	return n
}

func (t *TocItem) String() string {
	tw := debug.NewTreeWriter()
	t.Walk(func(item *TocItem, depth int) bool {
		switch {
		case item.Dest.IsExternal():
			tw.Line(depth, "%q -> %s", item.Title, item.Dest.URL)
		case item.Dest != nil:
			tw.Line(depth, "%q -> page %d", item.Title, item.Dest.Page)
		default:
			tw.Line(depth, "%q -> %q", item.Title, item.Target)
		}
		return true
	})
	return tw.String()
}

type tocBuilder struct {
	root    *TocItem
	pending *TocItem
	title   strings.Builder
	level   int
	label   int // depth inside elements carrying entry title
	skip    int // depth inside navigation which is not a table of contents
	skipTag string
}

func (b *tocBuilder) token(t *markup.Token) {
	if b.skip > 0 {
		if t.Name == b.skipTag {
			switch t.Kind {
			case markup.StartTag:
				b.skip++
			case markup.EndTag:
				b.skip--
			}
		}
		return
	}

	switch t.Kind {
	case markup.StartTag, markup.SelfClosingTag:
		b.start(t)
		if t.Kind == markup.SelfClosingTag {
			b.end(t)
		}
	case markup.EndTag:
		b.end(t)
	case markup.Text:
		if b.pending != nil && b.label > 0 {
			b.title.Write(t.Text)
		}
	}
}

func (b *tocBuilder) start(t *markup.Token) {
	switch t.Name {
	case "nav":
		if kind, ok := t.AttrAny("epub:type", "type", "role"); ok && !strings.Contains(strings.ToLower(kind), "toc") {
			b.skip, b.skipTag = 1, t.Name
		}
	case "pagelist", "navlist":
		b.skip, b.skipTag = 1, t.Name
	case "navpoint", "li":
		b.flush()
		b.level++
		b.pending = &TocItem{Level: b.level - 1}
	case "text", "a", "span", "navlabel":
		b.label++
		if t.Name == "a" && b.pending != nil && len(b.pending.Target) == 0 {
			if href, ok := t.Attr("href"); ok {
				b.pending.Target = strings.TrimSpace(href)
			}
		}
	case "content":
		if b.pending != nil && len(b.pending.Target) == 0 {
			if src, ok := t.Attr("src"); ok {
				b.pending.Target = strings.TrimSpace(src)
			}
		}
	}
}

func (b *tocBuilder) end(t *markup.Token) {
	switch t.Name {
	case "navpoint", "li":
		b.flush()
		b.level = max(b.level-1, 0)
	case "text", "a", "span", "navlabel":
		b.label = max(b.label-1, 0)
	}
}

// flush inserts pending entry into the tree.
func (b *tocBuilder) flush() {
	item := b.pending
	b.pending = nil
	title := strings.Join(strings.Fields(b.title.String()), " ")
	b.title.Reset()
	if item == nil || len(title) == 0 && len(item.Target) == 0 {
		return
	}
	item.Title = title
	insertTocItem(b.root, item)
}

// insertTocItem attaches item at its level: starting from root it descends
// into the last child Level times, stopping early where there are no
// children, and appends item there.
func insertTocItem(root, item *TocItem) {
	node := root
	for range item.Level {
		if len(node.Children) == 0 {
			break
		}
		node = node.Children[len(node.Children)-1]
	}
	node.Children = append(node.Children, item)
}
