package book

import (
	"iter"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"reflow/markup"
)

type heading struct {
	level int
	id    string
	title string
}

// scanHTML collects document title, language and headings carrying ids.
func scanHTML(tokens iter.Seq[markup.Token]) (title, lang string, hs []heading) {
	var (
		cur     *heading
		inTitle bool
		text    strings.Builder
	)
	for t := range tokens {
		switch t.Kind {
		case markup.Error:
			return title, lang, hs
		case markup.StartTag, markup.SelfClosingTag:
			switch {
			case t.Name == "html":
				lang, _ = t.AttrAny("lang", "xml:lang")
			case t.Name == "title" && len(title) == 0:
				inTitle = true
				text.Reset()
			case cur == nil && isHeading(t.Name):
				cur = &heading{level: int(t.Name[1] - '0')}
				cur.id, _ = t.Attr("id")
				text.Reset()
			case cur != nil && len(cur.id) == 0:
				// <h2><a id="x"/>Title</h2>
				cur.id, _ = t.AttrAny("id", "name")
			}
		case markup.EndTag:
			switch {
			case t.Name == "title" && inTitle:
				inTitle = false
				title = collapse(text.String())
			case cur != nil && isHeading(t.Name):
				if cur.title = collapse(text.String()); len(cur.id) > 0 && len(cur.title) > 0 {
					hs = append(hs, *cur)
				}
				cur = nil
			}
		case markup.Text:
			if inTitle || cur != nil {
				text.Write(t.Text)
			}
		}
	}
	return title, lang, hs
}

func isHeading(name string) bool {
	if len(name) != 2 || name[0] != 'h' {
		return false
	}
	n, err := strconv.Atoi(name[1:])
	return err == nil && n >= 1 && n <= 6
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// navOutline builds XHTML nav document from headings, nesting follows
// heading levels.
func navOutline(hs []heading) ([]byte, error) {
	if len(hs) == 0 {
		return nil, nil
	}
	doc := etree.NewDocument()
	nav := doc.CreateElement("nav")
	nav.CreateAttr("epub:type", "toc")

	type frame struct {
		level  int
		li, ol *etree.Element
	}
	stack := []frame{{ol: nav.CreateElement("ol")}}
	for _, h := range hs {
		for len(stack) > 1 && stack[len(stack)-1].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		top := &stack[len(stack)-1]
		if top.ol == nil {
			top.ol = top.li.CreateElement("ol")
		}
		li := top.ol.CreateElement("li")
		a := li.CreateElement("a")
		a.CreateAttr("href", "#"+h.id)
		a.SetText(h.title)
		stack = append(stack, frame{level: h.level, li: li})
	}
	return doc.WriteToBytes()
}
