package book

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"reflow/layout"
)

// commonEntities are HTML named character references found in FB2 files
// produced by sloppy converters, XML parser does not know them.
var commonEntities = []string{
	"nbsp", "shy", "laquo", "raquo", "ldquo", "rdquo", "lsquo", "rsquo",
	"bdquo", "sbquo", "mdash", "ndash", "hellip", "copy", "reg", "trade",
	"deg", "middot", "bull", "times", "minus", "para", "sect", "euro",
}

func htmlEntities() map[string]string {
	m := make(map[string]string, len(commonEntities))
	for _, name := range commonEntities {
		m[name] = html.UnescapeString("&" + name + ";")
	}
	return m
}

func loadFB2(ctx context.Context, b *Book, data []byte, log *zap.Logger) error {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Entity:        htmlEntities(),
		Permissive:    true,
	}
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("unable to read FB2: %w", err)
	}
	root := doc.SelectElement("FictionBook")
	if root == nil {
		return errors.New("FictionBook element not found")
	}

	if desc := root.SelectElement("description"); desc != nil {
		readDescription(b, desc)
	}

	for _, bin := range root.SelectElements("binary") {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := bin.SelectAttrValue("id", "")
		raw, err := base64.StdEncoding.DecodeString(strings.Map(dropSpace, bin.Text()))
		switch {
		case len(id) == 0:
			log.Warn("Binary without id, skipping")
		case err != nil:
			log.Warn("Unable to decode binary, skipping", zap.String("id", id), zap.Error(err))
		default:
			if err := b.Images.Add(id, raw); err != nil {
				log.Warn("Skipping image", zap.Error(err))
			}
		}
		root.RemoveChild(bin)
	}

	ids := newIDSet(root)
	nav := etree.NewDocument()
	navMap := nav.CreateElement("ncx").CreateElement("navMap")
	for _, body := range root.SelectElements("body") {
		if len(body.SelectAttrValue("name", "")) > 0 {
			// notes and comments
			continue
		}
		outlineSections(body, navMap, ids)
	}

	// content was decoded from the declared encoding already
	var decls []etree.Token
	for _, t := range doc.Child {
		if _, ok := t.(*etree.ProcInst); ok {
			decls = append(decls, t)
		}
	}
	for _, t := range decls {
		doc.RemoveChild(t)
	}
	out, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("unable to serialize FB2: %w", err)
	}

	b.Markup = out
	b.XML = true
	b.Dialect = layout.FictionBook
	if len(navMap.ChildElements()) > 0 {
		if b.Outline, err = nav.WriteToBytes(); err != nil {
			return fmt.Errorf("unable to serialize outline: %w", err)
		}
		b.OutlineXML = true
	}
	return nil
}

func dropSpace(r rune) rune {
	if unicode.IsSpace(r) {
		return -1
	}
	return r
}

func readDescription(b *Book, desc *etree.Element) {
	if ti := desc.SelectElement("title-info"); ti != nil {
		if el := ti.SelectElement("book-title"); el != nil {
			b.Title = strings.TrimSpace(el.Text())
		}
		for _, a := range ti.SelectElements("author") {
			var parts []string
			for _, tag := range []string{"first-name", "middle-name", "last-name"} {
				if el := a.SelectElement(tag); el != nil && len(strings.TrimSpace(el.Text())) > 0 {
					parts = append(parts, strings.TrimSpace(el.Text()))
				}
			}
			if len(parts) == 0 {
				if el := a.SelectElement("nickname"); el != nil {
					parts = append(parts, strings.TrimSpace(el.Text()))
				}
			}
			if name := strings.Join(parts, " "); len(name) > 0 {
				b.Authors = append(b.Authors, name)
			}
		}
		if el := ti.SelectElement("lang"); el != nil {
			b.Language = strings.TrimSpace(el.Text())
		}
	}
	if di := desc.SelectElement("document-info"); di != nil {
		if el := di.SelectElement("id"); el != nil {
			b.ID = bookID(strings.TrimSpace(el.Text()))
		}
	}
}

type idSet struct {
	used map[string]bool
	next int
}

func newIDSet(root *etree.Element) *idSet {
	s := &idSet{used: make(map[string]bool)}
	for _, el := range root.FindElements("//*[@id]") {
		s.used[el.SelectAttrValue("id", "")] = true
	}
	return s
}

// ensure returns id of the element assigning unused one when it has none.
func (s *idSet) ensure(el *etree.Element) string {
	if id := el.SelectAttrValue("id", ""); len(id) > 0 {
		return id
	}
	for {
		s.next++
		id := fmt.Sprintf("section_%d", s.next)
		if !s.used[id] {
			s.used[id] = true
			el.CreateAttr("id", id)
			return id
		}
	}
}

// outlineSections adds navigation points for titled sections of parent.
// Sections without title do not get own entry, their children are lifted
// one level up.
func outlineSections(parent, nav *etree.Element, ids *idSet) {
	for _, sec := range parent.SelectElements("section") {
		title := sectionTitle(sec)
		if len(title) == 0 {
			outlineSections(sec, nav, ids)
			continue
		}
		point := nav.CreateElement("navPoint")
		point.CreateElement("navLabel").CreateElement("text").SetText(title)
		point.CreateElement("content").CreateAttr("src", "#"+ids.ensure(sec))
		outlineSections(sec, point, ids)
	}
}

func sectionTitle(sec *etree.Element) string {
	t := sec.SelectElement("title")
	if t == nil {
		return ""
	}
	var parts []string
	for _, p := range t.SelectElements("p") {
		if s := strings.Join(strings.Fields(textOf(p)), " "); len(s) > 0 {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// textOf returns concatenated character data of element and its descendants.
func textOf(el *etree.Element) string {
	var sb strings.Builder
	for _, t := range el.Child {
		switch v := t.(type) {
		case *etree.CharData:
			sb.WriteString(v.Data)
		case *etree.Element:
			sb.WriteString(textOf(v))
		}
	}
	return sb.String()
}
