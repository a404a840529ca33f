package book

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"reflow/archive"
	"reflow/state"
	"reflow/utils/images"
)

const containerPath = "META-INF/container.xml"

type manifestItem struct {
	href       string // full path inside archive
	mediaType  string
	properties string
}

func readXML(r *archive.Reader, name string) (*etree.Document, error) {
	data, err := r.ReadFile(name)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Permissive:    true,
	}
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", name, err)
	}
	return doc, nil
}

// hrefPath converts manifest href relative to dir into path inside archive.
func hrefPath(dir, href string) string {
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	href, _, _ = strings.Cut(href, "#")
	return cleanKey(path.Join(dir, href))
}

func loadEPUB(ctx context.Context, b *Book, data []byte, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

	r, err := archive.NewReader(data, env.CodePage)
	if err != nil {
		return err
	}
	defer r.Close()

	container, err := readXML(r, containerPath)
	if err != nil {
		return err
	}
	rootfile := container.FindElement("//rootfile")
	if rootfile == nil {
		return errors.New("container has no rootfile")
	}
	opfPath := rootfile.SelectAttrValue("full-path", "")
	if len(opfPath) == 0 {
		return errors.New("rootfile has no path")
	}
	opf, err := readXML(r, opfPath)
	if err != nil {
		return err
	}
	pkg := opf.Root()
	if pkg == nil {
		return errors.New("package document is empty")
	}
	opfDir := path.Dir(opfPath)

	if md := pkg.SelectElement("metadata"); md != nil {
		readMetadata(b, pkg, md)
	}

	manifest := make(map[string]manifestItem)
	var order []string
	if m := pkg.SelectElement("manifest"); m != nil {
		for _, it := range m.SelectElements("item") {
			id := it.SelectAttrValue("id", "")
			href := it.SelectAttrValue("href", "")
			if len(id) == 0 || len(href) == 0 {
				continue
			}
			order = append(order, id)
			manifest[id] = manifestItem{
				href:       hrefPath(opfDir, href),
				mediaType:  it.SelectAttrValue("media-type", ""),
				properties: it.SelectAttrValue("properties", ""),
			}
		}
	}

	for _, id := range order {
		it := manifest[id]
		if !strings.HasPrefix(it.mediaType, "image/") {
			continue
		}
		img, err := r.ReadFile(it.href)
		if err != nil {
			log.Warn("Manifest image is missing", zap.String("id", id), zap.String("href", it.href), zap.Error(err))
			continue
		}
		if format, ok := images.Sniff(img); !ok || format != images.FormatFromMime(it.mediaType) {
			log.Debug("Image media type does not match content", zap.String("href", it.href), zap.String("media-type", it.mediaType))
		}
		if err := b.Images.Add(it.href, img); err != nil {
			log.Warn("Skipping image", zap.Error(err))
		}
	}

	spine := pkg.SelectElement("spine")
	if spine == nil {
		return errors.New("package has no spine")
	}

	var out bytes.Buffer
	for _, ref := range spine.SelectElements("itemref") {
		if err := ctx.Err(); err != nil {
			return err
		}
		idref := ref.SelectAttrValue("idref", "")
		it, ok := manifest[idref]
		if !ok {
			log.Warn("Spine references unknown item", zap.String("idref", idref))
			continue
		}
		chapter, err := r.ReadFile(it.href)
		if err != nil {
			log.Warn("Chapter is missing", zap.String("href", it.href), zap.Error(err))
			continue
		}
		if chapter, err = toUTF8(chapter, it.mediaType); err != nil {
			log.Warn("Skipping chapter", zap.String("href", it.href), zap.Error(err))
			continue
		}
		fmt.Fprintf(&out, `<pagebreak src="%s"/>`, html.EscapeString(it.href))
		out.Write(chapter)
		out.WriteByte('\n')
	}
	if out.Len() == 0 {
		return errors.New("book has no readable chapters")
	}
	b.Markup = out.Bytes()

	if outline := findOutline(spine, order, manifest); len(outline) > 0 {
		if b.Outline, err = r.ReadFile(outline); err != nil {
			log.Warn("Outline is missing", zap.String("href", outline), zap.Error(err))
		} else if b.Outline, err = toUTF8(b.Outline, ""); err != nil {
			log.Warn("Unable to decode outline", zap.String("href", outline), zap.Error(err))
			b.Outline = nil
		}
		b.OutlineXML = true
	}
	return nil
}

func readMetadata(b *Book, pkg, md *etree.Element) {
	if el := md.SelectElement("title"); el != nil {
		b.Title = strings.TrimSpace(el.Text())
	}
	for _, el := range md.SelectElements("creator") {
		if name := strings.TrimSpace(el.Text()); len(name) > 0 {
			b.Authors = append(b.Authors, name)
		}
	}
	if el := md.SelectElement("language"); el != nil {
		b.Language = strings.TrimSpace(el.Text())
	}

	uid := pkg.SelectAttrValue("unique-identifier", "")
	var ident string
	for _, el := range md.SelectElements("identifier") {
		if len(ident) == 0 || el.SelectAttrValue("id", "") == uid {
			ident = strings.TrimSpace(el.Text())
		}
	}
	b.ID = bookID(ident)
}

// bookID turns book identifier into uuid. Identifiers which are not uuids
// are hashed.
func bookID(ident string) uuid.UUID {
	if len(ident) == 0 {
		return uuid.Nil
	}
	lower := strings.ToLower(ident)
	lower = strings.TrimPrefix(lower, "urn:")
	lower = strings.TrimPrefix(lower, "uuid:")
	if id, err := uuid.Parse(lower); err == nil {
		return id
	}
	return uuid.NewSHA1(namespace, []byte(ident))
}

// findOutline returns path of the navigation document, EPUB 3 nav is
// preferred over NCX. Both are read as XML.
func findOutline(spine *etree.Element, order []string, manifest map[string]manifestItem) string {
	for _, id := range order {
		if slices.Contains(strings.Fields(manifest[id].properties), "nav") {
			return manifest[id].href
		}
	}
	if it, ok := manifest[spine.SelectAttrValue("toc", "")]; ok {
		return it.href
	}
	for _, id := range order {
		if manifest[id].mediaType == "application/x-dtbncx+xml" {
			return manifest[id].href
		}
	}
	return ""
}
