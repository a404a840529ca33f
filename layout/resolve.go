package layout

import (
	"net/url"
	"path"
	"strconv"
	"strings"
)

// FileposPrefix marks link targets which are byte offsets into the markup
// stream (Mobipocket "filepos" links).
const FileposPrefix = "filepos:"

// Destination is where link or TOC entry points to: a rectangle on a page or,
// when URL is set, something to be opened externally.
type Destination struct {
	Page int
	Box  Rect
	URL  string
}

// IsExternal reports whether destination is outside of the document.
func (d *Destination) IsExternal() bool {
	return d != nil && len(d.URL) > 0
}

// Resolver resolves raw link targets.
type Resolver interface {
	ResolveDestination(target string) *Destination
}

// ResolveDestination resolves link target ("id", "path#id", "path", URL) to
// destination. Returns nil when target cannot be found.
func (d *Document) ResolveDestination(target string) *Destination {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.resolve(target)
}

// ResolveLink resolves target of a link found on page n. Fragment only and
// relative targets are taken relative to the sub-document of that page.
func (d *Document) ResolveLink(n int, target string) *Destination {
	d.mu.Lock()
	defer d.mu.Unlock()

	target = strings.TrimSpace(target)
	if isExternal(target) || strings.HasPrefix(target, FileposPrefix) {
		return d.resolve(target)
	}
	if n >= 1 && n <= len(d.bases) && len(d.bases[n-1]) > 0 {
		base := d.bases[n-1]
		p, id, frag := strings.Cut(target, "#")
		q := base
		if len(p) > 0 {
			q = path.Join(path.Dir(base), p)
		}
		if frag {
			q += "#" + id
		}
		if dest := d.resolve(q); dest != nil {
			return dest
		}
	}
	return d.resolve(target)
}

// ResolveFilepos returns destination for a byte offset in the markup stream.
func (d *Document) ResolveFilepos(offset int) *Destination {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.filepos(offset)
}

func (d *Document) resolve(target string) *Destination {
	target = strings.TrimSpace(target)
	if len(target) == 0 {
		return nil
	}
	if isExternal(target) {
		return &Destination{URL: target}
	}
	if rest, ok := strings.CutPrefix(target, FileposPrefix); ok {
		offset, err := strconv.Atoi(rest)
		if err != nil {
			return nil
		}
		return d.filepos(offset)
	}

	p, id, frag := strings.Cut(target, "#")
	if len(p) == 0 {
		return d.findID(0, len(d.anchors), id)
	}
	if !frag {
		// bare word is an id first, path second
		if dest := d.findID(0, len(d.anchors), p); dest != nil {
			return dest
		}
	}

	k := d.findBase(p)
	if k < 0 {
		if len(id) > 0 {
			return d.findID(0, len(d.anchors), id)
		}
		return nil
	}
	if len(id) > 0 {
		end := k + 1
		for end < len(d.anchors) && !d.anchors[end].IsBase {
			end++
		}
		if dest := d.findID(k+1, end, id); dest != nil {
			return dest
		}
	}
	return destinationOf(&d.anchors[k])
}

// findID returns first anchor with id among entries [from, to).
func (d *Document) findID(from, to int, id string) *Destination {
	if len(id) == 0 {
		return nil
	}
	for i := from; i < to; i++ {
		a := &d.anchors[i]
		if !a.IsBase && strings.EqualFold(a.ID, id) {
			return destinationOf(a)
		}
	}
	return nil
}

// findBase returns index of the first base anchor whose path is p or ends
// with p on a segment boundary, -1 if there is none.
func (d *Document) findBase(p string) int {
	want := normalizePath(p)
	if len(want) == 0 {
		return -1
	}
	for i := range d.anchors {
		if !d.anchors[i].IsBase {
			continue
		}
		have := normalizePath(d.anchors[i].ID)
		if have == want || strings.HasSuffix(have, "/"+want) {
			return i
		}
	}
	return -1
}

func (d *Document) filepos(offset int) *Destination {
	n := d.pageForReparse(offset)
	if n == 0 {
		return nil
	}
	dest := &Destination{Page: n}
	for _, in := range d.pages[n-1].Instructions {
		if in.Reparse >= offset && (in.Visible() || in.Kind == InstrAnchor) {
			dest.Box = Rect{X: in.Box.X, Y: in.Box.Y, H: in.Box.H}
			break
		}
	}
	return dest
}

func destinationOf(a *AnchorEntry) *Destination {
	return &Destination{Page: a.Page, Box: a.Box}
}

func isExternal(target string) bool {
	return strings.Contains(target, "://") || len(target) > 7 && strings.EqualFold(target[:7], "mailto:")
}

// normalizePath brings path to a comparable form: unescaped, forward slashes,
// cleaned, without leading slash, lower case.
func normalizePath(p string) string {
	if s, err := url.PathUnescape(p); err == nil {
		p = s
	}
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	return strings.ToLower(p)
}
