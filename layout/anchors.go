package layout

// AnchorEntry is a named location found on a page. Base is the path of the
// sub-document the anchor belongs to (empty before the first base marker),
// IsBase marks the base anchor itself.
type AnchorEntry struct {
	ID     string
	Page   int
	Base   string
	Box    Rect
	IsBase bool
}

// extractAnchors walks pages once and returns anchors in page order together
// with base path in effect for every page. A page without base anchor of its
// own inherits base of the previous page, a page with several takes the last.
func extractAnchors(pages []*Page) ([]AnchorEntry, []string) {
	var (
		anchors []AnchorEntry
		bases   = make([]string, len(pages))
		base    string
	)
	for i, p := range pages {
		for j := range p.Instructions {
			in := &p.Instructions[j]
			if in.Kind != InstrAnchor {
				continue
			}
			id := string(in.Data)
			if in.Base {
				base = id
			}
			anchors = append(anchors, AnchorEntry{ID: id, Page: i + 1, Base: base, Box: in.Box, IsBase: in.Base})
		}
		bases[i] = base
	}
	return anchors, bases
}

// prunePages drops pages without visible content. Anchors found on a dropped
// page move to the top of the next kept page, or to the bottom of the last one
// when nothing follows.
func prunePages(pages []*Page) []*Page {
	var (
		out   = pages[:0]
		carry []Instr
	)
	for _, p := range pages {
		if p.IsEmpty() {
			for _, in := range p.Instructions {
				if in.Kind == InstrAnchor {
					in.Box = Rect{X: in.Box.X}
					carry = append(carry, in)
				}
			}
			continue
		}
		if len(carry) > 0 {
			p.Instructions = append(carry, p.Instructions...)
			carry = nil
		}
		out = append(out, p)
	}
	if len(carry) > 0 && len(out) > 0 {
		last := out[len(out)-1]
		var bottom float64
		for i := range last.Instructions {
			if last.Instructions[i].Visible() {
				bottom = max(bottom, last.Instructions[i].Box.Bottom())
			}
		}
		for i := range carry {
			carry[i].Box = Rect{Y: bottom}
		}
		last.Instructions = append(last.Instructions, carry...)
	}
	return out
}
