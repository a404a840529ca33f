package layout

// Style is the formatting state in effect for content.
type Style struct {
	Font   Font
	Align  Align
	Margin float64 // left margin of block content
	Pre    bool    // keep whitespace and line breaks
	Hidden bool    // content is not laid out (head, style, metadata)
}

type styleFrame struct {
	tag   string
	style Style
}

// StyleStack tracks style changes as tags nest. Every frame remembers the tag
// which pushed it, so popping tolerates unbalanced markup: closing a tag drops
// every frame opened after it, closing a tag which was never opened does
// nothing.
type StyleStack struct {
	frames []styleFrame
}

// NewStyleStack creates stack with base style which can never be popped.
func NewStyleStack(base Style) *StyleStack {
	return &StyleStack{frames: []styleFrame{{style: base}}}
}

// Current returns style on top of the stack.
func (s *StyleStack) Current() Style {
	return s.frames[len(s.frames)-1].style
}

// Push adds frame for tag, starting with a copy of the current style which
// change may modify.
func (s *StyleStack) Push(tag string, change func(*Style)) {
	st := s.Current()
	if change != nil {
		change(&st)
	}
	s.frames = append(s.frames, styleFrame{tag: tag, style: st})
}

// Pop removes the most recent frame pushed by tag together with every frame
// above it. Returns false when no such frame exists.
func (s *StyleStack) Pop(tag string) bool {
	for i := len(s.frames) - 1; i > 0; i-- {
		if s.frames[i].tag == tag {
			s.frames = s.frames[:i]
			return true
		}
	}
	return false
}

// Has reports whether tag has an open frame.
func (s *StyleStack) Has(tag string) bool {
	for i := len(s.frames) - 1; i > 0; i-- {
		if s.frames[i].tag == tag {
			return true
		}
	}
	return false
}

// Count returns number of open frames pushed by tag.
func (s *StyleStack) Count(tag string) int {
	n := 0
	for i := len(s.frames) - 1; i > 0; i-- {
		if s.frames[i].tag == tag {
			n++
		}
	}
	return n
}

// Depth returns number of frames above the base.
func (s *StyleStack) Depth() int {
	return len(s.frames) - 1
}
