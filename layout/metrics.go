package layout

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Glyphs is the result of measuring text: advance of every rune plus
// vertical extents of the font.
type Glyphs struct {
	Advances []float64
	Ascent   float64
	Descent  float64
}

// Width is the sum of advances.
func (g Glyphs) Width() float64 {
	var w float64
	for _, a := range g.Advances {
		w += a
	}
	return w
}

// FontMetrics measures text for layout.
type FontMetrics interface {
	Measure(f Font, text []byte) Glyphs
}

// FixedMetrics is a deterministic metrics model: every rune advances by
// Size*0.5 (spaces by Size*0.25), ascent is Size*0.8 and descent Size*0.2.
type FixedMetrics struct{}

func (FixedMetrics) Measure(f Font, text []byte) Glyphs {
	g := Glyphs{
		Advances: make([]float64, 0, utf8.RuneCount(text)),
		Ascent:   f.Size * 0.8,
		Descent:  f.Size * 0.2,
	}
	for _, r := range string(text) {
		if r == ' ' {
			g.Advances = append(g.Advances, f.Size*0.25)
		} else {
			g.Advances = append(g.Advances, f.Size*0.5)
		}
	}
	return g
}

type faceVariant int

const (
	variantRegular faceVariant = iota
	variantBold
	variantItalic
	variantBoldItalic
	variantMono
	variantMonoBold
	variantMonoItalic
	variantMonoBoldItalic
	variantCount
)

var goFontData = [variantCount][]byte{
	variantRegular:        goregular.TTF,
	variantBold:           gobold.TTF,
	variantItalic:         goitalic.TTF,
	variantBoldItalic:     gobolditalic.TTF,
	variantMono:           gomono.TTF,
	variantMonoBold:       gomonobold.TTF,
	variantMonoItalic:     gomonoitalic.TTF,
	variantMonoBoldItalic: gomonobolditalic.TTF,
}

type faceKey struct {
	variant faceVariant
	size    float64
}

// OpenTypeMetrics measures text with real OpenType faces. Any family name
// maps onto the bundled Go fonts unless replaced with SetFontData. Faces are
// cached, access is serialized since faces are not safe for concurrent use.
type OpenTypeMetrics struct {
	mu    sync.Mutex
	data  [variantCount][]byte
	fonts [variantCount]*opentype.Font
	faces map[faceKey]font.Face
}

// NewOpenTypeMetrics returns metrics backed by the Go font family.
func NewOpenTypeMetrics() *OpenTypeMetrics {
	m := &OpenTypeMetrics{faces: make(map[faceKey]font.Face)}
	m.data = goFontData
	return m
}

// SetFontData replaces font used for the given style of proportional (or
// monospaced) family with OpenType/TrueType data.
func (m *OpenTypeMetrics) SetFontData(mono bool, style FontStyle, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("unable to parse font data: %w", err)
	}
	v := variantOf(mono, style)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[v], m.fonts[v] = data, f
	for k, face := range m.faces {
		if k.variant == v {
			face.Close()
			delete(m.faces, k)
		}
	}
	return nil
}

func (m *OpenTypeMetrics) Measure(f Font, text []byte) Glyphs {
	var g Glyphs
	m.WithFace(f, func(face font.Face) {
		met := face.Metrics()
		g.Ascent, g.Descent = fromFixed(met.Ascent), fromFixed(met.Descent)
		g.Advances = make([]float64, 0, utf8.RuneCount(text))
		prev := rune(-1)
		for _, r := range string(text) {
			adv, ok := face.GlyphAdvance(r)
			if !ok {
				adv, _ = face.GlyphAdvance('?')
			}
			if prev >= 0 {
				adv += face.Kern(prev, r)
			}
			g.Advances = append(g.Advances, fromFixed(adv))
			prev = r
		}
	})
	return g
}

// WithFace calls fn with a face for the font while holding metrics lock.
func (m *OpenTypeMetrics) WithFace(f Font, fn func(font.Face)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	face, err := m.face(f)
	if err != nil {
		// bundled fonts always parse, replacement ones were checked in SetFontData
		panic(err)
	}
	fn(face)
}

func (m *OpenTypeMetrics) face(f Font) (font.Face, error) {
	key := faceKey{variant: variantOf(isMonoFamily(f.Family), f.Style), size: f.Size}
	if face, ok := m.faces[key]; ok {
		return face, nil
	}
	otf := m.fonts[key.variant]
	if otf == nil {
		var err error
		if otf, err = opentype.Parse(m.data[key.variant]); err != nil {
			return nil, err
		}
		m.fonts[key.variant] = otf
	}
	size := f.Size
	if size <= 0 {
		size = 1
	}
	// 72 DPI makes one point equal to one layout unit
	face, err := opentype.NewFace(otf, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, err
	}
	m.faces[key] = face
	return face, nil
}

func variantOf(mono bool, style FontStyle) faceVariant {
	v := variantRegular
	switch {
	case style&Bold != 0 && style&Italic != 0:
		v = variantBoldItalic
	case style&Bold != 0:
		v = variantBold
	case style&Italic != 0:
		v = variantItalic
	}
	if mono {
		v += variantMono
	}
	return v
}

func isMonoFamily(family string) bool {
	family = strings.ToLower(family)
	for _, s := range []string{"mono", "courier", "code", "consol", "fixed"} {
		if strings.Contains(family, s) {
			return true
		}
	}
	return false
}

func fromFixed(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
