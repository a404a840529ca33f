// Package preview rasterizes formatted pages for visual inspection.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/srwiley/rasterx"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"reflow/config"
	"reflow/layout"
	"reflow/utils/images"
)

var (
	inkColor  = color.RGBA{A: 0xFF}
	linkColor = color.RGBA{R: 0x20, G: 0x50, B: 0xC0, A: 0xFF}
)

// Options describe page geometry and look. Sizes are in layout units.
type Options struct {
	Width, Height float64 // content area of the page
	Margin        float64
	Scale         float64
	Background    color.Color
	ShowLinks     bool
}

// OptionsFromConfig builds options from configuration.
func OptionsFromConfig(lc *config.LayoutConfig, pc *config.PreviewConfig) (Options, error) {
	bg, err := ParseColor(pc.Background)
	if err != nil {
		return Options{}, err
	}
	w, h := lc.PageSize()
	return Options{
		Width:      w,
		Height:     h,
		Margin:     lc.Margin(),
		Scale:      pc.Scale,
		Background: bg,
		ShowLinks:  pc.ShowLinks,
	}, nil
}

// ParseColor parses "#rrggbb" or "#rgb" color.
func ParseColor(s string) (color.RGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("bad color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}, nil
}

// Renderer draws pages of documents formatted with the same metrics.
type Renderer struct {
	metrics *layout.OpenTypeMetrics
	opts    Options
	log     *zap.Logger

	decoded map[*layout.Image]image.Image
}

func NewRenderer(m *layout.OpenTypeMetrics, opts Options, log *zap.Logger) *Renderer {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.Background == nil {
		opts.Background = color.White
	}
	return &Renderer{
		metrics: m,
		opts:    opts,
		log:     log.Named("preview"),
		decoded: make(map[*layout.Image]image.Image),
	}
}

func (r *Renderer) px(v float64) float64 {
	return v * r.opts.Scale
}

// Render draws page n (1 based) of the document.
func (r *Renderer) Render(doc *layout.Document, n int) (*image.RGBA, error) {
	if n < 1 || n > doc.PageCount() {
		return nil, fmt.Errorf("page %d is out of range 1..%d", n, doc.PageCount())
	}
	page := doc.Page(n)

	w := int(math.Ceil(r.px(r.opts.Width + 2*r.opts.Margin)))
	h := int(math.Ceil(r.px(r.opts.Height + 2*r.opts.Margin)))
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(r.opts.Background), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(dst.Bounds().Dx(), dst.Bounds().Dy(), dst, dst.Bounds())
	filler := rasterx.NewFiller(dst.Bounds().Dx(), dst.Bounds().Dy(), scanner)

	var link *layout.Instr
	for i := range page.Instructions {
		in := &page.Instructions[i]
		box := in.Box
		box.X += r.opts.Margin
		box.Y += r.opts.Margin

		switch in.Kind {
		case layout.InstrTextRun:
			r.drawText(dst, filler, doc.Font(in.Font), box, in.Data, link != nil)
		case layout.InstrImage:
			r.drawImage(dst, in.Image, box)
		case layout.InstrLine:
			mid := r.px(box.Y + box.H/2)
			fillRect(filler, inkColor, r.px(box.X), mid, r.px(box.Right()), mid+math.Max(1, r.opts.Scale))
		case layout.InstrLinkStart:
			link = in
			if r.opts.ShowLinks && !in.Box.IsEmpty() {
				r.strokeBox(dst, scanner, box)
			}
		case layout.InstrLinkEnd:
			link = nil
		}
	}
	return dst, nil
}

func (r *Renderer) drawText(dst *image.RGBA, filler *rasterx.Filler, f layout.Font, box layout.Rect, text []byte, inLink bool) {
	ink := image.NewUniform(inkColor)
	if inLink && r.opts.ShowLinks {
		ink = image.NewUniform(linkColor)
	}
	scaled := f
	scaled.Size = r.px(f.Size)

	var ascent float64
	r.metrics.WithFace(scaled, func(face font.Face) {
		ascent = float64(face.Metrics().Ascent) / 64
		baseline := r.px(box.Y) + ascent
		d := font.Drawer{
			Dst:  dst,
			Src:  ink,
			Face: face,
			Dot:  fixed.Point26_6{X: fixed.Int26_6(r.px(box.X) * 64), Y: fixed.Int26_6(baseline * 64)},
		}
		d.DrawBytes(text)
	})

	thick := math.Max(1, scaled.Size/14)
	baseline := r.px(box.Y) + ascent
	x0, x1 := r.px(box.X), r.px(box.Right())
	if f.Style&layout.Underline != 0 {
		y := baseline + scaled.Size*0.1
		fillRect(filler, ink.C, x0, y, x1, y+thick)
	}
	if f.Style&layout.Strike != 0 {
		y := baseline - ascent*0.3
		fillRect(filler, ink.C, x0, y, x1, y+thick)
	}
}

// fillRect fills rectangle given in device pixels.
func fillRect(filler *rasterx.Filler, c color.Color, x0, y0, x1, y1 float64) {
	filler.Clear()
	rasterx.AddRect(x0, y0, x1, y1, 0, filler)
	filler.SetColor(c)
	filler.Draw()
}

// strokeBox outlines link area with dashed line.
func (r *Renderer) strokeBox(dst *image.RGBA, scanner rasterx.Scanner, box layout.Rect) {
	b := dst.Bounds()
	d := rasterx.NewDasher(b.Dx(), b.Dy(), scanner)
	d.SetStroke(fixed.Int26_6(r.px(1)*64), 0, rasterx.ButtCap, rasterx.ButtCap, rasterx.FlatGap, rasterx.Miter, []float64{r.px(3), r.px(2)}, 0)
	pt := func(x, y float64) fixed.Point26_6 {
		return fixed.Point26_6{X: fixed.Int26_6(r.px(x) * 64), Y: fixed.Int26_6(r.px(y) * 64)}
	}
	d.Start(pt(box.X, box.Y))
	d.Line(pt(box.Right(), box.Y))
	d.Line(pt(box.Right(), box.Bottom()))
	d.Line(pt(box.X, box.Bottom()))
	d.Stop(true)
	d.SetColor(linkColor)
	d.Draw()
}

func (r *Renderer) drawImage(dst *image.RGBA, img *layout.Image, box layout.Rect) {
	w, h := int(math.Round(r.px(box.W))), int(math.Round(r.px(box.H)))
	if img == nil || w <= 0 || h <= 0 {
		return
	}

	var src image.Image
	if img.Format == images.FormatSVG {
		// vector images are rasterized at the final size
		rgba, err := images.RasterizeSVG(img.Data, w, h)
		if err != nil {
			r.log.Warn("Unable to rasterize image", zap.String("id", img.ID), zap.Error(err))
			return
		}
		src = rgba
	} else {
		decoded, ok := r.decoded[img]
		if !ok {
			var err error
			if decoded, _, err = images.Decode(img.Data); err != nil {
				r.log.Warn("Unable to decode image", zap.String("id", img.ID), zap.Error(err))
				return
			}
			r.decoded[img] = decoded
		}
		src = decoded
		if b := decoded.Bounds(); b.Dx() != w || b.Dy() != h {
			src = imaging.Resize(decoded, w, h, imaging.Lanczos)
		}
	}

	at := image.Pt(int(math.Round(r.px(box.X))), int(math.Round(r.px(box.Y))))
	draw.Draw(dst, src.Bounds().Sub(src.Bounds().Min).Add(at), src, src.Bounds().Min, draw.Over)
}
