// Package renderer rasterises the current state of a stage into frames.
//
// Supported properties: visibility (hidden hides the whole subtree), opacity
// (multiplied down the tree), x and y (pixel translation), scale (about the
// node's box centre), backgroundColor and color. Other animated properties
// such as rotation or skew are tracked on the stage but not rasterised.
package renderer

import (
	"image"
	"image/color"
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/greetcard/internal/logging"
	"github.com/ivlev/greetcard/internal/prop"
	"github.com/ivlev/greetcard/internal/source"
	"github.com/ivlev/greetcard/internal/stage"
)

// Renderer draws a stage. Render must not run concurrently with structural
// stage changes (SetText, ReplaceChildren).
type Renderer struct {
	stage  *stage.Stage
	images *source.Images
	bounds image.Rectangle
	face   font.Face
	bg     color.Color
	log    *logging.Logger
	view   image.Point
	root   transform

	mu      sync.Mutex
	missing map[string]bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithImages sets where img nodes load their src from.
func WithImages(imgs *source.Images) Option {
	return func(r *Renderer) { r.images = imgs }
}

// WithBackground sets the colour every frame starts from. Values that are
// not colours leave the default white.
func WithBackground(v prop.Value) Option {
	return func(r *Renderer) {
		if v.Kind == prop.Color {
			r.bg = toNRGBA(v)
		}
	}
}

// WithViewport fits a layout of width x height into the frame, centred and
// keeping its aspect ratio. Without it layout pixels are frame pixels.
func WithViewport(width, height int) Option {
	return func(r *Renderer) { r.view = image.Pt(width, height) }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(r *Renderer) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a renderer producing width x height frames.
func New(st *stage.Stage, width, height int, opts ...Option) *Renderer {
	r := &Renderer{
		stage:   st,
		bounds:  image.Rect(0, 0, width, height),
		face:    basicfont.Face7x13,
		bg:      color.White,
		log:     logging.Nop(),
		missing: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.root = fit(r.view, r.bounds)
	return r
}

func fit(view image.Point, frame image.Rectangle) transform {
	if view.X <= 0 || view.Y <= 0 {
		return identity
	}
	a := math.Min(float64(frame.Dx())/float64(view.X), float64(frame.Dy())/float64(view.Y))
	return transform{
		a:  a,
		tx: (float64(frame.Dx()) - a*float64(view.X)) / 2,
		ty: (float64(frame.Dy()) - a*float64(view.Y)) / 2,
	}
}

// Bounds returns the frame rectangle.
func (r *Renderer) Bounds() image.Rectangle {
	return r.bounds
}

// Render draws the current stage state into dst.
func (r *Renderer) Render(dst *image.RGBA) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(r.bg), image.Point{}, draw.Src)
	root := state{visible: true, opacity: 1, xf: r.root}
	r.drawNode(dst, r.stage.Root(), root, nil)
}

type state struct {
	visible bool
	opacity float64
	xf      transform
}

// flow is the inline cursor of the nearest boxed ancestor, in layout pixels.
type flow struct {
	left, right float64
	x, y        float64
}

func (r *Renderer) lineHeight() float64 {
	return float64(r.face.Metrics().Height.Ceil() + 3)
}

func (r *Renderer) drawNode(dst *image.RGBA, n *stage.Node, parent state, fl *flow) {
	if !parent.visible || isHidden(r.stage.Property(n, "visibility")) {
		r.skip(n, fl)
		return
	}
	opacity := parent.opacity * clamp01(number(r.stage.Property(n, "opacity"), 1))
	if opacity <= 0 {
		r.skip(n, fl)
		return
	}

	var cx, cy float64
	if !n.Box.Empty() {
		b := n.Box
		fl = &flow{left: float64(b.X), right: float64(b.X + b.W), x: float64(b.X), y: float64(b.Y)}
		if lh := r.lineHeight(); float64(b.H) < 2*lh {
			fl.y += math.Max(0, (float64(b.H)-lh)/2)
		}
		cx, cy = float64(b.X)+float64(b.W)/2, float64(b.Y)+float64(b.H)/2
	} else {
		if fl == nil {
			fl = &flow{right: float64(r.bounds.Dx())}
			if r.view.X > 0 {
				fl.right = float64(r.view.X)
			}
		}
		w := r.measure(n.Text)
		if fl.x+w > fl.right && fl.x > fl.left {
			fl.x, fl.y = fl.left, fl.y+r.lineHeight()
		}
		cx, cy = fl.x+w/2, fl.y+r.lineHeight()/2
	}

	st := state{
		visible: true,
		opacity: opacity,
		xf: parent.xf.then(
			number(r.stage.Property(n, "scale"), 1),
			cx, cy,
			number(r.stage.Property(n, "x"), 0),
			number(r.stage.Property(n, "y"), 0),
		),
	}

	if !n.Box.Empty() {
		dr := st.xf.rect(float64(n.Box.X), float64(n.Box.Y), float64(n.Box.X+n.Box.W), float64(n.Box.Y+n.Box.H))
		if bg := toNRGBA(r.stage.Property(n, "backgroundColor")); bg.A > 0 {
			draw.DrawMask(dst, dr, image.NewUniform(bg), image.Point{}, alphaMask(opacity), image.Point{}, draw.Over)
		}
		if n.Tag == "img" {
			r.drawImage(dst, dr, r.stage.Attr(n, "src"), opacity)
		}
	}

	if n.Text != "" {
		r.drawText(dst, n.Text, fl, st, toNRGBA(r.stage.Property(n, "color")))
	}

	for _, c := range r.byZIndex(n.Children) {
		r.drawNode(dst, c, st, fl)
	}
}

// skip keeps the layout space of an undrawn inline subtree.
func (r *Renderer) skip(n *stage.Node, fl *flow) {
	if fl == nil || !n.Box.Empty() {
		return
	}
	r.drawText(nil, n.Text, fl, state{}, color.NRGBA{})
	for _, c := range n.Children {
		r.skip(c, fl)
	}
}

func (r *Renderer) byZIndex(children []*stage.Node) []*stage.Node {
	if len(children) < 2 {
		return children
	}
	out := make([]*stage.Node, len(children))
	copy(out, children)
	z := make(map[*stage.Node]float64, len(out))
	for _, c := range out {
		z[c] = number(r.stage.Property(c, "zIndex"), 0)
	}
	sort.SliceStable(out, func(i, j int) bool { return z[out[i]] < z[out[j]] })
	return out
}

func (r *Renderer) drawImage(dst *image.RGBA, dr image.Rectangle, ref string, opacity float64) {
	if r.images == nil || ref == "" || dr.Empty() {
		return
	}
	img, err := r.images.Load(ref)
	if err != nil {
		r.mu.Lock()
		if !r.missing[ref] {
			r.missing[ref] = true
			r.log.Warn("image unavailable, drawing placeholder", "src", ref, "error", err)
		}
		r.mu.Unlock()
		return
	}
	draw.ApproxBiLinear.Scale(dst, dr, img, img.Bounds(), draw.Over, &draw.Options{SrcMask: alphaMask(opacity)})
}

// drawText lays text out word by word on fl, wrapping at the flow's right
// edge, and draws each word through the node transform. A nil dst only
// advances the flow.
func (r *Renderer) drawText(dst *image.RGBA, text string, fl *flow, st state, col color.NRGBA) {
	lh := r.lineHeight()
	ascent := r.face.Metrics().Ascent.Ceil()
	for _, word := range strings.SplitAfter(text, " ") {
		if word == "" {
			continue
		}
		w := r.measure(word)
		if fl.x+w > fl.right && fl.x > fl.left {
			fl.x, fl.y = fl.left, fl.y+lh
		}
		if dst != nil && strings.TrimSpace(word) != "" {
			tmp := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(w)), int(lh)))
			d := font.Drawer{
				Dst:  tmp,
				Src:  image.NewUniform(col),
				Face: r.face,
				Dot:  fixed.P(0, ascent+1),
			}
			d.DrawString(word)
			dr := st.xf.rect(fl.x, fl.y, fl.x+float64(tmp.Rect.Dx()), fl.y+lh)
			if !dr.Empty() {
				draw.ApproxBiLinear.Scale(dst, dr, tmp, tmp.Bounds(), draw.Over, &draw.Options{SrcMask: alphaMask(st.opacity)})
			}
		}
		fl.x += w
	}
}

func (r *Renderer) measure(s string) float64 {
	if s == "" {
		return 0
	}
	return float64(font.MeasureString(r.face, s)) / 64
}

// transform maps layout pixels to frame pixels: p -> a*p + t.
type transform struct {
	a, tx, ty float64
}

var identity = transform{a: 1}

// then appends a local transform: translate by (dx, dy) after scaling by s
// about (cx, cy).
func (m transform) then(s, cx, cy, dx, dy float64) transform {
	return transform{
		a:  m.a * s,
		tx: m.a*((1-s)*cx+dx) + m.tx,
		ty: m.a*((1-s)*cy+dy) + m.ty,
	}
}

func (m transform) rect(x0, y0, x1, y1 float64) image.Rectangle {
	ax0, ay0 := m.a*x0+m.tx, m.a*y0+m.ty
	ax1, ay1 := m.a*x1+m.tx, m.a*y1+m.ty
	if ax0 > ax1 {
		ax0, ax1 = ax1, ax0
	}
	if ay0 > ay1 {
		ay0, ay1 = ay1, ay0
	}
	return image.Rect(int(math.Round(ax0)), int(math.Round(ay0)), int(math.Round(ax1)), int(math.Round(ay1)))
}

func isHidden(v prop.Value) bool {
	return v.Kind == prop.Keyword && v.Word == "hidden"
}

func number(v prop.Value, fallback float64) float64 {
	if v.Kind != prop.Number {
		return fallback
	}
	return v.Num
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

func toNRGBA(v prop.Value) color.NRGBA {
	if v.Kind != prop.Color {
		return color.NRGBA{}
	}
	ch := func(f float64) uint8 { return uint8(math.Round(math.Max(0, math.Min(255, f)))) }
	return color.NRGBA{ch(v.RGBA[0]), ch(v.RGBA[1]), ch(v.RGBA[2]), ch(v.RGBA[3] * 255)}
}

func alphaMask(opacity float64) image.Image {
	return image.NewUniform(color.Alpha{A: uint8(math.Round(clamp01(opacity) * 255))})
}
