// Package oled shows an emulated SH1106 panel inside a Fyne window.
package oled

import (
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/thermomon/pkg/sh1106"
)

// Ink is the lit pixel color at full contrast.
var Ink = color.RGBA{R: 120, G: 200, B: 255, A: 255}

var background = color.RGBA{R: 8, G: 8, B: 12, A: 255}

// Render draws state into a Width x Height image. Lit pixels are dimmed
// with the contrast register and everything is dark while the panel is off.
func Render(dst *image.RGBA, state *sh1106.State) *image.RGBA {
	if dst == nil || dst.Bounds().Dx() != sh1106.Width || dst.Bounds().Dy() != sh1106.Height {
		dst = image.NewRGBA(image.Rect(0, 0, sh1106.Width, sh1106.Height))
	}
	ink := dim(Ink, state.Contrast)
	for y := 0; y < sh1106.Height; y++ {
		for x := 0; x < sh1106.Width; x++ {
			c := background
			if state.On && state.Pixel(x, y) {
				c = ink
			}
			dst.SetRGBA(x, y, c)
		}
	}
	return dst
}

// dim scales c by contrast keeping a floor so a zero contrast panel is still
// readable.
func dim(c color.RGBA, contrast uint8) color.RGBA {
	const floor = 64
	k := floor + uint32(contrast)*(255-floor)/255
	return color.RGBA{
		R: uint8(uint32(c.R) * k / 255),
		G: uint8(uint32(c.G) * k / 255),
		B: uint8(uint32(c.B) * k / 255),
		A: c.A,
	}
}

// Panel is a Fyne widget mirroring an sh1106.Emulator.
type Panel struct {
	widget.BaseWidget

	emu   *sh1106.Emulator
	scale float32

	mu  sync.Mutex
	img *image.RGBA

	raster *canvas.Raster
}

// NewPanel creates a panel drawing emu at scale screen pixels per dot. The
// panel refreshes itself on every controller transfer.
func NewPanel(emu *sh1106.Emulator, scale float32) *Panel {
	if scale < 1 {
		scale = 1
	}
	p := &Panel{emu: emu, scale: scale}
	p.raster = canvas.NewRaster(p.draw)
	p.raster.ScaleMode = canvas.ImageScalePixels
	p.ExtendBaseWidget(p)
	emu.OnChange(func() {
		fyne.Do(p.Refresh)
	})
	return p
}

func (p *Panel) draw(_, _ int) image.Image {
	state := p.emu.Snapshot()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.img = Render(p.img, &state)
	return p.img
}

// CreateRenderer implements fyne.Widget.
func (p *Panel) CreateRenderer() fyne.WidgetRenderer {
	return &panelRenderer{panel: p}
}

type panelRenderer struct {
	panel *Panel
}

func (r *panelRenderer) MinSize() fyne.Size {
	return fyne.NewSize(sh1106.Width*r.panel.scale, sh1106.Height*r.panel.scale)
}

func (r *panelRenderer) Layout(size fyne.Size) {
	r.panel.raster.Resize(size)
}

func (r *panelRenderer) Refresh() {
	r.panel.raster.Refresh()
}

func (r *panelRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.panel.raster}
}

func (r *panelRenderer) Destroy() {}
