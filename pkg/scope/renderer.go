package scope

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/itohio/thermomon/pkg/history"
	"github.com/itohio/thermomon/pkg/monitor"
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

type plotArea struct {
	x, y, w, h float32
	yMin, yMax float64
	xMin, xMax time.Time
}

func (p plotArea) pos(t time.Time, v float64) fyne.Position {
	x := p.x + float32(t.Sub(p.xMin).Seconds()/p.xMax.Sub(p.xMin).Seconds())*p.w
	y := p.y + p.h - float32((v-p.yMin)/(p.yMax-p.yMin))*p.h
	return fyne.NewPos(x, y)
}

func (p plotArea) xAt(t time.Time) float32 {
	return p.x + float32(t.Sub(p.xMin).Seconds()/p.xMax.Sub(p.xMin).Seconds())*p.w
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 240)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the canvas objects from the current data.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	series := r.scope.display
	rates := r.scope.rates
	units := r.scope.units
	area := plotArea{
		yMin: r.scope.yMin,
		yMax: r.scope.yMax,
		xMin: r.scope.xMin,
		xMax: r.scope.xMax,
	}
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.bg}

	const marginLeft, marginRight, marginTop, marginBottom = 70, 20, 20, 40
	area.x = marginLeft
	area.y = marginTop
	area.w = size.Width - marginLeft - marginRight
	area.h = size.Height - marginTop - marginBottom
	if area.w <= 0 || area.h <= 0 || !area.xMax.After(area.xMin) {
		return
	}

	r.drawGrid(area, units)
	for _, ser := range series {
		r.drawSpans(area, ser)
	}
	for _, ser := range series {
		r.drawTrace(area, ser, units)
	}
	r.drawLegend(area, series, rates, units)
}

func (r *scopeRenderer) drawGrid(a plotArea, units monitor.Units) {
	gridColor := color.RGBA{R: 40, G: 40, B: 40, A: 255}
	textColor := color.RGBA{R: 150, G: 150, B: 150, A: 255}
	unit := "°C"
	if units == monitor.Fahrenheit {
		unit = "°F"
	}

	const rows = 8
	for i := range rows + 1 {
		y := a.y + float32(i)*a.h/rows
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(a.x, y)
		line.Position2 = fyne.NewPos(a.x+a.w, y)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		value := a.yMax - float64(i)*(a.yMax-a.yMin)/rows
		text := canvas.NewText(fmt.Sprintf("%.1f%s", value, unit), textColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(a.x-5, y-6))
		r.objects = append(r.objects, text)
	}

	const cols = 10
	total := a.xMax.Sub(a.xMin)
	for i := range cols + 1 {
		x := a.x + float32(i)*a.w/cols
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(x, a.y)
		line.Position2 = fyne.NewPos(x, a.y+a.h)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		ago := total - total*time.Duration(i)/cols
		text := canvas.NewText(formatAgo(ago), textColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, a.y+a.h+5))
		r.objects = append(r.objects, text)
	}
}

// drawTrace draws the valid points of one channel. Faults break the line.
func (r *scopeRenderer) drawTrace(a plotArea, ser history.Series, units monitor.Units) {
	c := ChannelColor(ser.ID)
	var prev *fyne.Position
	for _, p := range ser.Points {
		if p.Fault != 0 {
			prev = nil
			continue
		}
		pos := a.pos(p.Time, degrees(p.Probe, units))
		if prev != nil {
			line := canvas.NewLine(c)
			line.Position1 = *prev
			line.Position2 = pos
			line.StrokeWidth = 1.5
			r.objects = append(r.objects, line)
		}
		prev = &pos
	}
}

// drawSpans shades the time ranges where a channel reported a fault.
func (r *scopeRenderer) drawSpans(a plotArea, ser history.Series) {
	c := ChannelColor(ser.ID)
	c.A = 50
	for _, sp := range ser.Spans {
		x0 := a.xAt(sp.Start)
		x1 := a.xAt(sp.End)
		if x1-x0 < 2 {
			x1 = x0 + 2
		}
		rect := canvas.NewRectangle(c)
		rect.Move(fyne.NewPos(x0, a.y))
		rect.Resize(fyne.NewSize(x1-x0, a.h))
		r.objects = append(r.objects, rect)

		label := canvas.NewText(sp.Fault.String(), color.RGBA{R: 220, G: 80, B: 80, A: 255})
		label.TextSize = 10
		label.Move(fyne.NewPos(x0+2, a.y+2))
		r.objects = append(r.objects, label)
	}
}

func (r *scopeRenderer) drawLegend(a plotArea, series []history.Series, rates map[int]float64, units monitor.Units) {
	x := a.x + 10
	for _, ser := range series {
		rate, ok := rates[ser.ID]
		text := legendText(ser, rate, ok, units)
		label := canvas.NewText(text, ChannelColor(ser.ID))
		label.TextSize = 11
		label.Move(fyne.NewPos(x, a.y+10))
		r.objects = append(r.objects, label)
		x += fyne.MeasureText(text, 11, fyne.TextStyle{}).Width + 16
	}
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

// formatAgo renders an age relative to now, e.g. "-1m30s" or "now".
func formatAgo(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "now"
	}
	return "-" + d.String()
}

func legendText(ser history.Series, rate float64, hasRate bool, units monitor.Units) string {
	text := fmt.Sprintf("Probe %d", ser.ID+1)
	p, ok := ser.Latest()
	if !ok {
		return text
	}
	if p.Fault != 0 {
		return text + " " + p.Fault.String()
	}
	text += " " + monitor.FormatTemperature(p.Probe, units)
	if hasRate {
		text += " " + formatRate(rate, units)
	}
	return text
}

func formatRate(perMinute float64, units monitor.Units) string {
	if units == monitor.Fahrenheit {
		return fmt.Sprintf("%+.1f°F/min", perMinute*1.8)
	}
	return fmt.Sprintf("%+.1f°C/min", perMinute)
}
