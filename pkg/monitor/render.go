package monitor

import (
	"fmt"
	"strconv"

	"github.com/itohio/thermomon/pkg/link"
	"github.com/itohio/thermomon/pkg/max31855"
	"github.com/itohio/thermomon/pkg/sh1106"
)

// Units selects the temperature scale shown on the display.
type Units uint8

const (
	Celsius Units = iota
	Fahrenheit
)

const linkTag = "Net"

type segment struct {
	text   string
	align  sh1106.Align
	column int
}

// page is what a display page should show. Two pages render identically
// exactly when they compare equal.
type page struct {
	inverted bool
	n        int
	seg      [2]segment
}

func line(inverted bool, segs ...segment) page {
	p := page{inverted: inverted, n: len(segs)}
	copy(p.seg[:], segs)
	return p
}

// patchable reports whether want can replace shown by rewriting only its
// last segment: everything else equal and the new text covers the old one.
func patchable(shown, want page) bool {
	if shown.inverted != want.inverted || shown.n != want.n || want.n == 0 {
		return false
	}
	last := want.n - 1
	for i := 0; i < last; i++ {
		if shown.seg[i] != want.seg[i] {
			return false
		}
	}
	old, cur := shown.seg[last], want.seg[last]
	if old.align != cur.align || old.column != cur.column {
		return false
	}
	switch cur.align {
	case sh1106.AlignLeft, sh1106.AlignRight, sh1106.AlignUser:
		return sh1106.TextWidth(cur.text) >= sh1106.TextWidth(old.text)
	default:
		return false
	}
}

func probeName(id int) string {
	return "Probe " + strconv.Itoa(id+1)
}

// channelPage renders a channel's last reading.
func channelPage(id int, enabled, has bool, r max31855.Reading, units Units) page {
	name := probeName(id)
	switch {
	case !enabled:
		return line(false, segment{text: name + " Inactive", align: sh1106.AlignCenter})
	case !has:
		return page{}
	case r.Valid():
		return line(false,
			segment{text: name, align: sh1106.AlignLeft},
			segment{text: FormatTemperature(r.Probe, units), align: sh1106.AlignRight},
		)
	}

	var text string
	switch f := r.Fault; {
	case f.Has(max31855.OpenCircuit):
		text = name + " Disconnected"
	case f.Has(max31855.ShortToGround | max31855.ShortToSupply):
		text = name + ": Shorted"
	case f.Has(max31855.ShortToGround):
		text = name + ": Ground Short"
	case f.Has(max31855.ShortToSupply):
		text = name + ": Vcc Short"
	default:
		text = name + " No Response"
	}
	return line(false, segment{text: text, align: sh1106.AlignCenter})
}

// statusLabel describes the link for the status line.
func statusLabel(m *link.Machine, server string) string {
	if m == nil {
		return "No Link"
	}
	switch m.State() {
	case link.Connected:
		if server == "" {
			return "Connected"
		}
		return server
	case link.Connecting:
		return "Connecting"
	case link.Idle:
		return "Not Connected"
	}
	switch m.LastError() {
	case link.CodeCredentials:
		return "Bad Credentials"
	case link.CodeNotFound:
		return "Not Found"
	case link.CodeTimeout:
		return "Link Timeout"
	case link.CodeConnectFailed, link.CodeSendFailed:
		return "Unable to Connect"
	default:
		return "Link Failure"
	}
}

// maxLabel keeps the status label clear of the tag.
var maxLabel = (sh1106.Width - sh1106.TextWidth(linkTag) - 2 - sh1106.CharWidth) / sh1106.CharWidth

func statusPage(label string) page {
	if r := []rune(label); len(r) > maxLabel {
		label = string(r[:maxLabel])
	}
	return line(true,
		segment{text: label, align: sh1106.AlignLeft},
		segment{text: linkTag, align: sh1106.AlignRight},
	)
}

// FormatTemperature renders milli-degrees Celsius with two decimals.
func FormatTemperature(milliC int32, units Units) string {
	v := int64(milliC)
	unit := "C"
	if units == Fahrenheit {
		v = v*9/5 + 32000
		unit = "F"
	}
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d°%s", sign, v/1000, v%1000/10, unit)
}
