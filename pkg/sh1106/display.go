// Package sh1106 drives a 128x64 SH1106 OLED controller as a set of eight
// 8-pixel-high text pages.
package sh1106

import (
	"errors"
	"fmt"
)

const (
	// Width is the visible panel width in pixels.
	Width = 128
	// Height is the panel height in pixels.
	Height = 64
	// Pages is the number of 8-pixel-high pages.
	Pages = Height / 8
	// RAMWidth is the width of controller RAM. The panel shows columns
	// ColumnOffset..ColumnOffset+Width-1.
	RAMWidth = 132
	// ColumnOffset is the first visible RAM column.
	ColumnOffset = 2

	leftMargin = 2
	// text wider than this is forced to the left margin
	printableWidth = Width - 2*leftMargin
)

var (
	ErrPage      = errors.New("sh1106: page out of range")
	ErrColumn    = errors.New("sh1106: column out of range")
	ErrTransport = errors.New("sh1106: transport failure")
)

// Align selects where WriteLine places text.
type Align uint8

const (
	AlignLeft Align = iota
	AlignRight
	AlignCenter
	// AlignUser places text at the caller supplied column.
	AlignUser
)

func (a Align) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignRight:
		return "right"
	case AlignCenter:
		return "center"
	case AlignUser:
		return "user"
	default:
		return fmt.Sprintf("align(%d)", uint8(a))
	}
}

// Transport moves command and pixel bytes to the controller.
type Transport interface {
	SendCommand(cmd []byte) error
	SendPixels(data []byte) error
}

// Display is a stateless page-oriented view of the controller. It keeps no
// copy of what is on the panel.
type Display struct {
	t   Transport
	buf [RAMWidth]byte
}

// New returns a display writing through t.
func New(t Transport) *Display {
	return &Display{t: t}
}

// Init powers the panel up: charge pump, contrast, blank RAM, display on.
func (d *Display) Init(contrast uint8) error {
	if err := d.command(DCDC(true)...); err != nil {
		return err
	}
	// Module boards mount the glass rotated, so flip both axes.
	if err := d.command(SegmentRemap(true), ScanDirection(true), StartLine(0), ForceOn(false)); err != nil {
		return err
	}
	if err := d.command(Contrast(contrast)...); err != nil {
		return err
	}
	if err := d.Clear(); err != nil {
		return err
	}
	return d.SetDisplayOn(true)
}

// Clear blanks every page.
func (d *Display) Clear() error {
	for p := 0; p < Pages; p++ {
		if err := d.ClearPage(p, false, 0); err != nil {
			return err
		}
	}
	return nil
}

// SetInvert inverts the whole panel.
func (d *Display) SetInvert(inv bool) error {
	return d.command(Invert(inv))
}

// SetDisplayOn turns the panel on or off. RAM is retained.
func (d *Display) SetDisplayOn(on bool) error {
	return d.command(DisplayPower(on))
}

// ClearPage fills page from startColumn to the right edge with dark pixels,
// or lit pixels when inverted.
func (d *Display) ClearPage(page int, inverted bool, startColumn int) error {
	if err := checkPage(page); err != nil {
		return err
	}
	if startColumn < 0 || startColumn >= Width {
		return fmt.Errorf("%w: %d", ErrColumn, startColumn)
	}

	fill := byte(0x00)
	if inverted {
		fill = 0xFF
	}
	buf := d.buf[:Width-startColumn]
	for i := range buf {
		buf[i] = fill
	}

	if err := d.address(page, startColumn); err != nil {
		return err
	}
	return d.pixels(buf)
}

// WriteLine renders text on page. startColumn is only used with AlignUser.
// Text wider than the printable area starts at the left margin; anything
// past the right edge is clipped.
func (d *Display) WriteLine(page, startColumn int, text string, inverted bool, align Align) error {
	if err := checkPage(page); err != nil {
		return err
	}
	width := TextWidth(text)
	if width == 0 {
		return nil
	}

	x := Place(width, startColumn, align)
	if x < 0 || x >= Width {
		return fmt.Errorf("%w: %d", ErrColumn, x)
	}

	buf := d.buf[:0]
	for _, r := range text {
		g := Glyph(r)
		buf = append(buf, g[:]...)
		buf = append(buf, 0)
	}
	if n := Width - x; len(buf) > n {
		buf = buf[:n]
	}
	if inverted {
		for i := range buf {
			buf[i] = ^buf[i]
		}
	}

	if err := d.address(page, x); err != nil {
		return err
	}
	return d.pixels(buf)
}

// Place returns the visible start column for text of the given pixel width.
func Place(width, column int, align Align) int {
	if width >= printableWidth {
		return leftMargin
	}
	switch align {
	case AlignLeft:
		return leftMargin
	case AlignRight:
		return Width - width
	case AlignCenter:
		return Width/2 - width/2
	default:
		return column
	}
}

func checkPage(page int) error {
	if page < 0 || page >= Pages {
		return fmt.Errorf("%w: %d", ErrPage, page)
	}
	return nil
}

func (d *Display) address(page, column int) error {
	if err := d.command(PageAddress(page)); err != nil {
		return err
	}
	return d.command(ColumnAddress(column + ColumnOffset)...)
}

func (d *Display) command(cmd ...byte) error {
	if err := d.t.SendCommand(cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

func (d *Display) pixels(data []byte) error {
	if err := d.t.SendPixels(data); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}
