package oled

import (
	"image"
	"testing"

	"github.com/itohio/thermomon/pkg/sh1106"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	emu := sh1106.NewEmulator()
	d := sh1106.New(emu)
	require.NoError(t, d.Init(0xFF))
	require.NoError(t, d.WriteLine(0, 0, "I", false, sh1106.AlignLeft))

	state := emu.Snapshot()
	img := Render(nil, &state)
	require.Equal(t, image.Rect(0, 0, sh1106.Width, sh1106.Height), img.Bounds())

	lit := 0
	for y := 0; y < 8; y++ {
		for x := 2; x < 2+sh1106.CharWidth; x++ {
			if img.RGBAAt(x, y) == Ink {
				lit++
			}
		}
	}
	assert.Positive(t, lit)
	assert.Equal(t, background, img.RGBAAt(100, 40))
}

func TestRender_PanelOff(t *testing.T) {
	state := sh1106.State{On: false, Invert: true, Contrast: 0xFF}
	img := Render(nil, &state)
	assert.Equal(t, background, img.RGBAAt(0, 0))
	assert.Equal(t, background, img.RGBAAt(127, 63))
}

func TestRender_Invert(t *testing.T) {
	state := sh1106.State{On: true, Invert: true, Contrast: 0xFF}
	img := Render(nil, &state)
	assert.Equal(t, Ink, img.RGBAAt(5, 5))
}

func TestRender_ReusesImage(t *testing.T) {
	state := sh1106.State{On: true}
	first := Render(nil, &state)
	assert.Same(t, first, Render(first, &state))
}

func TestDim(t *testing.T) {
	assert.Equal(t, Ink, dim(Ink, 0xFF))
	low := dim(Ink, 0)
	assert.Less(t, low.B, Ink.B)
	assert.Positive(t, low.B)
}
