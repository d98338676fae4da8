// Package embedded holds the tray icons. They are drawn at start-up so the
// binary carries no image files.
package embedded

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// IconSize is the edge length of every icon in pixels.
const IconSize = 64

var (
	// IconReady is shown while the trigger key is armed (dark gray).
	IconReady = mustRender(color.RGBA{70, 70, 70, 255}, true)
	// IconHeld is shown while the modifiers are held (blue).
	IconHeld = mustRender(color.RGBA{40, 120, 230, 255}, true)
	// IconDisabled is shown while suppression is off (hollow gray).
	IconDisabled = mustRender(color.RGBA{150, 150, 150, 255}, false)
	// IconFailed is shown when the tap could not be installed (red).
	IconFailed = mustRender(color.RGBA{220, 50, 50, 255}, true)
)

// Render draws a ring with an "H" in the middle and returns it as PNG.
func Render(c color.RGBA, filled bool) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, IconSize, IconSize))

	center := float64(IconSize) / 2
	outer, inner := 28.0, 23.0
	for y := 0; y < IconSize; y++ {
		for x := 0; x < IconSize; x++ {
			dx := float64(x) + 0.5 - center
			dy := float64(y) + 0.5 - center
			d := dx*dx + dy*dy
			switch {
			case d <= inner*inner && filled:
				img.Set(x, y, c)
			case d <= outer*outer && d > inner*inner:
				img.Set(x, y, c)
			}
		}
	}

	// Letter: white on a filled disc, the icon color on a hollow one.
	glyph := color.RGBA{255, 255, 255, 255}
	if !filled {
		glyph = c
	}
	for y := 18; y < 46; y++ {
		for x := 20; x < 26; x++ {
			img.Set(x, y, glyph)
			img.Set(x+18, y, glyph)
		}
	}
	for y := 29; y < 35; y++ {
		for x := 26; x < 38; x++ {
			img.Set(x, y, glyph)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mustRender(c color.RGBA, filled bool) []byte {
	data, err := Render(c, filled)
	if err != nil {
		panic(err)
	}
	return data
}
