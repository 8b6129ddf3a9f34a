package chart

import (
	"fmt"
	"image/color"
	"math"
)

// Rainbow samples the cyclical cubehelix rainbow at t in [0, 1).
func Rainbow(t float64) color.RGBA {
	t -= math.Floor(t)
	ts := math.Abs(t - 0.5)
	return cubehelix(360*t-100, 1.5-1.5*ts, 0.8-0.9*ts)
}

// cubehelix converts a cubehelix colour (hue in degrees) to sRGB.
func cubehelix(h, s, l float64) color.RGBA {
	const (
		a = -0.14861
		b = 1.78277
		c = -0.29227
		d = -0.90649
		e = 1.97294
	)
	rad := (h + 120) * math.Pi / 180
	amp := s * l * (1 - l)
	cosh, sinh := math.Cos(rad), math.Sin(rad)
	return color.RGBA{
		R: channel(255 * (l + amp*(a*cosh+b*sinh))),
		G: channel(255 * (l + amp*(c*cosh+d*sinh))),
		B: channel(255 * (l + amp*(e*cosh))),
		A: 255,
	}
}

func channel(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

// CSS renders c as rgb(r, g, b).
func CSS(c color.RGBA) string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Hex renders c as RRGGBB without the leading hash.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
}

// Palette assigns each of n categories a colour spread evenly around the
// rainbow. Category i always gets the same colour for a given n.
func Palette(n int) []color.RGBA {
	out := make([]color.RGBA, n)
	for i := range out {
		out[i] = Rainbow(float64(i) / float64(n))
	}
	return out
}
