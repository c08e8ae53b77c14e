// Package colormap maps scalars to colors for visualization.
//
// Every ColorMap is total: any float64, including infinities and NaN, maps to
// some color, so callers never have to range check their inputs.
package colormap

import (
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// ColorMap converts a scalar to a color.
type ColorMap interface {
	Map(v float64) color.NRGBA
}

// Func adapts a plain function to a ColorMap.
type Func func(v float64) color.NRGBA

// Map calls f.
func (f Func) Map(v float64) color.NRGBA {
	return f(v)
}

// Invalid is returned for inputs that have no place on a map, such as NaN.
var Invalid = color.NRGBA{R: 255, G: 127, B: 127, A: 255}

var (
	// Rainbow walks the hue wheel once per unit; only the fractional part of
	// the input matters.
	Rainbow ColorMap = Func(rainbow)

	// InverseRainbow walks the hue wheel in the other direction.
	InverseRainbow ColorMap = Func(func(v float64) color.NRGBA { return rainbow(1 - v) })

	// Grayscale maps [0, 1] from black to white, clamping outside values.
	Grayscale ColorMap = Func(grayscale)

	// InverseGrayscale maps [0, 1] from white to black.
	InverseGrayscale ColorMap = Func(func(v float64) color.NRGBA { return grayscale(1 - v) })

	// Ironbow maps [0, 1] through a thermal palette.
	Ironbow ColorMap = Func(ironbow)
)

var ironbowPalette = []colorful.Color{
	fromRGB255(0, 0, 0),
	fromRGB255(145, 20, 145),
	fromRGB255(255, 138, 0),
	fromRGB255(255, 230, 40),
	fromRGB255(255, 255, 255),
}

func fromRGB255(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

func toNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func rainbow(v float64) color.NRGBA {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Invalid
	}
	h := v - math.Floor(v)
	return toNRGBA(colorful.Hsv(h*360, 1, 1))
}

func clamp01(v float64) (float64, bool) {
	if math.IsNaN(v) {
		return 0, false
	}
	return math.Max(0, math.Min(1, v)), true
}

func grayscale(v float64) color.NRGBA {
	v, ok := clamp01(v)
	if !ok {
		return Invalid
	}
	return toNRGBA(colorful.Color{R: v, G: v, B: v})
}

func ironbow(v float64) color.NRGBA {
	v, ok := clamp01(v)
	if !ok {
		return Invalid
	}
	pos := v * float64(len(ironbowPalette)-1)
	idx := int(math.Floor(pos))
	if idx >= len(ironbowPalette)-1 {
		return toNRGBA(ironbowPalette[len(ironbowPalette)-1])
	}
	return toNRGBA(ironbowPalette[idx].BlendRgb(ironbowPalette[idx+1], pos-float64(idx)))
}

// Ranged rescales [Min, Max] onto [0, 1] before handing the value to Map.
type Ranged struct {
	Base     ColorMap
	Min, Max float64
}

// Map implements ColorMap.
func (r Ranged) Map(v float64) color.NRGBA {
	span := r.Max - r.Min
	if span == 0 {
		return r.base().Map(0)
	}
	return r.base().Map((v - r.Min) / span)
}

func (r Ranged) base() ColorMap {
	if r.Base == nil {
		return Rainbow
	}
	return r.Base
}

// ByName returns a named color map. Names are case insensitive.
func ByName(name string) (ColorMap, error) {
	switch strings.ToLower(name) {
	case "", "rainbow":
		return Rainbow, nil
	case "inverse_rainbow":
		return InverseRainbow, nil
	case "grayscale", "gray":
		return Grayscale, nil
	case "inverse_grayscale":
		return InverseGrayscale, nil
	case "ironbow":
		return Ironbow, nil
	default:
		return nil, errors.Errorf("unknown color map %q", name)
	}
}
