package app

import (
	"image/color"
	"math"
)

const (
	ClassicTheme   ColorTheme = "classic"
	GrayscaleTheme ColorTheme = "grayscale"
	JungleTheme    ColorTheme = "jungle"
	ThermalTheme   ColorTheme = "thermal"
	MarineTheme    ColorTheme = "marine"
)

// footprintAlpha is the opacity of a filled footprint, overlaps get brighter
const footprintAlpha = 0x99

type ColorTheme string

var colorThemes = map[ColorTheme]func(float64) color.RGBA{
	// Blue -> Red
	ClassicTheme: func(v float64) color.RGBA {
		return HSV{H: 240 - (v * 240), S: 0.9 + (v * 0.1), V: 0.5 + v*0.5}.RGB()
	},

	// Gray -> White
	GrayscaleTheme: func(v float64) color.RGBA {
		g := uint8(96 + v*159)
		return color.RGBA{R: g, G: g, B: g, A: 0xff}
	},

	// Dark Green -> Yellow
	JungleTheme: func(v float64) color.RGBA {
		return HSV{H: 120 - (v * 60), S: 1.0, V: 0.3 + (math.Pow(v, 0.6) * 0.7)}.RGB()
	},

	// Red -> Yellow -> White
	ThermalTheme: func(v float64) color.RGBA {
		if v < 0.5 {
			return color.RGBA{R: 255, G: uint8(v * 2 * 255), A: 0xff}
		}
		return color.RGBA{R: 255, G: 255, B: uint8((v - 0.5) * 2 * 255), A: 0xff}
	},

	// Deep Blue -> Cyan -> White
	MarineTheme: func(v float64) color.RGBA {
		return HSV{H: 240 - (v * 60), S: 1.0 - (v * 0.8), V: 0.3 + (math.Pow(v, 0.6) * 0.7)}.RGB()
	},
}

// ColorMapper colors footprints by their position in capture order
type ColorMapper struct {
	theme func(float64) color.RGBA
	count int
}

func NewColorMapper(theme ColorTheme, count int) *ColorMapper {
	fn, ok := colorThemes[theme]
	if !ok {
		fn = colorThemes[ClassicTheme]
	}
	return &ColorMapper{theme: fn, count: count}
}

// GetColor returns the translucent fill of the i-th footprint
func (cm *ColorMapper) GetColor(i int) color.Color {
	var v float64
	if cm.count > 1 {
		v = float64(i) / float64(cm.count-1)
	}
	v = math.Max(0, math.Min(1, v))

	c := cm.theme(v)

	// premultiplied alpha
	return color.RGBA{
		R: uint8(uint16(c.R) * footprintAlpha / 0xff),
		G: uint8(uint16(c.G) * footprintAlpha / 0xff),
		B: uint8(uint16(c.B) * footprintAlpha / 0xff),
		A: footprintAlpha,
	}
}

// HSV represents a color in HSV color space
type HSV struct {
	H float64 // Hue [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value [0-1]
}

// RGB converts HSV color space to RGB
func (hsv HSV) RGB() color.RGBA {
	h, s, v := hsv.H, hsv.S, hsv.V

	if s <= 0.0 {
		rgb := uint8(v * 255)
		return color.RGBA{R: rgb, G: rgb, B: rgb, A: 0xff}
	}

	// Normalize hue to [0-6]
	h = math.Mod(h, 360) / 60
	i := math.Floor(h)
	f := h - i

	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 0xff}
}
