package colorscale

import (
	"math"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/determined-ai/hpcoords/pkg/mmath"
)

// Color is an opaque 8-bit RGB color.
type Color struct {
	R, G, B uint8
}

func fromColorful(c colorful.Color) Color {
	r, g, b := c.Clamped().RGB255()
	return Color{R: r, G: g, B: b}
}

func (c Color) toColorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return c.toColorful().Hex()
}

// Terminal returns the color for lipgloss styles.
func (c Color) Terminal() lipgloss.Color {
	return lipgloss.Color(c.Hex())
}

// MarshalText implements encoding.TextMarshaler so colors serialize as hex strings.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for #rrggbb and #rgb strings.
func (c *Color) UnmarshalText(text []byte) error {
	if n := len(text); n != 7 && n != 4 {
		return errors.Errorf("invalid color %q", text)
	}
	parsed, err := colorful.Hex(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid color %q", text)
	}
	*c = fromColorful(parsed)
	return nil
}

var (
	// Worse is the gradient stop for the least desirable metric value.
	Worse = Color{R: 0x00, G: 0x9b, B: 0xde}
	// Better is the gradient stop for the most desirable metric value.
	Better = Color{R: 0xf7, G: 0x7b, B: 0x21}
	// Neutral is used when there is no range to normalize against.
	Neutral = Color{R: 0x88, G: 0x88, B: 0x88}
)

// Scale maps a metric value to a color.
type Scale func(value float64) Color

// Build returns the color scale for a metric range. By default higher values are better and map
// towards Better; smallerIsBetter=true flips the gradient. A nil range yields a scale that maps
// everything to Neutral.
func Build(r *mmath.Range[float64], smallerIsBetter *bool) Scale {
	if r == nil {
		return func(float64) Color { return Neutral }
	}
	lo, span := r.Min, r.Span()
	invert := smallerIsBetter != nil && *smallerIsBetter

	return func(value float64) Color {
		if math.IsNaN(value) {
			return Neutral
		}
		if span <= 0 {
			return Better
		}
		t := math.Max(0, math.Min(1, (value-lo)/span))
		if invert {
			t = 1 - t
		}
		return lerp(Worse, Better, t)
	}
}

func lerp(a, b Color, t float64) Color {
	return fromColorful(a.toColorful().BlendRgb(b.toColorful(), t))
}

// Map applies the scale to every value.
func (s Scale) Map(values []float64) []Color {
	out := make([]Color, len(values))
	for i, v := range values {
		out[i] = s(v)
	}
	return out
}
