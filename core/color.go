package core

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ParseColor accepts the values an HTML color input or a CSS literal can
// produce: #rgb, #rgba, #rrggbb, #rrggbbaa, named colors and "transparent".
func ParseColor(s string) (color.NRGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return color.NRGBA{}, fmt.Errorf("%w: empty value", ErrInvalidColor)
	}
	if v == "transparent" {
		return color.NRGBA{}, nil
	}
	if !strings.HasPrefix(v, "#") {
		named, ok := colornames.Map[v]
		if !ok {
			return color.NRGBA{}, fmt.Errorf("%w: unknown color name %q", ErrInvalidColor, s)
		}
		return color.NRGBA{R: named.R, G: named.G, B: named.B, A: named.A}, nil
	}

	hex := v[1:]
	switch len(hex) {
	case 3, 4:
		expanded := make([]byte, 0, len(hex)*2)
		for i := 0; i < len(hex); i++ {
			expanded = append(expanded, hex[i], hex[i])
		}
		hex = string(expanded)
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}

	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.NRGBA{
		R: uint8(n >> 24),
		G: uint8(n >> 16),
		B: uint8(n >> 8),
		A: uint8(n),
	}, nil
}

// FormatColor renders c as #rrggbb, or #rrggbbaa when it is not opaque.
func FormatColor(c color.NRGBA) string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
