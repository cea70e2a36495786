// Package color parses the #RRGGBB values carried in annotation and layer
// style objects and picks legible halo colors for rendered text labels.
package color

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Style objects arrive from clients as free-form JSON, so anything that is
// not exactly #RRGGBB is rejected rather than guessed at.
var hexPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

var ErrInvalidFormat = errors.New("invalid color, expected #RRGGBB")

// RGB is a color with 8-bit channels.
type RGB struct {
	R, G, B uint8
}

// Hex formats the color as lowercase #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Parse parses a #RRGGBB string, tolerating surrounding whitespace.
func Parse(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if !hexPattern.MatchString(s) {
		return RGB{}, fmt.Errorf("%w: got %q", ErrInvalidFormat, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 24)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: got %q", ErrInvalidFormat, s)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Valid reports whether s parses as #RRGGBB.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Luminance is the WCAG 2.1 relative luminance, 0 for black and 1 for white.
func (c RGB) Luminance() float64 {
	lin := func(channel uint8) float64 {
		v := float64(channel) / 255.0
		if v <= 0.03928 {
			return v / 12.92
		}
		return math.Pow((v+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.R) + 0.7152*lin(c.G) + 0.0722*lin(c.B)
}

// ContrastRatio is the WCAG contrast ratio between two colors, from 1 (equal)
// to 21 (black on white).
func ContrastRatio(a, b RGB) float64 {
	la, lb := a.Luminance(), b.Luminance()
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

// Halo candidates for rendered labels.
var (
	haloLight = RGB{R: 255, G: 255, B: 255}
	haloDark  = RGB{R: 33, G: 37, B: 41}
)

// LabelHalo picks the halo that keeps a text label legible over arbitrary map
// content: white for dark text, charcoal for light text.
func LabelHalo(text RGB) RGB {
	if ContrastRatio(text, haloLight) >= ContrastRatio(text, haloDark) {
		return haloLight
	}
	return haloDark
}
