package color

import (
	"errors"
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  RGB
		ok    bool
	}{
		{"red", "#FF0000", RGB{R: 255}, true},
		{"lowercase", "#00ff00", RGB{G: 255}, true},
		{"mixed case", "#0000Ff", RGB{B: 255}, true},
		{"surrounding whitespace", "  #336699 ", RGB{R: 0x33, G: 0x66, B: 0x99}, true},
		{"named color", "red", RGB{}, false},
		{"shorthand", "#abc", RGB{}, false},
		{"missing hash", "336699", RGB{}, false},
		{"alpha channel", "#336699ff", RGB{}, false},
		{"non-hex digits", "#33669g", RGB{}, false},
		{"empty", "", RGB{}, false},
		{"injection attempt", `#33<script>`, RGB{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.ok {
				if err != nil {
					t.Fatalf("Parse(%q) error = %v", tt.input, err)
				}
				if got != tt.want {
					t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
				}
			} else {
				if !errors.Is(err, ErrInvalidFormat) {
					t.Errorf("Parse(%q) error = %v, want ErrInvalidFormat", tt.input, err)
				}
			}
		})
	}
}

func TestHexRoundTrip(t *testing.T) {
	c := RGB{R: 0x1A, G: 0x2B, B: 0x3C}
	parsed, err := Parse(c.Hex())
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", c.Hex(), err)
	}
	if parsed != c {
		t.Errorf("round trip = %+v, want %+v", parsed, c)
	}
}

func TestLuminance(t *testing.T) {
	if l := (RGB{}).Luminance(); l != 0 {
		t.Errorf("black luminance = %v, want 0", l)
	}
	if l := (RGB{R: 255, G: 255, B: 255}).Luminance(); math.Abs(l-1) > 1e-9 {
		t.Errorf("white luminance = %v, want 1", l)
	}
	// Green dominates the BT.709 weighting.
	if lg, lr := (RGB{G: 255}).Luminance(), (RGB{R: 255}).Luminance(); lg <= lr {
		t.Errorf("green luminance %v should exceed red %v", lg, lr)
	}
}

func TestContrastRatio(t *testing.T) {
	black := RGB{}
	white := RGB{R: 255, G: 255, B: 255}

	if r := ContrastRatio(black, white); math.Abs(r-21) > 0.01 {
		t.Errorf("black/white ratio = %v, want 21", r)
	}
	if r := ContrastRatio(white, black); math.Abs(r-21) > 0.01 {
		t.Errorf("ratio must be symmetric, got %v", r)
	}
	if r := ContrastRatio(white, white); math.Abs(r-1) > 1e-9 {
		t.Errorf("identical colors ratio = %v, want 1", r)
	}
}

func TestLabelHalo(t *testing.T) {
	tests := []struct {
		name string
		text RGB
		want RGB
	}{
		{"dark text gets light halo", RGB{R: 33, G: 37, B: 41}, haloLight},
		{"light text gets dark halo", RGB{R: 255, G: 250, B: 240}, haloDark},
		{"saturated blue gets light halo", RGB{B: 180}, haloLight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LabelHalo(tt.text); got != tt.want {
				t.Errorf("LabelHalo(%+v) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}
