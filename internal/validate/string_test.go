package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestMapAreaName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{
			name:  "plain region name",
			input: "Harborview North",
			want:  "Harborview North",
		},
		{
			name:  "allowed punctuation",
			input: "St. Kilda's-East_2",
			want:  "St. Kilda&#39;s-East_2",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  Frome Hills  ",
			want:  "Frome Hills",
		},
		{
			name:  "single character",
			input: "X",
			want:  "X",
		},
		{
			name:    "empty",
			input:   "",
			wantErr: ErrEmpty,
		},
		{
			name:    "whitespace only",
			input:   "   ",
			wantErr: ErrEmpty,
		},
		{
			name:    "over 100 characters",
			input:   strings.Repeat("a", 101),
			wantErr: ErrTooLong,
		},
		{
			name:    "disallowed characters",
			input:   "Area@Name#123",
			wantErr: ErrInvalidCharacters,
		},
		{
			name:    "angle brackets rejected before escaping",
			input:   "<script>Glenelg</script>",
			wantErr: ErrInvalidCharacters,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MapAreaName(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("MapAreaName(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("MapAreaName(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("MapAreaName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// Names that happen to contain SQL keywords are ordinary place names.
// Parameterized queries are the injection defense, not name filtering.
func TestMapAreaName_KeywordLookalikes(t *testing.T) {
	for _, input := range []string{
		"Union Square",
		"Drop Bear Hollow",
		"Selection Point",
	} {
		if _, err := MapAreaName(input); err != nil {
			t.Errorf("MapAreaName(%q) rejected a legitimate place name: %v", input, err)
		}
	}
}

func TestLayerName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "plain", input: "Roads & Paths"},
		{name: "at max length", input: strings.Repeat("a", 100)},
		{name: "over max length", input: strings.Repeat("a", 101), wantErr: ErrTooLong},
		{name: "empty", input: "", wantErr: ErrEmpty},
		{name: "punctuation allowed", input: "Transit; stops + routes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LayerName(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("LayerName(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LayerName(%q) unexpected error: %v", tt.input, err)
			}
			if got == "" {
				t.Errorf("LayerName(%q) returned empty string", tt.input)
			}
		})
	}
}

func TestAnnotationContent(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{
			name:  "plain label",
			input: "Ferry terminal, weekend service only",
			want:  "Ferry terminal, weekend service only",
		},
		{
			name:  "empty allowed",
			input: "",
			want:  "",
		},
		{
			name:  "whitespace collapses to empty",
			input: "   ",
			want:  "",
		},
		{
			name:  "at max length",
			input: strings.Repeat("a", 1000),
			want:  strings.Repeat("a", 1000),
		},
		{
			name:    "over max length",
			input:   strings.Repeat("a", 1001),
			wantErr: ErrTooLong,
		},
		{
			name:  "markup escaped",
			input: "Check out <b>this</b> spot!",
			want:  "Check out &lt;b&gt;this&lt;/b&gt; spot!",
		},
		{
			name:  "event handler escaped",
			input: `<div onclick="evil()">pier</div>`,
			want:  "&lt;div onclick=&#34;evil()&#34;&gt;pier&lt;/div&gt;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AnnotationContent(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("AnnotationContent error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("AnnotationContent(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("AnnotationContent(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// Length limits count runes, not bytes. A 1000-rune label of multibyte
// characters is within budget even though it is 3000 bytes.
func TestAnnotationContent_RuneCounting(t *testing.T) {
	multibyte := strings.Repeat("港", 1000)
	if len(multibyte) <= 1000 {
		t.Fatalf("fixture is not multibyte: %d bytes", len(multibyte))
	}

	if _, err := AnnotationContent(multibyte); err != nil {
		t.Errorf("1000-rune multibyte content rejected: %v", err)
	}
	if _, err := AnnotationContent(multibyte + "港"); !errors.Is(err, ErrTooLong) {
		t.Errorf("1001-rune content error = %v, want %v", err, ErrTooLong)
	}
}
