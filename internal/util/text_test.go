package util

import (
	"math"
	"reflect"
	"testing"
)

func TestSanitizePostgresText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain utf8",
			input: "hello world",
			want:  "hello world",
		},
		{
			name:  "contains null byte",
			input: "hel\x00lo",
			want:  "hello",
		},
		{
			name:  "contains invalid utf8",
			input: string([]byte{'a', 0xff, 'b'}),
			want:  "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizePostgresText(tt.input)
			if got != tt.want {
				t.Fatalf("unexpected sanitized value: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripCitationMarkers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "single marker",
			input: "The due date is 2024-06-01. [[V1StGXR8_Z5jdHi6B-myT]]",
			want:  "The due date is 2024-06-01. ",
		},
		{
			name:  "marker mid sentence",
			input: "invoice [[abc123]] total",
			want:  "invoice  total",
		},
		{
			name:  "no markers",
			input: "plain text",
			want:  "plain text",
		},
		{
			name:  "multiple markers",
			input: "[[a]] x [[b]]",
			want:  " x ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripCitationMarkers(tt.input)
			if got != tt.want {
				t.Fatalf("unexpected result: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "tabs and newlines",
			input: "a\tb\n\nc",
			want:  "a b c",
		},
		{
			name:  "leading and trailing",
			input: "  hello  world  ",
			want:  "hello world",
		},
		{
			name:  "already normalized",
			input: "hello world",
			want:  "hello world",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeWhitespace(tt.input)
			if got != tt.want {
				t.Fatalf("unexpected result: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "lowercases and splits punctuation",
			input: "Payment Terms: Net-30!",
			want:  []string{"payment", "terms", "net", "30"},
		},
		{
			name:  "empty input",
			input: "",
			want:  []string{},
		},
		{
			name:  "only punctuation",
			input: "--- !!!",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("unexpected tokens: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{
			name: "identical",
			a:    "acme supply corp",
			b:    "Acme Supply Corp",
			want: 1.0,
		},
		{
			name: "disjoint",
			a:    "alpha beta",
			b:    "gamma delta",
			want: 0.0,
		},
		{
			name: "partial",
			a:    "warranty claim process",
			b:    "warranty claim",
			want: 2.0 / 3.0,
		},
		{
			name: "empty side",
			a:    "",
			b:    "anything",
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenOverlap(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("unexpected overlap: got %f, want %f", got, tt.want)
			}
		})
	}
}
