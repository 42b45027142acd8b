package engine

import (
	"testing"

	"github.com/gainaura/aura/internal/apperr"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "tracking params stripped",
			input:    "https://example.com/watch?v=abc&utm_source=x",
			expected: "https://example.com/watch?v=abc",
		},
		{
			name:     "case folded",
			input:    "HTTPS://Example.COM/watch?v=abc",
			expected: "https://example.com/watch?v=abc",
		},
		{
			name:     "default port and fragment dropped",
			input:    "https://example.com:443/watch?v=abc#t=10",
			expected: "https://example.com/watch?v=abc",
		},
		{
			name:     "query params sorted",
			input:    "https://example.com/watch?list=pl1&v=abc",
			expected: "https://example.com/watch?list=pl1&v=abc",
		},
		{
			name:     "scheme added for bare host",
			input:    "example.com/watch?v=abc",
			expected: "https://example.com/watch?v=abc",
		},
		{
			name:     "share token stripped",
			input:    "https://example.com/watch?v=abc&si=xyz123",
			expected: "https://example.com/watch?v=abc",
		},
		{
			name:     "trailing slash trimmed",
			input:    "https://example.com/channel/",
			expected: "https://example.com/channel",
		},
	}

	for _, test := range tests {
		got, err := NormalizeURL(test.input)
		if err != nil {
			t.Errorf("%s: unexpected error %v", test.name, err)
			continue
		}
		if got != test.expected {
			t.Errorf("%s: NormalizeURL(%q) = %q, expected %q", test.name, test.input, got, test.expected)
		}
	}
}

func TestNormalizeURL_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "ftp://example.com/file"} {
		_, err := NormalizeURL(input)
		if !apperr.IsKind(err, apperr.KindInvalidSelection) {
			t.Errorf("NormalizeURL(%q) = %v, expected invalid_selection", input, err)
		}
	}
}

func TestDedupKey_CollapsesTrackedVariants(t *testing.T) {
	a, err := DedupKey("https://example.com/watch?v=abc&utm_source=x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := DedupKey("https://example.com/watch?v=abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Errorf("expected identical keys, got %q and %q", a, b)
	}

	c, err := DedupKey("https://example.com/watch?v=other")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == a {
		t.Error("different media must not share a dedup key")
	}
}
