package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpans(t *testing.T) {
	cases := []struct {
		name string
		line string
		want []Span
	}{
		{"plain", "nothing special", []Span{{Plain, "nothing special"}}},
		{"bold", "take **deep** breaths", []Span{{Plain, "take "}, {Bold, "deep"}, {Plain, " breaths"}}},
		{"emphasis", "*gently* now", []Span{{Emphasis, "gently"}, {Plain, " now"}}},
		{"adjacent", "**a***b*", []Span{{Bold, "a"}, {Emphasis, "b"}}},
		{"unmatched", "a * b", []Span{{Plain, "a * b"}}},
		{"lazy", "*a* and *b*", []Span{{Emphasis, "a"}, {Plain, " and "}, {Emphasis, "b"}}},
		{"empty", "", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Spans(tc.line))
		})
	}
}

func TestSingleAsteriskRendersStrong(t *testing.T) {
	spans := Spans("*calm*")
	assert.Len(t, spans, 1)
	assert.Equal(t, Emphasis, spans[0].Style)
	assert.True(t, spans[0].Strong())
	assert.False(t, Span{Style: Plain, Text: "x"}.Strong())
}
