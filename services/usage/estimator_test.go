package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "empty text",
			text: "",
			want: 0,
		},
		{
			name: "whitespace only",
			text: "   \n\t  ",
			want: 0,
		},
		{
			name: "single prose word rounds up",
			text: "hello",
			// 1 * 0.75 -> 1
			want: 1,
		},
		{
			name: "four prose words",
			text: "the quick brown fox",
			// 4 * 0.75 = 3
			want: 3,
		},
		{
			name: "prose with sentence punctuation stays on prose formula",
			text: "Hello there, how are you today",
			// 6 * 0.75 = 4.5 -> 5; commas alone are not code markers
			want: 5,
		},
		{
			name: "code snippet uses denser formula",
			text: "func add(a, b int) int { return a + b }",
			// words=11, punct=5, ops=1: 11*0.8 + 5*0.3 + 0.2 = 10.5 -> 11
			want: 11,
		},
		{
			name: "semicolon flips to code formula",
			text: "x = 1;",
			// words=3, punct=1, ops=1: 3*0.8 + 0.3 + 0.2 = 2.9 -> 3
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}

func TestEstimateTokensNeverZeroForNonEmpty(t *testing.T) {
	for _, text := range []string{"a", "x;", "(", "word"} {
		assert.Greater(t, EstimateTokens(text), 0, "text %q", text)
	}
}
