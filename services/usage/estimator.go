package usage

import (
	"math"
	"strings"
)

// Token estimation for backends that report no counts. Text with code
// markers (braces, semicolons, parentheses) is scored on a denser formula
// than prose; both round up so a non-empty text never estimates to zero
// from truncation.

const (
	codeWordWeight     = 0.8
	codePunctWeight    = 0.3
	codeOperatorWeight = 0.2
	proseWordWeight    = 0.75
)

const (
	codeMarkers    = "{};()"
	punctuationSet = ".,:;!?'\"`{}[]()"
	operatorSet    = "+-*/=<>&|%^~"
)

// EstimateTokens estimates the token count of text. Empty text is 0.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}

	if !strings.ContainsAny(text, codeMarkers) {
		return int(math.Ceil(float64(words) * proseWordWeight))
	}

	var punct, ops int
	for _, r := range text {
		if strings.ContainsRune(punctuationSet, r) {
			punct++
		}
		if strings.ContainsRune(operatorSet, r) {
			ops++
		}
	}
	score := float64(words)*codeWordWeight +
		float64(punct)*codePunctWeight +
		float64(ops)*codeOperatorWeight
	return int(math.Ceil(score))
}
