// Package tokenizertest provides deterministic tokenizers for tests.
package tokenizertest

// Runes encodes every rune as one token, so token counts equal rune counts
// and any window decodes back to exactly the text it came from.
type Runes struct{}

func (Runes) Encode(text string) []int {
	out := make([]int, 0, len(text))
	for _, r := range text {
		out = append(out, int(r))
	}
	return out
}

func (Runes) Decode(tokens []int) string {
	rs := make([]rune, len(tokens))
	for i, t := range tokens {
		rs[i] = rune(t)
	}
	return string(rs)
}
