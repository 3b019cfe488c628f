package ingest

import (
	"strings"
	"unicode/utf8"

	"github.com/SzymonLeja/pgdocs-ingest/internal/tokenizer"
)

// Piece is one token window of an oversized proto-chunk.
type Piece struct {
	SubIndex   int
	Content    string
	TokenCount int
}

// Splitter cuts text into n = count/ceiling + 1 equal token windows.
// Windows ignore sentence boundaries.
type Splitter struct {
	tok     tokenizer.Tokenizer
	ceiling int
	floor   int
}

func NewSplitter(tok tokenizer.Tokenizer, ceiling, floor int) *Splitter {
	return &Splitter{tok: tok, ceiling: ceiling, floor: floor}
}

// Split windows content whose token count is tokenCount. A cut that would
// land inside a multi-byte character moves to the nearest token boundary
// that does not, so every piece is valid UTF-8 and the pieces still join
// back to the input. A trailing window shorter than the floor is folded into
// the one before it when the result still fits the ceiling. Windows that
// decode to "" are dropped.
func (s *Splitter) Split(content string, tokenCount int) []Piece {
	tokens := s.tok.Encode(content)
	if len(tokens) == 0 {
		return nil
	}
	text, offsets := s.decodeOffsets(tokens)

	n := tokenCount/s.ceiling + 1
	perPiece := len(tokens) / n
	if perPiece < 1 {
		perPiece = 1
	}

	bounds := []int{0}
	for b := perPiece; b < len(tokens); b += perPiece {
		lo := bounds[len(bounds)-1]
		if cut := alignCut(text, offsets, lo, b, s.ceiling); cut > lo && cut < len(tokens) {
			bounds = append(bounds, cut)
		}
	}
	bounds = append(bounds, len(tokens))

	if k := len(bounds) - 1; k > 1 {
		last := bounds[k] - bounds[k-1]
		prev := bounds[k-1] - bounds[k-2]
		if last < s.floor && prev+last <= s.ceiling {
			bounds = append(bounds[:k-1], bounds[k])
		}
	}

	pieces := make([]Piece, 0, len(bounds)-1)
	for i := 1; i < len(bounds); i++ {
		a, b := bounds[i-1], bounds[i]
		piece := text[offsets[a]:offsets[b]]
		if piece == "" {
			continue
		}
		pieces = append(pieces, Piece{
			SubIndex:   len(pieces),
			Content:    piece,
			TokenCount: b - a,
		})
	}
	return pieces
}

// decodeOffsets decodes tokens one at a time. offsets[i] is the byte offset
// of token i in text and offsets[len(tokens)] is len(text).
func (s *Splitter) decodeOffsets(tokens []int) (string, []int) {
	var b strings.Builder
	offsets := make([]int, len(tokens)+1)
	for i, t := range tokens {
		offsets[i] = b.Len()
		b.WriteString(s.tok.Decode([]int{t}))
	}
	offsets[len(tokens)] = b.Len()
	return b.String(), offsets
}

// alignCut returns the token boundary nearest to want whose byte offset
// starts a character. It searches forward while the window opened at lo
// stays within ceiling, then back towards lo.
func alignCut(text string, offsets []int, lo, want, ceiling int) int {
	last := len(offsets) - 1
	onRune := func(i int) bool {
		off := offsets[i]
		return off >= len(text) || utf8.RuneStart(text[off])
	}
	for c := want; c < last && c-lo <= ceiling; c++ {
		if onRune(c) {
			return c
		}
	}
	for c := want - 1; c > lo; c-- {
		if onRune(c) {
			return c
		}
	}
	return last
}
