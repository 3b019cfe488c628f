package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SzymonLeja/pgdocs-ingest/internal/tokenizer"
	"github.com/SzymonLeja/pgdocs-ingest/internal/tokenizer/tokenizertest"
)

// nulDropping decodes the NUL token to nothing, so windows made only of NULs
// decode to "".
type nulDropping struct{ tokenizertest.Runes }

func (n nulDropping) Decode(tokens []int) string {
	return strings.ReplaceAll(n.Runes.Decode(tokens), "\x00", "")
}

func joinPieces(pieces []Piece) string {
	var b strings.Builder
	for _, p := range pieces {
		b.WriteString(p.Content)
	}
	return b.String()
}

func TestSplitter_ThreePieces(t *testing.T) {
	content := strings.Repeat("x", 15000)
	s := NewSplitter(tokenizertest.Runes{}, 7000, 10)

	pieces := s.Split(content, 15000)

	require.Len(t, pieces, 3)
	for i, p := range pieces {
		assert.Equal(t, i, p.SubIndex)
		assert.Equal(t, 5000, p.TokenCount)
	}
	assert.Equal(t, content, joinPieces(pieces))
}

func TestSplitter_BudgetAndReconstitution(t *testing.T) {
	s := NewSplitter(tokenizertest.Runes{}, 7000, 10)

	for _, n := range []int{7001, 9999, 14000, 14002, 20999, 21000, 35001} {
		content := strings.Repeat("abcdefghij", n/10+1)[:n]
		pieces := s.Split(content, n)

		require.NotEmpty(t, pieces, "length %d", n)
		for _, p := range pieces {
			assert.LessOrEqual(t, p.TokenCount, 7000, "length %d", n)
		}
		assert.Equal(t, content, joinPieces(pieces), "length %d", n)
	}
}

func TestSplitter_FoldsShortRemainder(t *testing.T) {
	s := NewSplitter(tokenizertest.Runes{}, 7000, 10)

	pieces := s.Split(strings.Repeat("y", 14002), 14002)

	require.Len(t, pieces, 3)
	assert.Equal(t, []int{4667, 4667, 4668}, []int{pieces[0].TokenCount, pieces[1].TokenCount, pieces[2].TokenCount})
}

func TestSplitter_KeepsRemainderThatWouldOverflow(t *testing.T) {
	s := NewSplitter(tokenizertest.Runes{}, 7000, 10)

	pieces := s.Split(strings.Repeat("z", 20999), 20999)

	require.Len(t, pieces, 4)
	assert.Equal(t, 2, pieces[3].TokenCount)
}

func TestSplitter_SkipsEmptyWindows(t *testing.T) {
	s := NewSplitter(nulDropping{}, 4, 0)

	pieces := s.Split("abc\x00\x00\x00def", 9)

	require.Len(t, pieces, 2)
	assert.Equal(t, Piece{SubIndex: 0, Content: "abc", TokenCount: 3}, pieces[0])
	assert.Equal(t, Piece{SubIndex: 1, Content: "def", TokenCount: 3}, pieces[1])
}

func TestSplitter_MultibyteCutsStayValidUTF8(t *testing.T) {
	tk, err := tokenizer.NewTiktoken("cl100k_base")
	require.NoError(t, err)

	content := strings.Repeat("Collation example: 数据库 🐘 naïve ", 300)
	count := tokenizer.Count(tk, content)

	for ceiling := 500; ceiling < 560; ceiling++ {
		pieces := NewSplitter(tk, ceiling, 10).Split(content, count)

		require.Greater(t, len(pieces), 1, "ceiling %d", ceiling)
		for _, p := range pieces {
			assert.True(t, utf8.ValidString(p.Content), "ceiling %d sub %d", ceiling, p.SubIndex)
			assert.LessOrEqual(t, p.TokenCount, ceiling, "ceiling %d sub %d", ceiling, p.SubIndex)
		}
		assert.Equal(t, content, joinPieces(pieces), "ceiling %d", ceiling)
	}
}
