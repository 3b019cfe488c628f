package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SzymonLeja/pgdocs-ingest/internal/tokenizer/tokenizertest"
)

func TestTiktoken_RoundTrip(t *testing.T) {
	tk, err := NewTiktoken("cl100k_base")
	require.NoError(t, err)

	text := "CREATE TABLE films (code char(5) PRIMARY KEY, title varchar(40));\n"
	tokens := tk.Encode(text)
	require.NotEmpty(t, tokens)
	assert.Less(t, len(tokens), len(text))
	assert.Equal(t, text, tk.Decode(tokens))
}

func TestTiktoken_UnknownEncoding(t *testing.T) {
	_, err := NewTiktoken("no_such_encoding")
	assert.Error(t, err)
}

func TestCount(t *testing.T) {
	var tk Tokenizer = tokenizertest.Runes{}
	assert.Equal(t, 0, Count(tk, ""))
	assert.Equal(t, 5, Count(tk, "héllo"))
}
