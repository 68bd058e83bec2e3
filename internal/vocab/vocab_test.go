package vocab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDetectsSpecials(t *testing.T) {
	t.Parallel()

	v, err := New([]string{"<s>", "</s>", "a", "\n"})
	require.NoError(t, err)

	assert.Equal(t, 4, v.Size())
	assert.Equal(t, 0, v.BOS())
	assert.Equal(t, 1, v.EOS())
	assert.Equal(t, 3, v.Newline())
	assert.Equal(t, 4, v.MaxTokenLen())
}

func TestNewSharedBOSAndEOS(t *testing.T) {
	t.Parallel()

	v, err := New([]string{"<|endoftext|>", "<|startoftext|>"})
	require.NoError(t, err)
	assert.Equal(t, 0, v.EOS())
	assert.Equal(t, 1, v.BOS())

	gpt2, err := New([]string{"a", "<|endoftext|>"})
	require.NoError(t, err)
	assert.Equal(t, 1, gpt2.EOS())
	assert.Equal(t, -1, gpt2.BOS())
	assert.Equal(t, -1, gpt2.Newline())
}

func TestNewRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := New([]string{"a", "b", "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = New(nil)
	require.Error(t, err)
}

func TestFromMapRequiresDenseIDs(t *testing.T) {
	t.Parallel()

	_, err := FromMap(map[string]int{"a": 0, "b": 2})
	require.Error(t, err)

	_, err = FromMap(map[string]int{"a": 1, "b": 1})
	require.Error(t, err)

	v, err := FromMap(map[string]int{"He": 0, "llo": 1, " world": 2, "<eos>": 3})
	require.NoError(t, err)
	assert.Equal(t, "llo", v.Token(1))
	assert.Equal(t, 3, v.EOS())
}

func TestParseJSONDecodesByteMarkers(t *testing.T) {
	t.Parallel()

	v, err := ParseJSON([]byte(`{"Ġworld": 0, "Ċ": 1, "hello": 2}`))
	require.NoError(t, err)

	id, ok := v.ID(" world")
	require.True(t, ok)
	assert.Equal(t, 0, id)
	assert.Equal(t, 1, v.Newline())
	assert.Equal(t, "hello world\n", v.Decode([]int{2, 0, 1}))
}

func TestParseJSONErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseJSON([]byte(`[1,2,3]`))
	require.Error(t, err)

	_, err = ParseJSON([]byte(`{"Ġ": 0, " ": 1}`))
	require.Error(t, err)
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vocab.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":0,"b":1,"</s>":2}`), 0o644))

	v, err := LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Size())
	assert.Equal(t, 2, v.EOS())

	_, err = LoadJSON(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestTokenOutOfRange(t *testing.T) {
	t.Parallel()

	v, err := New([]string{"a"})
	require.NoError(t, err)
	assert.Equal(t, "", v.Token(-1))
	assert.Equal(t, "", v.Token(5))
}
