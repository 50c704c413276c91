package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeyringEmpty(t *testing.T) {
	_, err := NewKeyring(nil)
	require.ErrorIs(t, err, ErrEmptyKeyring)
}

func TestKeyringRotateModulo(t *testing.T) {
	k, err := NewKeyring([]string{"a", "b", "c"})
	require.NoError(t, err)

	cur, gen := k.Current()
	assert.Equal(t, "a", cur)
	assert.Equal(t, uint64(0), gen)

	assert.Equal(t, "b", k.Rotate())
	assert.Equal(t, "c", k.Rotate())
	assert.Equal(t, "a", k.Rotate()) // wraps around

	cur, gen = k.Current()
	assert.Equal(t, "a", cur)
	assert.Equal(t, uint64(3), gen)
}

func TestKeyringSingleKeyRotateIsNoop(t *testing.T) {
	k, err := NewKeyring([]string{"only"})
	require.NoError(t, err)

	before, _ := k.Current()
	assert.Equal(t, "only", k.Rotate())
	after, gen := k.Current()

	assert.Equal(t, before, after)
	// Generation still advances so cached clients are rebuilt.
	assert.Equal(t, uint64(1), gen)
}

func TestKeyringCopiesInput(t *testing.T) {
	keys := []string{"a", "b"}
	k, err := NewKeyring(keys)
	require.NoError(t, err)

	keys[0] = "mutated"
	cur, _ := k.Current()
	assert.Equal(t, "a", cur)
}
