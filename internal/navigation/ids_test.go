package navigation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()

	assert.NotEqual(t, a, b)
	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("q-1", "q-2")
	assert.Equal(t, "q-1", g.Generate())
	assert.Equal(t, "q-2", g.Generate())
	assert.Equal(t, "q-2", g.Generate(), "last id repeats")

	assert.Equal(t, "test-compilation", NewFixedGenerator().Generate())
}
