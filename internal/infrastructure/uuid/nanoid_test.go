package uuid

import (
	"errors"
	"strings"
	"testing"
	"time"

	guuid "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomGenerator_PrefersUUID(t *testing.T) {
	gen := NewRandomGenerator(8)

	id, err := gen.Generate()
	require.NoError(t, err)
	_, err = guuid.Parse(id)
	assert.NoError(t, err)
}

func TestRandomGenerator_FallsBack(t *testing.T) {
	gen := NewRandomGenerator(8)
	gen.random = func() (guuid.UUID, error) { return guuid.Nil, errors.New("no entropy") }
	gen.now = func() time.Time { return time.Unix(1700000000, 0) }

	id, err := gen.Generate()
	require.NoError(t, err)

	parts := strings.SplitN(id, "-", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "loyw3v28", parts[0])
	assert.Len(t, parts[1], 8)
}

func TestNanoIDGenerator_Length(t *testing.T) {
	id, err := NewNanoIDGenerator(24).Generate()
	require.NoError(t, err)
	assert.Len(t, id, 24)
	assert.Panics(t, func() { NewNanoIDGenerator(0) })
}

func TestCodeGenerator(t *testing.T) {
	code, err := NewCodeGenerator(6).Generate()
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.Contains(t, CodeAlphabet, string(r))
	}
}
