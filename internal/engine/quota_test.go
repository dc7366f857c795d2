package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_AllowsUpToLimit(t *testing.T) {
	q := NewQuotaEnforcer(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Check("A"))
	}
	assert.Equal(t, 3, q.Current())
	assert.Equal(t, 3, q.MaxSteps())

	err := q.Check("A")
	require.Error(t, err)
	assert.True(t, IsStepsExceeded(err))
	assert.Equal(t, "cascade from A exceeded max steps: 4 steps > 3 limit", err.Error())
}

func TestQuotaEnforcer_ZeroLimit(t *testing.T) {
	q := NewQuotaEnforcer(0)
	assert.True(t, IsStepsExceeded(q.Check("X")))
}

func TestClock_StrictlyIncreasing(t *testing.T) {
	c := NewClock()
	assert.Zero(t, c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Equal(t, "b", g.Generate())

	assert.Equal(t, "session-fixed", NewFixedGenerator().Generate())
}

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('7'), a[14], "version nibble")
}
