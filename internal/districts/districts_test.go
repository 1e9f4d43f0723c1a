package districts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStates(t *testing.T) {
	states := States()
	require.NotEmpty(t, states)
	assert.Contains(t, states, "Jharkhand")
	assert.Contains(t, states, "Bihar")
	assert.IsNonDecreasing(t, states)
}

func TestListCaseInsensitive(t *testing.T) {
	ds := List("jharkhand")
	require.Len(t, ds, 24)
	assert.Contains(t, ds, "Ranchi")
	assert.Contains(t, ds, "West Singhbhum")

	assert.Equal(t, ds, List("  Jharkhand "))
}

func TestListUnknownState(t *testing.T) {
	assert.Nil(t, List("Atlantis"))
}

func TestListReturnsCopy(t *testing.T) {
	ds := List("Jharkhand")
	ds[0] = "mutated"
	assert.Equal(t, "Bokaro", List("Jharkhand")[0])
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("Odisha"))
	assert.True(t, Known("west bengal"))
	assert.False(t, Known("Atlantis"))
}
