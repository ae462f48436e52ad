package msgid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TimeOrdered(t *testing.T) {
	first, err := New()
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)

	second, err := New()
	require.NoError(t, err)

	assert.Equal(t, uint64(7), uint64(first.Version()))
	assert.Less(t, first.String(), second.String())
}

func TestMustNew_ProducesDistinctIDs(t *testing.T) {
	a := MustNew()
	b := MustNew()
	assert.NotEqual(t, a, b)
}
