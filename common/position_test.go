package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityPacking(t *testing.T) {
	p := NewPosition(2000, 13, 1)
	assert.Equal(t, uint64(2000*1000000000+13*10000+1), p.Priority())
	assert.Equal(t, p, PositionFromPriority(p.Priority()))
}

func TestPriorityOrder(t *testing.T) {
	// earlier block beats any tx/output index of later blocks
	early := NewPosition(1000, 65535, 1)
	late := NewPosition(2000, 0, 0)
	assert.Less(t, early.Priority(), late.Priority())

	// inside a block, tx index orders before output index
	a := NewPosition(1000, 1, 0)
	b := NewPosition(1000, 1, 1)
	c := NewPosition(1000, 2, 0)
	assert.Less(t, a.Priority(), b.Priority())
	assert.Less(t, b.Priority(), c.Priority())
}

func TestPositionValid(t *testing.T) {
	require.NoError(t, NewPosition(1000, 65535, 1).Valid())
	assert.Error(t, NewPosition(1000, 100000, 0).Valid())
	assert.Error(t, NewPosition(1000, 0, 10000).Valid())
	assert.Error(t, NewPosition(1<<63, 0, 0).Valid())
}
