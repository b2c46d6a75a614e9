package priorityqueue

import (
	"math/rand"
	"testing"

	"plasma-rootchain/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyQueue(t *testing.T) {
	q := New()
	assert.Equal(t, 0, q.CurrentSize())

	_, err := q.GetMin()
	require.Error(t, err)
	assert.Equal(t, common.ErrQueueEmpty, common.Unwrap(err))

	_, err = q.DelMin()
	require.Error(t, err)
	assert.Equal(t, common.ErrQueueEmpty, common.Unwrap(err))
}

func TestInsertDelMinOrder(t *testing.T) {
	q := New()
	keys := []uint64{5000000000, 3, 1000000000, 42, 7, 42}
	for _, k := range keys {
		q.Insert(k)
	}
	assert.Equal(t, len(keys), q.CurrentSize())

	min, err := q.GetMin()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), min)
	// GetMin does not remove
	assert.Equal(t, len(keys), q.CurrentSize())

	expected := []uint64{3, 7, 42, 42, 1000000000, 5000000000}
	for _, want := range expected {
		got, err := q.DelMin()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.CurrentSize())
}

func TestRandomSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	q := New()
	n := 1000
	for i := 0; i < n; i++ {
		q.Insert(rng.Uint64())
	}
	prev, err := q.DelMin()
	require.NoError(t, err)
	for i := 1; i < n; i++ {
		cur, err := q.DelMin()
		require.NoError(t, err)
		require.LessOrEqual(t, prev, cur)
		prev = cur
	}
	assert.Equal(t, 0, q.CurrentSize())
}
