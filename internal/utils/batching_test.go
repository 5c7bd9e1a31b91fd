package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkSizes(t *testing.T) {
	tests := []struct {
		n, size int
		want    []int
	}{
		{0, 100, nil},
		{1, 100, []int{1}},
		{100, 100, []int{100}},
		{250, 100, []int{100, 100, 50}},
		{300, 100, []int{100, 100, 100}},
		{7, 3, []int{3, 3, 1}},
		{5, 0, []int{5}},
	}
	for _, tt := range tests {
		ranges := Chunk(tt.n, tt.size)
		var sizes []int
		next := 0
		for _, r := range ranges {
			assert.Equal(t, next, r.Start, "ranges must be contiguous")
			sizes = append(sizes, r.Len())
			next = r.End
		}
		assert.Equal(t, tt.want, sizes, "n=%d size=%d", tt.n, tt.size)
		if tt.n > 0 {
			assert.Equal(t, tt.n, next)
		}
	}
}

func TestChunkSlice(t *testing.T) {
	chunks := ChunkSlice([]string{"a", "b", "c", "d", "e"}, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"e"}, chunks[2])
}

func TestBatchBuffer(t *testing.T) {
	buf := NewBatchBuffer[int](2)
	assert.False(t, buf.HasData())
	assert.Nil(t, buf.GetAndClear())

	buf.Add(1)
	assert.False(t, buf.Full())
	buf.Add(2)
	assert.True(t, buf.Full())
	assert.Equal(t, 2, buf.Size())

	assert.Equal(t, []int{1, 2}, buf.GetAndClear())
	assert.Equal(t, 0, buf.Size())
}
