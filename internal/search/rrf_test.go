package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuse_PrefersIDsRankedHighlyInBothLists(t *testing.T) {
	lexical := []int64{1, 2, 3}
	vector := []int64{2, 1, 4}

	fused := fuse(lexical, vector)

	assert.Equal(t, int64(1), fused[0])
	assert.Equal(t, int64(2), fused[1])
	assert.Contains(t, fused, int64(3))
	assert.Contains(t, fused, int64(4))
}

func TestFuse_EmptyListsProduceEmptyResult(t *testing.T) {
	assert.Empty(t, fuse(nil, nil))
}

func TestFuse_SingleListPreservesOrder(t *testing.T) {
	fused := fuse([]int64{5, 6, 7}, nil)
	assert.Equal(t, []int64{5, 6, 7}, fused)
}
