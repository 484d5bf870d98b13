package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_IndexFTSAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := setupEntity(t, s, "searchable.webp")

	require.NoError(t, s.IndexFTS(ctx, id, "a screenshot of a terminal running tests"))

	results, err := s.FullTextSearch(ctx, "terminal", Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, id, results[0].EntityID)

	e, err := s.GetEntity(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, e.FTSIndexedAt)
}

func TestStore_FullTextSearch_EmptyQuery(t *testing.T) {
	s := newTestStore(t)
	results, err := s.FullTextSearch(context.Background(), "   ", Filters{}, 10)
	require.NoError(t, err)
	require.Nil(t, results)
}

func TestBuildMatchQuery_SegmentsCJKAndANDJoins(t *testing.T) {
	q := buildMatchQuery("hello 世界")
	require.Contains(t, q, "AND")
	require.Contains(t, q, `"hello"`)
}

func TestSegmentCJK_InsertsSpacesBetweenRunes(t *testing.T) {
	out := segmentCJK("日本語test")
	require.Equal(t, "日 本 語 test", out)
}
