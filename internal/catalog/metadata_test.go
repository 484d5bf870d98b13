package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_UpsertMetadata_MergesByKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := setupEntity(t, s, "meta.webp")

	err := s.UpsertMetadata(ctx, id, []EntityMetadata{
		{Key: "ocr_result", Value: "hello world", Source: string(SourcePluginGenerated)},
		{Key: "caption", Value: "a screenshot", Source: string(SourcePluginGenerated)},
	})
	require.NoError(t, err)

	err = s.UpsertMetadata(ctx, id, []EntityMetadata{
		{Key: "caption", Value: "an updated screenshot", Source: string(SourcePluginGenerated)},
	})
	require.NoError(t, err)

	entries, err := s.ListMetadata(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byKey := map[string]string{}
	for _, e := range entries {
		byKey[e.Key] = e.Value
	}
	require.Equal(t, "an updated screenshot", byKey["caption"])
	require.Equal(t, "hello world", byKey["ocr_result"])

	require.NoError(t, s.DeleteMetadataKey(ctx, id, "caption"))
	entries, err = s.ListMetadata(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestMetadataText_ExcludesOCRResult(t *testing.T) {
	text := MetadataText([]EntityMetadata{
		{Key: "ocr_result", Value: "should be excluded"},
		{Key: "caption", Value: "a photo of a cat"},
	})
	require.NotContains(t, text, "should be excluded")
	require.Contains(t, text, "a photo of a cat")
}
