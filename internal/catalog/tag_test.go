package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_TagLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := setupEntity(t, s, "tagged.webp")

	require.NoError(t, s.AddTag(ctx, id, "vacation", SourceUserGenerated))
	require.NoError(t, s.AddTag(ctx, id, "vacation", SourcePluginGenerated)) // re-tag updates source

	all, err := s.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	e, err := s.GetEntity(ctx, id)
	require.NoError(t, err)
	require.Len(t, e.Tags, 1)
	require.Equal(t, "vacation", e.Tags[0].Name)

	require.NoError(t, s.RemoveTag(ctx, id, "vacation"))
	e, err = s.GetEntity(ctx, id)
	require.NoError(t, err)
	require.Empty(t, e.Tags)
}

func TestStore_AddTag_RequiresName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := setupEntity(t, s, "untagged.webp")
	err := s.AddTag(ctx, id, "", SourceUserGenerated)
	require.ErrorIs(t, err, ErrValidation)
}
