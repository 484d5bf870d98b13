package ingest

import (
	"context"
	"os"
	"testing"

	"github.com/arkohut/screenmemory/internal/catalog"
	"github.com/stretchr/testify/require"
)

func TestPipeline_Scan_IngestsAndPrunes(t *testing.T) {
	p, store, libID, folderID := newTestPipeline(t, nil)
	ctx := context.Background()

	root := t.TempDir()
	keep := writeTestFile(t, root, "keep.png", pngFixture())
	gone := writeTestFile(t, root, "gone.png", pngFixture())
	writeTestFile(t, root, ".hidden.png", pngFixture())
	writeTestFile(t, root, "notes.txt", []byte("not an image"))

	require.NoError(t, p.Scan(ctx, libID, folderID, root))

	entities, err := store.ListEntities(ctx, catalog.Filters{}, 100, 0)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	require.NoError(t, os.Remove(gone))
	require.NoError(t, p.Scan(ctx, libID, folderID, root))

	_, err = store.GetEntityByFilepath(ctx, keep)
	require.NoError(t, err)
	_, err = store.GetEntityByFilepath(ctx, gone)
	require.Error(t, err)
}

func TestPipeline_Scan_UnchangedFileIsNoOp(t *testing.T) {
	p, store, libID, folderID := newTestPipeline(t, nil)
	ctx := context.Background()

	root := t.TempDir()
	path := writeTestFile(t, root, "shot.png", pngFixture())

	require.NoError(t, p.Scan(ctx, libID, folderID, root))
	before, err := store.GetEntityByFilepath(ctx, path)
	require.NoError(t, err)

	require.NoError(t, p.Scan(ctx, libID, folderID, root))
	after, err := store.GetEntityByFilepath(ctx, path)
	require.NoError(t, err)

	require.Equal(t, before.LastScanAt, after.LastScanAt)
	require.Equal(t, before.FTSIndexedAt, after.FTSIndexedAt)
}

func TestEligiblePath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/a/b/shot.png", true},
		{"/a/b/shot.PNG", true},
		{"/a/b/.hidden.png", false},
		{"/a/b/tmpfile.png", false},
		{"/a/b/notes.txt", false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, eligiblePath(c.path), c.path)
	}
}
