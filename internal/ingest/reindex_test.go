package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/arkohut/screenmemory/internal/catalog"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dim), nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.Embed(ctx, text)
}

func (f *fakeEmbedder) Dim() int { return f.dim }

func TestPipeline_Reindex_BumpsLastScanAt(t *testing.T) {
	p, store, libID, folderID := newTestPipeline(t, nil)
	ctx := context.Background()

	dir := t.TempDir()
	path := writeTestFile(t, dir, "shot.png", pngFixture())
	require.NoError(t, p.processFile(ctx, libID, folderID, path))

	n, err := p.Reindex(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	e, err := store.GetEntityByFilepath(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, e.LastScanAt)
}

func TestPipeline_SearchIndex_ReembedsStaleEntities(t *testing.T) {
	p, store, libID, folderID := newTestPipeline(t, nil)
	ctx := context.Background()

	dir := t.TempDir()
	path := writeTestFile(t, dir, "shot.png", pngFixture())
	require.NoError(t, p.processFile(ctx, libID, folderID, path))

	_, err := p.Reindex(ctx)
	require.NoError(t, err)

	embedder := &fakeEmbedder{dim: 4}
	n, err := p.SearchIndex(ctx, embedder, false)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	e, err := store.GetEntityByFilepath(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, e.VecIndexedAt)

	n, err = p.SearchIndex(ctx, embedder, false)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestNeedsReindex(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	require.False(t, needsReindex(catalog.Entity{}))
	require.True(t, needsReindex(catalog.Entity{LastScanAt: &now}))
	require.True(t, needsReindex(catalog.Entity{LastScanAt: &now, FTSIndexedAt: &past, VecIndexedAt: &now}))
	require.False(t, needsReindex(catalog.Entity{LastScanAt: &past, FTSIndexedAt: &now, VecIndexedAt: &now}))
}

func TestPipeline_OrphanCleanup_RemovesDanglingIndexRows(t *testing.T) {
	p, store, libID, folderID := newTestPipeline(t, nil)
	ctx := context.Background()

	dir := t.TempDir()
	path := writeTestFile(t, dir, "shot.png", pngFixture())
	require.NoError(t, p.processFile(ctx, libID, folderID, path))

	e, err := store.GetEntityByFilepath(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.IndexVec(ctx, e.ID, make([]float32, 4)))

	_, err = store.DB().ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, e.ID)
	require.NoError(t, err)

	require.NoError(t, p.OrphanCleanup(ctx))

	var count int
	require.NoError(t, store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM entities_vec WHERE entity_id = ?`, e.ID).Scan(&count))
	require.Equal(t, 0, count)
}
