package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setupEntity(t *testing.T, s *Store, filepath string) int64 {
	t.Helper()
	ctx := context.Background()
	lib, err := s.CreateLibrary(ctx, "lib-"+filepath)
	require.NoError(t, err)
	folder, err := s.AddFolder(ctx, lib.ID, "/"+filepath, "screenshots")
	require.NoError(t, err)
	id, err := s.UpsertEntity(ctx, &Entity{
		LibraryID: lib.ID, FolderID: folder.ID, Filepath: filepath,
		Filename: filepath, Size: 1, FileType: "webp", FileTypeGroup: FileTypeImage,
	})
	require.NoError(t, err)
	return id
}

func TestStore_TouchAndIndexTimestamps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := setupEntity(t, s, "a.webp")

	now := time.Now()
	require.NoError(t, s.Touch(ctx, id, now))
	require.NoError(t, s.MarkFTSIndexed(ctx, id, now))
	require.NoError(t, s.MarkVecIndexed(ctx, id, now))

	e, err := s.GetEntity(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, e.LastScanAt)
	require.NotNil(t, e.FTSIndexedAt)
	require.NotNil(t, e.VecIndexedAt)
	require.WithinDuration(t, now, *e.LastScanAt, time.Second)
}

func TestStore_GetEntity_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetEntity(context.Background(), 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteByFilepathNotIn_PrunesMissingFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lib, err := s.CreateLibrary(ctx, "lib")
	require.NoError(t, err)
	folder, err := s.AddFolder(ctx, lib.ID, "/root", "screenshots")
	require.NoError(t, err)

	var ids []int64
	for _, fp := range []string{"/root/a.webp", "/root/b.webp", "/root/c.webp"} {
		id, err := s.UpsertEntity(ctx, &Entity{
			LibraryID: lib.ID, FolderID: folder.ID, Filepath: fp,
			Filename: fp, Size: 1, FileType: "webp", FileTypeGroup: FileTypeImage,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	deleted, err := s.DeleteByFilepathNotIn(ctx, folder.ID, []string{"/root/a.webp"})
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	_, err = s.GetEntity(ctx, ids[0])
	require.NoError(t, err)
	_, err = s.GetEntity(ctx, ids[1])
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetEntitiesByFilepaths_BatchLookup(t *testing.T) {
	s := newTestStore(t)
	setupEntity(t, s, "a.webp")
	setupEntity(t, s, "b.webp")

	found, err := s.GetEntitiesByFilepaths(context.Background(), []string{"a.webp", "b.webp", "missing.webp"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.NotNil(t, found["a.webp"])
	require.NotNil(t, found["b.webp"])
	require.Nil(t, found["missing.webp"])
}

func TestStore_GetEntitiesByFilepaths_EmptyInput(t *testing.T) {
	s := newTestStore(t)
	found, err := s.GetEntitiesByFilepaths(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestStore_ListEntities_FiltersByLibrary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lib1, _ := s.CreateLibrary(ctx, "lib1")
	lib2, _ := s.CreateLibrary(ctx, "lib2")
	f1, _ := s.AddFolder(ctx, lib1.ID, "/one", "screenshots")
	f2, _ := s.AddFolder(ctx, lib2.ID, "/two", "screenshots")

	_, err := s.UpsertEntity(ctx, &Entity{LibraryID: lib1.ID, FolderID: f1.ID, Filepath: "/one/a.webp", Filename: "a.webp", FileType: "webp", FileTypeGroup: FileTypeImage})
	require.NoError(t, err)
	_, err = s.UpsertEntity(ctx, &Entity{LibraryID: lib2.ID, FolderID: f2.ID, Filepath: "/two/b.webp", Filename: "b.webp", FileType: "webp", FileTypeGroup: FileTypeImage})
	require.NoError(t, err)

	entities, err := s.ListEntities(ctx, Filters{LibraryIDs: []int64{lib1.ID}}, 10, 0)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	require.Equal(t, "/one/a.webp", entities[0].Filepath)
}
