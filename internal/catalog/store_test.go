package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"), 4, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sub", "catalog.db")
	s, err := Open(path, 4, nil)
	require.NoError(t, err)
	defer s.Close()
}

func TestStore_LibraryFolderEntityLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lib, err := s.CreateLibrary(ctx, "screenshots")
	require.NoError(t, err)
	require.NotZero(t, lib.ID)

	_, err = s.CreateLibrary(ctx, "screenshots")
	require.ErrorIs(t, err, ErrConflict)

	folder, err := s.AddFolder(ctx, lib.ID, "/home/user/Pictures/Screenshots", "screenshots")
	require.NoError(t, err)

	got, err := s.GetLibrary(ctx, lib.ID)
	require.NoError(t, err)
	require.Len(t, got.Folders, 1)
	require.Equal(t, folder.Path, got.Folders[0].Path)

	entity := &Entity{
		LibraryID:     lib.ID,
		FolderID:      folder.ID,
		Filepath:      "/home/user/Pictures/Screenshots/shot1.webp",
		Filename:      "shot1.webp",
		Size:          1024,
		FileType:      "webp",
		FileTypeGroup: FileTypeImage,
	}
	id, err := s.UpsertEntity(ctx, entity)
	require.NoError(t, err)
	require.NotZero(t, id)

	fetched, err := s.GetEntity(ctx, id)
	require.NoError(t, err)
	require.Equal(t, entity.Filepath, fetched.Filepath)
	require.Nil(t, fetched.LastScanAt)
	require.Nil(t, fetched.FTSIndexedAt)
	require.Nil(t, fetched.VecIndexedAt)

	require.NoError(t, s.DeleteLibrary(ctx, lib.ID))
	_, err = s.GetLibrary(ctx, lib.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpsertEntity_UpdatesByFilepath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lib, err := s.CreateLibrary(ctx, "lib")
	require.NoError(t, err)
	folder, err := s.AddFolder(ctx, lib.ID, "/root", "screenshots")
	require.NoError(t, err)

	e := &Entity{LibraryID: lib.ID, FolderID: folder.ID, Filepath: "/root/a.webp", Filename: "a.webp", Size: 10, FileType: "webp", FileTypeGroup: FileTypeImage}
	id1, err := s.UpsertEntity(ctx, e)
	require.NoError(t, err)

	e2 := &Entity{LibraryID: lib.ID, FolderID: folder.ID, Filepath: "/root/a.webp", Filename: "a.webp", Size: 20, FileType: "webp", FileTypeGroup: FileTypeImage}
	id2, err := s.UpsertEntity(ctx, e2)
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	fetched, err := s.GetEntity(ctx, id1)
	require.NoError(t, err)
	require.Equal(t, int64(20), fetched.Size)
}
