package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_PluginRegisterAndActivate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.RegisterPlugin(ctx, Plugin{Name: "builtin_ocr", Description: "OCR extraction"})
	require.NoError(t, err)
	require.NotZero(t, p.ID)

	_, err = s.RegisterPlugin(ctx, Plugin{Name: "builtin_ocr"})
	require.ErrorIs(t, err, ErrConflict)

	lib, err := s.CreateLibrary(ctx, "lib")
	require.NoError(t, err)

	require.NoError(t, s.ActivatePlugin(ctx, lib.ID, p.ID))
	require.NoError(t, s.ActivatePlugin(ctx, lib.ID, p.ID)) // idempotent

	got, err := s.GetLibrary(ctx, lib.ID)
	require.NoError(t, err)
	require.Len(t, got.Plugins, 1)
	require.Equal(t, "builtin_ocr", got.Plugins[0].Name)

	require.NoError(t, s.DeactivatePlugin(ctx, lib.ID, p.ID))
	got, err = s.GetLibrary(ctx, lib.ID)
	require.NoError(t, err)
	require.Empty(t, got.Plugins)
}

func TestStore_RegisterPlugin_RequiresName(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RegisterPlugin(context.Background(), Plugin{})
	require.ErrorIs(t, err, ErrValidation)
}
