package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_SaveAndRead(t *testing.T) {
	tempDir := t.TempDir()
	fs := NewLocalFileStorage(tempDir, zap.NewNop())
	ctx := context.Background()

	t.Run("saves under session folder", func(t *testing.T) {
		content := []byte("%PDF-1.4 bill")
		require.NoError(t, fs.Save(ctx, "AUD-00000001/bill.pdf", content))

		assert.FileExists(t, filepath.Join(tempDir, "AUD-00000001", "bill.pdf"))
		got, err := fs.Read(ctx, "AUD-00000001/bill.pdf")
		require.NoError(t, err)
		assert.Equal(t, content, got)
		assert.True(t, fs.Exists(ctx, "AUD-00000001/bill.pdf"))
	})

	t.Run("overwrites and leaves no temp files", func(t *testing.T) {
		require.NoError(t, fs.Save(ctx, "AUD-00000001/policy.pdf", []byte("v1")))
		require.NoError(t, fs.Save(ctx, "AUD-00000001/policy.pdf", []byte("v2")))

		got, err := fs.Read(ctx, "AUD-00000001/policy.pdf")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))

		entries, err := os.ReadDir(filepath.Join(tempDir, "AUD-00000001"))
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("read missing file", func(t *testing.T) {
		_, err := fs.Read(ctx, "AUD-00000002/bill.pdf")
		assert.Error(t, err)
		assert.False(t, fs.Exists(ctx, "AUD-00000002/bill.pdf"))
	})
}

func TestLocalFileStorage_RejectsEscapes(t *testing.T) {
	fs := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	for _, path := range []string{"../outside.pdf", "AUD-1/../../outside.pdf", "", "."} {
		t.Run(path, func(t *testing.T) {
			err := fs.Save(ctx, path, []byte("x"))
			assert.ErrorIs(t, err, ErrPathEscape)
			assert.False(t, fs.Exists(ctx, path))
		})
	}
}

func TestLocalFileStorage_Delete(t *testing.T) {
	fs := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, fs.Save(ctx, "AUD-1/bill.pdf", []byte("x")))
	require.NoError(t, fs.Delete(ctx, "AUD-1/bill.pdf"))
	assert.False(t, fs.Exists(ctx, "AUD-1/bill.pdf"))
	assert.NoError(t, fs.Delete(ctx, "AUD-1/bill.pdf"), "delete is idempotent")
}
