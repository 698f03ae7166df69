package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave_WritesBothFilesWithSanitizedNames(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	fixed := time.Date(2026, 7, 31, 10, 0, 0, 123456000, time.UTC)
	w.now = func() time.Time { return fixed }

	paths := w.Save("front door!!", "Knife/Gun", []byte("full-jpeg"), []byte("crop-jpeg"))

	assert.Contains(t, paths.FullPath, "20260731_100000_123456_front_door__full_frame.jpg")
	assert.Contains(t, paths.CropPath, "Knife_Gun_crop.jpg")

	full, err := os.ReadFile(paths.FullPath)
	require.NoError(t, err)
	assert.Equal(t, "full-jpeg", string(full))

	crop, err := os.ReadFile(paths.CropPath)
	require.NoError(t, err)
	assert.Equal(t, "crop-jpeg", string(crop))

	assert.Equal(t, filepath.Join(dir, "full"), filepath.Dir(paths.FullPath))
	assert.Equal(t, filepath.Join(dir, "threats"), filepath.Dir(paths.CropPath))
}

func TestSave_EmptyLabelAndStreamFallBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	paths := w.Save("", "", []byte("f"), nil)

	assert.Contains(t, paths.FullPath, "_default_full_frame.jpg")
	assert.Contains(t, paths.CropPath, "_default_unknown_crop.jpg")

	_, err := os.Stat(paths.CropPath)
	assert.True(t, os.IsNotExist(err), "crop should not be written when data is nil")
}
