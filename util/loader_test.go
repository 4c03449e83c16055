package util

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDirectoryImages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "frame-10.jpg", "ten")
	writeFile(t, dir, "frame-2.png", "two")
	writeFile(t, dir, "frame-1.JPG", "one")
	writeFile(t, dir, "notes.txt", "skip")
	writeFile(t, dir, "cover.jpg", "skip")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "frame-3.jpg"), 0o700))

	images, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, images, 3)

	assert.Equal(t, []int{1, 2, 10}, []int{images[0].Frame, images[1].Frame, images[2].Frame})
	assert.Equal(t, []byte("one"), images[0].Data)
	assert.Equal(t, filepath.Join(dir, "frame-10.jpg"), images[2].Path)
}

func TestLoadDirectoryImages_Missing(t *testing.T) {
	_, err := LoadDirectoryImageFiles(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadLabels(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
		wantErr  bool
	}{
		{"one per line", "chair\ntable\nlamp\n", []string{"chair", "table", "lamp"}, false},
		{"blank lines and padding", "\n  chair \r\n\n table\n", []string{"chair", "table"}, false},
		{"empty file", "\n\n", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "labels.txt", tt.content)
			labels, err := LoadLabels(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, labels)
		})
	}

	_, err := LoadLabels(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestImageFile_Decode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	decoded, err := ImageFile{Path: "frame-1.png", Data: buf.Bytes()}.Decode()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), decoded.Bounds())
	r, _, _, _ := decoded.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	_, err = ImageFile{Path: "frame-2.jpg", Data: []byte("not an image")}.Decode()
	assert.Error(t, err)
}
