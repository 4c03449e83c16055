package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateVideoPath(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.MP4")
	require.NoError(t, os.WriteFile(video, nil, 0o600))
	text := filepath.Join(dir, "clip.txt")
	require.NoError(t, os.WriteFile(text, nil, 0o600))

	assert.NoError(t, validateVideoPath(""))
	assert.NoError(t, validateVideoPath(video))
	assert.Error(t, validateVideoPath(text))
	assert.Error(t, validateVideoPath(filepath.Join(dir, "missing.mp4")))
}

func TestLoadConfig_Default(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Model.Path)
}

func TestOpenSource_EmptyFramesDir(t *testing.T) {
	_, err := openSource("", t.TempDir(), 0)
	assert.Error(t, err)
}
