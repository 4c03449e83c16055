// Package util - loaders for label tables and recorded frame sequences.
package util

import (
	"bufio"
	"bytes"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

// ImageFile is one recorded frame.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the frame number parsed from a "frame-<n>.<ext>" name.
	Frame int
}

// LoadDirectoryImageFiles reads every "frame-<n>" image in dir, ordered by
// frame number. Other files are ignored.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The frames in playback order.
//   - error: Error if the directory or a frame cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", dir)
	}

	var images []ImageFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		name := file.Name()
		ext := strings.ToLower(filepath.Ext(name))
		switch ext {
		case ".jpg", ".jpeg", ".png", ".bmp", ".webp":
		default:
			continue
		}

		frame, ok := frameNumber(name)
		if !ok {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
		images = append(images, ImageFile{
			Path:  path,
			Data:  data,
			Frame: frame,
		})
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Frame < images[j].Frame
	})

	return images, nil
}

// Decode decodes the frame, applying any EXIF orientation so phone captures
// come out upright.
func (f ImageFile) Decode() (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(f.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", f.Path)
	}
	return img, nil
}

func frameNumber(name string) (int, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if !strings.HasPrefix(base, "frame-") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(base, "frame-"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// LoadLabels reads a label table with one label per line. Blank lines are
// skipped and surrounding whitespace is trimmed; line order is class order.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening labels %s", path)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading labels %s", path)
	}
	if len(labels) == 0 {
		return nil, errors.Errorf("labels %s: no labels", path)
	}
	return labels, nil
}
