package main

import (
	"fmt"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-arlocalize/logger"
	"github.com/nvr-ai/go-arlocalize/util"
)

// frameSource yields BGR frames into a reusable Mat.
type frameSource interface {
	Name() string
	Read(dst *gocv.Mat) bool
	Close() error
}

// openSource picks the frames directory, then the video file, then the camera.
func openSource(videoPath, framesDir string, deviceID int) (frameSource, error) {
	if framesDir != "" {
		files, err := util.LoadDirectoryImageFiles(framesDir)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no frame-<n> images in %s", framesDir)
		}
		return &directorySource{dir: framesDir, files: files}, nil
	}

	if videoPath != "" {
		capture, err := gocv.OpenVideoCapture(videoPath)
		if err != nil {
			return nil, fmt.Errorf("error opening video file %s: %w", videoPath, err)
		}
		return &captureSource{name: videoPath, capture: capture}, nil
	}

	capture, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("error opening video capture device %d: %w", deviceID, err)
	}
	return &captureSource{name: fmt.Sprintf("camera %d", deviceID), capture: capture}, nil
}

type captureSource struct {
	name    string
	capture *gocv.VideoCapture
}

func (s *captureSource) Name() string { return s.name }

func (s *captureSource) Read(dst *gocv.Mat) bool {
	return s.capture.Read(dst)
}

func (s *captureSource) Close() error {
	return s.capture.Close()
}

// directorySource replays recorded frames in frame-number order.
type directorySource struct {
	dir   string
	files []util.ImageFile
	next  int
}

func (s *directorySource) Name() string { return s.dir }

func (s *directorySource) Read(dst *gocv.Mat) bool {
	for s.next < len(s.files) {
		file := s.files[s.next]
		s.next++

		img, err := file.Decode()
		if err != nil {
			logger.Log().Warn("skipping frame", zap.String("path", file.Path), zap.Error(err))
			continue
		}
		mat, err := gocv.ImageToMatRGB(img)
		if err != nil {
			logger.Log().Warn("skipping frame", zap.String("path", file.Path), zap.Error(err))
			continue
		}
		mat.CopyTo(dst)
		mat.Close()
		return true
	}
	return false
}

func (s *directorySource) Close() error { return nil }
