package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/config"
	"github.com/nvr-ai/go-arlocalize/controller"
	"github.com/nvr-ai/go-arlocalize/images"
	"github.com/nvr-ai/go-arlocalize/inference"
	"github.com/nvr-ai/go-arlocalize/logger"
	"github.com/nvr-ai/go-arlocalize/models"
	"github.com/nvr-ai/go-arlocalize/overlay"
	"github.com/nvr-ai/go-arlocalize/placement"
	"github.com/nvr-ai/go-arlocalize/profiler"
)

// Supported file extensions
var supportedVideoExtensions = []string{".mp4", ".avi", ".mov"}

func main() {
	var (
		configPath string
		videoPath  string
		framesDir  string
		deviceID   int
		showWindow bool
		maxFrames  int
	)
	flag.StringVar(&configPath, "config", "", "Path to config.yaml (defaults are used when empty)")
	flag.StringVar(&videoPath, "video", "", "Path to video file (.mp4, .avi, .mov)")
	flag.StringVar(&framesDir, "frames", "", "Directory of frame-<n> images to replay")
	flag.IntVar(&deviceID, "device", 0, "Camera device ID, used when no video or frames are given")
	flag.BoolVar(&showWindow, "show-window", false, "Show visualization window")
	flag.IntVar(&maxFrames, "max-frames", 0, "Stop after this many frames (0 runs until the source ends)")
	flag.Parse()

	if err := run(configPath, videoPath, framesDir, deviceID, showWindow, maxFrames); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.LoadFromFile(path)
}

func run(configPath, videoPath, framesDir string, deviceID int, showWindow bool, maxFrames int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Development, cfg.Log.Level); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Log()

	if err := validateVideoPath(videoPath); err != nil {
		return err
	}

	args, err := cfg.ModelArgs(log)
	if err != nil {
		return err
	}
	m, err := models.NewModel(args)
	if err != nil {
		return err
	}
	sessionCfg, err := cfg.SessionConfig(m)
	if err != nil {
		return err
	}
	session, err := inference.NewSession(sessionCfg, log)
	if err != nil {
		return err
	}
	defer session.Close()

	source, err := openSource(videoPath, framesDir, deviceID)
	if err != nil {
		return err
	}
	defer source.Close()

	color, err := cfg.Overlay.RGBA()
	if err != nil {
		return err
	}
	rc := overlay.RenderContext{
		Color:       color,
		Thickness:   cfg.Overlay.Thickness,
		FontScale:   cfg.Overlay.FontScale,
		LabelOffset: cfg.Overlay.LabelOffset,
	}

	opts := m.Options()
	ctrl := controller.New(session, m, cfg.Aggregator, log)

	store := placement.NewMemoryStore()
	placer := placement.NewPlacer(
		placement.PlaneRaycaster{Width: float32(cfg.Screen.Width), Height: float32(cfg.Screen.Height), Depth: 1},
		store,
		images.NewScreenTransform(cfg.Screen.Width, cfg.Screen.Height, opts.CoordinateSize()),
		cfg.Screen.Height,
		log,
	)

	var prof *profiler.RuntimeProfiler
	if cfg.Profiler.Enabled {
		prof = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
			ReportInterval: cfg.Profiler.ReportInterval,
			Logger:         log,
		})
		prof.AddMetricsCollector(ctrl)
		prof.Start()
		defer prof.Stop()
	}

	var window *gocv.Window
	if showWindow {
		window = gocv.NewWindow("Localization")
		defer window.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	img := gocv.NewMat()
	defer img.Close()

	log.Info("starting localization",
		zap.String("model", string(opts.Name)),
		zap.String("source", source.Name()),
		zap.Int("labels", len(m.Labels())),
	)

	reported := false
	for frame := 0; maxFrames <= 0 || frame < maxFrames; frame++ {
		if ctx.Err() != nil {
			break
		}
		if ok := source.Read(&img); !ok {
			log.Info("source ended", zap.Int("frames", frame))
			break
		}
		if img.Empty() {
			continue
		}

		done := operation(prof, "prepare")
		input, err := prepare(img, opts.Input)
		done()
		if err != nil {
			log.Warn("cannot prepare frame", zap.Error(err))
			continue
		}

		result := ctrl.OnFrame(ctx, input)

		if result.State == controller.StateStable {
			placed, err := placer.Place(ctx, result.Detections)
			if err != nil {
				log.Warn("placement failed", zap.Error(err))
			}
			for _, d := range placed {
				if d.Used {
					ctrl.Aggregator().MarkUsed(d.ID)
				}
			}
			if !reported {
				printStable(placed, store.List())
				reported = true
			}
		} else {
			transform := images.NewScreenTransform(img.Cols(), img.Rows(), opts.CoordinateSize())
			overlay.Draw(&img, rc, transform, result.Detections)
		}

		if window != nil {
			window.IMShow(img)
			if window.WaitKey(1) == 27 {
				break
			}
		}
	}

	ctrl.Wait()
	stats := ctrl.Stats()
	log.Info("localization finished",
		zap.Stringer("state", ctrl.Aggregator().State()),
		zap.Uint64("frames", stats.Frames),
		zap.Uint64("inferences", stats.Completed),
		zap.Uint64("skipped", stats.Skipped),
		zap.Uint64("failed", stats.Failed),
	)
	if !reported {
		printStable(ctrl.Aggregator().Detections(), store.List())
	}
	return nil
}

func prepare(mat gocv.Mat, opts images.InputOptions) ([]float32, error) {
	rgb, err := mat.ToImage()
	if err != nil {
		return nil, err
	}
	return images.PrepareInput(rgb, opts)
}

func operation(prof *profiler.RuntimeProfiler, name string) func() {
	if prof == nil {
		return func() {}
	}
	return prof.StartOperation(name)
}

func printStable(detections []common.Detection, anchors []placement.Anchor) {
	fmt.Printf("%d objects localized, %d anchors placed\n", len(detections), len(anchors))
	for _, d := range detections {
		fmt.Printf("  %-20s %3d%%  box=(%.1f, %.1f, %.1f, %.1f) used=%t\n",
			d.Label, int(d.Confidence*100), d.Box.X, d.Box.Y, d.Box.Width, d.Box.Height, d.Used)
	}
}

// validateVideoPath checks that a video path, when given, exists and has a
// supported extension.
func validateVideoPath(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range supportedVideoExtensions {
		if ext == supported {
			return nil
		}
	}
	return fmt.Errorf("unsupported file extension: %s. Supported extensions: %v", ext, supportedVideoExtensions)
}
