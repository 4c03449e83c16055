// Package inference - ONNX Runtime sessions that run a detector on prepared frames.
package inference

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/logger"
)

// Backend selects the ONNX Runtime execution provider.
type Backend string

const (
	// BackendCPU runs on the default CPU provider.
	BackendCPU Backend = "cpu"
	// BackendCoreML runs on Apple's CoreML provider.
	BackendCoreML Backend = "coreml"
	// BackendCUDA runs on the CUDA provider with default options.
	BackendCUDA Backend = "cuda"
)

// OutputSpec names a model output and fixes its shape.
type OutputSpec struct {
	Name  string
	Shape []int64
}

// SessionConfig describes the model file and its tensors.
type SessionConfig struct {
	ModelPath      string
	LibraryPath    string
	Backend        Backend
	InputName      string
	InputShape     []int64
	Outputs        []OutputSpec
	IntraOpThreads int
	InterOpThreads int
}

// Session owns an ONNX Runtime session and its preallocated tensors. It is
// safe for concurrent use; runs are serialized.
type Session struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
	shapes  [][]int
	logger  *zap.Logger
}

var envMu sync.Mutex

// initEnvironment loads the shared library once per process.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// NewSession loads the model and binds its input and output tensors.
//
// Arguments:
//   - cfg: The session configuration.
//   - log: The logger; nil uses the process logger.
//
// Returns:
//   - *Session: The session. Callers must Close it.
//   - error: An error if the runtime, the tensors or the model fail to load.
func NewSession(cfg SessionConfig, log *zap.Logger) (*Session, error) {
	log = logger.Or(log)

	if cfg.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if len(cfg.Outputs) == 0 {
		return nil, errors.New("at least one output is required")
	}
	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = GetSharedLibPath()
	}
	if err := initEnvironment(libPath); err != nil {
		return nil, err
	}

	s := &Session{logger: log.With(zap.String("model", cfg.ModelPath))}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.InputShape...))
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	s.input = input

	names := make([]string, len(cfg.Outputs))
	outputs := make([]ort.ArbitraryTensor, len(cfg.Outputs))
	for i, o := range cfg.Outputs {
		out, err := ort.NewEmptyTensor[float32](ort.NewShape(o.Shape...))
		if err != nil {
			s.Close()
			return nil, errors.Wrapf(err, "error creating output tensor %q", o.Name)
		}
		s.outputs = append(s.outputs, out)
		s.shapes = append(s.shapes, toInts(o.Shape))
		names[i] = o.Name
		outputs[i] = out
	}

	options, err := sessionOptions(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		names,
		[]ort.ArbitraryTensor{input},
		outputs,
		options,
	)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "error creating ORT session")
	}
	s.session = session

	s.logger.Info("session ready",
		zap.String("backend", string(cfg.Backend)),
		zap.Int64s("input", cfg.InputShape),
		zap.Int("outputs", len(cfg.Outputs)),
	)
	return s, nil
}

func sessionOptions(cfg SessionConfig) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "error setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "error setting graph optimization level")
	}

	switch cfg.Backend {
	case "", BackendCPU:
	case BackendCoreML:
		err = options.AppendExecutionProviderCoreML(0)
	case BackendCUDA:
		var cuda *ort.CUDAProviderOptions
		cuda, err = ort.NewCUDAProviderOptions()
		if err == nil {
			err = options.AppendExecutionProviderCUDA(cuda)
			cuda.Destroy()
		}
	default:
		err = errors.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		options.Destroy()
		return nil, errors.Wrapf(err, "error enabling %s", cfg.Backend)
	}
	return options, nil
}

// Infer runs the model on a prepared input.
//
// Arguments:
//   - ctx: Checked before the run starts; a native run cannot be interrupted.
//   - input: The input tensor data, len equal to the input shape's element count.
//
// Returns:
//   - []tensor.Tensor: One dense tensor per output, in configured order, with
//     the configured shape. The data is copied out of the native buffers.
//   - error: A wrapped common.ErrShapeMismatch or the runtime error.
func (s *Session) Infer(ctx context.Context, input []float32) ([]tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.New("session is closed")
	}

	data := s.input.GetData()
	if len(input) != len(data) {
		return nil, errors.Wrapf(common.ErrShapeMismatch, "input has %d values, model expects %d", len(input), len(data))
	}
	copy(data, input)

	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "error running session")
	}

	results := make([]tensor.Tensor, len(s.outputs))
	for i, out := range s.outputs {
		backing := append([]float32(nil), out.GetData()...)
		results[i] = tensor.New(tensor.WithShape(s.shapes[i]...), tensor.WithBacking(backing))
	}
	return results, nil
}

// Close releases the native session and tensors. It is safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		if err := s.session.Destroy(); err != nil {
			s.logger.Warn("error destroying session", zap.Error(err))
		}
		s.session = nil
	}
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	for _, out := range s.outputs {
		out.Destroy()
	}
	s.outputs = nil
}

func toInts(shape []int64) []int {
	out := make([]int, len(shape))
	for i, d := range shape {
		out[i] = int(d)
	}
	return out
}
