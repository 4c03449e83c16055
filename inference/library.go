package inference

import (
	"os"
	"runtime"
)

// LibraryPathEnv overrides the bundled ONNX Runtime shared library location.
const LibraryPathEnv = "ONNXRUNTIME_LIB"

// GetSharedLibPath returns the ONNX Runtime shared library for this platform.
// The LibraryPathEnv environment variable takes precedence.
func GetSharedLibPath() string {
	if path := os.Getenv(LibraryPathEnv); path != "" {
		return path
	}
	return sharedLibPath(runtime.GOOS, runtime.GOARCH)
}

func sharedLibPath(goos, goarch string) string {
	switch goos {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.1.23.0.dylib"
	case "linux":
		if goarch == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
	return "./third_party/onnxruntime.so"
}
