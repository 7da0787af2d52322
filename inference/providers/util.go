// Package providers - Utility functions.
package providers

import (
	"fmt"
	"os"
	"runtime"
)

// LibraryPathEnv overrides the location of the onnxruntime shared library.
const LibraryPathEnv = "ONNXRUNTIME_LIB"

// GetSharedLibPath returns the path to the shared library for the current platform.
//
// Arguments:
//   - override: An explicit path; it wins over the environment and the platform default.
//
// Returns:
//   - string: The path to the shared library.
//   - error: An error if the platform has no known library.
func GetSharedLibPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv(LibraryPathEnv); env != "" {
		return env, nil
	}
	return platformLibPath(runtime.GOOS, runtime.GOARCH)
}

func platformLibPath(goos, goarch string) (string, error) {
	switch goos {
	case "windows":
		if goarch == "amd64" {
			return "./third_party/onnxruntime.dll", nil
		}
	case "darwin":
		return "./third_party/libonnxruntime.1.23.0.dylib", nil
	case "linux":
		if goarch == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}
	return "", fmt.Errorf("no onnxruntime library known for %s/%s, set %s", goos, goarch, LibraryPathEnv)
}
