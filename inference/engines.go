// Package inference - Inference engine interface and implementations
package inference

import (
	"fmt"
	"strings"
)

// EngineType is the type of the engine
type EngineType string

const (
	// EngineOpenCV runs Caffe, TensorFlow and Darknet networks through the OpenCV DNN module
	EngineOpenCV EngineType = "opencv"
	// EngineONNX is the ONNX engine that uses the onnxruntime library
	EngineONNX EngineType = "onnx"
)

// Engines is a list of all supported engines
var Engines = []EngineType{EngineOpenCV, EngineONNX}

// ParseEngineType parses an engine name such as "opencv" or "onnx".
func ParseEngineType(s string) (EngineType, error) {
	for _, e := range Engines {
		if strings.EqualFold(string(e), s) {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown engine %q, expected one of %v", s, Engines)
}
