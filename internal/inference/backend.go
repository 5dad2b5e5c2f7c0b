// Package inference defines the pluggable model backend and the manager
// that keeps exactly one backend active per process.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrLoadFailure      = errors.New("model load failed")
	ErrInferenceFailure = errors.New("model inference failed")
	ErrNotLoaded        = errors.New("model not loaded")
)

const (
	BackendSimulate = "simulate"
	BackendTFLite   = "tflite"

	FindingSuspicious = "suspicious lesion"
	FindingClear      = "no acute findings"
)

// Config selects and parameterises a backend. It is re-read on every reload.
type Config struct {
	Backend       string
	ModelPath     string
	Device        string
	Threads       int
	SimulateDelay time.Duration
}

// InputSpec is the NHWC input a backend expects, with batch size 1.
type InputSpec struct {
	Height   int `json:"height"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

func (s InputSpec) Size() int { return s.Height * s.Width * s.Channels }

func (s InputSpec) Shape() []int { return []int{1, s.Height, s.Width, s.Channels} }

func (s InputSpec) Valid() bool {
	return s.Height > 0 && s.Width > 0 && (s.Channels == 1 || s.Channels == 3)
}

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Matches reports whether t has exactly the shape spec describes.
func (t Tensor) Matches(spec InputSpec) bool {
	want := spec.Shape()
	if len(t.Shape) != len(want) || len(t.Data) != spec.Size() {
		return false
	}
	for i := range want {
		if t.Shape[i] != want[i] {
			return false
		}
	}
	return true
}

type Prediction struct {
	Probability float64 `json:"probability"`
	Finding     string  `json:"primary_finding"`
}

// Status describes the active backend. It is recomputed on every call.
type Status struct {
	Backend   string         `json:"backend"`
	Loaded    bool           `json:"loaded"`
	ModelPath string         `json:"model_path,omitempty"`
	Device    string         `json:"device,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Backend is the capability set every model variant provides.
type Backend interface {
	Name() string
	Load(ctx context.Context) error
	InputSpec() InputSpec
	Predict(ctx context.Context, t Tensor) (Prediction, error)
	Status() Status
	Close() error
}

func newPrediction(p float64) (Prediction, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return Prediction{}, fmt.Errorf("%w: non-finite model output", ErrInferenceFailure)
	}
	p = math.Round(math.Max(0, math.Min(1, p))*1e4) / 1e4
	finding := FindingClear
	if p >= 0.5 {
		finding = FindingSuspicious
	}
	return Prediction{Probability: p, Finding: finding}, nil
}
