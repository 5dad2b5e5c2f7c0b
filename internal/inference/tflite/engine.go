//go:build tflite

// Package tflite binds the delegated model backend to TensorFlow Lite.
// Building it requires the tensorflowlite_c shared library; enable it with
// the "tflite" build tag.
package tflite

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"
	"go.uber.org/zap"

	"oncoscan/internal/inference"
)

type engine struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	delegate    interface{ Delete() }
	spec        inference.InputSpec
}

// Opener returns an inference.EngineOpener that reports interpreter
// errors to lg.
func Opener(lg *zap.SugaredLogger) inference.EngineOpener {
	return func(path string, opts inference.EngineOptions) (inference.Engine, error) {
		return open(path, opts, lg)
	}
}

func open(path string, opts inference.EngineOptions, lg *zap.SugaredLogger) (*engine, error) {
	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, fmt.Errorf("cannot load TensorFlow Lite model from %s", path)
	}
	e := &engine{model: model}

	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	e.options = tflite.NewInterpreterOptions()
	switch strings.ToLower(opts.Device) {
	case "", "cpu":
		e.options.SetNumThread(threads)
	case "xnnpack":
		d := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // bounded by CPU count
		if d == nil {
			lg.Warnw("XNNPACK delegate unavailable, using default CPU kernels")
			e.options.SetNumThread(threads)
		} else {
			e.delegate = d
			e.options.AddDelegate(d)
			e.options.SetNumThread(1)
		}
	default:
		e.Close()
		return nil, fmt.Errorf("unsupported device %q", opts.Device)
	}
	e.options.SetErrorReporter(func(msg string, _ interface{}) {
		lg.Errorw("tflite error", "message", msg)
	}, nil)

	e.interpreter = tflite.NewInterpreter(model, e.options)
	if e.interpreter == nil {
		e.Close()
		return nil, errors.New("cannot create interpreter")
	}
	if status := e.interpreter.AllocateTensors(); status != tflite.OK {
		e.Close()
		return nil, fmt.Errorf("tensor allocation failed: %v", status)
	}

	in := e.interpreter.GetInputTensor(0)
	if in == nil {
		e.Close()
		return nil, errors.New("model has no input tensor")
	}
	if in.Type() != tflite.Float32 {
		e.Close()
		return nil, fmt.Errorf("input tensor type %v, want float32", in.Type())
	}
	if in.NumDims() != 4 || in.Dim(0) != 1 {
		e.Close()
		return nil, fmt.Errorf("input tensor must be NHWC with batch 1, got %d dims", in.NumDims())
	}
	e.spec = inference.InputSpec{Height: in.Dim(1), Width: in.Dim(2), Channels: in.Dim(3)}
	return e, nil
}

func (e *engine) InputSpec() inference.InputSpec { return e.spec }

func (e *engine) Invoke(input []float32) ([]float32, error) {
	in := e.interpreter.GetInputTensor(0)
	if in == nil {
		return nil, errors.New("cannot get input tensor")
	}
	if n := copy(in.Float32s(), input); n != len(input) {
		return nil, fmt.Errorf("input tensor holds %d values, got %d", n, len(input))
	}
	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}
	out := e.interpreter.GetOutputTensor(0)
	if out == nil {
		return nil, errors.New("cannot get output tensor")
	}
	res := make([]float32, len(out.Float32s()))
	copy(res, out.Float32s())
	return res, nil
}

func (e *engine) Close() error {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.delegate != nil {
		e.delegate.Delete()
		e.delegate = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}
