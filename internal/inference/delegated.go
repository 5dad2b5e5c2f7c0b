package inference

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// Engine is an external inference library bound to one loaded model.
// Implementations need not be safe for concurrent use.
type Engine interface {
	InputSpec() InputSpec
	Invoke(input []float32) ([]float32, error)
	Close() error
}

type EngineOptions struct {
	Device  string
	Threads int
}

// EngineOpener loads the model artifact at path.
type EngineOpener func(path string, opts EngineOptions) (Engine, error)

// Delegated hands inference to an Engine. Calls into the engine are
// serialized.
type Delegated struct {
	cfg  Config
	open EngineOpener

	mu       sync.Mutex
	engine   Engine
	spec     InputSpec
	loadedAt time.Time
}

func NewDelegated(cfg Config, open EngineOpener) *Delegated {
	if cfg.Device == "" {
		cfg.Device = "cpu"
	}
	return &Delegated{cfg: cfg, open: open}
}

func (d *Delegated) Name() string { return BackendTFLite }

func (d *Delegated) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.open == nil {
		return fmt.Errorf("%w: no inference engine compiled into this build", ErrLoadFailure)
	}
	if d.cfg.ModelPath == "" {
		return fmt.Errorf("%w: model path not set", ErrLoadFailure)
	}
	fi, err := os.Stat(d.cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoadFailure, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrLoadFailure, d.cfg.ModelPath)
	}
	engine, err := d.open(d.cfg.ModelPath, EngineOptions{Device: d.cfg.Device, Threads: d.cfg.Threads})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoadFailure, err)
	}
	spec := engine.InputSpec()
	if !spec.Valid() {
		_ = engine.Close()
		return fmt.Errorf("%w: unsupported input shape %v", ErrLoadFailure, spec.Shape())
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.engine != nil {
		_ = d.engine.Close()
	}
	d.engine, d.spec, d.loadedAt = engine, spec, time.Now().UTC()
	return nil
}

func (d *Delegated) InputSpec() InputSpec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.spec
}

func (d *Delegated) Predict(ctx context.Context, t Tensor) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.engine == nil {
		return Prediction{}, ErrNotLoaded
	}
	if !t.Matches(d.spec) {
		return Prediction{}, fmt.Errorf("%w: tensor shape %v (%d values), want %v",
			ErrInferenceFailure, t.Shape, len(t.Data), d.spec.Shape())
	}
	out, err := d.engine.Invoke(t.Data)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrInferenceFailure, err)
	}
	if len(out) == 0 {
		return Prediction{}, fmt.Errorf("%w: empty model output", ErrInferenceFailure)
	}
	return newPrediction(float64(out[0]))
}

func (d *Delegated) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Status{
		Backend:   BackendTFLite,
		Loaded:    d.engine != nil,
		ModelPath: d.cfg.ModelPath,
		Device:    d.cfg.Device,
	}
	if d.engine != nil {
		st.Metadata = map[string]any{
			"input_shape": d.spec.Shape(),
			"loaded_at":   d.loadedAt.Format(time.RFC3339),
		}
	}
	return st
}

func (d *Delegated) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.engine == nil {
		return nil
	}
	err := d.engine.Close()
	d.engine = nil
	return err
}
