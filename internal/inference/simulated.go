package inference

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"time"
)

// DefaultInputSpec is what the simulated backend asks the pipeline for.
var DefaultInputSpec = InputSpec{Height: 224, Width: 224, Channels: 3}

// Simulated produces plausible predictions without a model. The same
// tensor always yields the same probability, within [0.3, 0.7].
type Simulated struct {
	cfg Config
}

func NewSimulated(cfg Config) *Simulated {
	return &Simulated{cfg: cfg}
}

func (s *Simulated) Name() string { return BackendSimulate }

func (s *Simulated) Load(context.Context) error { return nil }

func (s *Simulated) InputSpec() InputSpec { return DefaultInputSpec }

func (s *Simulated) Predict(ctx context.Context, t Tensor) (Prediction, error) {
	if len(t.Data) == 0 {
		return Prediction{}, fmt.Errorf("%w: empty tensor", ErrInferenceFailure)
	}
	if s.cfg.SimulateDelay > 0 {
		timer := time.NewTimer(s.cfg.SimulateDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Prediction{}, ctx.Err()
		case <-timer.C:
		}
	}
	h := fnv.New64a()
	var buf [4]byte
	for _, v := range t.Data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		_, _ = h.Write(buf[:])
	}
	base := float64(h.Sum64()%10001) / 10000
	return newPrediction(0.3 + 0.4*base)
}

func (s *Simulated) Status() Status {
	return Status{
		Backend:   BackendSimulate,
		Loaded:    true,
		ModelPath: s.cfg.ModelPath,
		Metadata: map[string]any{
			"input_shape":         DefaultInputSpec.Shape(),
			"simulated_delay_sec": s.cfg.SimulateDelay.Seconds(),
		},
	}
}

func (s *Simulated) Close() error { return nil }
