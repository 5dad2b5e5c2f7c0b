package inference

import (
	"fmt"
	"strings"
)

// Builder constructs an unloaded backend from configuration.
type Builder interface {
	New(cfg Config) (Backend, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(cfg Config) (Backend, error)

func (f BuilderFunc) New(cfg Config) (Backend, error) { return f(cfg) }

// Factory selects the backend variant named by Config.Backend.
type Factory struct {
	// Engine opens models for the delegated backend. Nil when the binary
	// was built without an inference library.
	Engine EngineOpener
}

// Normalize maps configuration aliases onto canonical backend names.
func Normalize(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "simulate", "simulated", "sim":
		return BackendSimulate
	case "tflite", "delegated", "tensorflow-lite":
		return BackendTFLite
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

func (f Factory) New(cfg Config) (Backend, error) {
	switch Normalize(cfg.Backend) {
	case BackendSimulate:
		return NewSimulated(cfg), nil
	case BackendTFLite:
		return NewDelegated(cfg, f.Engine), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrLoadFailure, cfg.Backend)
	}
}
