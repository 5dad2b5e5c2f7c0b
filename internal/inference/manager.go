package inference

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ConfigSource returns the configuration to load on (re)load.
type ConfigSource func() Config

type slot struct {
	backend Backend
	mu      sync.RWMutex
	retired bool
}

// Manager owns the single active backend. Readers take a Lease on the
// current backend; Reload swaps in a freshly loaded one and retires the old
// one once its leases are released.
type Manager struct {
	builder Builder
	source  ConfigSource
	lg      *zap.SugaredLogger

	active   atomic.Pointer[slot]
	reloadMu sync.Mutex
	retiring sync.WaitGroup
}

// NewManager loads the backend described by source and makes it active.
func NewManager(ctx context.Context, builder Builder, source ConfigSource, lg *zap.SugaredLogger) (*Manager, error) {
	m := &Manager{builder: builder, source: source, lg: lg}
	b, err := m.build(ctx)
	if err != nil {
		return nil, err
	}
	m.active.Store(&slot{backend: b})
	lg.Infow("model backend loaded", "backend", b.Name())
	return m, nil
}

func (m *Manager) build(ctx context.Context) (Backend, error) {
	b, err := m.builder.New(m.source())
	if err != nil {
		return nil, err
	}
	if err := b.Load(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// Lease pins one backend instance until Release.
type Lease struct {
	s    *slot
	once sync.Once
}

func (l *Lease) Backend() Backend { return l.s.backend }

func (l *Lease) Release() {
	l.once.Do(l.s.mu.RUnlock)
}

// Acquire returns a lease on the active backend.
func (m *Manager) Acquire() (*Lease, error) {
	for {
		s := m.active.Load()
		if s == nil {
			return nil, ErrNotLoaded
		}
		s.mu.RLock()
		if !s.retired {
			return &Lease{s: s}, nil
		}
		s.mu.RUnlock()
	}
}

// Predict runs t through the active backend and reports which backend
// answered.
func (m *Manager) Predict(ctx context.Context, t Tensor) (Prediction, string, error) {
	l, err := m.Acquire()
	if err != nil {
		return Prediction{}, "", err
	}
	defer l.Release()
	p, err := l.Backend().Predict(ctx, t)
	return p, l.Backend().Name(), err
}

func (m *Manager) Status() Status {
	l, err := m.Acquire()
	if err != nil {
		return Status{Loaded: false}
	}
	defer l.Release()
	return l.Backend().Status()
}

// Reload re-reads the configuration and replaces the active backend. On
// failure the current backend stays active.
func (m *Manager) Reload(ctx context.Context) (Status, error) {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	next, err := m.build(ctx)
	if err != nil {
		m.lg.Errorw("model reload failed", "error", err)
		return m.Status(), err
	}
	old := m.active.Swap(&slot{backend: next})
	m.retire(old)
	m.lg.Infow("model backend reloaded", "backend", next.Name())
	return next.Status(), nil
}

func (m *Manager) retire(s *slot) {
	if s == nil {
		return
	}
	m.retiring.Add(1)
	go func() {
		defer m.retiring.Done()
		s.mu.Lock()
		s.retired = true
		s.mu.Unlock()
		if err := s.backend.Close(); err != nil {
			m.lg.Warnw("closing retired backend", "backend", s.backend.Name(), "error", err)
		}
	}()
}

// Close retires the active backend and waits for every retirement.
func (m *Manager) Close() {
	m.reloadMu.Lock()
	m.retire(m.active.Swap(nil))
	m.reloadMu.Unlock()
	m.retiring.Wait()
}
