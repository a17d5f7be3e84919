package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calliope-audio/stemforge/internal/core/domain"
	"github.com/calliope-audio/stemforge/internal/dsp"
)

// MeterHandle identifies one attached meter instance.
type MeterHandle string

// MeterRegistry owns the live meter instances. Each meter is fed by a
// single audio callback; the registry lock only guards the handle map,
// never the per-tick processing path.
type MeterRegistry struct {
	mu     sync.RWMutex
	meters map[MeterHandle]*dsp.Meter
}

// NewMeterRegistry constructs an empty registry.
func NewMeterRegistry() *MeterRegistry {
	return &MeterRegistry{meters: make(map[MeterHandle]*dsp.Meter)}
}

// Attach creates a meter for a stereo pair and returns its handle.
func (r *MeterRegistry) Attach(config dsp.MeterConfig) MeterHandle {
	h := MeterHandle(uuid.NewString())
	r.mu.Lock()
	r.meters[h] = dsp.NewMeter(config)
	r.mu.Unlock()
	return h
}

func (r *MeterRegistry) lookup(h MeterHandle) (*dsp.Meter, bool) {
	r.mu.RLock()
	m, ok := r.meters[h]
	r.mu.RUnlock()
	return m, ok
}

// Process feeds one tick of samples to the meter.
func (r *MeterRegistry) Process(h MeterHandle, left, right []float64, rate int, now time.Time) error {
	m, ok := r.lookup(h)
	if !ok {
		return domain.ErrNotFound
	}
	m.Process(left, right, rate, now)
	return nil
}

// Read returns the latest snapshot for the meter.
func (r *MeterRegistry) Read(h MeterHandle) (dsp.MeteringSnapshot, error) {
	m, ok := r.lookup(h)
	if !ok {
		return dsp.MeteringSnapshot{}, domain.ErrNotFound
	}
	return m.Snapshot(), nil
}

// Reset clears the meter's hold/latch/history state.
func (r *MeterRegistry) Reset(h MeterHandle) error {
	m, ok := r.lookup(h)
	if !ok {
		return domain.ErrNotFound
	}
	m.Reset()
	return nil
}

// Detach removes the meter. Detaching an unknown handle is a no-op.
func (r *MeterRegistry) Detach(h MeterHandle) {
	r.mu.Lock()
	delete(r.meters, h)
	r.mu.Unlock()
}
