// Package hwctx models the hardware decoder context as an exclusively owned,
// scarce resource. A graph that decodes on the GPU holds a Lease for its whole
// lifetime and returns it when the graph is shut down.
package hwctx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/pfischer54/rtsp-viewer/internal/metrics"
)

// DefaultDevice is the VAAPI render node used when none is configured.
const DefaultDevice = "/dev/dri/renderD128"

var (
	// ErrBusy means every decoder context on the device is leased.
	ErrBusy = errors.New("hwctx: decoder context busy")

	// ErrNoDevice means the render node does not exist.
	ErrNoDevice = errors.New("hwctx: render device not present")
)

// Pool hands out at most slots leases for one device.
type Pool struct {
	device string
	sem    *semaphore.Weighted
	inUse  atomic.Int64

	// stat is swapped in tests
	stat func(string) error
}

// NewPool creates a pool of slots decoder contexts on device. An empty device
// disables the presence check.
func NewPool(device string, slots int64) *Pool {
	if slots < 1 {
		slots = 1
	}
	return &Pool{
		device: device,
		sem:    semaphore.NewWeighted(slots),
		stat: func(path string) error {
			_, err := os.Stat(path)
			return err
		},
	}
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Pool{}
)

// ForDevice returns the process-wide single-slot pool for device.
func ForDevice(device string) *Pool {
	if device == "" {
		device = DefaultDevice
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if p, ok := registry[device]; ok {
		return p
	}
	p := NewPool(device, 1)
	registry[device] = p
	return p
}

// Device returns the render node guarded by the pool.
func (p *Pool) Device() string { return p.device }

// Acquire takes a lease without waiting. Graph construction must not block on
// another graph's teardown, so a held context is reported as ErrBusy.
func (p *Pool) Acquire() (*Lease, error) {
	if p.device != "" {
		if err := p.stat(p.device); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNoDevice, p.device, err)
		}
	}

	if !p.sem.TryAcquire(1) {
		return nil, fmt.Errorf("%w: %s", ErrBusy, p.device)
	}

	n := p.inUse.Add(1)
	metrics.HardwareLeases.WithLabelValues(p.label()).Set(float64(n))
	slog.Debug("hwctx: lease acquired", "device", p.device, "in_use", n)

	return &Lease{pool: p}, nil
}

// InUse returns the number of outstanding leases.
func (p *Pool) InUse() int64 { return p.inUse.Load() }

func (p *Pool) release() {
	n := p.inUse.Add(-1)
	p.sem.Release(1)
	metrics.HardwareLeases.WithLabelValues(p.label()).Set(float64(n))
	slog.Debug("hwctx: lease released", "device", p.device, "in_use", n)
}

func (p *Pool) label() string {
	if p.device == "" {
		return "none"
	}
	return p.device
}

// Lease is one held decoder context.
type Lease struct {
	pool *Pool
	once sync.Once
}

// Release returns the context to its pool. Safe to call more than once.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(l.pool.release)
}
