// Package pool manages reusable detector instances. Detectors are
// cheap to run but carry compiled configuration, so instances are
// pooled per kind with a hard cap, a warm floor, and an idle reaper.
package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/analyzer/detectors"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
)

var (
	ErrUnknownKind = errors.New("pool: unknown detector kind")
	ErrExhausted   = errors.New("pool: detector kind exhausted")
)

// Config bounds one pool. Zero values are not usable; start from
// DefaultConfig or FromConfig.
type Config struct {
	MaxPerKind     int
	WarmFloor      int
	IdleTimeout    time.Duration
	ReapInterval   time.Duration
	AcquireBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxPerKind:     16,
		WarmFloor:      2,
		IdleTimeout:    60 * time.Second,
		ReapInterval:   30 * time.Second,
		AcquireBackoff: 5 * time.Millisecond,
	}
}

// FromConfig converts the file-level pool settings.
func FromConfig(pc config.PoolConfig) Config {
	return Config{
		MaxPerKind:     pc.MaxPerKind,
		WarmFloor:      pc.WarmFloor,
		IdleTimeout:    pc.IdleTimeout(),
		ReapInterval:   pc.ReapInterval(),
		AcquireBackoff: pc.AcquireBackoff(),
	}
}

// pooled wraps one detector instance. The instance lock guards the
// in-use flag; the kind lock guards the instance list. Lock order is
// always kind lock first, instance lock second.
type pooled struct {
	det      detectors.Detector
	mu       sync.Mutex
	inUse    bool
	lastUsed time.Time
}

type kindPool struct {
	mu        sync.Mutex
	factory   detectors.Factory
	instances []*pooled
}

// Handle is a checked-out detector. Callers must Release it; holding a
// handle past the analysis that acquired it starves other files.
type Handle struct {
	Kind     models.ViolationType
	Detector detectors.Detector
	owner    *pooled
}

// DetectorPool is safe for concurrent use by the file workers.
type DetectorPool struct {
	cfg    Config
	logger *slog.Logger
	kinds  map[models.ViolationType]*kindPool

	acquisitions atomic.Int64
	hits         atomic.Int64
	misses       atomic.Int64
	failures     atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// Metrics is a point-in-time snapshot of pool behavior.
type Metrics struct {
	TotalAcquisitions int64          `json:"total_acquisitions"`
	CacheHits         int64          `json:"cache_hits"`
	CacheMisses       int64          `json:"cache_misses"`
	Failures          int64          `json:"failures"`
	HitRate           float64        `json:"hit_rate"`
	PoolSizes         map[string]int `json:"pool_sizes_by_kind"`
}

// New builds a pool over the given registry and pre-warms each kind to
// the floor.
func New(cfg Config, registry map[models.ViolationType]detectors.Factory, logger *slog.Logger) *DetectorPool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &DetectorPool{
		cfg:    cfg,
		logger: logger,
		kinds:  make(map[models.ViolationType]*kindPool, len(registry)),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	now := time.Now()
	for kind, factory := range registry {
		kp := &kindPool{factory: factory}
		for i := 0; i < cfg.WarmFloor; i++ {
			kp.instances = append(kp.instances, &pooled{det: factory(), lastUsed: now})
		}
		p.kinds[kind] = kp
	}
	return p
}

// Start launches the idle reaper. Safe to call more than once.
func (p *DetectorPool) Start() {
	p.startOnce.Do(func() {
		go p.reapLoop()
	})
}

// Shutdown stops the reaper and waits for it to exit.
func (p *DetectorPool) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	select {
	case <-p.done:
	case <-time.After(time.Second):
	}
}

func (p *DetectorPool) reapLoop() {
	defer close(p.done)
	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case now := <-ticker.C:
			p.reapOnce(now)
		}
	}
}

// reapOnce drops instances idle past the timeout, never shrinking a
// kind below the warm floor, then tops depleted kinds back up to it.
func (p *DetectorPool) reapOnce(now time.Time) {
	for kind, kp := range p.kinds {
		kp.mu.Lock()
		kept := make([]*pooled, 0, len(kp.instances))
		removed := 0
		for _, inst := range kp.instances {
			inst.mu.Lock()
			idle := !inst.inUse && now.Sub(inst.lastUsed) > p.cfg.IdleTimeout
			inst.mu.Unlock()
			if idle && len(kp.instances)-removed > p.cfg.WarmFloor {
				removed++
				continue
			}
			kept = append(kept, inst)
		}
		kp.instances = kept

		created := 0
		for len(kp.instances) < p.cfg.WarmFloor {
			kp.instances = append(kp.instances, &pooled{det: kp.factory(), lastUsed: now})
			created++
		}
		kp.mu.Unlock()

		if removed > 0 || created > 0 {
			p.logger.Debug("pool reap",
				"kind", string(kind), "removed", removed, "created", created)
		}
	}
}

// Acquire checks out a detector of the given kind. When the kind is at
// capacity it backs off once for the configured interval and retries;
// a second failure returns ErrExhausted rather than blocking the
// caller indefinitely.
func (p *DetectorPool) Acquire(kind models.ViolationType) (*Handle, error) {
	kp, ok := p.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	p.acquisitions.Add(1)

	if h := p.tryAcquire(kind, kp); h != nil {
		return h, nil
	}

	time.Sleep(p.cfg.AcquireBackoff)

	if h := p.tryAcquire(kind, kp); h != nil {
		return h, nil
	}

	p.failures.Add(1)
	return nil, fmt.Errorf("%w: %s (cap %d)", ErrExhausted, kind, p.cfg.MaxPerKind)
}

func (p *DetectorPool) tryAcquire(kind models.ViolationType, kp *kindPool) *Handle {
	kp.mu.Lock()
	defer kp.mu.Unlock()

	for _, inst := range kp.instances {
		inst.mu.Lock()
		if !inst.inUse {
			inst.inUse = true
			inst.mu.Unlock()
			p.hits.Add(1)
			return &Handle{Kind: kind, Detector: inst.det, owner: inst}
		}
		inst.mu.Unlock()
	}

	if len(kp.instances) < p.cfg.MaxPerKind {
		inst := &pooled{det: kp.factory(), inUse: true, lastUsed: time.Now()}
		kp.instances = append(kp.instances, inst)
		p.misses.Add(1)
		return &Handle{Kind: kind, Detector: inst.det, owner: inst}
	}

	return nil
}

// Release returns a handle to the pool. Releasing nil or twice is a
// no-op.
func (p *DetectorPool) Release(h *Handle) {
	if h == nil || h.owner == nil {
		return
	}
	h.owner.mu.Lock()
	h.owner.inUse = false
	h.owner.lastUsed = time.Now()
	h.owner.mu.Unlock()
	h.owner = nil
}

// AcquireAll checks out one detector per requested kind. Exhausted or
// unknown kinds are logged and skipped; the returned map holds only
// the successful acquisitions so a busy pool degrades one category at
// a time instead of failing the file.
func (p *DetectorPool) AcquireAll(kinds []models.ViolationType) map[models.ViolationType]*Handle {
	out := make(map[models.ViolationType]*Handle, len(kinds))
	for _, kind := range kinds {
		h, err := p.Acquire(kind)
		if err != nil {
			p.logger.Warn("detector unavailable, skipping category",
				"kind", string(kind), "error", err)
			continue
		}
		out[kind] = h
	}
	return out
}

// ReleaseAll returns every handle in the map.
func (p *DetectorPool) ReleaseAll(handles map[models.ViolationType]*Handle) {
	for _, h := range handles {
		p.Release(h)
	}
}

// Metrics snapshots the counters and current per-kind sizes.
func (p *DetectorPool) Metrics() Metrics {
	m := Metrics{
		TotalAcquisitions: p.acquisitions.Load(),
		CacheHits:         p.hits.Load(),
		CacheMisses:       p.misses.Load(),
		Failures:          p.failures.Load(),
		PoolSizes:         make(map[string]int, len(p.kinds)),
	}
	if m.TotalAcquisitions > 0 {
		m.HitRate = float64(m.CacheHits) / float64(m.TotalAcquisitions)
	}
	for kind, kp := range p.kinds {
		kp.mu.Lock()
		m.PoolSizes[string(kind)] = len(kp.instances)
		kp.mu.Unlock()
	}
	return m
}
