package pool

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/analyzer/detectors"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/ir"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
)

type stubDetector struct {
	kind models.ViolationType
	path string
}

func (s *stubDetector) Name() string                    { return "stub" }
func (s *stubDetector) Category() models.ViolationType  { return s.kind }
func (s *stubDetector) SetFile(path string, _ []string) { s.path = path }
func (s *stubDetector) AnalyzeIR(*ir.File) []models.Violation {
	return nil
}

func stubRegistry(kinds ...models.ViolationType) map[models.ViolationType]detectors.Factory {
	reg := make(map[models.ViolationType]detectors.Factory)
	for _, kind := range kinds {
		reg[kind] = func() detectors.Detector { return &stubDetector{kind: kind} }
	}
	return reg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AcquireBackoff = time.Millisecond
	return cfg
}

func TestAcquireReusesReleasedInstance(t *testing.T) {
	p := New(testConfig(), stubRegistry(models.ViolationPosition), quietLogger())

	h1, err := p.Acquire(models.ViolationPosition)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	first := h1.Detector
	p.Release(h1)

	h2, err := p.Acquire(models.ViolationPosition)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if h2.Detector != first {
		t.Error("released instance was not reused")
	}

	m := p.Metrics()
	if m.CacheHits != 2 {
		t.Errorf("CacheHits = %d, want 2 (pre-warmed instances)", m.CacheHits)
	}
}

func TestAcquireUnknownKind(t *testing.T) {
	p := New(testConfig(), stubRegistry(models.ViolationPosition), quietLogger())

	_, err := p.Acquire(models.ViolationTiming)
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestAcquireFailsAtCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerKind = 2
	cfg.WarmFloor = 0
	p := New(cfg, stubRegistry(models.ViolationMeaning), quietLogger())

	h1, err := p.Acquire(models.ViolationMeaning)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := p.Acquire(models.ViolationMeaning)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Acquire(models.ViolationMeaning); !errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v, want ErrExhausted", err)
	}

	p.Release(h1)
	if _, err := p.Acquire(models.ViolationMeaning); err != nil {
		t.Errorf("Acquire after release: %v", err)
	}
	p.Release(h2)

	if m := p.Metrics(); m.Failures != 1 {
		t.Errorf("Failures = %d, want 1", m.Failures)
	}
}

func TestAcquireAllIsPartial(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerKind = 1
	cfg.WarmFloor = 0
	p := New(cfg, stubRegistry(models.ViolationPosition, models.ViolationTiming), quietLogger())

	// Exhaust one kind, then ask for everything.
	held, err := p.Acquire(models.ViolationTiming)
	if err != nil {
		t.Fatal(err)
	}

	handles := p.AcquireAll(models.AllViolationTypes())
	defer p.ReleaseAll(handles)
	defer p.Release(held)

	if _, ok := handles[models.ViolationPosition]; !ok {
		t.Error("available kind missing from AcquireAll result")
	}
	if _, ok := handles[models.ViolationTiming]; ok {
		t.Error("exhausted kind present in AcquireAll result")
	}
	if len(handles) != 1 {
		t.Errorf("handles = %d, want 1 (unregistered kinds skipped)", len(handles))
	}
}

func TestDoubleReleaseIsNoop(t *testing.T) {
	p := New(testConfig(), stubRegistry(models.ViolationPosition), quietLogger())

	h, err := p.Acquire(models.ViolationPosition)
	if err != nil {
		t.Fatal(err)
	}
	p.Release(h)
	p.Release(h)
	p.Release(nil)

	h2, err := p.Acquire(models.ViolationPosition)
	if err != nil {
		t.Fatal(err)
	}
	p.Release(h2)
}

func TestReapOnceKeepsWarmFloor(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerKind = 8
	cfg.WarmFloor = 2
	cfg.IdleTimeout = 10 * time.Millisecond
	p := New(cfg, stubRegistry(models.ViolationPosition), quietLogger())

	// Grow the pool past the floor.
	var handles []*Handle
	for i := 0; i < 5; i++ {
		h, err := p.Acquire(models.ViolationPosition)
		if err != nil {
			t.Fatal(err)
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		p.Release(h)
	}

	if size := p.Metrics().PoolSizes[string(models.ViolationPosition)]; size != 5 {
		t.Fatalf("pool size before reap = %d, want 5", size)
	}

	// Everything is idle well past the timeout.
	p.reapOnce(time.Now().Add(time.Second))

	if size := p.Metrics().PoolSizes[string(models.ViolationPosition)]; size != cfg.WarmFloor {
		t.Errorf("pool size after reap = %d, want warm floor %d", size, cfg.WarmFloor)
	}
}

func TestReapOnceSkipsInUseInstances(t *testing.T) {
	cfg := testConfig()
	cfg.WarmFloor = 1
	cfg.IdleTimeout = time.Millisecond
	p := New(cfg, stubRegistry(models.ViolationPosition), quietLogger())

	h, err := p.Acquire(models.ViolationPosition)
	if err != nil {
		t.Fatal(err)
	}

	p.reapOnce(time.Now().Add(time.Minute))

	// The held instance must survive the reap.
	p.Release(h)
	h2, err := p.Acquire(models.ViolationPosition)
	if err != nil {
		t.Fatalf("Acquire after reap: %v", err)
	}
	p.Release(h2)
}

func TestConcurrentAcquireRelease(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerKind = 4
	p := New(cfg, stubRegistry(models.ViolationPosition), quietLogger())

	var mu sync.Mutex
	inUse := make(map[detectors.Detector]bool)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h, err := p.Acquire(models.ViolationPosition)
				if err != nil {
					continue // exhaustion under contention is expected
				}
				mu.Lock()
				if inUse[h.Detector] {
					t.Error("same instance handed to two goroutines")
				}
				inUse[h.Detector] = true
				mu.Unlock()

				mu.Lock()
				inUse[h.Detector] = false
				mu.Unlock()
				p.Release(h)
			}
		}()
	}
	wg.Wait()

	m := p.Metrics()
	if m.CacheHits+m.CacheMisses+m.Failures != m.TotalAcquisitions {
		t.Errorf("metrics do not balance: %+v", m)
	}
	if size := m.PoolSizes[string(models.ViolationPosition)]; size > cfg.MaxPerKind {
		t.Errorf("pool size %d exceeds cap %d", size, cfg.MaxPerKind)
	}
}

func TestStartShutdown(t *testing.T) {
	p := New(testConfig(), stubRegistry(models.ViolationPosition), quietLogger())
	p.Start()
	p.Start() // idempotent
	p.Shutdown()
	p.Shutdown()
}
