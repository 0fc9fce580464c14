package detectors

import (
	"fmt"
	"strings"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/ir"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
)

// TimingDetector flags sleep-style calls. Code that waits a fixed
// interval for another component is coupled to that component's speed.
type TimingDetector struct {
	baseDetector
	cfg *config.Config
}

func NewTimingDetector(cfg *config.Config) *TimingDetector {
	return &TimingDetector{
		baseDetector: baseDetector{name: "timing", category: models.ViolationTiming},
		cfg:          cfg,
	}
}

func (d *TimingDetector) AnalyzeIR(f *ir.File) []models.Violation {
	// Sleeping in a file that also coordinates threads is the worst
	// case: the sleep stands in for synchronization that should exist.
	usesThreading := false
	for _, call := range f.Calls {
		if call.Kind == ir.CallThreading {
			usesThreading = true
			break
		}
	}
	if !usesThreading {
		usesThreading = f.HasImport("threading") || f.HasImport("asyncio")
	}

	var out []models.Violation
	for _, call := range f.Calls {
		if call.Kind != ir.CallTiming {
			continue
		}

		sev := models.SeverityMedium
		if usesThreading {
			sev = models.SeverityHigh
		}

		desc := fmt.Sprintf("Call to '%s' couples correctness to wall-clock timing", call.Name)
		suggestion := "Replace fixed delays with events, conditions or explicit polling with a deadline"

		v := models.NewViolation(models.ViolationTiming, sev, f.Path, call.Line, call.Column, desc, suggestion)
		v.Function = call.EnclosingFunc
		out = append(out, v)
	}

	// Shared module state read without a lock context only matters when
	// the file actually runs concurrent code.
	if usesThreading {
		for _, fn := range sortedFuncs(f) {
			if len(fn.GlobalReads) == 0 || fn.SyncContexts > 0 {
				continue
			}
			desc := fmt.Sprintf("Function '%s' touches shared module state (%s) without a lock context",
				fn.Name, strings.Join(fn.GlobalReads, ", "))
			suggestion := "Guard shared state with a lock or pass it explicitly"

			v := models.NewViolation(models.ViolationTiming, models.SeverityLow, f.Path, fn.Line, fn.Column, desc, suggestion)
			v.Function = fn.Name
			out = append(out, v)
		}
	}
	return out
}
