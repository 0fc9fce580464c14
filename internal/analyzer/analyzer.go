// Package analyzer orchestrates the per-file pipeline: parse, collect
// the IR in one traversal, borrow detectors from the pool, run them,
// and merge their findings.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/analyzer/detectors"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/analyzer/pool"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/ir"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/pysrc"
)

// Analyzer runs connascence analysis over Python files. One analyzer
// serves many files concurrently; all per-file state lives in the
// source unit and IR.
type Analyzer struct {
	cfg        *config.Config
	pool       *pool.DetectorPool
	logger     *slog.Logger
	exclusions *config.ExclusionMatcher
}

func New(cfg *config.Config, p *pool.DetectorPool, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		cfg:        cfg,
		pool:       p,
		logger:     logger,
		exclusions: config.NewExclusionMatcher(cfg.Exclusions),
	}
}

// fileOutcome is the result of analyzing one file, either violations
// or a skip reason.
type fileOutcome struct {
	path       string
	violations []models.Violation
	skipReason string
}

// AnalyzeFiles analyzes every path with bounded parallelism and merges
// outcomes in input order, so the same inputs always produce the same
// report.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, paths []string) (*models.AnalysisResult, error) {
	started := time.Now()

	outcomes := make([]fileOutcome, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			outcomes[i] = a.analyzeOne(ctx, path)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis aborted: %w", err)
	}

	result := models.NewAnalysisResult()
	for _, outcome := range outcomes {
		if outcome.skipReason != "" {
			result.AddSkipped(outcome.path, outcome.skipReason)
			continue
		}
		result.Files = append(result.Files, outcome.path)
		for _, v := range outcome.violations {
			result.AddViolation(v)
		}
	}
	result.CalculateScore()
	result.AnalysisDuration = time.Since(started).String()

	a.logger.Info("analysis complete",
		"files", len(result.Files),
		"skipped", len(result.Skipped),
		"violations", result.TotalViolations,
		"score", result.QualityScore,
		"duration", result.AnalysisDuration)

	return result, nil
}

func (a *Analyzer) workers() int {
	if a.cfg.Analysis.MaxWorkers > 0 {
		return a.cfg.Analysis.MaxWorkers
	}
	return 4
}

func (a *Analyzer) analyzeOne(ctx context.Context, path string) fileOutcome {
	violations, err := a.AnalyzeFile(ctx, path)
	if err != nil {
		a.logger.Warn("skipping file", "path", path, "error", err)
		return fileOutcome{path: path, skipReason: err.Error()}
	}
	return fileOutcome{path: path, violations: violations}
}

// AnalyzeFile parses and analyzes one file from disk.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) ([]models.Violation, error) {
	unit, err := pysrc.Parse(ctx, path)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeUnit(unit)
}

// AnalyzeBytes analyzes in-memory source, used by the watcher and by
// tests.
func (a *Analyzer) AnalyzeBytes(ctx context.Context, path string, source []byte) ([]models.Violation, error) {
	unit, err := pysrc.ParseBytes(ctx, path, source)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeUnit(unit)
}

// AnalyzeUnit runs the single-pass collection and every available
// detector over one parsed unit. Detector kinds that cannot be
// acquired or that panic are skipped; the remaining categories still
// report.
func (a *Analyzer) AnalyzeUnit(unit *pysrc.SourceUnit) ([]models.Violation, error) {
	visitor := NewUnifiedVisitor(a.cfg)
	irFile := visitor.Collect(unit)

	handles := a.pool.AcquireAll(models.AllViolationTypes())
	defer a.pool.ReleaseAll(handles)

	var out []models.Violation
	for _, kind := range models.AllViolationTypes() {
		h, ok := handles[kind]
		if !ok {
			continue
		}
		out = append(out, a.runDetector(h.Detector, unit, irFile)...)
	}

	out = a.applyExclusions(unit.Path, out)
	sortViolations(out)
	return out, nil
}

// runDetector isolates one detector run. A panicking detector loses
// its own findings only.
func (a *Analyzer) runDetector(d detectors.Detector, unit *pysrc.SourceUnit, irFile *ir.File) (violations []models.Violation) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("detector panic",
				"detector", d.Name(), "path", unit.Path, "panic", fmt.Sprint(r))
			violations = nil
		}
	}()

	d.SetFile(unit.Path, unit.Lines)
	violations = d.AnalyzeIR(irFile)

	if td, ok := d.(detectors.TreeDetector); ok {
		violations = append(violations, td.AnalyzeTree(unit.Root, unit.Source)...)
	}
	return violations
}

func (a *Analyzer) applyExclusions(path string, in []models.Violation) []models.Violation {
	out := in[:0]
	for _, v := range in {
		if a.exclusions.Matches(path, "", v.Function) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func sortViolations(violations []models.Violation) {
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		if violations[i].Column != violations[j].Column {
			return violations[i].Column < violations[j].Column
		}
		return violations[i].Type < violations[j].Type
	})
}
