package analyzer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/analyzer/detectors"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/analyzer/pool"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
)

func newTestAnalyzer(t *testing.T, cfg *config.Config) *Analyzer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	p := pool.New(pool.FromConfig(cfg.Pool), detectors.Registry(cfg), logger)
	t.Cleanup(p.Shutdown)
	return New(cfg, p, logger)
}

func violationsOfType(violations []models.Violation, t models.ViolationType) []models.Violation {
	var out []models.Violation
	for _, v := range violations {
		if v.Type == t {
			out = append(out, v)
		}
	}
	return out
}

func TestAnalyzeSampleFixture(t *testing.T) {
	a := newTestAnalyzer(t, config.DefaultConfig())

	path := filepath.Join("..", "..", "testdata", "sample.py")
	violations, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("AnalyzeFile: %v", err)
	}

	position := violationsOfType(violations, models.ViolationPosition)
	if len(position) != 1 {
		t.Fatalf("position violations = %d, want 1", len(position))
	}
	// 6 parameters against a threshold of 3.
	if position[0].Severity != models.SeverityHigh {
		t.Errorf("position severity = %s, want HIGH", position[0].Severity)
	}
	if position[0].Function != "process_order" {
		t.Errorf("position function = %q, want process_order", position[0].Function)
	}

	algorithm := violationsOfType(violations, models.ViolationAlgorithm)
	if len(algorithm) != 2 {
		t.Fatalf("algorithm violations = %d, want 2 (one per member of the transform bucket)", len(algorithm))
	}
	if algorithm[0].Function != "transform_a" || !strings.Contains(algorithm[0].Description, "transform_b") {
		t.Errorf("algorithm[0] = %+v, want transform_a cross-referencing transform_b", algorithm[0])
	}
	if algorithm[1].Function != "transform_b" || !strings.Contains(algorithm[1].Description, "transform_a") {
		t.Errorf("algorithm[1] = %+v, want transform_b cross-referencing transform_a", algorithm[1])
	}

	timing := violationsOfType(violations, models.ViolationTiming)
	if len(timing) != 2 {
		t.Fatalf("timing violations = %d, want 2 (sleep call, unsynchronized globals)", len(timing))
	}
	var sawSleep, sawUnsync bool
	for _, v := range timing {
		if v.Function == "wait_for_worker" && v.Severity == models.SeverityHigh {
			sawSleep = true
		}
		if v.Function == "update_state" && v.Severity == models.SeverityLow {
			sawUnsync = true
		}
	}
	if !sawSleep {
		t.Error("expected HIGH timing violation for sleep in wait_for_worker")
	}
	if !sawUnsync {
		t.Error("expected LOW timing violation for unsynchronized globals in update_state")
	}

	execution := violationsOfType(violations, models.ViolationExecution)
	if len(execution) == 0 {
		t.Error("expected execution violations for update_state globals")
	}

	god := violationsOfType(violations, models.ViolationGodObject)
	if len(god) == 0 {
		t.Error("expected god object violation for registry_manager")
	}

	convention := violationsOfType(violations, models.ViolationConvention)
	if len(convention) == 0 {
		t.Error("expected convention violations (BadlyNamedHelper, registry_manager)")
	}

	values := violationsOfType(violations, models.ViolationValues)
	if len(values) == 0 {
		t.Error("expected values violations for hardcoded URL and path")
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	a := newTestAnalyzer(t, config.DefaultConfig())
	path := filepath.Join("..", "..", "testdata", "sample.py")

	first, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := a.AnalyzeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated analysis differs: %d vs %d violations", len(first), len(second))
	}
}

func TestAnalyzeFilesSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.py")
	bad := filepath.Join(dir, "bad.py")
	if err := os.WriteFile(good, []byte("def fine():\n    \"\"\"Doc.\"\"\"\n    return 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("def broken(:\n    return\n"), 0644); err != nil {
		t.Fatal(err)
	}

	a := newTestAnalyzer(t, config.DefaultConfig())
	result, err := a.AnalyzeFiles(context.Background(), []string{good, bad})
	if err != nil {
		t.Fatalf("AnalyzeFiles: %v", err)
	}

	if len(result.Files) != 1 || result.Files[0] != good {
		t.Errorf("Files = %v, want only the parseable file", result.Files)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Path != bad {
		t.Errorf("Skipped = %v, want the broken file", result.Skipped)
	}
	if result.QualityScore < 0 || result.QualityScore > 100 {
		t.Errorf("QualityScore = %d, want 0..100", result.QualityScore)
	}
}

func TestAnalyzeFilesDeterministicAcrossWorkers(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Analysis.MaxWorkers = 8
	a := newTestAnalyzer(t, cfg)

	dir := t.TempDir()
	var paths []string
	src := "def leftpad(value, width, fill, align):\n    \"\"\"Doc.\"\"\"\n    return value\n"
	for _, name := range []string{"a.py", "b.py", "c.py", "d.py"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(src), 0644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	first, err := a.AnalyzeFiles(context.Background(), paths)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.AnalyzeFiles(context.Background(), paths)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Violations, second.Violations) {
		t.Error("violation order differs between runs over identical inputs")
	}
	if !reflect.DeepEqual(first.Files, paths) {
		t.Errorf("Files = %v, want input order %v", first.Files, paths)
	}
}

func TestExclusionsFilterViolations(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Exclusions.FunctionPatterns = []string{"^legacy_"}
	a := newTestAnalyzer(t, cfg)

	src := "def legacy_handler(a, b, c, d, e, f):\n    \"\"\"Doc.\"\"\"\n    return a\n"
	violations, err := a.AnalyzeBytes(context.Background(), "legacy.py", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if got := violationsOfType(violations, models.ViolationPosition); len(got) != 0 {
		t.Errorf("excluded function still reported: %v", got)
	}
}
