package detectors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/ir"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
)

// ExecutionDetector flags order-of-execution coupling: functions that
// mutate module globals, constructors whose attribute assignments
// depend on earlier ones, and long runs of bare side-effecting calls.
type ExecutionDetector struct {
	baseDetector
	cfg *config.Config
}

func NewExecutionDetector(cfg *config.Config) *ExecutionDetector {
	return &ExecutionDetector{
		baseDetector: baseDetector{name: "execution", category: models.ViolationExecution},
		cfg:          cfg,
	}
}

func (d *ExecutionDetector) AnalyzeIR(f *ir.File) []models.Violation {
	rules := d.cfg.Rules.Execution

	var out []models.Violation
	out = append(out, d.globalTouches(f, rules.MaxGlobalTouches)...)

	for _, marker := range f.OrderMarkers {
		if marker.Kind != ir.OrderInitAttrDependency {
			continue
		}
		desc := fmt.Sprintf("Attribute 'self.%s' depends on earlier constructor assignments (%s)",
			marker.Attr, joinAttrs(marker.DependsOn))
		suggestion := "Compute dependent attributes in a method or property instead of relying on assignment order"

		v := models.NewViolation(models.ViolationExecution, models.SeverityLow, f.Path, marker.Line, 1, desc, suggestion)
		v.Function = marker.Function
		out = append(out, v)
	}

	for _, fn := range sortedFuncs(f) {
		if fn.SideEffectCalls <= rules.MaxSideEffectRun {
			continue
		}
		desc := fmt.Sprintf("Function '%s' runs %d consecutive side-effecting calls whose order is load-bearing",
			fn.Name, fn.SideEffectCalls)
		suggestion := "Make the sequence explicit: return values, pass dependencies, or use a pipeline"

		v := models.NewViolation(models.ViolationExecution, models.SeverityMedium, f.Path, fn.Line, fn.Column, desc, suggestion)
		v.Function = fn.Name
		out = append(out, v)
	}

	return out
}

// globalTouches reports functions declaring more globals than allowed.
func (d *ExecutionDetector) globalTouches(f *ir.File, max int) []models.Violation {
	type touch struct {
		count int
		line  int
	}
	perFunc := make(map[string]*touch)
	for _, marker := range f.OrderMarkers {
		if marker.Kind != ir.OrderGlobalDecl || marker.Function == "" {
			continue
		}
		t := perFunc[marker.Function]
		if t == nil {
			t = &touch{line: marker.Line}
			perFunc[marker.Function] = t
		}
		t.count++
		if marker.Line < t.line {
			t.line = marker.Line
		}
	}

	names := make([]string, 0, len(perFunc))
	for name := range perFunc {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []models.Violation
	for _, name := range names {
		t := perFunc[name]
		if t.count <= max {
			continue
		}
		sev := models.SeverityMedium
		if t.count > 2*max {
			sev = models.SeverityHigh
		}
		desc := fmt.Sprintf("Function '%s' declares %d module globals (maximum %d)", name, t.count, max)
		suggestion := "Pass state explicitly or wrap it in an object instead of mutating module globals"

		v := models.NewViolation(models.ViolationExecution, sev, f.Path, t.line, 1, desc, suggestion)
		v.Function = name
		out = append(out, v)
	}
	return out
}

func joinAttrs(attrs []string) string {
	quoted := make([]string, len(attrs))
	for i, a := range attrs {
		quoted[i] = "self." + a
	}
	return strings.Join(quoted, ", ")
}
