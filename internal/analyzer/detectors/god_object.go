package detectors

import (
	"fmt"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/ir"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
)

// GodObjectDetector flags classes that accumulate too many methods or
// lines, plus oversized functions.
type GodObjectDetector struct {
	baseDetector
	cfg *config.Config
}

func NewGodObjectDetector(cfg *config.Config) *GodObjectDetector {
	return &GodObjectDetector{
		baseDetector: baseDetector{name: "god_object", category: models.ViolationGodObject},
		cfg:          cfg,
	}
}

func (d *GodObjectDetector) AnalyzeIR(f *ir.File) []models.Violation {
	rules := d.cfg.Rules.GodObject

	var out []models.Violation
	for _, class := range sortedClasses(f) {
		tooManyMethods := class.MethodCount > rules.MaxMethods
		tooLong := class.Span.Lines() > rules.MaxClassLines
		if !tooManyMethods && !tooLong {
			continue
		}

		sev := models.SeverityHigh
		if tooManyMethods && tooLong {
			sev = models.SeverityCritical
		} else if tooManyMethods && class.MethodCount > 2*rules.MaxMethods {
			sev = models.SeverityCritical
		}

		var desc string
		switch {
		case tooManyMethods && tooLong:
			desc = fmt.Sprintf("Class '%s' has %d methods and spans %d lines (limits: %d methods, %d lines)",
				class.Name, class.MethodCount, class.Span.Lines(), rules.MaxMethods, rules.MaxClassLines)
		case tooManyMethods:
			desc = fmt.Sprintf("Class '%s' has %d methods (maximum %d)",
				class.Name, class.MethodCount, rules.MaxMethods)
		default:
			desc = fmt.Sprintf("Class '%s' spans %d lines (maximum %d)",
				class.Name, class.Span.Lines(), rules.MaxClassLines)
		}
		suggestion := "Split responsibilities into smaller collaborating classes"

		v := models.NewViolation(models.ViolationGodObject, sev, f.Path, class.Line, class.Column, desc, suggestion)
		v.Context = map[string]any{
			"method_count": class.MethodCount,
			"class_lines":  class.Span.Lines(),
		}
		out = append(out, v)
	}

	for _, fn := range sortedFuncs(f) {
		if fn.Span.Lines() <= rules.MaxFunctionLines {
			continue
		}
		desc := fmt.Sprintf("Function '%s' spans %d lines (maximum %d)",
			fn.Name, fn.Span.Lines(), rules.MaxFunctionLines)
		suggestion := "Extract cohesive sections into helper functions"

		v := models.NewViolation(models.ViolationGodObject, models.SeverityMedium, f.Path, fn.Line, fn.Column, desc, suggestion)
		v.Function = fn.Name
		out = append(out, v)
	}

	return out
}
