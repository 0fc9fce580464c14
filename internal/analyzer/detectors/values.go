package detectors

import (
	"fmt"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/ir"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
)

// duplicateValueMin is how many occurrences of the same literal value
// count as shared-value coupling.
const duplicateValueMin = 3

// ValuesDetector flags hardcoded deployment values (paths, URLs,
// host:port pairs) and literal values repeated across a file. Every
// occurrence must change together when the value changes.
type ValuesDetector struct {
	baseDetector
	cfg *config.Config
}

func NewValuesDetector(cfg *config.Config) *ValuesDetector {
	return &ValuesDetector{
		baseDetector: baseDetector{name: "values", category: models.ViolationValues},
		cfg:          cfg,
	}
}

func (d *ValuesDetector) AnalyzeIR(f *ir.File) []models.Violation {
	var out []models.Violation

	for _, lit := range f.Literals {
		if !lit.IsString || !lit.LooksHardcoded {
			continue
		}
		desc := fmt.Sprintf("Hardcoded value %q embeds deployment detail in code", lit.Raw)
		suggestion := "Move the value to configuration or an environment variable"

		v := models.NewViolation(models.ViolationValues, models.SeverityMedium,
			f.Path, lit.Line, lit.Column, desc, suggestion)
		v.Function = lit.EnclosingFunc
		out = append(out, v)
	}

	// Repeated identical literals: report once, at the first occurrence.
	counts := make(map[string]int)
	first := make(map[string]ir.Literal)
	for _, lit := range f.Literals {
		if lit.IsString && lit.LooksHardcoded {
			continue // already reported above
		}
		counts[lit.Raw]++
		if counts[lit.Raw] == 1 {
			first[lit.Raw] = lit
		}
	}
	for _, lit := range f.Literals {
		n := counts[lit.Raw]
		if n < duplicateValueMin {
			continue
		}
		head := first[lit.Raw]
		if head.Line != lit.Line || head.Column != lit.Column {
			continue
		}
		desc := fmt.Sprintf("Value %q appears %d times; every copy must change together", lit.Raw, n)
		suggestion := fmt.Sprintf("Define %q once as a named constant and reference it", lit.Raw)

		v := models.NewViolation(models.ViolationValues, models.SeverityMedium,
			f.Path, lit.Line, lit.Column, desc, suggestion)
		v.Function = lit.EnclosingFunc
		v.Context = map[string]any{"occurrences": n}
		out = append(out, v)
	}

	return out
}
