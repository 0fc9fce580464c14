package detectors

import (
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/ir"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
)

// ConventionDetector turns the visitor's naming and docstring findings
// into violations.
type ConventionDetector struct {
	baseDetector
	cfg *config.Config
}

func NewConventionDetector(cfg *config.Config) *ConventionDetector {
	return &ConventionDetector{
		baseDetector: baseDetector{name: "convention", category: models.ViolationConvention},
		cfg:          cfg,
	}
}

func (d *ConventionDetector) AnalyzeIR(f *ir.File) []models.Violation {
	var out []models.Violation
	for _, finding := range f.NamingFindings {
		suggestion := suggestionFor(finding.Kind)

		v := models.NewViolation(models.ViolationConvention, models.SeverityLow,
			f.Path, finding.Line, finding.Column, finding.Detail, suggestion)
		if finding.Kind == ir.NamingFunctionCase || finding.Kind == ir.NamingMissingDocstring {
			v.Function = finding.Name
		}
		v.Context = map[string]any{"kind": string(finding.Kind), "name": finding.Name}
		out = append(out, v)
	}
	return out
}

func suggestionFor(kind ir.NamingKind) string {
	switch kind {
	case ir.NamingFunctionCase:
		return "Rename to snake_case"
	case ir.NamingClassCase:
		return "Rename to PascalCase"
	case ir.NamingConstantCase:
		return "Use snake_case for variables or CONSTANT_CASE for constants"
	case ir.NamingMissingDocstring:
		return "Add a docstring describing purpose, parameters and return value"
	default:
		return "Follow the project naming conventions"
	}
}
