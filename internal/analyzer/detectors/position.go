package detectors

import (
	"fmt"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/ir"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
)

// PositionDetector flags functions whose callers must remember the
// order of too many positional parameters.
type PositionDetector struct {
	baseDetector
	cfg *config.Config
}

func NewPositionDetector(cfg *config.Config) *PositionDetector {
	return &PositionDetector{
		baseDetector: baseDetector{name: "position", category: models.ViolationPosition},
		cfg:          cfg,
	}
}

func (d *PositionDetector) AnalyzeIR(f *ir.File) []models.Violation {
	maxParams := d.cfg.Rules.Position.MaxPositionalParams

	var out []models.Violation
	for _, fn := range sortedFuncs(f) {
		if fn.ParamCount <= maxParams {
			continue
		}

		delta := fn.ParamCount - maxParams
		sev := d.severityFor(delta)

		desc := fmt.Sprintf("Function '%s' takes %d positional parameters (maximum %d)",
			fn.Name, fn.ParamCount, maxParams)
		suggestion := "Group related parameters into a dataclass or switch to keyword-only arguments"

		v := models.NewViolation(models.ViolationPosition, sev, f.Path, fn.Line, fn.Column, desc, suggestion)
		v.Function = fn.Name
		v.Context = map[string]any{
			"param_count": fn.ParamCount,
			"threshold":   maxParams,
		}
		out = append(out, v)
	}
	return out
}

// severityFor escalates with the amount over the threshold.
func (d *PositionDetector) severityFor(delta int) models.Severity {
	medium := d.cfg.Rules.Position.MediumDelta
	critical := d.cfg.Rules.Position.CriticalDelta
	switch {
	case delta < medium:
		return models.SeverityLow
	case delta == medium:
		return models.SeverityMedium
	case delta <= critical:
		return models.SeverityHigh
	default:
		return models.SeverityCritical
	}
}
