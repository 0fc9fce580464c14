package detectors

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/ir"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
)

var constantNameRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// MagicLiteralDetector flags unexplained constants. Every reader of a
// magic literal shares unstated knowledge of what the value means.
type MagicLiteralDetector struct {
	baseDetector
	cfg *config.Config
}

func NewMagicLiteralDetector(cfg *config.Config) *MagicLiteralDetector {
	return &MagicLiteralDetector{
		baseDetector: baseDetector{name: "magic_literal", category: models.ViolationMeaning},
		cfg:          cfg,
	}
}

func (d *MagicLiteralDetector) AnalyzeIR(f *ir.File) []models.Violation {
	var out []models.Violation
	for _, lit := range f.Literals {
		// Hardcoded deployment strings belong to the values detector.
		if lit.IsString && lit.LooksHardcoded {
			continue
		}
		// Assigning to a CONSTANT_CASE name is already the remediation.
		if constantNameRe.MatchString(lit.AssignTarget) {
			continue
		}
		// Literals bound to config-keyword names or living in
		// setup-style functions are deliberate configuration, exempt.
		if d.inConfigContext(lit) {
			continue
		}

		sev := models.SeverityMedium
		if lit.IsString {
			sev = models.SeverityLow
		}

		kind := "number"
		if lit.IsString {
			kind = "string"
		}
		desc := fmt.Sprintf("Magic %s %q should be a named constant", kind, lit.Raw)
		suggestion := fmt.Sprintf("Extract %q into a named constant that states its meaning", lit.Raw)

		v := models.NewViolation(models.ViolationMeaning, sev, f.Path, lit.Line, lit.Column, desc, suggestion)
		v.Function = lit.EnclosingFunc
		out = append(out, v)
	}
	return out
}

// inConfigContext reports whether the literal is bound to a name that
// marks it as deliberate configuration.
func (d *MagicLiteralDetector) inConfigContext(lit ir.Literal) bool {
	target := strings.ToLower(lit.AssignTarget)
	enclosing := strings.ToLower(lit.EnclosingFunc)
	for _, kw := range d.cfg.Rules.MagicLiteral.ConfigKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(target, kw) || strings.Contains(enclosing, kw) {
			return true
		}
	}
	return false
}
