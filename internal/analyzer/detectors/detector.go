// Package detectors implements the connascence detector kinds. Each
// detector is a reusable instance: SetFile rebinds it to a new file
// between runs, so instances must keep no cross-file state.
package detectors

import (
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/ir"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
)

// Detector analyzes the collected IR of one file.
type Detector interface {
	Name() string
	Category() models.ViolationType

	// SetFile rebinds the instance to a new file before a run.
	SetFile(path string, lines []string)

	AnalyzeIR(f *ir.File) []models.Violation
}

// TreeDetector is implemented by detectors that additionally need raw
// tree access beyond the IR. The orchestrator checks for it explicitly
// rather than passing every detector the tree.
type TreeDetector interface {
	AnalyzeTree(root *sitter.Node, source []byte) []models.Violation
}

// Factory builds a fresh detector instance for pooling.
type Factory func() Detector

// Registry returns one factory per enabled detector category. The
// table is static; enabling or disabling categories is configuration,
// never registration at runtime.
func Registry(cfg *config.Config) map[models.ViolationType]Factory {
	reg := make(map[models.ViolationType]Factory)

	if cfg.Rules.Position.Enabled {
		reg[models.ViolationPosition] = func() Detector { return NewPositionDetector(cfg) }
	}
	if cfg.Rules.MagicLiteral.Enabled {
		reg[models.ViolationMeaning] = func() Detector { return NewMagicLiteralDetector(cfg) }
	}
	if cfg.Rules.GodObject.Enabled {
		reg[models.ViolationGodObject] = func() Detector { return NewGodObjectDetector(cfg) }
	}
	if cfg.Rules.Algorithm.Enabled {
		reg[models.ViolationAlgorithm] = func() Detector { return NewAlgorithmDetector(cfg) }
	}
	if cfg.Rules.Timing.Enabled {
		reg[models.ViolationTiming] = func() Detector { return NewTimingDetector(cfg) }
	}
	if cfg.Rules.Convention.Enabled {
		reg[models.ViolationConvention] = func() Detector { return NewConventionDetector(cfg) }
	}
	if cfg.Rules.Execution.Enabled {
		reg[models.ViolationExecution] = func() Detector { return NewExecutionDetector(cfg) }
	}
	if cfg.Rules.Values.Enabled {
		reg[models.ViolationValues] = func() Detector { return NewValuesDetector(cfg) }
	}

	return reg
}

// baseDetector carries the per-file binding shared by every kind.
type baseDetector struct {
	name     string
	category models.ViolationType
	path     string
	lines    []string
}

func (b *baseDetector) Name() string                    { return b.name }
func (b *baseDetector) Category() models.ViolationType { return b.category }

func (b *baseDetector) SetFile(path string, lines []string) {
	b.path = path
	b.lines = lines
}

// sortedFuncs returns functions ordered by line then name so repeated
// runs over the same IR emit violations in the same order.
func sortedFuncs(f *ir.File) []*ir.FuncInfo {
	out := make([]*ir.FuncInfo, 0, len(f.Functions))
	for _, fn := range f.Functions {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func sortedClasses(f *ir.File) []*ir.ClassInfo {
	out := make([]*ir.ClassInfo, 0, len(f.Classes))
	for _, c := range f.Classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Name < out[j].Name
	})
	return out
}
