package detectors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/ir"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
)

// AlgorithmDetector flags functions whose structural digests collide:
// two bodies with the same statement shape are duplicated logic even
// when every name differs. Every member of a colliding bucket is
// reported, cross-referencing its siblings.
type AlgorithmDetector struct {
	baseDetector
	cfg *config.Config
}

func NewAlgorithmDetector(cfg *config.Config) *AlgorithmDetector {
	return &AlgorithmDetector{
		baseDetector: baseDetector{name: "algorithm", category: models.ViolationAlgorithm},
		cfg:          cfg,
	}
}

func (d *AlgorithmDetector) AnalyzeIR(f *ir.File) []models.Violation {
	digests := make([]string, 0, len(f.StructuralHashes))
	for digest, entries := range f.StructuralHashes {
		if len(entries) >= 2 {
			digests = append(digests, digest)
		}
	}
	sort.Strings(digests)

	var out []models.Violation
	for _, digest := range digests {
		// The IR is read-only after collection; sort a copy.
		entries := append([]ir.DigestEntry(nil), f.StructuralHashes[digest]...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Line < entries[j].Line })

		sev := models.SeverityMedium
		if len(entries) >= 3 {
			sev = models.SeverityHigh
		}

		for i, entry := range entries {
			siblings := make([]string, 0, len(entries)-1)
			for j, other := range entries {
				if j != i {
					siblings = append(siblings, fmt.Sprintf("'%s' (line %d)", other.Function, other.Line))
				}
			}

			desc := fmt.Sprintf("Function '%s' shares its structure with %s",
				entry.Function, strings.Join(siblings, ", "))
			suggestion := "Extract the shared algorithm into one helper used by every copy"

			v := models.NewViolation(models.ViolationAlgorithm, sev, f.Path, entry.Line, 1, desc, suggestion)
			v.Function = entry.Function
			v.Context = map[string]any{
				"digest":      digest,
				"bucket_size": len(entries),
			}
			out = append(out, v)
		}
	}
	return out
}
