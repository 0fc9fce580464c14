package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Weight is the numeric contribution of one violation to downstream
// scoring. The mapping is part of the reporting contract.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 3
	case SeverityHigh:
		return 7
	case SeverityCritical:
		return 10
	default:
		return 0
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch strings.ToUpper(raw) {
	case "LOW":
		*s = SeverityLow
	case "MEDIUM":
		*s = SeverityMedium
	case "HIGH":
		*s = SeverityHigh
	case "CRITICAL":
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity %q", raw)
	}
	return nil
}

type ViolationType string

const (
	ViolationPosition   ViolationType = "connascence_of_position"
	ViolationMeaning    ViolationType = "connascence_of_meaning"
	ViolationGodObject  ViolationType = "god_object"
	ViolationAlgorithm  ViolationType = "connascence_of_algorithm"
	ViolationTiming     ViolationType = "connascence_of_timing"
	ViolationConvention ViolationType = "connascence_of_convention"
	ViolationExecution  ViolationType = "connascence_of_execution"
	ViolationValues     ViolationType = "connascence_of_values"
)

// AllViolationTypes returns every detector category in a fixed order.
// Pool acquisition and per-file detector runs iterate this order so
// repeated analyses of an unchanged file produce identical output.
func AllViolationTypes() []ViolationType {
	return []ViolationType{
		ViolationPosition,
		ViolationMeaning,
		ViolationGodObject,
		ViolationAlgorithm,
		ViolationTiming,
		ViolationConvention,
		ViolationExecution,
		ViolationValues,
	}
}

// Violation is an immutable finding produced by one detector. Field
// names are a contract with downstream reporting tooling.
type Violation struct {
	ID          string         `json:"id"`
	Type        ViolationType  `json:"type"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	FilePath    string         `json:"file_path"`
	Line        int            `json:"line_number"`
	Column      int            `json:"column"`
	Function    string         `json:"function,omitempty"`
	Suggestion  string         `json:"suggestion"`
	Weight      float64        `json:"weight"`
	Context     map[string]any `json:"context,omitempty"`
}

// NewViolation builds a violation with a stable content-derived id and
// the severity-derived weight filled in.
func NewViolation(t ViolationType, sev Severity, file string, line, column int, desc, suggestion string) Violation {
	key := fmt.Sprintf("%s|%s|%d|%d|%s", t, file, line, column, desc)
	return Violation{
		ID:          fmt.Sprintf("%016x", xxh3.HashString(key)),
		Type:        t,
		Severity:    sev,
		Description: desc,
		FilePath:    file,
		Line:        line,
		Column:      column,
		Suggestion:  suggestion,
		Weight:      sev.Weight(),
	}
}

// SkippedFile records a file excluded from the run with its reason.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type AnalysisResult struct {
	Files            []string       `json:"files_analyzed"`
	Skipped          []SkippedFile  `json:"files_skipped"`
	TotalViolations  int            `json:"total_violations"`
	BySeverity       map[string]int `json:"violations_by_severity"`
	Violations       []Violation    `json:"violations"`
	QualityScore     int            `json:"quality_score"` // 0-100 scale
	AnalysisDuration string         `json:"analysis_duration"`
}

func NewAnalysisResult() *AnalysisResult {
	return &AnalysisResult{
		Files:      make([]string, 0),
		Skipped:    make([]SkippedFile, 0),
		Violations: make([]Violation, 0),
		BySeverity: make(map[string]int),
	}
}

func (ar *AnalysisResult) AddViolation(v Violation) {
	ar.Violations = append(ar.Violations, v)
	ar.TotalViolations++
	ar.BySeverity[v.Severity.String()]++
}

func (ar *AnalysisResult) AddSkipped(path, reason string) {
	ar.Skipped = append(ar.Skipped, SkippedFile{Path: path, Reason: reason})
}

// CalculateScore derives a 0-100 quality score from violation weights.
// Structural categories carry an extra penalty multiplier since they
// indicate coupling that spreads with every edit.
func (ar *AnalysisResult) CalculateScore() {
	if ar.TotalViolations == 0 {
		ar.QualityScore = 100
		return
	}

	penalty := 0.0
	for _, v := range ar.Violations {
		p := v.Weight
		switch v.Type {
		case ViolationGodObject, ViolationAlgorithm:
			p *= 1.5
		case ViolationTiming, ViolationExecution:
			p *= 1.2
		}
		penalty += p
	}

	score := 100 - int(penalty)
	if score < 0 {
		score = 0
	}
	ar.QualityScore = score
}
