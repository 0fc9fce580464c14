package analyzer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/models"
)

// ReportGenerator handles formatting and displaying analysis results
type ReportGenerator struct {
	format string
	config *config.Config
}

// NewReportGenerator creates a new report generator
func NewReportGenerator(format string) *ReportGenerator {
	return &ReportGenerator{
		format: format,
		config: config.DefaultConfig(),
	}
}

func NewReportGeneratorWithConfig(cfg *config.Config) *ReportGenerator {
	return &ReportGenerator{
		format: cfg.Output.Format,
		config: cfg,
	}
}

// Generate creates a formatted report from analysis results
func (r *ReportGenerator) Generate(result *models.AnalysisResult) string {
	switch r.format {
	case "json":
		return r.generateJSON(result)
	default:
		return r.generateConsole(result)
	}
}

// generateJSON creates a JSON report
func (r *ReportGenerator) generateJSON(result *models.AnalysisResult) string {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error generating JSON report: %v", err)
	}
	return string(data)
}

// generateConsole creates a colorized console report
func (r *ReportGenerator) generateConsole(result *models.AnalysisResult) string {
	var report strings.Builder

	useColors := r.config.Output.Colors
	showSuggestions := r.config.Output.ShowSuggestions

	if useColors {
		report.WriteString(color.CyanString("🔍 Connascence Analysis Report\n"))
		report.WriteString(color.WhiteString("═══════════════════════════════════════\n\n"))
	} else {
		report.WriteString("Connascence Analysis Report\n")
		report.WriteString("=======================================\n\n")
	}

	r.writeSummary(&report, result, useColors)
	r.writeQualityScore(&report, result)

	if len(result.Violations) > 0 {
		r.writeSeveritySummary(&report, result, useColors)
		if showSuggestions {
			report.WriteString("\n")
			r.writeDetailedViolations(&report, result, useColors)
		}
	} else {
		if useColors {
			report.WriteString(color.GreenString("🎉 No connascence violations detected!\n\n"))
		} else {
			report.WriteString("No connascence violations detected!\n\n")
		}
	}

	if len(result.Skipped) > 0 {
		r.writeSkipped(&report, result, useColors)
	}

	if useColors {
		report.WriteString(color.WhiteString("Analysis completed in %s\n", result.AnalysisDuration))
	} else {
		report.WriteString(fmt.Sprintf("Analysis completed in %s\n", result.AnalysisDuration))
	}

	return report.String()
}

func (r *ReportGenerator) writeSummary(report *strings.Builder, result *models.AnalysisResult, useColors bool) {
	if useColors {
		report.WriteString(color.WhiteString("📊 Summary:\n"))
	} else {
		report.WriteString("Summary:\n")
	}
	report.WriteString(fmt.Sprintf("   Files analyzed: %d\n", len(result.Files)))
	report.WriteString(fmt.Sprintf("   Files skipped: %d\n", len(result.Skipped)))
	report.WriteString(fmt.Sprintf("   Violations found: %d\n", result.TotalViolations))
	report.WriteString("\n")
}

// writeQualityScore writes the quality score with color coding
func (r *ReportGenerator) writeQualityScore(report *strings.Builder, result *models.AnalysisResult) {
	score := result.QualityScore
	thresholds := r.config.Analysis.ScoreThresholds

	var scoreColor func(a ...interface{}) string
	var emoji string
	switch {
	case score >= thresholds.Excellent:
		scoreColor = color.New(color.FgGreen).SprintFunc()
		emoji = "🌟"
	case score >= thresholds.Good:
		scoreColor = color.New(color.FgYellow).SprintFunc()
		emoji = "⚡"
	case score >= thresholds.Fair:
		scoreColor = color.New(color.FgHiYellow).SprintFunc()
		emoji = "⚠️"
	default:
		scoreColor = color.New(color.FgRed).SprintFunc()
		emoji = "🚨"
	}

	if r.config.Output.Colors {
		report.WriteString(fmt.Sprintf("%s Quality Score: %s/100\n\n", emoji, scoreColor(fmt.Sprintf("%d", score))))
	} else {
		report.WriteString(fmt.Sprintf("Quality Score: %d/100\n\n", score))
	}
}

// getSeverityDisplay returns emoji and color function for a severity level
func (r *ReportGenerator) getSeverityDisplay(severity string) (string, func(a ...interface{}) string) {
	switch severity {
	case "CRITICAL":
		return "🚨", color.New(color.FgRed, color.Bold).SprintFunc()
	case "HIGH":
		return "❌", color.New(color.FgRed).SprintFunc()
	case "MEDIUM":
		return "⚠️", color.New(color.FgYellow).SprintFunc()
	case "LOW":
		return "ℹ️", color.New(color.FgBlue).SprintFunc()
	default:
		return "❓", color.New(color.FgWhite).SprintFunc()
	}
}

func (r *ReportGenerator) writeSeveritySummary(report *strings.Builder, result *models.AnalysisResult, useColors bool) {
	if useColors {
		report.WriteString(color.WhiteString("📋 Violations by Severity:\n"))
	} else {
		report.WriteString("Violations by Severity:\n")
	}

	severities := []string{"CRITICAL", "HIGH", "MEDIUM", "LOW"}
	for _, severity := range severities {
		count := result.BySeverity[severity]
		if count == 0 {
			continue
		}
		if useColors {
			emoji, colorFunc := r.getSeverityDisplay(severity)
			report.WriteString(fmt.Sprintf("   %s %s: %s\n", emoji, severity, colorFunc(fmt.Sprintf("%d", count))))
		} else {
			report.WriteString(fmt.Sprintf("   %s: %d\n", severity, count))
		}
	}
}

func (r *ReportGenerator) writeDetailedViolations(report *strings.Builder, result *models.AnalysisResult, useColors bool) {
	if useColors {
		report.WriteString(color.WhiteString("\n🔍 Detailed Violations:\n"))
	} else {
		report.WriteString("\nDetailed Violations:\n")
	}
	report.WriteString(strings.Repeat("─", 50) + "\n\n")

	// Critical first, then by location for equal severities.
	sorted := make([]models.Violation, len(result.Violations))
	copy(sorted, result.Violations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity > sorted[j].Severity
	})

	for i, v := range sorted {
		r.writeViolationDetail(report, v, i+1, useColors)
		report.WriteString("\n")
	}
}

func (r *ReportGenerator) writeViolationDetail(report *strings.Builder, v models.Violation, index int, useColors bool) {
	typeLabel := strings.ToUpper(strings.TrimPrefix(string(v.Type), "connascence_of_"))

	if useColors {
		emoji, severityColor := r.getSeverityDisplay(v.Severity.String())

		report.WriteString(fmt.Sprintf("%s Violation #%d - %s %s\n",
			emoji, index, severityColor(v.Severity.String()), color.WhiteString(typeLabel)))

		report.WriteString(color.CyanString("   📍 Location: %s:%d:%d", v.FilePath, v.Line, v.Column))
		if v.Function != "" {
			report.WriteString(color.CyanString(" in function '%s'", v.Function))
		}
		report.WriteString("\n")

		report.WriteString(color.WhiteString("   💭 Problem: %s\n", v.Description))
		report.WriteString(color.GreenString("   💡 Suggestion: %s\n", v.Suggestion))
	} else {
		report.WriteString(fmt.Sprintf("Violation #%d - %s %s\n", index, v.Severity.String(), typeLabel))

		report.WriteString(fmt.Sprintf("   Location: %s:%d:%d", v.FilePath, v.Line, v.Column))
		if v.Function != "" {
			report.WriteString(fmt.Sprintf(" in function '%s'", v.Function))
		}
		report.WriteString("\n")

		report.WriteString(fmt.Sprintf("   Problem: %s\n", v.Description))
		report.WriteString(fmt.Sprintf("   Suggestion: %s\n", v.Suggestion))
	}
}

func (r *ReportGenerator) writeSkipped(report *strings.Builder, result *models.AnalysisResult, useColors bool) {
	if useColors {
		report.WriteString(color.WhiteString("⏭️  Skipped files:\n"))
	} else {
		report.WriteString("Skipped files:\n")
	}
	for _, s := range result.Skipped {
		report.WriteString(fmt.Sprintf("   %s (%s)\n", s.Path, s.Reason))
	}
	report.WriteString("\n")
}
