package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/analyzer"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/analyzer/detectors"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/analyzer/pool"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/config"
	"github.com/DNYoussef/spek-v2-rebuild-sub002/internal/watcher"
)

var (
	formatFlag         string
	watchFlag          bool
	configFlag         string
	generateConfigFlag bool
	verboseFlag        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "connascence [files or directories]",
	Short: "A Python connascence analyzer that detects coupling hotspots",
	Long: `connascence is a static analysis tool that scans Python code for
connascence violations and reports them with remediation suggestions.

Examples:
  connascence .                              # Analyze current directory
  connascence app.py services/               # Analyze specific paths
  connascence --format=json .                # Output results in JSON format
  connascence --config=.connascence.yml .    # Use custom config
  connascence --watch .                      # Re-analyze on file changes
  connascence --generate-config              # Generate sample config file`,
	Run: runAnalysis,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Output format (console, json)")
	rootCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch mode for development")
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Path to configuration file")
	rootCmd.Flags().BoolVar(&generateConfigFlag, "generate-config", false, "Generate sample configuration file")
	rootCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose logging")
}

func runAnalysis(cmd *cobra.Command, args []string) {
	if generateConfigFlag {
		generateConfig()
		return
	}

	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		color.Red("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if formatFlag != "" {
		cfg.Output.Format = formatFlag
	}
	if verboseFlag {
		cfg.Output.Verbose = true
	}

	logger := newLogger(cfg)

	if len(args) == 0 {
		args = []string{"."}
	}

	pyFiles := collectAll(args, cfg)
	if len(pyFiles) == 0 {
		color.Yellow("⚠️  No Python files found to analyze\n")
		return
	}

	detectorPool := pool.New(pool.FromConfig(cfg.Pool), detectors.Registry(cfg), logger)
	detectorPool.Start()
	defer detectorPool.Shutdown()

	engine := analyzer.New(cfg, detectorPool, logger)
	reportGen := analyzer.NewReportGeneratorWithConfig(cfg)

	if cfg.Output.Format != "json" {
		color.Cyan("🔍 Analyzing %d Python files...\n\n", len(pyFiles))
	}

	runOnce := func(files []string) error {
		result, err := engine.AnalyzeFiles(context.Background(), files)
		if err != nil {
			return err
		}

		report := reportGen.Generate(result)
		if cfg.Output.OutputFile != "" {
			if err := writeReportToFile(report, cfg.Output.OutputFile); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			color.Green("📄 Report saved to: %s\n", cfg.Output.OutputFile)
		} else {
			fmt.Print(report)
		}

		if cfg.Output.Verbose {
			logger.Info("pool metrics", "metrics", detectorPool.Metrics())
		}

		if !watchFlag && result.QualityScore < cfg.Analysis.ScoreThresholds.Fair {
			os.Exit(1)
		}
		return nil
	}

	if err := runOnce(pyFiles); err != nil {
		color.Red("Analysis failed: %v\n", err)
		os.Exit(1)
	}

	if watchFlag {
		watchLoop(cfg, logger, args, runOnce)
	}
}

// watchLoop blocks, re-running analysis on the changed files whenever
// the debounced watcher fires.
func watchLoop(cfg *config.Config, logger *slog.Logger, paths []string, runOnce func([]string) error) {
	fw, err := watcher.NewFileWatcher(cfg, logger)
	if err != nil {
		color.Red("Failed to start watcher: %v\n", err)
		os.Exit(1)
	}
	defer fw.Close()

	handler := func(changed []string) error {
		color.Cyan("\n🔁 Change detected, re-analyzing %d file(s)...\n\n", len(changed))
		return runOnce(changed)
	}

	if err := fw.Watch(paths, handler); err != nil {
		color.Red("Failed to watch paths: %v\n", err)
		os.Exit(1)
	}

	color.Cyan("👀 Watching %d directories for changes (Ctrl+C to stop)\n", len(fw.GetWatchedPaths()))
	select {}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func writeReportToFile(report, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filePath, []byte(report), 0644)
}

func generateConfig() {
	configPath := ".connascence.yml"
	if err := config.GenerateConfig(configPath); err != nil {
		color.Red("Failed to generate config file: %v\n", err)
		os.Exit(1)
	}
	color.Green("✅ Generated sample configuration file: %s\n", configPath)
	color.Cyan("📝 Edit this file to customize analysis behavior\n")
	color.Cyan("🚀 Run 'connascence --config=%s .' to use it\n", configPath)
}

func collectAll(args []string, cfg *config.Config) []string {
	var pyFiles []string
	for _, arg := range args {
		files, err := collectPythonFiles(arg, cfg)
		if err != nil {
			color.Red("Error collecting files from %s: %v\n", arg, err)
			continue
		}
		pyFiles = append(pyFiles, files...)
	}
	return pyFiles
}

// collectPythonFiles recursively finds all .py files in the given path
func collectPythonFiles(path string, cfg *config.Config) ([]string, error) {
	var pyFiles []string

	err := filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			name := info.Name()
			switch name {
			case "venv", ".venv", ".git", "__pycache__", "node_modules", ".tox", ".mypy_cache":
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(filePath, ".py") {
			return nil
		}

		name := info.Name()
		isTest := strings.HasPrefix(name, "test_") || strings.HasSuffix(name, "_test.py")
		if isTest && !cfg.Files.IncludeTests {
			return nil
		}

		if cfg.Files.MaxFileSize > 0 && info.Size() > int64(cfg.Files.MaxFileSize)*1024 {
			return nil
		}

		pyFiles = append(pyFiles, filePath)
		return nil
	})

	return pyFiles, err
}
