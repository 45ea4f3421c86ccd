// Package cli wires the analyzer into a command line tool for batch
// workspace checks and symbol queries.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"br-analyzer/src/config"
	"br-analyzer/src/internal/common"
	versionpkg "br-analyzer/src/internal/version"
	"br-analyzer/src/server"
)

const (
	CmdCheck   = "check"
	CmdSymbols = "symbols"
	CmdVersion = "version"
	FlagConfig = "config"
	FlagOut    = "out"
)

var (
	configPath string
	outPath    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "br-analyzer",
	Short: "br-analyzer - static analysis for Business Rules! source trees",
	Long: `br-analyzer indexes a workspace of BR source files (.brs, .wbs) and
answers the questions an editor would ask: diagnostics, references,
definitions, renames and symbol listings.

QUICK START:
  br-analyzer check .                      # Analyze the current directory
  br-analyzer check src --out report.csv   # Write findings as CSV
  br-analyzer symbols . fnCalc             # List functions by prefix

Use 'br-analyzer <command> --help' for detailed command information.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	checkCmd = &cobra.Command{
		Use:   CmdCheck + " [dir]",
		Short: "Analyze a workspace and report diagnostics",
		Long: `Scan a directory tree for BR source files, index every file and run
the diagnostic rules over the result.

A summary goes to the terminal. With --out the full findings are
written as a CSV report with one row per finding.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheckCmd,
	}

	symbolsCmd = &cobra.Command{
		Use:   CmdSymbols + " [dir] [prefix]",
		Short: "List workspace function definitions",
		Long: `Scan a directory tree and list every user function definition,
optionally restricted to names starting with a prefix.`,
		Args: cobra.MaximumNArgs(2),
		RunE: runSymbolsCmd,
	}

	versionCmd = &cobra.Command{
		Use:   CmdVersion,
		Short: "Show version information",
		RunE:  runVersionCmd,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, FlagConfig, "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	checkCmd.Flags().StringVar(&outPath, FlagOut, "", "write findings to a CSV file")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.GetDefaultConfig(), nil
	}
	return config.LoadConfig(configPath)
}

func setupLogging() {
	if verbose {
		common.CLILogger.SetLevel(common.LogDebug)
		common.ScanLogger.SetLevel(common.LogDebug)
		common.AnalyzerLogger.SetLevel(common.LogDebug)
	}
}

// signalContext returns a context cancelled by SIGINT or SIGTERM, so
// a long scan can be interrupted cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func rootArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func runCheckCmd(cmd *cobra.Command, args []string) error {
	setupLogging()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	engine := server.NewEngine(cfg)
	report, err := engine.ScanWorkspace(ctx, rootArg(args))
	if err != nil {
		return err
	}

	fmt.Printf("Scanned %d file(s), %d indexed\n", len(report.Scan.Files), report.Scan.Indexed)
	for _, fe := range report.Scan.FileErrors {
		fmt.Printf("  failed: %s: %v\n", fe.Path, fe.Cause)
	}
	fmt.Printf("%d finding(s) in %d file(s)\n", report.Total(), len(report.Diagnostics))

	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		if err := engine.WriteReportCSV(f, report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", outPath)
	}

	if report.Total() > 0 {
		return fmt.Errorf("%d finding(s)", report.Total())
	}
	return nil
}

func runSymbolsCmd(cmd *cobra.Command, args []string) error {
	setupLogging()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	engine := server.NewEngine(cfg)
	if _, err := engine.ScanWorkspace(ctx, rootArg(args)); err != nil {
		return err
	}
	prefix := ""
	if len(args) > 1 {
		prefix = args[1]
	}
	for _, sym := range engine.ListWorkspaceSymbols(prefix) {
		fmt.Printf("%s\t%s:%d\n", sym.Name,
			common.URIToFilePath(sym.Location.URI),
			sym.Location.Range.Start.Line+1)
	}
	return nil
}

func runVersionCmd(cmd *cobra.Command, args []string) error {
	if verbose {
		fmt.Println(versionpkg.GetFullVersionInfo())
	} else {
		fmt.Println(versionpkg.GetVersion())
	}
	return nil
}
