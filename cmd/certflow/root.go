package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rendis/certflow/internal/codec"
	"github.com/rendis/certflow/internal/expressions"
	"github.com/rendis/certflow/internal/graph"
	"github.com/rendis/certflow/internal/logging"
	"github.com/rendis/certflow/internal/store"
	"github.com/rendis/certflow/internal/validation"
	"github.com/rendis/certflow/internal/workflow"
	"github.com/rendis/certflow/pkg/schema"
)

var (
	cfg    Config
	logger = logging.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "certflow",
	Short: "Certflow edits and checks certificate automation workflows",
	Long: `Certflow builds, validates, converts and publishes certificate automation
workflow graphs: start, delay, condition and try/catch nodes around the
apply, upload, monitor, deploy and notify steps.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = loadConfig()
		cfg.applyFlags(cmd)
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = logging.New(level, cmd.ErrOrStderr())
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("db-path", "", "workflow database path (default: ~/.certflow/certflow.db)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Int("issue-limit", schema.DefaultIssueLimit, "maximum issues to print (0 for all)")
	flags.String("engine", "", "condition engine: expr or cel")
	flags.String("locale-file", "", "YAML file with node names and issue messages")
}

// --- Shared wiring ---

func newValidator() (*validation.WorkflowValidator, error) {
	return validation.NewWorkflowValidator()
}

func newFactory() (*graph.Factory, error) {
	names, err := labels(cfg.LocaleFile)
	if err != nil {
		return nil, err
	}
	return graph.NewFactory(names), nil
}

func newEngine() (expressions.Engine, error) {
	return expressions.NewEngine(cfg.Engine)
}

// openService opens the configured database, applies migrations and returns
// a workflow service with a close func.
func openService(ctx context.Context) (*workflow.Service, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}
	s, err := store.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, nil, err
	}
	v, err := newValidator()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	closeFn := func() {
		if err := s.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}
	return workflow.NewService(s, v, logger), closeFn, nil
}

// --- Input helpers ---

// readInput reads path, or stdin when path is empty or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// inputFormat resolves the document format from the flag value or the file extension.
func inputFormat(flag, path string) (codec.Format, error) {
	if flag != "" {
		return codec.ParseFormat(flag)
	}
	if path == "" || path == "-" {
		return codec.FormatJSON, nil
	}
	return codec.FormatFromPath(path)
}

// readGraph reads and decodes a graph document. Blank input yields an empty graph.
func readGraph(cmd *cobra.Command, path, formatFlag string) (*schema.Graph, codec.Format, error) {
	format, err := inputFormat(formatFlag, path)
	if err != nil {
		return nil, "", err
	}
	content, err := readInput(cmd, path)
	if err != nil {
		return nil, "", err
	}
	g, err := codec.Deserialize(content, format)
	if err != nil {
		return nil, "", err
	}
	if g == nil {
		g = &schema.Graph{}
	}
	return g, format, nil
}

// printIssues writes one line per issue, capped at the configured limit.
func printIssues(w io.Writer, issues []schema.Issue, names schema.Lookup) {
	shown := schema.TruncateIssues(issues, cfg.IssueLimit)
	for _, issue := range shown {
		fmt.Fprintf(w, "%s\t%s\t%s\n", issue.Severity, issue.Path, issue.Message(names))
	}
	if rest := len(issues) - len(shown); rest > 0 {
		fmt.Fprintf(w, "... and %d more\n", rest)
	}
}
