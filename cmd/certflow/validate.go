package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/certflow/internal/codec"
	"github.com/rendis/certflow/pkg/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a workflow graph document",
	Long: `Decodes a JSON or YAML workflow document and reports structural errors and
advisory warnings. Reads stdin when no file is given. Exits non-zero when the
graph has errors.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().String("format", "", "input format: json or yaml (default: from extension)")
	validateCmd.Flags().Bool("json", false, "print the full result as JSON")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	formatFlag, _ := cmd.Flags().GetString("format")
	asJSON, _ := cmd.Flags().GetBool("json")

	format, err := inputFormat(formatFlag, path)
	if err != nil {
		return err
	}
	content, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	v, err := newValidator()
	if err != nil {
		return err
	}
	result, err := codec.Import(content, format, v)
	if err != nil {
		return err
	}
	logger.Debug("validated", "errors", len(result.Errors), "warnings", len(result.Warnings))

	out := cmd.OutOrStdout()
	if asJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		names, err := labels(cfg.LocaleFile)
		if err != nil {
			return err
		}
		printIssues(out, append(append([]schema.Issue{}, result.Errors...), result.Warnings...), names)
		if result.Valid() {
			fmt.Fprintln(out, "graph is valid")
		}
	}

	if !result.Valid() {
		return fmt.Errorf("graph has %d error(s)", len(result.Errors))
	}
	return nil
}
