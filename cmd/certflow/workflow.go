package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rendis/certflow/internal/codec"
	"github.com/rendis/certflow/internal/store"
	"github.com/rendis/certflow/internal/workflow"
	"github.com/rendis/certflow/pkg/schema"
)

var workflowCmd = &cobra.Command{
	Use:     "workflow",
	Aliases: []string{"wf"},
	Short:   "Manage stored workflows",
}

var workflowCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a workflow record, optionally seeding its draft from a file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		file, _ := cmd.Flags().GetString("file")

		params := workflow.CreateParams{Name: name, Description: description}
		if file != "" {
			g, _, err := readGraph(cmd, file, "")
			if err != nil {
				return err
			}
			params.Graph = g
		}

		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		wf, err := svc.Create(cmd.Context(), params)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), wf.ID)
		return nil
	},
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored workflows, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		trigger, _ := cmd.Flags().GetString("trigger")
		limit, _ := cmd.Flags().GetInt("limit")

		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		wfs, err := svc.List(cmd.Context(), store.WorkflowFilter{Trigger: trigger, Limit: limit})
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tTRIGGER\tDRAFT\tUPDATED")
		for _, wf := range wfs {
			trigger := wf.Trigger
			if wf.TriggerCron != "" {
				trigger += " (" + wf.TriggerCron + ")"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", wf.ID, wf.Name, trigger, wf.HasDraft, wf.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var workflowShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a workflow's published content or draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		draft, _ := cmd.Flags().GetBool("draft")
		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := codec.ParseFormat(formatFlag)
		if err != nil {
			return err
		}

		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		wf, err := svc.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		doc := wf.Content
		if draft {
			doc = wf.Draft
		}
		g, err := codec.Deserialize(doc, codec.FormatJSON)
		if err != nil {
			return err
		}
		return writeGraph(cmd, g, format)
	},
}

var workflowImportCmd = &cobra.Command{
	Use:   "import <id> [file]",
	Short: "Save a document as a workflow's draft and report its issues",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := firstArg(args[1:])
		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := inputFormat(formatFlag, path)
		if err != nil {
			return err
		}
		content, err := readInput(cmd, path)
		if err != nil {
			return err
		}

		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		result, err := svc.ImportDraft(cmd.Context(), args[0], content, format)
		if err != nil {
			return err
		}
		names, err := labels(cfg.LocaleFile)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printIssues(out, append(append([]schema.Issue{}, result.Errors...), result.Warnings...), names)
		fmt.Fprintf(out, "draft saved (%d node(s), %d error(s), %d warning(s))\n",
			len(result.Graph.Nodes), len(result.Errors), len(result.Warnings))
		return nil
	},
}

var workflowPublishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Validate a workflow's draft and make it the live content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		names, err := labels(cfg.LocaleFile)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		result, err := svc.Publish(cmd.Context(), args[0])
		if err != nil {
			if issues := blockingIssues(err); len(issues) > 0 {
				printIssues(out, issues, names)
			}
			return err
		}
		printIssues(out, result.Warnings, names)
		fmt.Fprintf(out, "published revision %d (trigger %s)\n", result.Revision, result.Workflow.Trigger)
		return nil
	},
}

var workflowDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a workflow and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		return svc.Delete(cmd.Context(), args[0])
	},
}

var workflowHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List a workflow's published revisions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		revisions, err := svc.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(revisions, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	workflowCreateCmd.Flags().String("name", "", "workflow name")
	workflowCreateCmd.Flags().String("description", "", "workflow description")
	workflowCreateCmd.Flags().String("file", "", "JSON or YAML document to seed the draft")
	_ = workflowCreateCmd.MarkFlagRequired("name")

	workflowListCmd.Flags().String("trigger", "", "only workflows with this trigger: manual or scheduled")
	workflowListCmd.Flags().Int("limit", 0, "maximum number of records")

	workflowShowCmd.Flags().Bool("draft", false, "print the draft instead of the published content")
	workflowShowCmd.Flags().String("format", "yaml", "output format: json or yaml")

	workflowImportCmd.Flags().String("format", "", "input format (default: from extension)")

	workflowCmd.AddCommand(
		workflowCreateCmd,
		workflowListCmd,
		workflowShowCmd,
		workflowImportCmd,
		workflowPublishCmd,
		workflowDeleteCmd,
		workflowHistoryCmd,
	)
	rootCmd.AddCommand(workflowCmd)
}

// blockingIssues extracts the issues carried by a publish VALIDATION_ERROR.
func blockingIssues(err error) []schema.Issue {
	var cerr *schema.CertflowError
	if !errors.As(err, &cerr) || cerr.Code != schema.ErrCodeValidation {
		return nil
	}
	issues, _ := cerr.Details["errors"].([]schema.Issue)
	return issues
}
