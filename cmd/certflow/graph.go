package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rendis/certflow/internal/codec"
	"github.com/rendis/certflow/internal/expressions"
	"github.com/rendis/certflow/internal/graph"
	"github.com/rendis/certflow/pkg/schema"
)

var convertCmd = &cobra.Command{
	Use:   "convert [file]",
	Short: "Convert a workflow document between JSON and YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := firstArg(args)
		from, _ := cmd.Flags().GetString("from")
		toFlag, _ := cmd.Flags().GetString("to")

		g, _, err := readGraph(cmd, path, from)
		if err != nil {
			return err
		}
		to, err := codec.ParseFormat(toFlag)
		if err != nil {
			return err
		}
		return writeGraph(cmd, g, to)
	},
}

var duplicateCmd = &cobra.Command{
	Use:   "duplicate [file]",
	Short: "Copy workflow nodes with fresh ids",
	Long: `Duplicates every top-level node of the document, or only the subtree named by
--node. References between copied nodes follow the copies.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		nodeID, _ := cmd.Flags().GetString("node")
		suffix, _ := cmd.Flags().GetBool("copy-suffix")

		g, format, err := readGraph(cmd, firstArg(args), formatFlag)
		if err != nil {
			return err
		}
		source := g.Nodes
		if nodeID != "" {
			n := graph.Find(g.Nodes, nodeID)
			if n == nil {
				return schema.NewErrorf(schema.ErrCodeNotFound, "node %q not found", nodeID)
			}
			source = []*schema.Node{n}
		}
		copies := graph.Duplicate(source, graph.DuplicateOptions{WithCopySuffix: suffix})
		return writeGraph(cmd, &schema.Graph{Nodes: copies}, format)
	},
}

var newCmd = &cobra.Command{
	Use:   "new <type>",
	Short: "Print a new node with default name, config and children",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := codec.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		f, err := newFactory()
		if err != nil {
			return err
		}
		n, err := f.CreateNode(schema.NodeType(args[0]))
		if err != nil {
			return err
		}
		return writeGraph(cmd, &schema.Graph{Nodes: []*schema.Node{n}}, format)
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval <expression-file>",
	Short: "Evaluate a branch condition against node outputs",
	Long: `Reads a condition expression (JSON or YAML) and evaluates it against the
outputs file, a mapping of node id to output name to value.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputsPath, _ := cmd.Flags().GetString("outputs")

		raw, err := readDocument(cmd, args[0])
		if err != nil {
			return err
		}
		ex, err := schema.DecodeExpr(raw)
		if err != nil {
			return err
		}

		outputs := expressions.Outputs{}
		if outputsPath != "" {
			doc, err := readDocument(cmd, outputsPath)
			if err != nil {
				return err
			}
			if outputs, err = toOutputs(doc); err != nil {
				return err
			}
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		result, err := engine.Evaluate(cmd.Context(), ex, outputs)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result)
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <jq> [file]",
	Short: "Run a jq query over a workflow document",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		g, _, err := readGraph(cmd, firstArg(args[1:]), formatFlag)
		if err != nil {
			return err
		}
		results, err := expressions.NewGoJQEngine().QueryGraph(cmd.Context(), args[0], g)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, r := range results {
			data, err := json.Marshal(r)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
		}
		return nil
	},
}

func init() {
	convertCmd.Flags().String("from", "", "input format (default: from extension)")
	convertCmd.Flags().String("to", "yaml", "output format: json or yaml")

	duplicateCmd.Flags().String("format", "", "input format (default: from extension)")
	duplicateCmd.Flags().String("node", "", "duplicate only this node and its subtree")
	duplicateCmd.Flags().Bool("copy-suffix", false, "append -copy to the names of the copies")

	newCmd.Flags().String("format", "json", "output format: json or yaml")

	evalCmd.Flags().String("outputs", "", "JSON or YAML file with node outputs")

	queryCmd.Flags().String("format", "", "input format (default: from extension)")

	rootCmd.AddCommand(convertCmd, duplicateCmd, newCmd, evalCmd, queryCmd)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func writeGraph(cmd *cobra.Command, g *schema.Graph, format codec.Format) error {
	data, err := codec.Serialize(g, format)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// readDocument decodes a JSON or YAML file into a generic tree. YAML is a
// superset of JSON, so both go through the YAML decoder.
func readDocument(cmd *cobra.Command, path string) (any, error) {
	content, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidContent, "parse %s: %s", path, err.Error()).WithCause(err)
	}
	return doc, nil
}

func toOutputs(doc any) (expressions.Outputs, error) {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, schema.NewError(schema.ErrCodeInvalidArgument, "outputs must be a mapping of node id to outputs")
	}
	outputs := make(expressions.Outputs, len(m))
	for id, v := range m {
		inner, ok := v.(map[string]any)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeInvalidArgument, "outputs of node %q must be a mapping", id)
		}
		outputs[id] = inner
	}
	return outputs, nil
}
