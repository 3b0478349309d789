package cli

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/0xTanzim/rushtpl"
)

func newInspectCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the parsed node tree and metadata of a template file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading template: %w", err)
			}
			parse := rushtpl.Parse
			if g.debug {
				parse = rushtpl.ParseDebug
			}
			pr := parse(string(src))
			out, err := json.MarshalIndent(map[string]any{
				"nodes":    describeNodes(pr.Nodes),
				"metadata": pr.Metadata,
			}, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}

// describeNodes tags each node with its type so the tree reads unambiguously
// as JSON.
func describeNodes(nodes []rushtpl.Node) []map[string]any {
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		var d map[string]any
		switch n := n.(type) {
		case rushtpl.Text:
			d = map[string]any{"type": "text", "content": n.Content}
		case rushtpl.Variable:
			d = map[string]any{"type": "variable", "path": n.Path, "escape": n.Escape}
			if len(n.Filters) > 0 {
				d["filters"] = n.Filters
			}
		case rushtpl.Helper:
			d = map[string]any{"type": "helper", "name": n.Name, "args": n.Args, "escape": n.Escape}
		case rushtpl.Block:
			d = map[string]any{"type": "block", "kind": n.Kind.String(), "expr": n.Expr, "children": describeNodes(n.Children)}
			if n.Kind == rushtpl.BlockEach {
				d["alias"] = n.Alias
			}
		case rushtpl.Component:
			d = map[string]any{"type": "component", "name": n.Name, "props": n.Props, "children": describeNodes(n.Children)}
		case rushtpl.Partial:
			d = map[string]any{"type": "partial", "name": n.Name, "props": n.Props}
		case rushtpl.Layout:
			d = map[string]any{"type": "layout", "props": n.Props, "children": describeNodes(n.Children)}
		default:
			continue
		}
		out = append(out, d)
	}
	return out
}
