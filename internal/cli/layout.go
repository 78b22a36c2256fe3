package cli

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sqltree/pkg/derivation"
	"github.com/matzehuels/sqltree/pkg/errors"
	"github.com/matzehuels/sqltree/pkg/render"
)

// layoutCommand creates the layout command for positioning derivation trees.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output  string
		format  string
		noCache bool
		opts    derivation.Options
	)

	cmd := &cobra.Command{
		Use:   "layout <payload.json>",
		Short: "Lay out a derivation tree returned by the conversion service",
		Long: `Lay out a derivation payload ({algebraRelacional, rootId, nodos}) as a
top-down tree under a synthetic root holding the full algebra expression.

The default output is the positioned tree as JSON. --format dot, svg, pdf or
png renders it instead; pdf and png need -o and the rsvg-convert tool.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			if f.Binary() && !toFile(output) {
				return errors.New(errors.ErrCodeInvalidInput, "%s output needs -o", f)
			}
			return c.runLayout(cmd, args[0], f, c.layoutOptions(cmd, opts), output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", string(render.FormatJSON), "output format: json, dot, svg, pdf, png")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	addLayoutFlags(cmd, &opts)

	return cmd
}

func addLayoutFlags(cmd *cobra.Command, opts *derivation.Options) {
	cmd.Flags().Float64Var(&opts.HGap, "hgap", 0, fmt.Sprintf("horizontal gap between siblings (default %d)", derivation.DefaultHGap))
	cmd.Flags().Float64Var(&opts.VGap, "vgap", 0, fmt.Sprintf("vertical gap between levels (default %d)", derivation.DefaultVGap))
	cmd.Flags().Float64Var(&opts.CenterX, "center-x", 0, "x coordinate rows are centred on")
}

// layoutOptions merges flags set on cmd over the configured layout.
func (c *CLI) layoutOptions(cmd *cobra.Command, flags derivation.Options) derivation.Options {
	opts := c.config().Layout
	if cmd.Flags().Changed("hgap") {
		opts.HGap = flags.HGap
	}
	if cmd.Flags().Changed("vgap") {
		opts.VGap = flags.VGap
	}
	if cmd.Flags().Changed("center-x") {
		opts.CenterX = flags.CenterX
	}
	return opts
}

func (c *CLI) runLayout(cmd *cobra.Command, input string, f render.Format, opts derivation.Options, output string, noCache bool) error {
	ctx := cmd.Context()
	data, err := readInput(cmd, input)
	if err != nil {
		return err
	}
	p, err := derivation.ParsePayload(data)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, runnerOpts{noCache: noCache})
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer closeRunner(runner)

	l, hit, err := runner.LayoutWithCacheInfo(ctx, p, opts)
	if err != nil {
		return fmt.Errorf("compute layout: %w", err)
	}

	var out []byte
	if f == render.FormatJSON {
		var buf bytes.Buffer
		if err := l.WriteJSON(&buf); err != nil {
			return err
		}
		out = buf.Bytes()
	} else {
		artifacts, err := runner.Render(ctx, l, []string{string(f)})
		if err != nil {
			return fmt.Errorf("render %s: %w", f, err)
		}
		out = artifacts[string(f)]
	}
	if err := writeOutput(cmd, output, out); err != nil {
		return err
	}

	if toFile(output) {
		printSuccess("Layout complete")
		printFile(output)
		printCacheStats(hit, countLabel(len(p.Nodos), "step"), countLabel(len(l.Nodes), "node"))
	}
	return nil
}

// treeCommand creates the tree command, which prints a derivation as an
// indented tree.
func (c *CLI) treeCommand() *cobra.Command {
	var showSQL bool

	cmd := &cobra.Command{
		Use:   "tree <payload.json>",
		Short: "Print a derivation tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			p, err := derivation.ParsePayload(data)
			if err != nil {
				return err
			}
			l := derivation.Build(p, c.config().Layout)
			fmt.Fprintln(cmd.OutOrStdout(), derivationTree(l, showSQL))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSQL, "sql", false, "show the SQL fragment of each step")
	return cmd
}

var (
	treeRootStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	treeFaseStyle = lipgloss.NewStyle().Foreground(colorGreen)
	treeSQLStyle  = lipgloss.NewStyle().Foreground(colorGray)
	treeEnumStyle = lipgloss.NewStyle().Foreground(colorDim).MarginRight(1)
)

// derivationTree converts a layout into a lipgloss tree, walking from the
// virtual root in edge order.
func derivationTree(l derivation.Layout, showSQL bool) *tree.Tree {
	var (
		root  *tree.Tree
		stack []*tree.Tree
	)
	l.Walk(func(n derivation.Node, depth int) {
		t := tree.Root(nodeLabel(n, showSQL))
		if depth == 0 {
			root = t.EnumeratorStyle(treeEnumStyle)
			stack = []*tree.Tree{root}
			return
		}
		stack = stack[:depth]
		stack[depth-1].Child(t)
		stack = append(stack, t)
	})
	if root == nil {
		return tree.New()
	}
	return root
}

func nodeLabel(n derivation.Node, showSQL bool) string {
	d := n.Data
	if d.IsRoot {
		return treeRootStyle.Render(firstLine(d.ARHeader))
	}
	label := treeFaseStyle.Render(d.Fase) + " " + firstLine(d.ARHeader)
	if showSQL && d.SQL != "" {
		label += "\n" + treeSQLStyle.Render(strings.TrimSpace(d.SQL))
	}
	return strings.TrimSpace(label)
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	return s
}
