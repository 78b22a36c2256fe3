package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sqltree/pkg/errors"
	"github.com/matzehuels/sqltree/pkg/schema"
)

const (
	exportJSON = "json"
	exportYAML = "yaml"
)

// exportCommand creates the export command: editor state → exported schema.
func (c *CLI) exportCommand() *cobra.Command {
	var (
		output  string
		format  string
		sqlFile string
		query   string
	)

	cmd := &cobra.Command{
		Use:   "export <state.json>",
		Short: "Export an editor state as a schema document",
		Long: `Export an editor state ({nodes, edges}) as the schema document sent to the
conversion service. Tables and columns are checked first: empty names, names
over the length limits and tables without columns are reported and nothing
is written.

The SQL query travels with the schema; give it with --sql (file) or --query.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != exportJSON && format != exportYAML {
				return errors.New(errors.ErrCodeInvalidFormat, "unknown export format %q (want json or yaml)", format)
			}
			if sqlFile != "" {
				data, err := readInput(cmd, sqlFile)
				if err != nil {
					return err
				}
				query = string(data)
			}
			return c.runExport(cmd, args[0], query, format, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", exportJSON, "output format: json, yaml")
	cmd.Flags().StringVar(&sqlFile, "sql", "", "file holding the SQL query")
	cmd.Flags().StringVarP(&query, "query", "q", "", "SQL query")
	cmd.MarkFlagsMutuallyExclusive("sql", "query")

	return cmd
}

func (c *CLI) runExport(cmd *cobra.Command, input, query, format, output string) error {
	data, err := readInput(cmd, input)
	if err != nil {
		return err
	}
	st, err := schema.ParseState(data)
	if err != nil {
		return err
	}

	es, err := schema.ExportValidated(st, query)
	if err != nil {
		for _, msg := range errors.Messages(err) {
			printError("%s", msg)
		}
		return err
	}

	var buf bytes.Buffer
	if format == exportYAML {
		err = es.WriteYAML(&buf)
	} else {
		err = es.WriteJSON(&buf)
	}
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	if err := writeOutput(cmd, output, buf.Bytes()); err != nil {
		return err
	}

	if toFile(output) {
		printSuccess("Schema exported")
		printFile(output)
		printStats(countLabel(len(es.Tables), "table"), countLabel(foreignKeys(es), "foreign key"))
		printNewline()
		printNextStep("Validate", appName+" validate "+output)
	}
	return nil
}

// importCommand creates the import command: exported schema → editor graph.
func (c *CLI) importCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "import <schema.json>",
		Short: "Rebuild an editor graph from a schema document",
		Long: `Rebuild the editor graph ({nodes, edges, code}) from an exported schema.
Tables and columns get fresh ids and foreign keys are reconnected by name.
References to missing tables or columns are dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			es, err := schema.ParseJSON(data)
			if err != nil {
				return err
			}
			im := schema.Import(es, nil)

			out, err := json.MarshalIndent(im, "", "  ")
			if err != nil {
				return fmt.Errorf("encode graph: %w", err)
			}
			if err := writeOutput(cmd, output, append(out, '\n')); err != nil {
				return err
			}
			if toFile(output) {
				printSuccess("Schema imported")
				printFile(output)
				printStats(countLabel(len(im.Nodes), "table"), countLabel(len(im.Edges), "edge"))
			}
			if dropped := foreignKeys(es) - len(im.Edges); dropped > 0 {
				loggerFromContext(cmd.Context()).Warn("foreign keys dropped", "count", dropped)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

// connectCommand creates the connect command, which adds a foreign key to a
// stored editor state.
func (c *CLI) connectCommand() *cobra.Command {
	var (
		output  string
		inPlace bool
		source  string
		target  string
	)

	cmd := &cobra.Command{
		Use:   "connect <state.json> --source node:handle --target node:handle",
		Short: "Add a foreign key between two columns of an editor state",
		Long: `Add a foreign key between two columns, the way dragging a connector in the
editor does. Endpoints are written node:handle, where the handle is
<field>-in for the referencing column and <field>-out for the referenced
primary key, e.g.

  sqltree connect state.json --source t_1:f_3-in --target t_2:f_1-out

The ends may be given in either order. Two connectors of the same kind are
ignored; a target that is not a primary key is an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := parseConnection(source, target)
			if err != nil {
				return err
			}
			if inPlace {
				output = args[0]
			}
			return c.runConnect(cmd, args[0], conn, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVarP(&inPlace, "in-place", "i", false, "overwrite the input file")
	cmd.Flags().StringVar(&source, "source", "", "source endpoint node:handle")
	cmd.Flags().StringVar(&target, "target", "", "target endpoint node:handle")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")
	cmd.MarkFlagsMutuallyExclusive("output", "in-place")

	return cmd
}

func (c *CLI) runConnect(cmd *cobra.Command, input string, conn schema.Connection, output string) error {
	data, err := readInput(cmd, input)
	if err != nil {
		return err
	}
	st, err := schema.ParseState(data)
	if err != nil {
		return err
	}

	if _, _, ok := schema.ResolveConnection(conn); !ok {
		printWarning("Connection ignored: one end must be a foreign key (-in), the other a primary key (-out)")
	}
	next, err := st.Connect(conn)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := writeOutput(cmd, output, append(out, '\n')); err != nil {
		return err
	}
	if toFile(output) && len(next.Edges) > len(st.Edges) {
		e := next.Edges[len(next.Edges)-1]
		printSuccess("Connected %s → %s", e.Source, e.Target)
		printDetail("Edge: %s", e.ID)
		printFile(output)
	}
	return nil
}

// parseConnection parses two node:handle endpoints.
func parseConnection(source, target string) (schema.Connection, error) {
	src, err := parseEndpoint(source)
	if err != nil {
		return schema.Connection{}, err
	}
	dst, err := parseEndpoint(target)
	if err != nil {
		return schema.Connection{}, err
	}
	return schema.Connection{Source: src, Target: dst}, nil
}

func parseEndpoint(s string) (schema.Endpoint, error) {
	node, handle, ok := strings.Cut(s, ":")
	if !ok || node == "" || handle == "" {
		return schema.Endpoint{}, errors.New(errors.ErrCodeInvalidConnection, "endpoint %q: want node:handle", s)
	}
	h, err := schema.ParseHandle(handle)
	if err != nil {
		return schema.Endpoint{}, err
	}
	return schema.Endpoint{NodeID: node, Handle: h}, nil
}

func foreignKeys(es schema.ExportedSchema) int {
	n := 0
	for _, t := range es.Tables {
		for _, col := range t.Columns {
			if col.ForeignKey != nil {
				n++
			}
		}
	}
	return n
}

// countLabel formats a count with a naive plural, e.g. "3 tables".
func countLabel(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
