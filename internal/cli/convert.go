package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sqltree/pkg/derivation"
	"github.com/matzehuels/sqltree/pkg/errors"
	"github.com/matzehuels/sqltree/pkg/pipeline"
	"github.com/matzehuels/sqltree/pkg/render"
	"github.com/matzehuels/sqltree/pkg/schema"
)

// validateCommand creates the validate command, which asks the conversion
// service whether a schema's query is valid.
func (c *CLI) validateCommand() *cobra.Command {
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "validate <schema.json>",
		Short: "Check a schema's SQL query with the conversion service",
		Long: `Send an exported schema to the conversion service's syntax check. A valid
schema is added to the history unless --no-history is given; the errors of
an invalid one are listed and the command exits non-zero.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(cmd, args[0], noHistory)
		},
	}

	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the schema")
	return cmd
}

func (c *CLI) runValidate(cmd *cobra.Command, input string, noHistory bool) error {
	ctx := cmd.Context()
	es, err := readSchema(cmd, input)
	if err != nil {
		return err
	}
	if err := schema.ValidateExported(es); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, runnerOpts{history: !noHistory})
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer closeRunner(runner)

	spinner := newSpinnerWithContext(ctx, "Validating query...")
	spinner.Start()
	v, err := runner.Service.Validate(ctx, es)
	spinner.Stop()
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if !v.OK {
		printError("%s", v.Message)
		for _, msg := range v.Errors {
			printDetail("%s", msg)
		}
		return errors.New(errors.ErrCodeSchemaRejected, "%s", v.Message)
	}
	printSuccess("%s", v.Message)

	if runner.History != nil {
		id, added, err := runner.History.Add(ctx, es)
		if err != nil {
			return fmt.Errorf("record history: %w", err)
		}
		if added {
			printDetail("Saved to history as %s", shortID(id))
		} else {
			printDetail("Already in history as %s", shortID(id))
		}
	}
	return nil
}

type convertOpts struct {
	outDir         string
	formats        string
	fromState      bool
	query          string
	refresh        bool
	noCache        bool
	noHistory      bool
	skipValidation bool
	layout         derivation.Options
}

// convertCommand creates the convert command, which runs the whole pipeline.
func (c *CLI) convertCommand() *cobra.Command {
	var opts convertOpts

	cmd := &cobra.Command{
		Use:   "convert <schema.json>",
		Short: "Validate, convert and lay out a query's derivation tree",
		Long: `Run the full pipeline on a schema document: validate the query, record the
schema in the history, fetch the relational-algebra derivation from the
conversion service, lay it out and write the requested formats.

With --state the input is an editor state, exported (and checked) first.
Outputs are written to -o (default: the current directory) as
<input>.<format>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.layout = c.layoutOptions(cmd, opts.layout)
			return c.runConvert(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "output", "o", ".", "output directory")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): json (default), dot, svg, pdf, png (comma-separated)")
	cmd.Flags().BoolVar(&opts.fromState, "state", false, "input is an editor state")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "SQL query (replaces the schema's)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cached conversion results")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "do not record the schema")
	cmd.Flags().BoolVar(&opts.skipValidation, "skip-validation", false, "go straight to the conversion")
	addLayoutFlags(cmd, &opts.layout)

	return cmd
}

func (c *CLI) runConvert(cmd *cobra.Command, input string, o convertOpts) error {
	ctx := cmd.Context()
	data, err := readInput(cmd, input)
	if err != nil {
		return err
	}

	popts := pipeline.Options{
		SQL:            o.query,
		Layout:         o.layout,
		Formats:        parseFormats(o.formats),
		SkipValidation: o.skipValidation,
		SkipHistory:    o.noHistory,
		Refresh:        o.refresh,
		Logger:         loggerFromContext(ctx),
	}
	if o.fromState {
		st, err := schema.ParseState(data)
		if err != nil {
			return err
		}
		popts.State = &st
	} else {
		es, err := schema.ParseJSON(data)
		if err != nil {
			return err
		}
		popts.Schema = &es
	}
	if err := popts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, runnerOpts{noCache: o.noCache, history: !o.noHistory})
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer closeRunner(runner)

	prog := newProgress(c.Logger)
	result, err := c.executeWithSpinner(ctx, runner, popts)
	if err != nil {
		if result != nil && !result.Validation.OK && len(result.Validation.Errors) > 0 {
			printError("%s", result.Validation.Message)
			for _, msg := range result.Validation.Errors {
				printDetail("%s", msg)
			}
		}
		return err
	}
	prog.done("Pipeline finished")

	printSuccess("%s", orDefault(result.Validation.Message, "Converted"))
	for _, name := range popts.Formats {
		f, _ := render.ParseFormat(name)
		path := filepath.Join(o.outDir, baseName(input)+"."+f.Ext())
		if err := writeOutput(cmd, path, result.Artifacts[name]); err != nil {
			return err
		}
		printFile(path)
	}
	printCacheStats(result.CacheInfo.LayoutHit,
		countLabel(result.Stats.TableCount, "table"),
		countLabel(result.Stats.StepCount, "step"),
		countLabel(result.Stats.NodeCount, "node"))
	if result.HistoryAdded {
		printDetail("Saved to history as %s", shortID(result.SchemaID))
	}
	return nil
}

func (c *CLI) executeWithSpinner(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) (*pipeline.Result, error) {
	spinner := newSpinnerWithContext(ctx, "Converting query...")
	spinner.Start()
	defer spinner.Stop()
	return runner.Execute(ctx, opts)
}

// readSchema reads an exported schema document.
func readSchema(cmd *cobra.Command, path string) (schema.ExportedSchema, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return schema.ExportedSchema{}, err
	}
	return schema.ParseJSON(data)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
