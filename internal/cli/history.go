package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sqltree/pkg/errors"
	"github.com/matzehuels/sqltree/pkg/history"
	"github.com/matzehuels/sqltree/pkg/schema"
)

// historyCommand creates the history command group.
func (c *CLI) historyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the stored schemas",
		Long: `Schemas are stored after the conversion service accepts them, keyed by a
hash of their content. Ids may be abbreviated to any unique prefix.`,
	}

	cmd.AddCommand(c.historyListCommand())
	cmd.AddCommand(c.historyShowCommand())
	cmd.AddCommand(c.historyDeleteCommand())
	cmd.AddCommand(c.historyBrowseCommand())
	cmd.AddCommand(c.historyFlagsCommand())

	return cmd
}

// withHistory opens the configured history for the duration of fn.
func (c *CLI) withHistory(ctx context.Context, fn func(*history.History) error) error {
	h, err := openHistory(ctx, c.config())
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer h.Close()
	return fn(h)
}

func (c *CLI) historyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withHistory(cmd.Context(), func(h *history.History) error {
				entries, err := h.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					printInfo("History is empty")
					return nil
				}
				out := cmd.OutOrStdout()
				for _, e := range entries {
					fmt.Fprintf(out, "%s  %-9s  %s\n",
						StyleHighlight.Render(shortID(e.ID)),
						countLabel(len(e.Schema.Tables), "table"),
						truncate(oneLine(e.Schema.SQLQuery), 60))
				}
				return nil
			})
		},
	}
}

func (c *CLI) historyShowCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withHistory(cmd.Context(), func(h *history.History) error {
				e, err := findEntry(cmd.Context(), h, args[0])
				if err != nil {
					return err
				}
				var buf strings.Builder
				if err := e.Schema.WriteJSON(&buf); err != nil {
					return err
				}
				return writeOutput(cmd, output, []byte(buf.String()))
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func (c *CLI) historyDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a stored schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withHistory(cmd.Context(), func(h *history.History) error {
				e, err := findEntry(cmd.Context(), h, args[0])
				if err != nil {
					return err
				}
				if _, err := h.Delete(cmd.Context(), e.ID); err != nil {
					return err
				}
				printSuccess("Deleted %s", shortID(e.ID))
				return nil
			})
		},
	}
}

func (c *CLI) historyBrowseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Pick a stored schema interactively and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withHistory(cmd.Context(), func(h *history.History) error {
				entries, err := h.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					printInfo("History is empty")
					return nil
				}

				prog := tea.NewProgram(NewHistoryListModel(entries), tea.WithContext(cmd.Context()))
				final, err := prog.Run()
				if err != nil {
					return fmt.Errorf("browse: %w", err)
				}
				m := final.(HistoryListModel)
				if m.Selected == nil {
					return nil
				}
				var buf strings.Builder
				if err := m.Selected.Schema.WriteJSON(&buf); err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), buf.String())
				return err
			})
		},
	}
}

func (c *CLI) historyFlagsCommand() *cobra.Command {
	var schemaHelp, codeHelp bool

	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Show or set the instruction-panel flags",
		Long: `Show the flags stored next to the schemas, or set them with
--schema-instructions and --code-instructions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withHistory(cmd.Context(), func(h *history.History) error {
				f, err := h.Flags(cmd.Context())
				if err != nil {
					return err
				}
				changed := false
				if cmd.Flags().Changed("schema-instructions") {
					f.OpenSchemaInstructions, changed = schemaHelp, true
				}
				if cmd.Flags().Changed("code-instructions") {
					f.OpenCodeInstructions, changed = codeHelp, true
				}
				if changed {
					if err := h.SetFlags(cmd.Context(), f); err != nil {
						return err
					}
					printSuccess("Flags updated")
				}
				printKeyValue("schema", fmt.Sprint(f.OpenSchemaInstructions))
				printKeyValue("code", fmt.Sprint(f.OpenCodeInstructions))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&schemaHelp, "schema-instructions", true, "open the schema instructions panel")
	cmd.Flags().BoolVar(&codeHelp, "code-instructions", true, "open the code instructions panel")
	return cmd
}

// findEntry resolves an id or unique id prefix.
func findEntry(ctx context.Context, h *history.History, prefix string) (history.Entry, error) {
	if prefix == "" {
		return history.Entry{}, errors.New(errors.ErrCodeInvalidInput, "empty id")
	}
	entries, err := h.List(ctx)
	if err != nil {
		return history.Entry{}, err
	}
	var matches []history.Entry
	for _, e := range entries {
		if e.ID == prefix {
			return e, nil
		}
		if strings.HasPrefix(e.ID, prefix) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return history.Entry{}, errors.New(errors.ErrCodeNotFound, "no schema %s in history", prefix)
	case 1:
		return matches[0], nil
	default:
		return history.Entry{}, errors.New(errors.ErrCodeInvalidInput, "id prefix %s is ambiguous (%d matches)", prefix, len(matches))
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// tableNames lists the table names of a schema, for display.
func tableNames(es schema.ExportedSchema) string {
	names := make([]string, len(es.Tables))
	for i, t := range es.Tables {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}
