package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"alloc-validator/internal/config"
	"alloc-validator/internal/diagnostic"
	"alloc-validator/internal/entity"
	"alloc-validator/internal/persist"
	"alloc-validator/internal/priority"
	"alloc-validator/internal/rules"
	"alloc-validator/internal/schema"
	"alloc-validator/internal/translate"
	"alloc-validator/internal/workspace"
)

// errInvalidData is returned after printing a report that has errors.
var errInvalidData = errors.New("validation errors found")

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// usageArgs marks argument count errors as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{err: err}
		}

		return nil
	}
}

// app is the state shared by every subcommand once the config is loaded.
type app struct {
	configPath string
	dataDir    string
	strict     bool
	output     string

	cfg config.Config
	ws  *workspace.Workspace
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "allocv",
		Short:         "Validate allocation data and maintain allocation rules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.HasParent() || cmd.Name() == "init" {
				return nil
			}

			return a.open(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.ws != nil {
				a.ws.Close()
			}
		},
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "allocv.yaml", "configuration file")
	flags.StringVar(&a.dataDir, "data-dir", "", "override the data directory")
	flags.BoolVar(&a.strict, "strict", false, "reject unparseable numbers instead of storing 0")
	flags.StringVarP(&a.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		a.initCmd(),
		a.validateCmd(),
		a.importCmd(),
		a.fixCmd(),
		a.editCmd(),
		a.rulesCmd(),
		a.prioritiesCmd(),
	)

	return root
}

func (a *app) open(cmd *cobra.Command) error {
	if a.output != "text" && a.output != "json" {
		return usagef("unknown output format %q", a.output)
	}

	cfg, diags, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}

	if a.strict {
		cfg.StrictNumbers = true
	}

	a.cfg = cfg
	logger := cfg.NewLogger(cmd.ErrOrStderr())

	for _, d := range diags.Warnings {
		logger.Warn(d.String())
	}

	backend, err := persist.NewFileBackend(cfg.DataDir)
	if err != nil {
		return err
	}

	opts := []workspace.Option{
		workspace.WithLogger(logger),
		workspace.WithStrictNumbers(cfg.StrictNumbers),
	}

	if cfg.Translator.BaseURL != "" {
		client := translate.NewClient(cfg.Translator.BaseURL, translate.WithTimeout(cfg.Translator.Timeout))
		opts = append(opts,
			workspace.WithRuleTranslator(client),
			workspace.WithEditTranslator(client),
			workspace.WithSuggestionValidator(client),
		)
	}

	a.ws = workspace.New(backend, opts...)

	return a.ws.Load(cmd.Context())
}

func (a *app) print(w io.Writer, v any, text string) error {
	if a.output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(v)
	}

	_, err := fmt.Fprintln(w, text)

	return err
}

func (a *app) printReport(w io.Writer, r diagnostic.Report) error {
	if err := a.print(w, r, r.String()); err != nil {
		return err
	}

	if !r.IsValid() {
		return errInvalidData
	}

	return nil
}

func parseKind(s string) (entity.Kind, error) {
	k, err := entity.ParseKind(s)
	if err != nil {
		return 0, &usageError{err: err}
	}

	return k, nil
}

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteDefault(a.configPath); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "wrote", a.configPath)

			return nil
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate every collection and print the report",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.printReport(cmd.OutOrStdout(), a.ws.Report())
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <clients|workers|tasks> <file|->",
		Short: "Replace a collection with rows read from a YAML or JSON file",
		Long: "Rows are a sequence of mappings keyed by column header. Headers are matched\n" +
			"to canonical fields by name, alias or close spelling.",
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}

			rows, err := readRows(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}

			diags, err := a.ws.Import(cmd.Context(), kind, rows)
			for _, d := range diags.All() {
				fmt.Fprintln(cmd.ErrOrStderr(), d.String())
			}

			if err != nil {
				return err
			}

			return a.printReport(cmd.OutOrStdout(), a.ws.Report())
		},
	}
}

func readRows(stdin io.Reader, path string) ([]schema.Row, error) {
	var (
		data []byte
		err  error
	)

	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}

	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	var rows []schema.Row
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse rows %s: %w", path, err)
	}

	return rows, nil
}

func (a *app) fixCmd() *cobra.Command {
	var sanitize bool

	cmd := &cobra.Command{
		Use:   "fix <kind> <id> <field> [value]",
		Short: "Set a field, or accept the suggestion reported for it when no value is given",
		Args:  usageArgs(cobra.RangeArgs(3, 4)),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}

			id, field := args[1], args[2]

			var e entity.Entity

			switch {
			case len(args) == 3:
				finding, ok := findSuggestion(a.ws.Report(), kind, id, field)
				if !ok {
					return usagef("no suggestion reported for %s/%s %s", kind, id, field)
				}

				e, err = a.ws.AcceptSuggestion(cmd.Context(), finding)
			case sanitize:
				e, err = a.ws.ApplySanitizedSuggestion(cmd.Context(), kind, id, field, args[3])
			default:
				e, err = a.ws.ApplyFix(cmd.Context(), kind, id, field, args[3])
			}

			if err != nil {
				return err
			}

			value, _ := e.Get(field)
			fmt.Fprintf(cmd.ErrOrStderr(), "%s/%s %s = %v\n", kind, id, field, value)

			return a.printReport(cmd.OutOrStdout(), a.ws.Report())
		},
	}

	cmd.Flags().BoolVar(&sanitize, "sanitize", false, "normalize the value with the translation service first")

	return cmd
}

func findSuggestion(r diagnostic.Report, kind entity.Kind, id, field string) (diagnostic.ValidationError, bool) {
	for _, e := range r.For(kind, id) {
		if e.Field == field && e.HasSuggestion() {
			return e, true
		}
	}

	return diagnostic.ValidationError{}, false
}

func (a *app) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <command...>",
		Short: "Translate a free-text edit and apply it",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := <-a.ws.RequestEdit(cmd.Context(), strings.Join(args, " "))
			if res.Err != nil {
				return res.Err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "edited %s/%s\n", res.Value.Kind(), res.Value.DomainID())

			return a.printReport(cmd.OutOrStdout(), a.ws.Report())
		},
	}
}

func (a *app) rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Maintain allocation rules",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List rules in insertion order",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				list := a.ws.Rules().List()

				lines := make([]string, 0, len(list))
				for _, r := range list {
					lines = append(lines, formatRule(r))
				}

				return a.print(cmd.OutOrStdout(), list, strings.Join(lines, "\n"))
			},
		},
		&cobra.Command{
			Use:   "add <CO_RUN|EXCLUSION|SEQUENTIAL> <task-id...>",
			Short: "Add a rule",
			Args:  usageArgs(cobra.MinimumNArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				t, err := rules.ParseType(args[0])
				if err != nil {
					return &usageError{err: err}
				}

				r, err := a.ws.Rules().Add(cmd.Context(), t, rules.Params{TaskIDs: args[1:]})
				if err != nil {
					return err
				}

				return a.print(cmd.OutOrStdout(), r, formatRule(r))
			},
		},
		&cobra.Command{
			Use:   "update <rule-id> <task-id...>",
			Short: "Replace the task ids of a rule",
			Args:  usageArgs(cobra.MinimumNArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := a.ws.Rules().UpdateParams(cmd.Context(), args[0], rules.Params{TaskIDs: args[1:]})
				if err != nil {
					return err
				}

				return a.print(cmd.OutOrStdout(), r, formatRule(r))
			},
		},
		&cobra.Command{
			Use:   "delete <rule-id>",
			Short: "Delete a rule",
			Args:  usageArgs(cobra.ExactArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.ws.Rules().Delete(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "translate <prompt...>",
			Short: "Translate free text into a rule and add it",
			Args:  usageArgs(cobra.MinimumNArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				res := <-a.ws.RequestRule(cmd.Context(), strings.Join(args, " "))
				if res.Err != nil {
					return res.Err
				}

				return a.print(cmd.OutOrStdout(), res.Value, formatRule(res.Value))
			},
		},
	)

	return cmd
}

func formatRule(r rules.Rule) string {
	return fmt.Sprintf("%s %s [%s]", r.ID, r.Type, strings.Join(r.Params.TaskIDs, ", "))
}

func (a *app) prioritiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "priorities",
		Short: "Show or change the prioritization weights",
	}

	var w priority.Weights

	set := &cobra.Command{
		Use:   "set",
		Short: "Replace all three weights",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ws.Weights().Set(cmd.Context(), w); err != nil {
				if errors.Is(err, priority.ErrOutOfRange) {
					return &usageError{err: err}
				}

				return err
			}

			return a.print(cmd.OutOrStdout(), w, w.String())
		},
	}

	set.Flags().IntVar(&w.Fulfill, "fulfill", 0, "fulfillment weight (0-100)")
	set.Flags().IntVar(&w.Workload, "workload", 0, "workload balance weight (0-100)")
	set.Flags().IntVar(&w.Priority, "priority", 0, "client priority weight (0-100)")

	for _, name := range []string{"fulfill", "workload", "priority"} {
		_ = set.MarkFlagRequired(name)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the current weights",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				cur := a.ws.Weights().Get()
				return a.print(cmd.OutOrStdout(), cur, cur.String())
			},
		},
		set,
		&cobra.Command{
			Use:   "preset [name]",
			Short: "Apply a named preset, or list presets",
			Args:  usageArgs(cobra.MaximumNArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					presets := priority.Presets()

					lines := make([]string, 0, len(presets))
					for _, p := range presets {
						lines = append(lines, fmt.Sprintf("%-13s %s", p.Name, p.Weights))
					}

					return a.print(cmd.OutOrStdout(), presets, strings.Join(lines, "\n"))
				}

				applied, err := a.ws.Weights().ApplyPreset(cmd.Context(), args[0])
				if errors.Is(err, priority.ErrUnknownPreset) {
					return &usageError{err: err}
				}

				if err != nil {
					return err
				}

				return a.print(cmd.OutOrStdout(), applied, applied.String())
			},
		},
	)

	return cmd
}
