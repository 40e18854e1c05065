package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	formservice "intake/internal/form/service"
	"intake/internal/form/store/catalog"
	"intake/internal/visibility"
	id "intake/pkg/domain"
)

var errCatalogWarnings = errors.New("catalog has warnings")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "intakectl",
		Short:         "Inspect and evaluate intake service catalogs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCmd(), newEvalCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate CATALOG",
		Short: "Load a catalog file and report problems",
		Long: `Load a catalog file and report problems.

Structural errors always fail. Warnings (for example a field referencing an
unknown condition group) are printed and only fail with --strict.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), args[0], strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
	return cmd
}

func runValidate(out io.Writer, path string, strict bool) error {
	cat, warnings, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	active := 0
	for _, svc := range cat.Services {
		if svc.Active {
			active++
		}
	}
	fmt.Fprintf(out, "%s: %d services (%d active), %d warnings\n", path, len(cat.Services), active, len(warnings))
	if strict && len(warnings) > 0 {
		return errCatalogWarnings
	}
	return nil
}

type evalOptions struct {
	serviceID string
	set       []string
	values    string
	output    string
}

func newEvalCmd() *cobra.Command {
	var opts evalOptions
	cmd := &cobra.Command{
		Use:   "eval CATALOG",
		Short: "Show which fields of a service are visible for given values",
		Example: `  intakectl eval configs/catalog.yaml --service building-permit --set Applicant_Type__c=Company
  intakectl eval configs/catalog.yaml --service building-permit --values '{"Floor_Area__c": 250}' -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.serviceID, "service", "", "service id to evaluate")
	cmd.Flags().StringArrayVar(&opts.set, "set", nil, "field value as API_NAME=VALUE (repeatable)")
	cmd.Flags().StringVar(&opts.values, "values", "", "field values as a JSON object")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

func runEval(ctx context.Context, out io.Writer, path string, opts evalOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q", opts.output)
	}
	serviceID, err := id.ParseServiceID(opts.serviceID)
	if err != nil {
		return err
	}
	raw, err := parseValues(opts.values, opts.set)
	if err != nil {
		return err
	}

	cat, _, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}
	forms := formservice.New(catalog.NewInMemory(cat), formservice.WithLogger(slog.New(slog.DiscardHandler)))

	values := make(visibility.Values, len(raw))
	for apiName, v := range raw {
		normalized, err := forms.NormalizeFieldValue(ctx, serviceID, apiName, v)
		if err != nil {
			return err
		}
		values[apiName] = normalized
	}
	rendered, err := forms.Render(ctx, serviceID, values)
	if err != nil {
		return err
	}

	if opts.output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rendered)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, sec := range rendered.Sections {
		fmt.Fprintf(tw, "[%s]\n", sec.Name)
		if !sec.HasFields {
			fmt.Fprintln(tw, "  (no visible fields)")
		}
		for _, f := range sec.Fields {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.APIName, f.Label, displayValue(f.Value))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(rendered.Hidden) > 0 {
		fmt.Fprintf(out, "hidden: %s\n", strings.Join(rendered.Hidden, ", "))
	}
	return nil
}

// parseValues merges a JSON object with repeated API_NAME=VALUE pairs. Pairs
// win over JSON for the same field.
func parseValues(jsonValues string, pairs []string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(jsonValues) != "" {
		if err := json.Unmarshal([]byte(jsonValues), &out); err != nil {
			return nil, fmt.Errorf("parse --values: %w", err)
		}
	}
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: expected API_NAME=VALUE", p)
		}
		out[name] = value
	}
	return out, nil
}

func displayValue(v visibility.Value) string {
	if t := v.Text(); t != "" {
		return t
	}
	return "-"
}
