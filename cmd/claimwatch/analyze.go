package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jacksonlee411/claimwatch/internal/server"
	"github.com/jacksonlee411/claimwatch/internal/tableio"
	"github.com/jacksonlee411/claimwatch/modules/procurement/domain/types"
	"github.com/jacksonlee411/claimwatch/modules/procurement/services"
	"github.com/jacksonlee411/claimwatch/pkg/forensics"
	"github.com/jacksonlee411/claimwatch/pkg/riskpolicy"
)

type analyzeOptions struct {
	claims         string
	supplier       string
	subsupplier    string
	asOf           string
	config         string
	format         string
	failOnHighRisk bool
}

var errHighRisk = errors.New("risk level is high")

func analyzeCmd(logger func() zerolog.Logger) *cobra.Command {
	var o analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze claim and payment exports",
		Long: `Analyze claim and payment exports (.csv or .json) and print the report,
the alerts raised by the detector rules, and the risk decision.

Examples:
  claimwatch analyze --claims claims.csv
  claimwatch analyze --claims claims.csv --supplier-payments sp.csv --subsupplier-payments ssp.csv --as-of 2024-06-30
  claimwatch analyze --claims claims.json --config config/forensics/detectors.yaml --format text`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), logger(), o)
		},
	}
	cmd.Flags().StringVar(&o.claims, "claims", "", "claims file (.csv or .json)")
	cmd.Flags().StringVar(&o.supplier, "supplier-payments", "", "supplier payments file")
	cmd.Flags().StringVar(&o.subsupplier, "subsupplier-payments", "", "subsupplier payments file")
	cmd.Flags().StringVar(&o.asOf, "as-of", "", "reference time (RFC3339 or 2006-01-02); default now")
	cmd.Flags().StringVar(&o.config, "config", "", "detector config (thresholds, rules, risk policy)")
	cmd.Flags().StringVar(&o.format, "format", "json", "output format (json, text)")
	cmd.Flags().BoolVar(&o.failOnHighRisk, "fail-on-high-risk", false, "exit non-zero when the risk level is high")
	_ = cmd.MarkFlagRequired("claims")
	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, log zerolog.Logger, o analyzeOptions) error {
	if o.format != "json" && o.format != "text" {
		return fmt.Errorf("unknown format %q", o.format)
	}
	asOf, err := parseAsOf(o.asOf)
	if err != nil {
		return err
	}

	in, err := loadInput(o)
	if err != nil {
		return err
	}

	opts := services.AnalysisServiceOptions{Logger: log}
	if o.config != "" {
		c, err := server.LoadDetectorConfig(o.config)
		if err != nil {
			return err
		}
		d, err := c.Build(ctx)
		if err != nil {
			return err
		}
		opts.Rules, opts.Policy, opts.Thresholds = d.Rules, d.Policy, &d.Thresholds
	}
	svc, err := services.NewAnalysisService(ctx, opts)
	if err != nil {
		return err
	}

	a, err := svc.Analyze(ctx, in, asOf)
	if err != nil {
		return err
	}

	if o.format == "text" {
		writeSummary(out, a)
	} else {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a); err != nil {
			return err
		}
	}
	if o.failOnHighRisk && a.Risk.Level == riskpolicy.LevelHigh {
		return errHighRisk
	}
	return nil
}

func loadInput(o analyzeOptions) (forensics.Input, error) {
	claims, err := tableio.LoadClaims(o.claims)
	if err != nil {
		return forensics.Input{}, err
	}
	in := forensics.Input{Claims: claims}
	if o.supplier != "" {
		t, err := tableio.LoadSupplierPayments(o.supplier)
		if err != nil {
			return forensics.Input{}, err
		}
		in.SupplierPayments = &t
	}
	if o.subsupplier != "" {
		t, err := tableio.LoadSubSupplierPayments(o.subsupplier)
		if err != nil {
			return forensics.Input{}, err
		}
		in.SubSupplierPayments = &t
	}
	return in, nil
}

func parseAsOf(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --as-of %q", raw)
}

func writeSummary(w io.Writer, a types.Analysis) {
	fmt.Fprintf(w, "report %s as of %s\n", a.ReportID, a.AsOf.Format(time.RFC3339))
	fmt.Fprintf(w, "risk: %s\n", a.Risk.Level)
	for _, r := range a.Risk.Reasons {
		fmt.Fprintf(w, "  - %s\n", r)
	}
	fmt.Fprintf(w, "sections: %s\n", strings.Join(a.Report.Sections(), ", "))
	errs := a.Report.SectionErrors()
	for _, name := range slices.Sorted(maps.Keys(errs)) {
		fmt.Fprintf(w, "  %s: %s\n", name, errs[name])
	}
	fmt.Fprintf(w, "alerts: %d\n", len(a.Alerts))
	for _, al := range a.Alerts {
		fmt.Fprintf(w, "  [%s] %s: %s\n", al.Severity, al.RuleID, al.Message)
	}
	if len(a.SkippedRules) > 0 {
		fmt.Fprintf(w, "skipped rules: %d\n", len(a.SkippedRules))
	}
}
