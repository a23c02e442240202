package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jacksonlee411/claimwatch/modules/procurement/domain/ports"
	"github.com/jacksonlee411/claimwatch/modules/procurement/domain/types"
	"github.com/jacksonlee411/claimwatch/pkg/forensics"
	"github.com/jacksonlee411/claimwatch/pkg/httperr"
	"github.com/jacksonlee411/claimwatch/pkg/riskpolicy"
	"github.com/jacksonlee411/claimwatch/pkg/rules"
	"github.com/jacksonlee411/claimwatch/pkg/uuidv7"
	"github.com/jacksonlee411/claimwatch/pkg/verify"
)

const (
	SourceInline = "inline"
	SourceLedger = "ledger"
)

var (
	ErrLedgerUnavailable = errors.New("procurement: ledger store not configured")
	ErrVendorNotFound    = errors.New("procurement: vendor not found")
)

type AnalysisServiceOptions struct {
	Store ports.LedgerStore
	// Rules defaults to rules.DefaultRules.
	Rules *rules.Engine
	// Policy defaults to the built-in risk policy.
	Policy     *riskpolicy.Policy
	Thresholds *forensics.Thresholds
	IDs        uuidv7.Generator
	Now        func() time.Time
	Logger     zerolog.Logger
	Metrics    *Metrics
}

type AnalysisService struct {
	store      ports.LedgerStore
	rules      *rules.Engine
	policy     *riskpolicy.Policy
	thresholds forensics.Thresholds
	ids        uuidv7.Generator
	now        func() time.Time
	log        zerolog.Logger
	metrics    *Metrics
}

func NewAnalysisService(ctx context.Context, opts AnalysisServiceOptions) (*AnalysisService, error) {
	s := &AnalysisService{
		store:      opts.Store,
		rules:      opts.Rules,
		policy:     opts.Policy,
		thresholds: forensics.DefaultThresholds(),
		ids:        opts.IDs,
		now:        opts.Now,
		log:        opts.Logger,
		metrics:    opts.Metrics,
	}
	if opts.Thresholds != nil {
		s.thresholds = *opts.Thresholds
	}
	if err := s.thresholds.Validate(); err != nil {
		return nil, err
	}
	if s.rules == nil {
		e, err := rules.NewEngine(rules.DefaultRules())
		if err != nil {
			return nil, err
		}
		s.rules = e
	}
	if s.policy == nil {
		p, err := riskpolicy.New(ctx, "")
		if err != nil {
			return nil, err
		}
		s.policy = p
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.ids.Now == nil {
		s.ids.Now = s.now
	}
	return s, nil
}

// Analyze runs the full analysis over caller-supplied tables. A zero asOf
// means now.
func (s *AnalysisService) Analyze(ctx context.Context, in forensics.Input, asOf time.Time) (types.Analysis, error) {
	return s.run(ctx, SourceInline, asOf, func(context.Context) (forensics.Input, error) {
		return in, nil
	})
}

// AnalyzeLedger loads the ledger tiers the filter selects and analyzes them.
func (s *AnalysisService) AnalyzeLedger(ctx context.Context, filter types.LedgerFilter, asOf time.Time) (types.Analysis, error) {
	return s.run(ctx, SourceLedger, asOf, func(ctx context.Context) (forensics.Input, error) {
		ledger, err := s.LoadLedger(ctx, filter)
		if err != nil {
			return forensics.Input{}, err
		}
		if len(ledger.Claims) == 0 {
			return forensics.Input{}, httperr.NewPrecondition("no claims match the ledger filter")
		}
		return ledger.Input(), nil
	})
}

// LoadLedger reads the three ledger tiers concurrently.
func (s *AnalysisService) LoadLedger(ctx context.Context, filter types.LedgerFilter) (types.Ledger, error) {
	if s.store == nil {
		return types.Ledger{}, ErrLedgerUnavailable
	}
	var ledger types.Ledger
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.store.ListClaims(gctx, filter)
		if err != nil {
			return fmt.Errorf("list claims: %w", err)
		}
		ledger.Claims = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.ListSupplierPayments(gctx, filter)
		if err != nil {
			return fmt.Errorf("list supplier payments: %w", err)
		}
		ledger.SupplierPayments = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.ListSubSupplierPayments(gctx, filter)
		if err != nil {
			return fmt.Errorf("list subsupplier payments: %w", err)
		}
		ledger.SubSupplierPayments = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.Ledger{}, err
	}
	return ledger, nil
}

// VendorProfile aggregates the ledger claims of filter.VendorAddress.
func (s *AnalysisService) VendorProfile(ctx context.Context, filter types.LedgerFilter) (forensics.VendorProfile, error) {
	if s.store == nil {
		return forensics.VendorProfile{}, ErrLedgerUnavailable
	}
	vendor := strings.TrimSpace(filter.VendorAddress)
	if vendor == "" {
		return forensics.VendorProfile{}, httperr.NewBadRequest("vendor_address is required")
	}
	filter.VendorAddress = vendor
	claims, err := s.store.ListClaims(ctx, filter)
	if err != nil {
		return forensics.VendorProfile{}, err
	}
	for _, p := range forensics.VendorProfiles(forensics.ClaimTable{Rows: claims}) {
		if p.VendorAddress == vendor {
			return p, nil
		}
	}
	return forensics.VendorProfile{}, ErrVendorNotFound
}

// VerifyInvoice checks a claim against an invoice. When invoiceText is given
// the invoice fields are extracted from it first; fields set on invoice take
// precedence over extracted ones.
func (s *AnalysisService) VerifyInvoice(claim verify.ClaimFields, invoice verify.InvoiceFields, invoiceText string) (types.InvoiceCheck, error) {
	if strings.TrimSpace(invoiceText) != "" {
		invoice = mergeInvoice(verify.ExtractInvoiceFields(invoiceText), invoice)
	}
	if invoice.Amount == "" && invoice.VendorName == "" && invoice.Date == "" {
		return types.InvoiceCheck{}, httperr.NewBadRequest("invoice or invoice_text is required")
	}
	out := types.InvoiceCheck{
		Invoice:      invoice,
		Verification: verify.VerifyClaimAgainstInvoice(claim, invoice),
	}
	s.log.Debug().
		Bool("overall_valid", out.Verification.OverallValid).
		Str("invoice_number", invoice.InvoiceNumber).
		Msg("invoice verified")
	return out, nil
}

func mergeInvoice(extracted verify.InvoiceFields, explicit verify.InvoiceFields) verify.InvoiceFields {
	if explicit.InvoiceNumber != "" {
		extracted.InvoiceNumber = explicit.InvoiceNumber
	}
	if explicit.Date != "" {
		extracted.Date = explicit.Date
	}
	if explicit.Amount != "" {
		extracted.Amount = explicit.Amount
	}
	if explicit.VendorName != "" {
		extracted.VendorName = explicit.VendorName
	}
	if len(explicit.LineItems) > 0 {
		extracted.LineItems = explicit.LineItems
	}
	return extracted
}

func (s *AnalysisService) run(ctx context.Context, source string, asOf time.Time, load func(context.Context) (forensics.Input, error)) (types.Analysis, error) {
	started := time.Now()
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = asOf.UTC()
	log := s.log.With().Str("source", source).Time("as_of", asOf).Logger()

	in, err := load(ctx)
	if err != nil {
		s.fail(log, source, started, err)
		return types.Analysis{}, err
	}
	report, err := forensics.Analyze(in, forensics.Options{AsOf: asOf, Thresholds: &s.thresholds})
	if err != nil {
		s.fail(log, source, started, err)
		return types.Analysis{}, err
	}

	value, err := rules.ReportValue(report)
	if err != nil {
		s.fail(log, source, started, err)
		return types.Analysis{}, err
	}
	res := s.rules.Evaluate(value)
	decision, err := s.policy.Evaluate(ctx, value, res.Alerts)
	if err != nil {
		s.fail(log, source, started, err)
		return types.Analysis{}, err
	}
	id, err := s.ids.NewString()
	if err != nil {
		s.fail(log, source, started, err)
		return types.Analysis{}, err
	}

	for _, skipped := range res.Skipped {
		log.Debug().Str("rule_id", skipped.RuleID).Str("reason", skipped.Reason).Msg("alert rule skipped")
	}
	log.Info().
		Str("report_id", id).
		Int("claims", in.Claims.Len()).
		Strs("sections", report.Sections()).
		Int("alerts", len(res.Alerts)).
		Str("risk", decision.Level).
		Dur("elapsed", time.Since(started)).
		Msg("analysis complete")
	s.metrics.observe(source, outcomeOK, started, &analysisResult{report: report, alerts: res.Alerts})

	return types.Analysis{
		ReportID:     id,
		AsOf:         asOf,
		Report:       report,
		Alerts:       res.Alerts,
		SkippedRules: res.Skipped,
		Risk:         decision,
	}, nil
}

func (s *AnalysisService) fail(log zerolog.Logger, source string, started time.Time, err error) {
	outcome := outcomeError
	switch {
	case httperr.IsBadRequest(err) || errors.Is(err, forensics.ErrInvalidInput):
		outcome = outcomeInvalid
	case httperr.IsPrecondition(err):
		outcome = outcomePrecondition
	}
	ev := log.Warn()
	if outcome == outcomeError {
		ev = log.Error()
	}
	ev.Err(err).Str("outcome", outcome).Msg("analysis failed")
	s.metrics.observe(source, outcome, started, nil)
}
