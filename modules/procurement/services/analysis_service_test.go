package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/jacksonlee411/claimwatch/modules/procurement/domain/types"
	"github.com/jacksonlee411/claimwatch/pkg/forensics"
	"github.com/jacksonlee411/claimwatch/pkg/httperr"
	"github.com/jacksonlee411/claimwatch/pkg/riskpolicy"
	"github.com/jacksonlee411/claimwatch/pkg/uuidv7"
	"github.com/jacksonlee411/claimwatch/pkg/verify"
)

type ledgerStoreStub struct {
	claims    []forensics.Claim
	payments  []forensics.SupplierPayment
	subs      []forensics.SubSupplierPayment
	claimsErr error
	subsErr   error

	calls   atomic.Int32
}

func (s *ledgerStoreStub) ListClaims(_ context.Context, filter types.LedgerFilter) ([]forensics.Claim, error) {
	s.calls.Add(1)
	if s.claimsErr != nil {
		return nil, s.claimsErr
	}
	if filter.VendorAddress == "" {
		return s.claims, nil
	}
	var out []forensics.Claim
	for _, c := range s.claims {
		if c.VendorAddress == filter.VendorAddress {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *ledgerStoreStub) ListSupplierPayments(context.Context, types.LedgerFilter) ([]forensics.SupplierPayment, error) {
	s.calls.Add(1)
	return s.payments, nil
}

func (s *ledgerStoreStub) ListSubSupplierPayments(context.Context, types.LedgerFilter) ([]forensics.SubSupplierPayment, error) {
	s.calls.Add(1)
	if s.subsErr != nil {
		return nil, s.subsErr
	}
	return s.subs, nil
}

var fixedNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func sampleLedger() *ledgerStoreStub {
	return &ledgerStoreStub{
		claims: []forensics.Claim{
			{ClaimID: "1", VendorAddress: "V1", DepartmentAddress: "D", Amount: "9500", CreateTime: "2024-06-10T23:00:00Z"},
			{ClaimID: "2", VendorAddress: "V1", DepartmentAddress: "D", Amount: "9600", CreateTime: "2024-06-11T10:00:00Z"},
			{ClaimID: "3", VendorAddress: "V2", DepartmentAddress: "D", Amount: "9700", CreateTime: "2024-06-12T10:00:00Z"},
		},
		payments: []forensics.SupplierPayment{
			{SupplierPaymentID: "p1", ClaimID: "1", Supplier: "S1", Amount: "9000"},
			{SupplierPaymentID: "p2", ClaimID: "2", Supplier: "S1", Amount: "9600"},
		},
		subs: []forensics.SubSupplierPayment{
			{SupplierPaymentID: "p1", Subsupplier: "X1", Amount: "8000"},
			{SupplierPaymentID: "p2", Subsupplier: "X2", Amount: "100"},
		},
	}
}

func mustParseUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	u, err := uuid.Parse(s)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	return u
}

func newTestService(t *testing.T, store *ledgerStoreStub, reg prometheus.Registerer, logs *bytes.Buffer) *AnalysisService {
	t.Helper()
	opts := AnalysisServiceOptions{
		Now:     func() time.Time { return fixedNow },
		IDs:     uuidv7.Generator{Rand: bytes.NewReader(bytes.Repeat([]byte{7}, 64))},
		Metrics: NewMetrics(reg),
	}
	if store != nil {
		opts.Store = store
	}
	if logs != nil {
		opts.Logger = zerolog.New(logs).Level(zerolog.DebugLevel)
	}
	s, err := NewAnalysisService(context.Background(), opts)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	return s
}

func TestAnalyzeLedger(t *testing.T) {
	store := sampleLedger()
	reg := prometheus.NewRegistry()
	var logs bytes.Buffer
	s := newTestService(t, store, reg, &logs)

	a, err := s.AnalyzeLedger(context.Background(), types.LedgerFilter{Department: "D"}, time.Time{})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if store.calls.Load() != 3 {
		t.Fatalf("calls=%d", store.calls.Load())
	}
	if !a.AsOf.Equal(fixedNow) {
		t.Fatalf("as_of=%v", a.AsOf)
	}
	if a.ReportID == "" || !uuidv7.Time(mustParseUUID(t, a.ReportID)).Equal(fixedNow) {
		t.Fatalf("report_id=%q", a.ReportID)
	}
	got := strings.Join(a.Report.Sections(), ",")
	if got != "claim_stats,supplier_flow,timing_patterns,vendor_patterns" {
		t.Fatalf("sections=%s", got)
	}
	if a.Report.SupplierFlow.Subsupplier == nil {
		t.Fatal("expected subsupplier analysis")
	}
	if a.Risk.Level != riskpolicy.LevelHigh {
		t.Fatalf("risk=%+v", a.Risk)
	}
	if len(a.Alerts) == 0 || a.SkippedRules == nil {
		t.Fatalf("alerts=%+v skipped=%+v", a.Alerts, a.SkippedRules)
	}

	if v := testutil.ToFloat64(s.metrics.Analyses.WithLabelValues(SourceLedger, outcomeOK)); v != 1 {
		t.Fatalf("analyses=%v", v)
	}
	if v := testutil.ToFloat64(s.metrics.Sections.WithLabelValues(forensics.SectionSubsupplier, sectionRan)); v != 1 {
		t.Fatalf("subsupplier sections=%v", v)
	}
	if v := testutil.ToFloat64(s.metrics.Alerts.WithLabelValues("high")); v < 1 {
		t.Fatalf("high alerts=%v", v)
	}
	if n := testutil.CollectAndCount(s.metrics.Duration); n != 1 {
		t.Fatalf("duration series=%d", n)
	}
	if !strings.Contains(logs.String(), `"message":"analysis complete"`) || !strings.Contains(logs.String(), a.ReportID) {
		t.Fatalf("logs=%s", logs.String())
	}
}

func TestAnalyzeLedger_NoClaims(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newTestService(t, &ledgerStoreStub{}, reg, nil)
	_, err := s.AnalyzeLedger(context.Background(), types.LedgerFilter{}, fixedNow)
	if !httperr.IsPrecondition(err) {
		t.Fatalf("err=%v", err)
	}
	if v := testutil.ToFloat64(s.metrics.Analyses.WithLabelValues(SourceLedger, outcomePrecondition)); v != 1 {
		t.Fatalf("analyses=%v", v)
	}
}

func TestAnalyzeLedger_StoreError(t *testing.T) {
	boom := errors.New("boom")
	store := sampleLedger()
	store.subsErr = boom
	s := newTestService(t, store, nil, nil)
	_, err := s.AnalyzeLedger(context.Background(), types.LedgerFilter{}, fixedNow)
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "list subsupplier payments") {
		t.Fatalf("err=%v", err)
	}
	if v := testutil.ToFloat64(s.metrics.Analyses.WithLabelValues(SourceLedger, outcomeError)); v != 1 {
		t.Fatalf("analyses=%v", v)
	}
}

func TestAnalyzeLedger_NoStore(t *testing.T) {
	s := newTestService(t, nil, nil, nil)
	if _, err := s.AnalyzeLedger(context.Background(), types.LedgerFilter{}, fixedNow); !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("err=%v", err)
	}
}

func TestAnalyze_Inline(t *testing.T) {
	s := newTestService(t, nil, nil, nil)
	asOf := time.Date(2024, 7, 1, 9, 0, 0, 0, time.FixedZone("X", 3600))
	a, err := s.Analyze(context.Background(), forensics.Input{Claims: forensics.ClaimTable{
		Columns: forensics.Columns{forensics.ColClaimID, forensics.ColAmount},
		Rows: []forensics.Claim{
			{ClaimID: "1", Amount: "100"},
			{ClaimID: "2", Amount: "200"},
		},
	}}, asOf)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if a.AsOf.Location() != time.UTC || !a.AsOf.Equal(asOf) {
		t.Fatalf("as_of=%v", a.AsOf)
	}
	if got := strings.Join(a.Report.Sections(), ","); got != "claim_stats" {
		t.Fatalf("sections=%s", got)
	}
	if a.Risk.Level != riskpolicy.LevelLow || len(a.Alerts) != 0 {
		t.Fatalf("risk=%+v alerts=%+v", a.Risk, a.Alerts)
	}
}

func TestAnalyze_InvalidInput(t *testing.T) {
	s := newTestService(t, nil, nil, nil)
	_, err := s.Analyze(context.Background(), forensics.Input{Claims: forensics.ClaimTable{
		Columns: forensics.Columns{"nope"},
	}}, fixedNow)
	if !errors.Is(err, forensics.ErrInvalidInput) {
		t.Fatalf("err=%v", err)
	}
	if v := testutil.ToFloat64(s.metrics.Analyses.WithLabelValues(SourceInline, outcomeInvalid)); v != 1 {
		t.Fatalf("analyses=%v", v)
	}
}

func TestNewAnalysisService_BadThresholds(t *testing.T) {
	th := forensics.DefaultThresholds()
	th.SplitBand = 2
	if _, err := NewAnalysisService(context.Background(), AnalysisServiceOptions{Thresholds: &th}); !errors.Is(err, forensics.ErrInvalidInput) {
		t.Fatalf("err=%v", err)
	}
}

func TestVendorProfile(t *testing.T) {
	s := newTestService(t, sampleLedger(), nil, nil)
	p, err := s.VendorProfile(context.Background(), types.LedgerFilter{VendorAddress: " V1 "})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if p.VendorAddress != "V1" || p.ClaimCount != 2 || p.TotalAmount != 19100 {
		t.Fatalf("p=%+v", p)
	}

	if _, err := s.VendorProfile(context.Background(), types.LedgerFilter{VendorAddress: "V9"}); !errors.Is(err, ErrVendorNotFound) {
		t.Fatalf("err=%v", err)
	}
	if _, err := s.VendorProfile(context.Background(), types.LedgerFilter{}); !httperr.IsBadRequest(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestVerifyInvoice(t *testing.T) {
	s := newTestService(t, nil, nil, nil)
	claim := verify.ClaimFields{Amount: "1005", VendorName: "Acme Supplies", SubmissionDate: "2024-03-20"}

	t.Run("explicit invoice", func(t *testing.T) {
		got, err := s.VerifyInvoice(claim, verify.InvoiceFields{Amount: "1000", VendorName: "ACME", Date: "2024-03-15"}, "")
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if !got.Verification.OverallValid {
			t.Fatalf("got=%+v", got)
		}
	})

	t.Run("extracted with override", func(t *testing.T) {
		text := "ACME SUPPLIES LTD\nInvoice Number: INV-9\nDate: 15/03/2024\nTotal: $1,000.00\n"
		got, err := s.VerifyInvoice(claim, verify.InvoiceFields{Date: "2024-03-25"}, text)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if got.Invoice.InvoiceNumber != "INV-9" || got.Invoice.Date != "2024-03-25" {
			t.Fatalf("invoice=%+v", got.Invoice)
		}
		if got.Verification.DateValid || got.Verification.OverallValid {
			t.Fatalf("verification=%+v", got.Verification)
		}
	})

	t.Run("nothing to verify", func(t *testing.T) {
		if _, err := s.VerifyInvoice(claim, verify.InvoiceFields{}, "  "); !httperr.IsBadRequest(err) {
			t.Fatalf("err=%v", err)
		}
	})
}
