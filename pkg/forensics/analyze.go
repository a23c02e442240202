// Package forensics computes fraud-indicator analytics over procurement claims
// and the supplier and subsupplier payments made from them.
//
// Analyze is pure: it reads internally owned copies of its inputs, never reads
// a clock and never performs I/O. Each detector runs only when its inputs allow
// it; a section missing from the Report means its precondition was not met.
package forensics

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidInput = errors.New("forensics: invalid input")

const (
	SectionClaimStats     = "claim_stats"
	SectionSupplierFlow   = "supplier_flow"
	SectionSubsupplier    = "subsupplier_analysis"
	SectionTimingPatterns = "timing_patterns"
	SectionVendorPatterns = "vendor_patterns"
)

type Thresholds struct {
	OutlierZScore     float64       `yaml:"outlier_z_score"`
	SplitThresholds   []float64     `yaml:"split_thresholds"`
	SplitBand         float64       `yaml:"split_band"`
	SplitMinCount     int           `yaml:"split_min_count"`
	HighRetentionRate float64       `yaml:"high_retention_rate"`
	HighConcentration float64       `yaml:"high_concentration"`
	ConcentrationTopN int           `yaml:"concentration_top_n"`
	TopVendors        int           `yaml:"top_vendors"`
	NewVendorWindow   time.Duration `yaml:"new_vendor_window"`
	MonthEndDay       int           `yaml:"month_end_day"`
	QuarterEndMonths  []int         `yaml:"quarter_end_months"`
	LateNightHours    []int         `yaml:"late_night_hours"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		OutlierZScore:     2,
		SplitThresholds:   []float64{10000, 50000, 100000},
		SplitBand:         0.9,
		SplitMinCount:     3,
		HighRetentionRate: 0.8,
		HighConcentration: 0.8,
		ConcentrationTopN: 4,
		TopVendors:        5,
		NewVendorWindow:   30 * 24 * time.Hour,
		MonthEndDay:       25,
		QuarterEndMonths:  []int{3, 6, 9, 12},
		LateNightHours:    []int{22, 23, 0, 1, 2, 3},
	}
}

func (t Thresholds) Validate() error {
	switch {
	case t.OutlierZScore <= 0:
		return fmt.Errorf("%w: outlier_z_score must be > 0", ErrInvalidInput)
	case len(t.SplitThresholds) == 0:
		return fmt.Errorf("%w: split_thresholds required", ErrInvalidInput)
	case t.SplitBand <= 0 || t.SplitBand >= 1:
		return fmt.Errorf("%w: split_band must be in (0,1)", ErrInvalidInput)
	case t.SplitMinCount < 1:
		return fmt.Errorf("%w: split_min_count must be >= 1", ErrInvalidInput)
	case t.ConcentrationTopN < 1 || t.TopVendors < 1:
		return fmt.Errorf("%w: top-n limits must be >= 1", ErrInvalidInput)
	case t.NewVendorWindow <= 0:
		return fmt.Errorf("%w: new_vendor_window must be > 0", ErrInvalidInput)
	case t.MonthEndDay < 1 || t.MonthEndDay > 31:
		return fmt.Errorf("%w: month_end_day out of range: %d", ErrInvalidInput, t.MonthEndDay)
	}
	for _, m := range t.QuarterEndMonths {
		if m < 1 || m > 12 {
			return fmt.Errorf("%w: quarter_end_months out of range: %d", ErrInvalidInput, m)
		}
	}
	for _, h := range t.LateNightHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("%w: late_night_hours out of range: %d", ErrInvalidInput, h)
		}
	}
	return nil
}

type Options struct {
	// AsOf is the analysis instant the new-vendor window is measured from.
	AsOf       time.Time
	Thresholds *Thresholds
}

type Input struct {
	Claims              ClaimTable
	SupplierPayments    *SupplierPaymentTable
	SubSupplierPayments *SubSupplierPaymentTable
}

// Report holds one entry per analyzer that ran.
type Report struct {
	ClaimStats     *ClaimStats     `json:"claim_stats,omitempty"`
	SupplierFlow   *SupplierFlow   `json:"supplier_flow,omitempty"`
	TimingPatterns *TimingPatterns `json:"timing_patterns,omitempty"`
	VendorPatterns *VendorPatterns `json:"vendor_patterns,omitempty"`
}

// Sections lists the top-level keys present, in report order.
func (r Report) Sections() []string {
	var out []string
	if r.ClaimStats != nil {
		out = append(out, SectionClaimStats)
	}
	if r.SupplierFlow != nil {
		out = append(out, SectionSupplierFlow)
	}
	if r.TimingPatterns != nil {
		out = append(out, SectionTimingPatterns)
	}
	if r.VendorPatterns != nil {
		out = append(out, SectionVendorPatterns)
	}
	return out
}

// SectionErrors maps each error-tagged section (including the nested
// subsupplier analysis) to its reason.
func (r Report) SectionErrors() map[string]string {
	out := make(map[string]string)
	if r.ClaimStats != nil && r.ClaimStats.Error != "" {
		out[SectionClaimStats] = r.ClaimStats.Error
	}
	if r.SupplierFlow != nil {
		if r.SupplierFlow.Error != "" {
			out[SectionSupplierFlow] = r.SupplierFlow.Error
		}
		if sub := r.SupplierFlow.Subsupplier; sub != nil && sub.Error != "" {
			out[SectionSubsupplier] = sub.Error
		}
	}
	if r.TimingPatterns != nil && r.TimingPatterns.Error != "" {
		out[SectionTimingPatterns] = r.TimingPatterns.Error
	}
	if r.VendorPatterns != nil && r.VendorPatterns.Error != "" {
		out[SectionVendorPatterns] = r.VendorPatterns.Error
	}
	return out
}

// Analyze selects and runs the analyzers the supplied data allows.
func Analyze(in Input, opts Options) (Report, error) {
	if opts.AsOf.IsZero() {
		return Report{}, fmt.Errorf("%w: analysis instant (as_of) required", ErrInvalidInput)
	}
	th := DefaultThresholds()
	if opts.Thresholds != nil {
		th = *opts.Thresholds
	}
	if err := th.Validate(); err != nil {
		return Report{}, err
	}
	if err := in.Claims.Columns.validate("claims", claimColumns); err != nil {
		return Report{}, err
	}
	if in.SupplierPayments != nil {
		if err := in.SupplierPayments.Columns.validate("supplier_payments", supplierPaymentColumns); err != nil {
			return Report{}, err
		}
	}
	if in.SubSupplierPayments != nil {
		if err := in.SubSupplierPayments.Columns.validate("subsupplier_payments", subSupplierColumns); err != nil {
			return Report{}, err
		}
	}

	claims := in.Claims.clone()
	var report Report

	if claims.Len() > 0 {
		s := AnalyzeClaims(claims, th)
		report.ClaimStats = &s
	}

	if in.SupplierPayments != nil && in.SupplierPayments.Len() > 0 {
		supplier := in.SupplierPayments.clone()
		var sub *SubSupplierPaymentTable
		if in.SubSupplierPayments != nil {
			c := in.SubSupplierPayments.clone()
			sub = &c
		}
		f := AnalyzeSupplierFlow(claims, supplier, sub, th)
		report.SupplierFlow = &f
	}

	if claims.Has(ColCreateTime) {
		t := AnalyzeTiming(claims, th)
		report.TimingPatterns = &t
	}

	if claims.Has(ColVendorAddress) {
		v := AnalyzeVendors(claims, opts.AsOf, th)
		report.VendorPatterns = &v
	}

	return report, nil
}

type errorSection struct {
	Error string `json:"error"`
}

// marshalSection renders an error-tagged section as {"error": ...} only.
func marshalSection(errMsg string, v any) ([]byte, error) {
	if errMsg != "" {
		return json.Marshal(errorSection{Error: errMsg})
	}
	return json.Marshal(v)
}
