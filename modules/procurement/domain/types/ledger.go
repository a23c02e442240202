package types

import (
	"time"

	"github.com/jacksonlee411/claimwatch/pkg/forensics"
	"github.com/jacksonlee411/claimwatch/pkg/riskpolicy"
	"github.com/jacksonlee411/claimwatch/pkg/rules"
	"github.com/jacksonlee411/claimwatch/pkg/verify"
)

// LedgerFilter selects claims from the procurement ledger. Empty fields do not
// filter. CreatedFrom and CreatedTo are inclusive calendar dates (2006-01-02).
type LedgerFilter struct {
	Agency        string `json:"agency,omitempty"`
	Department    string `json:"department,omitempty"`
	VendorAddress string `json:"vendor_address,omitempty"`
	CreatedFrom   string `json:"from,omitempty"`
	CreatedTo     string `json:"to,omitempty"`
}

type Ledger struct {
	Claims              []forensics.Claim
	SupplierPayments    []forensics.SupplierPayment
	SubSupplierPayments []forensics.SubSupplierPayment
}

// Input returns the ledger as analyzer input. Payment tables are supplied only
// when the ledger holds rows for them.
func (l Ledger) Input() forensics.Input {
	in := forensics.Input{Claims: forensics.ClaimTable{Rows: l.Claims}}
	if len(l.SupplierPayments) > 0 {
		in.SupplierPayments = &forensics.SupplierPaymentTable{Rows: l.SupplierPayments}
	}
	if len(l.SubSupplierPayments) > 0 {
		in.SubSupplierPayments = &forensics.SubSupplierPaymentTable{Rows: l.SubSupplierPayments}
	}
	return in
}

type Analysis struct {
	ReportID     string              `json:"report_id"`
	AsOf         time.Time           `json:"as_of"`
	Report       forensics.Report    `json:"report"`
	Alerts       []rules.Alert       `json:"alerts"`
	SkippedRules []rules.SkippedRule `json:"skipped_rules"`
	Risk         riskpolicy.Decision `json:"risk"`
}

type InvoiceCheck struct {
	Invoice      verify.InvoiceFields `json:"invoice"`
	Verification verify.Verification  `json:"verification"`
}
