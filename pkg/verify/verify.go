// Package verify checks a submitted claim against the fields extracted from
// its invoice.
package verify

import (
	"math"
	"strings"
	"time"

	"github.com/jacksonlee411/claimwatch/pkg/forensics"
)

// AmountTolerancePct is the largest difference, as a percentage of the invoice
// amount, that still counts as a match.
const AmountTolerancePct = 1.0

const dateLayout = "2006-01-02"

type ClaimFields struct {
	Amount         forensics.RawValue `json:"amount"`
	VendorName     string             `json:"vendor_name"`
	SubmissionDate string             `json:"submission_date"`
}

type InvoiceFields struct {
	InvoiceNumber string             `json:"invoice_number,omitempty"`
	Date          string             `json:"date"`
	Amount        forensics.RawValue `json:"amount"`
	VendorName    string             `json:"vendor_name"`
	LineItems     []LineItem         `json:"line_items,omitempty"`
}

type Verification struct {
	AmountMatches bool          `json:"amount_matches"`
	VendorMatches bool          `json:"vendor_matches"`
	DateValid     bool          `json:"date_valid"`
	OverallValid  bool          `json:"overall_valid"`
	AmountDiffPct forensics.Num `json:"amount_diff_pct"`
}

// VerifyClaimAgainstInvoice runs the amount, vendor and date checks. A check
// whose inputs are missing or malformed stays false.
func VerifyClaimAgainstInvoice(claim ClaimFields, invoice InvoiceFields) Verification {
	var v Verification

	claimAmount, cok := forensics.ParseAmount(claim.Amount).Value()
	invoiceAmount, iok := forensics.ParseAmount(invoice.Amount).Value()
	// The difference is measured against the invoice; a zero invoice never matches.
	if cok && iok && claimAmount != 0 && invoiceAmount != 0 {
		diff := math.Abs(claimAmount-invoiceAmount) / math.Abs(invoiceAmount) * 100
		v.AmountDiffPct = forensics.Defined(diff)
		v.AmountMatches = diff <= AmountTolerancePct
	}

	cv := strings.ToLower(strings.TrimSpace(claim.VendorName))
	iv := strings.ToLower(strings.TrimSpace(invoice.VendorName))
	if cv != "" && iv != "" {
		v.VendorMatches = strings.Contains(iv, cv) || strings.Contains(cv, iv)
	}

	if invoice.Date != "" && claim.SubmissionDate != "" {
		invoiceDate, err1 := time.Parse(dateLayout, strings.TrimSpace(invoice.Date))
		claimDate, err2 := time.Parse(dateLayout, strings.TrimSpace(claim.SubmissionDate))
		v.DateValid = err1 == nil && err2 == nil && !invoiceDate.After(claimDate)
	}

	v.OverallValid = v.AmountMatches && v.VendorMatches && v.DateValid
	return v
}
