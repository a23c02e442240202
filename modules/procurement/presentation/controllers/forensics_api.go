package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jacksonlee411/claimwatch/internal/routing"
	"github.com/jacksonlee411/claimwatch/modules/procurement/domain/types"
	"github.com/jacksonlee411/claimwatch/modules/procurement/services"
	"github.com/jacksonlee411/claimwatch/pkg/forensics"
	"github.com/jacksonlee411/claimwatch/pkg/httperr"
	"github.com/jacksonlee411/claimwatch/pkg/verify"
)

const maxRequestBody = 16 << 20

type AgencyGetter func(ctx context.Context) (agency string, ok bool)

type ForensicsController struct {
	Agency  AgencyGetter
	Service *services.AnalysisService
}

type analysesAPIRequest struct {
	AsOf                string                             `json:"as_of"`
	Claims              *forensics.ClaimTable              `json:"claims"`
	SupplierPayments    *forensics.SupplierPaymentTable    `json:"supplier_payments"`
	SubSupplierPayments *forensics.SubSupplierPaymentTable `json:"subsupplier_payments"`
}

type verificationsAPIRequest struct {
	Claim       verify.ClaimFields    `json:"claim"`
	Invoice     *verify.InvoiceFields `json:"invoice"`
	InvoiceText string                `json:"invoice_text"`
}

func (c ForensicsController) HandleAnalysesAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req analysesAPIRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Claims == nil {
		writeError(w, r, http.StatusBadRequest, "missing_claims", "claims is required")
		return
	}
	asOf, ok := parseAsOf(req.AsOf)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid_as_of", "invalid as_of")
		return
	}

	a, err := c.Service.Analyze(r.Context(), forensics.Input{
		Claims:              *req.Claims,
		SupplierPayments:    req.SupplierPayments,
		SubSupplierPayments: req.SubSupplierPayments,
	}, asOf)
	if err != nil {
		writeServiceError(w, r, err, "analysis_failed")
		return
	}
	writeJSON(w, a)
}

func (c ForensicsController) HandleLedgerAnalysesAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	q := r.URL.Query()
	asOf, ok := parseAsOf(q.Get("as_of"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid_as_of", "invalid as_of")
		return
	}
	filter := types.LedgerFilter{
		Agency:        c.agency(r.Context()),
		Department:    strings.TrimSpace(q.Get("department")),
		VendorAddress: strings.TrimSpace(q.Get("vendor_address")),
		CreatedFrom:   strings.TrimSpace(q.Get("from")),
		CreatedTo:     strings.TrimSpace(q.Get("to")),
	}

	a, err := c.Service.AnalyzeLedger(r.Context(), filter, asOf)
	if err != nil {
		writeServiceError(w, r, err, "ledger_analysis_failed")
		return
	}
	writeJSON(w, a)
}

func (c ForensicsController) HandleVendorProfileAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	q := r.URL.Query()
	filter := types.LedgerFilter{
		Agency:        c.agency(r.Context()),
		Department:    strings.TrimSpace(q.Get("department")),
		VendorAddress: strings.TrimSpace(r.PathValue("vendor_address")),
		CreatedFrom:   strings.TrimSpace(q.Get("from")),
		CreatedTo:     strings.TrimSpace(q.Get("to")),
	}
	p, err := c.Service.VendorProfile(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err, "vendor_profile_failed")
		return
	}
	writeJSON(w, p)
}

func (c ForensicsController) HandleVerificationsAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req verificationsAPIRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var invoice verify.InvoiceFields
	if req.Invoice != nil {
		invoice = *req.Invoice
	}
	check, err := c.Service.VerifyInvoice(req.Claim, invoice, req.InvoiceText)
	if err != nil {
		writeServiceError(w, r, err, "verification_failed")
		return
	}
	writeJSON(w, check)
}

func (c ForensicsController) agency(ctx context.Context) string {
	if c.Agency == nil {
		return ""
	}
	agency, ok := c.Agency(ctx)
	if !ok {
		return ""
	}
	return agency
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		if _, ok := errors.AsType[*http.MaxBytesError](err); ok {
			writeError(w, r, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return false
	}
	return true
}

// parseAsOf accepts an RFC 3339 instant or a calendar date (midnight UTC).
// Empty means now.
func parseAsOf(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, forensics.ErrInvalidInput), httperr.IsBadRequest(err), isPgInvalidInput(err):
		writeError(w, r, http.StatusBadRequest, "invalid_input", err.Error())
	case httperr.IsPrecondition(err):
		writeError(w, r, http.StatusUnprocessableEntity, "precondition_failed", err.Error())
	case errors.Is(err, services.ErrVendorNotFound):
		writeError(w, r, http.StatusNotFound, "vendor_not_found", "vendor not found")
	case errors.Is(err, services.ErrLedgerUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "ledger_unavailable", "")
	default:
		if code := stablePgMessage(err); code != "" {
			writeError(w, r, http.StatusUnprocessableEntity, code, "")
			return
		}
		writeError(w, r, http.StatusInternalServerError, fallback, "")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	routing.WriteError(w, r, routing.RouteClassInternalAPI, status, code, message)
}
