package verify

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jacksonlee411/claimwatch/pkg/forensics"
)

const money = `(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`

var (
	invoiceNumberRE = regexp.MustCompile(`(?i)(?:Invoice Number|Invoice #|Invoice|INV)[ \t#:]*([A-Z0-9\-]+)`)
	invoiceDateRE   = regexp.MustCompile(`(?i)(?:Invoice Date|Issue Date|Date)[ \t:]*(\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}|\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*[\s,]+\d{2,4})`)
	invoiceAmountRE = regexp.MustCompile(`(?i)(?:Total Amount|Invoice Amount|Amount Due|Total|Amount)[ \t:]*[$€£¥]?[ \t]*` + money)
	vendorNameRE    = regexp.MustCompile(`(?i)(?:Company Name|Business Name|From|Vendor|Supplier)[ \t:]*([A-Za-z0-9 \t.,&]+)`)
	lineItemRE      = regexp.MustCompile(`([A-Za-z0-9 \t\-]+)\s+(\d+)\s+[$€£¥]?\s*` + money + `\s+[$€£¥]?\s*` + money)
)

// Day-first layouts win over month-first ones when both parse.
var invoiceDateLayouts = []string{
	"2/1/2006", "1/2/2006",
	"2-1-2006", "1-2-2006",
	"2.1.2006", "1.2.2006",
	"2 Jan 2006", "2 January 2006", "2 Jan, 2006", "2 January, 2006",
}

type LineItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

// ExtractInvoiceFields pulls the invoice number, date, total and vendor out of
// OCR text. Dates that match a known layout are normalized to 2006-01-02;
// others are kept as found. Fields that are not found stay empty.
func ExtractInvoiceFields(text string) InvoiceFields {
	var out InvoiceFields
	out.InvoiceNumber = firstGroup(invoiceNumberRE, text)
	out.VendorName = firstGroup(vendorNameRE, text)

	if raw := firstGroup(invoiceAmountRE, text); raw != "" {
		if d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "")); err == nil {
			out.Amount = forensics.RawValue(d.String())
		}
	}

	if raw := firstGroup(invoiceDateRE, text); raw != "" {
		out.Date = normalizeInvoiceDate(raw)
	}

	out.LineItems = extractLineItems(text)
	return out
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func normalizeInvoiceDate(raw string) string {
	for _, layout := range invoiceDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(dateLayout)
		}
	}
	return raw
}

func extractLineItems(text string) []LineItem {
	var items []LineItem
	for _, line := range strings.Split(text, "\n") {
		m := lineItemRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		qty, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		unit, err1 := decimal.NewFromString(strings.ReplaceAll(m[3], ",", ""))
		total, err2 := decimal.NewFromString(strings.ReplaceAll(m[4], ",", ""))
		if err1 != nil || err2 != nil {
			continue
		}
		items = append(items, LineItem{
			Description: strings.TrimSpace(m[1]),
			Quantity:    qty,
			UnitPrice:   unit.InexactFloat64(),
			TotalPrice:  total.InexactFloat64(),
		})
	}
	return items
}
