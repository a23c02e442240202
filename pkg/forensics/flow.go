package forensics

import (
	"cmp"
	"slices"
)

type SupplierFlow struct {
	Error string `json:"-"`

	AvgRetentionRate     Num                   `json:"avg_retention_rate"`
	MedianRetentionRate  Num                   `json:"median_retention_rate"`
	HighRetentionCount   int                   `json:"high_retention_count"`
	HighRetentionVendors []HighRetentionVendor `json:"high_retention_vendors,omitzero"`
	Subsupplier          *SubsupplierFlow      `json:"subsupplier_analysis,omitempty"`
}

func (f SupplierFlow) MarshalJSON() ([]byte, error) {
	type plain SupplierFlow
	return marshalSection(f.Error, plain(f))
}

type HighRetentionVendor struct {
	VendorAddress        string  `json:"vendor_address"`
	ClaimCount           int     `json:"claim_count"`
	TotalClaimAmount     float64 `json:"total_claim_amount"`
	TotalRetentionAmount float64 `json:"total_retention_amount"`
	AvgRetentionRate     Num     `json:"avg_retention_rate"`
}

type SubsupplierFlow struct {
	Error string `json:"-"`

	AvgRetentionRate       Num                     `json:"avg_retention_rate"`
	MedianRetentionRate    Num                     `json:"median_retention_rate"`
	HighRetentionCount     int                     `json:"high_retention_count"`
	HighRetentionSuppliers []HighRetentionSupplier `json:"high_retention_suppliers,omitzero"`

	// Present only when subsupplier payments carry a subsupplier column.
	ConcentrationRatio *float64     `json:"concentration_ratio,omitempty"`
	HighConcentration  *bool        `json:"high_concentration,omitempty"`
	TopSubsuppliers    []PayeeTotal `json:"top_subsuppliers,omitzero"`
}

func (f SubsupplierFlow) MarshalJSON() ([]byte, error) {
	type plain SubsupplierFlow
	return marshalSection(f.Error, plain(f))
}

type HighRetentionSupplier struct {
	Supplier               string  `json:"supplier"`
	PaymentCount           int     `json:"payment_count"`
	TotalSupplierAmount    float64 `json:"total_supplier_amount"`
	TotalSubsupplierAmount float64 `json:"total_subsupplier_amount"`
	TotalRetentionAmount   float64 `json:"total_retention_amount"`
	AvgRetentionRate       Num     `json:"avg_retention_rate"`
}

type PayeeTotal struct {
	Subsupplier  string  `json:"subsupplier"`
	PaymentCount int     `json:"payment_count"`
	TotalAmount  float64 `json:"total_amount"`
}

// retentionRow is one upstream payment joined to the sum paid downstream.
type retentionRow struct {
	key        string
	upstream   Num
	downstream float64
	retention  Num
	rate       Num
}

func newRetentionRow(key string, upstream Num, downstream float64) retentionRow {
	r := retentionRow{key: key, upstream: upstream, downstream: downstream}
	if u, ok := upstream.Value(); ok {
		r.retention = Defined(u - downstream)
	}
	r.rate = ratio(r.retention, upstream)
	return r
}

// sumByKey aggregates defined amounts per join key. Keys whose amounts are all
// undefined still appear with a zero sum.
func sumByKey(n int, key func(int) string, amount func(int) Num) map[string]float64 {
	out := make(map[string]float64, n)
	for i := range n {
		k := groupKey(key(i))
		if k == "" {
			continue
		}
		v, _ := amount(i).Value()
		out[k] += v
	}
	return out
}

func retentionSummary(rows []retentionRow) (avg, med Num) {
	rates := make([]Num, len(rows))
	for i, r := range rows {
		rates[i] = r.rate
	}
	vals := defined(rates)
	return mean(vals), median(vals)
}

func isHighRetention(r retentionRow, th Thresholds) bool {
	v, ok := r.rate.Value()
	return ok && v > th.HighRetentionRate
}

// AnalyzeSupplierFlow left-joins claims to their summed supplier payments and
// measures how much of each claim the vendor kept.
func AnalyzeSupplierFlow(claims ClaimTable, supplier SupplierPaymentTable, sub *SubSupplierPaymentTable, th Thresholds) SupplierFlow {
	if !supplier.Has(ColClaimID) {
		return SupplierFlow{Error: "supplier payments data missing claim_id field"}
	}
	if !supplier.Has(ColAmount) {
		return SupplierFlow{Error: "supplier payments data missing amount field"}
	}
	if !claims.Has(ColClaimID) || !claims.Has(ColAmount) {
		return SupplierFlow{Error: "claims data missing claim_id or amount field"}
	}

	paid := sumByKey(len(supplier.Rows),
		func(i int) string { return supplier.Rows[i].ClaimID },
		func(i int) Num { return ParseAmount(supplier.Rows[i].Amount) })

	rows := make([]retentionRow, len(claims.Rows))
	for i, c := range claims.Rows {
		// Unmatched claims have a genuine zero downstream sum.
		rows[i] = newRetentionRow(c.VendorAddress, ParseAmount(c.Amount), paid[groupKey(c.ClaimID)])
	}

	var flow SupplierFlow
	flow.AvgRetentionRate, flow.MedianRetentionRate = retentionSummary(rows)

	vendors := newOrderedGroups()
	for i, r := range rows {
		if !isHighRetention(r, th) {
			continue
		}
		flow.HighRetentionCount++
		vendors.add(r.key, i)
	}
	if flow.HighRetentionCount > 0 {
		flow.HighRetentionVendors = make([]HighRetentionVendor, 0, len(vendors.keys))
		for _, vendor := range vendors.keys {
			agg := HighRetentionVendor{VendorAddress: vendor}
			rates := make([]Num, 0, len(vendors.rows[vendor]))
			for _, idx := range vendors.rows[vendor] {
				r := rows[idx]
				agg.ClaimCount++
				agg.TotalClaimAmount += r.upstream.Or(0)
				agg.TotalRetentionAmount += r.retention.Or(0)
				rates = append(rates, r.rate)
			}
			agg.AvgRetentionRate = mean(defined(rates))
			flow.HighRetentionVendors = append(flow.HighRetentionVendors, agg)
		}
	}

	if sub != nil && sub.Len() > 0 {
		s := AnalyzeSubsupplierFlow(supplier, *sub, th)
		flow.Subsupplier = &s
	}
	return flow
}

// AnalyzeSubsupplierFlow repeats the retention analysis one tier down, keyed
// by supplier payment, and measures how concentrated subsupplier payees are.
func AnalyzeSubsupplierFlow(supplier SupplierPaymentTable, sub SubSupplierPaymentTable, th Thresholds) SubsupplierFlow {
	if !sub.Has(ColSupplierPaymentID) || !sub.Has(ColAmount) || !supplier.Has(ColSupplierPaymentID) {
		return SubsupplierFlow{Error: "subsupplier payments data missing required fields"}
	}

	subAmounts := make([]Num, len(sub.Rows))
	for i, p := range sub.Rows {
		subAmounts[i] = ParseAmount(p.Amount)
	}
	paid := sumByKey(len(sub.Rows),
		func(i int) string { return sub.Rows[i].SupplierPaymentID },
		func(i int) Num { return subAmounts[i] })

	rows := make([]retentionRow, len(supplier.Rows))
	for i, p := range supplier.Rows {
		rows[i] = newRetentionRow(p.Supplier, ParseAmount(p.Amount), paid[groupKey(p.SupplierPaymentID)])
	}

	var flow SubsupplierFlow
	flow.AvgRetentionRate, flow.MedianRetentionRate = retentionSummary(rows)

	suppliers := newOrderedGroups()
	for i, r := range rows {
		if !isHighRetention(r, th) {
			continue
		}
		flow.HighRetentionCount++
		suppliers.add(r.key, i)
	}
	if flow.HighRetentionCount > 0 {
		flow.HighRetentionSuppliers = make([]HighRetentionSupplier, 0, len(suppliers.keys))
		for _, name := range suppliers.keys {
			agg := HighRetentionSupplier{Supplier: name}
			rates := make([]Num, 0, len(suppliers.rows[name]))
			for _, idx := range suppliers.rows[name] {
				r := rows[idx]
				agg.PaymentCount++
				agg.TotalSupplierAmount += r.upstream.Or(0)
				agg.TotalSubsupplierAmount += r.downstream
				agg.TotalRetentionAmount += r.retention.Or(0)
				rates = append(rates, r.rate)
			}
			agg.AvgRetentionRate = mean(defined(rates))
			flow.HighRetentionSuppliers = append(flow.HighRetentionSuppliers, agg)
		}
	}

	if sub.Has(ColSubsupplier) {
		payees := payeeTotals(sub, subAmounts)
		cr, top := concentration(payees, th.ConcentrationTopN)
		high := cr > th.HighConcentration
		flow.ConcentrationRatio = &cr
		flow.HighConcentration = &high
		flow.TopSubsuppliers = top
	}
	return flow
}

func payeeTotals(sub SubSupplierPaymentTable, amounts []Num) []PayeeTotal {
	groups := newOrderedGroups()
	for i, p := range sub.Rows {
		groups.add(p.Subsupplier, i)
	}
	out := make([]PayeeTotal, 0, len(groups.keys))
	for _, name := range groups.keys {
		pt := PayeeTotal{Subsupplier: name}
		for _, idx := range groups.rows[name] {
			if v, ok := amounts[idx].Value(); ok {
				pt.PaymentCount++
				pt.TotalAmount += v
			}
		}
		out = append(out, pt)
	}
	return out
}

// concentration returns the share of the positive payee total held by the topN
// payees, 0 when that total is not positive, plus those payees. Payees netting
// to zero or below (refunds, reversals) count toward neither sum, so the ratio
// stays in [0, 1].
func concentration(payees []PayeeTotal, topN int) (float64, []PayeeTotal) {
	ranked := slices.Clone(payees)
	slices.SortStableFunc(ranked, func(a, b PayeeTotal) int {
		return cmp.Compare(b.TotalAmount, a.TotalAmount)
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	var total, top float64
	for _, p := range payees {
		total += max(p.TotalAmount, 0)
	}
	for _, p := range ranked {
		top += max(p.TotalAmount, 0)
	}
	if total <= 0 {
		return 0, ranked
	}
	return top / total, ranked
}
