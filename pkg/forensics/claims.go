package forensics

type ClaimStats struct {
	Error string `json:"-"`

	TotalClaims  int     `json:"total_claims"`
	ValidAmounts int     `json:"valid_amounts"`
	TotalAmount  float64 `json:"total_amount"`
	AvgAmount    Num     `json:"avg_amount"`
	MedianAmount Num     `json:"median_amount"`
	MaxAmount    Num     `json:"max_amount"`
	MinAmount    Num     `json:"min_amount"`
	StdAmount    Num     `json:"std_amount"`

	// Present only when the standard deviation is defined and positive.
	LargeOutliers   *int     `json:"large_outliers,omitempty"`
	LargeOutlierPct *float64 `json:"large_outlier_pct,omitempty"`

	// Present only when claims carry a department column.
	ThresholdSplitting []ThresholdSplit `json:"threshold_splitting,omitzero"`
}

func (s ClaimStats) MarshalJSON() ([]byte, error) {
	type plain ClaimStats
	return marshalSection(s.Error, plain(s))
}

type ThresholdSplit struct {
	Department  string  `json:"department"`
	Threshold   float64 `json:"threshold"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// AnalyzeClaims computes descriptive statistics, z-score outliers and
// sub-threshold clustering per department. The caller guarantees claims is
// non-empty.
func AnalyzeClaims(claims ClaimTable, th Thresholds) ClaimStats {
	if !claims.Has(ColAmount) {
		return ClaimStats{Error: "claims data missing amount field"}
	}

	amounts := make([]Num, len(claims.Rows))
	for i, c := range claims.Rows {
		amounts[i] = ParseAmount(c.Amount)
	}
	vals := defined(amounts)

	stats := ClaimStats{
		TotalClaims:  len(claims.Rows),
		ValidAmounts: len(vals),
		TotalAmount:  sum(vals),
		AvgAmount:    mean(vals),
		MedianAmount: median(vals),
		MaxAmount:    maxOf(vals),
		MinAmount:    minOf(vals),
		StdAmount:    sampleStd(vals),
	}

	m, mok := stats.AvgAmount.Value()
	sd, sdok := stats.StdAmount.Value()
	if mok && sdok && sd > 0 {
		outliers := 0
		for _, a := range amounts {
			v, ok := a.Value()
			if !ok {
				continue
			}
			z := (v - m) / sd
			if z < 0 {
				z = -z
			}
			if z > th.OutlierZScore {
				outliers++
			}
		}
		pct := percentOf(outliers, len(claims.Rows))
		stats.LargeOutliers = &outliers
		stats.LargeOutlierPct = &pct
	}

	if claims.Has(ColDepartmentAddress) {
		stats.ThresholdSplitting = detectThresholdSplitting(claims, amounts, th)
	}
	return stats
}

// detectThresholdSplitting flags (department, threshold) pairs with at least
// SplitMinCount claims in [band*threshold, threshold).
func detectThresholdSplitting(claims ClaimTable, amounts []Num, th Thresholds) []ThresholdSplit {
	depts := newOrderedGroups()
	for i, c := range claims.Rows {
		depts.add(c.DepartmentAddress, i)
	}

	out := make([]ThresholdSplit, 0)
	for _, dept := range depts.keys {
		for _, threshold := range th.SplitThresholds {
			low := threshold * th.SplitBand
			count := 0
			var total float64
			for _, idx := range depts.rows[dept] {
				v, ok := amounts[idx].Value()
				if !ok || v < low || v >= threshold {
					continue
				}
				count++
				total += v
			}
			if count >= th.SplitMinCount {
				out = append(out, ThresholdSplit{
					Department:  dept,
					Threshold:   threshold,
					Count:       count,
					TotalAmount: total,
				})
			}
		}
	}
	return out
}
