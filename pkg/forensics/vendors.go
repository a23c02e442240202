package forensics

import (
	"cmp"
	"slices"
	"time"
)

type VendorPatterns struct {
	Error string `json:"-"`

	VendorCount         int                 `json:"vendor_count"`
	VendorConcentration VendorConcentration `json:"vendor_concentration"`
	NewVendors          NewVendors          `json:"new_vendors"`
	HighVarianceVendors HighVarianceVendors `json:"high_variance_vendors"`
}

func (v VendorPatterns) MarshalJSON() ([]byte, error) {
	type plain VendorPatterns
	return marshalSection(v.Error, plain(v))
}

type VendorProfile struct {
	VendorAddress string     `json:"vendor_address"`
	ClaimCount    int        `json:"claim_count"`
	TotalAmount   float64    `json:"total_amount"`
	AvgAmount     Num        `json:"avg_amount"`
	StdAmount     Num        `json:"std_amount"`
	FirstClaim    *time.Time `json:"first_claim"`
	LastClaim     *time.Time `json:"last_claim"`
}

type VendorConcentration struct {
	TopVendors   []VendorProfile `json:"top_5_vendors"`
	TopClaimPct  float64         `json:"top_5_claim_pct"`
	TopAmountPct float64         `json:"top_5_amount_pct"`
}

type VendorTotal struct {
	VendorAddress string  `json:"vendor_address"`
	ClaimCount    int     `json:"claim_count"`
	TotalAmount   float64 `json:"total_amount"`
}

type NewVendors struct {
	Count       int           `json:"count"`
	TotalAmount float64       `json:"total_amount"`
	Vendors     []VendorTotal `json:"vendors"`
}

type VendorVariance struct {
	VendorAddress string `json:"vendor_address"`
	AvgAmount     Num    `json:"avg_amount"`
	StdAmount     Num    `json:"std_amount"`
}

type HighVarianceVendors struct {
	Count   int              `json:"count"`
	Vendors []VendorVariance `json:"vendors"`
}

// VendorProfiles aggregates claims per vendor in first-seen order. Claims with
// no vendor are not attributed to any profile.
func VendorProfiles(claims ClaimTable) []VendorProfile {
	withAmount := claims.Has(ColAmount)
	withTime := claims.Has(ColCreateTime)

	groups := newOrderedGroups()
	for i, c := range claims.Rows {
		groups.add(c.VendorAddress, i)
	}

	out := make([]VendorProfile, 0, len(groups.keys))
	for _, vendor := range groups.keys {
		p := VendorProfile{VendorAddress: vendor}
		amounts := make([]Num, 0, len(groups.rows[vendor]))
		for _, idx := range groups.rows[vendor] {
			c := claims.Rows[idx]
			p.ClaimCount++
			if withAmount {
				amounts = append(amounts, ParseAmount(c.Amount))
			}
			if !withTime {
				continue
			}
			at, ok := ParseTimestamp(c.CreateTime)
			if !ok {
				continue
			}
			if p.FirstClaim == nil || at.Before(*p.FirstClaim) {
				first := at
				p.FirstClaim = &first
			}
			if p.LastClaim == nil || at.After(*p.LastClaim) {
				last := at
				p.LastClaim = &last
			}
		}
		vals := defined(amounts)
		p.TotalAmount = sum(vals)
		p.AvgAmount = mean(vals)
		p.StdAmount = sampleStd(vals)
		out = append(out, p)
	}
	return out
}

// AnalyzeVendors reports vendor concentration, vendors whose first claim falls
// inside the trailing window ending at asOf, and vendors whose claim amounts
// vary more than their mean.
func AnalyzeVendors(claims ClaimTable, asOf time.Time, th Thresholds) VendorPatterns {
	if !claims.Has(ColVendorAddress) {
		return VendorPatterns{Error: "claims data missing vendor_address field"}
	}

	profiles := VendorProfiles(claims)

	var totalAmount float64
	if claims.Has(ColAmount) {
		amounts := make([]Num, len(claims.Rows))
		for i, c := range claims.Rows {
			amounts[i] = ParseAmount(c.Amount)
		}
		totalAmount = sum(defined(amounts))
	}

	ranked := slices.Clone(profiles)
	slices.SortStableFunc(ranked, func(a, b VendorProfile) int {
		return cmp.Compare(b.ClaimCount, a.ClaimCount)
	})
	if len(ranked) > th.TopVendors {
		ranked = ranked[:th.TopVendors]
	}
	var topClaims int
	var topAmount float64
	for _, p := range ranked {
		topClaims += p.ClaimCount
		topAmount += p.TotalAmount
	}
	conc := VendorConcentration{
		TopVendors:  ranked,
		TopClaimPct: percentOf(topClaims, len(claims.Rows)),
	}
	if totalAmount > 0 {
		conc.TopAmountPct = topAmount / totalAmount * 100
	}

	cutoff := asOf.Add(-th.NewVendorWindow)
	newVendors := NewVendors{Vendors: make([]VendorTotal, 0)}
	highVariance := HighVarianceVendors{Vendors: make([]VendorVariance, 0)}
	for _, p := range profiles {
		if p.FirstClaim != nil && p.FirstClaim.After(cutoff) && !p.FirstClaim.After(asOf) {
			newVendors.Count++
			newVendors.TotalAmount += p.TotalAmount
			newVendors.Vendors = append(newVendors.Vendors, VendorTotal{
				VendorAddress: p.VendorAddress,
				ClaimCount:    p.ClaimCount,
				TotalAmount:   p.TotalAmount,
			})
		}

		avg, aok := p.AvgAmount.Value()
		sd, sok := p.StdAmount.Value()
		if aok && sok && sd > avg {
			highVariance.Count++
			highVariance.Vendors = append(highVariance.Vendors, VendorVariance{
				VendorAddress: p.VendorAddress,
				AvgAmount:     p.AvgAmount,
				StdAmount:     p.StdAmount,
			})
		}
	}

	return VendorPatterns{
		VendorCount:         len(profiles),
		VendorConcentration: conc,
		NewVendors:          newVendors,
		HighVarianceVendors: highVariance,
	}
}
