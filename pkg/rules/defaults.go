package rules

// DefaultRules are the fraud alerts raised when no rule set is configured.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:       "threshold_splitting",
			Severity: SeverityHigh,
			Expr:     `has(report.claim_stats.threshold_splitting) && size(report.claim_stats.threshold_splitting) > 0`,
			Message:  "claims clustered just below approval thresholds",
		},
		{
			ID:       "large_outliers",
			Severity: SeverityMedium,
			Expr:     `has(report.claim_stats.large_outlier_pct) && report.claim_stats.large_outlier_pct > 5.0`,
			Message:  "more than 5% of claims are statistical outliers",
		},
		{
			ID:       "claim_above_twice_average",
			Severity: SeverityLow,
			Expr:     `report.claim_stats.max_amount > 2.0 * report.claim_stats.avg_amount`,
			Message:  "largest claim exceeds twice the average claim",
		},
		{
			ID:       "high_retention_vendors",
			Severity: SeverityHigh,
			Expr:     `report.supplier_flow.high_retention_count > 0.0`,
			Message:  "vendors kept more than 80% of claimed funds",
		},
		{
			ID:       "high_retention_suppliers",
			Severity: SeverityMedium,
			Expr:     `report.supplier_flow.subsupplier_analysis.high_retention_count > 0.0`,
			Message:  "suppliers kept more than 80% of what they were paid",
		},
		{
			ID:       "subsupplier_concentration",
			Severity: SeverityMedium,
			Expr:     `has(report.supplier_flow.subsupplier_analysis.high_concentration) && report.supplier_flow.subsupplier_analysis.high_concentration == true`,
			Message:  "subsupplier payments concentrated in a few payees",
		},
		{
			ID:       "late_night_submissions",
			Severity: SeverityMedium,
			Expr:     `report.timing_patterns.late_night_submissions.percentage > 20.0`,
			Message:  "more than 20% of claims submitted late at night",
		},
		{
			ID:       "quarter_end_rush",
			Severity: SeverityLow,
			Expr:     `report.timing_patterns.quarter_end_rush.percentage > 30.0`,
			Message:  "more than 30% of claims submitted at quarter end",
		},
		{
			ID:       "new_vendors",
			Severity: SeverityLow,
			Expr:     `report.vendor_patterns.new_vendors.count > 0.0`,
			Message:  "vendors with a first claim inside the new-vendor window",
		},
		{
			ID:       "high_variance_vendors",
			Severity: SeverityMedium,
			Expr:     `report.vendor_patterns.high_variance_vendors.count > 0.0`,
			Message:  "vendors whose claim amounts vary more than their mean",
		},
	}
}
