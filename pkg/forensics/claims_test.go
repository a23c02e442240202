package forensics

import (
	"math"
	"testing"
)

func claimsWithAmounts(dept string, amounts ...RawValue) []Claim {
	out := make([]Claim, 0, len(amounts))
	for i, a := range amounts {
		out = append(out, Claim{
			ClaimID:           string(rune('a' + i)),
			VendorAddress:     "V1",
			DepartmentAddress: dept,
			Amount:            a,
		})
	}
	return out
}

func TestAnalyzeClaims_CountTimesMeanIsSum(t *testing.T) {
	claims := ClaimTable{Rows: claimsWithAmounts("A", "10", "20", "bad", "30.5", "")}
	s := AnalyzeClaims(claims, DefaultThresholds())
	if s.Error != "" {
		t.Fatalf("err=%s", s.Error)
	}
	if s.TotalClaims != 5 || s.ValidAmounts != 3 {
		t.Fatalf("total=%d valid=%d", s.TotalClaims, s.ValidAmounts)
	}
	avg, ok := s.AvgAmount.Value()
	if !ok {
		t.Fatal("avg undefined")
	}
	if math.Abs(float64(s.ValidAmounts)*avg-s.TotalAmount) > 1e-9 {
		t.Fatalf("count*mean=%v sum=%v", float64(s.ValidAmounts)*avg, s.TotalAmount)
	}
	if s.TotalAmount != 60.5 {
		t.Fatalf("sum=%v", s.TotalAmount)
	}
	if s.MedianAmount.Or(-1) != 20 || s.MaxAmount.Or(-1) != 30.5 || s.MinAmount.Or(-1) != 10 {
		t.Fatalf("median=%v max=%v min=%v", s.MedianAmount, s.MaxAmount, s.MinAmount)
	}
}

func TestAnalyzeClaims_Outliers(t *testing.T) {
	amounts := []RawValue{"10", "10", "10", "10", "10", "10", "10", "10", "10", "10", "1000"}
	s := AnalyzeClaims(ClaimTable{Rows: claimsWithAmounts("A", amounts...)}, DefaultThresholds())
	if s.LargeOutliers == nil || *s.LargeOutliers != 1 {
		t.Fatalf("outliers=%v", s.LargeOutliers)
	}
	if s.LargeOutlierPct == nil || math.Abs(*s.LargeOutlierPct-100.0/11.0) > 1e-9 {
		t.Fatalf("pct=%v", s.LargeOutlierPct)
	}
}

func TestAnalyzeClaims_ZeroOrUndefinedStdSkipsOutliers(t *testing.T) {
	t.Run("all equal", func(t *testing.T) {
		s := AnalyzeClaims(ClaimTable{Rows: claimsWithAmounts("A", "5", "5", "5")}, DefaultThresholds())
		if s.LargeOutliers != nil || s.LargeOutlierPct != nil {
			t.Fatalf("outliers=%v pct=%v", s.LargeOutliers, s.LargeOutlierPct)
		}
	})
	t.Run("single amount", func(t *testing.T) {
		s := AnalyzeClaims(ClaimTable{Rows: claimsWithAmounts("A", "5", "x")}, DefaultThresholds())
		if s.StdAmount.IsDefined() {
			t.Fatalf("std=%v", s.StdAmount)
		}
		if s.LargeOutliers != nil {
			t.Fatalf("outliers=%v", *s.LargeOutliers)
		}
	})
}

func TestAnalyzeClaims_ThresholdSplitting(t *testing.T) {
	t.Run("three just below 10000 is flagged", func(t *testing.T) {
		s := AnalyzeClaims(ClaimTable{Rows: claimsWithAmounts("A", "9500", "9600", "9700")}, DefaultThresholds())
		if len(s.ThresholdSplitting) != 1 {
			t.Fatalf("splits=%+v", s.ThresholdSplitting)
		}
		got := s.ThresholdSplitting[0]
		if got.Department != "A" || got.Threshold != 10000 || got.Count != 3 || got.TotalAmount != 28800 {
			t.Fatalf("got=%+v", got)
		}
	})

	t.Run("two is not flagged", func(t *testing.T) {
		s := AnalyzeClaims(ClaimTable{Rows: claimsWithAmounts("A", "9500", "9600", "100")}, DefaultThresholds())
		if s.ThresholdSplitting == nil || len(s.ThresholdSplitting) != 0 {
			t.Fatalf("splits=%+v", s.ThresholdSplitting)
		}
	})

	t.Run("band is inclusive below, exclusive at threshold", func(t *testing.T) {
		s := AnalyzeClaims(ClaimTable{Rows: claimsWithAmounts("A", "9000", "9999.99", "9500", "10000", "8999.99")}, DefaultThresholds())
		if len(s.ThresholdSplitting) != 1 || s.ThresholdSplitting[0].Count != 3 {
			t.Fatalf("splits=%+v", s.ThresholdSplitting)
		}
	})

	t.Run("departments are independent", func(t *testing.T) {
		rows := append(claimsWithAmounts("A", "9500", "9600"), claimsWithAmounts("B", "9700", "46000", "47000", "48000")...)
		s := AnalyzeClaims(ClaimTable{Rows: rows}, DefaultThresholds())
		if len(s.ThresholdSplitting) != 1 {
			t.Fatalf("splits=%+v", s.ThresholdSplitting)
		}
		got := s.ThresholdSplitting[0]
		if got.Department != "B" || got.Threshold != 50000 || got.Count != 3 || got.TotalAmount != 141000 {
			t.Fatalf("got=%+v", got)
		}
	})

	t.Run("no department column", func(t *testing.T) {
		claims := ClaimTable{
			Columns: Columns{ColClaimID, ColAmount},
			Rows:    claimsWithAmounts("A", "9500", "9600", "9700"),
		}
		s := AnalyzeClaims(claims, DefaultThresholds())
		if s.ThresholdSplitting != nil {
			t.Fatalf("splits=%+v", s.ThresholdSplitting)
		}
	})
}

func TestAnalyzeClaims_MissingAmountColumn(t *testing.T) {
	claims := ClaimTable{Columns: Columns{ColClaimID}, Rows: claimsWithAmounts("A", "1")}
	s := AnalyzeClaims(claims, DefaultThresholds())
	if s.Error == "" {
		t.Fatal("expected error")
	}
}
