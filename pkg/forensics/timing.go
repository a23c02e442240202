package forensics

import (
	"slices"
	"time"
)

type TimingPatterns struct {
	Error string `json:"-"`

	ValidTimestamps      int              `json:"valid_timestamps"`
	DayOfWeekPatterns    []DayOfWeekTotal `json:"day_of_week_patterns"`
	LateNightSubmissions Bucket           `json:"late_night_submissions"`
	WeekendSubmissions   Bucket           `json:"weekend_submissions"`
	MonthEndRush         Bucket           `json:"month_end_rush"`
	QuarterEndRush       Bucket           `json:"quarter_end_rush"`
}

func (t TimingPatterns) MarshalJSON() ([]byte, error) {
	type plain TimingPatterns
	return marshalSection(t.Error, plain(t))
}

type DayOfWeekTotal struct {
	DayOfWeek   int     `json:"day_of_week"`
	ClaimCount  int     `json:"claim_count"`
	TotalAmount float64 `json:"total_amount"`
}

// Bucket summarizes the claims matching one timing flag. Percentage is relative
// to claims with a parseable timestamp.
type Bucket struct {
	Count       int     `json:"count"`
	Percentage  float64 `json:"percentage"`
	TotalAmount float64 `json:"total_amount"`
}

type timedClaim struct {
	at     time.Time
	amount Num
}

func (c timedClaim) dayOfWeek() int { return weekdayIndex(c.at) }
func (c timedClaim) hour() int      { return c.at.Hour() }
func (c timedClaim) weekend() bool  { return c.dayOfWeek() >= 5 }

// AnalyzeTiming derives weekday and hour features from create_time and reports
// late-night, weekend and end-of-period clustering. Rows whose timestamp does
// not parse are left out of this analysis only.
func AnalyzeTiming(claims ClaimTable, th Thresholds) TimingPatterns {
	if !claims.Has(ColCreateTime) {
		return TimingPatterns{Error: "claims data missing create_time field"}
	}

	withAmount := claims.Has(ColAmount)
	valid := make([]timedClaim, 0, len(claims.Rows))
	for _, c := range claims.Rows {
		at, ok := ParseTimestamp(c.CreateTime)
		if !ok {
			continue
		}
		tc := timedClaim{at: at}
		if withAmount {
			tc.amount = ParseAmount(c.Amount)
		}
		valid = append(valid, tc)
	}
	if len(valid) == 0 {
		return TimingPatterns{Error: "no valid timestamp data available"}
	}

	var days [7]DayOfWeekTotal
	for _, c := range valid {
		d := &days[c.dayOfWeek()]
		d.ClaimCount++
		d.TotalAmount += c.amount.Or(0)
	}
	patterns := make([]DayOfWeekTotal, 0, 7)
	for i, d := range days {
		if d.ClaimCount == 0 {
			continue
		}
		d.DayOfWeek = i
		patterns = append(patterns, d)
	}

	return TimingPatterns{
		ValidTimestamps:   len(valid),
		DayOfWeekPatterns: patterns,
		LateNightSubmissions: bucket(valid, func(c timedClaim) bool {
			return slices.Contains(th.LateNightHours, c.hour())
		}),
		WeekendSubmissions: bucket(valid, timedClaim.weekend),
		MonthEndRush: bucket(valid, func(c timedClaim) bool {
			return c.at.Day() >= th.MonthEndDay
		}),
		QuarterEndRush: bucket(valid, func(c timedClaim) bool {
			return slices.Contains(th.QuarterEndMonths, int(c.at.Month())) && c.at.Day() >= th.MonthEndDay
		}),
	}
}

func bucket(claims []timedClaim, match func(timedClaim) bool) Bucket {
	var b Bucket
	for _, c := range claims {
		if !match(c) {
			continue
		}
		b.Count++
		b.TotalAmount += c.amount.Or(0)
	}
	b.Percentage = percentOf(b.Count, len(claims))
	return b
}
