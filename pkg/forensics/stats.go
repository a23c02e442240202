package forensics

import (
	"math"
	"slices"
)

// defined collects the defined values of nums, preserving order.
func defined(nums []Num) []float64 {
	out := make([]float64, 0, len(nums))
	for _, n := range nums {
		if v, ok := n.Value(); ok {
			out = append(out, v)
		}
	}
	return out
}

// sum of an empty set is 0, matching "nothing recorded".
func sum(vs []float64) float64 {
	var s float64
	for _, v := range vs {
		s += v
	}
	return s
}

func mean(vs []float64) Num {
	if len(vs) == 0 {
		return Undefined
	}
	return Defined(sum(vs) / float64(len(vs)))
}

func median(vs []float64) Num {
	if len(vs) == 0 {
		return Undefined
	}
	sorted := slices.Clone(vs)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return Defined(sorted[mid])
	}
	return Defined((sorted[mid-1] + sorted[mid]) / 2)
}

func minOf(vs []float64) Num {
	if len(vs) == 0 {
		return Undefined
	}
	return Defined(slices.Min(vs))
}

func maxOf(vs []float64) Num {
	if len(vs) == 0 {
		return Undefined
	}
	return Defined(slices.Max(vs))
}

// sampleStd is the n-1 standard deviation; undefined below two values.
func sampleStd(vs []float64) Num {
	if len(vs) < 2 {
		return Undefined
	}
	m := sum(vs) / float64(len(vs))
	var ss float64
	for _, v := range vs {
		d := v - m
		ss += d * d
	}
	return Defined(math.Sqrt(ss / float64(len(vs)-1)))
}

// ratio returns num/den, undefined when den is undefined or zero.
func ratio(num, den Num) Num {
	n, nok := num.Value()
	d, dok := den.Value()
	if !nok || !dok || d == 0 {
		return Undefined
	}
	return Defined(n / d)
}

// percentOf returns part/whole*100, or 0 when whole is 0.
func percentOf(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
