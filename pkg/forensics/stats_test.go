package forensics

import (
	"math"
	"testing"
)

func TestMedian(t *testing.T) {
	if got := median([]float64{3, 1, 2}).Or(-1); got != 2 {
		t.Fatalf("odd got=%v", got)
	}
	if got := median([]float64{4, 1, 3, 2}).Or(-1); got != 2.5 {
		t.Fatalf("even got=%v", got)
	}
	if median(nil).IsDefined() {
		t.Fatal("empty median must be undefined")
	}
}

func TestMedian_DoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_ = median(in)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Fatalf("in=%v", in)
	}
}

func TestSampleStd(t *testing.T) {
	if sampleStd([]float64{5}).IsDefined() {
		t.Fatal("single value std must be undefined")
	}
	got := sampleStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}).Or(-1)
	want := math.Sqrt(32.0 / 7.0)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestRatio(t *testing.T) {
	if ratio(Defined(1), Defined(0)).IsDefined() {
		t.Fatal("zero divisor must be undefined")
	}
	if ratio(Defined(1), Undefined).IsDefined() {
		t.Fatal("undefined divisor must be undefined")
	}
	if ratio(Undefined, Defined(2)).IsDefined() {
		t.Fatal("undefined numerator must be undefined")
	}
	if got := ratio(Defined(1), Defined(4)).Or(-1); got != 0.25 {
		t.Fatalf("got=%v", got)
	}
}

func TestPercentOf(t *testing.T) {
	if got := percentOf(1, 0); got != 0 {
		t.Fatalf("got=%v", got)
	}
	if got := percentOf(1, 4); got != 25 {
		t.Fatalf("got=%v", got)
	}
}
