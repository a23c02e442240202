package forensics

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Num is a float that may be undefined. Undefined values are skipped by every
// aggregate and marshal as JSON null.
type Num struct {
	v  float64
	ok bool
}

// Undefined is the zero Num.
var Undefined = Num{}

// Defined wraps v. NaN and infinities collapse to Undefined.
func Defined(v float64) Num {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined
	}
	return Num{v: v, ok: true}
}

func (n Num) Value() (float64, bool) { return n.v, n.ok }

func (n Num) IsDefined() bool { return n.ok }

// Or returns the value or def when undefined.
func (n Num) Or(def float64) float64 {
	if !n.ok {
		return def
	}
	return n.v
}

func (n Num) MarshalJSON() ([]byte, error) {
	if !n.ok {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.v, 'f', -1, 64)), nil
}

func (n *Num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = Undefined
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Defined(f)
	return nil
}

func (n Num) String() string {
	if !n.ok {
		return "undefined"
	}
	return strconv.FormatFloat(n.v, 'f', -1, 64)
}

// RawValue keeps a cell exactly as supplied. JSON numbers and strings are both
// accepted; null becomes the empty string.
type RawValue string

func (r *RawValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*r = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = RawValue(s)
		return nil
	default:
		*r = RawValue(b)
		return nil
	}
}

// ParseAmount coerces a raw amount. Anything that is not a finite decimal number
// is undefined, never zero.
func ParseAmount(raw RawValue) Num {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return Undefined
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Undefined
	}
	f, _ := d.Float64()
	return Defined(f)
}
