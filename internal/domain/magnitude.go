package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// thresholds are the slider stops, ascending. Index i selects the range
// [thresholds[i], thresholds[i+1]).
var thresholds = [...]float64{2, 2.5, 3, 3.5, 4, 4.5, 5, 5.5, 6, 6.5, 7, 7.5, 8}

// BucketCount is the number of magnitude buckets.
const BucketCount = len(thresholds)

var (
	// ErrBucketOutOfRange is returned for an index outside [0, BucketCount).
	ErrBucketOutOfRange = errors.New("magnitude bucket out of range")

	// ErrUnknownMagnitude is returned for a blank magnitude or the JMA
	// "not yet determined" marker.
	ErrUnknownMagnitude = errors.New("unknown magnitude")

	// ErrMalformedMagnitude is returned when the magnitude is not a number.
	ErrMalformedMagnitude = errors.New("malformed magnitude")
)

// Bucket is a half-open magnitude range [Min, Max). Max is +Inf for the
// last bucket.
type Bucket struct {
	Index int
	Min   float64
	Max   float64
}

// Thresholds returns a copy of the bucket thresholds.
func Thresholds() []float64 {
	out := make([]float64, BucketCount)
	copy(out, thresholds[:])
	return out
}

// BucketAt returns the bucket at index.
func BucketAt(index int) (Bucket, error) {
	if index < 0 || index >= BucketCount {
		return Bucket{}, fmt.Errorf("%w: %d not in [0, %d]", ErrBucketOutOfRange, index, BucketCount-1)
	}
	b := Bucket{Index: index, Min: thresholds[index], Max: math.Inf(1)}
	if index+1 < BucketCount {
		b.Max = thresholds[index+1]
	}
	return b, nil
}

// ClampBucket returns the bucket at index, clamping the index into range.
func ClampBucket(index int) Bucket {
	index = max(0, min(index, BucketCount-1))
	b, _ := BucketAt(index)
	return b
}

// Buckets returns every bucket in ascending order.
func Buckets() []Bucket {
	out := make([]Bucket, BucketCount)
	for i := range out {
		out[i], _ = BucketAt(i)
	}
	return out
}

// BucketFor returns the bucket containing mag. Magnitudes below the first
// threshold, and NaN, belong to no bucket.
func BucketFor(mag float64) (Bucket, bool) {
	if math.IsNaN(mag) || mag < thresholds[0] {
		return Bucket{}, false
	}
	i := sort.Search(BucketCount, func(i int) bool { return thresholds[i] > mag }) - 1
	b, err := BucketAt(i)
	return b, err == nil
}

// Unbounded reports whether the bucket has no upper limit.
func (b Bucket) Unbounded() bool { return math.IsInf(b.Max, 1) }

// Contains reports whether Min <= mag < Max.
func (b Bucket) Contains(mag float64) bool {
	return mag >= b.Min && mag < b.Max
}

// Label is the value shown next to the slider for this bucket.
func (b Bucket) Label() string {
	return strconv.FormatFloat(b.Min, 'f', -1, 64)
}

// FilterExpression returns the Mapbox GL filter selecting features whose
// "mag" property lies in the bucket. The unbounded bucket omits the upper
// clause since JSON has no Infinity.
func (b Bucket) FilterExpression() []any {
	get := []any{"get", "mag"}
	expr := []any{"all", []any{">=", get, b.Min}}
	if !b.Unbounded() {
		expr = append(expr, []any{"<", get, b.Max})
	}
	return expr
}

// MarshalJSON encodes the bucket with a null max when unbounded.
func (b Bucket) MarshalJSON() ([]byte, error) {
	var upper *float64
	if !b.Unbounded() {
		upper = &b.Max
	}
	return json.Marshal(struct {
		Index int      `json:"index"`
		Min   float64  `json:"min"`
		Max   *float64 `json:"max"`
		Label string   `json:"label"`
	}{b.Index, b.Min, upper, b.Label()})
}

// ParseMagnitude parses a string-typed magnitude. Only plain decimals with an
// optional sign are accepted.
func ParseMagnitude(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "不明") {
		return 0, ErrUnknownMagnitude
	}
	if !isDecimal(strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedMagnitude, s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedMagnitude, s)
	}
	return v, nil
}
