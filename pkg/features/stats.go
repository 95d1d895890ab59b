package features

import (
	"math"
	"sort"
)

// MinSampleSize is the smallest number of non-null values for which
// quartiles are computed
const MinSampleSize = 4

// DefaultK is the IQR multiplier used for the fences
const DefaultK = 1.5

// Fences are the IQR outlier bounds for one column
type Fences struct {
	Q1   float64
	Q3   float64
	IQR  float64
	Low  float64
	High float64
}

// Quantile returns the p-quantile of an ascending sorted sample using
// linear interpolation between closest ranks at position p*(n-1)
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Quartiles returns Q1 and Q3 of values. The input is not modified.
func Quartiles(values []float64) (q1, q3 float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return Quantile(sorted, 0.25), Quantile(sorted, 0.75)
}

// ComputeFences derives the IQR fences for values. It returns false when
// fewer than MinSampleSize values are given.
func ComputeFences(values []float64, k float64) (Fences, bool) {
	if len(values) < MinSampleSize {
		return Fences{}, false
	}

	q1, q3 := Quartiles(values)
	iqr := q3 - q1
	return Fences{
		Q1:   q1,
		Q3:   q3,
		IQR:  iqr,
		Low:  q1 - k*iqr,
		High: q3 + k*iqr,
	}, true
}

// IsOutlier reports whether v lies strictly outside the fences
func (f Fences) IsOutlier(v float64) bool {
	return v < f.Low || v > f.High
}

// Clip clamps v into [Low, High]
func (f Fences) Clip(v float64) float64 {
	if v < f.Low {
		return f.Low
	}
	if v > f.High {
		return f.High
	}
	return v
}

// Winsorize clips v into the fences. A nil value stays nil.
func Winsorize(v *float64, f Fences) *float64 {
	if v == nil {
		return nil
	}
	clipped := f.Clip(*v)
	return &clipped
}

// CountOutliers counts values outside the fences
func CountOutliers(values []float64, f Fences) int {
	count := 0
	for _, v := range values {
		if f.IsOutlier(v) {
			count++
		}
	}
	return count
}
