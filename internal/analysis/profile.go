package analysis

import (
	"math"
	"sort"

	"github.com/KaramelBytes/datana-cli/internal/cleaning"
	"github.com/KaramelBytes/datana-cli/internal/parser"
)

// Column kinds reported by Profile.
const (
	KindNumeric     = "numeric"
	KindDatetime    = "datetime"
	KindCategorical = "categorical"
	KindText        = "text"
	KindEmpty       = "empty"
)

// ColumnSummary captures inferred type and statistics per column.
type ColumnSummary struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	NonNull int    `json:"non_null"`
	Missing int    `json:"missing"`
	Unique  int    `json:"unique,omitempty"`
	// Numeric stats
	Min  float64 `json:"min,omitempty"`
	Max  float64 `json:"max,omitempty"`
	Mean float64 `json:"mean,omitempty"`
	Std  float64 `json:"std,omitempty"`
	// Outliers (robust Z via MAD)
	OutliersCount    int     `json:"outliers,omitempty"`
	OutliersMaxAbsZ  float64 `json:"outliers_max_abs_z,omitempty"`
	OutlierThreshold float64 `json:"outlier_threshold,omitempty"`
	// Categorical top values
	TopValues    []CategoryCount `json:"top_values,omitempty"`
	ExampleTexts []string        `json:"examples,omitempty"`
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ProfileOptions tunes Profile.
type ProfileOptions struct {
	Number cleaning.NumberOptions
	// OutlierThreshold is the |z| cut-off; 0 means 3.5.
	OutlierThreshold float64
}

type colAcc struct {
	nonNil, miss int
	// numeric stats via Welford
	n        int
	mean, m2 float64
	min, max float64
	vals     []float64
	numCnt   int
	dtCnt    int
	txtCnt   int
	cats     map[string]int
	exText   []string
}

// Profile infers a kind for each column of t and summarizes it. Dates are
// checked before numbers so "2024-01-02" is not read as 2024.
func Profile(t *parser.Table, opt ProfileOptions) []ColumnSummary {
	ncol := len(t.Header)
	cols := make([]*colAcc, ncol)
	for i := range cols {
		cols[i] = &colAcc{min: math.Inf(1), max: math.Inf(-1), cats: map[string]int{}}
	}
	for _, rec := range t.Rows {
		for j := 0; j < ncol && j < len(rec); j++ {
			v := rec[j]
			c := cols[j]
			if v == "" {
				c.miss++
				continue
			}
			c.nonNil++
			if cleaning.LooksLikeDate(v) {
				c.dtCnt++
				continue
			}
			if cleaning.IsNumeric(v) {
				if x, ok := cleaning.ParseNumber(v, opt.Number); ok {
					c.numCnt++
					c.n++
					if x < c.min {
						c.min = x
					}
					if x > c.max {
						c.max = x
					}
					delta := x - c.mean
					c.mean += delta / float64(c.n)
					c.m2 += delta * (x - c.mean)
					c.vals = append(c.vals, x)
					continue
				}
			}
			c.txtCnt++
			if len(c.cats) <= 10000 && len(v) <= 64 {
				c.cats[v]++
			}
			if len(c.exText) < 3 {
				c.exText = append(c.exText, v)
			}
		}
	}

	thr := opt.OutlierThreshold
	if thr <= 0 {
		thr = 3.5
	}
	out := make([]ColumnSummary, 0, ncol)
	for idx, c := range cols {
		s := ColumnSummary{Name: t.Header[idx], NonNull: c.nonNil, Missing: c.miss, Kind: KindEmpty}
		switch {
		case c.numCnt > 0 && c.numCnt >= c.dtCnt && c.numCnt >= c.txtCnt:
			s.Kind = KindNumeric
			s.Min, s.Max, s.Mean = c.min, c.max, c.mean
			if c.n > 1 {
				s.Std = math.Sqrt(c.m2 / float64(c.n-1))
			}
			if len(c.vals) >= 8 {
				s.OutliersCount, s.OutliersMaxAbsZ = robustOutliers(c.vals, thr)
				s.OutlierThreshold = thr
			}
		case c.dtCnt > 0 && c.dtCnt >= c.txtCnt:
			s.Kind = KindDatetime
		case len(c.cats) > 0 && len(c.cats) < c.txtCnt:
			s.Kind = KindCategorical
			s.TopValues = topCounts(c.cats, 8)
			s.Unique = len(c.cats)
		case c.txtCnt > 0:
			s.Kind = KindText
			s.Unique = len(c.cats)
			s.ExampleTexts = c.exText
		}
		out = append(out, s)
	}
	return out
}

func topCounts(m map[string]int, limit int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(m))
	for k, v := range m {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > limit {
		tops = tops[:limit]
	}
	return tops
}

// robustOutliers counts values with |0.6745*(x-median)/MAD| above thr.
func robustOutliers(vals []float64, thr float64) (count int, maxAbsZ float64) {
	median, mad := medianMAD(vals)
	if mad == 0 {
		return 0, 0
	}
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			count++
		}
		if az > maxAbsZ {
			maxAbsZ = az
		}
	}
	return count, maxAbsZ
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
