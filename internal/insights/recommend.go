// Package insights turns an analysis.Result into recommendations, either from
// fixed rules or by preparing a prompt for a language model.
package insights

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/datana-cli/internal/analysis"
	"github.com/KaramelBytes/datana-cli/internal/colmap"
)

// Recommendations groups suggestions by audience.
type Recommendations struct {
	Product   []string `json:"product_suggestions"`
	Region    []string `json:"region_suggestions"`
	Customer  []string `json:"customer_suggestions"`
	Marketing []string `json:"marketing_suggestions"`
	Overall   []string `json:"overall_strategy"`
}

// Thresholds are the cut-offs used by the rules. Money values are in the
// sheet's currency.
type Thresholds struct {
	GrowthPct      float64 // month-over-month change counted as growth
	DropPct        float64 // negative change counted as a drop
	PeakRatio      float64 // month revenue / average counted as a peak
	LowRatio       float64
	SeasonalMonths int // months of history before seasonality is judged
	LowRevenue     float64
	LowQuantity    float64
	LowMarginPct   float64
	HighMarginPct  float64
	WeakRegion     float64 // worst/best revenue ratio flagged as weak
}

// DefaultThresholds are tuned for VND-denominated retail sheets.
func DefaultThresholds() Thresholds {
	return Thresholds{
		GrowthPct:      15,
		DropPct:        -10,
		PeakRatio:      1.2,
		LowRatio:       0.8,
		SeasonalMonths: 6,
		LowRevenue:     200000,
		LowQuantity:    10,
		LowMarginPct:   5,
		HighMarginPct:  25,
		WeakRegion:     0.6,
	}
}

// Bucket limits.
const (
	maxProduct   = 8
	maxRegion    = 5
	maxCustomer  = 5
	maxMarketing = 6
	maxOverall   = 6
)

// Options controls Recommend.
type Options struct {
	Lang       string
	Thresholds Thresholds
}

// Recommend applies the rule set to r.
func Recommend(r *analysis.Result, opt Options) Recommendations {
	msgs := catalog[NormalizeLang(opt.Lang)]
	th := opt.Thresholds
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	say := func(k msgKey, args ...any) string { return fmt.Sprintf(msgs[k], args...) }
	var rec Recommendations
	if r == nil {
		rec.Overall = []string{say(msgNotEnoughData)}
		return rec
	}
	_, hasProfit := r.Columns[colmap.Profit]

	// trend
	months := r.RevenueByMonth
	if n := len(months); n >= 2 {
		last, prev := months[n-1], months[n-2]
		if prev.Revenue > 0 {
			change := (last.Revenue - prev.Revenue) / prev.Revenue * 100
			switch {
			case change > th.GrowthPct:
				rec.Marketing = append(rec.Marketing, say(msgGrowth, last.Month, change, prev.Month))
			case change < th.DropPct:
				rec.Overall = append(rec.Overall, say(msgDrop, math.Abs(change), prev.Month))
			default:
				rec.Overall = append(rec.Overall, say(msgStable, change, prev.Month))
			}
		}
	}
	// seasonality
	if len(months) >= th.SeasonalMonths {
		var sum float64
		for _, m := range months {
			sum += m.Revenue
		}
		avg := sum / float64(len(months))
		var highs, lows []string
		for _, m := range months {
			switch {
			case m.Revenue > th.PeakRatio*avg:
				highs = append(highs, m.Month)
			case m.Revenue < th.LowRatio*avg:
				lows = append(lows, m.Month)
			}
		}
		if len(highs) > 0 {
			rec.Overall = append(rec.Overall, say(msgPeakMonths, strings.Join(tail(highs, 3), ", ")))
		}
		if len(lows) > 0 {
			rec.Overall = append(rec.Overall, say(msgLowMonths, strings.Join(tail(lows, 3), ", ")))
		}
	}

	// products
	for _, p := range head(r.TopProducts, 5) {
		rec.Product = append(rec.Product, say(msgPromote, p.Product, money(p.Revenue), money(p.Profit)))
	}
	var low, high []string
	for _, p := range r.Products {
		switch {
		case p.Revenue < th.LowRevenue && p.Quantity < th.LowQuantity:
			low = append(low, p.Product)
		case hasProfit && p.Revenue > 0 && p.Margin < th.LowMarginPct:
			low = append(low, p.Product)
		}
		if hasProfit && p.Margin > th.HighMarginPct {
			high = append(high, p.Product)
		}
	}
	if len(low) > 0 {
		rec.Product = append(rec.Product, say(msgLowPerformers, strings.Join(head(low, 8), ", ")))
		rec.Overall = append(rec.Overall, say(msgPrunePortfolio))
	}
	if len(high) > 0 {
		rec.Overall = append(rec.Overall, say(msgHighMargin, strings.Join(head(high, 5), ", ")))
	}

	// regions
	if rg := r.ByRegion; len(rg) > 0 {
		best := rg[0]
		rec.Region = append(rec.Region, say(msgBestRegion, best.Key, money(best.Revenue)))
		if len(rg) > 1 {
			worst := rg[len(rg)-1]
			if best.Revenue > 0 && worst.Revenue/math.Max(best.Revenue, 1) < th.WeakRegion {
				rec.Region = append(rec.Region, say(msgWeakRegion, worst.Key, best.Key))
			}
		}
	}

	// customer segments, read from the category grouping
	if _, ok := r.Columns[colmap.Category]; ok {
		for _, g := range head(r.ByCategory, 3) {
			rec.Customer = append(rec.Customer, say(msgSegment, g.Key, money(g.Revenue)))
		}
	}

	if len(r.TopProducts) >= 2 {
		rec.Marketing = append(rec.Marketing, say(msgCrossSell, r.TopProducts[1].Product, r.TopProducts[0].Product))
	}
	if r.KPI.RowCount > 0 {
		rec.Marketing = append(rec.Marketing, say(msgABTest), say(msgROAS))
		rec.Overall = append(rec.Overall, say(msgSupplyChain))
	}

	rec.Product = takeUnique(rec.Product, maxProduct)
	rec.Region = takeUnique(rec.Region, maxRegion)
	rec.Customer = takeUnique(rec.Customer, maxCustomer)
	rec.Marketing = takeUnique(rec.Marketing, maxMarketing)
	rec.Overall = takeUnique(rec.Overall, maxOverall)
	if rec.Empty() {
		rec.Overall = []string{say(msgNotEnoughData)}
	}
	return rec
}

// Empty reports whether every bucket is empty.
func (r Recommendations) Empty() bool {
	return len(r.Product)+len(r.Region)+len(r.Customer)+len(r.Marketing)+len(r.Overall) == 0
}

// Markdown renders the buckets as headed lists.
func (r Recommendations) Markdown() string {
	var b strings.Builder
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("## " + title + "\n")
		for _, it := range items {
			b.WriteString("- " + it + "\n")
		}
		b.WriteString("\n")
	}
	section("Products", r.Product)
	section("Regions", r.Region)
	section("Customers", r.Customer)
	section("Marketing", r.Marketing)
	section("Overall strategy", r.Overall)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// takeUnique keeps the first occurrence of each item, up to limit.
func takeUnique(items []string, limit int) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, limit)
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func money(v float64) string { return analysis.FormatAmount(math.Round(v)) }

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func tail(s []string, n int) []string {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
