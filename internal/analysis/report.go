package analysis

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/datana-cli/internal/colmap"
)

// Markdown renders a compact report suitable for prompts or standalone docs.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.File != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.File))
	}
	if r.Sheet != "" {
		b.WriteString(fmt.Sprintf("Sheet: %s\n", r.Sheet))
	}
	b.WriteString(fmt.Sprintf("Rows: %d", r.KPI.RowCount))
	if r.KPI.SkippedRows > 0 {
		b.WriteString(fmt.Sprintf(" (skipped %d)", r.KPI.SkippedRows))
	}
	b.WriteString("\n\n")

	b.WriteString("[KPI]\n")
	b.WriteString(fmt.Sprintf("- Total revenue: %s\n", FormatAmount(r.KPI.TotalRevenue)))
	b.WriteString(fmt.Sprintf("- Total profit: %s\n", FormatAmount(r.KPI.TotalProfit)))
	b.WriteString(fmt.Sprintf("- Total quantity: %s\n", FormatAmount(r.KPI.TotalQuantity)))
	b.WriteString(fmt.Sprintf("- Average margin: %.2f%%\n", r.KPI.AverageMargin))
	b.WriteString(fmt.Sprintf("- Unique products: %d\n", r.KPI.UniqueProducts))
	b.WriteString(fmt.Sprintf("- Average revenue per row: %s\n", FormatAmount(r.KPI.AverageOrderValue)))

	b.WriteString("\n[DETECTED COLUMNS]\n")
	for _, f := range colmap.Fields {
		a, ok := r.Columns[f]
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("- %s: %s (%s)\n", f, safeVal(a.Header), a.Source))
	}
	if len(r.Missing) > 0 {
		names := make([]string, len(r.Missing))
		for i, f := range r.Missing {
			names[i] = string(f)
		}
		b.WriteString(fmt.Sprintf("- not found: %s\n", strings.Join(names, ", ")))
	}

	if len(r.TopProducts) > 0 {
		b.WriteString("\n[TOP PRODUCTS]\n")
		b.WriteString("| Product | Revenue | Profit | Quantity | Margin |\n")
		b.WriteString("| --- | --- | --- | --- | --- |\n")
		for _, p := range r.TopProducts {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.1f%% |\n",
				safeVal(p.Product), FormatAmount(p.Revenue), FormatAmount(p.Profit), FormatAmount(p.Quantity), p.Margin))
		}
	}
	if len(r.RevenueByMonth) > 0 {
		b.WriteString("\n[REVENUE BY MONTH]\n")
		for _, p := range r.RevenueByMonth {
			b.WriteString(fmt.Sprintf("- %s: %s (profit %s)\n", p.Month, FormatAmount(p.Revenue), FormatAmount(p.Profit)))
		}
	}
	writeGroups(&b, "BY BRAND", r.ByBrand)
	writeGroups(&b, "BY CATEGORY", r.ByCategory)
	writeGroups(&b, "BY REGION", r.ByRegion)

	b.WriteString("\n[SCHEMA]\n")
	for _, c := range r.Profile {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case KindNumeric:
			b.WriteString(fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
			if c.OutlierThreshold > 0 && c.OutliersCount > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
			}
		case KindCategorical:
			if len(c.TopValues) > 0 {
				b.WriteString("; top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		case KindText:
			if len(c.ExampleTexts) > 0 {
				b.WriteString("; e.g., ")
				for i, ex := range c.ExampleTexts {
					if i > 0 {
						b.WriteString(" | ")
					}
					b.WriteString(safeVal(ex))
				}
			}
		}
		b.WriteString("\n")
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeGroups(b *strings.Builder, title string, gs []GroupMetric) {
	if len(gs) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("\n[%s]\n", title))
	lim := len(gs)
	if lim > 10 {
		lim = 10
	}
	for _, g := range gs[:lim] {
		b.WriteString(fmt.Sprintf("- %s: %s (%.1f%% of revenue, margin %.1f%%, n=%d)\n",
			safeVal(g.Key), FormatAmount(g.Revenue), g.Share, g.Margin, g.Rows))
	}
	if len(gs) > lim {
		b.WriteString(fmt.Sprintf("- ... and %d more\n", len(gs)-lim))
	}
}

// FormatAmount prints a number with comma thousands and at most two decimals:
// 1234567.891 -> "1,234,567.89".
func FormatAmount(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	intPart, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
