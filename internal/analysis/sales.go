// Package analysis computes sales KPIs, groupings and column profiles from a
// loaded spreadsheet.
package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/datana-cli/internal/cleaning"
	"github.com/KaramelBytes/datana-cli/internal/colmap"
	"github.com/KaramelBytes/datana-cli/internal/parser"
	"github.com/shopspring/decimal"
)

// Defaults for unmapped or empty label cells.
const (
	UnknownProduct  = "Unknown"
	DefaultBrand    = "Other"
	DefaultCategory = "General"
	DefaultRegion   = "Other"
)

// ErrNoUsableColumns is returned when no sales field could be mapped.
var ErrNoUsableColumns = errors.New("no sales columns recognized")

// Options controls Analyze.
type Options struct {
	Number    cleaning.NumberOptions
	Overrides map[colmap.Field]string
	// TopN bounds TopProducts; 0 means 10.
	TopN int
	// KeepRecords includes cleaned rows in the Result.
	KeepRecords bool
	Profile     ProfileOptions
}

// DefaultOptions returns reasonable defaults for sales analysis.
func DefaultOptions() Options {
	return Options{TopN: 10, KeepRecords: true}
}

// Record is one cleaned sales row.
type Record struct {
	Product        string  `json:"product"`
	Brand          string  `json:"brand"`
	Category       string  `json:"category"`
	Region         string  `json:"region"`
	Date           string  `json:"date,omitempty"`
	Month          string  `json:"month,omitempty"`
	Quantity       float64 `json:"quantity"`
	Price          float64 `json:"price"`
	Revenue        float64 `json:"revenue"`
	Profit         float64 `json:"profit"`
	RevenueDerived bool    `json:"revenue_derived,omitempty"`
}

// KPI is the headline summary of a sheet.
type KPI struct {
	TotalRevenue      float64 `json:"total_revenue"`
	TotalProfit       float64 `json:"total_profit"`
	TotalQuantity     float64 `json:"total_quantity"`
	RowCount          int     `json:"row_count"`
	SkippedRows       int     `json:"skipped_rows"`
	AverageMargin     float64 `json:"average_margin"`
	UniqueProducts    int     `json:"unique_products"`
	AverageOrderValue float64 `json:"average_order_value"`
}

// ProductMetric aggregates one product.
type ProductMetric struct {
	Product  string  `json:"product"`
	Revenue  float64 `json:"revenue"`
	Profit   float64 `json:"profit"`
	Quantity float64 `json:"quantity"`
	Margin   float64 `json:"margin"`
	Rows     int     `json:"rows"`
}

// GroupMetric aggregates one brand, category or region.
type GroupMetric struct {
	Key      string  `json:"key"`
	Revenue  float64 `json:"revenue"`
	Profit   float64 `json:"profit"`
	Quantity float64 `json:"quantity"`
	Margin   float64 `json:"margin"`
	Share    float64 `json:"share"`
	Rows     int     `json:"rows"`
}

// MonthPoint is one month of the time series.
type MonthPoint struct {
	Month    string  `json:"month"`
	Revenue  float64 `json:"revenue"`
	Profit   float64 `json:"profit"`
	Quantity float64 `json:"quantity"`
}

// CategoryNode and BrandNode form the brand > category > product tree.
type CategoryNode struct {
	Category string          `json:"category"`
	Revenue  float64         `json:"revenue"`
	Products []ProductMetric `json:"products"`
}

type BrandNode struct {
	Brand      string         `json:"brand"`
	Revenue    float64        `json:"revenue"`
	Categories []CategoryNode `json:"categories"`
}

// SmartSummary holds the groupings rendered as dashboard tables.
type SmartSummary struct {
	TopProducts     []ProductMetric   `json:"top_products"`
	TopByProfit     []ProductMetric   `json:"top_by_profit"`
	ByBrand         []GroupMetric     `json:"by_brand"`
	ByCategory      []GroupMetric     `json:"by_category"`
	Tree            []BrandNode       `json:"tree"`
	DetectedColumns map[string]string `json:"detected_columns"`
}

// Result is the full analysis of one sheet.
type Result struct {
	File           string                             `json:"file"`
	Sheet          string                             `json:"sheet,omitempty"`
	GeneratedAt    time.Time                          `json:"generated_at"`
	Columns        map[colmap.Field]colmap.Assignment `json:"columns"`
	Missing        []colmap.Field                     `json:"missing_fields,omitempty"`
	KPI            KPI                                `json:"kpi"`
	Products       []ProductMetric                    `json:"products"`
	TopProducts    []ProductMetric                    `json:"top_products"`
	RevenueByMonth []MonthPoint                       `json:"revenue_by_month"`
	ByBrand        []GroupMetric                      `json:"by_brand"`
	ByCategory     []GroupMetric                      `json:"by_category"`
	ByRegion       []GroupMetric                      `json:"by_region"`
	Smart          SmartSummary                       `json:"smart_summary"`
	Profile        []ColumnSummary                    `json:"profile"`
	Records        []Record                           `json:"records,omitempty"`
	Warnings       []string                           `json:"warnings,omitempty"`
}

// money accumulates exactly; floats are produced once at the end.
type money struct {
	revenue, profit, quantity decimal.Decimal
	rows                      int
}

func (m *money) add(r, p, q decimal.Decimal) {
	m.revenue = m.revenue.Add(r)
	m.profit = m.profit.Add(p)
	m.quantity = m.quantity.Add(q)
	m.rows++
}

func (m *money) margin() float64 {
	if !m.revenue.IsPositive() {
		return 0
	}
	return m.profit.Div(m.revenue).Mul(decimal.NewFromInt(100)).Round(4).InexactFloat64()
}

// grouped keeps insertion order so ties sort deterministically.
type grouped struct {
	order []string
	acc   map[string]*money
}

func newGrouped() *grouped { return &grouped{acc: map[string]*money{}} }

func (g *grouped) get(k string) *money {
	m, ok := g.acc[k]
	if !ok {
		m = &money{}
		g.acc[k] = m
		g.order = append(g.order, k)
	}
	return m
}

// Analyze maps the columns of t, cleans every row and aggregates.
func Analyze(t *parser.Table, opt Options) (*Result, error) {
	if t == nil || len(t.Header) == 0 {
		return nil, parser.ErrEmpty
	}
	topN := opt.TopN
	if topN <= 0 {
		topN = 10
	}
	if opt.Profile.Number == (cleaning.NumberOptions{}) {
		opt.Profile.Number = opt.Number
	}
	profile := Profile(t, opt.Profile)
	m, err := colmap.Match(t.Header, opt.Overrides)
	if err != nil {
		return nil, fmt.Errorf("map columns: %w", err)
	}
	m.InferDate(func(col int) bool { return profile[col].Kind == KindDatetime })
	if !m.Has(colmap.Revenue) && !m.Has(colmap.Quantity) && !m.Has(colmap.Price) && !m.Has(colmap.Profit) {
		return nil, fmt.Errorf("%w in %s (headers: %v)", ErrNoUsableColumns, t.Name, t.Header)
	}

	res := &Result{
		File:        t.Name,
		Sheet:       t.Sheet,
		GeneratedAt: time.Now().UTC(),
		Columns:     m.Assignments(),
		Missing:     m.Missing(),
		Profile:     profile,
		Warnings:    append([]string(nil), t.Warnings...),
	}
	var (
		total      money
		products   = newGrouped()
		brands     = newGrouped()
		categories = newGrouped()
		regions    = newGrouped()
		months     = newGrouped()
		tree       = map[string]map[string]*grouped{}
		badDates   int
		badCells   int
	)
	for _, row := range t.Rows {
		rec, vals, ok := cleanRow(m, row, opt.Number)
		badCells += vals.unreadable
		if !ok {
			res.KPI.SkippedRows++
			continue
		}
		if m.Has(colmap.Date) && rec.Month == "" && m.Value(row, colmap.Date) != "" {
			badDates++
		}
		total.add(vals.revenue, vals.profit, vals.quantity)
		products.get(rec.Product).add(vals.revenue, vals.profit, vals.quantity)
		brands.get(rec.Brand).add(vals.revenue, vals.profit, vals.quantity)
		categories.get(rec.Category).add(vals.revenue, vals.profit, vals.quantity)
		regions.get(rec.Region).add(vals.revenue, vals.profit, vals.quantity)
		if rec.Month != "" {
			months.get(rec.Month).add(vals.revenue, vals.profit, vals.quantity)
		}
		bc := tree[rec.Brand]
		if bc == nil {
			bc = map[string]*grouped{}
			tree[rec.Brand] = bc
		}
		if bc[rec.Category] == nil {
			bc[rec.Category] = newGrouped()
		}
		bc[rec.Category].get(rec.Product).add(vals.revenue, vals.profit, vals.quantity)
		if opt.KeepRecords {
			res.Records = append(res.Records, rec)
		}
	}

	res.KPI.RowCount = total.rows
	res.KPI.TotalRevenue = total.revenue.InexactFloat64()
	res.KPI.TotalProfit = total.profit.InexactFloat64()
	res.KPI.TotalQuantity = total.quantity.InexactFloat64()
	res.KPI.AverageMargin = total.margin()
	res.KPI.UniqueProducts = len(products.order)
	if total.rows > 0 {
		res.KPI.AverageOrderValue = total.revenue.Div(decimal.NewFromInt(int64(total.rows))).Round(2).InexactFloat64()
	}

	res.Products = productMetrics(products)
	res.TopProducts = head(res.Products, topN)
	res.ByBrand = groupMetrics(brands, total.revenue)
	res.ByCategory = groupMetrics(categories, total.revenue)
	if m.Has(colmap.Region) {
		res.ByRegion = groupMetrics(regions, total.revenue)
	}
	res.RevenueByMonth = monthSeries(months)

	byProfit := append([]ProductMetric(nil), res.Products...)
	sort.SliceStable(byProfit, func(i, j int) bool { return byProfit[i].Profit > byProfit[j].Profit })
	res.Smart = SmartSummary{
		TopProducts:     head(res.Products, 5),
		TopByProfit:     head(byProfit, 5),
		ByBrand:         res.ByBrand,
		ByCategory:      res.ByCategory,
		Tree:            buildTree(tree, res.ByBrand),
		DetectedColumns: m.Detected(),
	}

	if res.KPI.SkippedRows > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("skipped %d rows without product or figures", res.KPI.SkippedRows))
	}
	if badCells > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d figure cells could not be read as numbers and count as 0", badCells))
	}
	if badDates > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d rows have an unreadable %q value and are left out of the monthly series", badDates, m.Header(colmap.Date)))
	}
	for _, f := range []colmap.Field{colmap.Product, colmap.Revenue, colmap.Quantity} {
		if !m.Has(f) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("no column recognized for %s", f))
		}
	}
	return res, nil
}

type rowValues struct {
	quantity, price, revenue, profit decimal.Decimal
	// non-empty figure cells that did not parse
	unreadable int
}

// cleanRow applies the row rules: revenue is derived from price*quantity
// only when it is missing or zero, price from revenue/quantity likewise.
// Rows with no product and no figures are rejected.
func cleanRow(m *colmap.Mapping, row []string, nopt cleaning.NumberOptions) (Record, rowValues, bool) {
	var v rowValues
	num := func(f colmap.Field) decimal.Decimal {
		raw := m.Value(row, f)
		d, ok := cleaning.ParseDecimal(raw, nopt)
		if !ok {
			if strings.TrimSpace(raw) != "" {
				v.unreadable++
			}
			return decimal.Zero
		}
		return d
	}
	v.quantity = num(colmap.Quantity)
	v.price = num(colmap.Price)
	v.revenue = num(colmap.Revenue)
	v.profit = num(colmap.Profit)
	rec := Record{
		Product:  cleaning.Label(m.Value(row, colmap.Product), UnknownProduct),
		Brand:    cleaning.Label(m.Value(row, colmap.Brand), DefaultBrand),
		Category: cleaning.Label(m.Value(row, colmap.Category), DefaultCategory),
		Region:   cleaning.Label(m.Value(row, colmap.Region), DefaultRegion),
	}
	if v.revenue.IsZero() && !v.price.IsZero() && !v.quantity.IsZero() {
		v.revenue = v.price.Mul(v.quantity)
		rec.RevenueDerived = true
	}
	if v.price.IsZero() && !v.revenue.IsZero() && !v.quantity.IsZero() {
		v.price = v.revenue.DivRound(v.quantity, 4)
	}
	if v.revenue.IsZero() && v.quantity.IsZero() && v.price.IsZero() && v.profit.IsZero() && rec.Product == UnknownProduct {
		return rec, v, false
	}
	if raw := m.Value(row, colmap.Date); raw != "" {
		if d, ok := cleaning.ParseDate(raw); ok {
			rec.Date = d.Format("2006-01-02")
			rec.Month = cleaning.MonthKey(d)
		}
	}
	rec.Quantity = v.quantity.InexactFloat64()
	rec.Price = v.price.InexactFloat64()
	rec.Revenue = v.revenue.InexactFloat64()
	rec.Profit = v.profit.InexactFloat64()
	return rec, v, true
}

func productMetrics(g *grouped) []ProductMetric {
	out := make([]ProductMetric, 0, len(g.order))
	for _, k := range g.order {
		a := g.acc[k]
		out = append(out, ProductMetric{
			Product:  k,
			Revenue:  a.revenue.InexactFloat64(),
			Profit:   a.profit.InexactFloat64(),
			Quantity: a.quantity.InexactFloat64(),
			Margin:   a.margin(),
			Rows:     a.rows,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue > out[j].Revenue })
	return out
}

func groupMetrics(g *grouped, total decimal.Decimal) []GroupMetric {
	out := make([]GroupMetric, 0, len(g.order))
	for _, k := range g.order {
		a := g.acc[k]
		gm := GroupMetric{
			Key:      k,
			Revenue:  a.revenue.InexactFloat64(),
			Profit:   a.profit.InexactFloat64(),
			Quantity: a.quantity.InexactFloat64(),
			Margin:   a.margin(),
			Rows:     a.rows,
		}
		if total.IsPositive() {
			gm.Share = a.revenue.Div(total).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
		}
		out = append(out, gm)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue > out[j].Revenue })
	return out
}

func monthSeries(g *grouped) []MonthPoint {
	keys := append([]string(nil), g.order...)
	sort.Strings(keys)
	out := make([]MonthPoint, 0, len(keys))
	for _, k := range keys {
		a := g.acc[k]
		out = append(out, MonthPoint{
			Month:    k,
			Revenue:  a.revenue.InexactFloat64(),
			Profit:   a.profit.InexactFloat64(),
			Quantity: a.quantity.InexactFloat64(),
		})
	}
	return out
}

// buildTree orders brands like byBrand and categories by revenue.
func buildTree(tree map[string]map[string]*grouped, byBrand []GroupMetric) []BrandNode {
	out := make([]BrandNode, 0, len(byBrand))
	for _, b := range byBrand {
		node := BrandNode{Brand: b.Key, Revenue: b.Revenue}
		for cat, g := range tree[b.Key] {
			ps := productMetrics(g)
			var rev float64
			for _, p := range ps {
				rev += p.Revenue
			}
			node.Categories = append(node.Categories, CategoryNode{Category: cat, Revenue: rev, Products: ps})
		}
		sort.Slice(node.Categories, func(i, j int) bool {
			if node.Categories[i].Revenue == node.Categories[j].Revenue {
				return node.Categories[i].Category < node.Categories[j].Category
			}
			return node.Categories[i].Revenue > node.Categories[j].Revenue
		})
		out = append(out, node)
	}
	return out
}

func head(ps []ProductMetric, n int) []ProductMetric {
	if len(ps) > n {
		ps = ps[:n]
	}
	return append([]ProductMetric(nil), ps...)
}

// RevenueSeries returns month -> revenue in month order.
func (r *Result) RevenueSeries() ([]string, []float64) {
	months := make([]string, len(r.RevenueByMonth))
	vals := make([]float64, len(r.RevenueByMonth))
	for i, p := range r.RevenueByMonth {
		months[i] = p.Month
		vals[i] = p.Revenue
	}
	return months, vals
}
