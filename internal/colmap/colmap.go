// Package colmap decides which spreadsheet column holds which sales field.
//
// Headers and keywords are compared by cleaning.Key, so matching ignores case,
// Vietnamese diacritics, spaces, underscores and punctuation.
package colmap

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/datana-cli/internal/cleaning"
)

// Field is a semantic column of a sales sheet.
type Field string

const (
	Product  Field = "product"
	Quantity Field = "quantity"
	Price    Field = "price"
	Profit   Field = "profit"
	Brand    Field = "brand"
	Category Field = "category"
	Revenue  Field = "revenue"
	Date     Field = "date"
	Region   Field = "region"
)

// Fields lists every field in matching priority order.
var Fields = []Field{Product, Quantity, Price, Profit, Brand, Category, Revenue, Date, Region}

// Keywords are the header spellings recognized for each field.
var Keywords = map[Field][]string{
	Product:  {"name", "product", "product name", "tên", "sản phẩm", "tên sản phẩm", "item", "sku", "mặt hàng"},
	Quantity: {"quantity sold", "quantity", "qty", "units", "số lượng", "sl", "orders", "quantity_sold", "số lượng bán"},
	Price:    {"price", "unit price", "unit_price", "giá", "đơn giá", "giá bán", "cost"},
	Profit:   {"profit", "margin", "lợi nhuận", "lợi_nhuận", "lãi", "gross profit"},
	Brand:    {"brand", "hãng", "thương hiệu", "thương_hiệu", "brand name", "nhãn hàng"},
	Category: {"category", "ngành hàng", "danh mục", "danh_mục", "loại", "segment", "type"},
	Revenue:  {"revenue", "sales", "amount", "doanh thu", "doanh_thu", "thành tiền", "total", "tổng tiền"},
	Date:     {"date", "ngày", "day", "month", "time", "order date", "order_date", "ngày_bán", "ngày bán", "thời gian", "tháng"},
	Region:   {"region", "khu vực", "khu_vực", "area", "city", "tỉnh", "thành phố", "location", "vùng", "chi nhánh", "branch", "store", "cửa hàng"},
}

var (
	ErrUnknownField  = errors.New("unknown field")
	ErrUnknownColumn = errors.New("column not found")
)

// How a field got its column.
const (
	SourceOverride = "override"
	SourceExact    = "exact"
	SourceFuzzy    = "fuzzy"
	SourceContent  = "content"
)

// Assignment ties a field to a column.
type Assignment struct {
	Column int    `json:"column"`
	Header string `json:"header"`
	Source string `json:"source"`
}

// Mapping is the result of Match.
type Mapping struct {
	Headers []string
	fields  map[Field]Assignment
	used    map[int]Field
}

// ParseField accepts a field name in any case.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := Keywords[f]; !ok {
		return "", fmt.Errorf("%w: %q (known: %s)", ErrUnknownField, s, fieldList())
	}
	return f, nil
}

// ParseOverrides reads "field=Header" pairs as given on the command line.
func ParseOverrides(pairs []string) (map[Field]string, error) {
	out := make(map[Field]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("invalid mapping %q: want field=Column", p)
		}
		f, err := ParseField(k)
		if err != nil {
			return nil, err
		}
		out[f] = strings.TrimSpace(v)
	}
	return out, nil
}

type candidate struct {
	field Field
	col   int
	score int
	exact bool
}

// Match assigns columns to fields. Overrides are applied first and must name
// an existing header (compared by Key). Remaining fields take exact keyword
// matches, then the best substring match. Each column serves one field.
func Match(headers []string, overrides map[Field]string) (*Mapping, error) {
	m := &Mapping{Headers: headers, fields: map[Field]Assignment{}, used: map[int]Field{}}
	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = cleaning.Key(h)
	}

	for _, f := range Fields {
		want, ok := overrides[f]
		if !ok {
			continue
		}
		col := -1
		wk := cleaning.Key(want)
		for i, k := range keys {
			if strings.TrimSpace(headers[i]) == strings.TrimSpace(want) || (wk != "" && k == wk) {
				col = i
				break
			}
		}
		if col < 0 {
			return nil, fmt.Errorf("%w: %q for field %s", ErrUnknownColumn, want, f)
		}
		if prev, taken := m.used[col]; taken {
			return nil, fmt.Errorf("column %q mapped to both %s and %s", headers[col], prev, f)
		}
		m.assign(f, col, SourceOverride)
	}

	var cands []candidate
	for fi, f := range Fields {
		if m.Has(f) {
			continue
		}
		for col, hk := range keys {
			if hk == "" {
				continue
			}
			best, exact := 0, false
			for _, kw := range Keywords[f] {
				kk := cleaning.Key(kw)
				switch {
				case hk == kk:
					best, exact = 1000, true
				case len(kk) >= 3 && strings.Contains(hk, kk):
					best = maxInt(best, len(kk))
				case len(hk) >= 3 && strings.Contains(kk, hk):
					best = maxInt(best, len(hk))
				}
				if exact {
					break
				}
			}
			if best > 0 {
				// earlier fields win ties
				cands = append(cands, candidate{field: f, col: col, score: best*len(Fields) + (len(Fields) - fi), exact: exact})
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].col < cands[j].col
	})
	for _, c := range cands {
		if m.Has(c.field) {
			continue
		}
		if _, taken := m.used[c.col]; taken {
			continue
		}
		src := SourceFuzzy
		if c.exact {
			src = SourceExact
		}
		m.assign(c.field, c.col, src)
	}
	return m, nil
}

// InferDate maps the date field to the first free column whose values were
// profiled as dates, when no header named it.
func (m *Mapping) InferDate(isDate func(col int) bool) bool {
	if m.Has(Date) {
		return false
	}
	for col := range m.Headers {
		if _, taken := m.used[col]; taken {
			continue
		}
		if isDate(col) {
			m.assign(Date, col, SourceContent)
			return true
		}
	}
	return false
}

func (m *Mapping) assign(f Field, col int, src string) {
	m.fields[f] = Assignment{Column: col, Header: strings.TrimSpace(m.Headers[col]), Source: src}
	m.used[col] = f
}

// Has reports whether f is mapped.
func (m *Mapping) Has(f Field) bool {
	_, ok := m.fields[f]
	return ok
}

// Index returns the column of f.
func (m *Mapping) Index(f Field) (int, bool) {
	a, ok := m.fields[f]
	return a.Column, ok
}

// Header returns the header mapped to f, or "".
func (m *Mapping) Header(f Field) string {
	return m.fields[f].Header
}

// Assignments returns every mapped field.
func (m *Mapping) Assignments() map[Field]Assignment {
	out := make(map[Field]Assignment, len(m.fields))
	for k, v := range m.fields {
		out[k] = v
	}
	return out
}

// Detected returns field -> header for reporting.
func (m *Mapping) Detected() map[string]string {
	out := make(map[string]string, len(m.fields))
	for f, a := range m.fields {
		out[string(f)] = a.Header
	}
	return out
}

// Missing lists fields without a column, in priority order.
func (m *Mapping) Missing() []Field {
	var out []Field
	for _, f := range Fields {
		if !m.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Value returns the cell for f in row, or "" when f is unmapped.
func (m *Mapping) Value(row []string, f Field) string {
	a, ok := m.fields[f]
	if !ok || a.Column >= len(row) {
		return ""
	}
	return row[a.Column]
}

func fieldList() string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
