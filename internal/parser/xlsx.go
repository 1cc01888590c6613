package parser

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

type xlsxParser struct{}

func (xlsxParser) CanParse(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xlsm")
}

// Parse reads the selected sheet. If no sheet is requested it defaults to the
// first one. Cell values are read raw so numbers keep full precision; cells
// with a date number format are rewritten as ISO dates.
func (xlsxParser) Parse(name string, content []byte, opt Options) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook %q has no sheets", ErrEmpty, name)
	}
	sheet, err := pickSheet(name, sheets, opt)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	isoDates(f, sheet, rows)
	t, err := build(rows, opt)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	t.Sheet = sheet
	t.Sheets = sheets
	return t, nil
}

// isoDates replaces date serials in rows with "2006-01-02" text, or
// "2006-01-02 15:04:05" when the serial carries a time of day.
func isoDates(f *excelize.File, sheet string, rows [][]string) {
	dateStyles := map[int]bool{}
	for r, row := range rows {
		for c, v := range row {
			serial, err := strconv.ParseFloat(v, 64)
			if err != nil || serial <= 0 {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				continue
			}
			id, err := f.GetCellStyle(sheet, cell)
			if err != nil || id == 0 {
				continue
			}
			isDate, seen := dateStyles[id]
			if !seen {
				isDate = isDateStyle(f, id)
				dateStyles[id] = isDate
			}
			if !isDate {
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, false)
			if err != nil {
				continue
			}
			if serial == math.Trunc(serial) {
				rows[r][c] = t.Format("2006-01-02")
			} else {
				rows[r][c] = t.Format("2006-01-02 15:04:05")
			}
		}
	}
}

// isDateStyle reports whether the number format of style id shows a calendar
// date. Time-only formats do not count.
func isDateStyle(f *excelize.File, id int) bool {
	st, err := f.GetStyle(id)
	if err != nil || st == nil {
		return false
	}
	switch st.NumFmt {
	case 14, 15, 16, 17, 22:
		return true
	}
	if st.CustomNumFmt == nil {
		return false
	}
	code := strings.ToLower(*st.CustomNumFmt)
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range code {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		default:
			b.WriteRune(r)
		}
	}
	plain := b.String()
	return strings.ContainsAny(plain, "dy")
}

func pickSheet(name string, sheets []string, opt Options) (string, error) {
	if opt.SheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, opt.SheetName) {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
			opt.SheetName, name, strings.Join(sheets, ", "))
	}
	idx := opt.SheetIndex
	if idx <= 0 {
		idx = 1
	}
	if idx > len(sheets) {
		return "", fmt.Errorf("sheet index %d out of range for workbook '%s' (%d sheets: %s)",
			idx, name, len(sheets), strings.Join(sheets, ", "))
	}
	return sheets[idx-1], nil
}

// legacyXLSParser rejects BIFF .xls workbooks with a clear message.
type legacyXLSParser struct{}

func (legacyXLSParser) CanParse(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xls")
}

func (legacyXLSParser) Parse(name string, _ []byte, _ Options) (*Table, error) {
	return nil, fmt.Errorf("%w: %s is a legacy .xls workbook; re-save it as .xlsx or .csv", ErrUnsupported, name)
}
