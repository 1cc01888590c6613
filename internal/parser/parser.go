// Package parser turns uploaded spreadsheets into header + rows tables.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupported indicates a format is not supported.
	ErrUnsupported = errors.New("unsupported spreadsheet format")
	// ErrEmpty is returned when a sheet has no header row.
	ErrEmpty = errors.New("spreadsheet has no data")
	// ErrTooLarge is returned when input exceeds Options.MaxBytes.
	ErrTooLarge = errors.New("spreadsheet exceeds upload limit")
)

// DefaultMaxBytes is the upload cap applied when Options.MaxBytes is zero.
const DefaultMaxBytes = 10 << 20

// Options controls how a spreadsheet is read.
type Options struct {
	// Delimiter for CSV. If 0, auto-detects among ',', ';', '\t', '|'.
	Delimiter rune
	// SheetName selects a workbook sheet by name (case-insensitive).
	SheetName string
	// SheetIndex selects a workbook sheet by 1-based position when SheetName is empty.
	SheetIndex int
	// MaxRows limits data rows kept; 0 means unlimited.
	MaxRows int
	// MaxBytes caps input size; 0 means DefaultMaxBytes, negative means unlimited.
	MaxBytes int64
}

// Table is a loaded sheet. Every row has len(Header) cells.
type Table struct {
	Name      string     `json:"name"`
	Sheet     string     `json:"sheet,omitempty"`
	Sheets    []string   `json:"sheets,omitempty"`
	Header    []string   `json:"header"`
	Rows      [][]string `json:"-"`
	TotalRows int        `json:"total_rows"`
	Warnings  []string   `json:"warnings,omitempty"`
}

// Parser reads one family of spreadsheet formats.
type Parser interface {
	CanParse(filename string) bool
	Parse(name string, content []byte, opt Options) (*Table, error)
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

func init() {
	Register(csvParser{})
	Register(xlsxParser{})
	Register(legacyXLSParser{})
}

// Supported reports whether some registered parser accepts filename.
func Supported(filename string) bool {
	for _, p := range registry {
		if _, legacy := p.(legacyXLSParser); legacy {
			continue
		}
		if p.CanParse(filename) {
			return true
		}
	}
	return false
}

// Load reads the spreadsheet at path.
func Load(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()
	return Read(filepath.Base(path), f, opt)
}

// Read parses r, selecting a parser by the extension of name.
func Read(name string, r io.Reader, opt Options) (*Table, error) {
	var target Parser
	for _, p := range registry {
		if p.CanParse(name) {
			target = p
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s (use .csv, .tsv or .xlsx)", ErrUnsupported, filepath.Ext(name))
	}
	data, err := readLimited(r, opt.MaxBytes)
	if err != nil {
		return nil, err
	}
	t, err := target.Parse(name, data, opt)
	if err != nil {
		return nil, err
	}
	t.Name = name
	return t, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max == 0 {
		max = DefaultMaxBytes
	}
	if max < 0 {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read spreadsheet: %w", err)
		}
		return b, nil
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet: %w", err)
	}
	if n > max {
		return nil, fmt.Errorf("%w (limit %d bytes)", ErrTooLarge, max)
	}
	return buf.Bytes(), nil
}

// build turns raw records into a Table: the first non-blank record is the
// header, blank records are dropped, and rows are padded or cut to the header
// width.
func build(records [][]string, opt Options) (*Table, error) {
	start := -1
	for i, rec := range records {
		if !blank(rec) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrEmpty
	}
	header := trimTrailingEmpty(records[start])
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
		if header[i] == "" {
			header[i] = fmt.Sprintf("column_%d", i+1)
		}
	}
	t := &Table{Header: dedupe(header)}
	maxRows := opt.MaxRows
	for _, rec := range records[start+1:] {
		if blank(rec) {
			continue
		}
		t.TotalRows++
		if maxRows > 0 && len(t.Rows) >= maxRows {
			continue
		}
		row := make([]string, len(header))
		copy(row, rec)
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		t.Rows = append(t.Rows, row)
	}
	if len(t.Rows) < t.TotalRows {
		t.Warnings = append(t.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", len(t.Rows), t.TotalRows))
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimTrailingEmpty(rec []string) []string {
	out := append([]string(nil), rec...)
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return out
}

// dedupe suffixes repeated header names: Price, Price_2.
func dedupe(header []string) []string {
	seen := map[string]int{}
	for i, h := range header {
		k := strings.ToLower(h)
		seen[k]++
		if n := seen[k]; n > 1 {
			header[i] = fmt.Sprintf("%s_%d", h, n)
		}
	}
	return header
}
