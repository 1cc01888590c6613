package cleaning

import (
	"math"
	"strings"
	"testing"
	"time"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestCleanNumberSeparators(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1,234.56", 1234.56},
		{"1.234,56", 1234.56},
		{"1.234.567", 1234567},
		{"1,234,567", 1234567},
		{"1,234", 1234},
		{"1,5", 1.5},
		{"0,500", 0.5},
		{"12.5", 12.5},
		{"-1.200,5", -1200.5},
		{"$1,200.00", 1200},
		{"12%", 12},
		{"1e3", 1000},
		{"1 500 000", 1500000},
		{"(300)", -300},
		{"1.250.000đ", 1250000},
		{"VND 2.000.000", 2000000},
		{"  42  ", 42},
	}
	for _, tc := range cases {
		if got := CleanNumber(tc.in); !almost(got, tc.want) {
			t.Errorf("CleanNumber(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCleanNumberMagnitudeSuffixes(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"15k", 15000},
		{"15K", 15000},
		{"2,5 triệu", 2500000},
		{"1.5 triệu", 1500000},
		{"3tr", 3000000},
		{"1tr5", 1500000},
		{"2k5", 2500},
		{"1 tỷ", 1e9},
		{"1,2 tỷ", 1.2e9},
		{"500 nghìn", 500000},
	}
	for _, tc := range cases {
		if got := CleanCurrencyText(tc.in); !almost(got, tc.want) {
			t.Errorf("CleanCurrencyText(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCleanNumberUnparseableIsZero(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "N/A", "-", "không có", "()"} {
		if got := CleanNumber(in); got != 0 {
			t.Errorf("CleanNumber(%q) = %v, want 0", in, got)
		}
		if _, ok := ParseNumber(in, NumberOptions{}); ok {
			t.Errorf("ParseNumber(%q) reported ok", in)
		}
	}
}

func TestParseNumberForcedSeparators(t *testing.T) {
	opt := NumberOptions{DecimalSeparator: ',', ThousandsSeparator: '.'}
	got, ok := ParseNumber("1.234", opt)
	if !ok || !almost(got, 1234) {
		t.Fatalf("ParseNumber forced = %v,%v; want 1234", got, ok)
	}
	got, ok = ParseNumber("0,75", opt)
	if !ok || !almost(got, 0.75) {
		t.Fatalf("ParseNumber forced decimal = %v,%v; want 0.75", got, ok)
	}

	// only the thousands separator given: the other one is the decimal point
	cases := []struct {
		in   string
		thou rune
		want float64
	}{
		{"1.500", '.', 1500},
		{"1.500.000", '.', 1500000},
		{"1.500,25", '.', 1500.25},
		{"2,5", '.', 2.5},
		{"1,500", ',', 1500},
		{"1,500.25", ',', 1500.25},
		{"1e3", '.', 1000},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.in, NumberOptions{ThousandsSeparator: tc.thou})
		if !ok || !almost(got, tc.want) {
			t.Errorf("ParseNumber(%q, thousands %q) = %v,%v; want %v", tc.in, tc.thou, got, ok, tc.want)
		}
	}
}

func TestParseNumberRejectsHugeValues(t *testing.T) {
	huge := "1" + strings.Repeat("0", 400)
	for _, in := range []string{"1e400", "-1e400", huge, "1e18"} {
		if got, ok := ParseNumber(in, NumberOptions{}); ok || got != 0 {
			t.Errorf("ParseNumber(%q) = %v,%v; want 0,false", in, got, ok)
		}
		if _, ok := ParseDecimal(in, NumberOptions{}); ok {
			t.Errorf("ParseDecimal(%q) reported ok", in)
		}
	}
	if got, ok := ParseNumber("999 tỷ", NumberOptions{}); !ok || !almost(got, 999e9) {
		t.Errorf("ParseNumber(999 tỷ) = %v,%v", got, ok)
	}
}

func TestParseDecimalIsExact(t *testing.T) {
	d, ok := ParseDecimal("2,5 triệu", NumberOptions{})
	if !ok {
		t.Fatal("ParseDecimal failed")
	}
	if d.String() != "2500000" {
		t.Fatalf("ParseDecimal = %s, want 2500000", d.String())
	}
}

func TestFoldAndKey(t *testing.T) {
	if got := Fold("Số Lượng"); got != "so luong" {
		t.Errorf("Fold = %q", got)
	}
	if got := Fold("ĐẶNG"); got != "dang" {
		t.Errorf("Fold(ĐẶNG) = %q", got)
	}
	for _, in := range []string{"Số_Lượng", "so luong", "SỐ LƯỢNG", "so-luong"} {
		if got := Key(in); got != "soluong" {
			t.Errorf("Key(%q) = %q, want soluong", in, got)
		}
	}
	if got := Key("Đơn Giá"); got != "dongia" {
		t.Errorf("Key(Đơn Giá) = %q", got)
	}
}

func TestLabel(t *testing.T) {
	if got := Label("  Áo   thun ", "Unknown"); got != "Áo thun" {
		t.Errorf("Label = %q", got)
	}
	if got := Label("NaN", "Unknown"); got != "Unknown" {
		t.Errorf("Label(NaN) = %q", got)
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"15/03/2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"03/15/2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-03", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"45000", time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"Tháng 3/2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"tháng 03-2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"Tháng 12 năm 2023", time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)},
		{"T7/2024", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.in)
		if !ok {
			t.Errorf("ParseDate(%q) failed", tc.in)
			continue
		}
		if MonthKey(got) != MonthKey(tc.want) || got.Day() != tc.want.Day() {
			t.Errorf("ParseDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, in := range []string{"", "hello", "12", "3.5", "Tháng 13/2024", "tháng ba"} {
		if _, ok := ParseDate(in); ok {
			t.Errorf("ParseDate(%q) should fail", in)
		}
	}
	if LooksLikeDate("45000") {
		t.Error("LooksLikeDate should ignore serial numbers")
	}
	if !LooksLikeDate("Tháng 3/2024") {
		t.Error("LooksLikeDate should accept month labels")
	}
}

func TestIsNumeric(t *testing.T) {
	yes := []string{"12", "1.234.567", "1,5", "15k", "2,5 triệu", "1.250.000đ", "VND 2.000", "(300)", "1e3", "-4", "12%", "1tr5"}
	no := []string{"", "abc", "size 2", "Áo thun 2", "2024-01-02", "12abc", "3d6"}
	for _, s := range yes {
		if !IsNumeric(s) {
			t.Errorf("IsNumeric(%q) = false", s)
		}
	}
	for _, s := range no {
		if IsNumeric(s) {
			t.Errorf("IsNumeric(%q) = true", s)
		}
	}
}
