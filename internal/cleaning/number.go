package cleaning

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// maxMagnitude bounds readable amounts so that sums and price*quantity
// products stay finite once converted to float64.
var maxMagnitude = decimal.New(1, 18)

// NumberOptions forces the separators used by ParseNumber. Zero values mean
// auto-detect per value.
type NumberOptions struct {
	DecimalSeparator   rune
	ThousandsSeparator rune
}

// magnitudes maps folded suffix words to their multiplier.
var magnitudes = map[string]decimal.Decimal{
	"k":     decimal.New(1, 3),
	"nghin": decimal.New(1, 3),
	"ngan":  decimal.New(1, 3),
	"tr":    decimal.New(1, 6),
	"trieu": decimal.New(1, 6),
	"ty":    decimal.New(1, 9),
	"ti":    decimal.New(1, 9),
}

var (
	// sign, number body, optional suffix word, optional trailing digits ("1tr5")
	numberRe = regexp.MustCompile(`([-+]?)\s*(\d(?:[\d.,' ]*\d)?)\s*([a-z]+)?(\d+)?`)
	symbols  = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", "₫", "", "%", "", "\u2212", "-", "\u00a0", " ", "\u202f", " ")
)

// CleanNumber parses s with auto-detected separators and returns 0 when it
// cannot be read.
func CleanNumber(s string) float64 {
	f, _ := ParseNumber(s, NumberOptions{})
	return f
}

// CleanCurrencyText reads money written the way it is typed into sales
// sheets: "1.250.000đ", "15k", "2,5 triệu", "1 tỷ", "(300)". Unreadable text
// yields 0.
func CleanCurrencyText(s string) float64 {
	return CleanNumber(s)
}

// ParseNumber is the locale-aware parser behind CleanNumber. It reports
// whether any number was found.
func ParseNumber(s string, opt NumberOptions) (float64, bool) {
	d, ok := ParseDecimal(s, opt)
	if !ok {
		return 0, false
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// ParseDecimal is ParseNumber without the float conversion; sums built from it
// stay exact. Amounts of 1e18 or more are rejected as unreadable.
func ParseDecimal(s string, opt NumberOptions) (decimal.Decimal, bool) {
	d, ok := parseDecimal(s, opt)
	if !ok || d.Abs().Cmp(maxMagnitude) >= 0 {
		return decimal.Zero, false
	}
	return d, true
}

func parseDecimal(s string, opt NumberOptions) (decimal.Decimal, bool) {
	raw := strings.TrimSpace(symbols.Replace(s))
	if raw == "" {
		return decimal.Zero, false
	}
	// plain machine numbers, including exponents; a dot only means the
	// decimal point when no separator is forced
	if !strings.ContainsAny(raw, ", ") && (opt == NumberOptions{} || !strings.Contains(raw, ".")) {
		if d, err := decimal.NewFromString(strings.TrimPrefix(raw, "+")); err == nil {
			return d, true
		}
	}

	folded := Fold(raw)
	neg := false
	if strings.HasPrefix(folded, "(") && strings.HasSuffix(folded, ")") {
		neg = true
		folded = strings.TrimSpace(folded[1 : len(folded)-1])
	}
	m := numberRe.FindStringSubmatch(folded)
	if m == nil {
		return decimal.Zero, false
	}
	if m[1] == "-" {
		neg = !neg
	}
	body := strings.TrimSpace(m[2])
	mult, scaled := magnitudes[m[3]]
	if scaled && m[4] != "" && !strings.ContainsAny(body, ".,") {
		// 1tr5 means 1.5 million
		body = body + "." + m[4]
		opt = NumberOptions{DecimalSeparator: '.'}
	}

	num, ok := normalizeSeparators(body, opt)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	if scaled {
		d = d.Mul(mult)
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

// normalizeSeparators rewrites body into a plain "1234.56" form.
func normalizeSeparators(body string, opt NumberOptions) (string, bool) {
	body = strings.NewReplacer(" ", "", "'", "").Replace(body)
	if body == "" {
		return "", false
	}
	dec, thou := opt.DecimalSeparator, opt.ThousandsSeparator
	switch {
	case dec == 0 && thou == ',':
		dec = '.'
	case dec == 0 && thou == '.':
		dec = ','
	case dec == 0:
		dec, _ = detectSeparators(body)
	}
	if thou != 0 && thou != dec {
		body = strings.ReplaceAll(body, string(thou), "")
	}
	// anything other than the decimal separator left over is noise
	for _, sep := range []rune{',', '.'} {
		if sep != dec {
			body = strings.ReplaceAll(body, string(sep), "")
		}
	}
	if dec != 0 && dec != '.' {
		body = strings.ReplaceAll(body, string(dec), ".")
	}
	if strings.Count(body, ".") > 1 {
		return "", false
	}
	if _, err := strconv.ParseFloat(body, 64); err != nil {
		return "", false
	}
	return body, true
}

// detectSeparators decides which of ',' and '.' is the decimal point.
// A zero decimal return means the number has no fractional part.
func detectSeparators(body string) (dec, thou rune) {
	cpos := strings.LastIndex(body, ",")
	dpos := strings.LastIndex(body, ".")
	switch {
	case cpos >= 0 && dpos >= 0:
		if cpos > dpos {
			return ',', '.'
		}
		return '.', ','
	case cpos >= 0:
		if strings.Count(body, ",") > 1 {
			return 0, ','
		}
		intPart, frac := body[:cpos], body[cpos+1:]
		if len(frac) == 3 && intPart != "0" && intPart != "" {
			return 0, ','
		}
		return ',', 0
	case dpos >= 0:
		if strings.Count(body, ".") > 1 {
			return 0, '.'
		}
		return '.', 0
	}
	return 0, 0
}

var currencyWords = map[string]bool{"d": true, "vnd": true, "dong": true, "usd": true, "eur": true}

// IsNumeric reports whether s holds only a number, allowing currency markers
// and magnitude suffixes. Unlike ParseNumber it rejects text that merely
// contains digits, such as "size 2".
func IsNumeric(s string) bool {
	raw := strings.TrimSpace(symbols.Replace(s))
	if raw == "" {
		return false
	}
	if _, err := decimal.NewFromString(strings.TrimPrefix(raw, "+")); err == nil {
		return true
	}
	f := Fold(raw)
	if strings.HasPrefix(f, "(") && strings.HasSuffix(f, ")") {
		f = strings.TrimSpace(f[1 : len(f)-1])
	}
	loc := numberRe.FindStringSubmatchIndex(f)
	if loc == nil {
		return false
	}
	if prefix := strings.TrimSpace(f[:loc[0]]); prefix != "" && !currencyWords[prefix] {
		return false
	}
	if strings.TrimSpace(f[loc[1]:]) != "" {
		return false
	}
	if loc[6] >= 0 {
		word := f[loc[6]:loc[7]]
		_, scaled := magnitudes[word]
		if !scaled && (!currencyWords[word] || loc[8] >= 0) {
			return false
		}
	}
	return true
}
