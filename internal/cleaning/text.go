package cleaning

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// đ/Đ carry a stroke, not a combining mark, so NFD leaves them alone.
var strokeReplacer = strings.NewReplacer("đ", "d", "Đ", "d")

// Fold lowercases s and strips diacritics: "Số Lượng" -> "so luong".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strokeReplacer.Replace(s))
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Key reduces a header to its comparable form: folded, letters and digits
// only. "Số_Lượng", "so luong" and "SỐ LƯỢNG" all become "soluong".
func Key(s string) string {
	f := Fold(s)
	var b strings.Builder
	b.Grow(len(f))
	for _, r := range f {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Label trims a category-like cell, collapsing inner whitespace. Empty cells
// return def.
func Label(s, def string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return def
	}
	return s
}
