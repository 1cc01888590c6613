package cleaning

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"01/02/2006",
	"1/2/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01",
	"01/2006",
	"1/2006",
	"Jan 2006",
	"January 2006",
}

// monthWordRe matches folded month labels such as "thang 3/2024",
// "thang 03-2024", "thang 3 nam 2024" and "t3/2024".
var monthWordRe = regexp.MustCompile(`^(?:thang|t)\s*(\d{1,2})\s*(?:[/.-]|\s+nam\s+|\s)\s*(\d{4})$`)

// Excel serial days from 1982 to 2064; anything outside is treated as a plain
// number rather than a date.
const (
	minSerial = 30000
	maxSerial = 60000
)

// ParseDate reads s as a calendar date. Day-first layouts are tried before
// month-first ones, matching how dates are written in Vietnamese exports.
// Excel serial day numbers are accepted as well.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := parseWritten(s); ok {
		return t, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= minSerial && f < maxSerial {
		if t, err := excelize.ExcelDateToTime(f, false); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// LooksLikeDate is ParseDate without the serial-number fallback, used when
// profiling columns so plain numeric columns are not mistaken for dates.
func LooksLikeDate(s string) bool {
	_, ok := parseWritten(strings.TrimSpace(s))
	return ok
}

// parseWritten tries the text layouts, then Vietnamese month labels.
func parseWritten(s string) (time.Time, bool) {
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	m := monthWordRe.FindStringSubmatch(Fold(s))
	if m == nil {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
