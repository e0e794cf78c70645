package sapxml

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout = "20060102"
	timeLayout = "150405"
)

// FormatDate renders t as YYYYMMDD. The caller is responsible for rejecting
// the zero time; FormatDate renders it as "00010101".
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// FormatTime renders t as HHMMSS on a 24-hour clock. Only file names use it.
func FormatTime(t time.Time) string {
	return t.Format(timeLayout)
}

// FormatAmount renders d as a fixed-point string with exactly places decimals,
// rounding half away from zero.
func FormatAmount(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
