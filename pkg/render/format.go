package render

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var longMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

var shortMonths = [...]string{
	"Jan", "Feb", "Mar", "Apr", "Mei", "Jun",
	"Jul", "Agu", "Sep", "Okt", "Nov", "Des",
}

// FormatCurrency formats an amount as IDR in the id-ID locale, e.g.
// "Rp 1.110.000,00". Digits come from the decimal itself, so amounts of any
// size keep every digit.
func FormatCurrency(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}
	whole, frac, _ := strings.Cut(rounded.StringFixed(2), ".")
	return sign + "Rp " + groupThousands(whole) + "," + frac
}

// groupThousands inserts a dot between every group of three digits.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatDate formats t with the long month name, e.g. "15 Januari 2024".
// The zero time formats as "-".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return strconv.Itoa(t.Day()) + " " + longMonths[t.Month()-1] + " " + strconv.Itoa(t.Year())
}

// FormatShortDate formats t with the abbreviated month name, e.g. "15 Jan 2024".
func FormatShortDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return strconv.Itoa(t.Day()) + " " + shortMonths[t.Month()-1] + " " + strconv.Itoa(t.Year())
}
