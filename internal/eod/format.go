package eod

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatIndianNumber groups digits the Indian way: the last three, then
// pairs ("12,34,567"). Paise are shown only when non-zero and the sign is
// kept.
func FormatIndianNumber(d decimal.Decimal) string {
	negative := d.IsNegative()
	fixed := d.Abs().StringFixed(2)

	intPart, decPart := fixed, "00"
	if i := strings.IndexByte(fixed, '.'); i >= 0 {
		intPart, decPart = fixed[:i], fixed[i+1:]
	}

	if len(intPart) > 3 {
		head, last3 := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		intPart = strings.Join(groups, ",") + "," + last3
	}

	out := intPart
	if decPart != "00" {
		out += "." + decPart
	}
	if negative && out != "0" {
		out = "-" + out
	}
	return out
}
