package platform

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CommissionRate brackets the commission a platform usually takes
type CommissionRate struct {
	Min     decimal.Decimal `json:"min"`
	Max     decimal.Decimal `json:"max"`
	Default decimal.Decimal `json:"default"`
}

func rate(min, max, def string) CommissionRate {
	return CommissionRate{
		Min:     decimal.RequireFromString(min),
		Max:     decimal.RequireFromString(max),
		Default: decimal.RequireFromString(def),
	}
}

// PlatformCommissionRates holds the typical commission brackets per platform
var PlatformCommissionRates = map[string]CommissionRate{
	"Swiggy":   rate("0.15", "0.30", "0.22"),
	"Zomato":   rate("0.18", "0.25", "0.20"),
	"Amazon":   rate("0.05", "0.25", "0.15"),
	"Flipkart": rate("0.05", "0.25", "0.15"),
}

// LookupRate finds the bracket for platform, ignoring case
func LookupRate(platform string) (CommissionRate, bool) {
	if r, ok := PlatformCommissionRates[platform]; ok {
		return r, true
	}
	for name, r := range PlatformCommissionRates {
		if strings.EqualFold(name, platform) {
			return r, true
		}
	}
	return CommissionRate{}, false
}

// EstimateCommission applies the platform's default rate to gross
func EstimateCommission(platform string, gross decimal.Decimal) (decimal.Decimal, bool) {
	r, ok := LookupRate(platform)
	if !ok {
		return decimal.Zero, false
	}
	return gross.Mul(r.Default).Round(2), true
}

// ImpliedRate is commission over gross. Zero gross yields zero.
func ImpliedRate(gross, commission decimal.Decimal) decimal.Decimal {
	if !gross.IsPositive() {
		return decimal.Zero
	}
	return commission.Div(gross).Round(4)
}

// WithinBracket reports whether an implied rate falls inside the platform's
// usual bracket. Unknown platforms are never flagged.
func WithinBracket(platform string, implied decimal.Decimal) bool {
	r, ok := LookupRate(platform)
	if !ok {
		return true
	}
	return implied.GreaterThanOrEqual(r.Min) && implied.LessThanOrEqual(r.Max)
}
