package money

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numericToken matches an optionally signed, optionally dollar-prefixed
// decimal number. Integers without a decimal point are deliberately not
// matched and pass through untouched.
var numericToken = regexp.MustCompile(`[-+]?\$?\d+\.\d+`)

// NormalizeDescription rewrites every numeric token in a transaction
// description to exactly two decimal places with the sign placed before
// the currency symbol, e.g. "-$1.2338949" becomes "-$1.23". Non-numeric
// text is left unchanged. Rounding is half away from zero.
func NormalizeDescription(description string) string {
	if description == "" {
		return ""
	}
	return numericToken.ReplaceAllStringFunc(description, normalizeToken)
}

func normalizeToken(token string) string {
	hasDollar := strings.Contains(token, "$")
	sign := ""
	if strings.Contains(token, "-") {
		sign = "-"
	} else if strings.Contains(token, "+") {
		sign = "+"
	}
	bare := strings.NewReplacer("$", "", "-", "", "+", "").Replace(token)
	value, err := decimal.NewFromString(bare)
	if err != nil {
		return token
	}
	rounded := value.Round(2).StringFixed(2)
	if hasDollar {
		return sign + "$" + rounded
	}
	return sign + rounded
}

// Format renders an amount to two decimal places for display.
func Format(amount decimal.Decimal) string {
	return amount.Round(2).StringFixed(2)
}
