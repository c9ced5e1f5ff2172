package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders minor units as a major-unit string, e.g. 5000 PLN -> "50.00 PLN".
func FormatAmount(amount int64, currency string) string {
	value := decimal.New(amount, -2).StringFixed(2)
	currency = strings.TrimSpace(currency)
	if currency == "" {
		return value
	}
	return value + " " + currency
}
