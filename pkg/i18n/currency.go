package i18n

import "fmt"

// currencySymbols maps ISO 4217 codes to their display symbol.
var currencySymbols = map[string]struct {
	symbol string
	prefix bool // "$12.50" vs "12.50 TMT"
}{
	"USD": {"$", true},
	"EUR": {"€", true},
	"GBP": {"£", true},
	"TRY": {"₺", true},
	"RUB": {"₽", true},
	"INR": {"₹", true},
	"NGN": {"₦", true},
	"KES": {"KSh", true},
	"ZAR": {"R", true},
	"AED": {"د.إ", false},
	"KZT": {"₸", false},
	"TMT": {"TMT", false},
}

// FormatCents renders an amount held in minor units with its currency symbol.
//
//	FormatCents(1550, "USD")  → "$15.50"
//	FormatCents(15000, "TMT") → "150.00 TMT"
//	FormatCents(-250, "EUR")  → "-€2.50"
func FormatCents(cents int64, currencyCode string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	amount := fmt.Sprintf("%d.%02d", cents/100, cents%100)

	info, ok := currencySymbols[currencyCode]
	if !ok {
		return fmt.Sprintf("%s%s %s", sign, amount, currencyCode)
	}
	if info.prefix {
		return sign + info.symbol + amount
	}
	return fmt.Sprintf("%s%s %s", sign, amount, info.symbol)
}
