package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultFeePercent is applied when an event does not configure its own
// platform fee percentage.
var DefaultFeePercent = decimal.NewFromInt(5)

// zeroDecimalCurrencies are charged in whole units by the payment
// processor; everything else is charged in hundredths.
var zeroDecimalCurrencies = map[string]bool{
	"jpy": true,
	"krw": true,
	"vnd": true,
}

// Line is one priced selection row: a locked-in unit price and a quantity.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Quote is the frozen monetary breakdown of a selection. All figures are
// major-unit decimals; conversion to processor minor units happens
// separately so the decimals survive metadata round-trips exactly.
type Quote struct {
	Subtotal        decimal.Decimal
	PlatformFee     decimal.Decimal
	OrganizerPayout decimal.Decimal
}

// ComputeQuote derives subtotal, platform fee and organizer payout from a
// validated selection. feePercent may be nil, in which case
// DefaultFeePercent applies.
func ComputeQuote(lines []Line, feePercent *decimal.Decimal, feeFixed decimal.Decimal) Quote {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	pct := DefaultFeePercent
	if feePercent != nil {
		pct = *feePercent
	}

	fee := subtotal.Mul(pct).Div(decimal.NewFromInt(100)).Add(feeFixed)

	return Quote{
		Subtotal:        subtotal,
		PlatformFee:     fee,
		OrganizerPayout: subtotal.Sub(fee),
	}
}

// IsZeroDecimal reports whether the currency is charged in whole units.
func IsZeroDecimal(currency string) bool {
	return zeroDecimalCurrencies[strings.ToLower(currency)]
}

// ToMinorUnits converts a major-unit amount to the processor's smallest
// denomination, rounding to the nearest integer.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if IsZeroDecimal(currency) {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts a processor minor-unit amount back to a
// major-unit decimal.
func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	if IsZeroDecimal(currency) {
		return decimal.NewFromInt(amount)
	}
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100))
}
