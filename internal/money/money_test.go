package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestComputeQuote(t *testing.T) {
	pct := d("5")
	q := ComputeQuote([]Line{{UnitPrice: d("50.00"), Quantity: 2}}, &pct, decimal.Zero)

	assert.True(t, q.Subtotal.Equal(d("100.00")), "subtotal = %s", q.Subtotal)
	assert.True(t, q.PlatformFee.Equal(d("5.00")), "fee = %s", q.PlatformFee)
	assert.True(t, q.OrganizerPayout.Equal(d("95.00")), "payout = %s", q.OrganizerPayout)
}

func TestComputeQuoteMultipleLines(t *testing.T) {
	pct := d("10")
	q := ComputeQuote([]Line{
		{UnitPrice: d("25.50"), Quantity: 3},
		{UnitPrice: d("12.25"), Quantity: 1},
	}, &pct, d("1.50"))

	// 76.50 + 12.25 = 88.75; fee = 8.875 + 1.50 = 10.375
	assert.True(t, q.Subtotal.Equal(d("88.75")))
	assert.True(t, q.PlatformFee.Equal(d("10.375")))
	assert.True(t, q.OrganizerPayout.Equal(d("78.375")))

	// The split always reconciles exactly.
	assert.True(t, q.PlatformFee.Add(q.OrganizerPayout).Equal(q.Subtotal))
}

func TestComputeQuoteDefaultPercent(t *testing.T) {
	q := ComputeQuote([]Line{{UnitPrice: d("100.00"), Quantity: 1}}, nil, decimal.Zero)
	assert.True(t, q.PlatformFee.Equal(d("5.00")))
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(10000), ToMinorUnits(d("100.00"), "cad"))
	assert.Equal(t, int64(5000), ToMinorUnits(d("50"), "usd"))
	assert.Equal(t, int64(1999), ToMinorUnits(d("19.99"), "eur"))

	// Zero-decimal currencies pass through unscaled.
	assert.Equal(t, int64(5000), ToMinorUnits(d("5000"), "jpy"))
	assert.Equal(t, int64(5000), ToMinorUnits(d("5000.4"), "JPY"))
}

func TestMinorUnitRoundTrip(t *testing.T) {
	for _, s := range []string{"0.01", "1.00", "19.99", "100.00", "12345.67"} {
		amount := d(s)
		back := FromMinorUnits(ToMinorUnits(amount, "cad"), "cad")
		require.True(t, back.Equal(amount), "%s round-tripped to %s", amount, back)
	}

	assert.True(t, FromMinorUnits(ToMinorUnits(d("750"), "krw"), "krw").Equal(d("750")))
}
