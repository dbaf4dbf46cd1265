package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateCheckoutScenario(t *testing.T) {
	totals := Calculate([]Line{
		{Price: dec("100"), DiscountedPrice: dec("90"), Quantity: 2},
	}, dec("10"))

	require.Len(t, totals.Lines, 1)
	assert.True(t, totals.Lines[0].SubTotal.Equal(dec("200")))
	assert.True(t, totals.Lines[0].Discount.Equal(dec("20")))
	assert.True(t, totals.Lines[0].Total.Equal(dec("180")))

	assert.True(t, totals.SubTotal.Equal(dec("180")), "sub total %s", totals.SubTotal)
	assert.True(t, totals.Discount.Equal(dec("20")), "discount %s", totals.Discount)
	assert.True(t, totals.Total.Equal(dec("170")), "total %s", totals.Total)
	assert.Equal(t, 2, totals.TotalItem)

	due, status := Settle(totals.Total, dec("150"))
	assert.True(t, due.Equal(dec("20")))
	assert.False(t, status)
}

func TestCalculateSubtotalIsSumOfDiscountedLines(t *testing.T) {
	lines := []Line{
		{Price: dec("12.50"), DiscountedPrice: dec("12.50"), Quantity: 3},
		{Price: dec("7.99"), DiscountedPrice: dec("6.49"), Quantity: 5},
		{Price: dec("0"), DiscountedPrice: dec("0"), Quantity: 9},
		{Price: dec("1000"), DiscountedPrice: dec("999.99"), Quantity: 0},
	}

	totals := Calculate(lines, decimal.Zero)

	want := decimal.Zero
	for _, l := range lines {
		want = want.Add(l.DiscountedPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	assert.True(t, totals.SubTotal.Equal(want), "got %s want %s", totals.SubTotal, want)
	assert.True(t, totals.Discount.Equal(dec("7.50")), "discount %s", totals.Discount)
}

func TestCalculateEmptyCartYieldsNegativeTotal(t *testing.T) {
	totals := Calculate(nil, dec("15"))

	assert.True(t, totals.SubTotal.IsZero())
	assert.True(t, totals.Total.Equal(dec("-15")), "total %s", totals.Total)
	assert.Empty(t, totals.Lines)
}

func TestCalculateRoundsTotalHalfUp(t *testing.T) {
	totals := Calculate([]Line{
		{Price: dec("0.335"), DiscountedPrice: dec("0.335"), Quantity: 1},
	}, decimal.Zero)

	assert.Equal(t, "0.34", totals.Total.StringFixed(2))
}

func TestSettleStatus(t *testing.T) {
	cases := []struct {
		total, paid, due string
		status           bool
	}{
		{"170", "150", "20", false},
		{"170", "170", "0", true},
		{"170", "200", "-30", true},
		{"10.004", "10", "0", true},
		{"10.006", "10", "0.01", false},
	}
	for _, tc := range cases {
		due, status := Settle(dec(tc.total), dec(tc.paid))
		assert.True(t, due.Equal(dec(tc.due)), "total=%s paid=%s due=%s", tc.total, tc.paid, due)
		assert.Equal(t, tc.status, status, "total=%s paid=%s", tc.total, tc.paid)
	}
}

func TestCollectReducesDueByAmount(t *testing.T) {
	due, paid, status := Collect(dec("20"), dec("150"), dec("20"))

	assert.True(t, due.IsZero())
	assert.True(t, paid.Equal(dec("170")))
	assert.True(t, status)

	due, paid, status = Collect(dec("20"), dec("150"), dec("5.5"))
	assert.True(t, due.Equal(dec("14.5")))
	assert.True(t, paid.Equal(dec("155.5")))
	assert.False(t, status)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "180.00", Fixed(dec("180")))
	assert.Equal(t, "0.50", Fixed(dec("0.5")))
	assert.Equal(t, "1,234.50", Grouped(dec("1234.5")))
	assert.Equal(t, "1,000,000.00", Grouped(dec("1000000")))
	assert.Equal(t, "-15.00", Grouped(dec("-15")))
}
