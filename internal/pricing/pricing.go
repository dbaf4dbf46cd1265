// Package pricing holds the order arithmetic shared by every repository
// implementation. All functions are pure.
package pricing

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const places = 2

// MaxAmount is the largest value a NUMERIC(14,2) money column holds.
var MaxAmount = decimal.RequireFromString("999999999999.99")

type Line struct {
	Price           decimal.Decimal
	DiscountedPrice decimal.Decimal
	Quantity        int
}

type LineFigures struct {
	SubTotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

type Totals struct {
	Lines         []LineFigures
	SubTotal      decimal.Decimal
	Discount      decimal.Decimal
	OrderDiscount decimal.Decimal
	Total         decimal.Decimal
	TotalItem     int
}

// Calculate prices every line and the order as a whole. SubTotal is the sum
// of the discounted line totals; Discount is the sum of line-level savings.
// A discount larger than the subtotal yields a negative total.
func Calculate(lines []Line, orderDiscount decimal.Decimal) Totals {
	totals := Totals{
		Lines:         make([]LineFigures, 0, len(lines)),
		SubTotal:      decimal.Zero,
		Discount:      decimal.Zero,
		OrderDiscount: orderDiscount,
	}

	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		sub := line.Price.Mul(qty)
		total := line.DiscountedPrice.Mul(qty)
		figures := LineFigures{
			SubTotal: sub,
			Discount: sub.Sub(total),
			Total:    total,
		}
		totals.Lines = append(totals.Lines, figures)
		totals.SubTotal = totals.SubTotal.Add(figures.Total)
		totals.Discount = totals.Discount.Add(figures.Discount)
		totals.TotalItem += line.Quantity
	}

	totals.Total = Round(totals.SubTotal.Sub(orderDiscount))
	return totals
}

// Settle derives the outstanding balance and paid status of an order.
func Settle(total decimal.Decimal, paid decimal.Decimal) (decimal.Decimal, bool) {
	due := Round(total.Sub(paid))
	return due, !due.IsPositive()
}

// Collect applies a later payment against an order's balance.
func Collect(due decimal.Decimal, paid decimal.Decimal, amount decimal.Decimal) (newDue decimal.Decimal, newPaid decimal.Decimal, status bool) {
	newDue = Round(due.Sub(amount))
	newPaid = Round(paid.Add(amount))
	return newDue, newPaid, !newDue.IsPositive()
}

// Round rounds half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(places)
}

// Fixed renders an amount as "1234.50".
func Fixed(d decimal.Decimal) string {
	return d.StringFixed(places)
}

var printer = message.NewPrinter(language.English)

// Grouped renders an amount with thousands separators, e.g. "1,234.50".
func Grouped(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", Round(d).InexactFloat64())
}
