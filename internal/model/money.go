package model

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// ClampDiscount bounds a percentage discount to [0,100].
func ClampDiscount(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(hundred) {
		return hundred
	}
	return d
}

// LineTotal computes unit_price * quantity * (1 - discount/100) rounded to
// cents, with the discount clamped first.
func LineTotal(unitPrice decimal.Decimal, quantity int, discount decimal.Decimal) decimal.Decimal {
	factor := one.Sub(ClampDiscount(discount).Div(hundred))
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Mul(factor).Round(2)
}

// SumLines adds the stored line totals; an order's total always equals this.
func SumLines(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.TotalPrice)
	}
	return total
}
