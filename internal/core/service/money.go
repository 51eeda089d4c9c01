package service

import "github.com/shopspring/decimal"

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Totals holds the financial fields of an order. All values are rounded
// half away from zero to cents.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

func ComputeTotals(subtotal, taxRate, shipping, discount decimal.Decimal) Totals {
	subtotal = subtotal.Round(moneyPlaces)
	shipping = shipping.Round(moneyPlaces)
	discount = discount.Round(moneyPlaces)
	tax := subtotal.Mul(taxRate).Round(moneyPlaces)

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    subtotal.Add(tax).Add(shipping).Sub(discount).Round(moneyPlaces),
	}
}

func percent(rate decimal.Decimal) string {
	return rate.Mul(hundred).String() + "%"
}
