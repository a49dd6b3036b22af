package cart

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Summary is the derived pricing breakdown of a cart. It is never persisted;
// it is recomputed from the item list and loyalty/delivery inputs on demand.
type Summary struct {
	Subtotal        decimal.Decimal
	TaxTotal        decimal.Decimal
	DeliveryFee     decimal.Decimal
	LoyaltyDiscount decimal.Decimal
	GrandTotal      decimal.Decimal
}

// SummaryInput carries the external inputs to the summary computation.
type SummaryInput struct {
	// DeliveryFee is zero at the cart layer; the authoritative fee is set by
	// an administrator at order confirmation. The field exists so the order
	// lifecycle can reuse the same math with the confirmed fee.
	DeliveryFee decimal.Decimal
	// RequestedPoints is the loyalty spend the member asked for.
	RequestedPoints int
	// Balance is the ledger's current point balance.
	Balance int
}

// Summarize computes the pricing breakdown for the given lines.
//
// Tax is accumulated per line unrounded and rounded once at the summary
// level, so per-line rounding drift cannot compound. The loyalty discount is
// clamped to min(requested, balance, subtotal) and the grand total is floored
// at zero.
func Summarize(items []Item, in SummaryInput) Summary {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, it := range items {
		line := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(line)
		tax = tax.Add(line.Mul(it.TaxRate).Div(hundred))
	}
	subtotal = subtotal.Round(2)
	tax = tax.Round(2)

	discount := ClampDiscount(in.RequestedPoints, in.Balance, subtotal)

	total := subtotal.Add(tax).Add(in.DeliveryFee).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Summary{
		Subtotal:        subtotal,
		TaxTotal:        tax,
		DeliveryFee:     in.DeliveryFee,
		LoyaltyDiscount: discount,
		GrandTotal:      total.Round(2),
	}
}

// ClampDiscount converts a requested point spend into a monetary discount,
// capped at both the wallet balance and the order subtotal. One point is
// worth one rupee.
func ClampDiscount(requested, balance int, subtotal decimal.Decimal) decimal.Decimal {
	if requested < 0 {
		requested = 0
	}
	points := requested
	if balance < points {
		points = balance
	}
	if points < 0 {
		points = 0
	}
	return decimal.Min(decimal.NewFromInt(int64(points)), subtotal)
}
