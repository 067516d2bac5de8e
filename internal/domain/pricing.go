package domain

// PricingConfig carries the storefront pricing rules. All monetary values are
// in the smallest currency unit.
type PricingConfig struct {
	// FreeShippingThreshold is the subtotal a cart must strictly exceed to
	// qualify for free shipping.
	FreeShippingThreshold int64
	// FlatShippingFee is charged when the threshold is not exceeded.
	FlatShippingFee int64
	// TaxRateBasisPoints is the VAT rate in basis points (750 = 7.5%).
	TaxRateBasisPoints int64
}

// DefaultPricing mirrors the storefront's published rates: free shipping over
// NGN 50,000, NGN 2,000 flat fee otherwise, 7.5% VAT.
func DefaultPricing() PricingConfig {
	return PricingConfig{
		FreeShippingThreshold: 5_000_000,
		FlatShippingFee:       200_000,
		TaxRateBasisPoints:    750,
	}
}

// PriceItems computes the totals for a set of cart lines. It is the single
// source of truth for checkout: both the cart estimate surface and the order
// writer derive their totals here, so the displayed and persisted amounts
// cannot drift. Pure; an empty or nil slice yields all zeros.
func PriceItems(items []CartItem, cfg PricingConfig) Totals {
	var subtotal int64
	for _, item := range items {
		if item.Quantity <= 0 || item.UnitPrice <= 0 {
			continue
		}
		subtotal += item.UnitPrice * int64(item.Quantity)
	}
	if subtotal == 0 {
		return Totals{}
	}

	shipping := cfg.FlatShippingFee
	if subtotal > cfg.FreeShippingThreshold {
		shipping = 0
	}
	tax := subtotal * cfg.TaxRateBasisPoints / 10_000

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal + shipping + tax,
	}
}

// PriceOrderLines recomputes totals from already-snapshotted order lines. The
// order writer uses this to derive totals server-side instead of trusting a
// caller-supplied figure.
func PriceOrderLines(lines []OrderLineItem, cfg PricingConfig) Totals {
	items := make([]CartItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, CartItem{UnitPrice: line.UnitPrice, Quantity: line.Quantity})
	}
	return PriceItems(items, cfg)
}
