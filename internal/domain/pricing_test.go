package domain

import (
	"testing"
)

func TestPriceItemsBreakdown(t *testing.T) {
	cfg := PricingConfig{
		FreeShippingThreshold: 50_000,
		FlatShippingFee:       2_000,
		TaxRateBasisPoints:    750,
	}

	tests := []struct {
		name  string
		items []CartItem
		cfg   PricingConfig
		want  Totals
	}{
		{
			name: "below threshold charges flat fee",
			items: []CartItem{
				{UnitPrice: 10_000, Quantity: 2},
				{UnitPrice: 5_000, Quantity: 1},
			},
			cfg: cfg,
			want: Totals{
				Subtotal: 25_000,
				Shipping: 2_000,
				Tax:      1_875,
				Total:    28_875,
			},
		},
		{
			name: "above threshold ships free",
			items: []CartItem{
				{UnitPrice: 10_000, Quantity: 2},
				{UnitPrice: 5_000, Quantity: 1},
			},
			cfg: PricingConfig{
				FreeShippingThreshold: 20_000,
				FlatShippingFee:       2_000,
				TaxRateBasisPoints:    750,
			},
			want: Totals{
				Subtotal: 25_000,
				Shipping: 0,
				Tax:      1_875,
				Total:    26_875,
			},
		},
		{
			name: "exactly at threshold still charges the fee",
			items: []CartItem{
				{UnitPrice: 50_000, Quantity: 1},
			},
			cfg: cfg,
			want: Totals{
				Subtotal: 50_000,
				Shipping: 2_000,
				Tax:      3_750,
				Total:    55_750,
			},
		},
		{
			name:  "empty cart yields zeros",
			items: nil,
			cfg:   cfg,
			want:  Totals{},
		},
		{
			name: "non-positive lines are skipped",
			items: []CartItem{
				{UnitPrice: 10_000, Quantity: 0},
				{UnitPrice: -5, Quantity: 3},
			},
			cfg:  cfg,
			want: Totals{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := PriceItems(tc.items, tc.cfg)
			if got != tc.want {
				t.Fatalf("PriceItems = %+v, want %+v", got, tc.want)
			}
			if got.Total != got.Subtotal+got.Shipping+got.Tax {
				t.Fatalf("total %d is not the sum of its parts %+v", got.Total, got)
			}
		})
	}
}

func TestPriceOrderLinesMatchesCartPricing(t *testing.T) {
	cfg := DefaultPricing()

	items := []CartItem{
		{UnitPrice: 1_250_000, Quantity: 2},
		{UnitPrice: 800_000, Quantity: 1},
	}
	lines := []OrderLineItem{
		{UnitPrice: 1_250_000, Quantity: 2},
		{UnitPrice: 800_000, Quantity: 1},
	}

	fromCart := PriceItems(items, cfg)
	fromLines := PriceOrderLines(lines, cfg)
	if fromCart != fromLines {
		t.Fatalf("order-line pricing %+v diverges from cart pricing %+v", fromLines, fromCart)
	}
}

func TestVariantKeyDistinguishesVariants(t *testing.T) {
	base := CartItem{ProductID: "prod-1", SelectedSize: "L", SelectedColor: "walnut"}
	same := CartItem{ProductID: "prod-1", SelectedSize: "L", SelectedColor: "walnut"}
	other := CartItem{ProductID: "prod-1", SelectedSize: "M", SelectedColor: "walnut"}

	if base.VariantKey() != same.VariantKey() {
		t.Fatalf("identical variants produced different keys")
	}
	if base.VariantKey() == other.VariantKey() {
		t.Fatalf("different variants produced the same key")
	}
}
