package model

import "testing"

func TestParsePaise(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1200.00", 120000},
		{"49.50", 4950},
		{"0.01", 1},
		{"0", 0},
		{"", 0},
		{"not-a-number", 0},
		{"-25.75", -2575},
		{"999999.99", 99999999},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParsePaise(tt.in); got != tt.want {
				t.Errorf("ParsePaise(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"120000", 120000},
		{"0", 0},
		{"", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		if got := ParseMinorUnits(tt.in); got != tt.want {
			t.Errorf("ParseMinorUnits(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatRupees(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{120050, "₹1200.50"},
		{100, "₹1.00"},
		{5, "₹0.05"},
		{0, "₹0.00"},
		{-2575, "-₹25.75"},
	}

	for _, tt := range tests {
		if got := FormatRupees(tt.in); got != tt.want {
			t.Errorf("FormatRupees(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	t.Run("empty cart has zero summary", func(t *testing.T) {
		s := Summarize(nil)
		if s != (CartSummary{}) {
			t.Errorf("Summarize(nil) = %+v, want zero summary", s)
		}
	})

	t.Run("populated cart", func(t *testing.T) {
		items := []CartItem{
			{ID: "p1", Price: 120000, Quantity: 2},
			{ID: "p2", Price: 4950, Quantity: 1},
		}
		s := Summarize(items)
		if s.ItemCount != 3 {
			t.Errorf("ItemCount = %d, want 3", s.ItemCount)
		}
		if s.Subtotal != 244950 {
			t.Errorf("Subtotal = %d, want 244950", s.Subtotal)
		}
		if s.Shipping != flatShippingPaise {
			t.Errorf("Shipping = %d, want %d", s.Shipping, flatShippingPaise)
		}
		if s.Total != s.Subtotal+s.Shipping {
			t.Errorf("Total = %d, want subtotal+shipping", s.Total)
		}
	})
}
