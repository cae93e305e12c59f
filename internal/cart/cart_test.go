package cart

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

var (
	serumLine       = Line{ID: 11, ProductType: TypeSerum, Price: "5", AdditionalInfo: "Serum NightRepair"}
	moisturiserLine = Line{ID: 22, ProductType: TypeMoisturiser, Price: "10.50", AdditionalInfo: "made with Rosehip & Niacinamide"}
)

func TestType(t *testing.T) {
	tests := []struct {
		name string
		cart Cart
		want ProductType
	}{
		{"empty", nil, TypeEmpty},
		{"serum", Cart{serumLine}, TypeSerum},
		{"moisturiser", Cart{moisturiserLine}, TypeMoisturiser},
		{"bundle", Cart{moisturiserLine, serumLine}, TypeBundle},
		{"bundle serum first", Cart{serumLine, moisturiserLine}, TypeBundle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cart.Type(); got != tt.want {
				t.Errorf("Type() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTotal(t *testing.T) {
	got, err := Cart{{Price: "10.50"}, {Price: "5"}}.Total()
	if err != nil {
		t.Fatalf("Total: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("15.5")) {
		t.Errorf("Total() = %s, want 15.5", got)
	}
}

func TestTotal_Empty(t *testing.T) {
	got, err := Cart{}.Total()
	if err != nil {
		t.Fatalf("Total: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("Total() = %s, want 0", got)
	}
}

func TestTotal_MalformedPrice(t *testing.T) {
	if _, err := (Cart{{ID: 1, Price: "ten"}}).Total(); err == nil {
		t.Fatal("expected error for malformed price")
	}
}

func TestActionLabel(t *testing.T) {
	tests := []struct {
		cart Cart
		want string
	}{
		{Cart{}, "Add a product to your routine"},
		{Cart{moisturiserLine}, "buy personalised moisturiser"},
		{Cart{serumLine}, "buy personalised serum"},
		{Cart{moisturiserLine, serumLine}, "buy personalised routine"},
	}
	for _, tt := range tests {
		if got := tt.cart.ActionLabel(); got != tt.want {
			t.Errorf("ActionLabel(%d lines) = %q, want %q", len(tt.cart), got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := []Cart{nil, {serumLine}, {moisturiserLine}, {serumLine, moisturiserLine}}
	for _, c := range valid {
		if err := c.Validate(); err != nil {
			t.Errorf("Validate(%v) = %v, want nil", c, err)
		}
	}

	invalid := []Cart{
		{serumLine, serumLine},
		{moisturiserLine, serumLine, serumLine},
		{{ID: 3, ProductType: "toner"}},
	}
	for _, c := range invalid {
		if err := c.Validate(); !errors.Is(err, ErrInvalidCart) {
			t.Errorf("Validate(%v) = %v, want ErrInvalidCart", c, err)
		}
	}
}
