// Package cart models the shopper's current selection and derives the
// product type, total price, button label and variation text from it.
package cart

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cart is the ordered selection of zero to two lines.
type Cart []Line

// Type resolves what the cart is buying. Carts that fail Validate have
// undefined results.
func (c Cart) Type() ProductType {
	switch {
	case len(c) == 0:
		return TypeEmpty
	case len(c) == 2:
		return TypeBundle
	case c[0].ProductType == TypeSerum:
		return TypeSerum
	default:
		return TypeMoisturiser
	}
}

// Total sums the line prices. An empty cart totals zero.
func (c Cart) Total() (decimal.Decimal, error) {
	total := decimal.Zero
	for _, l := range c {
		p, err := decimal.NewFromString(l.Price)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parsing price %q of line %d: %w", l.Price, l.ID, err)
		}
		total = total.Add(p)
	}
	return total, nil
}

// ActionLabel returns the text shown on the checkout button.
func (c Cart) ActionLabel() string {
	switch c.Type() {
	case TypeEmpty:
		return "Add a product to your routine"
	case TypeBundle:
		return "buy personalised routine"
	default:
		return "buy personalised " + string(c.Type())
	}
}

// Find returns the first line of the given type.
func (c Cart) Find(t ProductType) (Line, bool) {
	for _, l := range c {
		if l.ProductType == t {
			return l, true
		}
	}
	return Line{}, false
}

// Validate checks the shape invariants: at most two lines, each a serum or
// a moisturiser, and a two-line cart holds exactly one of each.
func (c Cart) Validate() error {
	if len(c) > 2 {
		return fmt.Errorf("%w: %d lines, at most 2 allowed", ErrInvalidCart, len(c))
	}
	for _, l := range c {
		if l.ProductType != TypeSerum && l.ProductType != TypeMoisturiser {
			return fmt.Errorf("%w: line %d has product type %q", ErrInvalidCart, l.ID, l.ProductType)
		}
	}
	if len(c) == 2 && c[0].ProductType == c[1].ProductType {
		return fmt.Errorf("%w: bundle needs one serum and one moisturiser", ErrInvalidCart)
	}
	return nil
}
