package cart

import "errors"

// ProductType classifies what a cart (or a single line) is buying.
type ProductType string

const (
	TypeEmpty       ProductType = "empty"
	TypeMoisturiser ProductType = "moisturiser"
	TypeSerum       ProductType = "serum"
	TypeBundle      ProductType = "bundle"
)

// ErrMalformedVariation is returned when a line's AdditionalInfo does not
// follow the catalog description format.
var ErrMalformedVariation = errors.New("malformed variation text")

// ErrInvalidCart is returned by Validate for carts the saga cannot process.
var ErrInvalidCart = errors.New("invalid cart")

// Ingredient is one ranked moisturiser ingredient. Slices of ingredients
// are ordered by rank, best match first.
type Ingredient struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
	Rank  int    `json:"rank"`
}

// Line is one purchasable item selected for checkout.
type Line struct {
	ID          int         `json:"id"`
	ProductName string      `json:"productName,omitempty"`
	ProductType ProductType `json:"productType"`
	Price       string      `json:"price"`
	// AdditionalInfo carries the catalog description, e.g.
	// "Serum NightRepair".
	AdditionalInfo string `json:"additionalInfo"`
}
