package catalog

import (
	"fmt"

	"github.com/baseplus/skinquiz/internal/cart"
)

const (
	customMixCategoryID = 21
	correlationMetaKey  = "long_unique_id"

	largeSize       = "50ml"
	largeSizeImage  = "https://baseplus.co.uk/wp-content/uploads/2019/11/basetubeedited-e1590996899944.png"
	smallSizeImage  = "https://baseplus.co.uk/wp-content/uploads/2021/02/base-moistuirser-small-scaled.jpg"
	productTypeName = "simple"
)

// Descriptor is the payload that creates a bespoke product in the catalog.
type Descriptor struct {
	Name             string     `json:"name"`
	Type             string     `json:"type"`
	RegularPrice     string     `json:"regular_price"`
	PurchaseNote     string     `json:"purchase_note"`
	Description      string     `json:"description"`
	ShortDescription string     `json:"short_description"`
	Categories       []Category `json:"categories"`
	MetaData         []MetaData `json:"meta_data"`
	Images           []Image    `json:"images"`
}

type Category struct {
	ID int `json:"id"`
}

// MetaData is a catalog key/value entry.
type MetaData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Image struct {
	Src string `json:"src"`
}

// Product is the catalog entity returned on creation. Only ID is used.
type Product struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// CorrelationMeta returns the metadata entry that tags catalog writes with
// the session's correlation id.
func CorrelationMeta(correlationID string) MetaData {
	return MetaData{Key: correlationMetaKey, Value: correlationID}
}

// NewMoisturiserDescriptor builds the catalog payload for a bespoke
// moisturiser made from the top two ranked ingredients.
func NewMoisturiserDescriptor(ingredients []cart.Ingredient, basePrice, size, shopperName, correlationID string) (Descriptor, error) {
	if len(ingredients) < 2 {
		return Descriptor{}, fmt.Errorf("%w: need two ranked ingredients, got %d", cart.ErrMalformedVariation, len(ingredients))
	}
	a, b := ingredients[0].Name, ingredients[1].Name

	name := fmt.Sprintf("Your Bespoke Moisturiser (%s & %s), %s", a, b, size)
	if shopperName != "" {
		name = fmt.Sprintf("%s's Bespoke Moisturiser (%s, %s), %s", shopperName, a, b, size)
	}

	image := smallSizeImage
	if size == largeSize {
		image = largeSizeImage
	}

	return Descriptor{
		Name:             name,
		Type:             productTypeName,
		RegularPrice:     basePrice,
		PurchaseNote:     fmt.Sprintf("Your custom mixture will include %s, %s & the signature base+ ingredient", a, b),
		Description:      "",
		ShortDescription: fmt.Sprintf("Your custom mixture including %s, %s & the signature base+ ingredient", a, b),
		Categories:       []Category{{ID: customMixCategoryID}},
		MetaData:         []MetaData{CorrelationMeta(correlationID)},
		Images:           []Image{{Src: image}},
	}, nil
}
