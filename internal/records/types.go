package records

import (
	"encoding/json"
	"time"

	"github.com/baseplus/skinquiz/internal/cart"
)

// Event types sent when the shopper completes the quiz.
const (
	EventMoisturiserAdded = "Quiz completed - Moisturiser Added To Cart"
	EventSerumAdded       = "Quiz completed - Serum Added To Cart"
	EventBundleAdded      = "Quiz completed - Bundle Added To Cart"
)

// Event is one analytics event per completed purchase action. CorrelationID
// and At are fixed when the saga builds the event, so a replay is sent as
// the same event.
type Event struct {
	Type          string    `json:"event_type"`
	DistinctID    string    `json:"distinct_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	At            time.Time `json:"at"`
	MoisturiserID int       `json:"moisturiserId,omitempty"`
	SerumID       int       `json:"serumId,omitempty"`
	Variation     string    `json:"variation,omitempty"`
}

// DatabaseRecord is the product recommendation kept for later human review.
type DatabaseRecord struct {
	RecommendedVariation Variation `json:"recommendedVariation"`
	NewVariation         string    `json:"newVariation"`
	Amended              bool      `json:"amended"`
	ProductID            string    `json:"productId"`
}

// Variation is either a free-text description or, for a moisturiser, the
// list of recommended ingredients.
type Variation struct {
	Text        string
	Ingredients []IngredientRef
}

// IngredientRef identifies a recommended ingredient.
type IngredientRef struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// TextVariation wraps a free-text variation.
func TextVariation(s string) Variation {
	return Variation{Text: s}
}

// IngredientVariation lists the given ingredients.
func IngredientVariation(ingredients []cart.Ingredient) Variation {
	refs := make([]IngredientRef, len(ingredients))
	for i, in := range ingredients {
		refs[i] = IngredientRef{Name: in.Name, ID: in.ID}
	}
	return Variation{Ingredients: refs}
}

func (v Variation) MarshalJSON() ([]byte, error) {
	if v.Ingredients != nil {
		return json.Marshal(v.Ingredients)
	}
	return json.Marshal(v.Text)
}

func (v *Variation) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		v.Text = ""
		return json.Unmarshal(data, &v.Ingredients)
	}
	v.Ingredients = nil
	return json.Unmarshal(data, &v.Text)
}
