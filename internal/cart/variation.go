package cart

import (
	"fmt"
	"strings"
)

// The catalog description is free text. The serum variation is its second
// whitespace-delimited token; the moisturiser mixture is the segment between
// the first and second "with ".
const mixtureSeparator = "with "

// MoisturiserVariation joins the names of the top two ranked ingredients.
func MoisturiserVariation(ingredients []Ingredient) (string, error) {
	if len(ingredients) < 2 {
		return "", fmt.Errorf("%w: need two ranked ingredients, got %d", ErrMalformedVariation, len(ingredients))
	}
	return ingredients[0].Name + " & " + ingredients[1].Name, nil
}

// SerumVariation extracts the variation name from a serum line.
func SerumVariation(l Line) (string, error) {
	fields := strings.Fields(l.AdditionalInfo)
	if len(fields) < 2 {
		return "", fmt.Errorf("%w: serum %d description %q has no variation token", ErrMalformedVariation, l.ID, l.AdditionalInfo)
	}
	return fields[1], nil
}

// MixtureVariation extracts the ingredient mixture from a moisturiser line.
func MixtureVariation(l Line) (string, error) {
	parts := strings.Split(l.AdditionalInfo, mixtureSeparator)
	if len(parts) < 2 {
		return "", fmt.Errorf("%w: moisturiser %d description %q has no mixture", ErrMalformedVariation, l.ID, l.AdditionalInfo)
	}
	return parts[1], nil
}

// BundleVariation describes a bundle from the ranked ingredients and the
// serum line. This form is stored with the product record.
func BundleVariation(ingredients []Ingredient, serum Line) (string, error) {
	mixture, err := MoisturiserVariation(ingredients)
	if err != nil {
		return "", err
	}
	return bundleTemplate(mixture, serum)
}

// BundleEventVariation describes a bundle from the two cart lines. This
// form is sent with the analytics event.
func BundleEventVariation(moisturiser, serum Line) (string, error) {
	mixture, err := MixtureVariation(moisturiser)
	if err != nil {
		return "", err
	}
	return bundleTemplate(mixture, serum)
}

func bundleTemplate(mixture string, serum Line) (string, error) {
	token, err := SerumVariation(serum)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Moisturiser: %s, Serum: %s", mixture, token), nil
}

// Describe returns the human-readable variation text for the cart.
func Describe(c Cart, ingredients []Ingredient) (string, error) {
	switch c.Type() {
	case TypeMoisturiser:
		return MoisturiserVariation(ingredients)
	case TypeSerum:
		return SerumVariation(c[0])
	case TypeBundle:
		serum, ok := c.Find(TypeSerum)
		if !ok {
			return "", fmt.Errorf("%w: bundle without serum", ErrInvalidCart)
		}
		return BundleVariation(ingredients, serum)
	default:
		return "", nil
	}
}
