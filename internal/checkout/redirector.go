// Package checkout builds the storefront checkout URL and hands the
// shopper over to it.
package checkout

import (
	"context"
	"fmt"
	"strings"
)

const (
	DefaultStorefront = "https://baseplus.co.uk"
	DefaultBundleSKU  = 6784

	campaignQuery = "utm_source=skin-quiz&utm_medium=web&utm_campaign=new-customer"
)

// Navigator performs the final full-page navigation.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Redirector builds checkout URLs on the storefront domain and navigates
// to them.
type Redirector struct {
	storefront string
	bundleSKU  int
	nav        Navigator
}

// NewRedirector creates a Redirector. Zero values fall back to the
// production storefront and bundle SKU.
func NewRedirector(storefront string, bundleSKU int, nav Navigator) *Redirector {
	if storefront == "" {
		storefront = DefaultStorefront
	}
	if bundleSKU <= 0 {
		bundleSKU = DefaultBundleSKU
	}
	return &Redirector{
		storefront: strings.TrimRight(storefront, "/"),
		bundleSKU:  bundleSKU,
		nav:        nav,
	}
}

// SingleURL returns the checkout URL for one catalog item.
func (r *Redirector) SingleURL(productID int) string {
	return fmt.Sprintf("%s/checkout?add-to-cart=%d&%s", r.storefront, productID, campaignQuery)
}

// BundleURL returns the checkout URL for the moisturiser and serum bundle.
// The brackets are left unescaped; the storefront parses them literally.
func (r *Redirector) BundleURL(moisturiserID, serumID int) string {
	return fmt.Sprintf("%s/checkout?add-to-cart=%d&quantity[%d]=1&quantity[%d]=1&%s",
		r.storefront, r.bundleSKU, moisturiserID, serumID, campaignQuery)
}

// Redirect navigates to url and returns it.
func (r *Redirector) Redirect(ctx context.Context, url string) (string, error) {
	if err := r.nav.Navigate(ctx, url); err != nil {
		return url, fmt.Errorf("navigating to checkout: %w", err)
	}
	return url, nil
}
