package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSingleURL(t *testing.T) {
	r := NewRedirector("", 0, &Capture{})
	want := "https://baseplus.co.uk/checkout?add-to-cart=42&utm_source=skin-quiz&utm_medium=web&utm_campaign=new-customer"
	if got := r.SingleURL(42); got != want {
		t.Errorf("SingleURL = %q\nwant       %q", got, want)
	}
}

func TestBundleURL(t *testing.T) {
	r := NewRedirector("https://shop.example/", 0, &Capture{})
	got := r.BundleURL(42, 7)

	if !strings.HasPrefix(got, "https://shop.example/checkout?") {
		t.Errorf("BundleURL = %q, want storefront prefix", got)
	}
	if !strings.Contains(got, "add-to-cart=6784&quantity[42]=1&quantity[7]=1") {
		t.Errorf("BundleURL = %q, missing bundle query", got)
	}
	if !strings.HasSuffix(got, "&utm_source=skin-quiz&utm_medium=web&utm_campaign=new-customer") {
		t.Errorf("BundleURL = %q, missing campaign query", got)
	}
}

func TestBundleURL_CustomSKU(t *testing.T) {
	r := NewRedirector("", 9000, &Capture{})
	if got := r.BundleURL(1, 2); !strings.Contains(got, "add-to-cart=9000&") {
		t.Errorf("BundleURL = %q, want custom SKU", got)
	}
}

func TestRedirect_Captures(t *testing.T) {
	c := &Capture{}
	r := NewRedirector("", 0, c)

	url, err := r.Redirect(context.Background(), r.SingleURL(5))
	if err != nil {
		t.Fatalf("Redirect: %v", err)
	}
	if c.Count() != 1 || c.URL() != url {
		t.Errorf("captured %d urls, last %q; want 1, %q", c.Count(), c.URL(), url)
	}
}

type failingNavigator struct{}

func (failingNavigator) Navigate(context.Context, string) error { return errors.New("no display") }

func TestRedirect_NavigatorError(t *testing.T) {
	r := NewRedirector("", 0, failingNavigator{})
	if _, err := r.Redirect(context.Background(), r.SingleURL(5)); err == nil {
		t.Fatal("expected navigation error")
	}
}
