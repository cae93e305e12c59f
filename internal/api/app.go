package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baseplus/skinquiz/internal/cart"
	"github.com/baseplus/skinquiz/internal/saga"
	"github.com/baseplus/skinquiz/internal/session"
	"github.com/baseplus/skinquiz/internal/storage"
)

const maxSnapshotBodySize = 1 << 20 // 1MB

// Checkouter runs the add-to-cart saga.
type Checkouter interface {
	AddToCart(ctx context.Context, s saga.Session) saga.Result
}

// AttemptStore reads the checkout attempt ledger.
type AttemptStore interface {
	GetAttempt(id string) (storage.Attempt, error)
	ListAttempts(correlationID string, limit int) ([]storage.Attempt, error)
}

// RetryLister reads the side-record retry queue.
type RetryLister interface {
	ListRetries(status string, limit int) ([]storage.RetryJob, error)
}

type AppDeps struct {
	Saga     Checkouter
	Attempts AttemptStore
	Retries  RetryLister // optional; if nil, /retries is not served
	Token    string
}

// Summary is the cart overview shown next to the checkout button.
type Summary struct {
	Type      cart.ProductType `json:"type"`
	Label     string           `json:"label"`
	Total     string           `json:"total"`
	Variation string           `json:"variation,omitempty"`
}

// CheckoutResponse reports how a checkout ended.
type CheckoutResponse struct {
	Outcome       saga.Outcome        `json:"outcome"`
	CorrelationID string              `json:"correlation_id"`
	RedirectURL   string              `json:"redirect_url,omitempty"`
	Error         *session.ErrorState `json:"error,omitempty"`
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/summary", handleSummary)
		r.Post("/checkout", handleCheckout(deps))
		r.Get("/attempts", handleListAttempts(deps))
		r.Get("/attempts/{id}", handleGetAttempt(deps))
		if deps.Retries != nil {
			r.Get("/retries", handleListRetries(deps))
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Summarize derives the button label, total and variation text of a
// snapshot's cart.
func Summarize(snap session.Snapshot) (Summary, error) {
	if err := snap.Cart.Validate(); err != nil {
		return Summary{}, err
	}
	total, err := snap.Cart.Total()
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", cart.ErrInvalidCart, err)
	}
	variation, err := cart.Describe(snap.Cart, snap.Ingredients)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Type:      snap.Cart.Type(),
		Label:     snap.Cart.ActionLabel(),
		Total:     total.StringFixed(2),
		Variation: variation,
	}, nil
}

// Checkout validates the snapshot's cart and runs the saga on a fresh
// session built from it.
func Checkout(ctx context.Context, c Checkouter, snap session.Snapshot) (CheckoutResponse, saga.Result, error) {
	if err := snap.Cart.Validate(); err != nil {
		return CheckoutResponse{}, saga.Result{}, err
	}
	s := session.New(snap)
	res := c.AddToCart(ctx, s)
	return CheckoutResponse{
		Outcome:       res.Outcome,
		CorrelationID: s.CorrelationID(),
		RedirectURL:   res.RedirectURL,
		Error:         res.Error,
	}, res, nil
}

func decodeSnapshot(w http.ResponseWriter, r *http.Request) (session.Snapshot, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSnapshotBodySize)
	defer r.Body.Close()

	var snap session.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return session.Snapshot{}, false
	}
	return snap, true
}

func handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := decodeSnapshot(w, r)
	if !ok {
		return
	}
	sum, err := Summarize(snap)
	switch {
	case errors.Is(err, cart.ErrInvalidCart):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	case errors.Is(err, cart.ErrMalformedVariation):
		httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%v", err)
		return
	case err != nil:
		httpError(w, http.StatusInternalServerError, "api_error", "summarizing cart: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func handleCheckout(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := decodeSnapshot(w, r)
		if !ok {
			return
		}

		resp, res, err := Checkout(r.Context(), deps.Saga, snap)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		writeJSON(w, checkoutStatus(res), resp)
	}
}

func checkoutStatus(res saga.Result) int {
	switch res.Outcome {
	case saga.OutcomeRedirecting:
		return http.StatusOK
	case saga.OutcomeBusy:
		return http.StatusConflict
	}
	switch {
	case res.ProductType == cart.TypeEmpty:
		return http.StatusBadRequest
	case res.Error != nil && res.Error.Code == http.StatusUnprocessableEntity:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func handleListAttempts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		attempts, err := deps.Attempts.ListAttempts(r.URL.Query().Get("correlation_id"), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list attempts: %v", err)
			return
		}
		if attempts == nil {
			attempts = []storage.Attempt{}
		}
		writeJSON(w, http.StatusOK, attempts)
	}
}

func handleGetAttempt(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		a, err := deps.Attempts.GetAttempt(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "attempt not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get attempt: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func handleListRetries(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		switch status {
		case "", storage.RetryPending, storage.RetryRunning, storage.RetryCompleted, storage.RetryFailed:
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown status %q", status)
			return
		}
		jobs, err := deps.Retries.ListRetries(status, parseIntParam(r, "limit", 20, 100))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list retries: %v", err)
			return
		}
		if jobs == nil {
			jobs = []storage.RetryJob{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}
