// Package session provides the quiz session state the checkout saga reads
// from and reports into.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/baseplus/skinquiz/internal/cart"
	"github.com/baseplus/skinquiz/internal/quiz"
)

// ErrorState is the session-wide error slot shown to the shopper. The last
// failing step overwrites it.
type ErrorState struct {
	Error     bool   `json:"error"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	UIMessage string `json:"uiMessage"`
}

// Snapshot is the serialisable input of a session, as posted by the quiz
// front end or loaded from a file by the CLI.
type Snapshot struct {
	CorrelationID   string            `json:"correlationId"`
	AnalyticsID     string            `json:"analyticsId"`
	ShopperName     string            `json:"userName"`
	Cart            cart.Cart         `json:"cart"`
	Ingredients     []cart.Ingredient `json:"sortedIngredients"`
	BasePrice       string            `json:"baseIngredientPrice"`
	MoisturiserSize string            `json:"moisturiserSize"`
	QuizQuestions   []quiz.Question   `json:"quizQuestions"`
}

// State is an in-memory session. It is safe for concurrent use.
type State struct {
	mu      sync.RWMutex
	snap    Snapshot
	loading bool
	err     ErrorState
}

// New creates a State from a snapshot. Missing correlation and analytics
// ids are generated.
func New(snap Snapshot) *State {
	if snap.CorrelationID == "" {
		snap.CorrelationID = NewCorrelationID()
	}
	if snap.AnalyticsID == "" {
		snap.AnalyticsID = snap.CorrelationID
	}
	return &State{snap: snap}
}

// NewCorrelationID returns a fresh id to tie together every record written
// for one quiz session.
func NewCorrelationID() string {
	return uuid.New().String()
}

func (s *State) Cart() cart.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(cart.Cart(nil), s.snap.Cart...)
}

func (s *State) RankedIngredients() []cart.Ingredient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]cart.Ingredient(nil), s.snap.Ingredients...)
}

func (s *State) BaseIngredientPrice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.BasePrice
}

func (s *State) MoisturiserSize() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.MoisturiserSize
}

func (s *State) CorrelationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.CorrelationID
}

func (s *State) AnalyticsID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.AnalyticsID
}

func (s *State) ShopperName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.ShopperName
}

func (s *State) QuizQuestions() []quiz.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]quiz.Question(nil), s.snap.QuizQuestions...)
}

// SetLoading sets the loading flag.
func (s *State) SetLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

// Loading reports the loading flag.
func (s *State) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetError overwrites the error slot.
func (s *State) SetError(e ErrorState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = e
}

// Error returns the current error slot.
func (s *State) Error() ErrorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
