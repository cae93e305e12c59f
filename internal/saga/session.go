package saga

import (
	"fmt"

	"github.com/baseplus/skinquiz/internal/cart"
	"github.com/baseplus/skinquiz/internal/quiz"
	"github.com/baseplus/skinquiz/internal/session"
)

// Session is the quiz session the saga reads its inputs from and reports
// its loading and error state into. *session.State implements it.
type Session interface {
	Cart() cart.Cart
	RankedIngredients() []cart.Ingredient
	BaseIngredientPrice() string
	MoisturiserSize() string
	CorrelationID() string
	AnalyticsID() string
	ShopperName() string
	QuizQuestions() []quiz.Question

	SetLoading(bool)
	SetError(session.ErrorState)
}

var _ Session = (*session.State)(nil)

func greeting(name string) string {
	if name == "" {
		return "Sorry"
	}
	return "Sorry " + name
}

func createFailedMessage(name string) string {
	return fmt.Sprintf("%s we weren't able to create your product", greeting(name))
}

// recordsFailedMessage is shown when every side record of a checkout failed.
func recordsFailedMessage(t cart.ProductType, name string) string {
	switch t {
	case cart.TypeSerum:
		return fmt.Sprintf("%s we weren't able to add your serum. Please refresh and try again", greeting(name))
	case cart.TypeBundle:
		return fmt.Sprintf("%s we weren't able to finish creating your bundle, please refresh and try again", greeting(name))
	default:
		return createFailedMessage(name)
	}
}
