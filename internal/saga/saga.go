// Package saga coordinates the add-to-cart checkout: it creates the bespoke
// product when needed, writes the side records concurrently, applies the
// success policy and redirects the shopper to the storefront checkout.
package saga

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baseplus/skinquiz/internal/cart"
	"github.com/baseplus/skinquiz/internal/catalog"
	"github.com/baseplus/skinquiz/internal/checkout"
	"github.com/baseplus/skinquiz/internal/quiz"
	"github.com/baseplus/skinquiz/internal/reconcile"
	"github.com/baseplus/skinquiz/internal/records"
	"github.com/baseplus/skinquiz/internal/session"
	"github.com/baseplus/skinquiz/internal/storage"
)

const defaultCallTimeout = 15 * time.Second

// Outcome is the terminal state of one AddToCart invocation.
type Outcome string

const (
	OutcomeRedirecting Outcome = "redirecting"
	OutcomeFailed      Outcome = "failed"
	// OutcomeBusy is returned when a saga for the same session is already
	// in flight. The session is left untouched.
	OutcomeBusy Outcome = "busy"
)

// ProductSubmitter creates catalog products.
type ProductSubmitter interface {
	Submit(ctx context.Context, d catalog.Descriptor) (*catalog.Product, error)
}

// Tracker sends analytics events.
type Tracker interface {
	Track(ctx context.Context, e records.Event) error
}

// RecordWriter writes the database side records.
type RecordWriter interface {
	SaveProduct(ctx context.Context, rec records.DatabaseRecord) error
	SaveQuiz(ctx context.Context, correlationID string, questions []quiz.Question) error
	UpdateSerumMetadata(ctx context.Context, serumID int, correlationID string) error
}

// Ledger keeps a record of every attempt for later reconciliation.
type Ledger interface {
	SaveAttempt(a storage.Attempt) error
}

// RetryQueue accepts side records to be written again later.
type RetryQueue interface {
	EnqueueRetry(job storage.RetryJob) error
}

// Deps wires a Coordinator. Ledger, Retries and Policy are optional.
type Deps struct {
	Catalog     ProductSubmitter
	Tracker     Tracker
	Records     RecordWriter
	Redirector  *checkout.Redirector
	Ledger      Ledger
	Retries     RetryQueue
	Policy      Policy
	CallTimeout time.Duration
}

// Result describes how an invocation ended. Failures are also written to
// the session's error slot; Result mirrors them for callers that have no
// session view.
type Result struct {
	Outcome     Outcome
	ProductType cart.ProductType
	RedirectURL string
	Error       *session.ErrorState
	Steps       []StepResult
}

// Coordinator runs the add-to-cart saga.
type Coordinator struct {
	catalog     ProductSubmitter
	tracker     Tracker
	records     RecordWriter
	redirector  *checkout.Redirector
	ledger      Ledger
	retries     RetryQueue
	policy      Policy
	callTimeout time.Duration
	logger      *slog.Logger

	inflight sync.Map // correlation id -> struct{}
}

// New creates a Coordinator. A nil Policy defaults to AnySucceeded and a
// non-positive CallTimeout to 15s.
func New(d Deps) *Coordinator {
	if d.Policy == nil {
		d.Policy = AnySucceeded
	}
	if d.CallTimeout <= 0 {
		d.CallTimeout = defaultCallTimeout
	}
	return &Coordinator{
		catalog:     d.Catalog,
		tracker:     d.Tracker,
		records:     d.Records,
		redirector:  d.Redirector,
		ledger:      d.Ledger,
		retries:     d.Retries,
		policy:      d.Policy,
		callTimeout: d.CallTimeout,
		logger:      slog.Default(),
	}
}

// run is the per-invocation state threaded through a sub-flow.
type run struct {
	s      Session
	cart   cart.Cart
	typ    cart.ProductType
	corr   string
	name   string
	steps  []StepResult
	logger *slog.Logger
}

// AddToCart runs the saga for s. The loading flag is set for the duration
// of the call and always cleared before it returns.
func (c *Coordinator) AddToCart(ctx context.Context, s Session) (res Result) {
	corr := s.CorrelationID()
	if _, busy := c.inflight.LoadOrStore(corr, struct{}{}); busy {
		c.logger.Warn("add to cart already in flight", "correlation_id", corr)
		return Result{Outcome: OutcomeBusy}
	}
	defer c.inflight.Delete(corr)

	s.SetLoading(true)
	defer s.SetLoading(false)

	r := &run{
		s:    s,
		cart: s.Cart(),
		corr: corr,
		name: s.ShopperName(),
	}
	r.typ = r.cart.Type()
	r.logger = c.logger.With("correlation_id", corr, "product_type", r.typ)

	start := time.Now()
	defer func() {
		res.ProductType = r.typ
		res.Steps = r.steps
		c.saveAttempt(r, res, start)
	}()

	switch r.typ {
	case cart.TypeEmpty:
		return r.fail(session.ErrorState{Error: true, Code: http.StatusBadRequest, UIMessage: r.cart.ActionLabel()})
	case cart.TypeMoisturiser:
		return c.addMoisturiser(ctx, r)
	case cart.TypeSerum:
		return c.addSerum(ctx, r)
	default:
		return c.addBundle(ctx, r)
	}
}

func (c *Coordinator) addMoisturiser(ctx context.Context, r *run) Result {
	ingredients := r.s.RankedIngredients()
	variation, err := cart.MoisturiserVariation(ingredients)
	if err != nil {
		return r.malformed(err)
	}

	product, res, ok := c.createProduct(ctx, r, ingredients)
	if !ok {
		return res
	}

	event := records.Event{
		Type:          records.EventMoisturiserAdded,
		DistinctID:    r.s.AnalyticsID(),
		CorrelationID: r.corr,
		At:            time.Now(),
		MoisturiserID: product.ID,
		Variation:     variation,
	}
	rec := records.DatabaseRecord{
		RecommendedVariation: records.IngredientVariation(ingredients[:2]),
		ProductID:            r.corr,
	}
	tasks := []task{c.analyticsTask(r, event, rec), c.quizTask(r)}
	return c.finish(ctx, r, tasks, c.redirector.SingleURL(product.ID))
}

func (c *Coordinator) addSerum(ctx context.Context, r *run) Result {
	serum := r.cart[0]
	token, err := cart.SerumVariation(serum)
	if err != nil {
		return r.malformed(err)
	}

	event := records.Event{
		Type:          records.EventSerumAdded,
		DistinctID:    r.s.AnalyticsID(),
		CorrelationID: r.corr,
		At:            time.Now(),
		SerumID:       serum.ID,
	}
	rec := records.DatabaseRecord{
		RecommendedVariation: records.TextVariation(token),
		ProductID:            r.corr,
	}
	tasks := []task{c.analyticsTask(r, event, rec), c.quizTask(r), c.serumMetaTask(r, serum.ID)}
	return c.finish(ctx, r, tasks, c.redirector.SingleURL(serum.ID))
}

func (c *Coordinator) addBundle(ctx context.Context, r *run) Result {
	serum, _ := r.cart.Find(cart.TypeSerum)
	moisturiser, _ := r.cart.Find(cart.TypeMoisturiser)
	ingredients := r.s.RankedIngredients()

	// Parse both descriptions before creating anything so a malformed line
	// cannot leave an orphan product in the catalog.
	eventVariation, err := cart.BundleEventVariation(moisturiser, serum)
	if err != nil {
		return r.malformed(err)
	}
	recordVariation, err := cart.BundleVariation(ingredients, serum)
	if err != nil {
		return r.malformed(err)
	}

	product, res, ok := c.createProduct(ctx, r, ingredients)
	if !ok {
		return res
	}

	event := records.Event{
		Type:          records.EventBundleAdded,
		DistinctID:    r.s.AnalyticsID(),
		CorrelationID: r.corr,
		At:            time.Now(),
		MoisturiserID: product.ID,
		SerumID:       serum.ID,
		Variation:     eventVariation,
	}
	rec := records.DatabaseRecord{
		RecommendedVariation: records.TextVariation(recordVariation),
		ProductID:            r.corr,
	}
	tasks := []task{c.analyticsTask(r, event, rec), c.quizTask(r), c.serumMetaTask(r, serum.ID)}
	return c.finish(ctx, r, tasks, c.redirector.BundleURL(product.ID, serum.ID))
}

// createProduct submits the bespoke moisturiser. Rejections and transport
// failures are reported the same way: the error slot is written and ok is
// false.
func (c *Coordinator) createProduct(ctx context.Context, r *run, ingredients []cart.Ingredient) (*catalog.Product, Result, bool) {
	d, err := catalog.NewMoisturiserDescriptor(ingredients, r.s.BaseIngredientPrice(), r.s.MoisturiserSize(), r.name, r.corr)
	if err != nil {
		return nil, r.malformed(err), false
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	product, err := c.catalog.Submit(callCtx, d)
	r.steps = append(r.steps, StepResult{Name: StepCreateProduct, Err: err})
	if err != nil {
		es := session.ErrorState{
			Error:     true,
			Code:      http.StatusServiceUnavailable,
			Message:   err.Error(),
			UIMessage: createFailedMessage(r.name),
		}
		var se *catalog.StatusError
		if errors.As(err, &se) {
			es.Code = se.Code
			if es.Code == 0 {
				es.Code = se.Status
			}
			es.Message = se.Message
		}
		r.logger.Error("creating product failed", "error", err)
		return nil, r.fail(es), false
	}

	r.logger = r.logger.With("product_id", product.ID)
	return product, Result{}, true
}

// analyticsTask tracks the event and then stores the recommendation record.
// Both writes belong to one side record: a failed event skips the record.
func (c *Coordinator) analyticsTask(r *run, e records.Event, rec records.DatabaseRecord) task {
	var tracked bool
	return task{
		name: StepAnalytics,
		run: func(ctx context.Context) error {
			if err := c.tracker.Track(ctx, e); err != nil {
				return err
			}
			tracked = true
			return c.records.SaveProduct(ctx, rec)
		},
		retry: func() (storage.RetryJob, error) {
			return reconcile.AnalyticsJob(r.corr, tracked, e, rec)
		},
	}
}

func (c *Coordinator) quizTask(r *run) task {
	questions := r.s.QuizQuestions()
	return task{
		name: StepQuiz,
		run: func(ctx context.Context) error {
			return c.records.SaveQuiz(ctx, r.corr, questions)
		},
		retry: func() (storage.RetryJob, error) {
			return reconcile.QuizJob(r.corr, questions)
		},
	}
}

func (c *Coordinator) serumMetaTask(r *run, serumID int) task {
	return task{
		name: StepSerumMeta,
		run: func(ctx context.Context) error {
			return c.records.UpdateSerumMetadata(ctx, serumID, r.corr)
		},
		retry: func() (storage.RetryJob, error) {
			return reconcile.SerumMetaJob(r.corr, serumID)
		},
	}
}

// finish fans out the side records, applies the policy and redirects.
func (c *Coordinator) finish(ctx context.Context, r *run, tasks []task, checkoutURL string) Result {
	results := settle(ctx, c.callTimeout, tasks)
	r.steps = append(r.steps, results...)
	for _, res := range results {
		if !res.OK() {
			r.logger.Warn("side record failed", "step", res.Name, "error", res.Err)
		}
	}

	if !c.policy(results) {
		r.logger.Error("all side records failed")
		return r.fail(session.ErrorState{
			Error:     true,
			Code:      http.StatusBadRequest,
			UIMessage: recordsFailedMessage(r.typ, r.name),
		})
	}
	c.queueRetries(r, tasks, results)

	url, err := c.redirector.Redirect(ctx, checkoutURL)
	r.steps = append(r.steps, StepResult{Name: StepRedirect, Err: err})
	if err != nil {
		r.logger.Error("redirect failed", "url", url, "error", err)
		res := r.fail(session.ErrorState{
			Error:     true,
			Code:      http.StatusInternalServerError,
			Message:   err.Error(),
			UIMessage: "We couldn't open the checkout page, please continue at " + url,
		})
		res.RedirectURL = url
		return res
	}

	r.logger.Info("redirecting to checkout", "url", url)
	return Result{Outcome: OutcomeRedirecting, RedirectURL: url}
}

// queueRetries hands the failed side records of a checkout that went ahead
// to the reconciliation queue.
func (c *Coordinator) queueRetries(r *run, tasks []task, results []StepResult) {
	if c.retries == nil {
		return
	}
	for i, res := range results {
		if res.OK() || tasks[i].retry == nil {
			continue
		}
		job, err := tasks[i].retry()
		if err == nil {
			err = c.retries.EnqueueRetry(job)
		}
		if err != nil {
			r.logger.Warn("queueing side record retry failed", "step", res.Name, "error", err)
			continue
		}
		r.logger.Info("side record queued for retry", "step", res.Name, "job_id", job.ID)
	}
}

func (r *run) fail(es session.ErrorState) Result {
	r.s.SetError(es)
	return Result{Outcome: OutcomeFailed, Error: &es}
}

// malformed reports catalog description text that does not follow the
// expected format. It is surfaced, not repaired.
func (r *run) malformed(err error) Result {
	r.logger.Error("malformed cart data", "error", err)
	return r.fail(session.ErrorState{
		Error:     true,
		Code:      http.StatusUnprocessableEntity,
		Message:   err.Error(),
		UIMessage: recordsFailedMessage(r.typ, r.name),
	})
}

func (c *Coordinator) saveAttempt(r *run, res Result, start time.Time) {
	if c.ledger == nil {
		return
	}
	a := storage.Attempt{
		ID:            uuid.New().String(),
		CorrelationID: r.corr,
		ProductType:   string(r.typ),
		Outcome:       string(res.Outcome),
		CheckoutURL:   res.RedirectURL,
		DurationMs:    time.Since(start).Milliseconds(),
		CreatedAt:     start.UTC(),
	}
	if res.Error != nil {
		a.ErrorCode = res.Error.Code
		a.ErrorMessage = res.Error.Message
	}
	for _, st := range r.steps {
		step := storage.AttemptStep{Name: st.Name, OK: st.OK()}
		if st.Err != nil {
			step.Error = st.Err.Error()
		}
		a.Steps = append(a.Steps, step)
	}
	if err := c.ledger.SaveAttempt(a); err != nil {
		r.logger.Warn("recording attempt failed", "error", err)
	}
}
