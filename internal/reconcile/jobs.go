// Package reconcile retries side records that failed during a checkout
// which still went ahead. Jobs are queued in the local ledger database and
// drained by a background Worker.
package reconcile

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/baseplus/skinquiz/internal/quiz"
	"github.com/baseplus/skinquiz/internal/records"
	"github.com/baseplus/skinquiz/internal/storage"
)

// Job types. They match the saga step names of the records they retry.
const (
	JobAnalytics = "analytics"
	JobQuiz      = "quiz"
	JobSerumMeta = "serum_meta"
)

// JobTypes lists every type the Worker handles.
var JobTypes = []string{JobAnalytics, JobQuiz, JobSerumMeta}

type analyticsPayload struct {
	// Tracked is set when the event went out and only the record is missing.
	Tracked bool                   `json:"tracked"`
	Event   records.Event          `json:"event"`
	Record  records.DatabaseRecord `json:"record"`
}

type quizPayload struct {
	Questions []quiz.Question `json:"questions"`
}

type serumMetaPayload struct {
	SerumID int `json:"serum_id"`
}

func newJob(typ, correlationID string, payload any) (storage.RetryJob, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return storage.RetryJob{}, fmt.Errorf("marshaling %s payload: %w", typ, err)
	}
	return storage.RetryJob{
		ID:            uuid.New().String(),
		Type:          typ,
		CorrelationID: correlationID,
		PayloadJSON:   string(b),
	}, nil
}

// AnalyticsJob retries the analytics event and its product record.
func AnalyticsJob(correlationID string, tracked bool, e records.Event, rec records.DatabaseRecord) (storage.RetryJob, error) {
	return newJob(JobAnalytics, correlationID, analyticsPayload{Tracked: tracked, Event: e, Record: rec})
}

// QuizJob retries the quiz persistence write.
func QuizJob(correlationID string, questions []quiz.Question) (storage.RetryJob, error) {
	return newJob(JobQuiz, correlationID, quizPayload{Questions: questions})
}

// SerumMetaJob retries the serum metadata patch.
func SerumMetaJob(correlationID string, serumID int) (storage.RetryJob, error) {
	return newJob(JobSerumMeta, correlationID, serumMetaPayload{SerumID: serumID})
}
