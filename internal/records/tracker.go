package records

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Tracker sends analytics events to a Mixpanel-compatible /track endpoint.
type Tracker struct {
	endpoint   string
	token      string
	httpClient *http.Client
	now        func() time.Time
}

// NewTracker creates a Tracker. An empty token is allowed; the analytics
// service decides whether to accept the event.
func NewTracker(endpoint, token string) *Tracker {
	return &Tracker{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
}

// NewTrackerWithHTTP creates a Tracker that sends through hc.
func NewTrackerWithHTTP(endpoint, token string, hc *http.Client) *Tracker {
	t := NewTracker(endpoint, token)
	t.httpClient = hc
	return t
}

type trackedEvent struct {
	Event      string         `json:"event"`
	Properties map[string]any `json:"properties"`
}

// Track sends one event.
func (t *Tracker) Track(ctx context.Context, e Event) error {
	at := e.At
	if at.IsZero() {
		at = t.now()
	}
	props := map[string]any{
		"token":       t.token,
		"distinct_id": e.DistinctID,
		"time":        at.UnixMilli(),
		"$insert_id":  insertID(e),
	}
	if e.MoisturiserID != 0 {
		props["moisturiserId"] = e.MoisturiserID
	}
	if e.SerumID != 0 {
		props["serumId"] = e.SerumID
	}
	if e.Variation != "" {
		props["variation"] = e.Variation
	}

	body := []trackedEvent{{Event: e.Type, Properties: props}}
	return postJSON(ctx, t.httpClient, t.endpoint, "analytics", body, func(r *http.Request) {
		r.Header.Set("Accept", "text/plain")
	})
}

// insertID derives Mixpanel's dedupe key from the correlation id and event
// type. Without a correlation id every send is distinct.
func insertID(e Event) string {
	if e.CorrelationID == "" {
		return uuid.New().String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("skinquiz:"+e.CorrelationID+":"+e.Type)).String()
}
