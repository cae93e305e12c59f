package records

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTrack(t *testing.T) {
	var got []trackedEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.Write([]byte("1"))
	}))
	defer srv.Close()

	tr := NewTracker(srv.URL+"/track", "tok")
	tr.now = func() time.Time { return time.UnixMilli(1700000000000) }

	err := tr.Track(context.Background(), Event{
		Type:          EventMoisturiserAdded,
		DistinctID:    "anon-1",
		MoisturiserID: 42,
		Variation:     "Aloe & Rosehip",
	})
	if err != nil {
		t.Fatalf("Track: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("events = %d, want 1", len(got))
	}
	e := got[0]
	if e.Event != EventMoisturiserAdded {
		t.Errorf("event = %q", e.Event)
	}
	checks := map[string]any{
		"token":         "tok",
		"distinct_id":   "anon-1",
		"moisturiserId": float64(42),
		"variation":     "Aloe & Rosehip",
		"time":          float64(1700000000000),
	}
	for k, want := range checks {
		if e.Properties[k] != want {
			t.Errorf("properties[%s] = %v, want %v", k, e.Properties[k], want)
		}
	}
	if _, ok := e.Properties["serumId"]; ok {
		t.Error("serumId should be omitted when zero")
	}
	if id, _ := e.Properties["$insert_id"].(string); id == "" {
		t.Error("missing $insert_id")
	}
}

func TestTrack_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if err := NewTracker(srv.URL, "bad").Track(context.Background(), Event{Type: EventSerumAdded}); err == nil {
		t.Fatal("expected error for 401")
	}
}

func TestTrack_ReplayKeepsInsertIDAndTime(t *testing.T) {
	var sent []trackedEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []trackedEvent
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		sent = append(sent, batch...)
		w.Write([]byte("1"))
	}))
	defer srv.Close()

	tr := NewTracker(srv.URL, "tok")
	clock := time.UnixMilli(1700000000000)
	tr.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	e := Event{
		Type:          EventSerumAdded,
		DistinctID:    "anon-1",
		CorrelationID: "corr-9",
		At:            time.UnixMilli(1690000000000),
		SerumID:       555,
	}
	for i := 0; i < 2; i++ {
		if err := tr.Track(context.Background(), e); err != nil {
			t.Fatalf("Track: %v", err)
		}
	}
	bundle := e
	bundle.Type = EventBundleAdded
	if err := tr.Track(context.Background(), bundle); err != nil {
		t.Fatalf("Track: %v", err)
	}

	if len(sent) != 3 {
		t.Fatalf("events = %d, want 3", len(sent))
	}
	first, replay := sent[0].Properties, sent[1].Properties
	if first["$insert_id"] != replay["$insert_id"] {
		t.Errorf("insert ids differ on replay: %v vs %v", first["$insert_id"], replay["$insert_id"])
	}
	if first["time"] != float64(1690000000000) || replay["time"] != first["time"] {
		t.Errorf("time = %v then %v, want the event time both times", first["time"], replay["time"])
	}
	if sent[2].Properties["$insert_id"] == first["$insert_id"] {
		t.Error("different event types share an insert id")
	}
}
