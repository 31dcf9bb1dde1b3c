package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

// mockREST returns canned bodies per path and records the queries it saw.
type mockREST struct {
	bodies  map[string]string
	err     error
	queries map[string]url.Values
}

func newMockREST() *mockREST {
	return &mockREST{bodies: make(map[string]string), queries: make(map[string]url.Values)}
}

func (m *mockREST) Ping(_ context.Context) error { return m.err }

func (m *mockREST) Get(_ context.Context, path string, query url.Values) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.queries[path] = query
	body, ok := m.bodies[path]
	if !ok {
		return nil, fmt.Errorf("unexpected path %s", path)
	}
	return []byte(body), nil
}

var testWindow = struct{ from, to time.Time }{
	from: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
	to:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
}

func TestSteps_ParsesRecordsAndWindow(t *testing.T) {
	rest := newMockREST()
	rest.bodies["/v1/records/steps"] = `{"records":[
		{"start_time":"2026-03-14T08:10:00Z","count":431},
		{"start_time":"2026-03-14T08:20:00Z","count":120}
	]}`
	a := NewAdapterWithClient(rest, slog.Default())

	recs, err := a.Steps(context.Background(), testWindow.from, testWindow.to)
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].Count != 431 {
		t.Errorf("count = %d, want 431", recs[0].Count)
	}

	q := rest.queries["/v1/records/steps"]
	if q.Get("from") != "2026-03-14T08:00:00Z" {
		t.Errorf("from = %q, want window start", q.Get("from"))
	}
	if q.Get("to") != "2026-03-14T09:00:00Z" {
		t.Errorf("to = %q, want window end", q.Get("to"))
	}
}

func TestSteps_SkipsUnparseableTimestamps(t *testing.T) {
	rest := newMockREST()
	rest.bodies["/v1/records/steps"] = `{"records":[
		{"start_time":"garbage","count":1},
		{"start_time":"2026-03-14T08:20:00Z","count":2}
	]}`
	a := NewAdapterWithClient(rest, slog.Default())

	recs, err := a.Steps(context.Background(), testWindow.from, testWindow.to)
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	if len(recs) != 1 || recs[0].Count != 2 {
		t.Errorf("records = %+v, want only the parseable one", recs)
	}
}

func TestHeartRates_FlattensEmptySeries(t *testing.T) {
	rest := newMockREST()
	rest.bodies["/v1/records/heart_rate"] = `{"records":[
		{"samples":[{"time":"2026-03-14T08:05:00Z","bpm":71},{"time":"2026-03-14T08:06:00Z","bpm":74}]},
		{"samples":[]}
	]}`
	a := NewAdapterWithClient(rest, slog.Default())

	series, err := a.HeartRates(context.Background(), testWindow.from, testWindow.to)
	if err != nil {
		t.Fatalf("HeartRates: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("series = %d, want 1 (empty series dropped)", len(series))
	}
	if len(series[0].Samples) != 2 || series[0].Samples[1].BPM != 74 {
		t.Errorf("samples = %+v, want two samples ending at 74 bpm", series[0].Samples)
	}
}

func TestExerciseSessions_CarriesTypeCodeAndTitle(t *testing.T) {
	rest := newMockREST()
	rest.bodies["/v1/records/exercise"] = `{"records":[
		{"start_time":"2026-03-14T07:00:00Z","end_time":"2026-03-14T07:45:00Z","type_code":56,"title":"Morning run"}
	]}`
	a := NewAdapterWithClient(rest, slog.Default())

	recs, err := a.ExerciseSessions(context.Background(), testWindow.from, testWindow.to)
	if err != nil {
		t.Fatalf("ExerciseSessions: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	if recs[0].TypeCode != 56 || recs[0].Title != "Morning run" {
		t.Errorf("record = %+v, want type 56 / Morning run", recs[0])
	}
}

func TestFetch_TransportErrorWrapsUnavailable(t *testing.T) {
	rest := newMockREST()
	rest.err = fmt.Errorf("dial tcp: %w", ErrUnavailable)
	a := NewAdapterWithClient(rest, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := a.SleepSessions(ctx, testWindow.from, testWindow.to)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error chain does not mark the gateway unavailable: %v", err)
	}
}

// --- httpClient status mapping ----------------------------------------------

func newTestServerAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAdapter(srv.URL, "test-token", slog.Default())
}

func TestHTTPClient_UnauthorizedIsUnavailable(t *testing.T) {
	a := newTestServerAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := a.OxygenSaturation(context.Background(), testWindow.from, testWindow.to)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("401 must map to ErrUnavailable, got: %v", err)
	}
}

func TestHTTPClient_ServerErrorIsUnavailable(t *testing.T) {
	a := newTestServerAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := a.Distance(context.Background(), testWindow.from, testWindow.to)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("503 must map to ErrUnavailable, got: %v", err)
	}
}

func TestHTTPClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	a := newTestServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"records":[]}`))
	})

	if _, err := a.Calories(context.Background(), testWindow.from, testWindow.to); err != nil {
		t.Fatalf("Calories: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestPing_OK(t *testing.T) {
	a := newTestServerAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	if err := a.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
