package collaborator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/activity-batch-engine/internal/observability"
)

type fakeLimiter struct {
	waitFn func(ctx context.Context, collaborator string) error
	waited []string
}

func (l *fakeLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

func (l *fakeLimiter) Wait(ctx context.Context, collaborator string) error {
	l.waited = append(l.waited, collaborator)
	if l.waitFn != nil {
		return l.waitFn(ctx, collaborator)
	}
	return nil
}

func TestClientExecuteStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		statusCode    int
		wantErr       bool
		wantTransient bool
		wantNotFound  bool
	}{
		{name: "ok", statusCode: http.StatusOK},
		{name: "no content", statusCode: http.StatusNoContent},
		{name: "not found", statusCode: http.StatusNotFound, wantErr: true, wantNotFound: true},
		{name: "bad request", statusCode: http.StatusBadRequest, wantErr: true},
		{name: "too many requests", statusCode: http.StatusTooManyRequests, wantErr: true, wantTransient: true},
		{name: "unavailable", statusCode: http.StatusServiceUnavailable, wantErr: true, wantTransient: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			limiter := &fakeLimiter{}
			client, err := New("content-catalog", server.URL, time.Second, limiter, nil)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			_, err = client.Execute(context.Background(), client.R(context.Background()), http.MethodGet, "/ping")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if IsTransient(err) != tt.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", IsTransient(err), tt.wantTransient)
			}
			if IsNotFound(err) != tt.wantNotFound {
				t.Fatalf("IsNotFound() = %v, want %v", IsNotFound(err), tt.wantNotFound)
			}
			if len(limiter.waited) != 1 || limiter.waited[0] != "content-catalog" {
				t.Fatalf("limiter waits = %v, want one for content-catalog", limiter.waited)
			}
		})
	}
}

func TestClientExecuteLimiterFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	limiter := &fakeLimiter{waitFn: func(context.Context, string) error { return context.DeadlineExceeded }}
	client, err := New("org-directory", server.URL, time.Second, limiter, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.Execute(context.Background(), client.R(context.Background()), http.MethodGet, "/")
	var callErr *CallError
	if !errors.As(err, &callErr) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Execute() error = %v, want CallError wrapping deadline", err)
	}
	if calls != 0 {
		t.Fatalf("server calls = %d, want 0", calls)
	}
}

func TestClientExecuteRecordsMetrics(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	metrics := observability.NewMetrics()
	client, err := New("content-catalog", server.URL, time.Second, nil, metrics)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, _ = client.Execute(context.Background(), client.R(context.Background()), http.MethodGet, "/")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `activity_batch_engine_collaborator_request_duration_seconds_count{collaborator="content-catalog",outcome="http_502"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Fatalf("metrics output missing %s", want)
	}
}

func TestNewValidatesInput(t *testing.T) {
	t.Parallel()

	if _, err := New("", "http://localhost", time.Second, nil, nil); err == nil {
		t.Fatal("New() with blank name error = nil, want error")
	}
	if _, err := New("catalog", "not a url", time.Second, nil, nil); err == nil {
		t.Fatal("New() with bad url error = nil, want error")
	}
	if _, err := NewWithClient("catalog", "http://localhost", nil, nil, nil); err == nil {
		t.Fatal("NewWithClient(nil) error = nil, want error")
	}
}

func TestCallErrorMessage(t *testing.T) {
	t.Parallel()

	err := &CallError{Collaborator: "org-directory", StatusCode: 500, Message: "returned status 500"}
	if got, want := err.Error(), "org-directory call failed: status=500: returned status 500"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestClientReadRetriesOnlyTransientFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statuses   []int
		wantCalls  int
		wantErr    bool
		wantSleeps int
	}{
		{name: "first try succeeds", statuses: []int{http.StatusOK}, wantCalls: 1},
		{name: "transient then ok", statuses: []int{http.StatusServiceUnavailable, http.StatusOK}, wantCalls: 2, wantSleeps: 1},
		{name: "transient every time", statuses: []int{http.StatusBadGateway, http.StatusBadGateway}, wantCalls: 2, wantErr: true, wantSleeps: 1},
		{name: "client error is final", statuses: []int{http.StatusBadRequest, http.StatusOK}, wantCalls: 1, wantErr: true},
		{name: "not found is final", statuses: []int{http.StatusNotFound, http.StatusOK}, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1))
				w.WriteHeader(tt.statuses[min(n, len(tt.statuses))-1])
			}))
			defer server.Close()

			c, err := New("content-catalog", server.URL, time.Second, nil, nil)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			var slept []time.Duration
			c.sleep = func(_ context.Context, d time.Duration) error {
				slept = append(slept, d)
				return nil
			}

			_, err = c.Read(context.Background(), func() *resty.Request { return c.R(context.Background()) }, http.MethodGet, "/content/v3/read/do_1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Read() error = %v, wantErr %v", err, tt.wantErr)
			}
			if int(calls.Load()) != tt.wantCalls || len(slept) != tt.wantSleeps {
				t.Fatalf("calls = %d, sleeps = %v, want %d calls and %d sleeps", calls.Load(), slept, tt.wantCalls, tt.wantSleeps)
			}
		})
	}
}

func TestClientReadStopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, err := New("org-directory", server.URL, time.Second, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	_, err = c.Read(context.Background(), func() *resty.Request { return c.R(context.Background()) }, http.MethodPost, "/v1/org/read")
	if !IsTransient(err) || calls.Load() != 1 {
		t.Fatalf("Read() error = %v after %d calls, want the transient error after 1", err, calls.Load())
	}
}
