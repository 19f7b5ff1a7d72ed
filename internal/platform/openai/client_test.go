package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/demandly/casefile-backend/internal/platform/logger"
)

func testClient(t *testing.T, baseURL string) *client {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return &client{
		log:        log.With("service", "OracleClient"),
		baseURL:    baseURL,
		apiKey:     "test",
		model:      "test-model",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		maxRetries: 3,
	}
}

func TestRetryableErr_ExcludesContextErrors(t *testing.T) {
	if isRetryableErr(context.Canceled) {
		t.Fatalf("canceled must not retry")
	}
	if isRetryableErr(context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded must not retry")
	}
	if !isRetryableErr(&httpError{StatusCode: 503}) {
		t.Fatalf("503 must retry")
	}
	if isRetryableErr(&httpError{StatusCode: 400}) {
		t.Fatalf("400 must not retry")
	}
}

func TestDo_CanceledContextSkipsBackoff(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	start := time.Now()
	err := c.do(ctx, http.MethodPost, "/v1/chat/completions", map[string]string{}, nil)
	if err == nil || ctx.Err() == nil {
		t.Fatalf("expected a context error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("canceled call slept through backoff: %v", elapsed)
	}
}
