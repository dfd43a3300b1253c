package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	c := NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "gemini-2.5-flash",
		Temperature: 0.7,
		TopP:        0.95,
	}, zap.NewNop())
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func envelope(text, finishReason string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]},"finishReason":%q}]}`,
		text, finishReason)
}

func TestGenerateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		fmt.Fprint(w, envelope(`{"ats_score": 70}`, "STOP"))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Generate(context.Background(), "prompt", 4000)
	if err != nil {
		t.Fatalf("Generate error = %v", err)
	}
	if text != `{"ats_score": 70}` {
		t.Fatalf("Generate text = %q", text)
	}
}

func TestGenerateRetriesTransientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, envelope(`{"ok": true}`, "STOP"))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Generate(context.Background(), "prompt", 100)
	if err != nil {
		t.Fatalf("Generate error = %v", err)
	}
	if text != `{"ok": true}` || calls != 3 {
		t.Fatalf("Generate = %q after %d calls, want success on third", text, calls)
	}
}

func TestGenerateExhaustsRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "prompt", 100)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Generate error = %v, want ErrUpstream", err)
	}
	if calls != 3 {
		t.Fatalf("made %d calls, want 3", calls)
	}
}

func TestGenerateRetriesUnexpectedStatuses(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "prompt", 100)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Generate error = %v, want ErrUpstream", err)
	}
	if calls != 3 {
		t.Fatalf("made %d calls, want 3", calls)
	}
}

func TestGenerateQuotaExhaustedNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "Quota exceeded for quota metric", "details": "limit: 0"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "prompt", 100)
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("Generate error = %v, want ErrQuotaExhausted", err)
	}
	if calls != 1 {
		t.Fatalf("made %d calls, want 1 (no retry on provider quota)", calls)
	}
}

func TestGenerateRateLimitedAfterRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "resource overloaded"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "prompt", 100)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Generate error = %v, want ErrRateLimited", err)
	}
	if calls != 3 {
		t.Fatalf("made %d calls, want 3", calls)
	}
}

func TestGenerateTruncatedByFinishReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, envelope(`{"ats_score": 70, "summary": "cut of`, "MAX_TOKENS"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "prompt", 100)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("Generate error = %v, want ErrTruncated", err)
	}
}

func TestGenerateTruncatedByBraceHeuristic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// finishReason says STOP, but the JSON object never closes.
		fmt.Fprint(w, envelope(`{"ats_score": 70, "summary": "cut`, "STOP"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "prompt", 100)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("Generate error = %v, want ErrTruncated", err)
	}
}

func TestGenerateRejectsEmptyEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "prompt", 100)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Generate error = %v, want ErrUpstream", err)
	}
}

func TestLooksTruncated(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{`{"a": 1}`, false},
		{`{"a": {"b": 2}}`, false},
		{`{"a": 1, "b": "unfinish`, true},
		{"plain prose with no braces", false},
	}
	for _, tc := range cases {
		if got := looksTruncated(tc.text); got != tc.want {
			t.Fatalf("looksTruncated(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
