package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/avolkov/careerai-bot/internal/cache"
	"github.com/avolkov/careerai-bot/internal/gemini"
	"github.com/avolkov/careerai-bot/internal/quota"
	"github.com/avolkov/careerai-bot/internal/storage"
)

type fakeGateway struct {
	calls    int
	response string
	err      error
}

func (g *fakeGateway) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

const sampleResume = "Senior Go developer, 8 years of backend services, Postgres, Kafka."
const sampleJob = "We are looking for a backend engineer with Go, Kubernetes and PostgreSQL experience to join our platform team in Berlin."

func newTestService(gw Gateway, limit int) (*Service, *quota.Ledger) {
	ledger := quota.NewLedger(storage.NewMemoryStorage(), limit, zap.NewNop())
	svc := NewService(ledger, cache.New(), gw, Config{}, zap.NewNop())
	return svc, ledger
}

func TestAnalyzeCachesWithinTTL(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{response: `{"ats_score": 70, "summary": "solid"}`}
	svc, _ := newTestService(gw, 3)

	first, err := svc.Analyze(ctx, 1, sampleResume)
	if err != nil {
		t.Fatalf("Analyze error = %v", err)
	}
	second, err := svc.Analyze(ctx, 1, sampleResume)
	if err != nil {
		t.Fatalf("second Analyze error = %v", err)
	}

	if gw.calls != 1 {
		t.Fatalf("gateway called %d times, want 1 (cache hit)", gw.calls)
	}
	if first != second {
		t.Fatalf("cache returned a different result object")
	}
	left, _ := svc.Remaining(ctx, 1)
	if left != 2 {
		t.Fatalf("Remaining = %d, want 2 (billed once)", left)
	}
}

func TestAnalyzeCacheIsPerUser(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{response: `{"ats_score": 70}`}
	svc, _ := newTestService(gw, 3)

	if _, err := svc.Analyze(ctx, 1, sampleResume); err != nil {
		t.Fatalf("Analyze error = %v", err)
	}
	if _, err := svc.Analyze(ctx, 2, sampleResume); err != nil {
		t.Fatalf("Analyze error = %v", err)
	}
	if gw.calls != 2 {
		t.Fatalf("gateway called %d times, want 2 (no cross-user hit)", gw.calls)
	}
}

func TestAnalyzeLimitReached(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{response: `{"ats_score": 70}`}
	svc, _ := newTestService(gw, 3)

	// Four distinct resumes so the cache never short-circuits.
	resumes := []string{
		sampleResume + " One.",
		sampleResume + " Two.",
		sampleResume + " Three.",
		sampleResume + " Four.",
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.Analyze(ctx, 42, resumes[i]); err != nil {
			t.Fatalf("Analyze %d error = %v", i, err)
		}
	}

	_, err := svc.Analyze(ctx, 42, resumes[3])
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("fourth Analyze error = %v, want ErrLimitReached", err)
	}
	left, _ := svc.Remaining(ctx, 42)
	if left != 0 {
		t.Fatalf("Remaining = %d, want 0 (limit unchanged by rejected call)", left)
	}
	if gw.calls != 3 {
		t.Fatalf("gateway called %d times, want 3", gw.calls)
	}
}

func TestAnalyzeRefundsOnGatewayError(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{err: gemini.ErrTruncated}
	svc, _ := newTestService(gw, 3)

	_, err := svc.Analyze(ctx, 5, sampleResume)
	if !errors.Is(err, gemini.ErrTruncated) {
		t.Fatalf("Analyze error = %v, want ErrTruncated", err)
	}
	left, _ := svc.Remaining(ctx, 5)
	if left != 3 {
		t.Fatalf("Remaining = %d, want 3 (failed attempt refunded)", left)
	}
}

func TestAnalyzeRefundsOnParseFailure(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{response: "I am sorry, I cannot help with that."}
	svc, _ := newTestService(gw, 3)

	_, err := svc.Analyze(ctx, 5, sampleResume)
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("Analyze error = %v, want ErrParseFailure", err)
	}
	left, _ := svc.Remaining(ctx, 5)
	if left != 3 {
		t.Fatalf("Remaining = %d, want 3 (failed attempt refunded)", left)
	}
}

func TestAnalyzeFailureNotCached(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{err: gemini.ErrTruncated}
	svc, _ := newTestService(gw, 3)

	if _, err := svc.Analyze(ctx, 5, sampleResume); err == nil {
		t.Fatalf("Analyze should fail")
	}

	gw.err = nil
	gw.response = `{"ats_score": 50}`
	res, err := svc.Analyze(ctx, 5, sampleResume)
	if err != nil {
		t.Fatalf("Analyze after recovery error = %v", err)
	}
	if res.Score != 50 {
		t.Fatalf("Score = %d, want 50 (fresh call, not a cached failure)", res.Score)
	}
	if gw.calls != 2 {
		t.Fatalf("gateway called %d times, want 2", gw.calls)
	}
}

func TestTailorRejectsShortJobText(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{response: `{"fit_score": 50}`}
	svc, _ := newTestService(gw, 3)

	_, err := svc.Tailor(ctx, 1, sampleResume, "too short")
	if !errors.Is(err, ErrInputTooShort) {
		t.Fatalf("Tailor error = %v, want ErrInputTooShort", err)
	}
	if gw.calls != 0 {
		t.Fatalf("gateway called on validation failure")
	}
	left, _ := svc.Remaining(ctx, 1)
	if left != 3 {
		t.Fatalf("Remaining = %d, want 3 (no side effects)", left)
	}
}

func TestTailorSuccess(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{response: `{"fit_score": 73, "missing_keywords": ["kubernetes"]}`}
	svc, _ := newTestService(gw, 3)

	res, err := svc.Tailor(ctx, 1, sampleResume, sampleJob)
	if err != nil {
		t.Fatalf("Tailor error = %v", err)
	}
	if res.FitScore != 73 {
		t.Fatalf("FitScore = %d, want 73", res.FitScore)
	}

	// Same inputs hit the cache.
	if _, err := svc.Tailor(ctx, 1, sampleResume, sampleJob); err != nil {
		t.Fatalf("second Tailor error = %v", err)
	}
	if gw.calls != 1 {
		t.Fatalf("gateway called %d times, want 1", gw.calls)
	}
}

func TestRewriteReturnsTrimmedText(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{response: "\n  JOHN DOE\nBackend Engineer\n\n"}
	svc, _ := newTestService(gw, 3)

	text, err := svc.Rewrite(ctx, 1, sampleResume)
	if err != nil {
		t.Fatalf("Rewrite error = %v", err)
	}
	if text != "JOHN DOE\nBackend Engineer" {
		t.Fatalf("Rewrite = %q", text)
	}
	left, _ := svc.Remaining(ctx, 1)
	if left != 2 {
		t.Fatalf("Remaining = %d, want 2", left)
	}
}

func TestSubscriberBypassesQuota(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{response: `{"ats_score": 70}`}
	svc, _ := newTestService(gw, 3)

	if err := svc.GrantSubscription(ctx, 7, 1); err != nil {
		t.Fatalf("GrantSubscription error = %v", err)
	}
	if !svc.IsUnlimited(ctx, 7) {
		t.Fatalf("IsUnlimited = false after grant")
	}

	for i := 0; i < 10; i++ {
		resume := sampleResume + string(rune('a'+i))
		if _, err := svc.Analyze(ctx, 7, resume); err != nil {
			t.Fatalf("Analyze %d for subscriber error = %v", i, err)
		}
	}
	if gw.calls != 10 {
		t.Fatalf("gateway called %d times, want 10", gw.calls)
	}
}

func TestSubscriberFailureDoesNotTouchFreeCounter(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{response: `{"ats_score": 70}`}
	svc, _ := newTestService(gw, 3)

	// Spend two free slots, then upgrade.
	if _, err := svc.Analyze(ctx, 9, sampleResume+" one"); err != nil {
		t.Fatalf("Analyze error = %v", err)
	}
	if _, err := svc.Analyze(ctx, 9, sampleResume+" two"); err != nil {
		t.Fatalf("Analyze error = %v", err)
	}
	if err := svc.GrantSubscription(ctx, 9, 1); err != nil {
		t.Fatalf("GrantSubscription error = %v", err)
	}
	before, _ := svc.Remaining(ctx, 9)

	// A failed attempt that was never billed must not refund anything.
	gw.err = gemini.ErrTruncated
	if _, err := svc.Analyze(ctx, 9, sampleResume+" three"); !errors.Is(err, gemini.ErrTruncated) {
		t.Fatalf("Analyze error = %v, want ErrTruncated", err)
	}

	after, _ := svc.Remaining(ctx, 9)
	if after != before {
		t.Fatalf("free counter moved on unbilled failure: remaining %d -> %d", before, after)
	}
}

func TestTailorCountsCharactersNotBytes(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{response: `{"fit_score": 50}`}
	svc, _ := newTestService(gw, 3)

	// 40 Cyrillic characters, 80 bytes: must fail the 80-character gate.
	shortJob := strings.Repeat("рт", 20)
	_, err := svc.Tailor(ctx, 1, sampleResume, shortJob)
	if !errors.Is(err, ErrInputTooShort) {
		t.Fatalf("Tailor error = %v, want ErrInputTooShort", err)
	}
	if gw.calls != 0 {
		t.Fatalf("gateway called %d times on short non-ASCII job text", gw.calls)
	}
	left, _ := svc.Remaining(ctx, 1)
	if left != 3 {
		t.Fatalf("Remaining = %d, want 3 (no side effects)", left)
	}

	// 80 Cyrillic characters pass even though the byte count is double.
	okJob := strings.Repeat("рт", 40)
	if _, err := svc.Tailor(ctx, 1, sampleResume, okJob); err != nil {
		t.Fatalf("Tailor error = %v for 80-character job text", err)
	}
	if gw.calls != 1 {
		t.Fatalf("gateway called %d times, want 1", gw.calls)
	}
}

func TestTruncatedInputChangesFingerprint(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{response: `{"ats_score": 70}`}
	svc, _ := newTestService(gw, 10)

	long := make([]byte, 4000)
	for i := range long {
		long[i] = 'a'
	}
	// The full text and its already-truncated form hash differently:
	// two gateway calls even though the model sees similar input.
	if _, err := svc.Analyze(ctx, 1, string(long)); err != nil {
		t.Fatalf("Analyze error = %v", err)
	}
	if _, err := svc.Analyze(ctx, 1, string(long[:3500])); err != nil {
		t.Fatalf("Analyze error = %v", err)
	}
	if gw.calls != 2 {
		t.Fatalf("gateway called %d times, want 2", gw.calls)
	}
}
