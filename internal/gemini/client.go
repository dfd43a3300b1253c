package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Error taxonomy surfaced to the analysis service. The service refunds
// the quota for any of these and picks a user message with errors.Is.
var (
	// ErrQuotaExhausted means the provider's own quota is spent. Not
	// retried; requires operator action, not a later retry.
	ErrQuotaExhausted = errors.New("gemini quota exhausted")
	// ErrRateLimited is a transient 429 that survived all retries.
	ErrRateLimited = errors.New("gemini rate limited")
	// ErrTruncated means generation stopped on the token budget and the
	// text cannot be trusted to be complete.
	ErrTruncated = errors.New("gemini response truncated")
	// ErrUpstream covers network failures and HTTP errors after retries.
	ErrUpstream = errors.New("gemini upstream error")
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

// Client calls the Gemini generateContent REST endpoint, optionally
// through a proxy worker (BaseURL). One Client and its http.Client live
// for the whole process.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	// Overridable in tests.
	backoffs      []time.Duration
	rateLimitWait time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:           cfg,
		http:          &http.Client{Timeout: cfg.Timeout},
		logger:        logger,
		backoffs:      []time.Duration{700 * time.Millisecond, 1500 * time.Millisecond, 3 * time.Second},
		rateLimitWait: 60 * time.Second,
		sleep:         sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens"`
	Temperature     float64  `json:"temperature"`
	TopP            float64  `json:"topP"`
	StopSequences   []string `json:"stopSequences"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// Career-advice prompts trip the default filters often enough that all
// categories are relaxed.
var relaxedSafety = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

// Generate sends the prompt and returns the model's raw text. Up to
// three attempts with a fixed 0.7s/1.5s/3s backoff for HTTP errors and
// network errors. A 429 whose body names the provider quota fails
// immediately; any other 429 waits a full minute before the next
// attempt.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: api key is not configured", ErrUpstream)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)

	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     c.cfg.Temperature,
			TopP:            c.cfg.TopP,
			StopSequences:   []string{},
		},
		SafetySettings: relaxedSafety,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	const attempts = 3
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		text, retry, err := c.attempt(ctx, url, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retry {
			return "", err
		}

		c.logger.Warn("Gemini request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1))

		if attempt == attempts-1 {
			break
		}

		wait := c.backoffs[attempt]
		if errors.Is(err, ErrRateLimited) {
			wait = c.rateLimitWait
		}
		if err := c.sleep(ctx, wait); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUpstream, err)
		}
	}

	if errors.Is(lastErr, ErrRateLimited) {
		return "", lastErr
	}
	return "", fmt.Errorf("%w: retries exhausted: %v", ErrUpstream, lastErr)
}

// attempt runs one HTTP round trip. retry reports whether the error is
// worth another attempt.
func (c *Client) attempt(ctx context.Context, url string, body []byte) (text string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("%w: reading response: %v", ErrUpstream, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		snippet := strings.ToLower(string(respBody))
		if len(snippet) > 1000 {
			snippet = snippet[:1000]
		}
		if strings.Contains(snippet, "quota") || strings.Contains(snippet, "limit: 0") {
			return "", false, ErrQuotaExhausted
		}
		return "", true, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Any other HTTP error gets the full attempt budget; the proxy
		// worker occasionally surfaces transient faults under odd codes.
		return "", true, fmt.Errorf("%w: http %d", ErrUpstream, resp.StatusCode)
	}

	text, err = c.extractText(respBody)
	if err != nil {
		// Envelope and truncation failures are not transient.
		return "", false, err
	}
	return text, false, nil
}

// extractText validates the response envelope and pulls out the first
// candidate's text, rejecting anything the token budget cut short.
func (c *Client) extractText(body []byte) (string, error) {
	var data generateResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("%w: invalid response payload: %v", ErrUpstream, err)
	}
	if len(data.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", ErrUpstream)
	}

	cand := data.Candidates[0]
	if cand.FinishReason == "MAX_TOKENS" {
		c.logger.Warn("Gemini response hit the token budget")
		return "", ErrTruncated
	}
	if len(cand.Content.Parts) == 0 || cand.Content.Parts[0].Text == "" {
		return "", fmt.Errorf("%w: empty candidate content", ErrUpstream)
	}

	text := cand.Content.Parts[0].Text
	if looksTruncated(text) {
		c.logger.Warn("Gemini response looks truncated",
			zap.Int("length", len(text)),
			zap.String("finish_reason", cand.FinishReason))
		return "", ErrTruncated
	}
	return text, nil
}

// looksTruncated is a secondary heuristic layered after the finishReason
// check: JSON output that stops mid-object leaves more opening braces
// than closing ones. The finish reason stays the source of truth; this
// can false-positive on brace-heavy prose.
func looksTruncated(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "}") {
		return false
	}
	return strings.Count(trimmed, "{") > strings.Count(trimmed, "}")
}
