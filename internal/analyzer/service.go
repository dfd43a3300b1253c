package analyzer

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/avolkov/careerai-bot/internal/cache"
	"github.com/avolkov/careerai-bot/internal/models"
	"github.com/avolkov/careerai-bot/internal/quota"
)

// Gateway generates raw model text for a prompt under a token budget.
type Gateway interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

const truncationMarker = "\n...[text truncated]"

type Config struct {
	MaxResumeChars  int
	MaxJobChars     int
	MinJobChars     int
	MaxOutputTokens int
	CacheTTL        time.Duration
}

// Service orchestrates quota, cache, gateway and parsing for the three
// analysis operations. Every operation follows the same sequence:
// quota check, cache lookup, consume, invoke, then cache-and-return on
// success or refund-and-propagate on failure.
type Service struct {
	ledger  *quota.Ledger
	cache   *cache.Cache
	gateway Gateway
	logger  *zap.Logger
	cfg     Config
}

func NewService(ledger *quota.Ledger, c *cache.Cache, gateway Gateway, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxResumeChars == 0 {
		cfg.MaxResumeChars = 3500
	}
	if cfg.MaxJobChars == 0 {
		cfg.MaxJobChars = 4000
	}
	if cfg.MinJobChars == 0 {
		cfg.MinJobChars = 80
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 4000
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 6 * time.Hour
	}
	return &Service{
		ledger:  ledger,
		cache:   c,
		gateway: gateway,
		logger:  logger,
		cfg:     cfg,
	}
}

// truncate cuts text to the budget and appends a marker. The marker is
// part of the cached fingerprint, so truncated and full inputs cache
// independently.
func truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + truncationMarker
}

// Analyze runs the base resume analysis.
func (s *Service) Analyze(ctx context.Context, userID int64, resumeText string) (*models.AnalysisResult, error) {
	resume := truncate(resumeText, s.cfg.MaxResumeChars)

	allowed, err := s.ledger.Check(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrLimitReached
	}

	key := cache.Key("base", userID, resume)
	if v, ok := s.cache.Get(key); ok {
		s.logger.Debug("Analysis cache hit", zap.Int64("user_id", userID))
		return v.(*models.AnalysisResult), nil
	}

	admitted, billed, err := s.ledger.Acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !admitted {
		return nil, ErrLimitReached
	}

	result, err := s.invokeAnalysis(ctx, userID, resume)
	if err != nil {
		if billed {
			s.refund(ctx, userID)
		}
		return nil, err
	}

	s.cache.Set(key, result, s.cfg.CacheTTL)
	return result, nil
}

func (s *Service) invokeAnalysis(ctx context.Context, userID int64, resume string) (*models.AnalysisResult, error) {
	s.logger.Info("Calling model for analysis",
		zap.Int64("user_id", userID),
		zap.Int("resume_length", len(resume)))

	raw, err := s.gateway.Generate(ctx, buildAnalysisPrompt(resume), s.cfg.MaxOutputTokens)
	if err != nil {
		return nil, err
	}
	return parseAnalysis(raw)
}

// Tailor matches a resume against a job posting. Job text shorter than
// the minimum fails before any quota or cache interaction.
func (s *Service) Tailor(ctx context.Context, userID int64, resumeText, jobText string) (*models.TailorResult, error) {
	// Character count, not bytes: non-ASCII postings must not pass the
	// gate on byte length alone.
	if utf8.RuneCountInString(strings.TrimSpace(jobText)) < s.cfg.MinJobChars {
		return nil, ErrInputTooShort
	}

	resume := truncate(resumeText, s.cfg.MaxResumeChars)
	job := truncate(jobText, s.cfg.MaxJobChars)

	allowed, err := s.ledger.Check(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrLimitReached
	}

	key := cache.Key("job", userID, resume, job)
	if v, ok := s.cache.Get(key); ok {
		s.logger.Debug("Tailor cache hit", zap.Int64("user_id", userID))
		return v.(*models.TailorResult), nil
	}

	admitted, billed, err := s.ledger.Acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !admitted {
		return nil, ErrLimitReached
	}

	raw, err := s.gateway.Generate(ctx, buildTailorPrompt(resume, job), s.cfg.MaxOutputTokens)
	if err != nil {
		if billed {
			s.refund(ctx, userID)
		}
		return nil, err
	}
	result, err := parseTailor(raw)
	if err != nil {
		if billed {
			s.refund(ctx, userID)
		}
		return nil, err
	}

	s.cache.Set(key, result, s.cfg.CacheTTL)
	return result, nil
}

// Rewrite produces an improved plain-text draft of the resume. The
// reply is only trimmed, never run through JSON extraction, and drafts
// are not cached: the user may want a fresh variant each time.
func (s *Service) Rewrite(ctx context.Context, userID int64, resumeText string) (string, error) {
	resume := truncate(resumeText, s.cfg.MaxResumeChars)

	allowed, err := s.ledger.Check(ctx, userID)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", ErrLimitReached
	}

	admitted, billed, err := s.ledger.Acquire(ctx, userID)
	if err != nil {
		return "", err
	}
	if !admitted {
		return "", ErrLimitReached
	}

	raw, err := s.gateway.Generate(ctx, buildRewritePrompt(resume), s.cfg.MaxOutputTokens)
	if err != nil {
		if billed {
			s.refund(ctx, userID)
		}
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func (s *Service) refund(ctx context.Context, userID int64) {
	if err := s.ledger.Refund(ctx, userID); err != nil {
		s.logger.Error("Failed to refund quota",
			zap.Error(err),
			zap.Int64("user_id", userID))
	}
}

// IsUnlimited reports whether the user holds an active subscription.
func (s *Service) IsUnlimited(ctx context.Context, userID int64) bool {
	return s.ledger.IsUnlimited(ctx, userID)
}

// GrantSubscription gives the user unlimited access for a number of days.
func (s *Service) GrantSubscription(ctx context.Context, userID int64, days int) error {
	return s.ledger.Grant(ctx, userID, time.Duration(days)*24*time.Hour)
}

// Remaining reports how many free requests the user has left today.
func (s *Service) Remaining(ctx context.Context, userID int64) (int, error) {
	return s.ledger.Remaining(ctx, userID)
}
