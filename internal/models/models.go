package models

import "time"

// AnalysisResult is the normalized outcome of a base resume analysis.
// List fields are never nil: normalization defaults them to empty slices.
type AnalysisResult struct {
	Score           int           `json:"ats_score"`
	Summary         string        `json:"summary"`
	Strengths       []string      `json:"strengths"`
	Improvements    []Improvement `json:"improvements"`
	MissingKeywords []string      `json:"missing_keywords"`
}

// Improvement is a single concrete suggestion within an analysis.
type Improvement struct {
	Title string `json:"title"`
	Why   string `json:"why"`
	How   string `json:"how"`
}

// TailorResult is the outcome of matching a resume against a job posting.
type TailorResult struct {
	FitScore         int             `json:"fit_score"`
	MissingKeywords  []string        `json:"missing_keywords"`
	QuickFixes       []string        `json:"quick_fixes"`
	RewrittenBullets []BulletRewrite `json:"rewritten_bullets"`
}

// BulletRewrite pairs an original resume bullet with its improved version.
type BulletRewrite struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// UsageState tracks per-user daily quota consumption. Day is a UTC
// calendar date ("2006-01-02"); RequestsToday is reset lazily when the
// current UTC date moves past Day.
type UsageState struct {
	UserID        int64      `json:"user_id"`
	RequestsToday int        `json:"requests_today"`
	Day           string     `json:"day"`
	LastRequest   *time.Time `json:"last_request,omitempty"`
	RegisteredAt  time.Time  `json:"registered_at"`
}

// Subscription marks a user as unlimited until ValidUntil. Expired
// subscriptions are evicted lazily on check.
type Subscription struct {
	UserID     int64     `json:"user_id"`
	ValidUntil time.Time `json:"valid_until"`
}
