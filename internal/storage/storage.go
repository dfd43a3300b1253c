package storage

import (
	"context"

	"github.com/avolkov/careerai-bot/internal/models"
)

// Storage persists per-user usage counters and subscriptions. Get
// methods return (nil, nil) when no record exists for the user.
type Storage interface {
	GetUsage(ctx context.Context, userID int64) (*models.UsageState, error)
	SaveUsage(ctx context.Context, state *models.UsageState) error

	GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
	DeleteSubscription(ctx context.Context, userID int64) error

	Close() error
}
