package storage

import (
	"context"
	"sync"

	"github.com/avolkov/careerai-bot/internal/models"
)

// MemoryStorage keeps everything in process memory. Counters and
// subscriptions are lost on restart.
type MemoryStorage struct {
	mu            sync.RWMutex
	usage         map[int64]*models.UsageState
	subscriptions map[int64]*models.Subscription
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		usage:         make(map[int64]*models.UsageState),
		subscriptions: make(map[int64]*models.Subscription),
	}
}

func (s *MemoryStorage) GetUsage(ctx context.Context, userID int64) (*models.UsageState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.usage[userID]
	if !exists {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (s *MemoryStorage) SaveUsage(ctx context.Context, state *models.UsageState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *state
	s.usage[state.UserID] = &copied
	return nil
}

func (s *MemoryStorage) GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, exists := s.subscriptions[userID]
	if !exists {
		return nil, nil
	}
	copied := *sub
	return &copied, nil
}

func (s *MemoryStorage) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *sub
	s.subscriptions[sub.UserID] = &copied
	return nil
}

func (s *MemoryStorage) DeleteSubscription(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subscriptions, userID)
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
