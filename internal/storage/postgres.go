package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/avolkov/careerai-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) GetUsage(ctx context.Context, userID int64) (*models.UsageState, error) {
	query := `
		SELECT user_id, requests_today, day, last_request, registered_at
		FROM usage_states
		WHERE user_id = $1`

	state := &models.UsageState{}
	var lastRequest sql.NullTime
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&state.UserID,
		&state.RequestsToday,
		&state.Day,
		&lastRequest,
		&state.RegisteredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying usage state: %v", err)
	}
	if lastRequest.Valid {
		state.LastRequest = &lastRequest.Time
	}
	return state, nil
}

func (s *PostgresStorage) SaveUsage(ctx context.Context, state *models.UsageState) error {
	query := `
		INSERT INTO usage_states (user_id, requests_today, day, last_request, registered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET requests_today = EXCLUDED.requests_today,
		    day = EXCLUDED.day,
		    last_request = EXCLUDED.last_request`

	var lastRequest sql.NullTime
	if state.LastRequest != nil {
		lastRequest = sql.NullTime{Time: *state.LastRequest, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		state.UserID,
		state.RequestsToday,
		state.Day,
		lastRequest,
		state.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("error saving usage state: %v", err)
	}
	return nil
}

func (s *PostgresStorage) GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	query := `SELECT user_id, valid_until FROM subscriptions WHERE user_id = $1`

	sub := &models.Subscription{}
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&sub.UserID, &sub.ValidUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying subscription: %v", err)
	}
	return sub, nil
}

func (s *PostgresStorage) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, valid_until)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET valid_until = EXCLUDED.valid_until`

	_, err := s.db.ExecContext(ctx, query, sub.UserID, sub.ValidUntil)
	if err != nil {
		return fmt.Errorf("error saving subscription: %v", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteSubscription(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("error deleting subscription: %v", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
