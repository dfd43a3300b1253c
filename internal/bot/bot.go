package bot

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/avolkov/careerai-bot/internal/analytics"
	"github.com/avolkov/careerai-bot/internal/analyzer"
	"github.com/avolkov/careerai-bot/pkg/config"
)

// Session modes for multi-step flows.
const (
	modeIdle          = "idle"
	modeAwaitingJob   = "awaiting_job_desc"
	modeAwaitingEmail = "awaiting_email"
)

// session holds per-user conversational state: which input the bot is
// waiting for and the last resume seen. Lives only in memory.
type session struct {
	mode       string
	lastResume string
	email      string
}

type Bot struct {
	api      *tgbotapi.BotAPI
	service  *analyzer.Service
	tracker  *analytics.Tracker
	logger   *zap.Logger
	cfg      *config.Config
	download *http.Client

	mu       sync.Mutex
	sessions map[int64]*session
}

func New(cfg *config.Config, service *analyzer.Service, tracker *analytics.Tracker, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:      api,
		service:  service,
		tracker:  tracker,
		logger:   logger,
		cfg:      cfg,
		download: &http.Client{Timeout: 30 * time.Second},
		sessions: make(map[int64]*session),
	}, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		go b.handleUpdate(update)
	}

	return nil
}

// handleUpdate processes one update under the webhook-window deadline.
// A handler that overruns is logged and abandoned; the in-flight model
// call races the context and the HTTP client's own timeout.
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Telegram.UpdateTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.dispatch(ctx, update)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("Update processing timed out",
			zap.Int("update_id", update.UpdateID),
			zap.Duration("deadline", b.cfg.Telegram.UpdateTimeout))
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.PreCheckoutQuery != nil:
		b.handlePreCheckout(update.PreCheckoutQuery)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		message := update.Message
		switch {
		case message.SuccessfulPayment != nil:
			b.handleSuccessfulPayment(ctx, message)
		case message.IsCommand():
			b.handleCommand(ctx, message)
		default:
			b.handleMessage(ctx, message)
		}
	}
}

func (b *Bot) session(userID int64) *session {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, exists := b.sessions[userID]
	if !exists {
		s = &session{mode: modeIdle}
		b.sessions[userID] = s
	}
	return s
}

func (b *Bot) setMode(userID int64, mode string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, exists := b.sessions[userID]
	if !exists {
		s = &session{}
		b.sessions[userID] = s
	}
	s.mode = mode
}

func (b *Bot) rememberResume(userID int64, resume string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, exists := b.sessions[userID]
	if !exists {
		s = &session{}
		b.sessions[userID] = s
	}
	s.mode = modeIdle
	s.lastResume = resume
}

func (b *Bot) lastResume(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, exists := b.sessions[userID]; exists {
		return s.lastResume
	}
	return ""
}

func (b *Bot) sendMessage(chatID int64, text string) {
	b.sendMessageMarkup(chatID, text, nil)
}

func (b *Bot) sendMessageMarkup(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendTyping(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.api.Request(action); err != nil {
		b.logger.Debug("Failed to send chat action", zap.Error(err))
	}
}
