package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avolkov/careerai-bot/internal/analyzer"
	"github.com/avolkov/careerai-bot/internal/extract"
	"github.com/avolkov/careerai-bot/internal/gemini"
)

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "stats":
		b.handleStats(ctx, message)
	case "premium":
		b.handlePremiumCommand(ctx, message)
	case "privacy":
		b.handlePrivacy(message)
	case "admin":
		b.handleAdminStats(message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	userID := message.From.ID

	b.tracker.Track("user_started", userID, map[string]any{
		"username": message.From.UserName,
	})

	welcome := fmt.Sprintf(`👋 <b>Welcome to CareerAI!</b>

🎯 <b>Your personal AI career assistant</b>

I can help you:
• 📊 Check your resume for ATS compatibility
• 🎓 Find weak spots and give concrete advice
• 🚀 Raise your chances of getting an offer

<b>How to use:</b>
Just send me your resume as text or a file (PDF/DOCX/TXT)

<b>Free:</b> %d analyses per day
<b>Premium:</b> Unlimited plus detailed tailoring

Ready? Send me your resume! 📄`, b.cfg.Limits.FreeDailyLimit)

	kb := mainMenuKeyboard()
	b.sendMessageMarkup(message.Chat.ID, welcome, &kb)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	b.sendMessage(message.Chat.ID,
		"🧭 <b>Commands</b>\n\n"+
			"• /start — get started\n"+
			"• /stats — your stats\n"+
			"• /premium — premium access\n"+
			"• /privacy — privacy note\n\n"+
			"Send your resume as text or a file (PDF/DOCX/TXT).")
}

func (b *Bot) handlePrivacy(message *tgbotapi.Message) {
	b.sendMessage(message.Chat.ID,
		"🔒 <b>Privacy</b>\n\n"+
			"• Resume text is used only for analysis and never published.\n"+
			"• Limits and results currently live in server memory and may reset.\n"+
			"• Do not send sensitive data (passport, bank details).")
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	unlimited := b.service.IsUnlimited(ctx, userID)
	remaining, err := b.service.Remaining(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to load quota",
			zap.Error(err),
			zap.Int64("user_id", userID))
		b.sendMessage(message.Chat.ID, "Sorry, failed to load your stats. Please try again later.")
		return
	}

	limitLine := fmt.Sprintf("%d of %d left", remaining, b.cfg.Limits.FreeDailyLimit)
	premiumLine := "💡 /premium — unlimited analyses"
	if unlimited {
		limitLine = "∞ (Premium)"
		premiumLine = "💎 Premium active"
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"📊 <b>Your stats</b>\n\n🔢 Analyses today: %s\n%s", limitLine, premiumLine))
}

// handleAdminStats reports the aggregate analytics counters. Only the
// configured admin sees it; everyone else gets the unknown-command
// reply so the command does not leak.
func (b *Bot) handleAdminStats(message *tgbotapi.Message) {
	if b.cfg.Telegram.AdminID == 0 || message.From.ID != b.cfg.Telegram.AdminID {
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
		return
	}
	b.sendMessage(message.Chat.ID, formatStats(b.tracker.Stats()))
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// handleMessage handles a non-command message according to the user's
// session mode: an email address, a job posting, or a resume.
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	switch b.session(userID).mode {
	case modeAwaitingEmail:
		b.handleEmailInput(message)
	case modeAwaitingJob:
		b.handleJobInput(ctx, message)
	default:
		b.handleResumeInput(ctx, message)
	}
}

func (b *Bot) handleEmailInput(message *tgbotapi.Message) {
	userID := message.From.ID
	email := strings.TrimSpace(message.Text)
	if !emailRe.MatchString(email) {
		b.sendMessage(message.Chat.ID, "❌ That doesn't look like an email. Send a valid address, e.g. name@example.com")
		return
	}

	b.mu.Lock()
	s, exists := b.sessions[userID]
	if !exists {
		s = &session{}
		b.sessions[userID] = s
	}
	s.email = email
	s.mode = modeIdle
	b.mu.Unlock()

	kb := mainMenuKeyboard()
	b.sendMessageMarkup(message.Chat.ID, "✅ Great, I'll let you know when it launches. Thank you!", &kb)
}

func (b *Bot) handleJobInput(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	rid := requestID()
	jobText := strings.TrimSpace(message.Text)

	if utf8.RuneCountInString(jobText) < b.cfg.Limits.MinJobChars {
		b.sendMessage(message.Chat.ID, fmt.Sprintf(
			"❌ The job posting is too short. Send the job description (at least %d characters).",
			b.cfg.Limits.MinJobChars))
		return
	}

	resumeText := b.lastResume(userID)
	if resumeText == "" {
		b.setMode(userID, modeIdle)
		b.sendMessage(message.Chat.ID, "Send me your resume first (text or file), then I can tailor it to a job.")
		return
	}

	b.sendTyping(message.Chat.ID)

	result, err := b.service.Tailor(ctx, userID, resumeText, jobText)
	if err != nil {
		b.reportFailure(message.Chat.ID, userID, rid, "tailor", err)
		return
	}

	b.tracker.Track("tailor_completed", userID, map[string]any{
		"resume_length":   len(resumeText),
		"job_text_length": len(jobText),
		"fit_score":       result.FitScore,
	})
	b.setMode(userID, modeIdle)

	remaining, _ := b.service.Remaining(ctx, userID)
	unlimited := b.service.IsUnlimited(ctx, userID)
	kb := postAnalysisKeyboard()
	b.sendMessageMarkup(message.Chat.ID,
		truncateForTelegram(b.formatTailor(result, remaining, unlimited)), &kb)
}

func (b *Bot) handleResumeInput(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	rid := requestID()

	resumeText, err := b.resumeTextFromMessage(ctx, message)
	if err != nil {
		b.sendMessage(message.Chat.ID, describeExtractError(err))
		return
	}

	if utf8.RuneCountInString(resumeText) < b.cfg.Limits.MinResumeChars {
		b.sendMessage(message.Chat.ID, fmt.Sprintf(
			"❌ The resume is too short.\n\nPlease send the full resume text (at least %d characters).",
			b.cfg.Limits.MinResumeChars))
		return
	}

	b.sendTyping(message.Chat.ID)

	analysis, err := b.service.Analyze(ctx, userID, resumeText)
	if err != nil {
		b.tracker.Track("error_occurred", userID, map[string]any{
			"error_id": rid,
			"action":   "resume_analysis",
		})
		b.reportFailure(message.Chat.ID, userID, rid, "analyze", err)
		return
	}

	b.rememberResume(userID, resumeText)
	b.tracker.Track("resume_analyzed", userID, map[string]any{
		"resume_length": len(resumeText),
		"ats_score":     analysis.Score,
		"has_file":      message.Document != nil,
	})

	remaining, _ := b.service.Remaining(ctx, userID)
	unlimited := b.service.IsUnlimited(ctx, userID)
	kb := postAnalysisKeyboard()
	b.sendMessageMarkup(message.Chat.ID,
		truncateForTelegram(b.formatAnalysis(analysis, remaining, unlimited)), &kb)
}

// resumeTextFromMessage pulls resume text from a plain message or an
// attached document.
func (b *Bot) resumeTextFromMessage(ctx context.Context, message *tgbotapi.Message) (string, error) {
	if message.Text != "" {
		return strings.TrimSpace(message.Text), nil
	}
	if message.Document == nil && message.Caption != "" {
		return strings.TrimSpace(message.Caption), nil
	}
	if message.Document == nil {
		return "", extract.ErrUnsupportedFormat
	}

	doc := message.Document
	if int64(doc.FileSize) > b.cfg.Limits.MaxFileBytes {
		return "", extract.ErrTooLarge
	}

	data, err := b.downloadFile(ctx, doc.FileID)
	if err != nil {
		return "", err
	}
	return extract.FromDocument(doc.FileName, doc.MimeType, data, b.cfg.Limits.MaxFileBytes)
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(io.LimitReader(resp.Body, b.cfg.Limits.MaxFileBytes+1))
}

func describeExtractError(err error) string {
	switch {
	case errors.Is(err, extract.ErrTooLarge):
		return "❌ The file is too large. Maximum 2MB."
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return "❌ Unsupported format. Send PDF/DOCX/TXT or paste the resume text."
	case errors.Is(err, extract.ErrEmptyDocument):
		return "❌ I couldn't find any text in that file. Try re-saving it or paste the text."
	default:
		return "❌ I couldn't read that file. Try re-saving it or paste the resume text."
	}
}

func requestID() string {
	return uuid.New().String()[:8]
}

// reportFailure maps a service error to a user-safe message. Raw
// upstream detail goes only to the log, keyed by the correlation id the
// user can quote to support.
func (b *Bot) reportFailure(chatID, userID int64, rid, action string, err error) {
	if errors.Is(err, analyzer.ErrLimitReached) {
		b.sendMessage(chatID, fmt.Sprintf(
			"🚫 You've used your %d free analyses for today.\n\n"+
				"💎 <b>Premium access</b>:\n"+
				"• Unlimited analyses\n"+
				"• Detailed ATS tailoring\n"+
				"• Job-specific optimization\n\n"+
				"→ /premium",
			b.cfg.Limits.FreeDailyLimit))
		return
	}
	if errors.Is(err, analyzer.ErrInputTooShort) {
		b.sendMessage(chatID, fmt.Sprintf(
			"❌ The job posting is too short. Send the job description (at least %d characters).",
			b.cfg.Limits.MinJobChars))
		return
	}

	b.logger.Error("Operation failed",
		zap.Error(err),
		zap.String("request_id", rid),
		zap.String("action", action),
		zap.Int64("user_id", userID))

	var hint string
	switch {
	case errors.Is(err, gemini.ErrQuotaExhausted):
		hint = "The AI provider's quota is exhausted. We're on it — please try again later."
	case errors.Is(err, gemini.ErrRateLimited):
		hint = "The AI service is overloaded right now. Please try again in a minute."
	case errors.Is(err, gemini.ErrTruncated):
		hint = "The AI reply was cut short. Try a shorter resume or try again."
	case errors.Is(err, analyzer.ErrParseFailure):
		hint = "I couldn't process the AI reply. Please send the resume again."
	default:
		hint = "Trouble reaching the AI service. Please try again later."
	}

	b.sendMessage(chatID, fmt.Sprintf(
		"😔 Sorry, that didn't work.\n\n%s\n\nError code: <code>%s</code>\nSupport: %s",
		hint, rid, h(b.cfg.Telegram.SupportHandle)))
}
