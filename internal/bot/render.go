package bot

import (
	"fmt"
	"html"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/avolkov/careerai-bot/internal/analytics"
	"github.com/avolkov/careerai-bot/internal/models"
)

// Telegram rejects messages past 4096 chars; leave headroom for closing
// tags.
const telegramTextLimit = 3900

func h(text string) string {
	return html.EscapeString(text)
}

func truncateForTelegram(text string) string {
	runes := []rune(text)
	if len(runes) <= telegramTextLimit {
		return text
	}
	return string(runes[:telegramTextLimit]) + "\n…"
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Tailor to a job", "tailor_start")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Resume draft", "improve_start")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💎 Premium", "premium_info")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📚 Examples", "examples")),
	)
}

func postAnalysisKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎯 Tailor to a job", "tailor_start")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Make a resume draft", "improve_start")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💎 Detailed review (Premium)", "premium_info")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📤 Share the bot", "share_bot")),
	)
}

func scoreEmoji(score int) string {
	switch {
	case score >= 80:
		return "🟢 Excellent! This resume will pass most ATS filters"
	case score >= 60:
		return "🟡 Good, but there is room to improve"
	case score >= 40:
		return "🟠 Needs serious rework"
	default:
		return "🔴 Critical! This resume will not pass ATS"
	}
}

func formatStrengths(items []string) string {
	if len(items) == 0 {
		return "• None found"
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "• "+h(item))
	}
	return strings.Join(lines, "\n")
}

func formatImprovements(items []models.Improvement) string {
	if len(items) == 0 {
		return "1. Keep up the good work!"
	}
	chunks := make([]string, 0, len(items))
	for i, item := range items {
		chunk := fmt.Sprintf("%d. <b>%s</b>", i+1, h(item.Title))
		if item.Why != "" {
			chunk += "\n<i>Why:</i> " + h(item.Why)
		}
		if item.How != "" {
			chunk += "\n<i>How:</i> " + h(item.How)
		}
		chunks = append(chunks, chunk)
	}
	return strings.Join(chunks, "\n\n")
}

func formatKeywords(items []string) string {
	if len(items) == 0 {
		return "None found"
	}
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			cleaned = append(cleaned, s)
		}
		if len(cleaned) == 25 {
			break
		}
	}
	return strings.Join(cleaned, ", ")
}

func (b *Bot) formatRemaining(remaining int, unlimited bool) string {
	if unlimited {
		return "∞ (Premium)"
	}
	return fmt.Sprintf("%d", remaining)
}

func (b *Bot) formatAnalysis(analysis *models.AnalysisResult, remaining int, unlimited bool) string {
	summary := analysis.Summary
	if summary == "" {
		summary = "—"
	}
	return fmt.Sprintf(`✅ <b>Analysis complete!</b>

📊 <b>ATS Score: %d/100</b>
%s

<b>🧾 Summary:</b>
%s

<b>💪 Strengths:</b>
%s

<b>🎯 Top 3 improvements:</b>
%s

<b>🔑 Missing keywords:</b>
<code>%s</code>

<i>Free analyses left today: %s</i>`,
		analysis.Score,
		scoreEmoji(analysis.Score),
		h(summary),
		formatStrengths(analysis.Strengths),
		formatImprovements(analysis.Improvements),
		h(formatKeywords(analysis.MissingKeywords)),
		b.formatRemaining(remaining, unlimited))
}

func formatStats(stats analytics.Stats) string {
	names := make([]string, 0, len(stats.EventsByType))
	for name := range stats.EventsByType {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("• %s: %d", h(name), stats.EventsByType[name]))
	}
	byType := "• none yet"
	if len(lines) > 0 {
		byType = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(`📈 <b>Bot stats</b>

👥 Total users: %d
📅 Active today: %d
⚡ Events today: %d / %d total
🎯 Start → analysis conversion: %.1f%%

<b>By event:</b>
%s`,
		stats.TotalUsers,
		stats.DailyActiveUsers,
		stats.EventsToday,
		stats.TotalEvents,
		stats.ConversionRate,
		byType)
}

func (b *Bot) formatTailor(result *models.TailorResult, remaining int, unlimited bool) string {
	fixes := make([]string, 0, len(result.QuickFixes))
	for i, fix := range result.QuickFixes {
		if i == 8 {
			break
		}
		fixes = append(fixes, "• "+h(fix))
	}
	return fmt.Sprintf(`🎯 <b>Tailored to the job</b>

📌 <b>Fit Score:</b> %d/100

<b>🔑 Missing keywords:</b>
<code>%s</code>

<b>⚡ Quick fixes:</b>
%s

<i>Free analyses left today: %s</i>`,
		result.FitScore,
		h(formatKeywords(result.MissingKeywords)),
		strings.Join(fixes, "\n"),
		b.formatRemaining(remaining, unlimited))
}
