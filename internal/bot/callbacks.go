package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	defer b.answerCallback(callback.ID, "")

	switch callback.Data {
	case "tailor_start":
		b.callbackTailorStart(callback)
	case "improve_start":
		b.callbackImproveStart(ctx, callback)
	case "premium_info":
		b.callbackPremiumInfo(ctx, callback)
	case "buy_premium":
		b.callbackBuyPremium(ctx, callback)
	case "notify_launch":
		b.callbackNotifyLaunch(callback)
	case "examples":
		b.callbackExamples(callback)
	case "share_bot":
		b.callbackShare(callback)
	case "back_to_start":
		b.callbackBack(callback)
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Debug("Failed to answer callback", zap.Error(err))
	}
}

func (b *Bot) callbackTailorStart(callback *tgbotapi.CallbackQuery) {
	userID := callback.From.ID
	b.tracker.Track("tailor_started", userID, nil)

	if b.lastResume(userID) == "" {
		b.sendMessage(callback.Message.Chat.ID,
			"Send me your resume first (text or file), then tap «🎯 Tailor to a job».")
		return
	}
	b.setMode(userID, modeAwaitingJob)
	b.sendMessage(callback.Message.Chat.ID, fmt.Sprintf(
		"🎯 Send the <b>job posting text</b> (or a description of the role).\n\n"+
			"I'll pick out missing keywords and quick ATS fixes.\n"+
			"<i>At least %d characters.</i>", b.cfg.Limits.MinJobChars))
}

func (b *Bot) callbackImproveStart(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	userID := callback.From.ID
	b.tracker.Track("improve_started", userID, nil)
	rid := requestID()

	resumeText := b.lastResume(userID)
	if resumeText == "" {
		b.sendMessage(callback.Message.Chat.ID,
			"Send me your resume first (text or file), then tap «📝 Resume draft».")
		return
	}

	b.sendTyping(callback.Message.Chat.ID)

	improved, err := b.service.Rewrite(ctx, userID, resumeText)
	if err != nil {
		b.reportFailure(callback.Message.Chat.ID, userID, rid, "rewrite", err)
		return
	}

	b.tracker.Track("improve_completed", userID, map[string]any{
		"resume_length":   len(resumeText),
		"improved_length": len(improved),
	})

	// Drafts routinely blow past the message length limit; deliver as a
	// file instead.
	doc := tgbotapi.NewDocument(callback.Message.Chat.ID, tgbotapi.FileBytes{
		Name:  "resume_draft.txt",
		Bytes: []byte(improved),
	})
	doc.Caption = "📝 Draft ready. Check the facts and numbers, then edit it to taste."
	if _, err := b.api.Send(doc); err != nil {
		b.logger.Error("Failed to send draft document",
			zap.Error(err),
			zap.Int64("chat_id", callback.Message.Chat.ID))
		return
	}

	kb := postAnalysisKeyboard()
	b.sendMessageMarkup(callback.Message.Chat.ID,
		"Want it tailored to a job? Tap «🎯 Tailor to a job» and send the posting text.", &kb)
}

func (b *Bot) callbackNotifyLaunch(callback *tgbotapi.CallbackQuery) {
	b.setMode(callback.From.ID, modeAwaitingEmail)
	b.sendMessage(callback.Message.Chat.ID,
		"🔔 Sure, send me your email in one message.\n\n"+
			"<i>I'll keep it only to notify you about the premium launch.</i>")
}

func (b *Bot) callbackExamples(callback *tgbotapi.CallbackQuery) {
	text := "📚 <b>Example analysis</b>\n\n" +
		"<b>Before:</b> ATS Score 34/100\n" +
		"• No industry keywords\n" +
		"• Duties instead of achievements\n" +
		"• Poor formatting\n\n" +
		"<b>After:</b> ATS Score 87/100\n" +
		"✅ Relevant skills added\n" +
		"✅ Metrics in achievements (↑35% sales)\n" +
		"✅ ATS-friendly structure\n\n" +
		"<b>Result:</b> 3 interview invitations in a week!"
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚀 Try it", "back_to_start")))
	b.editMessage(callback, text, kb)
}

func (b *Bot) callbackShare(callback *tgbotapi.CallbackQuery) {
	userID := callback.From.ID
	shareText := fmt.Sprintf(
		"🎯 I just analyzed my resume with CareerAI!\n\n"+
			"Got concrete advice and a list of ATS keywords.\n\n"+
			"Try it yourself → %s\n\n"+
			"🎁 Bonus code: REF%d", b.cfg.Telegram.Username, userID)

	b.sendMessage(callback.Message.Chat.ID,
		fmt.Sprintf("📤 <b>Copy and send to friends:</b>\n\n<code>%s</code>", h(shareText)))
}

func (b *Bot) callbackBack(callback *tgbotapi.CallbackQuery) {
	b.editMessage(callback,
		"👋 <b>CareerAI — your career assistant</b>\n\n"+
			"Send your resume as text or a file (PDF/DOCX/TXT) to analyze it!",
		mainMenuKeyboard())
}

func (b *Bot) editMessage(callback *tgbotapi.CallbackQuery, text string, kb tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(
		callback.Message.Chat.ID, callback.Message.MessageID, text, kb)
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error("Failed to edit message",
			zap.Error(err),
			zap.Int64("chat_id", callback.Message.Chat.ID))
	}
}
