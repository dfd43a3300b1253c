package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const invoicePayloadPrefix = "premium_"

func (b *Bot) premiumPriceLabel() string {
	if b.cfg.Premium.Currency == "USD" {
		return fmt.Sprintf("%.2f USD", float64(b.cfg.Premium.PriceCents)/100)
	}
	return fmt.Sprintf("%.0f %s", float64(b.cfg.Premium.PriceCents)/100, b.cfg.Premium.Currency)
}

func (b *Bot) handlePremiumCommand(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	text, kb := b.premiumView(ctx, userID)
	b.sendMessageMarkup(message.Chat.ID, text, &kb)
}

func (b *Bot) callbackPremiumInfo(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	userID := callback.From.ID
	b.tracker.Track("premium_clicked", userID, nil)

	text, kb := b.premiumView(ctx, userID)
	b.editMessage(callback, text, kb)
}

func (b *Bot) premiumView(ctx context.Context, userID int64) (string, tgbotapi.InlineKeyboardMarkup) {
	text := "💎 <b>CareerAI Premium</b>\n\n" +
		"<b>What you get:</b>\n" +
		"✅ Unlimited resume analyses\n" +
		"✅ Drafts and job tailoring with no limits\n" +
		"✅ Priority support\n\n"

	var rows [][]tgbotapi.InlineKeyboardButton
	switch {
	case b.service.IsUnlimited(ctx, userID):
		text += "🎉 <b>Your premium subscription is active.</b> Thank you!"
	case b.cfg.Premium.ProviderToken != "":
		text += fmt.Sprintf("<b>Price:</b> %s for %d days.\nPay right inside Telegram.",
			b.premiumPriceLabel(), b.cfg.Premium.Days)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Buy Premium", "buy_premium")))
	default:
		text += "Payments are coming soon. Leave an email to get notified."
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔔 Notify me", "notify_launch")))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back_to_start")))

	return text, tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) callbackBuyPremium(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	userID := callback.From.ID
	if b.cfg.Premium.ProviderToken == "" {
		b.answerCallback(callback.ID, "Payments are not set up yet. Please try later.")
		return
	}
	if b.service.IsUnlimited(ctx, userID) {
		b.answerCallback(callback.ID, "You already have premium!")
		return
	}

	// The payload is an internal marker checked at pre-checkout; it is
	// never shown to the user.
	payload := fmt.Sprintf("%s%d_%s", invoicePayloadPrefix, userID, uuid.New().String()[:12])
	description := fmt.Sprintf(
		"Premium subscription for %d days.\n\n"+
			"Includes:\n"+
			"• Unlimited resume analyses\n"+
			"• Improved resume drafts\n"+
			"• Job tailoring\n"+
			"• Priority support", b.cfg.Premium.Days)

	invoice := tgbotapi.NewInvoice(
		callback.Message.Chat.ID,
		"CareerAI Premium",
		description,
		payload,
		b.cfg.Premium.ProviderToken,
		"",
		b.cfg.Premium.Currency,
		[]tgbotapi.LabeledPrice{{Label: "Premium subscription", Amount: b.cfg.Premium.PriceCents}},
	)
	invoice.SuggestedTipAmounts = []int{}

	if _, err := b.api.Send(invoice); err != nil {
		b.logger.Error("Failed to send invoice",
			zap.Error(err),
			zap.Int64("user_id", userID))
		b.answerCallback(callback.ID, "Couldn't send the invoice. Please try later.")
		return
	}
	b.answerCallback(callback.ID, "Invoice sent. Check the chat.")
}

// handlePreCheckout must answer within Telegram's ~10s window or the
// pay button silently dies.
func (b *Bot) handlePreCheckout(query *tgbotapi.PreCheckoutQuery) {
	answer := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: query.ID,
		OK:                 true,
	}
	if !strings.HasPrefix(query.InvoicePayload, invoicePayloadPrefix) {
		b.logger.Warn("Rejecting unknown invoice payload",
			zap.Int64("user_id", query.From.ID))
		answer.OK = false
		answer.ErrorMessage = "Unknown invoice. Use the «Buy Premium» button in the bot."
	}

	if _, err := b.api.Request(answer); err != nil {
		b.logger.Error("Failed to answer pre-checkout query",
			zap.Error(err),
			zap.Int64("user_id", query.From.ID))
	}
}

func (b *Bot) handleSuccessfulPayment(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	payment := message.SuccessfulPayment
	if !strings.HasPrefix(payment.InvoicePayload, invoicePayloadPrefix) {
		return
	}

	if err := b.service.GrantSubscription(ctx, userID, b.cfg.Premium.Days); err != nil {
		b.logger.Error("Failed to grant subscription after payment",
			zap.Error(err),
			zap.Int64("user_id", userID))
		b.sendMessage(message.Chat.ID,
			"😔 Payment received but activation failed. Contact support: "+h(b.cfg.Telegram.SupportHandle))
		return
	}

	b.tracker.Track("premium_purchased", userID, map[string]any{
		"amount":   payment.TotalAmount,
		"currency": payment.Currency,
	})

	kb := mainMenuKeyboard()
	b.sendMessageMarkup(message.Chat.ID, fmt.Sprintf(
		"🎉 <b>Thank you for your purchase!</b>\n\n"+
			"Premium is active for %d days. Unlimited analyses and drafts are yours.",
		b.cfg.Premium.Days), &kb)
}
