package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

const (
	reportTimeout = 10 * time.Second
	historyLimit  = 20
)

func (t *TgBot) start(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	if t.isAuthorized(chatId) {
		t.plainResponse(chatId, "Notifications are ENABLED for this chat\\.")
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf(
		"This chat is not subscribed\\. Add `%d` to `telegram\\.chat_ids` to receive guest responses\\.",
		chatId,
	))
	return nil
}

func (t *TgBot) stats(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	if !t.canQuery(chatId) {
		return nil
	}
	c, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	stats, err := t.reports.Stats(c)
	if err != nil {
		t.reportError(chatId, "/stats", err)
		return nil
	}
	t.plainResponse(chatId, formatStats(stats))
	return nil
}

func (t *TgBot) slots(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	if !t.canQuery(chatId) {
		return nil
	}
	c, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	slots, err := t.reports.AvailableSlots(c)
	if err != nil {
		t.reportError(chatId, "/slots", err)
		return nil
	}
	for _, part := range splitMessage(formatSlots(slots), maxTelegramMessageLen) {
		t.plainResponse(chatId, part)
	}
	return nil
}

func (t *TgBot) history(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	if !t.canQuery(chatId) {
		return nil
	}
	c, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	history, err := t.reports.History(c)
	if err != nil {
		t.reportError(chatId, "/history", err)
		return nil
	}
	for _, part := range splitMessage(formatHistory(history, historyLimit), maxTelegramMessageLen) {
		t.plainResponse(chatId, part)
	}
	return nil
}

func (t *TgBot) help(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id

	var sb strings.Builder
	sb.WriteString("*Available Commands*\n\n")
	sb.WriteString("`/start` \\- Show subscription status\n")
	sb.WriteString("`/help` \\- Show this help\n")

	if t.isAuthorized(chatId) {
		sb.WriteString("\n*Reports:*\n")
		sb.WriteString("`/stats` \\- Response totals\n")
		sb.WriteString("`/slots` \\- Remaining seats per household\n")
		sb.WriteString(fmt.Sprintf("`/history` \\- Last %d responses\n", historyLimit))
	}

	t.plainResponse(chatId, sb.String())
	return nil
}

func (t *TgBot) canQuery(chatId int64) bool {
	if !t.isAuthorized(chatId) {
		t.plainResponse(chatId, "This chat is not allowed to read reports\\.")
		return false
	}
	if t.reports == nil {
		t.plainResponse(chatId, "Reports are not available\\.")
		return false
	}
	return true
}
