package bot

import (
	"log/slog"
	"wedsync/entity"
)

func (t *TgBot) SendMessage(msg string) {
	t.SendMessageWithLevel(msg, t.minLogLevel)
}

// SendMessageWithLevel mirrors a log record to every subscribed chat. Errors
// go out at once; lower levels wait for the digest when one is running.
func (t *TgBot) SendMessageWithLevel(msg string, level slog.Level) {
	if level < t.minLogLevel {
		return
	}
	for chatId := range t.chatIds {
		if t.digest != nil && level < slog.LevelError {
			t.digest.Add(chatId, msg, entity.TopicLog, level)
			continue
		}
		t.plainResponse(chatId, msg)
	}
}

// NotifyResponse announces a confirmation or rejection. With a digest interval
// configured the notice is buffered and delivered with the next digest.
func (t *TgBot) NotifyResponse(h *entity.Household) {
	msg := formatResponse(h)
	for chatId := range t.chatIds {
		if t.digest != nil {
			t.digest.AddResponse(chatId, h)
			continue
		}
		t.plainResponse(chatId, msg)
	}
}
