package bot

import (
	"log/slog"
	"strings"
	"unicode/utf8"
	"wedsync/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

const markdownReserved = "\\_*[]()~`>#+-=|{}.!"

// plainResponse sends MarkdownV2 text; when Telegram rejects the markup the
// text goes out again unescaped and without parse mode.
func (t *TgBot) plainResponse(chatId int64, text string) {
	if text == "" {
		t.log.With("id", chatId).Debug("empty message")
		return
	}

	_, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Warn("sending message", sl.Err(err))
		_, err = t.api.SendMessage(chatId, unescape(text), &tgbotapi.SendMessageOpts{})
		if err != nil {
			t.log.With(slog.Int64("id", chatId)).Error("sending safe message", sl.Err(err))
		}
	}
}

// Sanitize escapes MarkdownV2 reserved characters, so household names like
// "Garcia-Lopez (2)" render literally.
func Sanitize(input string) string {
	var sb strings.Builder
	sb.Grow(len(input))
	for _, char := range input {
		if strings.ContainsRune(markdownReserved, char) {
			sb.WriteRune('\\')
		}
		sb.WriteRune(char)
	}
	return sb.String()
}

// unescape drops MarkdownV2 escapes and emphasis marks for the plain fallback.
func unescape(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	escaped := false
	for _, char := range text {
		switch {
		case escaped:
			sb.WriteRune(char)
			escaped = false
		case char == '\\':
			escaped = true
		case char == '*' || char == '`':
		default:
			sb.WriteRune(char)
		}
	}
	return sb.String()
}

// splitMessage cuts text into parts of at most maxLen bytes, preferring line
// ends. A cut never lands inside a UTF-8 sequence or right after an escaping
// backslash.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var parts []string
	for len(text) > maxLen {
		cutAt := strings.LastIndex(text[:maxLen], "\n") + 1
		if cutAt <= 0 {
			cutAt = safeCut(text, maxLen)
		}
		parts = append(parts, text[:cutAt])
		text = text[cutAt:]
	}
	if len(text) > 0 {
		parts = append(parts, text)
	}
	return parts
}

func safeCut(text string, at int) int {
	for at > 1 && !utf8.RuneStart(text[at]) {
		at--
	}
	if at > 1 && text[at-1] == '\\' {
		at--
	}
	return at
}

// reportError logs the error and sends a neutral message to the chat.
func (t *TgBot) reportError(chatId int64, command string, err error) {
	t.log.Warn("bot command failed",
		slog.String("command", command),
		slog.Int64("chat_id", chatId),
		sl.Err(err),
	)
	t.plainResponse(chatId, "Something went wrong\\. Please try again later\\.")
}
