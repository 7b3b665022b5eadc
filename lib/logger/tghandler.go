package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"wedsync/bot"
)

// Messenger delivers a formatted log line to chat subscribers
type Messenger interface {
	SendMessageWithLevel(msg string, level slog.Level)
}

// TelegramHandler is a slog.Handler that sends log messages to Telegram
type TelegramHandler struct {
	handler  slog.Handler
	out      Messenger
	minLevel slog.Level
	mu       *sync.Mutex
	attrs    []slog.Attr
	group    string
}

func NewTelegramHandler(handler slog.Handler, out Messenger, minLevel slog.Level) *TelegramHandler {
	return &TelegramHandler{
		handler:  handler,
		out:      out,
		minLevel: minLevel,
		mu:       &sync.Mutex{},
		attrs:    make([]slog.Attr, 0),
	}
}

// Enabled reports true when either the wrapped handler or the chat mirror wants the record
func (h *TelegramHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel || h.handler.Enabled(ctx, level)
}

func (h *TelegramHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.handler.Enabled(ctx, record.Level) {
		if err := h.handler.Handle(ctx, record); err != nil {
			return err
		}
	}

	if record.Level < h.minLevel || h.out == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var b strings.Builder
	if h.group != "" {
		b.WriteString(fmt.Sprintf("*%s* `%s.%s`", record.Level.String(), h.group, record.Message))
	} else {
		b.WriteString(fmt.Sprintf("*%s* `%s`", record.Level.String(), record.Message))
	}
	write := func(attr slog.Attr) {
		if attr.Key == "error" {
			b.WriteString(fmt.Sprintf("\n%s: ```error %v ```", attr.Key, attr.Value))
			return
		}
		b.WriteString(bot.Sanitize(fmt.Sprintf("\n%s: %v", attr.Key, attr.Value)))
	}
	for _, attr := range h.attrs {
		write(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		write(attr)
		return true
	})

	h.out.SendMessageWithLevel(b.String(), record.Level)
	return nil
}

func (h *TelegramHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)

	return &TelegramHandler{
		handler:  h.handler.WithAttrs(attrs),
		out:      h.out,
		minLevel: h.minLevel,
		mu:       h.mu,
		attrs:    newAttrs,
		group:    h.group,
	}
}

func (h *TelegramHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}

	return &TelegramHandler{
		handler:  h.handler.WithGroup(name),
		out:      h.out,
		minLevel: h.minLevel,
		mu:       h.mu,
		attrs:    h.attrs,
		group:    group,
	}
}
