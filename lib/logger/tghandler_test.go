package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type capture struct {
	messages []string
	levels   []slog.Level
}

func (c *capture) SendMessageWithLevel(msg string, level slog.Level) {
	c.messages = append(c.messages, msg)
	c.levels = append(c.levels, level)
}

func TestTelegramHandlerMirrorsAboveLevel(t *testing.T) {
	var buf bytes.Buffer
	out := &capture{}
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log := WithMessenger(base, out, slog.LevelError)

	log.Debug("hidden")
	log.Info("stored only")
	log.With(slog.String("code", "ABC-1")).Error("confirm failed", slog.String("error", errors.New("db down").Error()))

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "stored only") {
		t.Errorf("base output = %q", buf.String())
	}
	if len(out.messages) != 1 || out.levels[0] != slog.LevelError {
		t.Fatalf("messages = %q", out.messages)
	}
	msg := out.messages[0]
	if !strings.Contains(msg, "`confirm failed`") || !strings.Contains(msg, `code: ABC\-1`) || !strings.Contains(msg, "```error db down ```") {
		t.Errorf("message = %q", msg)
	}
}

func TestTelegramHandlerGroup(t *testing.T) {
	out := &capture{}
	log := slog.New(NewTelegramHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), out, slog.LevelWarn)).WithGroup("upload")
	log.Warn("switching")
	if len(out.messages) != 1 || !strings.Contains(out.messages[0], "`upload.switching`") {
		t.Errorf("messages = %q", out.messages)
	}
}

func TestWithMessengerNil(t *testing.T) {
	base := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if WithMessenger(base, nil, slog.LevelError) != base {
		t.Error("nil messenger wrapped the logger")
	}
}
