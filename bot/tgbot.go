// Package bot implements the Telegram bot that reports guest responses.
//
//   - tgbot.go: TgBot struct, lifecycle (Start/Stop), Reports interface
//   - commands.go: /start, /stats, /slots, /history, /help
//   - menus.go: command menu for authorized chats
//   - messaging.go: response notifications and log mirroring
//   - digest.go: DigestBuffer for batched response notifications
//   - format.go: MarkdownV2 rendering of reports
//   - helpers.go: Sanitize, plainResponse, splitMessage, reportError
//
// Only chats listed in the configuration receive notifications and may query
// reports; everybody else gets their chat id from /start so it can be added.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"wedsync/entity"
	"wedsync/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
)

// BotConfig holds Telegram-specific configuration loaded from the YAML config file.
type BotConfig struct {
	ChatIds           []int64
	DigestIntervalMin int
}

// Reports are the read-only queries the bot answers.
// Implemented by internal/invitation.Client.
type Reports interface {
	Stats(ctx context.Context) (*entity.Stats, error)
	AvailableSlots(ctx context.Context) ([]*entity.AvailableSlot, error)
	History(ctx context.Context) ([]*entity.HistoryEntry, error)
}

type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	reports     Reports
	chatIds     map[int64]bool
	minLogLevel slog.Level
	updater     *ext.Updater
	digest      *DigestBuffer
	config      BotConfig
}

func NewTgBot(apiKey string, log *slog.Logger, cfg BotConfig) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		chatIds:     make(map[int64]bool, len(cfg.ChatIds)),
		minLogLevel: slog.LevelDebug,
		config:      cfg,
	}
	for _, id := range cfg.ChatIds {
		tgBot.chatIds[id] = true
	}
	if cfg.DigestIntervalMin > 0 {
		tgBot.digest = NewDigestBuffer(tgBot, time.Duration(cfg.DigestIntervalMin)*time.Minute)
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

func (t *TgBot) SetReports(reports Reports) {
	t.reports = reports
}

// Start polls for updates and blocks until Stop.
func (t *TgBot) Start() error {
	if t.digest != nil {
		t.digest.StartTicker()
	}

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewCommand("start", t.start))
	dispatcher.AddHandler(handlers.NewCommand("stats", t.stats))
	dispatcher.AddHandler(handlers.NewCommand("slots", t.slots))
	dispatcher.AddHandler(handlers.NewCommand("history", t.history))
	dispatcher.AddHandler(handlers.NewCommand("help", t.help))

	t.setDefaultCommands()
	t.syncChatMenus()

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	if t.digest != nil {
		t.digest.Stop()
	}
	if t.updater != nil {
		t.log.Info("stopping telegram bot")
		t.updater.Stop()
	}
}

func (t *TgBot) isAuthorized(chatId int64) bool {
	return t.chatIds[chatId]
}
