package main

import (
	"context"
	"flag"
	"log/slog"
	"path/filepath"
	"time"
	"wedsync/bot"
	"wedsync/impl/auth"
	"wedsync/impl/core"
	"wedsync/internal/config"
	"wedsync/internal/database"
	"wedsync/internal/http-server/api"
	"wedsync/internal/http-server/handlers/files"
	"wedsync/internal/invitation"
	"wedsync/internal/storage"
	"wedsync/internal/upload"
	"wedsync/lib/logger"
	"wedsync/lib/sl"
)

const (
	accountPrimary   = "primary"
	accountSecondary = "secondary"
)

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	log := logger.SetupLogger(conf.Env, *logPath)
	log.Info("starting wedsync", slog.String("config", *configPath), slog.String("env", conf.Env))

	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.ApiKey, log, bot.BotConfig{
			ChatIds:           conf.Telegram.ChatIds,
			DigestIntervalMin: conf.Telegram.DigestIntervalMin,
		})
		if err != nil {
			log.Error("telegram bot", sl.Err(err))
			tgBot = nil
		} else {
			log = logger.WithMessenger(log, tgBot, logLevel(conf.Telegram.LogLevel))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	db, err := database.New(ctx, conf)
	cancel()
	if err != nil {
		log.Error("database", slog.String("driver", conf.Database.Driver), sl.Err(err))
		return
	}
	defer db.Close()
	log.Info("database connected", slog.String("driver", conf.Database.Driver))

	client := invitation.New(db, log)
	handler := core.New(client, log)
	handler.SetAuthService(auth.New(db))

	primary, secondary, locators, err := storageAccounts(conf, log)
	if err != nil {
		log.Error("storage", sl.Err(err))
		return
	}
	unlockAt, _ := conf.Upload.UnlockTime()
	handler.SetUploader(
		upload.NewOrchestrator(primary, secondary, log),
		upload.NewGate(unlockAt, conf.Upload.PasswordHash),
	)

	if tgBot != nil {
		tgBot.SetReports(client)
		handler.SetNotifier(tgBot)
		go func() {
			if err := tgBot.Start(); err != nil {
				log.Error("telegram bot start", sl.Err(err))
			}
		}()
		defer tgBot.Stop()
	}

	// blocking call
	if err = api.New(conf, log, handler, locators); err != nil {
		log.Error("server", sl.Err(err))
	}
}

// storageAccounts builds the primary and secondary photo accounts; an account
// with no credentials (mega) or no path (filesystem) is left out.
func storageAccounts(conf *config.Config, log *slog.Logger) (storage.Account, storage.Account, map[string]files.Locator, error) {
	st := conf.Storage
	locators := make(map[string]files.Locator)

	switch st.Driver {
	case "mega":
		primary := storage.NewMegaAccount(accountPrimary, st.Primary.Email, st.Primary.Password, st.Folder, log)
		if st.Secondary.Email == "" {
			return primary, nil, locators, nil
		}
		secondary := storage.NewMegaAccount(accountSecondary, st.Secondary.Email, st.Secondary.Password, st.Folder, log)
		return primary, secondary, locators, nil
	default:
		build := func(name string, acc config.Account) (*storage.FileSystemAccount, error) {
			path := acc.Path
			if path == "" {
				path = filepath.Join("photos", name)
			}
			fs := storage.NewFileSystemAccount(name, path, st.BaseURL, acc.Capacity)
			if err := fs.EnsureDir(); err != nil {
				return nil, err
			}
			locators[name] = fs
			return fs, nil
		}
		primary, err := build(accountPrimary, st.Primary)
		if err != nil {
			return nil, nil, nil, err
		}
		secondary, err := build(accountSecondary, st.Secondary)
		if err != nil {
			return nil, nil, nil, err
		}
		return primary, secondary, locators, nil
	}
}

func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelError
	}
	return level
}
