package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`

	// CorsOrigins lists the guest site origins; empty serves same-origin only
	CorsOrigins []string `yaml:"cors_origins"`
}

// Database selects the household store driver: mongo, mysql, postgres or memory
type Database struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"mongo"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"DB_PORT" env-default:"27017"`
	User     string `yaml:"user" env:"DB_USER" env-default:""`
	Password string `yaml:"password" env:"DB_PASSWORD" env-default:""`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"wedsync"`
	// URL overrides the host parameters for postgres, e.g. a Supabase connection string
	URL string `yaml:"url" env:"DATABASE_URL" env-default:""`
}

// Account holds one storage account credential pair
type Account struct {
	Email    string `yaml:"email" env-default:""`
	Password string `yaml:"password" env-default:""`
	// Path and Capacity apply to the filesystem driver only
	Path     string `yaml:"path" env-default:""`
	Capacity int64  `yaml:"capacity" env-default:"0"`
}

type Storage struct {
	Driver    string  `yaml:"driver" env:"STORAGE_DRIVER" env-default:"filesystem"`
	Folder    string  `yaml:"folder" env-default:""`
	BaseURL   string  `yaml:"base_url" env-default:"http://localhost:8080"`
	Primary   Account `yaml:"primary" env-prefix:"STORAGE_PRIMARY_"`
	Secondary Account `yaml:"secondary" env-prefix:"STORAGE_SECONDARY_"`
}

type Upload struct {
	// UnlockAt is an RFC3339 time; before it uploads need the temporary password
	UnlockAt     string `yaml:"unlock_at" env-default:""`
	PasswordHash string `yaml:"password_hash" env:"UPLOAD_PASSWORD_HASH" env-default:""`
	MaxFileSize  int64  `yaml:"max_file_size" env-default:"26214400"`
	MaxFiles     int    `yaml:"max_files" env-default:"20"`
}

type Telegram struct {
	Enabled  bool    `yaml:"enabled" env-default:"false"`
	ApiKey   string  `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
	ChatIds  []int64 `yaml:"chat_ids"`
	LogLevel string  `yaml:"log_level" env-default:"error"`
	// DigestIntervalMin batches response notifications; 0 sends each one at once
	DigestIntervalMin int `yaml:"digest_interval_min" env-default:"0"`
}

type Config struct {
	Env      string   `yaml:"env" env-default:"local"`
	Listen   Listen   `yaml:"listen"`
	Database Database `yaml:"database"`
	Storage  Storage  `yaml:"storage"`
	Upload   Upload   `yaml:"upload"`
	Telegram Telegram `yaml:"telegram"`
}

// UnlockTime parses Upload.UnlockAt; zero time means uploads are always open
func (u Upload) UnlockTime() (time.Time, error) {
	if u.UnlockAt == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, u.UnlockAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("upload.unlock_at: %w", err)
	}
	return t, nil
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
		if _, err = instance.Upload.UnlockTime(); err != nil {
			log.Fatal(err)
		}
	})
	return instance
}
