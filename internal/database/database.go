package database

import (
	"context"
	"errors"
	"fmt"
	"time"
	"wedsync/entity"
	"wedsync/internal/config"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateCode = errors.New("household code already exists")
)

const (
	DriverMongo    = "mongo"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Database is the household and user store every driver implements.
type Database interface {
	FindByCode(ctx context.Context, code string) (*entity.Household, error)
	MarkConfirmed(ctx context.Context, code string, attendees int, at time.Time) (bool, error)
	MarkRejected(ctx context.Context, code string, at time.Time) (bool, error)
	InsertHousehold(ctx context.Context, h *entity.Household) error
	Stats(ctx context.Context) (*entity.Stats, error)
	AvailableSlots(ctx context.Context) ([]*entity.AvailableSlot, error)
	History(ctx context.Context) ([]*entity.HistoryEntry, error)
	GetUser(ctx context.Context, token string) (*entity.User, error)
	Close()
}

// New opens the driver selected in the configuration.
func New(ctx context.Context, conf *config.Config) (Database, error) {
	switch conf.Database.Driver {
	case DriverMongo:
		return NewMongoClient(ctx, conf)
	case DriverMySQL:
		return NewSQLClient(ctx, conf)
	case DriverPostgres:
		return NewPostgres(ctx, conf)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %q", conf.Database.Driver)
	}
}
