package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
	"wedsync/entity"
	"wedsync/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// migrations are applied in order and recorded in schema_migrations.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_families",
		SQL: `
			CREATE TABLE IF NOT EXISTS families (
				id                  VARCHAR(36)  PRIMARY KEY,
				code                VARCHAR(64)  NOT NULL UNIQUE,
				name                VARCHAR(255) NOT NULL,
				total_slots         INTEGER      NOT NULL CHECK (total_slots >= 1),
				confirmed_attendees INTEGER      NOT NULL DEFAULT 0,
				status              VARCHAR(16)  NOT NULL DEFAULT 'pending',
				is_link_active      BOOLEAN      NOT NULL DEFAULT TRUE,
				invitation_link     VARCHAR(512) NOT NULL DEFAULT '',
				confirmed_at        TIMESTAMPTZ,
				responded_at        TIMESTAMPTZ,
				created_at          TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				CHECK (confirmed_attendees BETWEEN 0 AND total_slots),
				CHECK (status IN ('pending', 'confirmed', 'rejected'))
			);
			CREATE INDEX IF NOT EXISTS idx_families_responded_at ON families(responded_at);
		`,
	},
	{
		Version: "000002_create_users",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				username VARCHAR(64)  PRIMARY KEY,
				name     VARCHAR(255) NOT NULL DEFAULT '',
				token    VARCHAR(128) NOT NULL UNIQUE,
				role     VARCHAR(16)  NOT NULL DEFAULT ''
			);
		`,
	},
}

// Postgres stores households in a PostgreSQL database such as Supabase.
type Postgres struct {
	pool *pgxpool.Pool
}

func postgresURL(conf *config.Config) string {
	if conf.Database.URL != "" {
		return conf.Database.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(conf.Database.User, conf.Database.Password),
		Host:   conf.Database.Host + ":" + conf.Database.Port,
		Path:   conf.Database.Name,
	}
	return u.String()
}

func NewPostgres(ctx context.Context, conf *config.Config) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(postgresURL(conf))
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err = p.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) runMigrations(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err = p.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := p.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.Version, err)
		}
		if _, err = tx.Exec(ctx, m.SQL); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("execute migration %s: %w", m.Version, err)
		}
		if _, err = tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", m.Version, err)
		}
		if err = tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.Version, err)
		}
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) GetUser(ctx context.Context, token string) (*entity.User, error) {
	user, err := scanUser(p.pool.QueryRow(ctx,
		`SELECT username, name, token, role FROM users WHERE token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

func (p *Postgres) FindByCode(ctx context.Context, code string) (*entity.Household, error) {
	h, err := scanHousehold(p.pool.QueryRow(ctx,
		`SELECT `+householdColumns+` FROM families WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select household: %w", err)
	}
	return h, nil
}

func (p *Postgres) MarkConfirmed(ctx context.Context, code string, attendees int, at time.Time) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE families SET
			status = 'confirmed',
			confirmed_attendees = $2,
			is_link_active = FALSE,
			confirmed_at = $3,
			responded_at = $3
		WHERE code = $1 AND is_link_active AND $2 BETWEEN 1 AND total_slots`,
		code, attendees, at)
	if err != nil {
		return false, fmt.Errorf("update household: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) MarkRejected(ctx context.Context, code string, at time.Time) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE families SET
			status = 'rejected',
			confirmed_attendees = 0,
			is_link_active = FALSE,
			responded_at = $2
		WHERE code = $1 AND is_link_active`,
		code, at)
	if err != nil {
		return false, fmt.Errorf("update household: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) InsertHousehold(ctx context.Context, h *entity.Household) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO families (`+householdColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		h.Id, h.Code, h.Name, h.TotalSlots, h.ConfirmedAttendees, string(h.Status),
		h.IsLinkActive, h.InvitationLink, h.ConfirmedAt, h.RespondedAt, h.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, h.Code)
	}
	if err != nil {
		return fmt.Errorf("insert household: %w", err)
	}
	return nil
}

func (p *Postgres) Stats(ctx context.Context) (*entity.Stats, error) {
	var stats entity.Stats
	err := p.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(total_slots), 0)::BIGINT,
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COALESCE(SUM(confirmed_attendees), 0)::BIGINT,
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'pending')
		FROM families`,
	).Scan(
		&stats.TotalFamilies,
		&stats.TotalSlots,
		&stats.ConfirmedFamilies,
		&stats.ConfirmedAttendees,
		&stats.RejectedFamilies,
		&stats.PendingFamilies,
	)
	if err != nil {
		return nil, fmt.Errorf("select stats: %w", err)
	}
	return &stats, nil
}

func (p *Postgres) queryHouseholds(ctx context.Context, query string) ([]*entity.Household, error) {
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select households: %w", err)
	}
	defer rows.Close()

	var households []*entity.Household
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan household: %w", err)
		}
		households = append(households, h)
	}
	return households, rows.Err()
}

func (p *Postgres) AvailableSlots(ctx context.Context) ([]*entity.AvailableSlot, error) {
	households, err := p.queryHouseholds(ctx,
		`SELECT `+householdColumns+` FROM families WHERE status <> 'rejected' ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	slots := make([]*entity.AvailableSlot, 0, len(households))
	for _, h := range households {
		slots = append(slots, entity.NewAvailableSlot(h))
	}
	return slots, nil
}

func (p *Postgres) History(ctx context.Context) ([]*entity.HistoryEntry, error) {
	households, err := p.queryHouseholds(ctx,
		`SELECT `+householdColumns+` FROM families WHERE responded_at IS NOT NULL ORDER BY responded_at DESC`)
	if err != nil {
		return nil, err
	}
	history := make([]*entity.HistoryEntry, 0, len(households))
	for _, h := range households {
		history = append(history, entity.NewHistoryEntry(h))
	}
	return history, nil
}
