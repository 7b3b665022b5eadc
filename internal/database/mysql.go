package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
	"wedsync/entity"
	"wedsync/internal/config"

	"github.com/go-sql-driver/mysql"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS families (
		id                  VARCHAR(36)  NOT NULL PRIMARY KEY,
		code                VARCHAR(64)  NOT NULL UNIQUE,
		name                VARCHAR(255) NOT NULL,
		total_slots         INT          NOT NULL,
		confirmed_attendees INT          NOT NULL DEFAULT 0,
		status              VARCHAR(16)  NOT NULL DEFAULT 'pending',
		is_link_active      TINYINT(1)   NOT NULL DEFAULT 1,
		invitation_link     VARCHAR(512) NOT NULL DEFAULT '',
		confirmed_at        DATETIME     NULL,
		responded_at        DATETIME     NULL,
		created_at          DATETIME     NOT NULL,
		CHECK (total_slots >= 1),
		CHECK (confirmed_attendees >= 0 AND confirmed_attendees <= total_slots)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		username VARCHAR(64)  NOT NULL PRIMARY KEY,
		name     VARCHAR(255) NOT NULL DEFAULT '',
		token    VARCHAR(128) NOT NULL UNIQUE,
		role     VARCHAR(16)  NOT NULL DEFAULT ''
	)`,
}

type MySql struct {
	db         *sql.DB
	statements map[string]*sql.Stmt
	mu         sync.Mutex
}

func NewSQLClient(ctx context.Context, conf *config.Config) (*MySql, error) {
	connectionURI := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC",
		conf.Database.User, conf.Database.Password, conf.Database.Host, conf.Database.Port, conf.Database.Name)
	db, err := sql.Open("mysql", connectionURI)
	if err != nil {
		return nil, fmt.Errorf("sql connect: %w", err)
	}

	// try to ping three times with a 30-second interval; wait for a database to start
	for i := 0; i < 3; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		if i == 2 {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		time.Sleep(30 * time.Second)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &MySql{
		db:         db,
		statements: make(map[string]*sql.Stmt),
	}
	for _, query := range mysqlSchema {
		if _, err = db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return sdb, nil
}

func (s *MySql) Close() {
	s.closeStmt()
	_ = s.db.Close()
}

func (s *MySql) prepareStmt(ctx context.Context, name, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stmt, ok := s.statements[name]; ok {
		return stmt, nil
	}

	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement [%s]: %w", name, err)
	}

	s.statements[name] = stmt
	return stmt, nil
}

func (s *MySql) closeStmt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, stmt := range s.statements {
		_ = stmt.Close()
		delete(s.statements, name)
	}
}

func (s *MySql) GetUser(ctx context.Context, token string) (*entity.User, error) {
	stmt, err := s.prepareStmt(ctx, "selectUser",
		`SELECT username, name, token, role FROM users WHERE token = ?`)
	if err != nil {
		return nil, err
	}
	user, err := scanUser(stmt.QueryRowContext(ctx, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

func (s *MySql) FindByCode(ctx context.Context, code string) (*entity.Household, error) {
	stmt, err := s.prepareStmt(ctx, "selectHousehold",
		`SELECT `+householdColumns+` FROM families WHERE code = ?`)
	if err != nil {
		return nil, err
	}
	h, err := scanHousehold(stmt.QueryRowContext(ctx, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select household: %w", err)
	}
	return h, nil
}

func (s *MySql) MarkConfirmed(ctx context.Context, code string, attendees int, at time.Time) (bool, error) {
	stmt, err := s.prepareStmt(ctx, "updateConfirmed",
		`UPDATE families SET
			status = 'confirmed',
			confirmed_attendees = ?,
			is_link_active = 0,
			confirmed_at = ?,
			responded_at = ?
		WHERE code = ? AND is_link_active = 1 AND ? BETWEEN 1 AND total_slots`)
	if err != nil {
		return false, err
	}
	result, err := stmt.ExecContext(ctx, attendees, at, at, code, attendees)
	if err != nil {
		return false, fmt.Errorf("update household: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *MySql) MarkRejected(ctx context.Context, code string, at time.Time) (bool, error) {
	stmt, err := s.prepareStmt(ctx, "updateRejected",
		`UPDATE families SET
			status = 'rejected',
			confirmed_attendees = 0,
			is_link_active = 0,
			responded_at = ?
		WHERE code = ? AND is_link_active = 1`)
	if err != nil {
		return false, err
	}
	result, err := stmt.ExecContext(ctx, at, code)
	if err != nil {
		return false, fmt.Errorf("update household: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *MySql) InsertHousehold(ctx context.Context, h *entity.Household) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO families (`+householdColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.Id, h.Code, h.Name, h.TotalSlots, h.ConfirmedAttendees, string(h.Status),
		h.IsLinkActive, h.InvitationLink, h.ConfirmedAt, h.RespondedAt, h.CreatedAt,
	)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, h.Code)
	}
	if err != nil {
		return fmt.Errorf("insert household: %w", err)
	}
	return nil
}

func (s *MySql) Stats(ctx context.Context) (*entity.Stats, error) {
	var stats entity.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(total_slots), 0),
			COALESCE(SUM(status = 'confirmed'), 0),
			COALESCE(SUM(confirmed_attendees), 0),
			COALESCE(SUM(status = 'rejected'), 0),
			COALESCE(SUM(status = 'pending'), 0)
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

func (s *MySql) queryHouseholds(ctx context.Context, query string) ([]*entity.Household, error) {
	rows, err := s.db.QueryContext(ctx, query)
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

func (s *MySql) AvailableSlots(ctx context.Context) ([]*entity.AvailableSlot, error) {
	households, err := s.queryHouseholds(ctx,
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

func (s *MySql) History(ctx context.Context) ([]*entity.HistoryEntry, error) {
	households, err := s.queryHouseholds(ctx,
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
