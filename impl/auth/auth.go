// Package auth resolves report tokens to users.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
	"wedsync/entity"
)

const cacheTTL = 5 * time.Minute

type Database interface {
	GetUser(ctx context.Context, token string) (*entity.User, error)
}

type cached struct {
	user    *entity.User
	expires time.Time
}

// Auth looks tokens up in the database and remembers hits for a few minutes,
// so the reporting dashboard polling does not hit the store on every request.
// Misses are never cached.
type Auth struct {
	db    Database
	now   func() time.Time
	mu    sync.Mutex
	users map[string]cached
}

func New(db Database) *Auth {
	return &Auth{
		db:    db,
		now:   time.Now,
		users: make(map[string]cached),
	}
}

func (a *Auth) UserByToken(ctx context.Context, token string) (*entity.User, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}

	a.mu.Lock()
	c, ok := a.users[token]
	if ok && a.now().After(c.expires) {
		delete(a.users, token)
		ok = false
	}
	a.mu.Unlock()
	if ok {
		return c.user, nil
	}

	user, err := a.db.GetUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if err = user.Bind(nil); err != nil {
		return nil, fmt.Errorf("invalid user record: %w", err)
	}

	a.mu.Lock()
	a.users[token] = cached{user: user, expires: a.now().Add(cacheTTL)}
	a.mu.Unlock()
	return user, nil
}
