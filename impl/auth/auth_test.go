package auth

import (
	"context"
	"errors"
	"testing"
	"time"
	"wedsync/entity"
)

type countingDB struct {
	users map[string]*entity.User
	calls int
}

var errMissing = errors.New("missing")

func (d *countingDB) GetUser(_ context.Context, token string) (*entity.User, error) {
	d.calls++
	u, ok := d.users[token]
	if !ok {
		return nil, errMissing
	}
	return u, nil
}

func TestUserByTokenCachesHits(t *testing.T) {
	db := &countingDB{users: map[string]*entity.User{
		"t1": {Username: "ana", Token: "t1", Role: entity.RoleViewer},
	}}
	a := New(db)
	now := time.Date(2025, 9, 20, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		u, err := a.UserByToken(context.Background(), "t1")
		if err != nil || u.Username != "ana" {
			t.Fatalf("lookup %d: %v %v", i, u, err)
		}
	}
	if db.calls != 1 {
		t.Errorf("db calls = %d, want 1", db.calls)
	}

	now = now.Add(cacheTTL + time.Second)
	if _, err := a.UserByToken(context.Background(), "t1"); err != nil {
		t.Fatal(err)
	}
	if db.calls != 2 {
		t.Errorf("db calls after expiry = %d, want 2", db.calls)
	}
}

func TestUserByTokenMissesAreNotCached(t *testing.T) {
	db := &countingDB{users: map[string]*entity.User{}}
	a := New(db)
	for i := 0; i < 2; i++ {
		if _, err := a.UserByToken(context.Background(), "nope"); !errors.Is(err, errMissing) {
			t.Fatalf("err = %v", err)
		}
	}
	if db.calls != 2 {
		t.Errorf("db calls = %d, want 2", db.calls)
	}
}

func TestUserByTokenRejectsInvalidRecord(t *testing.T) {
	db := &countingDB{users: map[string]*entity.User{"t2": {Token: "t2"}}}
	if _, err := New(db).UserByToken(context.Background(), "t2"); err == nil {
		t.Fatal("user without username accepted")
	}
}

func TestUserByTokenWithoutDatabase(t *testing.T) {
	if _, err := New(nil).UserByToken(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}
