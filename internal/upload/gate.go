package upload

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ErrGateClosed = errors.New("uploads are not open yet")

// Gate keeps uploads closed until unlockAt unless the temporary password is given.
// A zero unlockAt means the gate is always open.
type Gate struct {
	unlockAt     time.Time
	passwordHash []byte
	now          func() time.Time
}

func NewGate(unlockAt time.Time, passwordHash string) *Gate {
	return &Gate{
		unlockAt:     unlockAt,
		passwordHash: []byte(passwordHash),
		now:          time.Now,
	}
}

func (g *Gate) SetClock(now func() time.Time) {
	g.now = now
}

func (g *Gate) Open() bool {
	return g.unlockAt.IsZero() || !g.now().Before(g.unlockAt)
}

func (g *Gate) UnlockAt() time.Time {
	return g.unlockAt
}

// Check passes when the gate is open or the password matches the hash.
func (g *Gate) Check(password string) error {
	if g.Open() {
		return nil
	}
	if password == "" || len(g.passwordHash) == 0 {
		return ErrGateClosed
	}
	if err := bcrypt.CompareHashAndPassword(g.passwordHash, []byte(password)); err != nil {
		return ErrGateClosed
	}
	return nil
}
