package invitation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"wedsync/entity"
	"wedsync/lib/sl"
	"wedsync/lib/validate"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("invitation not found")
	ErrLinkAlreadyUsed  = errors.New("invitation link already used")
	ErrAlreadyConfirmed = errors.New("attendance already confirmed")
	ErrValidation       = errors.New("attendee count out of range")
)

// Error keeps the operation and the invitation code next to the cause so
// failures can be logged without extra bookkeeping by callers.
type Error struct {
	Op   string
	Code string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invitation.%s code=%s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsInformational reports errors caused by an already consumed link; these
// are shown to guests as a notice, not as a failure.
func IsInformational(err error) bool {
	return errors.Is(err, ErrLinkAlreadyUsed) || errors.Is(err, ErrAlreadyConfirmed)
}

// Repository is the household storage driver.
//
// FindByCode returns nil, nil when no household has the code.
// MarkConfirmed and MarkRejected must update the record only while its link is
// still active and report false when no active record matched.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*entity.Household, error)
	MarkConfirmed(ctx context.Context, code string, attendees int, at time.Time) (bool, error)
	MarkRejected(ctx context.Context, code string, at time.Time) (bool, error)
	InsertHousehold(ctx context.Context, h *entity.Household) error
	Stats(ctx context.Context) (*entity.Stats, error)
	AvailableSlots(ctx context.Context) ([]*entity.AvailableSlot, error)
	History(ctx context.Context) ([]*entity.HistoryEntry, error)
}

type Client struct {
	repo Repository
	now  func() time.Time
	log  *slog.Logger
}

func New(repo Repository, log *slog.Logger) *Client {
	if repo == nil {
		panic("invitation repository is nil")
	}
	return &Client{
		repo: repo,
		now:  time.Now,
		log:  log.With(sl.Module("invitation")),
	}
}

// SetClock replaces the time source used for response timestamps.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Client) FindByCode(ctx context.Context, code string) (*entity.Household, error) {
	code = entity.NormalizeCode(code)
	h, err := c.find(ctx, "find", code)
	if err != nil {
		return nil, err
	}
	if !h.IsLinkActive {
		c.log.With(sl.Code(code), slog.String("status", string(h.Status))).Debug("link inactive")
	}
	return h, nil
}

func (c *Client) find(ctx context.Context, op, code string) (*entity.Household, error) {
	if code == "" {
		return nil, &Error{Op: op, Code: code, Err: ErrNotFound}
	}
	h, err := c.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, &Error{Op: op, Code: code, Err: err}
	}
	if h == nil {
		return nil, &Error{Op: op, Code: code, Err: ErrNotFound}
	}
	return h, nil
}

// Confirm records attendance for the household. It succeeds at most once per
// household; any later call fails with ErrLinkAlreadyUsed.
func (c *Client) Confirm(ctx context.Context, code string, attendees int) error {
	const op = "confirm"
	code = entity.NormalizeCode(code)
	log := c.log.With(sl.Code(code), slog.Int("attendees", attendees))

	h, err := c.find(ctx, op, code)
	if err != nil {
		return err
	}
	if !h.IsLinkActive {
		return &Error{Op: op, Code: code, Err: ErrLinkAlreadyUsed}
	}
	if h.Status == entity.StatusConfirmed {
		return &Error{Op: op, Code: code, Err: ErrAlreadyConfirmed}
	}
	if !h.AcceptsAttendees(attendees) {
		return &Error{Op: op, Code: code, Err: fmt.Errorf("%w: %d not in [1, %d]", ErrValidation, attendees, h.TotalSlots)}
	}

	ok, err := c.repo.MarkConfirmed(ctx, code, attendees, c.now().UTC())
	if err != nil {
		log.Error("mark confirmed", sl.Err(err))
		return &Error{Op: op, Code: code, Err: err}
	}
	if !ok {
		// another submission consumed the link between the read and the write
		log.Warn("confirm lost compare-and-swap")
		return &Error{Op: op, Code: code, Err: ErrLinkAlreadyUsed}
	}
	log.Info("attendance confirmed")
	return nil
}

// Reject records that the household declines the invitation.
func (c *Client) Reject(ctx context.Context, code string) error {
	const op = "reject"
	code = entity.NormalizeCode(code)
	log := c.log.With(sl.Code(code))

	h, err := c.find(ctx, op, code)
	if err != nil {
		return err
	}
	if !h.IsLinkActive {
		return &Error{Op: op, Code: code, Err: ErrLinkAlreadyUsed}
	}

	ok, err := c.repo.MarkRejected(ctx, code, c.now().UTC())
	if err != nil {
		log.Error("mark rejected", sl.Err(err))
		return &Error{Op: op, Code: code, Err: err}
	}
	if !ok {
		log.Warn("reject lost compare-and-swap")
		return &Error{Op: op, Code: code, Err: ErrLinkAlreadyUsed}
	}
	log.Info("invitation rejected")
	return nil
}

// Seed inserts new households in their initial pending state.
func (c *Client) Seed(ctx context.Context, households []*entity.Household) (int, error) {
	created := 0
	for _, h := range households {
		n := h.Copy()
		n.Code = entity.NormalizeCode(n.Code)
		if err := validate.Struct(n); err != nil {
			return created, &Error{Op: "seed", Code: n.Code, Err: err}
		}
		if n.Id == "" {
			n.Id = uuid.NewString()
		}
		n.Status = entity.StatusPending
		n.IsLinkActive = true
		n.ConfirmedAttendees = 0
		n.ConfirmedAt = nil
		n.RespondedAt = nil
		if n.CreatedAt.IsZero() {
			n.CreatedAt = c.now().UTC()
		}
		if err := c.repo.InsertHousehold(ctx, n); err != nil {
			return created, &Error{Op: "seed", Code: n.Code, Err: err}
		}
		created++
	}
	c.log.With(slog.Int("count", created)).Info("households seeded")
	return created, nil
}

func (c *Client) Stats(ctx context.Context) (*entity.Stats, error) {
	stats, err := c.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("invitation.stats: %w", err)
	}
	return stats, nil
}

func (c *Client) AvailableSlots(ctx context.Context) ([]*entity.AvailableSlot, error) {
	slots, err := c.repo.AvailableSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("invitation.slots: %w", err)
	}
	return slots, nil
}

func (c *Client) History(ctx context.Context) ([]*entity.HistoryEntry, error) {
	history, err := c.repo.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("invitation.history: %w", err)
	}
	return history, nil
}
