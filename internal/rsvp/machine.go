// Package rsvp drives one guest's confirmation flow for an invitation code.
package rsvp

import (
	"context"
	"errors"
	"fmt"
	"wedsync/entity"
	"wedsync/internal/invitation"
)

var ErrInvalidTransition = errors.New("invalid transition")

// Store is the subset of the invitation client the flow needs.
type Store interface {
	FindByCode(ctx context.Context, code string) (*entity.Household, error)
	Confirm(ctx context.Context, code string, attendees int) error
	Reject(ctx context.Context, code string) error
}

// Notice tells the page which message to show next to the state.
type Notice string

const (
	NoticeNone             Notice = ""
	NoticeNoCode           Notice = "no-code"
	NoticeNotFound         Notice = "not-found"
	NoticeLinkAlreadyUsed  Notice = "link-already-used"
	NoticeAlreadyConfirmed Notice = "already-confirmed"
	NoticeInvalidAttendees Notice = "invalid-attendees"
	NoticeFailure          Notice = "failure"
)

// Informational notices are shown as plain information, not as an alert.
func (n Notice) Informational() bool {
	return n == NoticeLinkAlreadyUsed || n == NoticeAlreadyConfirmed || n == NoticeNoCode
}

// Machine is not safe for concurrent use; each page or request owns one.
// Store failures never return from the methods: they move the machine to the
// error state and are available through Err.
type Machine struct {
	store       Store
	code        string
	state       State
	household   *entity.Household
	attendees   int
	linkExpired bool
	notice      Notice
	err         error
}

// New starts in loading when code is set; without a code there is nothing to
// look up and the machine starts in not-found.
func New(store Store, code string) *Machine {
	m := &Machine{
		store: store,
		code:  entity.NormalizeCode(code),
		state: StateLoading,
	}
	if m.code == "" {
		m.state = StateNotFound
		m.notice = NoticeNoCode
	}
	return m
}

func (m *Machine) fire(e Event) error {
	to, ok := next(m.state, e)
	if !ok {
		return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, e, m.state)
	}
	m.state = to
	return nil
}

// Load looks the code up and settles in found, not-found, error, or directly
// in the terminal state recorded for an already used link.
func (m *Machine) Load(ctx context.Context) error {
	if m.state != StateLoading {
		return fmt.Errorf("%w: load in state %s", ErrInvalidTransition, m.state)
	}
	h, err := m.store.FindByCode(ctx, m.code)
	switch {
	case errors.Is(err, invitation.ErrNotFound), err == nil && h == nil:
		m.household = nil
		m.notice = NoticeNotFound
		return m.fire(EventLookupMissing)
	case err != nil:
		m.err = err
		m.notice = NoticeFailure
		return m.fire(EventLookupFailed)
	}

	m.household = h
	if !h.IsLinkActive {
		m.linkExpired = true
		if h.Status == entity.StatusConfirmed {
			m.attendees = h.ConfirmedAttendees
			m.notice = NoticeAlreadyConfirmed
			return m.fire(EventLookupConfirmed)
		}
		m.notice = NoticeLinkAlreadyUsed
		return m.fire(EventLookupRejected)
	}

	m.attendees = h.TotalSlots
	m.notice = NoticeNone
	return m.fire(EventLookupActive)
}

// SetAttendees clamps n into [1, totalSlots] and returns the stored value.
func (m *Machine) SetAttendees(n int) (int, error) {
	if m.state != StateFound {
		return m.attendees, fmt.Errorf("%w: set attendees in state %s", ErrInvalidTransition, m.state)
	}
	m.attendees = clamp(n, 1, m.household.TotalSlots)
	return m.attendees, nil
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// Confirm submits the current attendee count.
func (m *Machine) Confirm(ctx context.Context) error {
	if err := m.fire(EventSubmit); err != nil {
		return err
	}
	if err := m.store.Confirm(ctx, m.code, m.attendees); err != nil {
		return m.fail(err)
	}
	m.household.Status = entity.StatusConfirmed
	m.household.ConfirmedAttendees = m.attendees
	m.household.IsLinkActive = false
	return m.fire(EventSubmitConfirmed)
}

// Reject records that the household will not attend.
func (m *Machine) Reject(ctx context.Context) error {
	if err := m.fire(EventSubmit); err != nil {
		return err
	}
	if err := m.store.Reject(ctx, m.code); err != nil {
		return m.fail(err)
	}
	m.household.Status = entity.StatusRejected
	m.household.ConfirmedAttendees = 0
	m.household.IsLinkActive = false
	m.attendees = 0
	return m.fire(EventSubmitRejected)
}

func (m *Machine) fail(err error) error {
	m.err = err
	switch {
	case errors.Is(err, invitation.ErrAlreadyConfirmed):
		m.notice = NoticeAlreadyConfirmed
	case errors.Is(err, invitation.ErrLinkAlreadyUsed):
		m.notice = NoticeLinkAlreadyUsed
	case errors.Is(err, invitation.ErrValidation):
		m.notice = NoticeInvalidAttendees
	case errors.Is(err, invitation.ErrNotFound):
		m.notice = NoticeNotFound
	default:
		m.notice = NoticeFailure
	}
	return m.fire(EventSubmitFailed)
}

// Retry leaves the error state by reading the household again, so a link
// consumed meanwhile lands in its terminal state instead of found.
func (m *Machine) Retry(ctx context.Context) error {
	if err := m.fire(EventRetry); err != nil {
		return err
	}
	m.err = nil
	m.notice = NoticeNone
	m.linkExpired = false
	return m.Load(ctx)
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) Code() string {
	return m.code
}

func (m *Machine) Household() *entity.Household {
	return m.household.Copy()
}

func (m *Machine) Attendees() int {
	return m.attendees
}

// LinkExpired is true when the lookup found a link consumed by an earlier response.
func (m *Machine) LinkExpired() bool {
	return m.linkExpired
}

func (m *Machine) Notice() Notice {
	return m.notice
}

func (m *Machine) Err() error {
	return m.err
}
