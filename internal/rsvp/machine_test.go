package rsvp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"wedsync/entity"
	"wedsync/internal/database"
	"wedsync/internal/invitation"
)

type fakeStore struct {
	household  *entity.Household
	findErr    error
	confirmErr error
	rejectErr  error
	confirmed  int
	calls      int
}

func (f *fakeStore) FindByCode(_ context.Context, code string) (*entity.Household, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.household == nil || f.household.Code != code {
		return nil, invitation.ErrNotFound
	}
	return f.household.Copy(), nil
}

func (f *fakeStore) Confirm(_ context.Context, _ string, attendees int) error {
	f.calls++
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmed = attendees
	f.household.Status = entity.StatusConfirmed
	f.household.ConfirmedAttendees = attendees
	f.household.IsLinkActive = false
	return nil
}

func (f *fakeStore) Reject(_ context.Context, _ string) error {
	f.calls++
	if f.rejectErr != nil {
		return f.rejectErr
	}
	f.household.Status = entity.StatusRejected
	f.household.IsLinkActive = false
	return nil
}

func pending() *entity.Household {
	return &entity.Household{
		Code:         "ABC123",
		Name:         "Familia Garcia",
		TotalSlots:   4,
		Status:       entity.StatusPending,
		IsLinkActive: true,
	}
}

func TestNewWithoutCode(t *testing.T) {
	store := &fakeStore{findErr: errors.New("must not be called")}
	m := New(store, "  ")
	if m.State() != StateNotFound || m.Notice() != NoticeNoCode {
		t.Fatalf("state = %s notice = %s", m.State(), m.Notice())
	}
	if err := m.Load(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Load without code: %v", err)
	}
}

func TestLoad(t *testing.T) {
	confirmed := pending()
	confirmed.Status = entity.StatusConfirmed
	confirmed.ConfirmedAttendees = 2
	confirmed.IsLinkActive = false

	rejected := pending()
	rejected.Status = entity.StatusRejected
	rejected.IsLinkActive = false

	tests := []struct {
		name        string
		store       *fakeStore
		code        string
		want        State
		notice      Notice
		attendees   int
		linkExpired bool
	}{
		{"active", &fakeStore{household: pending()}, "abc123", StateFound, NoticeNone, 4, false},
		{"missing", &fakeStore{household: pending()}, "NOPE", StateNotFound, NoticeNotFound, 0, false},
		{"already confirmed", &fakeStore{household: confirmed}, "ABC123", StateSuccess, NoticeAlreadyConfirmed, 2, true},
		{"already rejected", &fakeStore{household: rejected}, "ABC123", StateRejected, NoticeLinkAlreadyUsed, 0, true},
		{"store down", &fakeStore{findErr: errors.New("timeout")}, "ABC123", StateError, NoticeFailure, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.store, tt.code)
			if err := m.Load(context.Background()); err != nil {
				t.Fatalf("Load: %v", err)
			}
			if m.State() != tt.want {
				t.Errorf("state = %s, want %s", m.State(), tt.want)
			}
			if m.Notice() != tt.notice {
				t.Errorf("notice = %q, want %q", m.Notice(), tt.notice)
			}
			if m.Attendees() != tt.attendees {
				t.Errorf("attendees = %d, want %d", m.Attendees(), tt.attendees)
			}
			if m.LinkExpired() != tt.linkExpired {
				t.Errorf("link expired = %v", m.LinkExpired())
			}
		})
	}
}

func TestSetAttendeesClamps(t *testing.T) {
	m := New(&fakeStore{household: pending()}, "ABC123")
	if _, err := m.SetAttendees(2); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetAttendees before load: %v", err)
	}
	_ = m.Load(context.Background())
	for in, want := range map[int]int{-3: 1, 0: 1, 1: 1, 3: 3, 4: 4, 9: 4} {
		got, err := m.SetAttendees(in)
		if err != nil || got != want {
			t.Errorf("SetAttendees(%d) = %d, %v; want %d", in, got, err, want)
		}
	}
}

func TestConfirmSuccess(t *testing.T) {
	store := &fakeStore{household: pending()}
	m := New(store, "ABC123")
	_ = m.Load(context.Background())
	_, _ = m.SetAttendees(3)
	if err := m.Confirm(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateSuccess || !m.State().Terminal() {
		t.Errorf("state = %s", m.State())
	}
	if store.confirmed != 3 {
		t.Errorf("stored attendees = %d", store.confirmed)
	}
	if err := m.Confirm(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("confirm from success: %v", err)
	}
	if err := m.Reject(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("reject from success: %v", err)
	}
	if store.calls != 1 {
		t.Errorf("store calls = %d, want 1", store.calls)
	}
}

func TestRejectSuccess(t *testing.T) {
	m := New(&fakeStore{household: pending()}, "ABC123")
	_ = m.Load(context.Background())
	if err := m.Reject(context.Background()); err != nil {
		t.Fatal(err)
	}
	v := m.View()
	if v.State != StateRejected || v.Household.Status != entity.StatusRejected || v.Attendees != 0 {
		t.Errorf("view = %+v", v)
	}
}

func TestSubmitFailureNotices(t *testing.T) {
	tests := []struct {
		err    error
		notice Notice
	}{
		{invitation.ErrLinkAlreadyUsed, NoticeLinkAlreadyUsed},
		{invitation.ErrAlreadyConfirmed, NoticeAlreadyConfirmed},
		{invitation.ErrValidation, NoticeInvalidAttendees},
		{errors.New("network"), NoticeFailure},
	}
	for _, tt := range tests {
		t.Run(string(tt.notice), func(t *testing.T) {
			store := &fakeStore{household: pending(), confirmErr: &invitation.Error{Op: "confirm", Code: "ABC123", Err: tt.err}}
			m := New(store, "ABC123")
			_ = m.Load(context.Background())
			if err := m.Confirm(context.Background()); err != nil {
				t.Fatalf("Confirm: %v", err)
			}
			if m.State() != StateError {
				t.Fatalf("state = %s, want error", m.State())
			}
			if m.Notice() != tt.notice || !errors.Is(m.Err(), tt.err) {
				t.Errorf("notice = %q err = %v", m.Notice(), m.Err())
			}
			if !m.View().CanRetry {
				t.Error("error view must offer retry")
			}
		})
	}
}

func TestRetryRevalidates(t *testing.T) {
	store := &fakeStore{household: pending(), confirmErr: errors.New("network")}
	m := New(store, "ABC123")
	_ = m.Load(context.Background())
	_ = m.Confirm(context.Background())
	if m.State() != StateError {
		t.Fatalf("state = %s", m.State())
	}

	// another session confirmed in the meantime
	store.household.Status = entity.StatusConfirmed
	store.household.ConfirmedAttendees = 1
	store.household.IsLinkActive = false

	if err := m.Retry(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateSuccess || !m.LinkExpired() || m.Err() != nil {
		t.Errorf("after retry: state=%s expired=%v err=%v", m.State(), m.LinkExpired(), m.Err())
	}
}

func TestRetryBackToFound(t *testing.T) {
	store := &fakeStore{household: pending(), rejectErr: errors.New("network")}
	m := New(store, "ABC123")
	_ = m.Load(context.Background())
	_ = m.Reject(context.Background())
	store.rejectErr = nil
	if err := m.Retry(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateFound || m.Notice() != NoticeNone {
		t.Fatalf("state = %s notice = %s", m.State(), m.Notice())
	}
	if err := m.Retry(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("retry from found: %v", err)
	}
}

func TestTransitionTableIsClosed(t *testing.T) {
	states := []State{StateLoading, StateFound, StateNotFound, StateSubmitting, StateSuccess, StateRejected, StateError}
	for _, s := range states {
		for e := EventLookupMissing; e <= EventRetry; e++ {
			to, ok := next(s, e)
			if s.Terminal() && ok {
				t.Errorf("terminal state %s accepts %s", s, e)
			}
			if ok && to.String() == "" {
				t.Errorf("%s on %s leads to an unnamed state", s, e)
			}
		}
	}
	if _, ok := next(StateNotFound, EventRetry); ok {
		t.Error("not-found must not be retryable")
	}
}

func TestWithInvitationClient(t *testing.T) {
	repo := database.NewMemory()
	client := invitation.New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := client.Seed(context.Background(), []*entity.Household{{Code: "ABC123", Name: "Garcia", TotalSlots: 4}})
	if err != nil {
		t.Fatal(err)
	}

	first := New(client, "abc123")
	second := New(client, "ABC123")
	_ = first.Load(context.Background())
	_ = second.Load(context.Background())
	_, _ = first.SetAttendees(3)
	_, _ = second.SetAttendees(2)

	_ = first.Confirm(context.Background())
	_ = second.Confirm(context.Background())

	if first.State() != StateSuccess {
		t.Errorf("first = %s", first.State())
	}
	if second.State() != StateError || second.Notice() != NoticeLinkAlreadyUsed || !second.View().Informational {
		t.Errorf("second = %s %s", second.State(), second.Notice())
	}
	h, _ := client.FindByCode(context.Background(), "ABC123")
	if h.ConfirmedAttendees != 3 {
		t.Errorf("stored attendees = %d, want 3", h.ConfirmedAttendees)
	}
}
