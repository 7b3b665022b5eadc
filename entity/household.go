// Package entity defines domain types shared across the application.
package entity

import (
	"net/http"
	"strings"
	"time"
	"wedsync/lib/validate"
)

// HouseholdStatus is the guest response recorded for a household.
type HouseholdStatus string

const (
	StatusPending   HouseholdStatus = "pending"
	StatusConfirmed HouseholdStatus = "confirmed"
	StatusRejected  HouseholdStatus = "rejected"
)

func (s HouseholdStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected:
		return true
	}
	return false
}

// Household is the invitation unit: one family or group sharing an attendance code.
// Once a terminal response is recorded the link is deactivated and the record
// never changes again.
type Household struct {
	Id                 string          `json:"id" bson:"id" yaml:"id"`
	Code               string          `json:"code" bson:"code" yaml:"code" validate:"required"`
	Name               string          `json:"name" bson:"name" yaml:"name" validate:"required"`
	TotalSlots         int             `json:"total_slots" bson:"total_slots" yaml:"total_slots" validate:"min=1"`
	ConfirmedAttendees int             `json:"confirmed_attendees" bson:"confirmed_attendees" yaml:"-"`
	Status             HouseholdStatus `json:"status" bson:"status" yaml:"-"`
	IsLinkActive       bool            `json:"is_link_active" bson:"is_link_active" yaml:"-"`
	InvitationLink     string          `json:"invitation_link,omitempty" bson:"invitation_link,omitempty" yaml:"invitation_link"`
	ConfirmedAt        *time.Time      `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty" yaml:"-"`
	RespondedAt        *time.Time      `json:"responded_at,omitempty" bson:"responded_at,omitempty" yaml:"-"`
	CreatedAt          time.Time       `json:"created_at" bson:"created_at" yaml:"-"`
}

// NormalizeCode returns the canonical upper-case form used for lookups.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (h *Household) IsPending() bool {
	return h.Status == StatusPending
}

// AcceptsAttendees reports whether n fits the household headcount.
func (h *Household) AcceptsAttendees(n int) bool {
	return n >= 1 && n <= h.TotalSlots
}

// Copy returns a deep copy so callers cannot mutate stored records.
func (h *Household) Copy() *Household {
	if h == nil {
		return nil
	}
	c := *h
	if h.ConfirmedAt != nil {
		t := *h.ConfirmedAt
		c.ConfirmedAt = &t
	}
	if h.RespondedAt != nil {
		t := *h.RespondedAt
		c.RespondedAt = &t
	}
	return &c
}

// Stats aggregates responses over all households.
type Stats struct {
	TotalFamilies      int `json:"total_families"`
	TotalSlots         int `json:"total_slots"`
	ConfirmedFamilies  int `json:"confirmed_families"`
	ConfirmedAttendees int `json:"confirmed_attendees"`
	RejectedFamilies   int `json:"rejected_families"`
	PendingFamilies    int `json:"pending_families"`
}

// Add accounts one household in the aggregate.
func (s *Stats) Add(h *Household) {
	s.TotalFamilies++
	s.TotalSlots += h.TotalSlots
	s.ConfirmedAttendees += h.ConfirmedAttendees
	switch h.Status {
	case StatusConfirmed:
		s.ConfirmedFamilies++
	case StatusRejected:
		s.RejectedFamilies++
	default:
		s.PendingFamilies++
	}
}

// AvailableSlot reports the remaining headcount of a household that has not declined.
type AvailableSlot struct {
	Id             string    `json:"id"`
	FamilyName     string    `json:"family_name"`
	FamilyCode     string    `json:"family_code"`
	TotalSlots     int       `json:"total_slots"`
	ConfirmedSlots int       `json:"confirmed_slots"`
	AvailableSlots int       `json:"available_slots"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewAvailableSlot(h *Household) *AvailableSlot {
	return &AvailableSlot{
		Id:             h.Id,
		FamilyName:     h.Name,
		FamilyCode:     h.Code,
		TotalSlots:     h.TotalSlots,
		ConfirmedSlots: h.ConfirmedAttendees,
		AvailableSlots: h.TotalSlots - h.ConfirmedAttendees,
		CreatedAt:      h.CreatedAt,
	}
}

// HistoryEntry is one recorded response.
type HistoryEntry struct {
	Id             string          `json:"id"`
	FamilyName     string          `json:"family_name"`
	FamilyCode     string          `json:"family_code"`
	TotalSlots     int             `json:"total_slots"`
	ConfirmedSlots int             `json:"confirmed_slots"`
	Status         HouseholdStatus `json:"status"`
	RespondedAt    time.Time       `json:"responded_at"`
}

func NewHistoryEntry(h *Household) *HistoryEntry {
	e := &HistoryEntry{
		Id:             h.Id,
		FamilyName:     h.Name,
		FamilyCode:     h.Code,
		TotalSlots:     h.TotalSlots,
		ConfirmedSlots: h.ConfirmedAttendees,
		Status:         h.Status,
	}
	if h.RespondedAt != nil {
		e.RespondedAt = *h.RespondedAt
	}
	return e
}

// ConfirmRequest is the guest's attendance confirmation.
// Attendees may be omitted, in which case the full household headcount is used.
type ConfirmRequest struct {
	Code      string `json:"code" validate:"required,max=64"`
	Attendees int    `json:"attendees" validate:"omitempty,min=1"`
}

func (c *ConfirmRequest) Bind(_ *http.Request) error {
	return validate.Struct(c)
}

type RejectRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

func (r *RejectRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}
