package rsvp

import "wedsync/entity"

// HouseholdView is the part of a household a guest may see.
type HouseholdView struct {
	Name               string                 `json:"name"`
	TotalSlots         int                    `json:"total_slots"`
	ConfirmedAttendees int                    `json:"confirmed_attendees"`
	Status             entity.HouseholdStatus `json:"status"`
}

// View is a snapshot of the machine for rendering.
type View struct {
	State         State          `json:"state"`
	Code          string         `json:"code,omitempty"`
	Household     *HouseholdView `json:"household,omitempty"`
	Attendees     int            `json:"attendees,omitempty"`
	LinkExpired   bool           `json:"link_expired"`
	Notice        Notice         `json:"notice,omitempty"`
	Informational bool           `json:"informational,omitempty"`
	CanRetry      bool           `json:"can_retry,omitempty"`
}

func (m *Machine) View() *View {
	v := &View{
		State:         m.state,
		Code:          m.code,
		Attendees:     m.attendees,
		LinkExpired:   m.linkExpired,
		Notice:        m.notice,
		Informational: m.notice.Informational(),
		CanRetry:      m.state == StateError,
	}
	if h := m.household; h != nil {
		v.Household = &HouseholdView{
			Name:               h.Name,
			TotalSlots:         h.TotalSlots,
			ConfirmedAttendees: h.ConfirmedAttendees,
			Status:             h.Status,
		}
	}
	return v
}
