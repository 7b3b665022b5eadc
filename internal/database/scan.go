package database

import (
	"wedsync/entity"
)

const householdColumns = `id, code, name, total_slots, confirmed_attendees, status,
	is_link_active, invitation_link, confirmed_at, responded_at, created_at`

// rowScanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanHousehold(row rowScanner) (*entity.Household, error) {
	var h entity.Household
	var status string
	if err := row.Scan(
		&h.Id,
		&h.Code,
		&h.Name,
		&h.TotalSlots,
		&h.ConfirmedAttendees,
		&status,
		&h.IsLinkActive,
		&h.InvitationLink,
		&h.ConfirmedAt,
		&h.RespondedAt,
		&h.CreatedAt,
	); err != nil {
		return nil, err
	}
	h.Status = entity.HouseholdStatus(status)
	return &h, nil
}

func scanUser(row rowScanner) (*entity.User, error) {
	var u entity.User
	var role string
	if err := row.Scan(&u.Username, &u.Name, &u.Token, &role); err != nil {
		return nil, err
	}
	u.Role = entity.UserRole(role)
	return &u, nil
}
