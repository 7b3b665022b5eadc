package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"wedsync/entity"
)

// Memory keeps households in process memory; used for local runs and tests.
type Memory struct {
	mu         sync.Mutex
	households map[string]*entity.Household
	users      map[string]*entity.User
}

func NewMemory() *Memory {
	return &Memory{
		households: make(map[string]*entity.Household),
		users:      make(map[string]*entity.User),
	}
}

func (m *Memory) Close() {}

func (m *Memory) AddUser(user *entity.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	m.users[u.Token] = &u
}

func (m *Memory) GetUser(_ context.Context, token string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[token]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *Memory) FindByCode(_ context.Context, code string) (*entity.Household, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.households[code].Copy(), nil
}

func (m *Memory) MarkConfirmed(_ context.Context, code string, attendees int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.households[code]
	if !ok || !h.IsLinkActive || !h.AcceptsAttendees(attendees) {
		return false, nil
	}
	h.Status = entity.StatusConfirmed
	h.ConfirmedAttendees = attendees
	h.IsLinkActive = false
	h.ConfirmedAt = &at
	h.RespondedAt = &at
	return true, nil
}

func (m *Memory) MarkRejected(_ context.Context, code string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.households[code]
	if !ok || !h.IsLinkActive {
		return false, nil
	}
	h.Status = entity.StatusRejected
	h.ConfirmedAttendees = 0
	h.IsLinkActive = false
	h.RespondedAt = &at
	return true, nil
}

func (m *Memory) InsertHousehold(_ context.Context, h *entity.Household) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.households[h.Code]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, h.Code)
	}
	m.households[h.Code] = h.Copy()
	return nil
}

func (m *Memory) snapshot() []*entity.Household {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]*entity.Household, 0, len(m.households))
	for _, h := range m.households {
		list = append(list, h.Copy())
	}
	return list
}

func (m *Memory) Stats(_ context.Context) (*entity.Stats, error) {
	stats := &entity.Stats{}
	for _, h := range m.snapshot() {
		stats.Add(h)
	}
	return stats, nil
}

func (m *Memory) AvailableSlots(_ context.Context) ([]*entity.AvailableSlot, error) {
	list := m.snapshot()
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	slots := make([]*entity.AvailableSlot, 0, len(list))
	for _, h := range list {
		if h.Status == entity.StatusRejected {
			continue
		}
		slots = append(slots, entity.NewAvailableSlot(h))
	}
	return slots, nil
}

func (m *Memory) History(_ context.Context) ([]*entity.HistoryEntry, error) {
	var responded []*entity.Household
	for _, h := range m.snapshot() {
		if h.RespondedAt != nil {
			responded = append(responded, h)
		}
	}
	sort.Slice(responded, func(i, j int) bool {
		return responded[i].RespondedAt.After(*responded[j].RespondedAt)
	})
	history := make([]*entity.HistoryEntry, 0, len(responded))
	for _, h := range responded {
		history = append(history, entity.NewHistoryEntry(h))
	}
	return history, nil
}
