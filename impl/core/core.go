package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"wedsync/entity"
	"wedsync/internal/invitation"
	"wedsync/internal/rsvp"
	"wedsync/internal/upload"
	"wedsync/lib/sl"
)

var ErrUploadsDisabled = errors.New("photo uploads are not configured")

// Invitations is the household store client; implemented by invitation.Client.
type Invitations interface {
	rsvp.Store
	Stats(ctx context.Context) (*entity.Stats, error)
	AvailableSlots(ctx context.Context) ([]*entity.AvailableSlot, error)
	History(ctx context.Context) ([]*entity.HistoryEntry, error)
}

type AuthService interface {
	UserByToken(ctx context.Context, token string) (*entity.User, error)
}

type Uploader interface {
	Upload(ctx context.Context, files []upload.File) (*entity.UploadBatchResult, error)
}

type Gate interface {
	Check(password string) error
}

// Notifier is told about every recorded response.
type Notifier interface {
	NotifyResponse(h *entity.Household)
}

type Core struct {
	inv      Invitations
	uploader Uploader
	gate     Gate
	auth     AuthService
	notifier Notifier
	log      *slog.Logger
}

func New(inv Invitations, log *slog.Logger) *Core {
	if inv == nil {
		panic("invitation client is nil")
	}
	return &Core{
		inv: inv,
		log: log.With(sl.Module("core")),
	}
}

func (c *Core) SetUploader(uploader Uploader, gate Gate) {
	c.uploader = uploader
	c.gate = gate
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

func (c *Core) SetNotifier(notifier Notifier) {
	c.notifier = notifier
}

func (c *Core) AuthenticateByToken(ctx context.Context, token string) (*entity.User, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.UserByToken(ctx, token)
}

func (c *Core) load(ctx context.Context, code string) (*rsvp.Machine, error) {
	m := rsvp.New(c.inv, code)
	if m.State() == rsvp.StateLoading {
		if err := m.Load(ctx); err != nil {
			return nil, err
		}
	}
	if m.Err() != nil {
		c.log.With(sl.Code(m.Code())).Error("lookup failed", sl.Err(m.Err()))
	}
	return m, nil
}

// Lookup returns the page state for a code; an empty code is a valid request
// answered with the not-found state.
func (c *Core) Lookup(ctx context.Context, code string) (*rsvp.View, error) {
	m, err := c.load(ctx, code)
	if err != nil {
		return nil, err
	}
	return m.View(), nil
}

// Confirm loads the household and submits attendees, or the full household
// when attendees is zero. A consumed link is answered with its terminal state.
func (c *Core) Confirm(ctx context.Context, code string, attendees int) (*rsvp.View, error) {
	m, err := c.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if m.State() != rsvp.StateFound {
		return m.View(), nil
	}
	if attendees > 0 {
		if _, err = m.SetAttendees(attendees); err != nil {
			return nil, err
		}
	}
	if err = m.Confirm(ctx); err != nil {
		return nil, err
	}
	c.afterSubmit(ctx, m)
	return m.View(), nil
}

func (c *Core) Reject(ctx context.Context, code string) (*rsvp.View, error) {
	m, err := c.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if m.State() != rsvp.StateFound {
		return m.View(), nil
	}
	if err = m.Reject(ctx); err != nil {
		return nil, err
	}
	c.afterSubmit(ctx, m)
	return m.View(), nil
}

// afterSubmit logs the outcome and notifies on a recorded response. A submit
// refused because another response consumed the link meanwhile is reloaded,
// so the guest sees the recorded terminal state.
func (c *Core) afterSubmit(ctx context.Context, m *rsvp.Machine) {
	log := c.log.With(sl.Code(m.Code()), slog.String("state", m.State().String()))
	if m.State() == rsvp.StateError {
		if invitation.IsInformational(m.Err()) {
			log.Info("submit refused", sl.Err(m.Err()))
			if err := m.Retry(ctx); err != nil {
				log.Error("reload after refused submit", sl.Err(err))
			}
		} else {
			log.Error("submit failed", sl.Err(m.Err()))
		}
		return
	}
	if c.notifier != nil {
		c.notifier.NotifyResponse(m.Household())
	}
}

// UploadPhotos checks the upload gate and stores the batch.
func (c *Core) UploadPhotos(ctx context.Context, password string, files []upload.File) (*entity.UploadBatchResult, error) {
	if c.uploader == nil {
		return nil, ErrUploadsDisabled
	}
	if c.gate != nil {
		if err := c.gate.Check(password); err != nil {
			return nil, err
		}
	}
	return c.uploader.Upload(ctx, files)
}

func (c *Core) Stats(ctx context.Context) (*entity.Stats, error) {
	return c.inv.Stats(ctx)
}

func (c *Core) AvailableSlots(ctx context.Context) ([]*entity.AvailableSlot, error) {
	return c.inv.AvailableSlots(ctx)
}

func (c *Core) History(ctx context.Context) ([]*entity.HistoryEntry, error) {
	return c.inv.History(ctx)
}
