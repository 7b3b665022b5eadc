package invitation

import (
	"context"
	"log/slog"
	"net/http"
	"wedsync/entity"
	"wedsync/internal/rsvp"
	"wedsync/lib/api/response"
	"wedsync/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	Lookup(ctx context.Context, code string) (*rsvp.View, error)
	Confirm(ctx context.Context, code string, attendees int) (*rsvp.View, error)
	Reject(ctx context.Context, code string) (*rsvp.View, error)
}

// codeParam reads the invitation code from ?code= or the short ?c= form.
func codeParam(r *http.Request) string {
	q := r.URL.Query()
	if code := q.Get("code"); code != "" {
		return code
	}
	return q.Get("c")
}

func Lookup(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := codeParam(r)
		log := logger.With(
			sl.Module("http.handlers.invitation"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Code(code),
		)

		if handler == nil {
			log.Error("invitation service not available")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("Invitation service not available"))
			return
		}

		view, err := handler.Lookup(r.Context(), code)
		if err != nil {
			log.Error("lookup", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Lookup failed"))
			return
		}
		if view.State == rsvp.StateError {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Fail("Invitation could not be loaded", view))
			return
		}
		log.With(slog.String("state", view.State.String())).Debug("invitation lookup")
		render.JSON(w, r, response.Ok(view))
	}
}

func Confirm(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.With(
			sl.Module("http.handlers.invitation"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			log.Error("invitation service not available")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("Invitation service not available"))
			return
		}

		var req entity.ConfirmRequest
		if err := render.Bind(r, &req); err != nil {
			log.Warn("invalid confirm request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		log = log.With(sl.Code(req.Code), slog.Int("attendees", req.Attendees))

		view, err := handler.Confirm(r.Context(), req.Code, req.Attendees)
		if err != nil {
			log.Error("confirm", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Confirmation failed"))
			return
		}
		log.With(slog.String("state", view.State.String())).Info("confirm request")
		renderSubmit(w, r, view)
	}
}

func Reject(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.With(
			sl.Module("http.handlers.invitation"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			log.Error("invitation service not available")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("Invitation service not available"))
			return
		}

		var req entity.RejectRequest
		if err := render.Bind(r, &req); err != nil {
			log.Warn("invalid reject request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		log = log.With(sl.Code(req.Code))

		view, err := handler.Reject(r.Context(), req.Code)
		if err != nil {
			log.Error("reject", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Rejection failed"))
			return
		}
		log.With(slog.String("state", view.State.String())).Info("reject request")
		renderSubmit(w, r, view)
	}
}

// renderSubmit maps the state after a submit to a status code. The view is
// always returned so the page can render the matching message.
func renderSubmit(w http.ResponseWriter, r *http.Request, view *rsvp.View) {
	switch {
	case view.State == rsvp.StateNotFound:
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Fail("Invitation not found", view))
	case view.LinkExpired, view.Notice == rsvp.NoticeLinkAlreadyUsed, view.Notice == rsvp.NoticeAlreadyConfirmed:
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Fail("Invitation link already used", view))
	case view.Notice == rsvp.NoticeInvalidAttendees:
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Fail("Attendee count out of range", view))
	case view.State == rsvp.StateError:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Fail("Request failed, please retry", view))
	default:
		render.JSON(w, r, response.Ok(view))
	}
}
