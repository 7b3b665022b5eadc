package admin

import (
	"context"
	"log/slog"
	"net/http"
	"wedsync/entity"
	"wedsync/lib/api/cont"
	"wedsync/lib/api/response"
	"wedsync/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	Stats(ctx context.Context) (*entity.Stats, error)
	AvailableSlots(ctx context.Context) ([]*entity.AvailableSlot, error)
	History(ctx context.Context) ([]*entity.HistoryEntry, error)
}

func report[T any](logger *slog.Logger, name string, query func(ctx context.Context) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.With(
			sl.Module("http.handlers.admin"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("report", name),
			slog.String("user", cont.Username(r.Context())),
		)

		data, err := query(r.Context())
		if err != nil {
			log.Error("report query", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Report not available"))
			return
		}
		log.Debug("report served")
		render.JSON(w, r, response.Ok(data))
	}
}

func Stats(logger *slog.Logger, handler Core) http.HandlerFunc {
	return report(logger, "stats", handler.Stats)
}

func Slots(logger *slog.Logger, handler Core) http.HandlerFunc {
	return report(logger, "slots", handler.AvailableSlots)
}

func History(logger *slog.Logger, handler Core) http.HandlerFunc {
	return report(logger, "history", handler.History)
}
