package files

import (
	"log/slog"
	"net/http"
	"wedsync/lib/api/response"
	"wedsync/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// Locator resolves an object key to a local path.
type Locator interface {
	GetPath(key string) (string, error)
}

// Serve streams photos stored by the filesystem accounts, keyed by account name.
func Serve(logger *slog.Logger, accounts map[string]Locator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "account")
		key := chi.URLParam(r, "key")
		log := logger.With(
			sl.Module("http.handlers.files"),
			sl.Account(name),
			slog.String("key", key),
		)

		account, ok := accounts[name]
		if !ok {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Requested resource not found"))
			return
		}
		path, err := account.GetPath(key)
		if err != nil {
			log.Debug("object lookup", sl.Err(err))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Requested resource not found"))
			return
		}
		http.ServeFile(w, r, path)
	}
}
