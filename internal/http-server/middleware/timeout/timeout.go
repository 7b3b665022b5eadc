package timeout

import (
	"context"
	"errors"
	"net/http"
	"time"
	"wedsync/lib/api/response"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Timeout bounds the request context to the given number of seconds. When the
// deadline passes before the handler wrote anything the client gets 504.
func Timeout(seconds int) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), time.Duration(seconds)*time.Second)
			defer cancel()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(ctx)
			next.ServeHTTP(ww, r)

			if ww.Status() == 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				render.Status(r, http.StatusGatewayTimeout)
				render.JSON(ww, r, response.Error("Request timed out"))
			}
		}
		return http.HandlerFunc(fn)
	}
}
