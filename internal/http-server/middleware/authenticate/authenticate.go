// Package authenticate guards the reporting routes with bearer tokens.
// Guest routes never pass through it.
package authenticate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"wedsync/entity"
	"wedsync/lib/api/cont"
	"wedsync/lib/api/response"
	"wedsync/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Authenticate interface {
	AuthenticateByToken(ctx context.Context, token string) (*entity.User, error)
}

var (
	errNoHeader = errors.New("authorization header not found")
	errNoToken  = errors.New("bearer token not found")
)

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoHeader
	}
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errNoToken
	}
	token := strings.TrimSpace(value)
	if token == "" {
		return "", errNoToken
	}
	return token, nil
}

func remoteAddr(r *http.Request) string {
	// behind a proxy the first forwarded address is the client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}

// New admits requests whose token resolves to a user allowed to read reports.
// The user is stored in the request context for the handlers.
func New(log *slog.Logger, auth Authenticate) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")
	log.With(mod).Info("authenticate middleware initialized")

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			id := middleware.GetReqID(r.Context())
			logger := log.With(
				mod,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", remoteAddr(r)),
				slog.String("request_id", id),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			t1 := time.Now()
			defer func() {
				logger.With(
					slog.Int("status", ww.Status()),
					slog.Int("size", ww.BytesWritten()),
					slog.Float64("duration", time.Since(t1).Seconds()),
				).Info("report request")
			}()

			token, err := bearerToken(r)
			if err != nil {
				logger = logger.With(sl.Err(err))
				deny(ww, r, http.StatusUnauthorized, "Unauthorized: "+err.Error())
				return
			}
			logger = logger.With(sl.Secret("token", token))

			if auth == nil {
				deny(ww, r, http.StatusUnauthorized, "Unauthorized: authentication not enabled")
				return
			}

			user, err := auth.AuthenticateByToken(r.Context(), token)
			if err != nil {
				logger = logger.With(sl.Err(err))
				deny(ww, r, http.StatusUnauthorized, "Unauthorized: invalid token")
				return
			}
			logger = logger.With(slog.String("user", user.Username))
			if !user.CanReadReports() {
				deny(ww, r, http.StatusForbidden, "Forbidden: no reporting role")
				return
			}

			ww.Header().Set("X-Request-ID", id)
			next.ServeHTTP(ww, r.WithContext(cont.PutUser(r.Context(), user)))
		}

		return http.HandlerFunc(fn)
	}
}

func deny(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, response.Error(message))
}
