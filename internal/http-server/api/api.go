package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
	"wedsync/internal/config"
	"wedsync/internal/http-server/handlers/admin"
	"wedsync/internal/http-server/handlers/errors"
	"wedsync/internal/http-server/handlers/files"
	"wedsync/internal/http-server/handlers/invitation"
	"wedsync/internal/http-server/handlers/photos"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/cors"

	"wedsync/internal/http-server/middleware/authenticate"
	"wedsync/internal/http-server/middleware/timeout"
	"wedsync/lib/sl"
)

const uploadTimeout = 300

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	invitation.Core
	photos.Core
	admin.Core
}

// NewRouter builds the routes; locators serve photos stored on local disk
// and may be empty.
func NewRouter(conf *config.Config, log *slog.Logger, handler Handler, locators map[string]files.Locator) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	limits := photos.Limits{
		MaxFileSize: conf.Upload.MaxFileSize,
		MaxFiles:    conf.Upload.MaxFiles,
	}

	router.Group(func(guest chi.Router) {
		guest.Use(timeout.Timeout(5))
		guest.Route("/v1/invitation", func(inv chi.Router) {
			inv.Get("/", invitation.Lookup(log, handler))
			inv.Post("/confirm", invitation.Confirm(log, handler))
			inv.Post("/reject", invitation.Reject(log, handler))
		})
		guest.Get("/files/{account}/{key}", files.Serve(log, locators))
	})

	router.Group(func(up chi.Router) {
		up.Use(timeout.Timeout(uploadTimeout))
		up.Post("/api/upload-mega", photos.Upload(log, handler, limits))
		up.Post("/v1/photos", photos.Upload(log, handler, limits))
	})

	router.Route("/v1/admin", func(adm chi.Router) {
		adm.Use(timeout.Timeout(5))
		adm.Use(authenticate.New(log, handler))
		adm.Get("/stats", admin.Stats(log, handler))
		adm.Get("/slots", admin.Slots(log, handler))
		adm.Get("/history", admin.History(log, handler))
	})

	if len(conf.Listen.CorsOrigins) == 0 {
		return router
	}
	return cors.New(cors.Options{
		AllowedOrigins: conf.Listen.CorsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Upload-Password"},
	}).Handler(router)
}

func New(conf *config.Config, log *slog.Logger, handler Handler, locators map[string]files.Locator) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:           NewRouter(conf, log, handler, locators),
		ErrorLog:          httpLog,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       uploadTimeout * time.Second,
		WriteTimeout:      uploadTimeout * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
