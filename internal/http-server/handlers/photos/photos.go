package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"wedsync/entity"
	"wedsync/internal/upload"
	"wedsync/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

const (
	fieldFiles     = "files"
	fieldPassword  = "password"
	headerPassword = "X-Upload-Password"
	maxMemory      = 32 << 20
)

type Core interface {
	UploadPhotos(ctx context.Context, password string, files []upload.File) (*entity.UploadBatchResult, error)
}

// Limits bound a single request; zero disables a check.
type Limits struct {
	MaxFileSize int64
	MaxFiles    int
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func fail(w http.ResponseWriter, r *http.Request, status int, message, details string) {
	render.Status(r, status)
	render.JSON(w, r, errorBody{Error: message, Details: details})
}

// Upload accepts a multipart batch in the repeated "files" field and answers
// with {files, usedAccount}.
func Upload(logger *slog.Logger, handler Core, limits Limits) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.With(
			sl.Module("http.handlers.photos"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if handler == nil {
			log.Error("upload service not available")
			fail(w, r, http.StatusServiceUnavailable, "Upload service not available", "")
			return
		}

		if limits.MaxFileSize > 0 && limits.MaxFiles > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFileSize*int64(limits.MaxFiles)+maxMemory)
		}
		if err := r.ParseMultipartForm(maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				fail(w, r, http.StatusRequestEntityTooLarge, "Request too large", "")
				return
			}
			log.Warn("parse multipart form", sl.Err(err))
			fail(w, r, http.StatusBadRequest, "Invalid form data", err.Error())
			return
		}
		if r.MultipartForm != nil {
			defer func() {
				_ = r.MultipartForm.RemoveAll()
			}()
		}

		var headers []*multipart.FileHeader
		if r.MultipartForm != nil {
			headers = r.MultipartForm.File[fieldFiles]
		}
		if len(headers) == 0 {
			fail(w, r, http.StatusBadRequest, "No files", "")
			return
		}
		if limits.MaxFiles > 0 && len(headers) > limits.MaxFiles {
			fail(w, r, http.StatusBadRequest, fmt.Sprintf("Too many files, at most %d per upload", limits.MaxFiles), "")
			return
		}

		files := make([]upload.File, 0, len(headers))
		for _, fh := range headers {
			if limits.MaxFileSize > 0 && fh.Size > limits.MaxFileSize {
				fail(w, r, http.StatusBadRequest, fmt.Sprintf("File %s is too large", fh.Filename), "")
				return
			}
			files = append(files, upload.File{
				Name: fh.Filename,
				Size: fh.Size,
				Open: func() (io.ReadCloser, error) {
					return fh.Open()
				},
			})
		}

		password := r.Header.Get(headerPassword)
		if password == "" {
			password = r.FormValue(fieldPassword)
		}

		log = log.With(slog.Int("files", len(files)))
		result, err := handler.UploadPhotos(r.Context(), password, files)
		switch {
		case err == nil:
			log.With(slog.String("account", string(result.UsedAccount))).Info("photos uploaded")
			render.JSON(w, r, result)
		case errors.Is(err, upload.ErrNoFiles):
			fail(w, r, http.StatusBadRequest, "No files", "")
		case errors.Is(err, upload.ErrGateClosed):
			log.Warn("upload gate closed")
			fail(w, r, http.StatusForbidden, "Uploads are not open yet", "")
		default:
			log.Error("upload photos", sl.Err(err))
			fail(w, r, http.StatusInternalServerError, "Upload failed", err.Error())
		}
	}
}
