// Package guestapi is the HTTP client for the guest endpoints of the server.
package guestapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
	"wedsync/entity"
	"wedsync/internal/rsvp"
	"wedsync/lib/sl"
)

// StatusError is a non 2xx answer; View is set when the server sent the RSVP state.
type StatusError struct {
	Status  int
	Message string
	View    *rsvp.View
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server %d: %s", e.Status, e.Message)
}

type Client struct {
	hc      *http.Client
	baseURL string
	log     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		baseURL: baseURL,
		log:     logger.With(sl.Module("guestapi")),
	}
}

type envelope struct {
	Data          json.RawMessage `json:"data"`
	Success       bool            `json:"success"`
	StatusMessage string          `json:"status_message"`
}

type uploadError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (c *Client) do(ctx context.Context, method, path string, contentType string, body io.Reader, header http.Header) (int, []byte, error) {
	log := c.log.With(
		slog.String("method", method),
		slog.String("path", path),
	)

	status := "ERROR"
	t1 := time.Now()
	defer func() {
		log.Debug("request completed",
			slog.String("duration", fmt.Sprintf("%.3fms", float64(time.Since(t1))/float64(time.Millisecond))),
			slog.String("status", status))
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		log.Error("request failed", sl.Err(err))
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	status = resp.Status
	return resp.StatusCode, data, nil
}

// view decodes an enveloped RSVP view; the view is returned with the error on
// 4xx/5xx so the caller can render the notice.
func decodeView(status int, data []byte) (*rsvp.View, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	var v *rsvp.View
	if len(env.Data) > 0 && string(env.Data) != "null" {
		v = &rsvp.View{}
		if err := json.Unmarshal(env.Data, v); err != nil {
			return nil, fmt.Errorf("decode view: %w", err)
		}
	}
	if status >= 300 || !env.Success {
		return v, &StatusError{Status: status, Message: env.StatusMessage, View: v}
	}
	if v == nil {
		return nil, errors.New("empty response")
	}
	return v, nil
}

func (c *Client) Lookup(ctx context.Context, code string) (*rsvp.View, error) {
	q := url.Values{}
	q.Set("code", code)
	status, data, err := c.do(ctx, http.MethodGet, "/v1/invitation?"+q.Encode(), "", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeView(status, data)
}

func (c *Client) submit(ctx context.Context, path string, payload interface{}) (*rsvp.View, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	status, data, err := c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(body), nil)
	if err != nil {
		return nil, err
	}
	return decodeView(status, data)
}

// Confirm sends a confirmation; zero attendees means the whole household.
func (c *Client) Confirm(ctx context.Context, code string, attendees int) (*rsvp.View, error) {
	return c.submit(ctx, "/v1/invitation/confirm", &entity.ConfirmRequest{Code: code, Attendees: attendees})
}

func (c *Client) Reject(ctx context.Context, code string) (*rsvp.View, error) {
	return c.submit(ctx, "/v1/invitation/reject", &entity.RejectRequest{Code: code})
}

// Upload sends the files as one multipart batch.
func (c *Client) Upload(ctx context.Context, password string, paths []string) (*entity.UploadBatchResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, path := range paths {
		if err := addFile(mw, path); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	header := http.Header{}
	if password != "" {
		header.Set("X-Upload-Password", password)
	}
	status, data, err := c.do(ctx, http.MethodPost, "/api/upload-mega", mw.FormDataContentType(), &buf, header)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		var ue uploadError
		_ = json.Unmarshal(data, &ue)
		msg := ue.Error
		if ue.Details != "" {
			msg += ": " + ue.Details
		}
		if msg == "" {
			msg = http.StatusText(status)
		}
		return nil, &StatusError{Status: status, Message: msg}
	}
	var result entity.UploadBatchResult
	if err = json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode upload result: %w", err)
	}
	return &result, nil
}

func addFile(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
