package authenticate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"wedsync/entity"
	"wedsync/lib/api/cont"
)

type tokens map[string]*entity.User

func (t tokens) AuthenticateByToken(_ context.Context, token string) (*entity.User, error) {
	if u, ok := t[token]; ok {
		return u, nil
	}
	return nil, errors.New("unknown token")
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		token   string
		wantErr error
	}{
		{"", "", errNoHeader},
		{"Basic abc", "", errNoToken},
		{"Bearer", "", errNoToken},
		{"Bearer   ", "", errNoToken},
		{"bearer abc", "abc", nil},
		{"Bearer  abc ", "abc", nil},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		token, err := bearerToken(r)
		if token != tt.token || !errors.Is(err, tt.wantErr) {
			t.Errorf("%q: got %q %v, want %q %v", tt.header, token, err, tt.token, tt.wantErr)
		}
	}
}

func TestMiddleware(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth := tokens{
		"viewer": {Username: "ana", Token: "viewer", Role: entity.RoleViewer},
		"plain":  {Username: "bob", Token: "plain"},
	}
	var seen string
	h := New(log, auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = cont.Username(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
		user   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"unknown", "Bearer other", http.StatusUnauthorized, ""},
		{"no role", "Bearer plain", http.StatusForbidden, ""},
		{"viewer", "Bearer viewer", http.StatusNoContent, "ana"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			r := httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != tt.status || seen != tt.user {
				t.Errorf("status = %d user = %q, want %d %q", w.Code, seen, tt.status, tt.user)
			}
		})
	}
}

func TestRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "10.0.0.1, 172.16.0.2")
	if got := remoteAddr(r); got != "10.0.0.1" {
		t.Errorf("remoteAddr = %q", got)
	}
}
