package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"wedsync/entity"
	"wedsync/impl/auth"
	"wedsync/impl/core"
	"wedsync/internal/config"
	"wedsync/internal/database"
	"wedsync/internal/http-server/handlers/files"
	"wedsync/internal/invitation"
	"wedsync/internal/storage"
	"wedsync/internal/upload"
)

type envelope struct {
	Data          json.RawMessage `json:"data"`
	Success       bool            `json:"success"`
	StatusMessage string          `json:"status_message"`
}

type viewBody struct {
	State       string `json:"state"`
	Attendees   int    `json:"attendees"`
	LinkExpired bool   `json:"link_expired"`
	Notice      string `json:"notice"`
	Household   *struct {
		Name               string `json:"name"`
		TotalSlots         int    `json:"total_slots"`
		ConfirmedAttendees int    `json:"confirmed_attendees"`
		Status             string `json:"status"`
	} `json:"household"`
}

type fixture struct {
	server    *httptest.Server
	db        *database.Memory
	primary   *storage.FileSystemAccount
	secondary *storage.FileSystemAccount
}

func newFixture(t *testing.T, primaryCapacity int64, gate *upload.Gate) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db := database.NewMemory()
	db.AddUser(&entity.User{Username: "admin", Token: "admin-token", Role: entity.RoleAdmin})
	db.AddUser(&entity.User{Username: "guest", Token: "no-role-token"})

	client := invitation.New(db, log)
	_, err := client.Seed(context.Background(), []*entity.Household{
		{Code: "ABC123", Name: "Familia Garcia", TotalSlots: 4},
		{Code: "XYZ789", Name: "Familia Lopez", TotalSlots: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	conf := &config.Config{}
	conf.Upload.MaxFileSize = 1 << 20
	conf.Upload.MaxFiles = 5

	// links carry the server URL, so the router is attached after start
	var router http.Handler
	f := &fixture{db: db}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))
	baseURL := f.server.URL

	f.primary = storage.NewFileSystemAccount("primary", t.TempDir(), baseURL, primaryCapacity)
	f.secondary = storage.NewFileSystemAccount("secondary", t.TempDir(), baseURL, 0)

	c := core.New(client, log)
	c.SetAuthService(auth.New(db))
	if gate == nil {
		gate = upload.NewGate(time.Time{}, "")
	}
	c.SetUploader(upload.NewOrchestrator(f.primary, f.secondary, log), gate)

	router = NewRouter(conf, log, c, map[string]files.Locator{
		"primary":   f.primary,
		"secondary": f.secondary,
	})
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func decodeView(t *testing.T, data []byte) (envelope, viewBody) {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode envelope %s: %v", data, err)
	}
	var v viewBody
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &v); err != nil {
			t.Fatalf("decode view %s: %v", env.Data, err)
		}
	}
	return env, v
}

func TestLookup(t *testing.T) {
	f := newFixture(t, 0, nil)

	tests := []struct {
		name   string
		path   string
		state  string
		notice string
	}{
		{"code param", "/v1/invitation?code=ABC123", "found", ""},
		{"short param lower case", "/v1/invitation?c=abc123", "found", ""},
		{"no code", "/v1/invitation", "not-found", "no-code"},
		{"unknown code", "/v1/invitation?c=NOPE", "not-found", "not-found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := f.do(t, http.MethodGet, tt.path, "", nil)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d body = %s", resp.StatusCode, data)
			}
			_, v := decodeView(t, data)
			if v.State != tt.state || v.Notice != tt.notice {
				t.Errorf("state = %q notice = %q", v.State, v.Notice)
			}
			if tt.state == "found" && (v.Attendees != 4 || v.Household.TotalSlots != 4) {
				t.Errorf("attendee default = %d", v.Attendees)
			}
		})
	}
}

func TestConfirmOnce(t *testing.T) {
	f := newFixture(t, 0, nil)

	resp, data := f.do(t, http.MethodPost, "/v1/invitation/confirm", `{"code":"ABC123","attendees":3}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first confirm: %d %s", resp.StatusCode, data)
	}
	_, v := decodeView(t, data)
	if v.State != "success" || v.Household.ConfirmedAttendees != 3 {
		t.Errorf("first confirm view = %+v", v)
	}

	resp, data = f.do(t, http.MethodPost, "/v1/invitation/confirm", `{"code":"ABC123","attendees":2}`, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second confirm: %d %s", resp.StatusCode, data)
	}
	env, v := decodeView(t, data)
	if env.Success || !v.LinkExpired || v.Notice != "already-confirmed" {
		t.Errorf("second confirm view = %+v", v)
	}

	h, _ := f.db.FindByCode(context.Background(), "ABC123")
	if h.ConfirmedAttendees != 3 {
		t.Errorf("stored attendees = %d, want 3", h.ConfirmedAttendees)
	}
}

func TestConfirmRequests(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		status    int
		attendees int
	}{
		{"default to household size", `{"code":"abc123"}`, http.StatusOK, 4},
		{"clamped to household size", `{"code":"ABC123","attendees":9}`, http.StatusOK, 4},
		{"negative", `{"code":"ABC123","attendees":-1}`, http.StatusBadRequest, 0},
		{"missing code", `{"attendees":2}`, http.StatusBadRequest, 0},
		{"unknown code", `{"code":"NOPE","attendees":1}`, http.StatusNotFound, 0},
		{"broken json", `{"code":`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0, nil)
			resp, data := f.do(t, http.MethodPost, "/v1/invitation/confirm", tt.body, nil)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.status, data)
			}
			if tt.status != http.StatusOK {
				return
			}
			h, _ := f.db.FindByCode(context.Background(), "ABC123")
			if h.ConfirmedAttendees != tt.attendees {
				t.Errorf("stored attendees = %d, want %d", h.ConfirmedAttendees, tt.attendees)
			}
		})
	}
}

func TestRejectThenConfirm(t *testing.T) {
	f := newFixture(t, 0, nil)
	resp, data := f.do(t, http.MethodPost, "/v1/invitation/reject", `{"code":"XYZ789"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reject: %d %s", resp.StatusCode, data)
	}
	_, v := decodeView(t, data)
	if v.State != "rejected" {
		t.Errorf("state = %s", v.State)
	}

	resp, data = f.do(t, http.MethodPost, "/v1/invitation/confirm", `{"code":"XYZ789","attendees":1}`, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("confirm after reject: %d %s", resp.StatusCode, data)
	}
	_, v = decodeView(t, data)
	if v.State != "rejected" || v.Notice != "link-already-used" {
		t.Errorf("view = %+v", v)
	}
}

func multipartBody(t *testing.T, files map[string]string, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write([]byte(content))
	}
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

type uploadBody struct {
	Files []struct {
		Name    string `json:"name"`
		Size    int64  `json:"size"`
		Link    string `json:"link"`
		Account string `json:"account"`
	} `json:"files"`
	UsedAccount string `json:"usedAccount"`
	Error       string `json:"error"`
	Details     string `json:"details"`
}

func (f *fixture) upload(t *testing.T, path string, body io.Reader, contentType string) (int, uploadBody) {
	t.Helper()
	resp, err := http.Post(f.server.URL+path, contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out uploadBody
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, out
}

func TestUploadPrimary(t *testing.T) {
	f := newFixture(t, 0, nil)
	body, ct := multipartBody(t, map[string]string{"a.jpg": "first", "b.jpg": "second"}, nil)
	status, out := f.upload(t, "/v1/photos", body, ct)
	if status != http.StatusOK {
		t.Fatalf("status = %d %+v", status, out)
	}
	if out.UsedAccount != "primary" || len(out.Files) != 2 {
		t.Fatalf("result = %+v", out)
	}

	resp, err := http.Get(out.Files[0].Link)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	content, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || (string(content) != "first" && string(content) != "second") {
		t.Errorf("download %s: %d %q", out.Files[0].Link, resp.StatusCode, content)
	}
}

func TestUploadFallsBackToSecondary(t *testing.T) {
	f := newFixture(t, 3, nil)
	body, ct := multipartBody(t, map[string]string{"a.jpg": "first", "b.jpg": "second"}, nil)
	status, out := f.upload(t, "/api/upload-mega", body, ct)
	if status != http.StatusOK {
		t.Fatalf("status = %d %+v", status, out)
	}
	if out.UsedAccount != "secondary" || len(out.Files) != 2 {
		t.Fatalf("result = %+v", out)
	}
	for _, file := range out.Files {
		if file.Account != "secondary" || !strings.Contains(file.Link, "/files/secondary/") {
			t.Errorf("file = %+v", file)
		}
	}
}

func TestUploadNoFiles(t *testing.T) {
	f := newFixture(t, 0, nil)
	body, ct := multipartBody(t, nil, map[string]string{"note": "x"})
	status, out := f.upload(t, "/api/upload-mega", body, ct)
	if status != http.StatusBadRequest || out.Error != "No files" {
		t.Errorf("status = %d body = %+v", status, out)
	}

	status, out = f.upload(t, "/api/upload-mega", strings.NewReader("{}"), "application/json")
	if status != http.StatusBadRequest || out.Error != "No files" {
		t.Errorf("non multipart: status = %d body = %+v", status, out)
	}
}

func TestUploadBothAccountsFull(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	primary := storage.NewFileSystemAccount("primary", t.TempDir(), "http://localhost", 1)
	secondary := storage.NewFileSystemAccount("secondary", t.TempDir(), "http://localhost", 1)
	c := core.New(invitation.New(database.NewMemory(), log), log)
	c.SetUploader(upload.NewOrchestrator(primary, secondary, log), nil)
	f := &fixture{server: httptest.NewServer(NewRouter(&config.Config{}, log, c, nil))}
	t.Cleanup(f.server.Close)

	body, ct := multipartBody(t, map[string]string{"a.jpg": "first"}, nil)
	status, out := f.upload(t, "/api/upload-mega", body, ct)
	if status != http.StatusInternalServerError || out.Error == "" || !strings.Contains(out.Details, "secondary") {
		t.Errorf("status = %d body = %+v", status, out)
	}
}

func TestUploadGate(t *testing.T) {
	gate := upload.NewGate(time.Now().Add(time.Hour), "")
	f := newFixture(t, 0, gate)
	body, ct := multipartBody(t, map[string]string{"a.jpg": "first"}, nil)
	status, out := f.upload(t, "/v1/photos", body, ct)
	if status != http.StatusForbidden || out.Error == "" {
		t.Errorf("status = %d body = %+v", status, out)
	}
}

func TestAdminRequiresToken(t *testing.T) {
	f := newFixture(t, 0, nil)
	_, _ = f.do(t, http.MethodPost, "/v1/invitation/confirm", `{"code":"ABC123","attendees":2}`, nil)

	tests := []struct {
		name   string
		header map[string]string
		status int
	}{
		{"no header", nil, http.StatusUnauthorized},
		{"wrong token", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"user without role", map[string]string{"Authorization": "Bearer no-role-token"}, http.StatusForbidden},
		{"admin", map[string]string{"Authorization": "Bearer admin-token"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := f.do(t, http.MethodGet, "/v1/admin/stats", "", tt.header)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.status, data)
			}
			if tt.status != http.StatusOK {
				return
			}
			var env envelope
			_ = json.Unmarshal(data, &env)
			var stats entity.Stats
			_ = json.Unmarshal(env.Data, &stats)
			if stats.TotalFamilies != 2 || stats.ConfirmedAttendees != 2 || stats.PendingFamilies != 1 {
				t.Errorf("stats = %+v", stats)
			}
		})
	}
}

func TestAdminReports(t *testing.T) {
	f := newFixture(t, 0, nil)
	_, _ = f.do(t, http.MethodPost, "/v1/invitation/reject", `{"code":"XYZ789"}`, nil)
	auth := map[string]string{"Authorization": "Bearer admin-token"}

	resp, data := f.do(t, http.MethodGet, "/v1/admin/slots", "", auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("slots: %d", resp.StatusCode)
	}
	var env envelope
	_ = json.Unmarshal(data, &env)
	var slots []entity.AvailableSlot
	_ = json.Unmarshal(env.Data, &slots)
	if len(slots) != 1 || slots[0].FamilyCode != "ABC123" || slots[0].AvailableSlots != 4 {
		t.Errorf("slots = %+v", slots)
	}

	resp, data = f.do(t, http.MethodGet, "/v1/admin/history", "", auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: %d", resp.StatusCode)
	}
	_ = json.Unmarshal(data, &env)
	var history []entity.HistoryEntry
	_ = json.Unmarshal(env.Data, &history)
	if len(history) != 1 || history[0].Status != entity.StatusRejected {
		t.Errorf("history = %+v", history)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, 0, nil)
	resp, _ := f.do(t, http.MethodGet, "/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/files/primary/not-a-key", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("file status = %d", resp.StatusCode)
	}
}

func TestCorsOrigins(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := core.New(invitation.New(database.NewMemory(), log), log)
	conf := &config.Config{}
	conf.Listen.CorsOrigins = []string{"https://boda.example"}
	router := NewRouter(conf, log, c, nil)

	tests := []struct {
		origin string
		want   string
	}{
		{"https://boda.example", "https://boda.example"},
		{"https://evil.example", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/v1/invitation/confirm", nil)
		req.Header.Set("Origin", tt.origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: allow = %q, want %q", tt.origin, got, tt.want)
		}
	}
}
