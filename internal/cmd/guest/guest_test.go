package guest

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"wedsync/entity"
	"wedsync/impl/core"
	"wedsync/internal/config"
	"wedsync/internal/database"
	"wedsync/internal/http-server/api"
	"wedsync/internal/http-server/handlers/files"
	"wedsync/internal/invitation"
	"wedsync/internal/quota"
	"wedsync/internal/storage"
	uploadpkg "wedsync/internal/upload"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := invitation.New(database.NewMemory(), log)
	if _, err := client.Seed(context.Background(), []*entity.Household{
		{Code: "ABC123", Name: "Familia Garcia", TotalSlots: 4},
	}); err != nil {
		t.Fatal(err)
	}
	primary := storage.NewFileSystemAccount("primary", t.TempDir(), "http://localhost", 0)
	c := core.New(client, log)
	c.SetUploader(uploadpkg.NewOrchestrator(primary, nil, log), nil)
	srv := httptest.NewServer(api.NewRouter(&config.Config{}, log, c, map[string]files.Locator{"primary": primary}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, quotaFile string, args ...string) (string, error) {
	t.Helper()
	lookup := func(key string) (string, bool) {
		if key == "WEDSYNC_SERVER" {
			return srv.URL, true
		}
		return "", false
	}
	fs := flag.NewFlagSet("guest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg, err := ParseConfig(fs, append([]string{"-quota-file", quotaFile}, args...), lookup)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	err = Run(context.Background(), cfg, &out, io.Discard)
	return out.String(), err
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(Config) bool
	}{
		{"no command", []string{"-code", "X"}, true, nil},
		{"unknown command", []string{"-code", "X", "dance"}, true, nil},
		{"missing code", []string{"status"}, true, nil},
		{"upload without files", []string{"upload"}, true, nil},
		{"negative attendees", []string{"-code", "X", "confirm", "-n", "-2"}, true, nil},
		{"confirm", []string{"-code", "X", "confirm", "-n", "3"}, false, func(c Config) bool {
			return c.Command == "confirm" && c.Attendees == 3
		}},
		{"upload needs no code", []string{"upload", "a.jpg", "b.jpg"}, false, func(c Config) bool {
			return len(c.Files) == 2 && c.QuotaFile == "q.json"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("guest", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			cfg, err := ParseConfig(fs, append([]string{"-quota-file", "q.json"}, tt.args...), nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("config = %+v", cfg)
			}
		})
	}
}

func TestStatusConfirmReject(t *testing.T) {
	srv := newServer(t)
	qf := filepath.Join(t.TempDir(), "quota.json")

	out, err := run(t, srv, qf, "-code", "abc123", "status")
	if err != nil || !strings.Contains(out, "up to 4 attendees") {
		t.Fatalf("status: %q %v", out, err)
	}

	out, err = run(t, srv, qf, "-code", "ABC123", "confirm", "-n", "2")
	if err != nil || !strings.Contains(out, "confirmed for 2") {
		t.Fatalf("confirm: %q %v", out, err)
	}

	// a repeated answer is reported but not treated as a failure
	out, err = run(t, srv, qf, "-code", "ABC123", "reject")
	if err != nil || !strings.Contains(out, "link-already-used") {
		t.Fatalf("reject after confirm: %q %v", out, err)
	}

	out, err = run(t, srv, qf, "-code", "NOPE", "confirm")
	if err == nil || !strings.Contains(out, "not found") {
		t.Fatalf("unknown code: %q %v", out, err)
	}
}

func TestUploadCountsQuota(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	qf := filepath.Join(dir, "quota.json")
	var paths []string
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("photo "+name), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	out, err := run(t, srv, qf, append([]string{"upload"}, paths...)...)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(out, "Uploaded 3 photos (primary account)") || !strings.Contains(out, "17 uploads left") {
		t.Errorf("output = %q", out)
	}

	store, err := quota.NewFileStore(qf)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := quota.NewTracker(store).CurrentCount(); n != 3 {
		t.Errorf("persisted count = %d, want 3", n)
	}
}

type countingUploader struct{ calls int }

func (u *countingUploader) Upload(context.Context, string, []string) (*entity.UploadBatchResult, error) {
	u.calls++
	return &entity.UploadBatchResult{UsedAccount: entity.AccountPrimary}, nil
}

func TestUploadRefusedWhenQuotaSpent(t *testing.T) {
	now := time.Date(2025, 9, 20, 18, 0, 0, 0, time.UTC)
	tracker := quota.NewTracker(quota.NewMemoryStore(), quota.WithClock(func() time.Time { return now }))
	if err := tracker.Increment(quota.DefaultLimit); err != nil {
		t.Fatal(err)
	}
	u := &countingUploader{}
	err := upload(context.Background(), u, tracker, Config{Files: []string{"a.jpg"}}, io.Discard)
	if !errors.Is(err, ErrQuotaSpent) {
		t.Fatalf("err = %v, want ErrQuotaSpent", err)
	}
	if u.calls != 0 {
		t.Error("server contacted with the quota spent")
	}
}
