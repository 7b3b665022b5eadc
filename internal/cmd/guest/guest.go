// Package guest implements the device-local guest command: invitation status,
// RSVP submission and photo uploads throttled by the local quota tracker.
package guest

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"wedsync/entity"
	"wedsync/internal/guestapi"
	"wedsync/internal/quota"
	"wedsync/internal/rsvp"
)

var ErrQuotaSpent = errors.New("photo limit reached for this period")

// Config holds guest command configuration.
type Config struct {
	Server    string
	Code      string
	Password  string
	QuotaFile string
	Timeout   time.Duration
	Verbose   bool
	Command   string
	Attendees int
	Files     []string
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses global flags, the command name and its flags.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		Server:  envOrDefault(lookup, "WEDSYNC_SERVER", "http://localhost:8080"),
		Code:    envOrDefault(lookup, "WEDSYNC_CODE", ""),
		Timeout: 5 * time.Minute,
	}
	fs.StringVar(&cfg.Server, "server", cfg.Server, "server base URL")
	fs.StringVar(&cfg.Code, "code", cfg.Code, "invitation code")
	fs.StringVar(&cfg.Password, "password", envOrDefault(lookup, "WEDSYNC_UPLOAD_PASSWORD", ""), "temporary upload password")
	fs.StringVar(&cfg.QuotaFile, "quota-file", "", "upload counter file (default: user config dir)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "request timeout")
	fs.BoolVar(&cfg.Verbose, "v", false, "verbose output")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return Config{}, errors.New("command required: status, confirm, reject or upload")
	}
	cfg.Command = rest[0]
	rest = rest[1:]

	switch cfg.Command {
	case "status", "reject":
	case "confirm":
		sub := flag.NewFlagSet("confirm", flag.ContinueOnError)
		sub.SetOutput(io.Discard)
		sub.IntVar(&cfg.Attendees, "n", 0, "number of attendees (default: whole household)")
		if err := sub.Parse(rest); err != nil {
			return Config{}, err
		}
		if cfg.Attendees < 0 {
			return Config{}, errors.New("-n must be positive")
		}
	case "upload":
		if len(rest) == 0 {
			return Config{}, errors.New("upload: no files given")
		}
		cfg.Files = rest
	default:
		return Config{}, fmt.Errorf("unknown command %q", cfg.Command)
	}

	if cfg.Command != "upload" && cfg.Code == "" {
		return Config{}, errors.New("-code is required")
	}
	if cfg.QuotaFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, err
		}
		cfg.QuotaFile = filepath.Join(dir, "wedsync", "quota.json")
	}
	return cfg, nil
}

// Run executes the guest command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
	client := guestapi.NewClient(cfg.Server, cfg.Timeout, log)

	switch cfg.Command {
	case "status":
		v, err := client.Lookup(ctx, cfg.Code)
		return printView(out, v, err)
	case "confirm":
		v, err := client.Confirm(ctx, cfg.Code, cfg.Attendees)
		return printView(out, v, err)
	case "reject":
		v, err := client.Reject(ctx, cfg.Code)
		return printView(out, v, err)
	case "upload":
		store, err := quota.NewFileStore(cfg.QuotaFile)
		if err != nil {
			return err
		}
		return upload(ctx, client, quota.NewTracker(store), cfg, out)
	}
	return fmt.Errorf("unknown command %q", cfg.Command)
}

type uploader interface {
	Upload(ctx context.Context, password string, paths []string) (*entity.UploadBatchResult, error)
}

func upload(ctx context.Context, client uploader, tracker *quota.Tracker, cfg Config, out io.Writer) error {
	allowed, err := tracker.Allowed()
	if err != nil {
		return err
	}
	if !allowed {
		resets, _ := tracker.ResetsAt()
		return fmt.Errorf("%w (%d photos), try again after %s", ErrQuotaSpent, tracker.Limit(), resets.Local().Format("15:04"))
	}

	result, err := client.Upload(ctx, cfg.Password, cfg.Files)
	if err != nil {
		return err
	}
	if len(result.Files) > 0 {
		if err = tracker.Increment(len(result.Files)); err != nil {
			return fmt.Errorf("save upload counter: %w", err)
		}
	}
	remaining, _ := tracker.Remaining()

	fmt.Fprintf(out, "Uploaded %d photos (%s account)\n", len(result.Files), result.UsedAccount)
	for _, f := range result.Files {
		fmt.Fprintf(out, "  %s  %s\n", f.Name, f.Link)
	}
	fmt.Fprintf(out, "%d uploads left in this period\n", remaining)
	return nil
}

func printView(out io.Writer, v *rsvp.View, err error) error {
	if v == nil {
		return err
	}
	h := v.Household
	if h == nil {
		h = &rsvp.HouseholdView{}
	} else {
		fmt.Fprintf(out, "%s (%d seats)\n", h.Name, h.TotalSlots)
	}
	switch v.State {
	case rsvp.StateFound:
		fmt.Fprintf(out, "Waiting for your answer, up to %d attendees\n", h.TotalSlots)
	case rsvp.StateSuccess:
		fmt.Fprintf(out, "Attendance confirmed for %d\n", h.ConfirmedAttendees)
	case rsvp.StateRejected:
		fmt.Fprintln(out, "Invitation declined")
	case rsvp.StateNotFound:
		fmt.Fprintln(out, "Invitation not found")
	default:
		fmt.Fprintf(out, "State: %s\n", v.State)
	}
	if v.Notice != rsvp.NoticeNone {
		fmt.Fprintf(out, "Note: %s\n", v.Notice)
	}
	if v.Informational {
		return nil
	}
	return err
}

func envOrDefault(lookup EnvLookup, key, fallback string) string {
	if lookup == nil {
		return fallback
	}
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}
