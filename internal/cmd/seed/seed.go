// Package seed loads households from a YAML file into the configured database.
package seed

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"wedsync/entity"
	"wedsync/internal/database"

	"gopkg.in/yaml.v3"
)

// Config holds seed command configuration.
type Config struct {
	ConfigPath   string
	File         string
	BaseURL      string
	SkipExisting bool
}

// File is the seed document.
type File struct {
	Households []*entity.Household `yaml:"households"`
}

// Seeder inserts households; implemented by invitation.Client.
type Seeder interface {
	Seed(ctx context.Context, households []*entity.Household) (int, error)
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.StringVar(&cfg.ConfigPath, "conf", "config.yml", "path to config file")
	fs.StringVar(&cfg.File, "file", "households.yml", "households YAML file")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "site URL used to build missing invitation links")
	fs.BoolVar(&cfg.SkipExisting, "skip-existing", false, "skip households whose code already exists")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.File == "" {
		return Config{}, errors.New("-file is required")
	}
	return cfg, nil
}

// LoadFile reads the household list.
func LoadFile(path string) ([]*entity.Household, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc File
	if err = yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(doc.Households) == 0 {
		return nil, fmt.Errorf("%s: no households", path)
	}
	return doc.Households, nil
}

// InvitationLink is the guest page for a code: baseURL?c=CODE.
func InvitationLink(baseURL, code string) string {
	u, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		return ""
	}
	q := u.Query()
	q.Set("c", entity.NormalizeCode(code))
	u.RawQuery = q.Encode()
	return u.String()
}

// Run inserts the households and reports what was created and skipped.
func Run(ctx context.Context, seeder Seeder, households []*entity.Household, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	for _, h := range households {
		if h.InvitationLink == "" {
			h.InvitationLink = InvitationLink(cfg.BaseURL, h.Code)
		}
	}

	if !cfg.SkipExisting {
		n, err := seeder.Seed(ctx, households)
		fmt.Fprintf(out, "created %d of %d households\n", n, len(households))
		return err
	}

	created, skipped := 0, 0
	for _, h := range households {
		n, err := seeder.Seed(ctx, []*entity.Household{h})
		if errors.Is(err, database.ErrDuplicateCode) {
			skipped++
			continue
		}
		if err != nil {
			fmt.Fprintf(out, "created %d, skipped %d\n", created, skipped)
			return err
		}
		created += n
	}
	fmt.Fprintf(out, "created %d, skipped %d\n", created, skipped)
	return nil
}
