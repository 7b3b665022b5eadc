package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"wedsync/lib/sl"

	"github.com/t3rm1n4l/go-mega"
)

// MegaAccount uploads into a MEGA cloud drive.
type MegaAccount struct {
	name     string
	email    string
	password string
	folder   string
	log      *slog.Logger
}

// NewMegaAccount keeps the credentials; no connection is made until Open.
// folder is a slash separated path under the drive root, created on demand.
func NewMegaAccount(name, email, password, folder string, log *slog.Logger) *MegaAccount {
	return &MegaAccount{
		name:     name,
		email:    email,
		password: password,
		folder:   strings.Trim(folder, "/"),
		log:      log.With(sl.Module("storage.mega"), sl.Account(name)),
	}
}

func (a *MegaAccount) Name() string {
	return a.name
}

func (a *MegaAccount) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client := mega.New()
	if err := client.Login(a.email, a.password); err != nil {
		return nil, megaError("login", err)
	}
	parent, err := a.resolveFolder(client)
	if err != nil {
		return nil, err
	}
	a.log.Debug("session opened")
	return &megaSession{client: client, parent: parent, log: a.log}, nil
}

func (a *MegaAccount) resolveFolder(client *mega.Mega) (*mega.Node, error) {
	node := client.FS.GetRoot()
	if a.folder == "" {
		return node, nil
	}
	for _, part := range strings.Split(a.folder, "/") {
		found, err := client.FS.PathLookup(node, []string{part})
		if err == nil && len(found) > 0 {
			node = found[len(found)-1]
			continue
		}
		if err != nil && !errors.Is(err, mega.ENOENT) {
			return nil, megaError("lookup folder", err)
		}
		node, err = client.CreateDir(part, node)
		if err != nil {
			return nil, megaError("create folder", err)
		}
	}
	return node, nil
}

type megaSession struct {
	client *mega.Mega
	parent *mega.Node
	log    *slog.Logger
}

func (s *megaSession) Upload(ctx context.Context, name string, size int64, r io.Reader) (*Object, error) {
	upload, err := s.client.NewUpload(s.parent, name, size)
	if err != nil {
		return nil, megaError("new upload", err)
	}

	for id := 0; id < upload.Chunks(); id++ {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		_, chunkSize, err := upload.ChunkLocation(id)
		if err != nil {
			return nil, megaError("chunk location", err)
		}
		chunk := make([]byte, chunkSize)
		if _, err = io.ReadFull(r, chunk); err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if err = upload.UploadChunk(id, chunk); err != nil {
			return nil, megaError("upload chunk", err)
		}
	}

	node, err := upload.Finish()
	if err != nil {
		return nil, megaError("finish upload", err)
	}
	link, err := s.client.Link(node, false)
	if err != nil {
		return nil, megaError("link", err)
	}
	s.log.With(slog.String("file", name), slog.Int64("size", size)).Debug("uploaded")
	return &Object{Name: name, Size: size, Link: link}, nil
}

func (s *megaSession) Close() error {
	return nil
}

// megaError wraps a client error; both account-full and would-exceed answers
// are quota errors.
func megaError(op string, err error) error {
	if errors.Is(err, mega.EOVERQUOTA) || errors.Is(err, mega.EGOINGOVERQUOTA) {
		return fmt.Errorf("mega %s: %w: %w", op, ErrQuota, err)
	}
	return fmt.Errorf("mega %s: %w", op, err)
}
