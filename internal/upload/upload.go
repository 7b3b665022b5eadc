// Package upload stores a batch of photos on the primary account and moves the
// whole batch to the secondary account when the primary is out of quota.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"wedsync/entity"
	"wedsync/internal/storage"
	"wedsync/lib/sl"
)

var (
	ErrNoFiles            = errors.New("no files")
	ErrSecondaryExhausted = errors.New("secondary account out of quota")
)

// File is one photo of a batch. Open may be called more than once so the
// batch can be replayed on the secondary account.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// BatchError is a failure that aborted the whole batch.
type BatchError struct {
	Account entity.AccountRole
	File    string
	Kind    storage.Kind
	Err     error
}

func (e *BatchError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("upload %s: %v", e.Account, e.Err)
	}
	return fmt.Sprintf("upload %s: file %s: %v", e.Account, e.File, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

type Orchestrator struct {
	primary   storage.Account
	secondary storage.Account
	log       *slog.Logger
}

func NewOrchestrator(primary, secondary storage.Account, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		primary:   primary,
		secondary: secondary,
		log:       log.With(sl.Module("upload")),
	}
}

// Upload stores files sequentially. A quota error on the primary account
// discards its results and restarts the full batch on the secondary account;
// every other error, and any error on the secondary, is returned as is.
func (o *Orchestrator) Upload(ctx context.Context, files []File) (*entity.UploadBatchResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	log := o.log.With(slog.Int("files", len(files)))

	result, err := o.uploadTo(ctx, entity.AccountPrimary, o.primary, files)
	if err == nil {
		log.With(sl.Account(string(entity.AccountPrimary))).Info("batch uploaded")
		return result, nil
	}
	var batchErr *BatchError
	if !errors.As(err, &batchErr) || batchErr.Kind != storage.KindQuota || o.secondary == nil {
		log.Error("batch failed", sl.Err(err))
		return nil, err
	}

	log.Warn("primary account over quota, switching to secondary", sl.Err(err))
	result, err = o.uploadTo(ctx, entity.AccountSecondary, o.secondary, files)
	if err != nil {
		if errors.As(err, &batchErr) && batchErr.Kind == storage.KindQuota {
			err = fmt.Errorf("%w: %w", ErrSecondaryExhausted, err)
		}
		log.Error("secondary batch failed", sl.Err(err))
		return nil, err
	}
	log.With(sl.Account(string(entity.AccountSecondary))).Info("batch uploaded")
	return result, nil
}

func (o *Orchestrator) uploadTo(ctx context.Context, role entity.AccountRole, account storage.Account, files []File) (*entity.UploadBatchResult, error) {
	fail := func(file string, err error) error {
		return &BatchError{Account: role, File: file, Kind: storage.Classify(err), Err: err}
	}

	session, err := account.Open(ctx)
	if err != nil {
		return nil, fail("", err)
	}
	defer func() {
		_ = session.Close()
	}()

	result := &entity.UploadBatchResult{
		Files:       make([]*entity.UploadedFile, 0, len(files)),
		UsedAccount: role,
	}
	for _, f := range files {
		obj, err := uploadOne(ctx, session, f)
		if err != nil {
			return nil, fail(f.Name, err)
		}
		result.Files = append(result.Files, &entity.UploadedFile{
			Name:    obj.Name,
			Size:    obj.Size,
			Link:    obj.Link,
			Account: role,
		})
	}
	return result, nil
}

func uploadOne(ctx context.Context, session storage.Session, f File) (*storage.Object, error) {
	body, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer body.Close()
	return session.Upload(ctx, f.Name, f.Size, body)
}
