package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/vidvault/media-service/apperror"
	logger "github.com/vidvault/media-service/logging"
	"github.com/vidvault/media-service/models"
	"golang.org/x/sync/errgroup"
)

// MultipartUploader moves a large byte source into the object store without
// holding the whole file in memory. Parts are uploaded with bounded
// parallelism; on any part failure the whole upload is aborted so that
// nothing is left at the destination key.
type MultipartUploader struct {
	storage        ObjectStorage
	partSize       int64
	maxConcurrency int

	logger logger.Logger
}

func NewMultipartUploader(storage ObjectStorage, partSize int64, maxConcurrency int, l logger.Logger) *MultipartUploader {
	return &MultipartUploader{
		storage:        storage,
		partSize:       partSize,
		maxConcurrency: maxConcurrency,
		logger:         l,
	}
}

type filePart struct {
	number int32
	data   []byte
}

// Upload blocks until every part of the job is acknowledged by the store or
// the job is aborted. No caller may reference job.Key in metadata before
// Upload returns nil.
func (u *MultipartUploader) Upload(ctx context.Context, job *models.TransferJob) error {
	if job.Key == "" {
		return apperror.NewTransferError(job.Key, errors.New("destination key cannot be empty"))
	}

	if job.Size <= u.partSize {
		return u.uploadSingle(ctx, job)
	}

	return u.uploadMultipart(ctx, job)
}

func (u *MultipartUploader) uploadSingle(ctx context.Context, job *models.TransferJob) error {
	u.logger.Debug("source fits in one part, using direct put", "key", job.Key, "size", job.Size)

	if err := u.storage.Put(ctx, job.Key, job.Source, job.Size, job.ContentType); err != nil {
		return apperror.NewTransferError(job.Key, err)
	}

	job.AddAcknowledged(job.Size)
	return nil
}

func (u *MultipartUploader) uploadMultipart(ctx context.Context, job *models.TransferJob) error {
	uploadID, err := u.storage.CreateMultipart(ctx, job.Key, job.ContentType)
	if err != nil {
		return apperror.NewTransferError(job.Key, err)
	}

	u.logger.Info("starting multipart transfer",
		"key", job.Key, "upload_id", uploadID, "size", job.Size,
		"part_size", u.partSize, "max_concurrency", u.maxConcurrency)

	g, gctx := errgroup.WithContext(ctx)
	parts := make(chan filePart, u.maxConcurrency)

	// The source is read sequentially; only the uploads fan out.
	g.Go(func() error {
		defer close(parts)

		for number := int32(1); ; number++ {
			buf := make([]byte, u.partSize)
			n, err := io.ReadFull(job.Source, buf)

			if n > 0 {
				select {
				case parts <- filePart{number: number, data: buf[:n]}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}

			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read source: %w", err)
			}
		}
	})

	var mu sync.Mutex
	var completed []CompletedPart

	for range u.maxConcurrency {
		g.Go(func() error {
			for p := range parts {
				etag, err := u.storage.UploadPart(gctx, job.Key, uploadID, p.number, p.data)
				if err != nil {
					return err
				}

				mu.Lock()
				completed = append(completed, CompletedPart{PartNumber: p.number, ETag: etag})
				mu.Unlock()

				// Progress counts acknowledged parts only, so it never
				// decreases and never runs ahead of the store.
				job.AddAcknowledged(int64(len(p.data)))

				u.logger.Debug("part acknowledged",
					"key", job.Key, "part_number", p.number, "progress_pct", job.Progress())
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Leave nothing on error: abort discards every committed part. Use a
		// non-cancelled context so cleanup still runs after cancellation.
		abortCtx := context.WithoutCancel(ctx)
		if abortErr := u.storage.AbortMultipart(abortCtx, job.Key, uploadID); abortErr != nil {
			u.logger.Error("failed to abort multipart transfer", "key", job.Key, "upload_id", uploadID, "error", abortErr)
		}
		return apperror.NewTransferError(job.Key, err)
	}

	sort.Slice(completed, func(i, j int) bool {
		return completed[i].PartNumber < completed[j].PartNumber
	})

	if err := u.storage.CompleteMultipart(ctx, job.Key, uploadID, completed); err != nil {
		abortCtx := context.WithoutCancel(ctx)
		if abortErr := u.storage.AbortMultipart(abortCtx, job.Key, uploadID); abortErr != nil {
			u.logger.Error("failed to abort multipart transfer", "key", job.Key, "upload_id", uploadID, "error", abortErr)
		}
		return apperror.NewTransferError(job.Key, err)
	}

	u.logger.Info("multipart transfer committed", "key", job.Key, "upload_id", uploadID, "parts", len(completed))
	return nil
}
