package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/vidvault/media-service/apperror"
	"github.com/vidvault/media-service/caching"
	logger "github.com/vidvault/media-service/logging"
	"github.com/vidvault/media-service/models"
	"github.com/vidvault/media-service/queues"
	"github.com/vidvault/media-service/store"
	"golang.org/x/sync/errgroup"
)

// supportedMimeTypes is the ingestion allow-list. The extension is derived
// from the declared type, never from the user-supplied filename.
var supportedMimeTypes = map[string]string{
	"video/mp4":        ".mp4",
	"video/webm":       ".webm",
	"video/ogg":        ".ogv",
	"video/avi":        ".avi",
	"video/x-msvideo":  ".avi",
	"video/quicktime":  ".mov",
	"video/x-matroska": ".mkv",
}

// bulkConcurrency bounds how many batch files are in flight at once, the same
// ceiling philosophy as part uploads within one transfer.
const bulkConcurrency = 2

// Uploader is the transfer engine contract the orchestrator drives.
type Uploader interface {
	Upload(ctx context.Context, job *models.TransferJob) error
}

type IngestInput struct {
	Source      io.Reader
	Filename    string
	MimeType    string
	Size        int64
	Title       string
	Description string
	Uploader    string
}

type IngestionService interface {
	Ingest(ctx context.Context, in IngestInput) (*models.VideoAsset, error)
	IngestBatch(ctx context.Context, files []IngestInput) []models.BulkResult
}

type IngestionServiceImpl struct {
	uploader   Uploader
	storage    store.ObjectStorage
	videoStore store.VideoStore
	cachingSvc caching.CachingService
	events     queues.EventPublisher

	logger logger.Logger
}

func NewIngestionServiceImpl(
	uploader Uploader,
	storage store.ObjectStorage,
	videoStore store.VideoStore,
	cachingSvc caching.CachingService,
	events queues.EventPublisher,
	l logger.Logger,
) *IngestionServiceImpl {
	return &IngestionServiceImpl{
		uploader:   uploader,
		storage:    storage,
		videoStore: videoStore,
		cachingSvc: cachingSvc,
		events:     events,
		logger:     l,
	}
}

// Ingest validates, transfers, then persists — in that order. Metadata never
// references a key the store has not committed.
func (svc *IngestionServiceImpl) Ingest(ctx context.Context, in IngestInput) (*models.VideoAsset, error) {
	ext, ok := supportedMimeTypes[in.MimeType]
	if !ok {
		return nil, apperror.NewValidationError("unsupported mime type %q", in.MimeType)
	}
	if in.Title == "" {
		return nil, apperror.NewValidationError("title is required")
	}
	if in.Size <= 0 {
		return nil, apperror.NewValidationError("file is empty")
	}

	key := fmt.Sprintf("videos/%s%s", uuid.NewString(), ext)

	job := &models.TransferJob{
		Source:      in.Source,
		Key:         key,
		ContentType: in.MimeType,
		Size:        in.Size,
	}

	svc.logger.Info("ingestion started", "key", key, "filename", in.Filename, "size", in.Size)

	if err := svc.uploader.Upload(ctx, job); err != nil {
		svc.logger.Error("transfer failed", "key", key, "error", err)
		return nil, err
	}

	now := time.Now().UTC()
	asset := models.VideoAsset{
		VideoId:          uuid.NewString(),
		Title:            in.Title,
		Description:      in.Description,
		StorageKey:       key,
		OriginalFilename: in.Filename,
		SizeBytes:        in.Size,
		MimeType:         in.MimeType,
		Visibility:       true,
		UploaderIdentity: in.Uploader,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := svc.videoStore.Create(ctx, asset); err != nil {
		svc.logger.Error("failed to persist video record", "video_id", asset.VideoId, "key", key, "error", err)

		// Compensate: the object must not outlive a failed metadata write.
		cleanupCtx := context.WithoutCancel(ctx)
		if delErr := svc.storage.Delete(cleanupCtx, key); delErr != nil {
			svc.logger.Error("compensating object deletion failed, storage object is dangling",
				"key", key, "error", delErr)
		}

		return nil, fmt.Errorf("failed to persist video record: %w", err)
	}

	if err := svc.cachingSvc.Delete(ctx, publicListingCacheKey); err != nil {
		svc.logger.Error("cached listing invalidation failed", "video_id", asset.VideoId, "error", err)
		// not critical
	}

	svc.events.PublishVideoIngested(ctx, &asset)

	svc.logger.Info("ingestion completed", "video_id", asset.VideoId, "key", key, "size", in.Size)
	return &asset, nil
}

// IngestBatch fans Ingest out over the batch with bounded parallelism. One
// file's failure never aborts its siblings; results keep input order and the
// call returns only once every file is terminal.
func (svc *IngestionServiceImpl) IngestBatch(ctx context.Context, files []IngestInput) []models.BulkResult {
	results := make([]models.BulkResult, len(files))

	g := new(errgroup.Group)
	g.SetLimit(bulkConcurrency)

	for i, in := range files {
		g.Go(func() error {
			asset, err := svc.Ingest(ctx, in)
			results[i] = classifyOutcome(in.Filename, asset, err)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func classifyOutcome(filename string, asset *models.VideoAsset, err error) models.BulkResult {
	switch {
	case err == nil:
		return models.BulkResult{
			Name:    filename,
			Status:  models.BulkSuccess,
			VideoId: asset.VideoId,
		}
	case apperror.IsValidation(err):
		return models.BulkResult{
			Name:   filename,
			Status: models.BulkValidationError,
			Error:  err.Error(),
		}
	default:
		return models.BulkResult{
			Name:   filename,
			Status: models.BulkTransferError,
			Error:  err.Error(),
		}
	}
}

// SupportedMimeType reports whether the declared type passes the allow-list.
func SupportedMimeType(mimeType string) bool {
	_, ok := supportedMimeTypes[mimeType]
	return ok
}
