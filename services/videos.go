package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vidvault/media-service/apperror"
	"github.com/vidvault/media-service/caching"
	logger "github.com/vidvault/media-service/logging"
	"github.com/vidvault/media-service/models"
	"github.com/vidvault/media-service/queues"
	"github.com/vidvault/media-service/store"
)

const (
	publicListingCacheKey = "videos:public"
	publicListingCacheTTL = 1 * time.Minute
)

// StreamContent is a proxied byte window read from the object store.
type StreamContent struct {
	Body        io.ReadCloser
	Range       ByteRange
	Size        int64
	ContentType string
}

// StreamResolution is either a redirect to a signed URL (full content) or a
// proxied partial window, never both.
type StreamResolution struct {
	RedirectURL string
	Content     *StreamContent
}

type VideoService interface {
	ListPublic(ctx context.Context) ([]models.VideoSummary, error)
	ListAll(ctx context.Context) ([]models.VideoAsset, error)
	Get(ctx context.Context, videoId string, includePrivate bool) (*models.VideoDetail, error)
	Stream(ctx context.Context, videoId string, rangeHeader string) (*StreamResolution, error)
	ToggleVisibility(ctx context.Context, videoId string) (bool, error)
	Delete(ctx context.Context, videoId string) error
}

type VideoServiceImpl struct {
	videoStore store.VideoStore
	storage    store.ObjectStorage
	cachingSvc caching.CachingService
	events     queues.EventPublisher
	urlTTL     time.Duration

	logger logger.Logger
}

func NewVideoServiceImpl(
	videoStore store.VideoStore,
	storage store.ObjectStorage,
	cachingSvc caching.CachingService,
	events queues.EventPublisher,
	urlTTL time.Duration,
	l logger.Logger,
) *VideoServiceImpl {
	return &VideoServiceImpl{
		videoStore: videoStore,
		storage:    storage,
		cachingSvc: cachingSvc,
		events:     events,
		urlTTL:     urlTTL,
		logger:     l,
	}
}

func (svc *VideoServiceImpl) ListPublic(ctx context.Context) ([]models.VideoSummary, error) {
	if cached, err := svc.cachingSvc.Get(ctx, publicListingCacheKey); err == nil {
		var summaries []models.VideoSummary
		if err := json.Unmarshal(cached, &summaries); err == nil {
			return summaries, nil
		}
	}

	assets, err := svc.videoStore.ListPublic(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.VideoSummary, len(assets))
	for i, a := range assets {
		summaries[i] = a.Summary()
	}

	if payload, err := json.Marshal(summaries); err == nil {
		if err := svc.cachingSvc.Set(ctx, publicListingCacheKey, payload, publicListingCacheTTL); err != nil {
			svc.logger.Error("failed to cache public listing", "error", err)
		}
	}

	return summaries, nil
}

func (svc *VideoServiceImpl) ListAll(ctx context.Context) ([]models.VideoAsset, error) {
	return svc.videoStore.List(ctx)
}

// Get returns the asset detail with a freshly issued stream URL and bumps the
// view counter. Private assets resolve as not-found for unauthenticated
// callers so their existence is not leaked.
func (svc *VideoServiceImpl) Get(ctx context.Context, videoId string, includePrivate bool) (*models.VideoDetail, error) {
	asset, err := svc.videoStore.Get(ctx, videoId)
	if err != nil {
		return nil, err
	}

	if !asset.Visibility && !includePrivate {
		return nil, apperror.ErrNotFound
	}

	// Best-effort counter: whole-record read-modify-write, last-writer-wins
	// under concurrency. The approximation is accepted.
	asset.ViewCount++
	asset.UpdatedAt = time.Now().UTC()
	if err := svc.videoStore.Update(ctx, *asset); err != nil {
		svc.logger.Error("failed to bump view count", "video_id", videoId, "error", err)
		asset.ViewCount--
	}

	url, err := svc.storage.SignedURL(ctx, asset.StorageKey, svc.urlTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue stream url: %w", err)
	}

	return &models.VideoDetail{
		VideoAsset: *asset,
		StreamURL:  url,
	}, nil
}

// Stream resolves a byte-range request for the asset. Full-content requests
// redirect to a signed URL; ranged requests proxy the exact window from the
// object store.
func (svc *VideoServiceImpl) Stream(ctx context.Context, videoId string, rangeHeader string) (*StreamResolution, error) {
	asset, err := svc.videoStore.Get(ctx, videoId)
	if err != nil {
		return nil, err
	}

	rng, err := ResolveRange(rangeHeader, asset.SizeBytes)
	if err != nil {
		return nil, &UnsatisfiableRangeError{Size: asset.SizeBytes}
	}

	if rng == nil {
		url, err := svc.storage.SignedURL(ctx, asset.StorageKey, svc.urlTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to issue stream url: %w", err)
		}
		return &StreamResolution{RedirectURL: url}, nil
	}

	body, _, err := svc.storage.Get(ctx, asset.StorageKey, rng.Header())
	if err != nil {
		return nil, fmt.Errorf("failed to read byte window: %w", err)
	}

	return &StreamResolution{
		Content: &StreamContent{
			Body:        body,
			Range:       *rng,
			Size:        asset.SizeBytes,
			ContentType: asset.MimeType,
		},
	}, nil
}

// ToggleVisibility flips the boolean and persists it. Pure metadata mutation,
// idempotent in pairs.
func (svc *VideoServiceImpl) ToggleVisibility(ctx context.Context, videoId string) (bool, error) {
	asset, err := svc.videoStore.Get(ctx, videoId)
	if err != nil {
		return false, err
	}

	asset.Visibility = !asset.Visibility
	asset.UpdatedAt = time.Now().UTC()

	if err := svc.videoStore.Update(ctx, *asset); err != nil {
		return false, err
	}

	if err := svc.cachingSvc.Delete(ctx, publicListingCacheKey); err != nil {
		svc.logger.Error("cached listing invalidation failed", "video_id", videoId, "error", err)
	}

	svc.logger.Info("visibility toggled", "video_id", videoId, "visibility", asset.Visibility)
	return asset.Visibility, nil
}

// Delete removes the storage object first and the metadata record only after
// confirmed deletion or confirmed prior absence. A dangling object is cheap
// to reconcile; a metadata record pointing at nothing is not.
func (svc *VideoServiceImpl) Delete(ctx context.Context, videoId string) error {
	asset, err := svc.videoStore.Get(ctx, videoId)
	if err != nil {
		return err
	}

	if err := svc.storage.Delete(ctx, asset.StorageKey); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		svc.logger.Error("object deletion failed, metadata left intact",
			"video_id", videoId, "key", asset.StorageKey, "error", err)
		return apperror.NewConsistencyError(asset.StorageKey, err)
	}

	if err := svc.videoStore.Delete(ctx, videoId); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// A concurrent delete won the race; the object is gone either way.
			return apperror.ErrNotFound
		}
		svc.logger.Error("metadata deletion failed after object deletion, record is dangling",
			"video_id", videoId, "key", asset.StorageKey, "error", err)
		return apperror.NewConsistencyError(asset.StorageKey, err)
	}

	if err := svc.cachingSvc.Delete(ctx, publicListingCacheKey); err != nil {
		svc.logger.Error("cached listing invalidation failed", "video_id", videoId, "error", err)
	}

	svc.events.PublishVideoDeleted(ctx, videoId, asset.StorageKey)

	svc.logger.Info("video deleted", "video_id", videoId, "key", asset.StorageKey)
	return nil
}
