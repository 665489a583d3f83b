package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vidvault/media-service/apperror"
	"github.com/vidvault/media-service/models"
	"github.com/vidvault/media-service/store"
)

// fakeStorage is an in-memory ObjectStorage for service tests.
type fakeStorage struct {
	mu sync.Mutex

	objects map[string][]byte
	deletes []string
	signed  int

	deleteErr error
	signErr   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) Get(_ context.Context, key string, byteRange string) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[key]
	if !ok {
		return nil, 0, apperror.ErrNotFound
	}

	if byteRange != "" {
		var start, end int64
		if _, err := fmt.Sscanf(byteRange, "bytes=%d-%d", &start, &end); err != nil {
			return nil, 0, fmt.Errorf("bad range %q: %w", byteRange, err)
		}
		data = data[start : end+1]
	}

	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (f *fakeStorage) Head(_ context.Context, key string) (int64, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[key]
	if !ok {
		return 0, "", apperror.ErrNotFound
	}
	return int64(len(data)), "video/mp4", nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}

	f.deletes = append(f.deletes, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.signErr != nil {
		return "", f.signErr
	}

	f.signed++
	return fmt.Sprintf("https://signed.example/%s?sig=%d", key, f.signed), nil
}

func (f *fakeStorage) CreateMultipart(context.Context, string, string) (string, error) {
	return "upload-1", nil
}

func (f *fakeStorage) UploadPart(context.Context, string, string, int32, []byte) (string, error) {
	return "etag", nil
}

func (f *fakeStorage) CompleteMultipart(context.Context, string, string, []store.CompletedPart) error {
	return nil
}

func (f *fakeStorage) AbortMultipart(context.Context, string, string) error {
	return nil
}

func (f *fakeStorage) IsReady(context.Context) error { return nil }

func (f *fakeStorage) Name() string { return "ObjectStorage[fake]" }

// fakeUploader streams the job source into the fake storage, or fails.
type fakeUploader struct {
	storage *fakeStorage
	err     error

	mu   sync.Mutex
	jobs []*models.TransferJob
}

func (f *fakeUploader) Upload(ctx context.Context, job *models.TransferJob) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()

	if f.err != nil {
		return apperror.NewTransferError(job.Key, f.err)
	}

	if err := f.storage.Put(ctx, job.Key, job.Source, job.Size, job.ContentType); err != nil {
		return apperror.NewTransferError(job.Key, err)
	}

	job.AddAcknowledged(job.Size)
	return nil
}

// fakeVideoStore is an in-memory VideoStore with error injection.
type fakeVideoStore struct {
	mu sync.Mutex

	records map[string]models.VideoAsset

	createErr error
	updateErr error
	deleteErr error
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{records: make(map[string]models.VideoAsset)}
}

func (f *fakeVideoStore) Create(_ context.Context, asset models.VideoAsset) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}
	f.records[asset.VideoId] = asset
	return nil
}

func (f *fakeVideoStore) Get(_ context.Context, videoId string) (*models.VideoAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	asset, ok := f.records[videoId]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return &asset, nil
}

func (f *fakeVideoStore) List(context.Context) ([]models.VideoAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	assets := make([]models.VideoAsset, 0, len(f.records))
	for _, a := range f.records {
		assets = append(assets, a)
	}
	return assets, nil
}

func (f *fakeVideoStore) ListPublic(context.Context) ([]models.VideoAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var assets []models.VideoAsset
	for _, a := range f.records {
		if a.Visibility {
			assets = append(assets, a)
		}
	}
	return assets, nil
}

func (f *fakeVideoStore) Update(_ context.Context, asset models.VideoAsset) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.records[asset.VideoId]; !ok {
		return apperror.ErrNotFound
	}
	f.records[asset.VideoId] = asset
	return nil
}

func (f *fakeVideoStore) Delete(_ context.Context, videoId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.records[videoId]; !ok {
		return apperror.ErrNotFound
	}
	delete(f.records, videoId)
	return nil
}

func (f *fakeVideoStore) IsReady(context.Context) error { return nil }

func (f *fakeVideoStore) Name() string { return "VideoStore[fake]" }

func (f *fakeVideoStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}
