package store

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vidvault/media-service/apperror"
	"github.com/vidvault/media-service/logging"
	"github.com/vidvault/media-service/models"
)

type memUpload struct {
	key   string
	parts map[int32][]byte
}

// memObjectStorage is an in-memory ObjectStorage with failure injection and
// concurrency accounting.
type memObjectStorage struct {
	mu sync.Mutex

	objects      map[string][]byte
	contentTypes map[string]string
	uploads      map[string]*memUpload
	aborted      []string
	nextUpload   int

	failOnPart  int32
	inflight    int
	maxInflight int
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
		uploads:      make(map[string]*memUpload),
	}
}

func (m *memObjectStorage) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.contentTypes[key] = contentType
	return nil
}

func (m *memObjectStorage) Get(_ context.Context, key string, _ string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, 0, apperror.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *memObjectStorage) Head(_ context.Context, key string) (int64, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return 0, "", apperror.ErrNotFound
	}
	return int64(len(data)), m.contentTypes[key], nil
}

func (m *memObjectStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memObjectStorage) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (m *memObjectStorage) CreateMultipart(_ context.Context, key string, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextUpload++
	id := fmt.Sprintf("upload-%d", m.nextUpload)
	m.uploads[id] = &memUpload{key: key, parts: make(map[int32][]byte)}
	m.contentTypes[key] = contentType
	return id, nil
}

func (m *memObjectStorage) UploadPart(ctx context.Context, _ string, uploadID string, partNumber int32, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.inflight++
	if m.inflight > m.maxInflight {
		m.maxInflight = m.inflight
	}
	m.mu.Unlock()

	// Give siblings a chance to overlap so maxInflight is meaningful.
	time.Sleep(2 * time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--

	if m.failOnPart != 0 && partNumber == m.failOnPart {
		return "", errors.New("injected part failure")
	}

	up, ok := m.uploads[uploadID]
	if !ok {
		return "", errors.New("unknown upload id")
	}

	up.parts[partNumber] = append([]byte(nil), body...)
	return fmt.Sprintf("etag-%d", partNumber), nil
}

func (m *memObjectStorage) CompleteMultipart(_ context.Context, key string, uploadID string, parts []CompletedPart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	up, ok := m.uploads[uploadID]
	if !ok {
		return errors.New("unknown upload id")
	}

	sorted := append([]CompletedPart(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	var assembled []byte
	for _, p := range sorted {
		data, ok := up.parts[p.PartNumber]
		if !ok {
			return fmt.Errorf("part %d was never uploaded", p.PartNumber)
		}
		assembled = append(assembled, data...)
	}

	m.objects[key] = assembled
	delete(m.uploads, uploadID)
	return nil
}

func (m *memObjectStorage) AbortMultipart(_ context.Context, _ string, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.uploads, uploadID)
	m.aborted = append(m.aborted, uploadID)
	return nil
}

func (m *memObjectStorage) IsReady(context.Context) error { return nil }

func (m *memObjectStorage) Name() string { return "ObjectStorage[mem]" }

func (m *memObjectStorage) committedParts() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, up := range m.uploads {
		n += len(up.parts)
	}
	return n
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return buf
}

func TestUpload_SmallSourceUsesSinglePut(t *testing.T) {
	mem := newMemObjectStorage()
	uploader := NewMultipartUploader(mem, 1024, 3, logging.NewNopLogger())

	data := randomBytes(t, 512)
	job := &models.TransferJob{
		Source:      bytes.NewReader(data),
		Key:         "videos/small.mp4",
		ContentType: "video/mp4",
		Size:        int64(len(data)),
	}

	require.NoError(t, uploader.Upload(context.Background(), job))
	require.Equal(t, data, mem.objects["videos/small.mp4"])
	require.Empty(t, mem.uploads)
	require.Equal(t, int64(len(data)), job.BytesTransferred())
}

func TestUpload_MultipartAssemblesAllParts(t *testing.T) {
	mem := newMemObjectStorage()
	uploader := NewMultipartUploader(mem, 1024, 3, logging.NewNopLogger())

	data := randomBytes(t, 5*1024+100) // 6 parts, last one short
	job := &models.TransferJob{
		Source:      bytes.NewReader(data),
		Key:         "videos/large.mp4",
		ContentType: "video/mp4",
		Size:        int64(len(data)),
	}

	require.NoError(t, uploader.Upload(context.Background(), job))
	require.Equal(t, data, mem.objects["videos/large.mp4"])
	require.Equal(t, int64(len(data)), job.BytesTransferred())
	require.LessOrEqual(t, mem.maxInflight, 3)
}

func TestUpload_ProgressIsMonotonicAndComplete(t *testing.T) {
	mem := newMemObjectStorage()
	uploader := NewMultipartUploader(mem, 1024, 2, logging.NewNopLogger())

	data := randomBytes(t, 4*1024)

	var mu sync.Mutex
	var observed []int64

	job := &models.TransferJob{
		Source:      bytes.NewReader(data),
		Key:         "videos/progress.mp4",
		ContentType: "video/mp4",
		Size:        int64(len(data)),
		OnProgress: func(transferred, _ int64) {
			mu.Lock()
			observed = append(observed, transferred)
			mu.Unlock()
		},
	}

	require.NoError(t, uploader.Upload(context.Background(), job))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, observed)
	for i := 1; i < len(observed); i++ {
		require.GreaterOrEqual(t, observed[i], observed[i-1])
	}
	require.Equal(t, int64(len(data)), observed[len(observed)-1])
	require.Equal(t, uint8(100), job.Progress())
}

func TestUpload_PartFailureLeavesNothing(t *testing.T) {
	mem := newMemObjectStorage()
	mem.failOnPart = 3
	uploader := NewMultipartUploader(mem, 1024, 2, logging.NewNopLogger())

	data := randomBytes(t, 5*1024) // 5 parts, part 3 fails
	job := &models.TransferJob{
		Source:      bytes.NewReader(data),
		Key:         "videos/doomed.mp4",
		ContentType: "video/mp4",
		Size:        int64(len(data)),
	}

	err := uploader.Upload(context.Background(), job)
	require.Error(t, err)
	require.True(t, apperror.IsTransfer(err))

	require.NotContains(t, mem.objects, "videos/doomed.mp4")
	require.Zero(t, mem.committedParts())
	require.Len(t, mem.aborted, 1)
}

func TestUpload_EmptyKeyRejected(t *testing.T) {
	mem := newMemObjectStorage()
	uploader := NewMultipartUploader(mem, 1024, 2, logging.NewNopLogger())

	err := uploader.Upload(context.Background(), &models.TransferJob{
		Source: bytes.NewReader(nil),
		Size:   10,
	})
	require.True(t, apperror.IsTransfer(err))
}
