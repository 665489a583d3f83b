package test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
	"github.com/vidvault/media-service/apperror"
	"github.com/vidvault/media-service/caching"
	"github.com/vidvault/media-service/logging"
	"github.com/vidvault/media-service/queues"
	"github.com/vidvault/media-service/services"
	"github.com/vidvault/media-service/store"
)

const (
	testBucket = "videos-test"
	testTable  = "videos-test"
	partSize   = 5 * 1024 * 1024
)

type TestEnv struct {
	S3     *s3.Client
	Dynamo *dynamodb.Client
}

func setupTestEnv(t *testing.T) *TestEnv {
	endpoint := os.Getenv("AWS_ENDPOINT")
	if endpoint == "" {
		t.Skip("AWS_ENDPOINT not set, skipping localstack integration test")
	}

	ctx := context.Background()

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion("us-east-1"))
	require.NoError(t, err)

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	db := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	_, err = s3Client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(testBucket),
	})

	var owned *s3types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		require.NoError(t, err)
	}

	_, err = db.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(testTable),
		AttributeDefinitions: []dynamotypes.AttributeDefinition{
			{
				AttributeName: aws.String("video_id"),
				AttributeType: dynamotypes.ScalarAttributeTypeS,
			},
		},
		KeySchema: []dynamotypes.KeySchemaElement{
			{
				AttributeName: aws.String("video_id"),
				KeyType:       dynamotypes.KeyTypeHash,
			},
		},
		BillingMode: dynamotypes.BillingModePayPerRequest,
	})

	var exists *dynamotypes.ResourceInUseException
	if err != nil && !errors.As(err, &exists) {
		require.NoError(t, err)
	}

	return &TestEnv{S3: s3Client, Dynamo: db}
}

func buildServices(env *TestEnv) (*services.IngestionServiceImpl, *services.VideoServiceImpl) {
	l := logging.NewNopLogger()

	storage := store.NewS3ObjectStorageImpl(env.S3, testBucket, l)
	videoStore := store.NewDynamoDbVideoStoreImpl(env.Dynamo, testTable)
	uploader := store.NewMultipartUploader(storage, partSize, 3, l)

	ingestSvc := services.NewIngestionServiceImpl(
		uploader,
		storage,
		videoStore,
		caching.NewNullCachingService(),
		queues.NewNullEventPublisher(),
		l,
	)
	videoSvc := services.NewVideoServiceImpl(
		videoStore,
		storage,
		caching.NewNullCachingService(),
		queues.NewNullEventPublisher(),
		15*time.Minute,
		l,
	)

	return ingestSvc, videoSvc
}

func TestIngestStreamDelete_EndToEnd(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	ingestSvc, videoSvc := buildServices(env)

	// Large enough to force a multipart transfer with several parts.
	content := make([]byte, 2*partSize+partSize/2)
	_, err := rand.New(rand.NewSource(42)).Read(content)
	require.NoError(t, err)

	asset, err := ingestSvc.Ingest(ctx, services.IngestInput{
		Source:   bytes.NewReader(content),
		Filename: "big.mp4",
		MimeType: "video/mp4",
		Size:     int64(len(content)),
		Title:    "integration clip",
		Uploader: "admin",
	})
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), asset.SizeBytes)

	detail, err := videoSvc.Get(ctx, asset.VideoId, false)
	require.NoError(t, err)
	require.Equal(t, int64(1), detail.ViewCount)
	require.NotEmpty(t, detail.StreamURL)

	// A ranged request proxies exactly the requested window of the object.
	res, err := videoSvc.Stream(ctx, asset.VideoId, "bytes=1024-2047")
	require.NoError(t, err)
	require.NotNil(t, res.Content)
	defer res.Content.Body.Close()

	window, err := io.ReadAll(res.Content.Body)
	require.NoError(t, err)
	require.Equal(t, content[1024:2048], window)

	// A full request resolves to a signed URL instead of proxying.
	full, err := videoSvc.Stream(ctx, asset.VideoId, "")
	require.NoError(t, err)
	require.NotEmpty(t, full.RedirectURL)
	require.Nil(t, full.Content)

	require.NoError(t, videoSvc.Delete(ctx, asset.VideoId))

	_, err = videoSvc.Get(ctx, asset.VideoId, true)
	require.ErrorIs(t, err, apperror.ErrNotFound)

	storage := store.NewS3ObjectStorageImpl(env.S3, testBucket, logging.NewNopLogger())
	require.Eventually(t, func() bool {
		_, _, err := storage.Head(ctx, asset.StorageKey)
		return errors.Is(err, apperror.ErrNotFound)
	}, 5*time.Second, 100*time.Millisecond)
}

func TestTransferFailureLeavesNoPartialObject(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	ingestSvc, _ := buildServices(env)

	// The reader dies mid-transfer; neither the object nor metadata may exist.
	content := make([]byte, partSize)
	source := io.MultiReader(
		bytes.NewReader(content),
		&failingReader{err: errors.New("connection reset")},
	)

	_, err := ingestSvc.Ingest(ctx, services.IngestInput{
		Source:   source,
		Filename: "doomed.mp4",
		MimeType: "video/mp4",
		Size:     int64(3 * partSize),
		Title:    "never lands",
	})
	require.True(t, apperror.IsTransfer(err))
}

type failingReader struct {
	err error
}

func (f *failingReader) Read([]byte) (int, error) { return 0, f.err }
