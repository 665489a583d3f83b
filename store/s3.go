package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/vidvault/media-service/apperror"
	"github.com/vidvault/media-service/health"
	logger "github.com/vidvault/media-service/logging"
)

// CompletedPart is one acknowledged part of a multipart upload.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// ObjectStorage is the thin transport to the object store. Operations are
// idempotent with respect to key and keep no local state between calls.
type ObjectStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string, byteRange string) (io.ReadCloser, int64, error)
	Head(ctx context.Context, key string) (size int64, contentType string, err error)
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	CreateMultipart(ctx context.Context, key string, contentType string) (string, error)
	UploadPart(ctx context.Context, key string, uploadID string, partNumber int32, body []byte) (string, error)
	CompleteMultipart(ctx context.Context, key string, uploadID string, parts []CompletedPart) error
	AbortMultipart(ctx context.Context, key string, uploadID string) error

	health.ReadinessCheck
}

type S3ObjectStorageImpl struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	bucketName string

	logger logger.Logger
}

func NewS3ObjectStorageImpl(client *s3.Client, bucketName string, l logger.Logger) *S3ObjectStorageImpl {
	return &S3ObjectStorageImpl{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucketName: bucketName,
		logger:     l,
	}
}

func (s *S3ObjectStorageImpl) IsReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	})
	return err
}

func (s *S3ObjectStorageImpl) Name() string {
	return fmt.Sprintf("ObjectStorage[%s]", s.bucketName)
}

func (s *S3ObjectStorageImpl) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("failed to put object", "key", key, "error", err)
		return fmt.Errorf("failed to put object: %w", err)
	}

	s.logger.Debug("put object", "key", key, "size", size)
	return nil
}

// Get streams the object, optionally restricted to byteRange (an HTTP Range
// header value such as "bytes=0-99"). Returns the body and its content length.
func (s *S3ObjectStorageImpl) Get(ctx context.Context, key string, byteRange string) (io.ReadCloser, int64, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}
	if byteRange != "" {
		in.Range = aws.String(byteRange)
	}

	out, err := s.client.GetObject(ctx, in)
	if err != nil {
		if isNotFound(err) {
			return nil, 0, apperror.ErrNotFound
		}
		s.logger.Error("failed to get object", "key", key, "range", byteRange, "error", err)
		return nil, 0, fmt.Errorf("failed to get object: %w", err)
	}

	return out.Body, aws.ToInt64(out.ContentLength), nil
}

func (s *S3ObjectStorageImpl) Head(ctx context.Context, key string) (int64, string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, "", apperror.ErrNotFound
		}
		s.logger.Error("failed to head object", "key", key, "error", err)
		return 0, "", fmt.Errorf("failed to head object: %w", err)
	}

	return aws.ToInt64(out.ContentLength), aws.ToString(out.ContentType), nil
}

// Delete removes the object. Deleting an absent key is not an error at this
// layer; callers decide whether absence is significant.
func (s *S3ObjectStorageImpl) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("failed to delete object", "key", key, "error", err)
		return fmt.Errorf("failed to delete object: %w", err)
	}

	s.logger.Info("deleted object", "key", key)
	return nil
}

// SignedURL issues a fresh presigned GET for exactly this key. Never cache
// the result; each call may legitimately produce a different URL.
func (s *S3ObjectStorageImpl) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key cannot be empty")
	}

	presigned, err := s.presigner.PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(s.bucketName),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(ttl),
	)
	if err != nil {
		s.logger.Error("failed to presign object", "key", key, "error", err)
		return "", err
	}

	return presigned.URL, nil
}

func (s *S3ObjectStorageImpl) CreateMultipart(ctx context.Context, key string, contentType string) (string, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("failed to create multipart upload", "key", key, "error", err)
		return "", fmt.Errorf("failed to create multipart upload: %w", err)
	}

	s.logger.Debug("created multipart upload", "key", key, "upload_id", aws.ToString(out.UploadId))
	return aws.ToString(out.UploadId), nil
}

func (s *S3ObjectStorageImpl) UploadPart(ctx context.Context, key string, uploadID string, partNumber int32, body []byte) (string, error) {
	out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		s.logger.Error("failed to upload part", "key", key, "part_number", partNumber, "error", err)
		return "", fmt.Errorf("failed to upload part %d: %w", partNumber, err)
	}

	return aws.ToString(out.ETag), nil
}

func (s *S3ObjectStorageImpl) CompleteMultipart(ctx context.Context, key string, uploadID string, parts []CompletedPart) error {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		}
	}

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucketName),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		s.logger.Error("failed to complete multipart upload", "key", key, "upload_id", uploadID, "error", err)
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	s.logger.Info("completed multipart upload", "key", key, "upload_id", uploadID, "parts", len(parts))
	return nil
}

// AbortMultipart discards every committed part; after it returns nothing is
// visible at the destination key.
func (s *S3ObjectStorageImpl) AbortMultipart(ctx context.Context, key string, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucketName),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		s.logger.Error("failed to abort multipart upload", "key", key, "upload_id", uploadID, "error", err)
		return err
	}

	s.logger.Warn("aborted multipart upload", "key", key, "upload_id", uploadID)
	return nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
