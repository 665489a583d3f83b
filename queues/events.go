package queues

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	logger "github.com/vidvault/media-service/logging"
	"github.com/vidvault/media-service/models"
)

type VideoIngestedEvent struct {
	VideoId    string    `json:"video_id"`
	StorageKey string    `json:"storage_key"`
	SizeBytes  int64     `json:"size_bytes"`
	Uploader   string    `json:"uploader"`
	OccurredAt time.Time `json:"occurred_at"`
}

type VideoDeletedEvent struct {
	VideoId    string    `json:"video_id"`
	StorageKey string    `json:"storage_key"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher announces asset lifecycle changes to downstream consumers.
// Publication is best-effort; the ingestion and delete paths never fail on a
// publish error.
type EventPublisher interface {
	PublishVideoIngested(ctx context.Context, asset *models.VideoAsset)
	PublishVideoDeleted(ctx context.Context, videoId string, storageKey string)
}

type SqsEventPublisherImpl struct {
	client   *sqs.Client
	queueUrl string

	logger logger.Logger
}

func NewSqsEventPublisherImpl(client *sqs.Client, queueUrl string, l logger.Logger) *SqsEventPublisherImpl {
	return &SqsEventPublisherImpl{
		client:   client,
		queueUrl: queueUrl,
		logger:   l,
	}
}

func (p *SqsEventPublisherImpl) PublishVideoIngested(ctx context.Context, asset *models.VideoAsset) {
	p.send(ctx, "video.ingested", VideoIngestedEvent{
		VideoId:    asset.VideoId,
		StorageKey: asset.StorageKey,
		SizeBytes:  asset.SizeBytes,
		Uploader:   asset.UploaderIdentity,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *SqsEventPublisherImpl) PublishVideoDeleted(ctx context.Context, videoId string, storageKey string) {
	p.send(ctx, "video.deleted", VideoDeletedEvent{
		VideoId:    videoId,
		StorageKey: storageKey,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *SqsEventPublisherImpl) send(ctx context.Context, eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to marshal event", "event_type", eventType, "error", err)
		return
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueUrl),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		p.logger.Error("failed to publish event", "event_type", eventType, "error", err)
		return
	}

	p.logger.Debug("event published", "event_type", eventType)
}

// NullEventPublisher drops every event. Used when no queue is configured and
// in tests.
type NullEventPublisher struct{}

func NewNullEventPublisher() *NullEventPublisher { return &NullEventPublisher{} }

func (*NullEventPublisher) PublishVideoIngested(context.Context, *models.VideoAsset) {}

func (*NullEventPublisher) PublishVideoDeleted(context.Context, string, string) {}
