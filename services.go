package main

import (
	"fmt"

	"github.com/vidvault/media-service/caching"
	"github.com/vidvault/media-service/handlers"
	"github.com/vidvault/media-service/queues"
	"github.com/vidvault/media-service/services"
	"github.com/vidvault/media-service/store"
)

type Stores struct {
	videos  store.VideoStore
	storage store.ObjectStorage
}

type Services struct {
	Auth      services.AuthService
	Ingestion services.IngestionService
	Videos    services.VideoService

	Stores *Stores

	Handler *handlers.HttpHandler
}

func BuildServices(app *App) *Services {
	storage := store.NewS3ObjectStorageImpl(app.S3, app.Config.StorageConfig.Bucket, app.Logger)
	videoStore := store.NewDynamoDbVideoStoreImpl(app.DynamoDB, app.Config.DynamoDBConfig.VideosTableName)

	uploader := store.NewMultipartUploader(
		storage,
		app.Config.StorageConfig.PartSize,
		app.Config.StorageConfig.MaxConcurrency,
		app.Logger,
	)

	var cachingSvc caching.CachingService = caching.NewNullCachingService()
	if app.Redis != nil {
		cachingSvc = caching.NewRedisCachingService(app.Redis)
	}

	var events queues.EventPublisher = queues.NewNullEventPublisher()
	if app.Config.ServiceConfig.EventsQueueName != "" {
		queueUrl := fmt.Sprintf("https://sqs.%s.amazonaws.com/%s/%s",
			app.Config.AWSConfig.Region, app.Config.AWSConfig.AccountID, app.Config.ServiceConfig.EventsQueueName)
		events = queues.NewSqsEventPublisherImpl(app.Sqs, queueUrl, app.Logger)
	}

	authSvc := services.NewAuthServiceImpl(app.Config.AuthConfig, app.Logger)
	ingestSvc := services.NewIngestionServiceImpl(uploader, storage, videoStore, cachingSvc, events, app.Logger)
	videoSvc := services.NewVideoServiceImpl(videoStore, storage, cachingSvc, events, app.Config.StorageConfig.SignedURLTTL, app.Logger)

	handler := handlers.NewHttpHandler(authSvc, ingestSvc, videoSvc, app.Logger)

	return &Services{
		Auth:      authSvc,
		Ingestion: ingestSvc,
		Videos:    videoSvc,

		Stores: &Stores{
			videos:  videoStore,
			storage: storage,
		},

		Handler: handler,
	}
}
