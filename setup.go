package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"github.com/vidvault/media-service/config"
	"github.com/vidvault/media-service/handlers"
	"github.com/vidvault/media-service/health"
	logger "github.com/vidvault/media-service/logging"
	"github.com/vidvault/media-service/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/sdk/trace"
)

type App struct {
	Server *http.Server

	DynamoDB *dynamodb.Client
	S3       *s3.Client
	Redis    *redis.Client
	Sqs      *sqs.Client

	Config    config.Config
	AwsConfig aws.Config

	Services       *Services
	HealthChecker  *health.Checker
	TracerProvider *trace.TracerProvider
	Logger         logger.Logger
}

func SetupApp() (*App, error) {
	cfg := config.LoadConfig()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	awsCfg, err := initAWS(*cfg.AWSConfig)
	if err != nil {
		return nil, err
	}

	appLogger := logger.NewSlogLogger(logger.CreateAppLogger(cfg.Env))

	app := &App{
		DynamoDB: initDynamo(cfg, awsCfg),
		S3:       initS3(cfg, awsCfg),
		Sqs:      initSqs(cfg, awsCfg),
		Redis:    initRedis(*cfg.RedisConfig),

		Config:    cfg,
		AwsConfig: awsCfg,
		Logger:    appLogger,
	}

	if app.Config.Tracing {
		tp, err := tracing.InitTracer(context.Background(), "media-service", cfg.TracingAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to start tracing: %w", err)
		}
		log.Println("tracing in progress...")

		app.TracerProvider = tp
	}

	app.Services = BuildServices(app)
	app.HealthChecker = health.NewChecker(
		app.Services.Stores.videos,
		app.Services.Stores.storage,
	)

	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	go a.HealthChecker.Run(ctx, 5*time.Second)

	mux := http.NewServeMux()
	a.Services.Handler.Register(mux)
	mux.Handle("GET /healthz", a.HealthChecker)

	var handler http.Handler = handlers.CorsMiddleware(mux)
	if a.Config.Tracing {
		handler = otelhttp.NewHandler(handler, "media-service")
	}

	a.Server = &http.Server{
		Addr:    a.Config.ServiceConfig.HTTPAddr,
		Handler: handler,
	}

	a.Logger.Info("http server started", "addr", a.Server.Addr)
	return a.Server.ListenAndServe()
}

func initAWS(cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(
		context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func initDynamo(cfg config.Config, awsCfg aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.AWSConfig.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSConfig.Endpoint)
		}
	})
}

func initS3(cfg config.Config, awsCfg aws.Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWSConfig.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSConfig.Endpoint)
			o.UsePathStyle = true
		}
	})
}

func initSqs(cfg config.Config, awsCfg aws.Config) *sqs.Client {
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWSConfig.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSConfig.Endpoint)
		}
	})
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Host,
		Password: "",
		DB:       0,
	})
}

func (a *App) Shutdown(ctx context.Context) error {
	log.Println("starting graceful shutdown")

	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			log.Printf("http server shutdown error: %v", err)
		}
	}

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
	}

	if a.TracerProvider != nil {
		if err := a.TracerProvider.Shutdown(ctx); err != nil {
			log.Printf("tracer shutdown error: %v", err)
		}
	}

	log.Println("graceful shutdown complete")
	return nil
}
