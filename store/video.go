package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/vidvault/media-service/apperror"
	"github.com/vidvault/media-service/health"
	"github.com/vidvault/media-service/models"
	"github.com/vidvault/media-service/retries"
)

type VideoStore interface {
	Create(ctx context.Context, asset models.VideoAsset) error
	Get(ctx context.Context, videoId string) (*models.VideoAsset, error)
	List(ctx context.Context) ([]models.VideoAsset, error)
	ListPublic(ctx context.Context) ([]models.VideoAsset, error)
	Update(ctx context.Context, asset models.VideoAsset) error
	Delete(ctx context.Context, videoId string) error

	health.ReadinessCheck
}

type DynamoDbVideoStoreImpl struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoDbVideoStoreImpl(client *dynamodb.Client, tableName string) *DynamoDbVideoStoreImpl {
	return &DynamoDbVideoStoreImpl{
		client:    client,
		tableName: tableName,
	}
}

func (s *DynamoDbVideoStoreImpl) IsReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	return retries.Retry(
		ctx,
		retries.HealthAttempts,
		retries.HealthBaseDelay,
		func() error {
			_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
				TableName: aws.String(s.tableName),
			})
			return err
		},
		retries.IsRetriableDbError,
	)
}

func (s *DynamoDbVideoStoreImpl) Name() string {
	return "VideoStore[" + s.tableName + "]"
}

func (s *DynamoDbVideoStoreImpl) Create(ctx context.Context, asset models.VideoAsset) error {
	item, err := attributevalue.MarshalMap(asset)
	if err != nil {
		return err
	}

	return retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
				TableName:           aws.String(s.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(video_id)"),
			})
			return err
		},
		retries.IsRetriableDbError,
	)
}

func (s *DynamoDbVideoStoreImpl) Get(ctx context.Context, videoId string) (*models.VideoAsset, error) {
	var asset models.VideoAsset

	err := retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					"video_id": &types.AttributeValueMemberS{Value: videoId},
				},
			})
			if err != nil {
				return err
			}

			if out.Item == nil {
				return apperror.ErrNotFound
			}

			return attributevalue.UnmarshalMap(out.Item, &asset)
		},
		retries.IsRetriableDbError,
	)
	if err != nil {
		return nil, err
	}

	return &asset, nil
}

func (s *DynamoDbVideoStoreImpl) List(ctx context.Context) ([]models.VideoAsset, error) {
	return s.scan(ctx, nil)
}

func (s *DynamoDbVideoStoreImpl) ListPublic(ctx context.Context) ([]models.VideoAsset, error) {
	return s.scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.tableName),
		FilterExpression: aws.String("visibility = :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
}

func (s *DynamoDbVideoStoreImpl) scan(ctx context.Context, in *dynamodb.ScanInput) ([]models.VideoAsset, error) {
	if in == nil {
		in = &dynamodb.ScanInput{TableName: aws.String(s.tableName)}
	}

	var assets []models.VideoAsset

	paginator := dynamodb.NewScanPaginator(s.client, in)
	for paginator.HasMorePages() {
		var page *dynamodb.ScanOutput

		err := retries.Retry(
			ctx,
			retries.DefaultAttempts,
			retries.DefaultBaseDelay,
			func() error {
				var err error
				page, err = paginator.NextPage(ctx)
				return err
			},
			retries.IsRetriableDbError,
		)
		if err != nil {
			return nil, err
		}

		var batch []models.VideoAsset
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		assets = append(assets, batch...)
	}

	// Scan order is undefined; newest-first is what both listings expect.
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].CreatedAt.After(assets[j].CreatedAt)
	})

	return assets, nil
}

// Update overwrites the whole record. VideoAsset mutations are whole-record
// read-modify-writes, so concurrent writers are last-writer-wins.
func (s *DynamoDbVideoStoreImpl) Update(ctx context.Context, asset models.VideoAsset) error {
	item, err := attributevalue.MarshalMap(asset)
	if err != nil {
		return err
	}

	return retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
				TableName:           aws.String(s.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_exists(video_id)"),
			})
			if err != nil && isConditionFailed(err) {
				return apperror.ErrNotFound
			}
			return err
		},
		retries.IsRetriableDbError,
	)
}

func (s *DynamoDbVideoStoreImpl) Delete(ctx context.Context, videoId string) error {
	return retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					"video_id": &types.AttributeValueMemberS{Value: videoId},
				},
				ConditionExpression: aws.String("attribute_exists(video_id)"),
			})
			if err != nil && isConditionFailed(err) {
				return apperror.ErrNotFound
			}
			return err
		},
		retries.IsRetriableDbError,
	)
}

func isConditionFailed(err error) bool {
	var cond *types.ConditionalCheckFailedException
	return errors.As(err, &cond)
}
