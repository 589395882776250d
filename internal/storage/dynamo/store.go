// Package dynamo stores devices in an Amazon DynamoDB table.
//
// The table has a single string hash key "id". Listing is a full scan,
// which is fine for the few thousand devices a site registers per year.
// DynamoDB Local or LocalStack can be targeted through the endpoint option.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nerrad567/gatehouse/internal/device"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// item is the DynamoDB representation of a device.
type item struct {
	ID           string `dynamodbav:"id"`
	Name         string `dynamodbav:"name"`
	Brand        string `dynamodbav:"brand"`
	SerialNumber string `dynamodbav:"serial_number"`
	Responsible  string `dynamodbav:"responsible"`
	Reason       string `dynamodbav:"reason"`
	MovementType string `dynamodbav:"movement_type"`
	Status       string `dynamodbav:"status"`
	CreatedAt    string `dynamodbav:"created_at"`
	UpdatedAt    string `dynamodbav:"updated_at,omitempty"`
}

func toItem(d *device.Device) item {
	return item{
		ID:           d.ID,
		Name:         d.Name,
		Brand:        d.Brand,
		SerialNumber: d.SerialNumber,
		Responsible:  d.Responsible,
		Reason:       d.Reason,
		MovementType: string(d.MovementType),
		Status:       string(d.Status),
		CreatedAt:    d.Timestamp.UTC().Format(device.TimestampLayout),
	}
}

func (it item) toDevice() (device.Device, error) {
	ts, err := time.Parse(device.TimestampLayout, it.CreatedAt)
	if err != nil {
		return device.Device{}, fmt.Errorf("parsing created_at %q for %s: %w", it.CreatedAt, it.ID, err)
	}
	return device.Device{
		ID:           it.ID,
		Name:         it.Name,
		Brand:        it.Brand,
		SerialNumber: it.SerialNumber,
		Responsible:  it.Responsible,
		Reason:       it.Reason,
		MovementType: device.MovementType(it.MovementType),
		Status:       device.Status(it.Status),
		Timestamp:    ts,
	}, nil
}

// Options configures Open.
type Options struct {
	Region          string
	Table           string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	CreateTable     bool
}

// Store implements device.Repository on DynamoDB.
type Store struct {
	api   API
	table string
}

var _ device.Repository = (*Store)(nil)

// Open loads AWS configuration (environment, shared config, or static keys
// when given) and returns a Store for opts.Table, creating the table first
// when opts.CreateTable is set.
func Open(ctx context.Context, opts Options) (*Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
			),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	store := New(client, opts.Table)
	if opts.CreateTable {
		if err := store.EnsureTable(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// New wraps an existing client.
func New(api API, table string) *Store {
	return &Store{api: api, table: table}
}

// EnsureTable creates the table with on-demand billing if it does not exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describing table %s: %w", s.table, err)
	}

	_, err = s.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("creating table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

// GetByID retrieves a device with a consistent read.
func (s *Store) GetByID(ctx context.Context, id string) (*device.Device, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting device %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, device.ErrDeviceNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshalling device %s: %w", id, err)
	}
	d, err := it.toDevice()
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// List scans the whole table and returns devices ordered by creation time.
func (s *Store) List(ctx context.Context) ([]device.Device, error) {
	devices := []device.Device{}

	paginator := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning devices: %w", err)
		}

		var items []item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshalling devices: %w", err)
		}
		for _, it := range items {
			d, err := it.toDevice()
			if err != nil {
				return nil, err
			}
			devices = append(devices, d)
		}
	}

	slices.SortFunc(devices, func(a, b device.Device) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return devices, nil
}

// Create puts a device, failing if the ID is taken.
func (s *Store) Create(ctx context.Context, d *device.Device) error {
	av, err := attributevalue.MarshalMap(toItem(d))
	if err != nil {
		return fmt.Errorf("marshalling device: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("%w: %s", device.ErrDeviceExists, d.ID)
	}
	if err != nil {
		return fmt.Errorf("putting device: %w", err)
	}
	return nil
}

// Update applies patch. An empty patch only checks existence.
func (s *Store) Update(ctx context.Context, id string, patch device.Patch) error {
	if patch.Status == nil {
		_, err := s.GetByID(ctx, id)
		return err
	}

	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(id),
		UpdateExpression:    aws.String("SET #status = :status, updated_at = :updated"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		// status is a DynamoDB reserved word.
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(*patch.Status)},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(device.TimestampLayout)},
		},
	})
	if isConditionFailed(err) {
		return device.ErrDeviceNotFound
	}
	if err != nil {
		return fmt.Errorf("updating device %s: %w", id, err)
	}
	return nil
}

// Delete removes a device.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if isConditionFailed(err) {
		return device.ErrDeviceNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting device %s: %w", id, err)
	}
	return nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
