package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/commercepulse/store-monitor/internal/config"
	"github.com/commercepulse/store-monitor/internal/lifecycle"
)

// Key prefixes of the single-table layout.
const (
	storePrefix   = "STORE#"
	eventPrefix   = "EVENT#"
	ordersPrefix  = "ORDERS#"
	snapPrefix    = "SNAPSHOT#"
	countersPK    = "COUNTERS"
	storeMetaSK   = "META"
	scanPageLimit = 500
)

// DynamoStore is the DynamoDB/S3-backed implementation of every
// collaborator interface the analytics engine consumes. One table holds
// store records, status-change events, daily order aggregates, funnel
// snapshots and daily counters, distinguished by PK prefix.
type DynamoStore struct {
	db     *dynamodb.Client
	s3c    *s3.Client
	table  string
	bucket string
}

// New creates a DynamoStore from storage configuration.
func New(ctx context.Context, cfg config.StorageConfig) (*DynamoStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSProfile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	dbOpts := func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}

	return &DynamoStore{
		db:     dynamodb.NewFromConfig(awsCfg, dbOpts),
		s3c:    s3.NewFromConfig(awsCfg),
		table:  cfg.TableName,
		bucket: cfg.S3Bucket,
	}, nil
}

// storeItem is a roster record as stored in DynamoDB.
type storeItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	StoreID   string `dynamodbav:"StoreID"`
	Seq       string `dynamodbav:"Seq,omitempty"`
	Status    string `dynamodbav:"Status"`
	OwnerID   string `dynamodbav:"OwnerID,omitempty"`
	CreatedAt string `dynamodbav:"CreatedAt"`
}

func (it storeItem) toStore() lifecycle.Store {
	created, _ := time.Parse(time.RFC3339, it.CreatedAt)
	return lifecycle.Store{
		StoreID:   it.StoreID,
		Seq:       it.Seq,
		Status:    it.Status,
		OwnerID:   it.OwnerID,
		CreatedAt: created,
	}
}

// PutStore upserts a roster record. Status mutation itself happens outside
// the analytics core; this exists for seeding and operational tooling.
func (d *DynamoStore) PutStore(ctx context.Context, st lifecycle.Store) error {
	item := storeItem{
		PK:        storePrefix + st.StoreID,
		SK:        storeMetaSK,
		StoreID:   st.StoreID,
		Seq:       st.Seq,
		Status:    st.Status,
		OwnerID:   st.OwnerID,
		CreatedAt: st.CreatedAt.UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling store item: %w", err)
	}
	_, err = d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting store %s: %w", st.StoreID, err)
	}
	return nil
}

// ListStores returns every roster record via a full prefix scan.
func (d *DynamoStore) ListStores(ctx context.Context) ([]lifecycle.Store, error) {
	return d.scanStores(ctx, "begins_with(PK, :pk)", map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: storePrefix},
	})
}

// ListStoresByStatus returns roster records matching status via a
// filtered scan.
func (d *DynamoStore) ListStoresByStatus(ctx context.Context, status string) ([]lifecycle.Store, error) {
	return d.scanStores(ctx, "begins_with(PK, :pk) AND #status = :status", map[string]types.AttributeValue{
		":pk":     &types.AttributeValueMemberS{Value: storePrefix},
		":status": &types.AttributeValueMemberS{Value: status},
	})
}

func (d *DynamoStore) scanStores(ctx context.Context, filter string, values map[string]types.AttributeValue) ([]lifecycle.Store, error) {
	input := &dynamodb.ScanInput{
		TableName:                 aws.String(d.table),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeValues: values,
	}
	if _, ok := values[":status"]; ok {
		input.ExpressionAttributeNames = map[string]string{"#status": "Status"}
	}

	var stores []lifecycle.Store
	paginator := dynamodb.NewScanPaginator(d.db, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning stores: %w", err)
		}
		for _, raw := range page.Items {
			var it storeItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				continue
			}
			stores = append(stores, it.toStore())
		}
	}

	sort.Slice(stores, func(i, j int) bool { return stores[i].StoreID < stores[j].StoreID })
	return stores, nil
}

// eventItem is one status-change log entry as stored in DynamoDB. The SK
// is the RFC3339 changed_at timestamp, which keeps a store's events
// range-queryable in order.
type eventItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	StoreID     string `dynamodbav:"StoreID"`
	OldStatus   string `dynamodbav:"OldStatus,omitempty"`
	NewStatus   string `dynamodbav:"NewStatus"`
	ChangedAt   string `dynamodbav:"ChangedAt"`
	ChangedDate string `dynamodbav:"ChangedDate,omitempty"`
}

func (it eventItem) toEvent() lifecycle.StatusChangeEvent {
	at, _ := time.Parse(time.RFC3339, it.ChangedAt)
	return lifecycle.StatusChangeEvent{
		StoreID:     it.StoreID,
		OldStatus:   it.OldStatus,
		NewStatus:   it.NewStatus,
		ChangedAt:   at,
		ChangedDate: it.ChangedDate,
	}
}

// AppendEvent writes one status-change entry. The log is append-only;
// identical (store, changed_at) writes overwrite, which is harmless for an
// immutable record.
func (d *DynamoStore) AppendEvent(ctx context.Context, ev lifecycle.StatusChangeEvent) error {
	item := eventItem{
		PK:          eventPrefix + ev.StoreID,
		SK:          ev.ChangedAt.UTC().Format(time.RFC3339),
		StoreID:     ev.StoreID,
		OldStatus:   ev.OldStatus,
		NewStatus:   ev.NewStatus,
		ChangedAt:   ev.ChangedAt.UTC().Format(time.RFC3339),
		ChangedDate: ev.ChangedDate,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling event item: %w", err)
	}
	_, err = d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting event for %s: %w", ev.StoreID, err)
	}
	return nil
}

// EventsByStore returns a store's events ordered by changed_at ascending
// (indexed range query on the event partition).
func (d *DynamoStore) EventsByStore(ctx context.Context, storeID string) ([]lifecycle.StatusChangeEvent, error) {
	result, err := d.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: eventPrefix + storeID},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying events for %s: %w", storeID, err)
	}

	var events []lifecycle.StatusChangeEvent
	for _, raw := range result.Items {
		var it eventItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			continue
		}
		events = append(events, it.toEvent())
	}
	return events, nil
}

// EventsByDate returns all events for one calendar day via a filtered
// scan across event partitions.
func (d *DynamoStore) EventsByDate(ctx context.Context, date string) ([]lifecycle.StatusChangeEvent, error) {
	return d.scanEvents(ctx, "begins_with(PK, :pk) AND ChangedDate = :date", map[string]types.AttributeValue{
		":pk":   &types.AttributeValueMemberS{Value: eventPrefix},
		":date": &types.AttributeValueMemberS{Value: date},
	})
}

// AllEvents returns the entire status-change history.
func (d *DynamoStore) AllEvents(ctx context.Context) ([]lifecycle.StatusChangeEvent, error) {
	return d.scanEvents(ctx, "begins_with(PK, :pk)", map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: eventPrefix},
	})
}

func (d *DynamoStore) scanEvents(ctx context.Context, filter string, values map[string]types.AttributeValue) ([]lifecycle.StatusChangeEvent, error) {
	var events []lifecycle.StatusChangeEvent
	paginator := dynamodb.NewScanPaginator(d.db, &dynamodb.ScanInput{
		TableName:                 aws.String(d.table),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeValues: values,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning events: %w", err)
		}
		for _, raw := range page.Items {
			var it eventItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				continue
			}
			events = append(events, it.toEvent())
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].ChangedAt.Equal(events[j].ChangedAt) {
			return events[i].ChangedAt.Before(events[j].ChangedAt)
		}
		return events[i].StoreID < events[j].StoreID
	})
	return events, nil
}
