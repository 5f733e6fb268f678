package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/commercepulse/store-monitor/internal/lifecycle"
)

// dataItem carries a JSON payload under a PK/SK key. Snapshots and daily
// counters both use it: the engine overwrites whole records by key, so an
// opaque document column is all the table needs.
type dataItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Data      string `dynamodbav:"Data"`
	Timestamp string `dynamodbav:"Timestamp"`
}

func (d *DynamoStore) putData(ctx context.Context, pk, sk string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	item := dataItem{
		PK:        pk,
		SK:        sk,
		Data:      string(data),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	_, err = d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item %s/%s: %w", pk, sk, err)
	}
	return nil
}

// UpsertSnapshot overwrites the snapshot stored under
// (snapshot_date, scope). Identical inputs produce identical stored
// records; concurrent writers race with last-write-wins semantics, which
// is safe because the computation is deterministic from the same source
// data.
func (d *DynamoStore) UpsertSnapshot(ctx context.Context, snap lifecycle.FunnelSnapshot) error {
	return d.putData(ctx, snapPrefix+snap.Scope, snap.SnapshotDate, snap)
}

// GetSnapshot returns the stored snapshot, or nil when absent.
func (d *DynamoStore) GetSnapshot(ctx context.Context, date, scope string) (*lifecycle.FunnelSnapshot, error) {
	result, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: snapPrefix + scope},
			"SK": &types.AttributeValueMemberS{Value: date},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting snapshot %s/%s: %w", date, scope, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var it dataItem
	if err := attributevalue.UnmarshalMap(result.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot item: %w", err)
	}
	var snap lifecycle.FunnelSnapshot
	if err := json.Unmarshal([]byte(it.Data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot payload: %w", err)
	}
	return &snap, nil
}

// UpsertCounters overwrites the daily counters stored under the date key.
func (d *DynamoStore) UpsertCounters(ctx context.Context, c lifecycle.DailyCounters) error {
	return d.putData(ctx, countersPK, c.Date, c)
}

// CountersInRange returns the stored daily counters for dates within
// [start, end] inclusive, ascending by date.
func (d *DynamoStore) CountersInRange(ctx context.Context, start, end string) ([]lifecycle.DailyCounters, error) {
	result, err := d.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		KeyConditionExpression: aws.String("PK = :pk AND SK BETWEEN :from AND :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: countersPK},
			":from": &types.AttributeValueMemberS{Value: start},
			":to":   &types.AttributeValueMemberS{Value: end},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying counters: %w", err)
	}

	var counters []lifecycle.DailyCounters
	for _, raw := range result.Items {
		var it dataItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			continue
		}
		var c lifecycle.DailyCounters
		if err := json.Unmarshal([]byte(it.Data), &c); err != nil {
			continue
		}
		counters = append(counters, c)
	}
	return counters, nil
}
