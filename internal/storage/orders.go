package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/commercepulse/store-monitor/internal/lifecycle"
)

// orderItem is one pre-aggregated order/day row. The SK is the order
// date, so one partition per seq holds that store's daily history.
type orderItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Seq        string `dynamodbav:"Seq"`
	OrderDate  string `dynamodbav:"OrderDate"`
	OrderCount int    `dynamodbav:"OrderCount"`
}

// PutOrderAggregate upserts one order/day row.
func (d *DynamoStore) PutOrderAggregate(ctx context.Context, agg lifecycle.DailyOrderAggregate) error {
	item := orderItem{
		PK:         ordersPrefix + agg.Seq,
		SK:         agg.OrderDate,
		Seq:        agg.Seq,
		OrderDate:  agg.OrderDate,
		OrderCount: agg.OrderCount,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling order item: %w", err)
	}
	_, err = d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting order aggregate %s/%s: %w", agg.Seq, agg.OrderDate, err)
	}
	return nil
}

// ActiveSeqs returns every seq with a positive order count on any day.
func (d *DynamoStore) ActiveSeqs(ctx context.Context) (map[string]struct{}, error) {
	return d.activeSeqs(ctx, "begins_with(PK, :pk) AND OrderCount > :zero", map[string]types.AttributeValue{
		":pk":   &types.AttributeValueMemberS{Value: ordersPrefix},
		":zero": &types.AttributeValueMemberN{Value: "0"},
	})
}

// ActiveSeqsInRange returns every seq with a positive order count within
// [start, end] inclusive.
func (d *DynamoStore) ActiveSeqsInRange(ctx context.Context, start, end string) (map[string]struct{}, error) {
	return d.activeSeqs(ctx, "begins_with(PK, :pk) AND OrderCount > :zero AND SK BETWEEN :from AND :to", map[string]types.AttributeValue{
		":pk":   &types.AttributeValueMemberS{Value: ordersPrefix},
		":zero": &types.AttributeValueMemberN{Value: "0"},
		":from": &types.AttributeValueMemberS{Value: start},
		":to":   &types.AttributeValueMemberS{Value: end},
	})
}

func (d *DynamoStore) activeSeqs(ctx context.Context, filter string, values map[string]types.AttributeValue) (map[string]struct{}, error) {
	seqs := make(map[string]struct{})
	paginator := dynamodb.NewScanPaginator(d.db, &dynamodb.ScanInput{
		TableName:                 aws.String(d.table),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeValues: values,
		ProjectionExpression:      aws.String("Seq"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning active seqs: %w", err)
		}
		for _, raw := range page.Items {
			var it orderItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				continue
			}
			if it.Seq != "" {
				seqs[it.Seq] = struct{}{}
			}
		}
	}
	return seqs, nil
}

// OrdersOnDate returns seq -> order count for one calendar day.
func (d *DynamoStore) OrdersOnDate(ctx context.Context, date string) (map[string]int, error) {
	counts := make(map[string]int)
	paginator := dynamodb.NewScanPaginator(d.db, &dynamodb.ScanInput{
		TableName:        aws.String(d.table),
		FilterExpression: aws.String("begins_with(PK, :pk) AND SK = :date AND OrderCount > :zero"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: ordersPrefix},
			":date": &types.AttributeValueMemberS{Value: date},
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning orders for %s: %w", date, err)
		}
		for _, raw := range page.Items {
			var it orderItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				continue
			}
			counts[it.Seq] += it.OrderCount
		}
	}
	return counts, nil
}

// KnownDates returns every distinct order_date in the table, ascending.
func (d *DynamoStore) KnownDates(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	paginator := dynamodb.NewScanPaginator(d.db, &dynamodb.ScanInput{
		TableName:        aws.String(d.table),
		FilterExpression: aws.String("begins_with(PK, :pk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: ordersPrefix},
		},
		ProjectionExpression: aws.String("OrderDate"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning order dates: %w", err)
		}
		for _, raw := range page.Items {
			var it orderItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				continue
			}
			if it.OrderDate != "" {
				seen[it.OrderDate] = struct{}{}
			}
		}
	}

	dates := make([]string, 0, len(seen))
	for date := range seen {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

// ScanRange returns one page of order aggregates within [start, end]
// inclusive. The continuation token wraps DynamoDB's LastEvaluatedKey; an
// empty returned token means the scan is exhausted.
func (d *DynamoStore) ScanRange(ctx context.Context, start, end, token string) ([]lifecycle.DailyOrderAggregate, string, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(d.table),
		FilterExpression: aws.String("begins_with(PK, :pk) AND SK BETWEEN :from AND :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: ordersPrefix},
			":from": &types.AttributeValueMemberS{Value: start},
			":to":   &types.AttributeValueMemberS{Value: end},
		},
		Limit: aws.Int32(scanPageLimit),
	}
	if token != "" {
		startKey, err := decodeToken(token)
		if err != nil {
			return nil, "", fmt.Errorf("decoding continuation token: %w", err)
		}
		input.ExclusiveStartKey = startKey
	}

	result, err := d.db.Scan(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("scanning order aggregates: %w", err)
	}

	var aggs []lifecycle.DailyOrderAggregate
	for _, raw := range result.Items {
		var it orderItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			continue
		}
		aggs = append(aggs, lifecycle.DailyOrderAggregate{
			Seq:        it.Seq,
			OrderDate:  it.OrderDate,
			OrderCount: it.OrderCount,
		})
	}

	next := ""
	if len(result.LastEvaluatedKey) > 0 {
		next, err = encodeToken(result.LastEvaluatedKey)
		if err != nil {
			return nil, "", fmt.Errorf("encoding continuation token: %w", err)
		}
	}
	return aggs, next, nil
}

// Continuation tokens are the base64-encoded JSON of the string key pair.
// Both key attributes of this table are strings, so the round trip is
// lossless.

func encodeToken(key map[string]types.AttributeValue) (string, error) {
	plain := make(map[string]string, len(key))
	for name, av := range key {
		s, ok := av.(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("unexpected key attribute type for %s", name)
		}
		plain[name] = s.Value
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decodeToken(token string) (map[string]types.AttributeValue, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	var plain map[string]string
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, err
	}
	key := make(map[string]types.AttributeValue, len(plain))
	for name, value := range plain {
		key[name] = &types.AttributeValueMemberS{Value: value}
	}
	return key, nil
}
