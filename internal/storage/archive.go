package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/commercepulse/store-monitor/internal/lifecycle"
)

// ArchiveRunSummary writes a JSON summary of a recalculation run to S3.
// No-op when no bucket is configured.
func (d *DynamoStore) ArchiveRunSummary(ctx context.Context, sum lifecycle.RunSummary) error {
	if d.bucket == "" {
		return nil
	}

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run summary: %w", err)
	}

	key := fmt.Sprintf("counters/%s_%s/run-%s.json", sum.FromDate, sum.ToDate, sum.RunID)
	_, err = d.s3c.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting run summary to S3: %w", err)
	}
	return nil
}
