package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rickgao/aggression-monitor/internal/model"
)

const (
	// dynamoBatchLimit is the BatchWriteItem request cap.
	dynamoBatchLimit = 25

	dynamoMaxAttempts = 5
)

// BatchWriter is the subset of the DynamoDB client used by Dynamo.
type BatchWriter interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// dynamoItem keeps the attribute layout of the existing TradeData tables.
type dynamoItem struct {
	TradeID      string `dynamodbav:"trade_id"`
	Symbol       string `dynamodbav:"symbol"`
	Price        string `dynamodbav:"price"`
	Qty          string `dynamodbav:"qty"`
	QuoteQty     string `dynamodbav:"quote_qty"`
	Time         string `dynamodbav:"time"` // Unix ms
	IsBuyerMaker bool   `dynamodbav:"isBuyerMaker"`
}

// Dynamo writes trades to a DynamoDB table. Puts overwrite, so re-saving is
// harmless but every trade is counted as written.
type Dynamo struct {
	client  BatchWriter
	table   string
	backoff time.Duration
}

// NewDynamo creates a sink over an existing client.
func NewDynamo(client BatchWriter, table string) *Dynamo {
	return &Dynamo{client: client, table: table, backoff: 100 * time.Millisecond}
}

// NewDynamoClient loads AWS credentials from the default chain.
// A non-empty endpoint targets DynamoDB Local.
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (d *Dynamo) Name() string {
	return "dynamodb"
}

// SaveTrades writes in chunks of 25, retrying unprocessed items with backoff.
func (d *Dynamo) SaveTrades(ctx context.Context, trades []model.Trade) (int, error) {
	written := 0
	for start := 0; start < len(trades); start += dynamoBatchLimit {
		end := min(start+dynamoBatchLimit, len(trades))

		requests := make([]types.WriteRequest, 0, end-start)
		for _, t := range trades[start:end] {
			item, err := attributevalue.MarshalMap(dynamoItem{
				TradeID:      strconv.FormatInt(t.ID, 10),
				Symbol:       t.Symbol,
				Price:        t.Price.String(),
				Qty:          t.Quantity.String(),
				QuoteQty:     t.Notional().String(),
				Time:         strconv.FormatInt(t.Time.UnixMilli(), 10),
				IsBuyerMaker: t.IsBuyerMaker,
			})
			if err != nil {
				return written, fmt.Errorf("marshal trade %d: %w", t.ID, err)
			}
			requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}

		if err := d.writeChunk(ctx, requests); err != nil {
			return written, err
		}
		written += len(requests)
	}
	return written, nil
}

func (d *Dynamo) writeChunk(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{d.table: requests}
	backoff := d.backoff

	for attempt := 0; attempt < dynamoMaxAttempts; attempt++ {
		out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("batch write: %w", err)
		}
		if len(out.UnprocessedItems) == 0 || len(out.UnprocessedItems[d.table]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("batch write: %d items unprocessed after %d attempts", len(pending[d.table]), dynamoMaxAttempts)
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (d *Dynamo) Close() error {
	return nil
}
