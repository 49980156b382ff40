package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rickgao/aggression-monitor/internal/model"
)

// RedisSink publishes alerts to Redis channels.
type RedisSink struct {
	client *redis.Client
}

// alertPayload is the JSON published for structured alerts.
type alertPayload struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Direction      string    `json:"direction"`
	Magnitude      string    `json:"magnitude"`
	ReferencePrice string    `json:"reference_price"`
	BucketTime     time.Time `json:"bucket_time"`
	Mean           string    `json:"mean"`
	StdDev         string    `json:"std_dev"`
	Samples        int       `json:"samples"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewRedisSink wraps an existing client.
func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

// NewRedisClient creates a client and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Send publishes raw text to the channel named by destination.
func (s *RedisSink) Send(ctx context.Context, destination, text string) error {
	if err := s.client.Publish(ctx, destination, text).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", destination, err)
	}
	return nil
}

// SendAlert publishes the alert as JSON.
func (s *RedisSink) SendAlert(ctx context.Context, destination string, alert model.Alert) error {
	sig := alert.Signal
	data, err := json.Marshal(alertPayload{
		ID:             alert.ID.String(),
		Symbol:         sig.Symbol,
		Direction:      sig.Direction.String(),
		Magnitude:      sig.Magnitude.String(),
		ReferencePrice: sig.ReferencePrice.String(),
		BucketTime:     sig.BucketTime,
		Mean:           sig.Model.Mean.String(),
		StdDev:         sig.Model.StdDev.String(),
		Samples:        sig.Model.SampleCount,
		Text:           alert.Text,
		CreatedAt:      alert.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return s.Send(ctx, destination, string(data))
}

// Close closes the underlying client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
