package statesync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chainsafe/xchain-orchestrator/pkg/transfer"
)

// LogSink writes snapshots to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(_ context.Context, snap transfer.Snapshot) error {
	fields := []zap.Field{
		zap.String("transfer_id", snap.ID),
		zap.String("owner_id", snap.OwnerID),
		zap.String("kind", string(snap.Kind)),
		zap.String("status", string(snap.Status)),
		zap.Int("attempt_count", snap.AttemptCount),
	}
	if snap.SourceTxHash != "" {
		fields = append(fields, zap.String("source_tx_hash", snap.SourceTxHash))
	}
	if snap.DestinationTxHash != "" {
		fields = append(fields, zap.String("destination_tx_hash", snap.DestinationTxHash))
	}
	if snap.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", string(snap.FailureReason)))
	}
	s.logger.Info("Transfer status", fields...)
	return nil
}

func (s *LogSink) Close() error { return nil }

// RedisSink publishes snapshots as JSON on a Redis pub/sub channel.
type RedisSink struct {
	rdb     *redis.Client
	channel string
}

// NewRedisSink connects to url and verifies the connection.
func NewRedisSink(ctx context.Context, url, channel string) (*RedisSink, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisSink{rdb: rdb, channel: channel}, nil
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Publish(ctx context.Context, snap transfer.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
