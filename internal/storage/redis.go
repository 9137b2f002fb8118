package storage

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// BanListKey is the Redis key holding the ban list message ID.
const BanListKey = "gatekeeper:ban_list_message_id"

// RedisStore keeps the pointer record in Redis for deployments without a persistent disk.
type RedisStore struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewRedisStore connects to the Redis server at addr.
func NewRedisStore(addr string, logger *zap.Logger) (*RedisStore, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		ClientName:   "gatekeeper",
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	return NewRedisStoreWithClient(client, logger), nil
}

// NewRedisStoreWithClient wraps an existing client. The store takes ownership of it.
func NewRedisStoreWithClient(client rueidis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.Named("redis_store"),
	}
}

// BanListMessageID reads the record. A missing key is the valid initial state.
func (s *RedisStore) BanListMessageID(ctx context.Context) (snowflake.ID, error) {
	value, err := s.client.Do(ctx, s.client.B().Get().Key(BanListKey).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read pointer record: %w", err)
	}

	id, err := snowflake.Parse(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return id, nil
}

// SetBanListMessageID overwrites the record.
func (s *RedisStore) SetBanListMessageID(ctx context.Context, messageID snowflake.ID) error {
	cmd := s.client.B().Set().Key(BanListKey).Value(messageID.String()).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to write pointer record: %w", err)
	}

	s.logger.Debug("Saved ban list message ID", zap.Uint64("messageID", uint64(messageID)))
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	s.client.Close()
	return nil
}
