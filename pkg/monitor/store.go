package monitor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"omni-swap/pkg/types"
)

const (
	// monitorHashKey is the durable mirror of in-flight transactions,
	// keyed swapId:stepIndex
	monitorHashKey = "monitor:transactions"

	// monitorChannel carries freshly tracked entries to the running
	// monitor loops
	monitorChannel = "monitor:new"
)

// TxStore mirrors in-flight transactions into durable storage so a
// restart resumes monitoring where it left off
type TxStore interface {
	Save(ctx context.Context, tx *types.MonitoredTransaction) error
	Remove(ctx context.Context, key string) error
	LoadAll(ctx context.Context) ([]*types.MonitoredTransaction, error)
}

// RedisTxStore keeps the mirror in a Redis hash and announces new entries
// over pubsub
type RedisTxStore struct {
	client *redis.Client
}

// NewRedisTxStore creates a store over an existing Redis client
func NewRedisTxStore(client *redis.Client) *RedisTxStore {
	return &RedisTxStore{client: client}
}

// Save writes or overwrites the entry under its swapId:stepIndex key
func (s *RedisTxStore) Save(ctx context.Context, tx *types.MonitoredTransaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to encode monitored transaction: %w", err)
	}
	if err := s.client.HSet(ctx, monitorHashKey, tx.Key(), data).Err(); err != nil {
		return fmt.Errorf("failed to persist monitored transaction: %w", err)
	}
	return nil
}

// Remove deletes the entry; removing an absent key is not an error
func (s *RedisTxStore) Remove(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, monitorHashKey, key).Err(); err != nil {
		return fmt.Errorf("failed to remove monitored transaction: %w", err)
	}
	return nil
}

// LoadAll returns every persisted entry; called once at startup
func (s *RedisTxStore) LoadAll(ctx context.Context) ([]*types.MonitoredTransaction, error) {
	entries, err := s.client.HGetAll(ctx, monitorHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load monitored transactions: %w", err)
	}

	txs := make([]*types.MonitoredTransaction, 0, len(entries))
	for key, raw := range entries {
		var tx types.MonitoredTransaction
		if err := json.Unmarshal([]byte(raw), &tx); err != nil {
			return nil, fmt.Errorf("corrupt monitor entry %s: %w", key, err)
		}
		txs = append(txs, &tx)
	}
	return txs, nil
}

// Publish announces a new entry to running monitor loops
func (s *RedisTxStore) Publish(ctx context.Context, tx *types.MonitoredTransaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to encode monitored transaction: %w", err)
	}
	if err := s.client.Publish(ctx, monitorChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish monitored transaction: %w", err)
	}
	return nil
}

// Subscribe returns the pubsub subscription for new entries
func (s *RedisTxStore) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, monitorChannel)
}
