package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taskflow/internal/domain/models"

	"github.com/go-redis/redis/v8"
)

const channelPrefix = "notifications:"

// Channel is the pub/sub channel carrying recipientID's notifications.
func Channel(recipientID string) string {
	return channelPrefix + recipientID
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(addr, password string, db int) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Ping checks the connection once at startup.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Publish(ctx context.Context, n *models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return p.client.Publish(ctx, Channel(n.RecipientID), payload).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
