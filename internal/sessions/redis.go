package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/xenyhq/ragserve/internal/models"
)

const sessionTTL = 24 * time.Hour

// RedisStore keeps transcripts as JSON lists in Redis with a sliding TTL.
type RedisStore struct {
	client *redisv9.Client
}

func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redisv9.NewClient(&redisv9.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat message failed: %w", err)
	}

	key := s.sessionKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append failed: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	raw, err := s.client.LRange(ctx, s.sessionKey(sessionID), 0, -1).Result()
	if err == redisv9.Nil {
		return []models.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get history failed: %w", err)
	}

	out := make([]models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal cached message failed: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete session failed: %w", err)
	}
	return nil
}

// List scans session keys. Only suitable for admin inspection, not hot
// paths.
func (s *RedisStore) List(ctx context.Context) ([]SessionSummary, error) {
	out := []SessionSummary{}

	iter := s.client.Scan(ctx, 0, "chat:session:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		sessionID := key[len("chat:session:"):]

		msgs, err := s.History(ctx, sessionID)
		if err != nil || len(msgs) == 0 {
			continue
		}
		last := msgs[len(msgs)-1]
		out = append(out, SessionSummary{
			SessionID:    sessionID,
			CompanyID:    last.CompanyID,
			LastActivity: last.Timestamp,
			MessageCount: len(msgs),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan sessions failed: %w", err)
	}
	return out, nil
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return "chat:session:" + sessionID
}

var _ Store = (*RedisStore)(nil)
