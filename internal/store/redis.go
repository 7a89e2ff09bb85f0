package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"ludoarena/internal/domain"
)

const leaderboardKey = "leaderboard:wins"

func userKey(userID string) string    { return "user:" + userID }
func sessionKey(sessionID string) string { return "session:" + sessionID }

// RedisStore is the durable backend. It implements the persisted-state
// layout verbatim: user:{id} JSON blobs, a leaderboard:wins sorted set, and
// session:{id} blobs carrying their own TTL.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string, db int) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client exposes the underlying connection for callers outside this
// package that need raw Redis primitives (the websocket-connect rate
// limiter reuses this instead of opening a second connection).
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	raw, err := s.client.Get(ctx, userKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *RedisStore) Put(ctx context.Context, u *domain.User) error {
	u.LastUpdate = time.Now()
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, userKey(u.UserID), raw, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, userKey(userID))
	pipe.ZRem(ctx, leaderboardKey, userID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ListAll(ctx context.Context) ([]*domain.User, error) {
	var (
		cursor uint64
		out    []*domain.User
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "user:*", 200).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			raw, err := s.client.Get(ctx, k).Bytes()
			if err != nil {
				continue
			}
			var u domain.User
			if err := json.Unmarshal(raw, &u); err != nil {
				continue
			}
			out = append(out, &u)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (s *RedisStore) LeaderboardUpsert(ctx context.Context, userID string, winCount int64) error {
	return s.client.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(winCount), Member: userID}).Err()
}

func (s *RedisStore) LeaderboardTop(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	if n <= 0 {
		n = 10
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, LeaderboardEntry{UserID: member, WinCount: int64(z.Score)})
	}
	return out, nil
}

func (s *RedisStore) LeaderboardRank(ctx context.Context, userID string) (int, error) {
	rank, err := s.client.ZRevRank(ctx, leaderboardKey, userID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(rank) + 1, nil
}

func (s *RedisStore) SessionPut(ctx context.Context, sessionID string, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, sessionKey(sessionID), data, ttl).Err()
}

func (s *RedisStore) SessionGet(ctx context.Context, sessionID string) ([]byte, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	return raw, err
}

func (s *RedisStore) SessionDelete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}

func (s *RedisStore) Connected(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}
