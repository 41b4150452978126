package redis

import (
	"context"
	"errors"

	"github.com/nftlender/backend/internal/wallet"
	goredis "github.com/redis/go-redis/v9"
)

type SessionStore struct {
	client *goredis.Client
	key    string
}

func NewSessionStore(client *goredis.Client) *SessionStore {
	return &SessionStore{client: client, key: wallet.AccountKey}
}

func (s *SessionStore) Load(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *SessionStore) Save(ctx context.Context, account string) error {
	return s.client.Set(ctx, s.key, account, 0).Err()
}

func (s *SessionStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
