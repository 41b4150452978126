package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nftlender/backend/internal/txlog"
	goredis "github.com/redis/go-redis/v9"
)

const txlogKey = "nftlender:transactions"

// TxLogStore is a capped redis list; LTRIM keeps it at capacity.
type TxLogStore struct {
	client   *goredis.Client
	capacity int
}

func NewTxLogStore(client *goredis.Client, capacity int) *TxLogStore {
	if capacity <= 0 {
		capacity = 10
	}
	return &TxLogStore{client: client, capacity: capacity}
}

func (s *TxLogStore) Record(ctx context.Context, entry txlog.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.LPush(ctx, txlogKey, payload)
		p.LTrim(ctx, txlogKey, 0, int64(s.capacity-1))
		return nil
	})
	return err
}

func (s *TxLogStore) Recent(ctx context.Context, n int) ([]txlog.Entry, error) {
	if n <= 0 || n > s.capacity {
		n = s.capacity
	}
	raw, err := s.client.LRange(ctx, txlogKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]txlog.Entry, 0, len(raw))
	for _, item := range raw {
		var e txlog.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode txlog entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
