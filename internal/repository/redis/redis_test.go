package redis

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nftlender/backend/internal/txlog"
	"github.com/nftlender/backend/internal/wallet"
	goredis "github.com/redis/go-redis/v9"
)

func newClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)
	store := NewSessionStore(c)

	got, err := store.Load(ctx)
	if err != nil || got != "" {
		t.Fatalf("expected empty load, got %q %v", got, err)
	}
	if err := store.Save(ctx, "0xabc"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if v, _ := srv.Get(wallet.AccountKey); v != "0xabc" {
		t.Fatalf("expected value under the account key, got %q", v)
	}
	got, _ = store.Load(ctx)
	if got != "0xabc" {
		t.Fatalf("unexpected load: %q", got)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if srv.Exists(wallet.AccountKey) {
		t.Fatalf("expected key removed")
	}
}

func TestTxLogStoreCapsAndOrders(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t)
	store := NewTxLogStore(c, 3)

	for i := 1; i <= 4; i++ {
		if err := store.Record(ctx, txlog.Entry{ID: fmt.Sprintf("tx-%d", i)}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 || got[0].ID != "tx-4" || got[2].ID != "tx-2" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}
