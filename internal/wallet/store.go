package wallet

import (
	"context"
	"sync"
)

// AccountKey is the single persisted key holding the last connected account.
const AccountKey = "nftlender:wallet_account"

// Store persists the last connected account. Load returns "" when nothing
// is stored.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, account string) error
	Clear(ctx context.Context) error
}

type MemoryStore struct {
	mu      sync.RWMutex
	account string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, nil
}

func (s *MemoryStore) Save(_ context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = account
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = ""
	return nil
}
