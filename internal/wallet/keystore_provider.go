package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/nftlender/backend/internal/blockchain"
)

// KeystoreProvider exposes a go-ethereum keystore directory as a wallet.
// Key files appearing or disappearing are pushed as account changes.
type KeystoreProvider struct {
	ks         *keystore.KeyStore
	passphrase string
	events     chan []common.Address
	sub        event.Subscription
	done       chan struct{}
	closeOnce  sync.Once
}

func NewKeystoreProvider(dir, passphrase string) *KeystoreProvider {
	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	p := &KeystoreProvider{
		ks:         ks,
		passphrase: passphrase,
		events:     make(chan []common.Address, 8),
		done:       make(chan struct{}),
	}
	sink := make(chan accounts.WalletEvent, 8)
	p.sub = ks.Subscribe(sink)
	go p.forward(sink)
	return p
}

func (p *KeystoreProvider) RequestAccounts(_ context.Context) ([]common.Address, error) {
	accts := p.ks.Accounts()
	if len(accts) == 0 {
		return nil, fmt.Errorf("%w: keystore has no accounts", ErrUserRejected)
	}
	if err := p.ks.Unlock(accts[0], p.passphrase); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserRejected, err)
	}
	return addressesOf(accts), nil
}

func (p *KeystoreProvider) Signer(account common.Address) (blockchain.Signer, error) {
	acct := accounts.Account{Address: account}
	if !p.ks.HasAddress(account) {
		return nil, fmt.Errorf("%w: unknown account %s", ErrUserRejected, account.Hex())
	}
	return &keystoreSigner{ks: p.ks, account: acct}, nil
}

func (p *KeystoreProvider) AccountsChanged() <-chan []common.Address {
	return p.events
}

func (p *KeystoreProvider) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.sub.Unsubscribe()
	})
}

func (p *KeystoreProvider) forward(sink chan accounts.WalletEvent) {
	for {
		select {
		case ev := <-sink:
			if ev.Kind != accounts.WalletArrived && ev.Kind != accounts.WalletDropped {
				continue
			}
			select {
			case p.events <- addressesOf(p.ks.Accounts()):
			case <-p.done:
				return
			}
		case <-p.sub.Err():
			return
		case <-p.done:
			return
		}
	}
}

type keystoreSigner struct {
	ks      *keystore.KeyStore
	account accounts.Account
}

func (s *keystoreSigner) Address() common.Address {
	return s.account.Address
}

func (s *keystoreSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := s.ks.SignTx(s.account, tx, chainID)
	if errors.Is(err, keystore.ErrLocked) {
		return nil, fmt.Errorf("%w: account locked", ErrUserRejected)
	}
	return signed, err
}

func addressesOf(accts []accounts.Account) []common.Address {
	out := make([]common.Address, 0, len(accts))
	for _, a := range accts {
		out = append(out, a.Address)
	}
	return out
}
