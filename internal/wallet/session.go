package wallet

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftlender/backend/internal/apperr"
	"github.com/nftlender/backend/internal/blockchain"
)

type Session struct {
	Account   *common.Address `json:"account"`
	Connected bool            `json:"connected"`
}

func loggedOut() Session {
	return Session{}
}

func connectedAs(account common.Address) Session {
	a := account
	return Session{Account: &a, Connected: true}
}

// Adapter owns the single wallet session of this process. It translates
// provider pushes and explicit calls into session transitions and tells
// listeners about each one.
type Adapter struct {
	provider Provider
	store    Store
	logger   *slog.Logger

	mu        sync.RWMutex
	session   Session
	listeners []func(Session)
}

// NewAdapter accepts a nil provider; Connect then fails with
// provider_unavailable.
func NewAdapter(provider Provider, store Store, logger *slog.Logger) *Adapter {
	return &Adapter{provider: provider, store: store, logger: logger}
}

func (a *Adapter) Current() Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

func (a *Adapter) OnAccountChange(handler func(Session)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, handler)
}

func (a *Adapter) Connect(ctx context.Context) (common.Address, error) {
	if a.provider == nil {
		return common.Address{}, apperr.Wrap(apperr.KindProviderUnavailable, "No wallet provider is available. Configure a wallet to use this application.", ErrNoWalletProvider)
	}
	accounts, err := a.provider.RequestAccounts(ctx)
	if err != nil {
		a.logger.Warn("wallet connect failed", "err", err)
		if errors.Is(err, ErrUserRejected) {
			return common.Address{}, apperr.Wrap(apperr.KindUserRejected, "Wallet connection was rejected.", err)
		}
		return common.Address{}, apperr.Wrap(apperr.KindProviderUnavailable, "Wallet provider did not respond.", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, apperr.Wrap(apperr.KindUserRejected, "Wallet returned no accounts.", ErrUserRejected)
	}
	account := accounts[0]
	if err := a.store.Save(ctx, account.Hex()); err != nil {
		return common.Address{}, err
	}
	a.logger.Info("wallet connected", "account", account.Hex())
	a.transition(connectedAs(account))
	return account, nil
}

// Restore loads the persisted account without prompting the provider. A
// missing stored account also ends a session still held in memory.
func (a *Adapter) Restore(ctx context.Context) (*common.Address, error) {
	stored, err := a.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if stored == "" {
		if a.Current().Connected {
			a.logger.Info("stored session is gone, logging out")
			a.transition(loggedOut())
		}
		return nil, nil
	}
	if !common.IsHexAddress(stored) {
		a.logger.Warn("discarding malformed stored account", "value", stored)
		if err := a.store.Clear(ctx); err != nil {
			return nil, err
		}
		if a.Current().Connected {
			a.transition(loggedOut())
		}
		return nil, nil
	}
	account := common.HexToAddress(stored)
	if cur := a.Current(); !cur.Connected || *cur.Account != account {
		a.transition(connectedAs(account))
	}
	return &account, nil
}

func (a *Adapter) Logout(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		return err
	}
	a.logger.Info("wallet logged out")
	a.transition(loggedOut())
	return nil
}

// HandleAccountsChanged applies one provider push. Only the first account is
// used; an empty list is a logout.
func (a *Adapter) HandleAccountsChanged(ctx context.Context, accounts []common.Address) error {
	if len(accounts) == 0 {
		return a.Logout(ctx)
	}
	account := accounts[0]
	if err := a.store.Save(ctx, account.Hex()); err != nil {
		return err
	}
	a.logger.Info("wallet account changed", "account", account.Hex())
	a.transition(connectedAs(account))
	return nil
}

// Run consumes provider pushes until ctx is done or the provider closes its
// channel.
func (a *Adapter) Run(ctx context.Context) error {
	var events <-chan []common.Address
	if a.provider != nil {
		events = a.provider.AccountsChanged()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case accounts, ok := <-events:
			if !ok {
				return nil
			}
			if err := a.HandleAccountsChanged(ctx, accounts); err != nil {
				a.logger.Error("apply account change failed", "err", err)
			}
		}
	}
}

// Signer returns the signer for the active account.
func (a *Adapter) Signer() (blockchain.Signer, error) {
	if a.provider == nil {
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, "No wallet provider is available. Configure a wallet to use this application.", ErrNoWalletProvider)
	}
	cur := a.Current()
	if !cur.Connected || cur.Account == nil {
		return nil, apperr.New(apperr.KindUnauthenticated, "Connect a wallet first.")
	}
	signer, err := a.provider.Signer(*cur.Account)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUserRejected, "Wallet refused to provide a signer.", err)
	}
	return signer, nil
}

func (a *Adapter) transition(next Session) {
	a.mu.Lock()
	a.session = next
	listeners := append([]func(Session){}, a.listeners...)
	a.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
}
