package wallet

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftlender/backend/internal/blockchain"
)

var (
	ErrNoWalletProvider = errors.New("no wallet provider configured")
	ErrUserRejected     = errors.New("user rejected the request")
)

// Provider is the injected-wallet surface the session adapter consumes.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Signer(account common.Address) (blockchain.Signer, error)
	// AccountsChanged pushes the full account list whenever it changes. An
	// empty list means the wallet disconnected.
	AccountsChanged() <-chan []common.Address
}
