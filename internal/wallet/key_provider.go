package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nftlender/backend/internal/blockchain"
)

// KeyProvider serves a single account from a raw private key. It never
// pushes account changes.
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewKeyProvider(hexKey string) (*KeyProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid WALLET_PRIVATE_KEY: %w", err)
	}
	return &KeyProvider{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (p *KeyProvider) RequestAccounts(_ context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

func (p *KeyProvider) Signer(account common.Address) (blockchain.Signer, error) {
	if account != p.address {
		return nil, fmt.Errorf("%w: unknown account %s", ErrUserRejected, account.Hex())
	}
	return &keySigner{key: p.key, address: p.address}, nil
}

func (p *KeyProvider) AccountsChanged() <-chan []common.Address {
	return nil
}

type keySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func (s *keySigner) Address() common.Address {
	return s.address
}

func (s *keySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
