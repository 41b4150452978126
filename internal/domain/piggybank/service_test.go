package piggybank

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nftlender/backend/internal/apperr"
	"github.com/nftlender/backend/internal/blockchain"
	"github.com/nftlender/backend/internal/observability"
)

type keySigner struct{ key *ecdsa.PrivateKey }

func (s keySigner) Address() common.Address { return crypto.PubkeyToAddress(s.key.PublicKey) }

func (s keySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

type staticSigners struct {
	signer blockchain.Signer
	err    error
}

func (s staticSigners) Signer() (blockchain.Signer, error) { return s.signer, s.err }

func newService(t *testing.T) (*Service, *blockchain.StubChain, keySigner) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	initial, _ := blockchain.ParseEther("10")
	chain := blockchain.NewStubChain(common.HexToAddress("0x74403A436C43060f1f9347FbA53E1ab444a5F1eE"), initial)
	signer := keySigner{key: key}
	return NewService(chain, staticSigners{signer: signer}, 0, observability.NopLogger(), nil), chain, signer
}

func TestDepositAndBreak(t *testing.T) {
	ctx := context.Background()
	svc, chain, signer := newService(t)

	if _, err := svc.Deposit(ctx, "1.25"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bal, err := svc.Balance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Balance != "1.25" || bal.Account != signer.Address().Hex() {
		t.Fatalf("unexpected balance: %+v", bal)
	}

	if _, err := svc.Break(ctx); err != nil {
		t.Fatalf("break: %v", err)
	}
	bal, _ = svc.Balance(ctx)
	if bal.Balance != "0" {
		t.Fatalf("expected empty piggy bank, got %s", bal.Balance)
	}
	wallet, _ := chain.BalanceOf(ctx, signer.Address())
	if blockchain.FormatEther(wallet) != "10" {
		t.Fatalf("expected funds returned, got %s", blockchain.FormatEther(wallet))
	}
}

func TestDepositPreconditions(t *testing.T) {
	svc, _, _ := newService(t)
	for _, amount := range []string{"", "0", "-1", "x"} {
		if _, err := svc.Deposit(context.Background(), amount); !apperr.Is(err, apperr.KindPreconditionFailed) {
			t.Fatalf("amount %q: expected precondition_failed, got %v", amount, err)
		}
	}
}

func TestBreakEmptyReverts(t *testing.T) {
	svc, _, _ := newService(t)
	if _, err := svc.Break(context.Background()); !apperr.Is(err, apperr.KindContractReverted) {
		t.Fatalf("expected contract_reverted, got %v", err)
	}
}

func TestRequiresSession(t *testing.T) {
	svc := NewService(nil, staticSigners{err: apperr.New(apperr.KindUnauthenticated, "Connect a wallet first.")}, 0, observability.NopLogger(), nil)
	if _, err := svc.Balance(context.Background()); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

type unconfirmedBank struct {
	*blockchain.StubChain
}

func (unconfirmedBank) Deposit(context.Context, blockchain.TxOpts) (*blockchain.Receipt, error) {
	return nil, &blockchain.PendingTxError{TxHash: "0xfeed", Err: context.DeadlineExceeded}
}

func TestDepositUnconfirmedNamesTransaction(t *testing.T) {
	_, chain, signer := newService(t)
	svc := NewService(unconfirmedBank{chain}, staticSigners{signer: signer}, 0, observability.NopLogger(), nil)

	_, err := svc.Deposit(context.Background(), "0.1")
	if !apperr.Is(err, apperr.KindChainUnavailable) || !errors.Is(err, blockchain.ErrNotConfirmed) {
		t.Fatalf("expected unconfirmed chain error, got %v", err)
	}
	if !strings.Contains(apperr.Message(err), "0xfeed") {
		t.Fatalf("message should name the transaction: %q", apperr.Message(err))
	}
}
