package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrReverted means the transaction was mined (or simulated) and the
	// contract rejected it.
	ErrReverted = errors.New("execution reverted")
	// ErrSignerRejected means the wallet declined to sign.
	ErrSignerRejected = errors.New("signer rejected transaction")
	// ErrUnavailable wraps transport failures talking to the node.
	ErrUnavailable = errors.New("chain unavailable")
	// ErrNotConfirmed means a broadcast transaction had no receipt before
	// the confirmation wait ended. It may still be mined.
	ErrNotConfirmed = errors.New("transaction not confirmed")
)

// PendingTxError reports a broadcast transaction whose outcome is unknown.
type PendingTxError struct {
	TxHash string
	Err    error
}

func (e *PendingTxError) Error() string {
	return fmt.Sprintf("tx %s not confirmed: %v", e.TxHash, e.Err)
}

func (e *PendingTxError) Unwrap() []error {
	return []error{ErrNotConfirmed, e.Err}
}

// Signer signs transactions on behalf of one account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

type TxOpts struct {
	Signer   Signer
	Value    *big.Int
	GasLimit uint64
}

// Receipt is returned once a submitted transaction has one confirmation.
type Receipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

// LoanDetails mirrors the getDetails tuple of the lending contract.
type LoanDetails struct {
	LoanAmount               *big.Int
	Interest                 *big.Int
	AmountToBeRepayed        *big.Int
	NFTID                    *big.Int
	LoanDuration             *big.Int
	LoanDurationEndTimestamp *big.Int
	LoanIndex                *big.Int
	NFTAddress               common.Address
	Borrower                 common.Address
	Lender                   common.Address
	Status                   uint8
}

type LoanRequest struct {
	NFTID      *big.Int
	NFTAddress common.Address
	Amount     *big.Int
	Duration   *big.Int
	Interest   *big.Int
}

type LoanEvent struct {
	Name        string `json:"name"`
	LoanID      uint64 `json:"loan_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
}

type LoanRegistry interface {
	LoanCount(ctx context.Context) (uint64, error)
	LoanDetails(ctx context.Context, loanID uint64) (*LoanDetails, error)
	AskForLoan(ctx context.Context, opts TxOpts, req LoanRequest) (*Receipt, error)
	LendMoney(ctx context.Context, opts TxOpts, loanID uint64) (*Receipt, error)
	CloseBorrowRequest(ctx context.Context, opts TxOpts, loanID uint64) (*Receipt, error)
	RepayLoan(ctx context.Context, opts TxOpts, loanID uint64) (*Receipt, error)
	// ApproveNFT approves the registry contract to take custody of tokenID.
	ApproveNFT(ctx context.Context, opts TxOpts, nft common.Address, tokenID *big.Int) (*Receipt, error)
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	RegistryAddress() common.Address
}

type PiggyBank interface {
	Deposit(ctx context.Context, opts TxOpts) (*Receipt, error)
	BreakPiggyBank(ctx context.Context, opts TxOpts) (*Receipt, error)
	PiggyBalance(ctx context.Context, caller common.Address) (*big.Int, error)
}

type EventSource interface {
	LoanEvents(ctx context.Context, loanID uint64) ([]LoanEvent, error)
}

// Backend is everything the service needs from a chain.
type Backend interface {
	LoanRegistry
	PiggyBank
	EventSource
	Close()
}
