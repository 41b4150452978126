package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthBackend talks to a real node through go-ethereum bindings.
type EthBackend struct {
	client       *ethclient.Client
	chainID      *big.Int
	registryAddr common.Address
	registry     *bind.BoundContract
	piggy        *bind.BoundContract
	erc721ABI    abi.ABI
	events       *LoanEventReader
	confirmWait  time.Duration
}

type EthBackendConfig struct {
	RPCURL            string
	ChainID           int64
	RegistryAddress   common.Address
	PiggyBankAddress  common.Address
	EventLogFromBlock uint64
	EventLogBatch     uint64
	HTTPTimeout       time.Duration
	ConfirmTimeout    time.Duration
}

const defaultConfirmTimeout = 5 * time.Minute

func NewEthBackend(ctx context.Context, cfg EthBackendConfig) (*EthBackend, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID <= 0 {
		chainID, err = client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("read chain id: %w", err)
		}
	}

	registryABI, err := abi.JSON(strings.NewReader(loanRegistryABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	piggyABI, err := abi.JSON(strings.NewReader(piggyBankABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse piggy bank abi: %w", err)
	}
	erc721, err := abi.JSON(strings.NewReader(erc721ApproveABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse erc721 abi: %w", err)
	}

	confirmWait := cfg.ConfirmTimeout
	if confirmWait <= 0 {
		confirmWait = defaultConfirmTimeout
	}

	logClient, err := NewJSONRPCLogClient(cfg.RPCURL, cfg.HTTPTimeout)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &EthBackend{
		client:       client,
		chainID:      chainID,
		registryAddr: cfg.RegistryAddress,
		registry:     bind.NewBoundContract(cfg.RegistryAddress, registryABI, client, client, client),
		piggy:        bind.NewBoundContract(cfg.PiggyBankAddress, piggyABI, client, client, client),
		erc721ABI:    erc721,
		events:       NewLoanEventReader(logClient, cfg.RegistryAddress, cfg.EventLogFromBlock, cfg.EventLogBatch),
		confirmWait:  confirmWait,
	}, nil
}

func (b *EthBackend) Close() {
	b.client.Close()
}

func (b *EthBackend) RegistryAddress() common.Address {
	return b.registryAddr
}

func (b *EthBackend) LoanCount(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := b.registry.Call(&bind.CallOpts{Context: ctx}, &out, "getId"); err != nil {
		return 0, classify(err)
	}
	n := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if !n.IsUint64() {
		return 0, fmt.Errorf("loan count out of range: %s", n)
	}
	return n.Uint64(), nil
}

func (b *EthBackend) LoanDetails(ctx context.Context, loanID uint64) (*LoanDetails, error) {
	var out []interface{}
	if err := b.registry.Call(&bind.CallOpts{Context: ctx}, &out, "getDetails", new(big.Int).SetUint64(loanID)); err != nil {
		return nil, classify(err)
	}
	if len(out) != 11 {
		return nil, fmt.Errorf("getDetails returned %d values", len(out))
	}
	return &LoanDetails{
		LoanAmount:               *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Interest:                 *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		AmountToBeRepayed:        *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		NFTID:                    *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		LoanDuration:             *abi.ConvertType(out[4], new(*big.Int)).(**big.Int),
		LoanDurationEndTimestamp: *abi.ConvertType(out[5], new(*big.Int)).(**big.Int),
		LoanIndex:                *abi.ConvertType(out[6], new(*big.Int)).(**big.Int),
		NFTAddress:               *abi.ConvertType(out[7], new(common.Address)).(*common.Address),
		Borrower:                 *abi.ConvertType(out[8], new(common.Address)).(*common.Address),
		Lender:                   *abi.ConvertType(out[9], new(common.Address)).(*common.Address),
		Status:                   *abi.ConvertType(out[10], new(uint8)).(*uint8),
	}, nil
}

func (b *EthBackend) AskForLoan(ctx context.Context, opts TxOpts, req LoanRequest) (*Receipt, error) {
	return b.transact(ctx, b.registry, opts, "askForLoan", req.NFTID, req.NFTAddress, req.Amount, req.Duration, req.Interest)
}

func (b *EthBackend) LendMoney(ctx context.Context, opts TxOpts, loanID uint64) (*Receipt, error) {
	return b.transact(ctx, b.registry, opts, "lendMoney", new(big.Int).SetUint64(loanID))
}

func (b *EthBackend) CloseBorrowRequest(ctx context.Context, opts TxOpts, loanID uint64) (*Receipt, error) {
	return b.transact(ctx, b.registry, opts, "closeBorrowRequest", new(big.Int).SetUint64(loanID))
}

func (b *EthBackend) RepayLoan(ctx context.Context, opts TxOpts, loanID uint64) (*Receipt, error) {
	return b.transact(ctx, b.registry, opts, "repayLoan", new(big.Int).SetUint64(loanID))
}

func (b *EthBackend) ApproveNFT(ctx context.Context, opts TxOpts, nft common.Address, tokenID *big.Int) (*Receipt, error) {
	token := bind.NewBoundContract(nft, b.erc721ABI, b.client, b.client, b.client)
	return b.transact(ctx, token, opts, "approve", b.registryAddr, tokenID)
}

func (b *EthBackend) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	bal, err := b.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, classify(err)
	}
	return bal, nil
}

func (b *EthBackend) Deposit(ctx context.Context, opts TxOpts) (*Receipt, error) {
	return b.transact(ctx, b.piggy, opts, "deposit")
}

func (b *EthBackend) BreakPiggyBank(ctx context.Context, opts TxOpts) (*Receipt, error) {
	return b.transact(ctx, b.piggy, opts, "breakPiggyBank")
}

func (b *EthBackend) PiggyBalance(ctx context.Context, caller common.Address) (*big.Int, error) {
	var out []interface{}
	if err := b.piggy.Call(&bind.CallOpts{Context: ctx, From: caller}, &out, "getBalance"); err != nil {
		return nil, classify(err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (b *EthBackend) LoanEvents(ctx context.Context, loanID uint64) ([]LoanEvent, error) {
	return b.events.LoanEvents(ctx, loanID)
}

// transact submits a contract call and blocks until it has one confirmation.
func (b *EthBackend) transact(ctx context.Context, contract *bind.BoundContract, opts TxOpts, method string, params ...interface{}) (*Receipt, error) {
	if opts.Signer == nil {
		return nil, fmt.Errorf("%s: missing signer: %w", method, ErrSignerRejected)
	}
	from := opts.Signer.Address()
	auth := &bind.TransactOpts{
		From: from,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != from {
				return nil, bind.ErrNotAuthorized
			}
			signed, err := opts.Signer.SignTx(tx, b.chainID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSignerRejected, err)
			}
			return signed, nil
		},
		Value:    opts.Value,
		GasLimit: opts.GasLimit,
		Context:  ctx,
	}

	tx, err := contract.Transact(auth, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, classify(err))
	}
	return waitConfirmed(ctx, b.client, b.confirmWait, method, tx)
}

// waitConfirmed blocks until tx has a receipt. Once broadcast, the wait no
// longer follows the caller's cancellation, only its own deadline.
func waitConfirmed(ctx context.Context, backend bind.DeployBackend, timeout time.Duration, method string, tx *types.Transaction) (*Receipt, error) {
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, backend, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, &PendingTxError{TxHash: tx.Hash().Hex(), Err: classify(err)})
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s: tx %s: %w", method, tx.Hash().Hex(), ErrReverted)
	}
	return &Receipt{TxHash: tx.Hash().Hex(), BlockNumber: receipt.BlockNumber.Uint64()}, nil
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrReverted), errors.Is(err, ErrSignerRejected), errors.Is(err, ErrUnavailable), errors.Is(err, ErrNotConfirmed):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, bind.ErrNotAuthorized):
		return fmt.Errorf("%w: %v", ErrSignerRejected, err)
	case strings.Contains(strings.ToLower(err.Error()), "revert"):
		return fmt.Errorf("%w: %v", ErrReverted, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
