package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftlender/backend/internal/apperr"
	"github.com/nftlender/backend/internal/blockchain"
	"github.com/nftlender/backend/internal/observability"
)

const (
	ActionCreate = "create"
	ActionFund   = "fund"
	ActionCancel = "cancel"
	ActionRepay  = "repay"
)

const repaySuccessMessage = "Repayment successful! NFT has been returned to your wallet."

type ActionsConfig struct {
	TxGasLimit       uint64
	CreateGasLimit   uint64
	MinWalletBalance *big.Int
}

// Actions submits the four loan operations. Each one checks its local
// precondition, submits, waits for one confirmation and then refreshes the
// projection. Nothing is retried.
type Actions struct {
	registry   blockchain.LoanRegistry
	signers    SignerSource
	projection *Projection
	cfg        ActionsConfig
	logger     *slog.Logger
	metrics    *observability.Metrics
}

func NewActions(registry blockchain.LoanRegistry, signers SignerSource, projection *Projection, cfg ActionsConfig, logger *slog.Logger, metrics *observability.Metrics) *Actions {
	if cfg.TxGasLimit == 0 {
		cfg.TxGasLimit = 300000
	}
	if cfg.CreateGasLimit == 0 {
		cfg.CreateGasLimit = 500000
	}
	if cfg.MinWalletBalance == nil {
		cfg.MinWalletBalance = big.NewInt(10_000_000_000_000_000)
	}
	return &Actions{
		registry:   registry,
		signers:    signers,
		projection: projection,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
	}
}

func (a *Actions) CreateLoanRequest(ctx context.Context, in CreateInput) (res *ActionResult, err error) {
	defer func() { a.observe(ActionCreate, err) }()

	req, err := parseCreateInput(in)
	if err != nil {
		return nil, err
	}
	signer, err := a.signers.Signer()
	if err != nil {
		return nil, err
	}

	balance, err := a.registry.BalanceOf(ctx, signer.Address())
	if err != nil {
		return nil, chainError("Could not read the wallet balance.", err)
	}
	if balance.Cmp(a.cfg.MinWalletBalance) < 0 {
		return nil, apperr.New(apperr.KindPreconditionFailed,
			fmt.Sprintf("Insufficient balance. You need at least %s ETH to create a loan request.", blockchain.FormatEther(a.cfg.MinWalletBalance)))
	}

	if _, err := a.registry.ApproveNFT(ctx, blockchain.TxOpts{Signer: signer, GasLimit: a.cfg.TxGasLimit}, req.NFTAddress, req.NFTID); err != nil {
		return nil, submitError("NFT approval failed.", err)
	}
	a.logger.Info("nft approved", "nft", req.NFTAddress.Hex(), "nft_id", req.NFTID.String())

	receipt, err := a.registry.AskForLoan(ctx, blockchain.TxOpts{Signer: signer, GasLimit: a.cfg.CreateGasLimit}, req)
	if err != nil {
		return nil, submitError("Loan request failed.", err)
	}
	a.logger.Info("loan requested", "borrower", signer.Address().Hex(), "tx", receipt.TxHash)
	a.refreshAfter(ctx, ActionCreate)

	return &ActionResult{Action: ActionCreate, Receipt: receipt, Message: "Loan request created successfully!"}, nil
}

func (a *Actions) FundLoan(ctx context.Context, loanID uint64) (res *ActionResult, err error) {
	defer func() { a.observe(ActionFund, err) }()

	signer, err := a.signers.Signer()
	if err != nil {
		return nil, err
	}
	details, err := a.requireOpen(ctx, loanID)
	if err != nil {
		return nil, err
	}

	opts := blockchain.TxOpts{Signer: signer, Value: details.LoanAmount, GasLimit: a.cfg.TxGasLimit}
	receipt, err := a.registry.LendMoney(ctx, opts, loanID)
	if err != nil {
		return nil, submitError("Funding the loan failed.", err)
	}
	a.logger.Info("loan funded", "loan_id", loanID, "lender", signer.Address().Hex(), "tx", receipt.TxHash)
	a.refreshAfter(ctx, ActionFund)

	return &ActionResult{Action: ActionFund, LoanID: &loanID, Receipt: receipt, Message: "Loan funded successfully!"}, nil
}

func (a *Actions) CancelLoanRequest(ctx context.Context, loanID uint64) (res *ActionResult, err error) {
	defer func() { a.observe(ActionCancel, err) }()

	signer, err := a.signers.Signer()
	if err != nil {
		return nil, err
	}
	if _, err := a.requireOpen(ctx, loanID); err != nil {
		return nil, err
	}

	receipt, err := a.registry.CloseBorrowRequest(ctx, blockchain.TxOpts{Signer: signer, GasLimit: a.cfg.TxGasLimit}, loanID)
	if err != nil {
		return nil, submitError("Cancelling the loan request failed.", err)
	}
	a.logger.Info("loan request cancelled", "loan_id", loanID, "tx", receipt.TxHash)
	a.refreshAfter(ctx, ActionCancel)

	return &ActionResult{Action: ActionCancel, LoanID: &loanID, Receipt: receipt, Message: "Loan request cancelled."}, nil
}

// RepayLoan submits only when amount equals the contract's amountToBeRepayed
// to the wei. The comparison is numeric, so "1.050" matches "1.05".
func (a *Actions) RepayLoan(ctx context.Context, loanID uint64, amount string) (res *ActionResult, err error) {
	defer func() { a.observe(ActionRepay, err) }()

	value, err := blockchain.ParseEther(amount)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPreconditionFailed, "Enter a valid repayment amount.", err)
	}
	signer, err := a.signers.Signer()
	if err != nil {
		return nil, err
	}
	details, err := readLoan(ctx, a.registry, loanID)
	if err != nil {
		return nil, err
	}
	if value.Cmp(details.AmountToBeRepayed) != 0 {
		return nil, apperr.New(apperr.KindPreconditionFailed,
			fmt.Sprintf("Incorrect repayment amount. Required: %s ETH", blockchain.FormatEther(details.AmountToBeRepayed)))
	}

	opts := blockchain.TxOpts{Signer: signer, Value: value, GasLimit: a.cfg.TxGasLimit}
	receipt, err := a.registry.RepayLoan(ctx, opts, loanID)
	if err != nil {
		return nil, submitError("Repayment failed.", err)
	}
	a.logger.Info("loan repaid", "loan_id", loanID, "tx", receipt.TxHash)

	return &ActionResult{Action: ActionRepay, LoanID: &loanID, Receipt: receipt, Message: repaySuccessMessage}, nil
}

func (a *Actions) requireOpen(ctx context.Context, loanID uint64) (*blockchain.LoanDetails, error) {
	details, err := readLoan(ctx, a.registry, loanID)
	if err != nil {
		return nil, err
	}
	status, err := ParseStatus(details.Status)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindChainUnavailable, "The contract returned an unreadable loan.", err)
	}
	if status != StatusOpen {
		return nil, apperr.New(apperr.KindPreconditionFailed, fmt.Sprintf("Loan %d is no longer open (%s).", loanID, status))
	}
	return details, nil
}

// refreshAfter never fails the action that triggered it. It runs even when
// the caller has gone away, since the transaction is already confirmed.
func (a *Actions) refreshAfter(ctx context.Context, action string) {
	if a.projection == nil {
		return
	}
	if err := a.projection.Refresh(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("projection refresh after action failed", "action", action, "err", err)
	}
}

func (a *Actions) observe(action string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		a.logger.Warn("loan action failed", "action", action, "err", err)
	}
	a.metrics.ObserveAction(action, outcome)
}

func submitError(message string, err error) error {
	var pending *blockchain.PendingTxError
	switch {
	case errors.As(err, &pending):
		return apperr.Wrap(apperr.KindChainUnavailable,
			fmt.Sprintf("%s Transaction %s was sent but its confirmation was not observed. Check it before retrying.", message, pending.TxHash), err)
	case errors.Is(err, blockchain.ErrSignerRejected):
		return apperr.Wrap(apperr.KindUserRejected, "Transaction was rejected by the wallet.", err)
	case errors.Is(err, blockchain.ErrReverted):
		return apperr.Wrap(apperr.KindContractReverted, message+" The contract rejected the transaction.", err)
	default:
		return apperr.Wrap(apperr.KindChainUnavailable, message+" The chain could not be reached.", err)
	}
}

func parseCreateInput(in CreateInput) (blockchain.LoanRequest, error) {
	invalid := func(field string, err error) error {
		return apperr.Wrap(apperr.KindPreconditionFailed, fmt.Sprintf("Invalid %s.", field), err)
	}

	addr := strings.TrimSpace(in.NFTAddress)
	if !common.IsHexAddress(addr) {
		return blockchain.LoanRequest{}, invalid("NFT address", fmt.Errorf("not an address: %q", in.NFTAddress))
	}
	nftID, err := blockchain.ParseUint(in.NFTID)
	if err != nil {
		return blockchain.LoanRequest{}, invalid("NFT id", err)
	}
	amount, err := blockchain.ParseEther(in.Amount)
	if err != nil {
		return blockchain.LoanRequest{}, invalid("loan amount", err)
	}
	if amount.Sign() == 0 {
		return blockchain.LoanRequest{}, invalid("loan amount", errors.New("amount must be positive"))
	}
	duration, err := blockchain.ParseUint(in.Duration)
	if err != nil {
		return blockchain.LoanRequest{}, invalid("duration", err)
	}
	if duration.Sign() == 0 {
		return blockchain.LoanRequest{}, invalid("duration", errors.New("duration must be positive"))
	}
	interest, err := blockchain.ParseUint(in.Interest)
	if err != nil {
		return blockchain.LoanRequest{}, invalid("interest", err)
	}

	return blockchain.LoanRequest{
		NFTID:      nftID,
		NFTAddress: common.HexToAddress(addr),
		Amount:     amount,
		Duration:   duration,
		Interest:   interest,
	}, nil
}
