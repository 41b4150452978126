package piggybank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nftlender/backend/internal/apperr"
	"github.com/nftlender/backend/internal/blockchain"
	"github.com/nftlender/backend/internal/observability"
)

type SignerSource interface {
	Signer() (blockchain.Signer, error)
}

type Balance struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
	Wei     string `json:"wei"`
}

type Result struct {
	Action  string              `json:"action"`
	Receipt *blockchain.Receipt `json:"receipt"`
	Message string              `json:"message"`
}

// Service drives the piggy-bank contract for the connected wallet with the
// same submit-and-confirm rules as the loan actions.
type Service struct {
	bank     blockchain.PiggyBank
	signers  SignerSource
	gasLimit uint64
	logger   *slog.Logger
	metrics  *observability.Metrics
}

func NewService(bank blockchain.PiggyBank, signers SignerSource, gasLimit uint64, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if gasLimit == 0 {
		gasLimit = 300000
	}
	return &Service{bank: bank, signers: signers, gasLimit: gasLimit, logger: logger, metrics: metrics}
}

func (s *Service) Balance(ctx context.Context) (*Balance, error) {
	signer, err := s.signers.Signer()
	if err != nil {
		return nil, err
	}
	wei, err := s.bank.PiggyBalance(ctx, signer.Address())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindChainUnavailable, "Could not read the piggy bank balance.", err)
	}
	return &Balance{Account: signer.Address().Hex(), Balance: blockchain.FormatEther(wei), Wei: wei.String()}, nil
}

func (s *Service) Deposit(ctx context.Context, amount string) (res *Result, err error) {
	defer func() { s.observe("deposit", err) }()

	value, err := blockchain.ParseEther(amount)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPreconditionFailed, "Enter a valid deposit amount.", err)
	}
	if value.Sign() == 0 {
		return nil, apperr.New(apperr.KindPreconditionFailed, "Deposit amount must be greater than zero.")
	}
	signer, err := s.signers.Signer()
	if err != nil {
		return nil, err
	}
	receipt, err := s.bank.Deposit(ctx, blockchain.TxOpts{Signer: signer, Value: value, GasLimit: s.gasLimit})
	if err != nil {
		return nil, submitError("Deposit failed.", err)
	}
	s.logger.Info("piggy bank deposit", "account", signer.Address().Hex(), "amount", amount, "tx", receipt.TxHash)
	return &Result{Action: "deposit", Receipt: receipt, Message: "Deposit successful!"}, nil
}

func (s *Service) Break(ctx context.Context) (res *Result, err error) {
	defer func() { s.observe("break", err) }()

	signer, err := s.signers.Signer()
	if err != nil {
		return nil, err
	}
	receipt, err := s.bank.BreakPiggyBank(ctx, blockchain.TxOpts{Signer: signer, GasLimit: s.gasLimit})
	if err != nil {
		return nil, submitError("Breaking the piggy bank failed.", err)
	}
	s.logger.Info("piggy bank broken", "account", signer.Address().Hex(), "tx", receipt.TxHash)
	return &Result{Action: "break", Receipt: receipt, Message: "Piggy bank broken. Funds returned to your wallet."}, nil
}

func (s *Service) observe(action string, err error) {
	outcome := "success"
	if err != nil {
		if outcome = string(apperr.KindOf(err)); outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.ObserveAction("piggybank_"+action, outcome)
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
