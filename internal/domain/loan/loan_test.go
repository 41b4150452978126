package loan

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nftlender/backend/internal/apperr"
	"github.com/nftlender/backend/internal/blockchain"
	"github.com/nftlender/backend/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	registryAddr = common.HexToAddress("0x4Bb63DBd5dAc2d514Ef9EA99E22a11330628d0a3")
	nftAddr      = common.HexToAddress("0x1111111111111111111111111111111111111111")
	otherAddr    = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type keySigner struct {
	key    *ecdsa.PrivateKey
	refuse bool
}

func newKeySigner(t *testing.T) *keySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &keySigner{key: key}
}

func (s *keySigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s *keySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if s.refuse {
		return nil, errors.New("user denied transaction signature")
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

type staticSigners struct {
	signer blockchain.Signer
	err    error
}

func (s staticSigners) Signer() (blockchain.Signer, error) {
	return s.signer, s.err
}

type fixture struct {
	chain      *blockchain.StubChain
	projection *Projection
	actions    *Actions
	metrics    *observability.Metrics
	signer     *keySigner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	chain := blockchain.NewStubChain(registryAddr, ether(t, "10"))
	signer := newKeySigner(t)
	metrics := observability.NewMetrics()
	logger := observability.NopLogger()
	projection := NewProjection(chain, logger, metrics)
	actions := NewActions(chain, staticSigners{signer: signer}, projection, ActionsConfig{}, logger, metrics)
	return &fixture{chain: chain, projection: projection, actions: actions, metrics: metrics, signer: signer}
}

func ether(t *testing.T, s string) *big.Int {
	t.Helper()
	wei, err := blockchain.ParseEther(s)
	if err != nil {
		t.Fatalf("parse ether %q: %v", s, err)
	}
	return wei
}

func seed(t *testing.T, chain *blockchain.StubChain, status Status, borrower, lender common.Address, amount, repay string) uint64 {
	t.Helper()
	return chain.SeedLoan(blockchain.LoanDetails{
		LoanAmount:               ether(t, amount),
		Interest:                 big.NewInt(5),
		AmountToBeRepayed:        ether(t, repay),
		NFTID:                    big.NewInt(1),
		LoanDuration:             big.NewInt(60),
		LoanDurationEndTimestamp: big.NewInt(0),
		NFTAddress:               nftAddr,
		Borrower:                 borrower,
		Lender:                   lender,
		Status:                   uint8(status),
	})
}

func countSubmissions(chain *blockchain.StubChain) *int {
	var mu sync.Mutex
	n := 0
	chain.BeforeTransact = func(string) {
		mu.Lock()
		n++
		mu.Unlock()
	}
	return &n
}

func TestListOpenLoansFiltersAndOrders(t *testing.T) {
	f := newFixture(t)
	seed(t, f.chain, StatusOpen, otherAddr, common.Address{}, "1", "1.05")
	seed(t, f.chain, StatusLoaned, otherAddr, f.signer.Address(), "2", "2.1")
	seed(t, f.chain, StatusOpen, otherAddr, common.Address{}, "3", "3.15")

	var refreshed []Snapshot
	f.projection.OnRefresh(func(s Snapshot) { refreshed = append(refreshed, s) })

	loans, err := f.projection.ListOpenLoans(context.Background())
	if err != nil {
		t.Fatalf("list open loans: %v", err)
	}
	if len(loans) != 2 || loans[0].LoanID != 0 || loans[1].LoanID != 2 {
		t.Fatalf("expected loans [0 2], got %+v", loans)
	}
	for _, l := range loans {
		if l.Status != StatusOpen {
			t.Fatalf("non-open loan in list: %+v", l)
		}
	}
	if loans[0].LoanAmount != "1" || loans[0].AmountToBeRepayed != "1.05" {
		t.Fatalf("unexpected formatting: %+v", loans[0])
	}
	if len(refreshed) != 1 || len(f.projection.Snapshot().Loans) != 2 {
		t.Fatalf("snapshot not replaced")
	}
	if got := testutil.ToFloat64(f.metrics.ProjectionSize); got != 2 {
		t.Fatalf("expected open loans gauge 2, got %v", got)
	}
}

func TestListOpenLoansRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	seed(t, f.chain, Status(7), otherAddr, common.Address{}, "1", "1.05")

	_, err := f.projection.ListOpenLoans(context.Background())
	if !apperr.Is(err, apperr.KindChainUnavailable) {
		t.Fatalf("expected chain_unavailable for undecodable status, got %v", err)
	}
}

func TestGetLoanDetail(t *testing.T) {
	f := newFixture(t)
	lender := f.signer.Address()
	seed(t, f.chain, StatusLoaned, otherAddr, lender, "2", "2.1")

	rec, err := f.projection.GetLoanDetail(context.Background(), 0)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if rec.Status != StatusLoaned || rec.LenderAddress != lender || rec.AmountToBeRepayedWei != ether(t, "2.1").String() {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := f.projection.GetLoanDetail(context.Background(), 1); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestRepayRejectsMismatchWithoutSubmitting(t *testing.T) {
	f := newFixture(t)
	id := seed(t, f.chain, StatusLoaned, f.signer.Address(), otherAddr, "1", "1.05")
	submitted := countSubmissions(f.chain)

	cases := []string{"1.5", "1.050000000000000001", "1.049999999999999999", "abc", ""}
	for _, amount := range cases {
		_, err := f.actions.RepayLoan(context.Background(), id, amount)
		if !apperr.Is(err, apperr.KindPreconditionFailed) {
			t.Fatalf("amount %q: expected precondition_failed, got %v", amount, err)
		}
	}
	_, err := f.actions.RepayLoan(context.Background(), id, "1.5")
	if msg := apperr.Message(err); msg != "Incorrect repayment amount. Required: 1.05 ETH" {
		t.Fatalf("unexpected message: %q", msg)
	}
	if *submitted != 0 {
		t.Fatalf("expected no submissions, got %d", *submitted)
	}
	if got := testutil.ToFloat64(f.metrics.LoanActions.WithLabelValues(ActionRepay, "precondition_failed")); got != 6 {
		t.Fatalf("expected 6 precondition failures, got %v", got)
	}
}

func TestRepaySucceedsWithExactAmount(t *testing.T) {
	f := newFixture(t)
	id := seed(t, f.chain, StatusLoaned, f.signer.Address(), otherAddr, "1", "1.05")

	res, err := f.actions.RepayLoan(context.Background(), id, "1.050")
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if res.Message != repaySuccessMessage || res.Receipt == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	rec, _ := f.projection.GetLoanDetail(context.Background(), id)
	if rec.Status != StatusClosed {
		t.Fatalf("expected closed loan, got %s", rec.Status)
	}
}

func TestFundRemovesLoanFromOpenList(t *testing.T) {
	f := newFixture(t)
	id := seed(t, f.chain, StatusOpen, otherAddr, common.Address{}, "1", "1.05")
	seed(t, f.chain, StatusOpen, otherAddr, common.Address{}, "2", "2.1")

	if _, err := f.actions.FundLoan(context.Background(), id); err != nil {
		t.Fatalf("fund: %v", err)
	}
	for _, l := range f.projection.Snapshot().Loans {
		if l.LoanID == id {
			t.Fatalf("funded loan still listed as open")
		}
	}
	bal, _ := f.chain.BalanceOf(context.Background(), f.signer.Address())
	if bal.Cmp(ether(t, "9")) != 0 {
		t.Fatalf("expected lender balance 9 ETH, got %s", blockchain.FormatEther(bal))
	}
}

func TestCancelRemovesLoanFromOpenList(t *testing.T) {
	f := newFixture(t)
	id := seed(t, f.chain, StatusOpen, f.signer.Address(), common.Address{}, "1", "1.05")

	if _, err := f.actions.CancelLoanRequest(context.Background(), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	loans, _ := f.projection.ListOpenLoans(context.Background())
	if len(loans) != 0 {
		t.Fatalf("expected empty open list, got %+v", loans)
	}
	if _, err := f.actions.CancelLoanRequest(context.Background(), id); !apperr.Is(err, apperr.KindPreconditionFailed) {
		t.Fatalf("expected precondition_failed on closed loan, got %v", err)
	}
}

func TestCancelByNonBorrowerReverts(t *testing.T) {
	f := newFixture(t)
	id := seed(t, f.chain, StatusOpen, otherAddr, common.Address{}, "1", "1.05")

	_, err := f.actions.CancelLoanRequest(context.Background(), id)
	if !apperr.Is(err, apperr.KindContractReverted) || !errors.Is(err, blockchain.ErrReverted) {
		t.Fatalf("expected contract_reverted, got %v", err)
	}
}

func TestFundRaceSurfacesRevert(t *testing.T) {
	f := newFixture(t)
	id := seed(t, f.chain, StatusOpen, otherAddr, common.Address{}, "1", "1.05")
	rival := newKeySigner(t)

	fired := false
	f.chain.BeforeTransact = func(method string) {
		if method != "lendMoney" || fired {
			return
		}
		fired = true
		opts := blockchain.TxOpts{Signer: rival, Value: ether(t, "1"), GasLimit: 300000}
		if _, err := f.chain.LendMoney(context.Background(), opts, id); err != nil {
			t.Errorf("rival fund: %v", err)
		}
	}

	_, err := f.actions.FundLoan(context.Background(), id)
	if !apperr.Is(err, apperr.KindContractReverted) {
		t.Fatalf("expected contract_reverted for lost race, got %v", err)
	}
	rec, _ := f.projection.GetLoanDetail(context.Background(), id)
	if rec.LenderAddress != rival.Address() {
		t.Fatalf("expected rival as lender, got %s", rec.LenderAddress.Hex())
	}
}

// unconfirmedRegistry broadcasts lendMoney but never sees its receipt.
type unconfirmedRegistry struct {
	*blockchain.StubChain
}

func (unconfirmedRegistry) LendMoney(context.Context, blockchain.TxOpts, uint64) (*blockchain.Receipt, error) {
	return nil, fmt.Errorf("lendMoney: %w", &blockchain.PendingTxError{TxHash: "0xabc", Err: context.Canceled})
}

func TestFundUnconfirmedReportsTxHash(t *testing.T) {
	f := newFixture(t)
	id := seed(t, f.chain, StatusOpen, otherAddr, common.Address{}, "1", "1.05")
	actions := NewActions(unconfirmedRegistry{f.chain}, staticSigners{signer: f.signer}, f.projection, ActionsConfig{}, observability.NopLogger(), f.metrics)

	_, err := actions.FundLoan(context.Background(), id)
	if !apperr.Is(err, apperr.KindChainUnavailable) || !errors.Is(err, blockchain.ErrNotConfirmed) {
		t.Fatalf("expected unconfirmed chain error, got %v", err)
	}
	if msg := apperr.Message(err); !strings.Contains(msg, "0xabc") || strings.Contains(msg, "could not be reached") {
		t.Fatalf("unexpected message: %q", msg)
	}
}

// ctxRegistry fails reads on a done context, as a node client does.
type ctxRegistry struct {
	*blockchain.StubChain
}

func (r ctxRegistry) LoanCount(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.StubChain.LoanCount(ctx)
}

func TestRefreshAfterFundSurvivesCancelledCaller(t *testing.T) {
	f := newFixture(t)
	id := seed(t, f.chain, StatusOpen, otherAddr, common.Address{}, "1", "1.05")
	registry := ctxRegistry{f.chain}
	projection := NewProjection(registry, observability.NopLogger(), f.metrics)
	actions := NewActions(registry, staticSigners{signer: f.signer}, projection, ActionsConfig{}, observability.NopLogger(), f.metrics)
	if _, err := projection.ListOpenLoans(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.chain.BeforeTransact = func(string) { cancel() }

	if _, err := actions.FundLoan(ctx, id); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if snap := projection.Snapshot(); len(snap.Loans) != 0 {
		t.Fatalf("expected refreshed projection without loan %d, got %+v", id, snap.Loans)
	}
}

func TestCreateLoanRequest(t *testing.T) {
	f := newFixture(t)

	res, err := f.actions.CreateLoanRequest(context.Background(), CreateInput{
		NFTAddress: nftAddr.Hex(),
		NFTID:      "42",
		Amount:     "0.5",
		Duration:   "60",
		Interest:   "10",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Receipt == nil {
		t.Fatalf("expected receipt")
	}
	snap := f.projection.Snapshot()
	if len(snap.Loans) != 1 {
		t.Fatalf("expected refreshed snapshot with new loan, got %+v", snap)
	}
	got := snap.Loans[0]
	if got.BorrowerAddress != f.signer.Address() || got.NFTID != "42" || got.AmountToBeRepayed != "0.55" {
		t.Fatalf("unexpected created loan: %+v", got)
	}
}

func TestCreateLoanRequestPreconditions(t *testing.T) {
	f := newFixture(t)
	submitted := countSubmissions(f.chain)

	valid := CreateInput{NFTAddress: nftAddr.Hex(), NFTID: "1", Amount: "1", Duration: "60", Interest: "5"}
	bad := []CreateInput{
		{NFTAddress: "nope", NFTID: "1", Amount: "1", Duration: "60", Interest: "5"},
		{NFTAddress: nftAddr.Hex(), NFTID: "-1", Amount: "1", Duration: "60", Interest: "5"},
		{NFTAddress: nftAddr.Hex(), NFTID: "1", Amount: "0", Duration: "60", Interest: "5"},
		{NFTAddress: nftAddr.Hex(), NFTID: "1", Amount: "1", Duration: "0", Interest: "5"},
		{NFTAddress: nftAddr.Hex(), NFTID: "1", Amount: "1", Duration: "60", Interest: "x"},
	}
	for i, in := range bad {
		if _, err := f.actions.CreateLoanRequest(context.Background(), in); !apperr.Is(err, apperr.KindPreconditionFailed) {
			t.Fatalf("case %d: expected precondition_failed, got %v", i, err)
		}
	}

	f.chain.SetBalance(f.signer.Address(), ether(t, "0.001"))
	_, err := f.actions.CreateLoanRequest(context.Background(), valid)
	if !apperr.Is(err, apperr.KindPreconditionFailed) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if *submitted != 0 {
		t.Fatalf("expected no submissions, got %d", *submitted)
	}
}

func TestActionsRequireSigner(t *testing.T) {
	f := newFixture(t)
	id := seed(t, f.chain, StatusOpen, otherAddr, common.Address{}, "1", "1.05")

	noSession := NewActions(f.chain, staticSigners{err: apperr.New(apperr.KindUnauthenticated, "Connect a wallet first.")}, f.projection, ActionsConfig{}, observability.NopLogger(), nil)
	if _, err := noSession.FundLoan(context.Background(), id); !apperr.Is(err, apperr.KindUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	f.signer.refuse = true
	if _, err := f.actions.FundLoan(context.Background(), id); !apperr.Is(err, apperr.KindUserRejected) {
		t.Fatalf("expected user_rejected, got %v", err)
	}
	rec, _ := f.projection.GetLoanDetail(context.Background(), id)
	if rec.Status != StatusOpen {
		t.Fatalf("refused transaction must not change state")
	}
}

func TestFundUnknownLoan(t *testing.T) {
	f := newFixture(t)
	if _, err := f.actions.FundLoan(context.Background(), 9); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	for raw, want := range map[uint8]Status{0: StatusOpen, 1: StatusLoaned, 2: StatusClosed} {
		got, err := ParseStatus(raw)
		if err != nil || got != want {
			t.Fatalf("ParseStatus(%d) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParseStatus(3); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}
