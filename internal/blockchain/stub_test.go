package blockchain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testRegistry = common.HexToAddress("0x4Bb63DBd5dAc2d514Ef9EA99E22a11330628d0a3")
	testNFT      = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func ether(t *testing.T, s string) *big.Int {
	t.Helper()
	wei, err := ParseEther(s)
	if err != nil {
		t.Fatalf("parse ether %q: %v", s, err)
	}
	return wei
}

func requestLoan(t *testing.T, chain *StubChain, borrower *testSigner, tokenID int64) uint64 {
	t.Helper()
	ctx := context.Background()
	opts := TxOpts{Signer: borrower, GasLimit: 500000}
	if _, err := chain.ApproveNFT(ctx, opts, testNFT, big.NewInt(tokenID)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	before, _ := chain.LoanCount(ctx)
	if _, err := chain.AskForLoan(ctx, opts, LoanRequest{
		NFTID:      big.NewInt(tokenID),
		NFTAddress: testNFT,
		Amount:     ether(t, "1"),
		Duration:   big.NewInt(60),
		Interest:   big.NewInt(5),
	}); err != nil {
		t.Fatalf("ask for loan: %v", err)
	}
	return before
}

func TestStubChainLoanLifecycle(t *testing.T) {
	ctx := context.Background()
	chain := NewStubChain(testRegistry, ether(t, "10"))
	borrower := newTestSigner(t)
	lender := newTestSigner(t)

	id := requestLoan(t, chain, borrower, 7)
	loan, err := chain.LoanDetails(ctx, id)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if loan.Status != stubStatusOpen || loan.Borrower != borrower.Address() {
		t.Fatalf("unexpected new loan: %+v", loan)
	}
	if loan.AmountToBeRepayed.Cmp(ether(t, "1.05")) != 0 {
		t.Fatalf("expected 1.05 to repay, got %s", FormatEther(loan.AmountToBeRepayed))
	}

	if _, err := chain.LendMoney(ctx, TxOpts{Signer: lender, Value: ether(t, "1")}, id); err != nil {
		t.Fatalf("lend: %v", err)
	}
	loan, _ = chain.LoanDetails(ctx, id)
	if loan.Status != stubStatusLoaned || loan.Lender != lender.Address() || loan.LoanDurationEndTimestamp.Sign() == 0 {
		t.Fatalf("unexpected funded loan: %+v", loan)
	}

	if _, err := chain.RepayLoan(ctx, TxOpts{Signer: borrower, Value: ether(t, "1.05")}, id); err != nil {
		t.Fatalf("repay: %v", err)
	}
	loan, _ = chain.LoanDetails(ctx, id)
	if loan.Status != stubStatusClosed {
		t.Fatalf("expected closed loan, got status %d", loan.Status)
	}

	lenderBal, _ := chain.BalanceOf(ctx, lender.Address())
	if lenderBal.Cmp(ether(t, "10.05")) != 0 {
		t.Fatalf("expected lender balance 10.05, got %s", FormatEther(lenderBal))
	}

	events, _ := chain.LoanEvents(ctx, id)
	names := []string{}
	for _, ev := range events {
		names = append(names, ev.Name)
	}
	if len(names) != 3 || names[0] != "NewLoan" || names[1] != "Loaned" || names[2] != "LoanRepayed" {
		t.Fatalf("unexpected events: %v", names)
	}
}

func TestStubChainRevertsInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	chain := NewStubChain(testRegistry, ether(t, "10"))
	borrower := newTestSigner(t)
	lender := newTestSigner(t)

	if _, err := chain.AskForLoan(ctx, TxOpts{Signer: borrower}, LoanRequest{
		NFTID: big.NewInt(1), NFTAddress: testNFT, Amount: ether(t, "1"), Duration: big.NewInt(1), Interest: big.NewInt(1),
	}); !errors.Is(err, ErrReverted) {
		t.Fatalf("expected revert without approval, got %v", err)
	}

	id := requestLoan(t, chain, borrower, 2)
	if _, err := chain.LendMoney(ctx, TxOpts{Signer: lender, Value: ether(t, "0.5")}, id); !errors.Is(err, ErrReverted) {
		t.Fatalf("expected revert on wrong value, got %v", err)
	}
	if _, err := chain.CloseBorrowRequest(ctx, TxOpts{Signer: lender}, id); !errors.Is(err, ErrReverted) {
		t.Fatalf("expected revert when non-borrower closes, got %v", err)
	}
	if _, err := chain.CloseBorrowRequest(ctx, TxOpts{Signer: borrower}, id); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := chain.LendMoney(ctx, TxOpts{Signer: lender, Value: ether(t, "1")}, id); !errors.Is(err, ErrReverted) {
		t.Fatalf("expected revert funding a closed loan, got %v", err)
	}
	if _, err := chain.LoanDetails(ctx, 99); !errors.Is(err, ErrReverted) {
		t.Fatalf("expected revert for unknown loan, got %v", err)
	}
}

func TestStubChainApprovalBelongsToApprover(t *testing.T) {
	ctx := context.Background()
	chain := NewStubChain(testRegistry, ether(t, "10"))
	owner := newTestSigner(t)
	intruder := newTestSigner(t)

	if _, err := chain.ApproveNFT(ctx, TxOpts{Signer: owner}, testNFT, big.NewInt(9)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	req := LoanRequest{NFTID: big.NewInt(9), NFTAddress: testNFT, Amount: ether(t, "1"), Duration: big.NewInt(60), Interest: big.NewInt(5)}
	if _, err := chain.AskForLoan(ctx, TxOpts{Signer: intruder}, req); !errors.Is(err, ErrReverted) {
		t.Fatalf("expected revert for a token approved by someone else, got %v", err)
	}
	if _, err := chain.AskForLoan(ctx, TxOpts{Signer: owner}, req); err != nil {
		t.Fatalf("owner ask for loan: %v", err)
	}
}

func TestStubChainSignerRefusal(t *testing.T) {
	chain := NewStubChain(testRegistry, ether(t, "10"))
	signer := newTestSigner(t)
	signer.refuse = true

	_, err := chain.ApproveNFT(context.Background(), TxOpts{Signer: signer}, testNFT, big.NewInt(1))
	if !errors.Is(err, ErrSignerRejected) {
		t.Fatalf("expected signer rejection, got %v", err)
	}
	if _, err := chain.Deposit(context.Background(), TxOpts{Value: big.NewInt(1)}); !errors.Is(err, ErrSignerRejected) {
		t.Fatalf("expected missing signer rejection, got %v", err)
	}
}

func TestStubChainPiggyBank(t *testing.T) {
	ctx := context.Background()
	chain := NewStubChain(testRegistry, ether(t, "2"))
	owner := newTestSigner(t)

	if _, err := chain.Deposit(ctx, TxOpts{Signer: owner, Value: ether(t, "0.5")}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	held, _ := chain.PiggyBalance(ctx, owner.Address())
	if held.Cmp(ether(t, "0.5")) != 0 {
		t.Fatalf("expected 0.5 held, got %s", FormatEther(held))
	}
	if _, err := chain.BreakPiggyBank(ctx, TxOpts{Signer: owner}); err != nil {
		t.Fatalf("break: %v", err)
	}
	bal, _ := chain.BalanceOf(ctx, owner.Address())
	if bal.Cmp(ether(t, "2")) != 0 {
		t.Fatalf("expected balance restored to 2, got %s", FormatEther(bal))
	}
	if _, err := chain.BreakPiggyBank(ctx, TxOpts{Signer: owner}); !errors.Is(err, ErrReverted) {
		t.Fatalf("expected revert on empty piggy bank, got %v", err)
	}
}
