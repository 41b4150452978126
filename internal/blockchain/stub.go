package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	stubStatusOpen   uint8 = 0
	stubStatusLoaned uint8 = 1
	stubStatusClosed uint8 = 2
)

var stubChainID = big.NewInt(1337)

type nftKey struct {
	nft     common.Address
	tokenID string
}

// StubChain is an in-memory stand-in for the lending and piggy-bank
// contracts. It applies the same transition rules the deployed contract
// enforces and reverts with ErrReverted where the contract would.
type StubChain struct {
	mu sync.Mutex

	registry       common.Address
	initialBalance *big.Int
	now            func() time.Time

	loans     []*LoanDetails
	// approvals maps a token to the account that approved the registry for it.
	approvals map[nftKey]common.Address
	custody   map[nftKey]common.Address
	balances  map[common.Address]*big.Int
	piggy     map[common.Address]*big.Int
	events    []LoanEvent
	block     uint64
	txCount   uint64

	// BeforeTransact runs before every state-changing call, outside the lock.
	// Tests use it to interleave competing transactions.
	BeforeTransact func(method string)
}

func NewStubChain(registry common.Address, initialBalance *big.Int) *StubChain {
	if initialBalance == nil {
		initialBalance = new(big.Int)
	}
	return &StubChain{
		registry:       registry,
		initialBalance: new(big.Int).Set(initialBalance),
		now:            func() time.Time { return time.Now().UTC() },
		approvals:      map[nftKey]common.Address{},
		custody:        map[nftKey]common.Address{},
		balances:       map[common.Address]*big.Int{},
		piggy:          map[common.Address]*big.Int{},
		block:          1,
	}
}

func (s *StubChain) Close() {}

func (s *StubChain) RegistryAddress() common.Address {
	return s.registry
}

// SeedLoan appends a loan record verbatim and returns its id.
func (s *StubChain) SeedLoan(d LoanDetails) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uint64(len(s.loans))
	cp := cloneDetails(&d)
	cp.LoanIndex = new(big.Int).SetUint64(id)
	s.loans = append(s.loans, cp)
	return id
}

func (s *StubChain) SetBalance(account common.Address, wei *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[account] = new(big.Int).Set(wei)
}

func (s *StubChain) LoanCount(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.loans)), nil
}

func (s *StubChain) LoanDetails(_ context.Context, loanID uint64) (*LoanDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loanID >= uint64(len(s.loans)) {
		return nil, fmt.Errorf("%w: unknown loan %d", ErrReverted, loanID)
	}
	return cloneDetails(s.loans[loanID]), nil
}

func (s *StubChain) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.balanceLocked(account)), nil
}

func (s *StubChain) ApproveNFT(_ context.Context, opts TxOpts, nft common.Address, tokenID *big.Int) (*Receipt, error) {
	return s.transact("approve", opts, func(from common.Address) error {
		key := nftKey{nft: nft, tokenID: tokenID.String()}
		if holder, ok := s.custody[key]; ok && holder != from {
			return fmt.Errorf("%w: caller does not own token", ErrReverted)
		}
		s.approvals[key] = from
		return nil
	})
}

func (s *StubChain) AskForLoan(_ context.Context, opts TxOpts, req LoanRequest) (*Receipt, error) {
	return s.transact("askForLoan", opts, func(from common.Address) error {
		key := nftKey{nft: req.NFTAddress, tokenID: req.NFTID.String()}
		if approver, ok := s.approvals[key]; !ok || approver != from {
			return fmt.Errorf("%w: nft not approved by caller", ErrReverted)
		}
		if req.Amount.Sign() <= 0 {
			return fmt.Errorf("%w: amount must be positive", ErrReverted)
		}
		delete(s.approvals, key)
		s.custody[key] = s.registry

		interest := new(big.Int).Mul(req.Amount, req.Interest)
		interest.Quo(interest, big.NewInt(100))
		id := uint64(len(s.loans))
		s.loans = append(s.loans, &LoanDetails{
			LoanAmount:               new(big.Int).Set(req.Amount),
			Interest:                 new(big.Int).Set(req.Interest),
			AmountToBeRepayed:        new(big.Int).Add(req.Amount, interest),
			NFTID:                    new(big.Int).Set(req.NFTID),
			LoanDuration:             new(big.Int).Set(req.Duration),
			LoanDurationEndTimestamp: new(big.Int),
			LoanIndex:                new(big.Int).SetUint64(id),
			NFTAddress:               req.NFTAddress,
			Borrower:                 from,
			Status:                   stubStatusOpen,
		})
		s.emit("NewLoan", id)
		return nil
	})
}

func (s *StubChain) LendMoney(_ context.Context, opts TxOpts, loanID uint64) (*Receipt, error) {
	return s.transact("lendMoney", opts, func(from common.Address) error {
		loan, err := s.loanLocked(loanID)
		if err != nil {
			return err
		}
		if loan.Status != stubStatusOpen {
			return fmt.Errorf("%w: loan is not open", ErrReverted)
		}
		if valueOf(opts).Cmp(loan.LoanAmount) != 0 {
			return fmt.Errorf("%w: value must equal loan amount", ErrReverted)
		}
		if err := s.transferLocked(from, loan.Borrower, loan.LoanAmount); err != nil {
			return err
		}
		minutes := loan.LoanDuration.Int64()
		loan.Lender = from
		loan.LoanDurationEndTimestamp = big.NewInt(s.now().Add(time.Duration(minutes) * time.Minute).Unix())
		loan.Status = stubStatusLoaned
		s.emit("Loaned", loanID)
		return nil
	})
}

func (s *StubChain) CloseBorrowRequest(_ context.Context, opts TxOpts, loanID uint64) (*Receipt, error) {
	return s.transact("closeBorrowRequest", opts, func(from common.Address) error {
		loan, err := s.loanLocked(loanID)
		if err != nil {
			return err
		}
		if loan.Status != stubStatusOpen {
			return fmt.Errorf("%w: loan is not open", ErrReverted)
		}
		if loan.Borrower != from {
			return fmt.Errorf("%w: only the borrower can close the request", ErrReverted)
		}
		loan.Status = stubStatusClosed
		s.custody[nftKey{nft: loan.NFTAddress, tokenID: loan.NFTID.String()}] = loan.Borrower
		s.emit("RequestClosed", loanID)
		return nil
	})
}

func (s *StubChain) RepayLoan(_ context.Context, opts TxOpts, loanID uint64) (*Receipt, error) {
	return s.transact("repayLoan", opts, func(from common.Address) error {
		loan, err := s.loanLocked(loanID)
		if err != nil {
			return err
		}
		if loan.Status != stubStatusLoaned {
			return fmt.Errorf("%w: loan is not active", ErrReverted)
		}
		if loan.Borrower != from {
			return fmt.Errorf("%w: only the borrower can repay", ErrReverted)
		}
		if valueOf(opts).Cmp(loan.AmountToBeRepayed) != 0 {
			return fmt.Errorf("%w: incorrect repayment amount", ErrReverted)
		}
		if err := s.transferLocked(from, loan.Lender, loan.AmountToBeRepayed); err != nil {
			return err
		}
		loan.Status = stubStatusClosed
		s.custody[nftKey{nft: loan.NFTAddress, tokenID: loan.NFTID.String()}] = loan.Borrower
		s.emit("LoanRepayed", loanID)
		return nil
	})
}

func (s *StubChain) Deposit(_ context.Context, opts TxOpts) (*Receipt, error) {
	return s.transact("deposit", opts, func(from common.Address) error {
		value := valueOf(opts)
		if value.Sign() <= 0 {
			return fmt.Errorf("%w: deposit must be positive", ErrReverted)
		}
		bal := s.balanceLocked(from)
		if bal.Cmp(value) < 0 {
			return fmt.Errorf("%w: insufficient funds", ErrReverted)
		}
		bal.Sub(bal, value)
		held, ok := s.piggy[from]
		if !ok {
			held = new(big.Int)
			s.piggy[from] = held
		}
		held.Add(held, value)
		return nil
	})
}

func (s *StubChain) BreakPiggyBank(_ context.Context, opts TxOpts) (*Receipt, error) {
	return s.transact("breakPiggyBank", opts, func(from common.Address) error {
		held, ok := s.piggy[from]
		if !ok || held.Sign() == 0 {
			return fmt.Errorf("%w: piggy bank is empty", ErrReverted)
		}
		bal := s.balanceLocked(from)
		bal.Add(bal, held)
		delete(s.piggy, from)
		return nil
	})
}

func (s *StubChain) PiggyBalance(_ context.Context, caller common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.piggy[caller]; ok {
		return new(big.Int).Set(held), nil
	}
	return new(big.Int), nil
}

func (s *StubChain) LoanEvents(_ context.Context, loanID uint64) ([]LoanEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []LoanEvent{}
	for _, ev := range s.events {
		if ev.LoanID == loanID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// transact signs a placeholder transaction so signer refusals surface the
// same way they do against a node, then applies fn atomically.
func (s *StubChain) transact(method string, opts TxOpts, fn func(from common.Address) error) (*Receipt, error) {
	if opts.Signer == nil {
		return nil, fmt.Errorf("%s: missing signer: %w", method, ErrSignerRejected)
	}
	if hook := s.BeforeTransact; hook != nil {
		hook(method)
	}
	from := opts.Signer.Address()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCount++
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    s.txCount,
		To:       &s.registry,
		Value:    valueOf(opts),
		Gas:      opts.GasLimit,
		GasPrice: new(big.Int),
		Data:     []byte(method),
	})
	if _, err := opts.Signer.SignTx(tx, stubChainID); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", method, ErrSignerRejected, err)
	}
	if err := fn(from); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	s.block++
	return &Receipt{
		TxHash:      keccakHex([]byte(fmt.Sprintf("%s:%d:%s", method, s.txCount, from.Hex()))),
		BlockNumber: s.block,
	}, nil
}

func (s *StubChain) emit(name string, loanID uint64) {
	s.events = append(s.events, LoanEvent{
		Name:        name,
		LoanID:      loanID,
		BlockNumber: s.block + 1,
		TxHash:      keccakHex([]byte(fmt.Sprintf("%s:%d", name, s.txCount))),
		LogIndex:    0,
	})
}

func (s *StubChain) loanLocked(loanID uint64) (*LoanDetails, error) {
	if loanID >= uint64(len(s.loans)) {
		return nil, fmt.Errorf("%w: unknown loan %d", ErrReverted, loanID)
	}
	return s.loans[loanID], nil
}

func (s *StubChain) balanceLocked(account common.Address) *big.Int {
	bal, ok := s.balances[account]
	if !ok {
		bal = new(big.Int).Set(s.initialBalance)
		s.balances[account] = bal
	}
	return bal
}

func (s *StubChain) transferLocked(from, to common.Address, amount *big.Int) error {
	src := s.balanceLocked(from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: insufficient funds", ErrReverted)
	}
	src.Sub(src, amount)
	dst := s.balanceLocked(to)
	dst.Add(dst, amount)
	return nil
}

func valueOf(opts TxOpts) *big.Int {
	if opts.Value == nil {
		return new(big.Int)
	}
	return opts.Value
}

func cloneDetails(d *LoanDetails) *LoanDetails {
	cp := *d
	cp.LoanAmount = cloneInt(d.LoanAmount)
	cp.Interest = cloneInt(d.Interest)
	cp.AmountToBeRepayed = cloneInt(d.AmountToBeRepayed)
	cp.NFTID = cloneInt(d.NFTID)
	cp.LoanDuration = cloneInt(d.LoanDuration)
	cp.LoanDurationEndTimestamp = cloneInt(d.LoanDurationEndTimestamp)
	cp.LoanIndex = cloneInt(d.LoanIndex)
	return &cp
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
