package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nftlender/backend/internal/apperr"
	"github.com/nftlender/backend/internal/blockchain"
	"github.com/nftlender/backend/internal/observability"
)

// Projection is a read-through view of the lending contract. It holds no
// authoritative state: every list call re-reads the contract and replaces
// the cached snapshot wholesale.
type Projection struct {
	registry blockchain.LoanRegistry
	logger   *slog.Logger
	metrics  *observability.Metrics
	now      func() time.Time

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []func(Snapshot)
}

func NewProjection(registry blockchain.LoanRegistry, logger *slog.Logger, metrics *observability.Metrics) *Projection {
	return &Projection{
		registry: registry,
		logger:   logger,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
		snapshot: Snapshot{Loans: []Record{}},
	}
}

// OnRefresh registers a listener for every replaced snapshot.
func (p *Projection) OnRefresh(handler func(Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, handler)
}

func (p *Projection) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// ListOpenLoans reads the loan count once, then every loan in id order, and
// keeps the Open ones. There is no batching; cost is linear in the total
// number of loans ever created.
func (p *Projection) ListOpenLoans(ctx context.Context) ([]Record, error) {
	count, err := p.registry.LoanCount(ctx)
	if err != nil {
		return nil, chainError("Could not read the loan count.", err)
	}

	open := make([]Record, 0)
	for id := uint64(0); id < count; id++ {
		details, err := p.registry.LoanDetails(ctx, id)
		if err != nil {
			return nil, chainError(fmt.Sprintf("Could not read loan %d.", id), err)
		}
		rec, err := recordFromDetails(id, details)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindChainUnavailable, "The contract returned an unreadable loan.", err)
		}
		if rec.Status == StatusOpen {
			open = append(open, rec)
		}
	}

	p.replace(Snapshot{Loans: open, FetchedAt: p.now()})
	return open, nil
}

// Refresh is ListOpenLoans for callers that only care about the side effect.
func (p *Projection) Refresh(ctx context.Context) error {
	_, err := p.ListOpenLoans(ctx)
	return err
}

// GetLoanDetail returns one loan regardless of status.
func (p *Projection) GetLoanDetail(ctx context.Context, loanID uint64) (*Record, error) {
	details, err := readLoan(ctx, p.registry, loanID)
	if err != nil {
		return nil, err
	}
	rec, err := recordFromDetails(loanID, details)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindChainUnavailable, "The contract returned an unreadable loan.", err)
	}
	return &rec, nil
}

// readLoan is a fresh, bounds-checked getDetails read.
func readLoan(ctx context.Context, registry blockchain.LoanRegistry, loanID uint64) (*blockchain.LoanDetails, error) {
	count, err := registry.LoanCount(ctx)
	if err != nil {
		return nil, chainError("Could not read the loan count.", err)
	}
	if loanID >= count {
		return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("Loan %d does not exist.", loanID))
	}
	details, err := registry.LoanDetails(ctx, loanID)
	if err != nil {
		return nil, chainError(fmt.Sprintf("Could not read loan %d.", loanID), err)
	}
	return details, nil
}

// replace swaps the snapshot. A slow read that started earlier can land
// after a newer one; last writer wins.
func (p *Projection) replace(next Snapshot) {
	p.mu.Lock()
	p.snapshot = next
	listeners := append([]func(Snapshot){}, p.listeners...)
	p.mu.Unlock()

	p.metrics.SetOpenLoans(len(next.Loans))
	p.logger.Debug("loan projection refreshed", "open_loans", len(next.Loans))
	for _, l := range listeners {
		l(next)
	}
}

func chainError(message string, err error) error {
	switch {
	case errors.Is(err, blockchain.ErrReverted):
		return apperr.Wrap(apperr.KindContractReverted, message, err)
	default:
		return apperr.Wrap(apperr.KindChainUnavailable, message, err)
	}
}
