package loan

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftlender/backend/internal/blockchain"
)

type Status uint8

const (
	StatusOpen   Status = 0
	StatusLoaned Status = 1
	StatusClosed Status = 2
)

// ParseStatus maps the raw contract value. Anything outside the three known
// states is a decoding error.
func ParseStatus(raw uint8) (Status, error) {
	switch Status(raw) {
	case StatusOpen, StatusLoaned, StatusClosed:
		return Status(raw), nil
	default:
		return 0, fmt.Errorf("unknown loan status %d", raw)
	}
}

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusLoaned:
		return "loaned"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Record is the display projection of one contract loan. Amounts are ether
// decimal strings; the Wei fields keep the exact contract values.
type Record struct {
	LoanID                   uint64         `json:"loan_id"`
	NFTAddress               common.Address `json:"nft_address"`
	NFTID                    string         `json:"nft_id"`
	LoanAmount               string         `json:"loan_amount"`
	LoanAmountWei            string         `json:"loan_amount_wei"`
	Interest                 string         `json:"interest"`
	LoanDuration             string         `json:"loan_duration"`
	LoanDurationEndTimestamp string         `json:"loan_duration_end_timestamp"`
	AmountToBeRepayed        string         `json:"amount_to_be_repayed"`
	AmountToBeRepayedWei     string         `json:"amount_to_be_repayed_wei"`
	BorrowerAddress          common.Address `json:"borrower_address"`
	LenderAddress            common.Address `json:"lender_address"`
	Status                   Status         `json:"status"`
}

func recordFromDetails(loanID uint64, d *blockchain.LoanDetails) (Record, error) {
	status, err := ParseStatus(d.Status)
	if err != nil {
		return Record{}, fmt.Errorf("loan %d: %w", loanID, err)
	}
	return Record{
		LoanID:                   loanID,
		NFTAddress:               d.NFTAddress,
		NFTID:                    intString(d.NFTID),
		LoanAmount:               blockchain.FormatEther(d.LoanAmount),
		LoanAmountWei:            intString(d.LoanAmount),
		Interest:                 intString(d.Interest),
		LoanDuration:             intString(d.LoanDuration),
		LoanDurationEndTimestamp: intString(d.LoanDurationEndTimestamp),
		AmountToBeRepayed:        blockchain.FormatEther(d.AmountToBeRepayed),
		AmountToBeRepayedWei:     intString(d.AmountToBeRepayed),
		BorrowerAddress:          d.Borrower,
		LenderAddress:            d.Lender,
		Status:                   status,
	}, nil
}

// Snapshot is the last open-loan list fetched from the contract.
type Snapshot struct {
	Loans     []Record  `json:"loans"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CreateInput is the raw form of a loan request. Amount is in ether, Duration
// in minutes and Interest an integer percentage.
type CreateInput struct {
	NFTAddress string `json:"nft_address"`
	NFTID      string `json:"nft_id"`
	Amount     string `json:"amount"`
	Duration   string `json:"duration"`
	Interest   string `json:"interest"`
}

type ActionResult struct {
	Action  string              `json:"action"`
	LoanID  *uint64             `json:"loan_id,omitempty"`
	Receipt *blockchain.Receipt `json:"receipt"`
	Message string              `json:"message"`
}

// SignerSource hands out the signer of the connected wallet.
type SignerSource interface {
	Signer() (blockchain.Signer, error)
}

type Reader interface {
	ListOpenLoans(ctx context.Context) ([]Record, error)
	GetLoanDetail(ctx context.Context, loanID uint64) (*Record, error)
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
