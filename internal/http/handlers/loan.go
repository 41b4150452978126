package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nftlender/backend/internal/apperr"
	"github.com/nftlender/backend/internal/blockchain"
	loandomain "github.com/nftlender/backend/internal/domain/loan"
)

type LoanReader interface {
	ListOpenLoans(ctx context.Context) ([]loandomain.Record, error)
	GetLoanDetail(ctx context.Context, loanID uint64) (*loandomain.Record, error)
}

type LoanActions interface {
	CreateLoanRequest(ctx context.Context, in loandomain.CreateInput) (*loandomain.ActionResult, error)
	FundLoan(ctx context.Context, loanID uint64) (*loandomain.ActionResult, error)
	CancelLoanRequest(ctx context.Context, loanID uint64) (*loandomain.ActionResult, error)
	RepayLoan(ctx context.Context, loanID uint64, amount string) (*loandomain.ActionResult, error)
}

type LoanHandler struct {
	reader  LoanReader
	actions LoanActions
	events  blockchain.EventSource
}

type repayRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func NewLoanHandler(reader LoanReader, actions LoanActions, events blockchain.EventSource) *LoanHandler {
	return &LoanHandler{reader: reader, actions: actions, events: events}
}

func (h *LoanHandler) ListOpenLoans(c *gin.Context) {
	loans, err := h.reader.ListOpenLoans(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": loans, "count": len(loans)})
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	loanID, ok := parseLoanID(c)
	if !ok {
		return
	}
	rec, err := h.reader.GetLoanDetail(c.Request.Context(), loanID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *LoanHandler) GetLoanEvents(c *gin.Context) {
	loanID, ok := parseLoanID(c)
	if !ok {
		return
	}
	if _, err := h.reader.GetLoanDetail(c.Request.Context(), loanID); err != nil {
		writeError(c, err)
		return
	}
	events, err := h.events.LoanEvents(c.Request.Context(), loanID)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.KindChainUnavailable, "Could not read the loan history.", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan_id": loanID, "events": events})
}

func (h *LoanHandler) CreateLoanRequest(c *gin.Context) {
	var req loandomain.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Request body must be JSON."})
		return
	}
	res, err := h.actions.CreateLoanRequest(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *LoanHandler) FundLoan(c *gin.Context) {
	h.runAction(c, h.actions.FundLoan)
}

func (h *LoanHandler) CancelLoanRequest(c *gin.Context) {
	h.runAction(c, h.actions.CancelLoanRequest)
}

func (h *LoanHandler) RepayLoan(c *gin.Context) {
	loanID, ok := parseLoanID(c)
	if !ok {
		return
	}
	var req repayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "amount is required."})
		return
	}
	res, err := h.actions.RepayLoan(c.Request.Context(), loanID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LoanHandler) runAction(c *gin.Context, fn func(context.Context, uint64) (*loandomain.ActionResult, error)) {
	loanID, ok := parseLoanID(c)
	if !ok {
		return
	}
	res, err := fn(c.Request.Context(), loanID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func parseLoanID(c *gin.Context) (uint64, bool) {
	raw := strings.TrimSpace(c.Param("loanId"))
	loanID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_loan_id", "message": "Loan id must be a non-negative integer."})
		return 0, false
	}
	return loanID, true
}
