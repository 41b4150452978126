package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nftlender/backend/internal/domain/piggybank"
)

type PiggyBankService interface {
	Balance(ctx context.Context) (*piggybank.Balance, error)
	Deposit(ctx context.Context, amount string) (*piggybank.Result, error)
	Break(ctx context.Context) (*piggybank.Result, error)
}

type PiggyBankHandler struct {
	svc PiggyBankService
}

type depositRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func NewPiggyBankHandler(svc PiggyBankService) *PiggyBankHandler {
	return &PiggyBankHandler{svc: svc}
}

func (h *PiggyBankHandler) Balance(c *gin.Context) {
	bal, err := h.svc.Balance(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bal)
}

func (h *PiggyBankHandler) Deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "amount is required."})
		return
	}
	res, err := h.svc.Deposit(c.Request.Context(), req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PiggyBankHandler) Break(c *gin.Context) {
	res, err := h.svc.Break(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
