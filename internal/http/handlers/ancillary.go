package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nftlender/backend/internal/ancillary"
	"github.com/nftlender/backend/internal/txlog"
)

type TransactionSender interface {
	Send(ctx context.Context, in ancillary.SendInput) (string, error)
	Recent(ctx context.Context, n int) ([]txlog.Entry, error)
}

type MediaFetcher interface {
	FetchMedia(ctx context.Context, keyword string) (string, error)
}

type NewsFetcher interface {
	FetchLatestNews(ctx context.Context) []ancillary.Article
}

type HistoryFetcher interface {
	FetchAddressHistory(ctx context.Context, address string) ([]ancillary.Transaction, error)
}

type AncillaryHandler struct {
	transactions TransactionSender
	media        MediaFetcher
	news         NewsFetcher
	history      HistoryFetcher
	recentLimit  int
}

type generateImageRequest struct {
	Keyword string `json:"keyword"`
}

func NewAncillaryHandler(transactions TransactionSender, media MediaFetcher, news NewsFetcher, history HistoryFetcher, recentLimit int) *AncillaryHandler {
	return &AncillaryHandler{transactions: transactions, media: media, news: news, history: history, recentLimit: recentLimit}
}

// SendTransaction and GenerateImage always answer 200 with a success flag.
func (h *AncillaryHandler) SendTransaction(c *gin.Context) {
	var req ancillary.SendInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Failed to process the transaction."})
		return
	}
	image, err := h.transactions.Send(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Failed to process the transaction."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "image": image})
}

func (h *AncillaryHandler) GenerateImage(c *gin.Context) {
	var req generateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Failed to generate image."})
		return
	}
	image, err := h.media.FetchMedia(c.Request.Context(), req.Keyword)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Failed to generate image."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "image": image})
}

func (h *AncillaryHandler) RecentTransactions(c *gin.Context) {
	entries, err := h.transactions.Recent(c.Request.Context(), h.recentLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transactions_unavailable", "message": "Could not read recent transactions."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}

func (h *AncillaryHandler) LatestNews(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"articles": h.news.FetchLatestNews(c.Request.Context())})
}

func (h *AncillaryHandler) AddressHistory(c *gin.Context) {
	address := c.Param("address")
	txs, err := h.history.FetchAddressHistory(c.Request.Context(), address)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "transactions": txs})
}
