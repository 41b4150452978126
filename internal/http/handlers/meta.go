package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type MetaHandler struct {
	env       string
	version   string
	chainMode string
	contract  string
}

func NewMetaHandler(env, version, chainMode, contract string) *MetaHandler {
	return &MetaHandler{env: env, version: version, chainMode: chainMode, contract: contract}
}

func (h *MetaHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":          "NFT Lender Backend",
		"version":       h.version,
		"env":           h.env,
		"chain_mode":    h.chainMode,
		"loan_contract": h.contract,
	})
}
