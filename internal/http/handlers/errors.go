package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nftlender/backend/internal/apperr"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindPreconditionFailed:
		return http.StatusUnprocessableEntity
	case apperr.KindContractReverted:
		return http.StatusConflict
	case apperr.KindUserRejected:
		return http.StatusForbidden
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUpstreamUnavailable:
		return http.StatusBadGateway
	case apperr.KindProviderUnavailable, apperr.KindChainUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": apperr.Message(err)})
		return
	}
	c.JSON(statusFor(kind), gin.H{"error": string(kind), "message": apperr.Message(err)})
}
