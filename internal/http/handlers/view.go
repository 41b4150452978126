package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nftlender/backend/internal/view"
)

type ViewNavigator interface {
	Select(p view.Panel) error
	Compose(ctx context.Context) view.View
	ComposeLoggedOut(ctx context.Context) view.View
}

type ViewHandler struct {
	nav ViewNavigator
}

func NewViewHandler(nav ViewNavigator) *ViewHandler {
	return &ViewHandler{nav: nav}
}

// GetView shows the logged-out view unless the request carries a session.
func (h *ViewHandler) GetView(c *gin.Context) {
	if _, ok := c.Get("account"); !ok {
		c.JSON(http.StatusOK, h.nav.ComposeLoggedOut(c.Request.Context()))
		return
	}
	c.JSON(http.StatusOK, h.nav.Compose(c.Request.Context()))
}

func (h *ViewHandler) SelectPanel(c *gin.Context) {
	panel, err := view.ParsePanel(c.Param("panel"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.nav.Select(panel); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.nav.Compose(c.Request.Context()))
}
