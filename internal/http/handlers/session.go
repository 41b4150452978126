package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/nftlender/backend/internal/auth"
	"github.com/nftlender/backend/internal/wallet"
)

type SessionAdapter interface {
	Connect(ctx context.Context) (common.Address, error)
	Restore(ctx context.Context) (*common.Address, error)
	Logout(ctx context.Context) error
	Current() wallet.Session
}

type SessionHandler struct {
	adapter   SessionAdapter
	jwt       *auth.JWTManager
	cookieCfg auth.CookieConfig
	ttl       time.Duration
}

func NewSessionHandler(adapter SessionAdapter, jwt *auth.JWTManager, cookieCfg auth.CookieConfig, ttl time.Duration) *SessionHandler {
	return &SessionHandler{adapter: adapter, jwt: jwt, cookieCfg: cookieCfg, ttl: ttl}
}

func (h *SessionHandler) Connect(c *gin.Context) {
	account, err := h.adapter.Connect(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if !h.issueCookie(c, account) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": h.adapter.Current()})
}

// Get restores a persisted session without prompting the wallet. The cookie
// is only refreshed for a caller that already holds a valid one for the
// restored account; anyone else sees a logged-out session.
func (h *SessionHandler) Get(c *gin.Context) {
	account, err := h.adapter.Restore(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if account == nil {
		auth.ClearSessionCookie(c.Writer, h.cookieCfg)
		c.JSON(http.StatusOK, gin.H{"session": wallet.Session{}})
		return
	}
	if !h.hasValidCookie(c, *account) {
		c.JSON(http.StatusOK, gin.H{"session": wallet.Session{}})
		return
	}
	if !h.issueCookie(c, *account) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": h.adapter.Current()})
}

func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.adapter.Logout(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	auth.ClearSessionCookie(c.Writer, h.cookieCfg)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *SessionHandler) issueCookie(c *gin.Context, account common.Address) bool {
	token, _, err := h.jwt.Mint(account.Hex(), h.ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_issue_failed", "message": "Could not start a session."})
		return false
	}
	auth.SetSessionCookie(c.Writer, h.cookieCfg, token, h.ttl)
	return true
}

func (h *SessionHandler) hasValidCookie(c *gin.Context, account common.Address) bool {
	cookie, err := c.Request.Cookie(auth.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	claims, err := h.jwt.Parse(cookie.Value)
	return err == nil && common.HexToAddress(claims.Account) == account
}
