package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nftlender/backend/internal/auth"
	"github.com/nftlender/backend/internal/wallet"
)

const (
	ContextAccount   = "account"
	ContextSessionID = "session_id"
)

type SessionSource interface {
	Current() wallet.Session
}

// RequireSession accepts a request only when its session cookie names the
// account the wallet adapter is currently connected as. A provider-side
// account switch or logout invalidates outstanding cookies.
func RequireSession(jwt *auth.JWTManager, sessions SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, sessionID, message := resolveSession(c, jwt, sessions)
		if message != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": message})
			return
		}
		c.Set(ContextAccount, account)
		c.Set(ContextSessionID, sessionID)
		c.Next()
	}
}

// OptionalSession sets the same context keys as RequireSession when the
// request carries a valid session and lets every request through.
func OptionalSession(jwt *auth.JWTManager, sessions SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if account, sessionID, message := resolveSession(c, jwt, sessions); message == "" {
			c.Set(ContextAccount, account)
			c.Set(ContextSessionID, sessionID)
		}
		c.Next()
	}
}

// resolveSession returns a non-empty message when the request has no usable
// session.
func resolveSession(c *gin.Context, jwt *auth.JWTManager, sessions SessionSource) (string, string, string) {
	cookie, err := c.Request.Cookie(auth.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", "", "Connect a wallet first."
	}

	claims, err := jwt.Parse(cookie.Value)
	if err != nil {
		return "", "", "Session expired. Connect again."
	}

	cur := sessions.Current()
	if !cur.Connected || cur.Account == nil || !strings.EqualFold(cur.Account.Hex(), claims.Account) {
		return "", "", "Wallet account changed. Connect again."
	}
	return cur.Account.Hex(), claims.SessionID, ""
}
