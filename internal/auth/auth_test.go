package auth

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMintAndParse(t *testing.T) {
	m := NewJWTManager("nftlender", "nftlender-web", "secret")
	token, sid, err := m.Mint("0xabc", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Account != "0xabc" || claims.SessionID != sid || sid == "" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejects(t *testing.T) {
	m := NewJWTManager("nftlender", "nftlender-web", "secret")
	token, _, _ := m.Mint("0xabc", time.Hour)

	if _, err := NewJWTManager("nftlender", "nftlender-web", "other").Parse(token); err == nil {
		t.Fatalf("expected signature error")
	}
	if _, err := NewJWTManager("someone-else", "nftlender-web", "secret").Parse(token); err == nil {
		t.Fatalf("expected issuer error")
	}
	if _, err := NewJWTManager("nftlender", "mobile", "secret").Parse(token); err == nil {
		t.Fatalf("expected audience error")
	}

	expired := NewJWTManager("nftlender", "nftlender-web", "secret")
	expired.now = func() time.Time { return time.Now().UTC().Add(-2 * time.Hour) }
	old, _, _ := expired.Mint("0xabc", time.Hour)
	if _, err := m.Parse(old); err == nil {
		t.Fatalf("expected expiry error")
	}
	if _, _, err := m.Mint(" ", time.Hour); err == nil {
		t.Fatalf("expected missing account error")
	}
}

func TestSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, CookieConfig{Secure: true}, "tok", time.Hour)
	got := rec.Header().Get("Set-Cookie")
	if !strings.Contains(got, SessionCookieName+"=tok") || !strings.Contains(got, "HttpOnly") || !strings.Contains(got, "Secure") {
		t.Fatalf("unexpected cookie: %s", got)
	}

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, CookieConfig{})
	if got := rec.Header().Get("Set-Cookie"); !strings.Contains(got, "Max-Age=0") {
		t.Fatalf("expected expired cookie, got %s", got)
	}
}
