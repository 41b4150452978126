package view

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nftlender/backend/internal/ancillary"
	"github.com/nftlender/backend/internal/apperr"
	"github.com/nftlender/backend/internal/domain/loan"
	"github.com/nftlender/backend/internal/domain/piggybank"
	"github.com/nftlender/backend/internal/wallet"
)

type Panel string

const (
	PanelLoggedOut Panel = "logged_out"
	PanelLoan      Panel = "loan"
	PanelPiggyBank Panel = "piggy_bank"
	PanelRepay     Panel = "repay"
)

const newsLimit = 3

func ParsePanel(raw string) (Panel, error) {
	switch p := Panel(strings.ToLower(strings.TrimSpace(raw))); p {
	case PanelLoggedOut, PanelLoan, PanelPiggyBank, PanelRepay:
		return p, nil
	default:
		return "", apperr.New(apperr.KindNotFound, fmt.Sprintf("Unknown panel %q.", raw))
	}
}

type SessionSource interface {
	Current() wallet.Session
}

type LoanLister interface {
	ListOpenLoans(ctx context.Context) ([]loan.Record, error)
}

type BalanceReader interface {
	Balance(ctx context.Context) (*piggybank.Balance, error)
}

type NewsReader interface {
	FetchLatestNews(ctx context.Context) []ancillary.Article
}

// View is everything a page needs to render the active panel.
type View struct {
	Panel     Panel               `json:"panel"`
	Session   wallet.Session      `json:"session"`
	Loans     []loan.Record       `json:"loans,omitempty"`
	PiggyBank *piggybank.Balance  `json:"piggy_bank,omitempty"`
	News      []ancillary.Article `json:"news"`
	Warnings  []string            `json:"warnings,omitempty"`
}

// Navigator holds the single navigation state. Only LoggedOut is reachable
// without a session; switching panels has no side effect beyond the fetch
// the next Compose does for that panel.
type Navigator struct {
	sessions SessionSource
	loans    LoanLister
	piggy    BalanceReader
	news     NewsReader
	logger   *slog.Logger

	mu    sync.Mutex
	panel Panel
}

func NewNavigator(sessions SessionSource, loans LoanLister, piggy BalanceReader, news NewsReader, logger *slog.Logger) *Navigator {
	n := &Navigator{
		sessions: sessions,
		loans:    loans,
		piggy:    piggy,
		news:     news,
		logger:   logger,
		panel:    PanelLoggedOut,
	}
	n.HandleSession(sessions.Current())
	return n
}

// HandleSession is registered as a session listener.
func (n *Navigator) HandleSession(s wallet.Session) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case !s.Connected:
		n.panel = PanelLoggedOut
	case n.panel == PanelLoggedOut:
		n.panel = PanelLoan
	}
}

func (n *Navigator) Panel() Panel {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.panel
}

func (n *Navigator) Select(p Panel) error {
	if p == PanelLoggedOut {
		return apperr.New(apperr.KindPreconditionFailed, "Log out to return to the login screen.")
	}
	if !n.sessions.Current().Connected {
		return apperr.New(apperr.KindUnauthenticated, "Connect a wallet first.")
	}
	n.mu.Lock()
	n.panel = p
	n.mu.Unlock()
	return nil
}

// ComposeLoggedOut is the view for callers without a session, whatever the
// wallet state of the process.
func (n *Navigator) ComposeLoggedOut(ctx context.Context) View {
	return View{Panel: PanelLoggedOut, Session: wallet.Session{}, News: n.latestNews(ctx)}
}

// Compose fetches what the active panel shows. A failing fetch becomes a
// warning on that panel; news failures are already absorbed by the reader.
func (n *Navigator) Compose(ctx context.Context) View {
	session := n.sessions.Current()
	n.HandleSession(session)
	panel := n.Panel()

	v := View{Panel: panel, Session: session}
	switch panel {
	case PanelLoan:
		loans, err := n.loans.ListOpenLoans(ctx)
		if err != nil {
			n.logger.Warn("compose loan panel", "err", err)
			v.Warnings = append(v.Warnings, apperr.Message(err))
		} else {
			v.Loans = loans
		}
	case PanelPiggyBank:
		bal, err := n.piggy.Balance(ctx)
		if err != nil {
			n.logger.Warn("compose piggy bank panel", "err", err)
			v.Warnings = append(v.Warnings, apperr.Message(err))
		} else {
			v.PiggyBank = bal
		}
	case PanelRepay, PanelLoggedOut:
	}

	v.News = n.latestNews(ctx)
	return v
}

func (n *Navigator) latestNews(ctx context.Context) []ancillary.Article {
	news := n.news.FetchLatestNews(ctx)
	if len(news) > newsLimit {
		news = news[:newsLimit]
	}
	return news
}
