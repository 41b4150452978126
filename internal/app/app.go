package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nftlender/backend/internal/ancillary"
	"github.com/nftlender/backend/internal/auth"
	"github.com/nftlender/backend/internal/blockchain"
	"github.com/nftlender/backend/internal/config"
	"github.com/nftlender/backend/internal/db"
	"github.com/nftlender/backend/internal/domain/loan"
	"github.com/nftlender/backend/internal/domain/piggybank"
	"github.com/nftlender/backend/internal/http/handlers"
	"github.com/nftlender/backend/internal/observability"
	postgresrepo "github.com/nftlender/backend/internal/repository/postgres"
	redisrepo "github.com/nftlender/backend/internal/repository/redis"
	"github.com/nftlender/backend/internal/server"
	"github.com/nftlender/backend/internal/txlog"
	"github.com/nftlender/backend/internal/view"
	"github.com/nftlender/backend/internal/wallet"
	"github.com/nftlender/backend/internal/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
)

// App is the wired service shared by the API server and the CLI.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics

	Chain        blockchain.Backend
	Wallet       *wallet.Adapter
	Projection   *loan.Projection
	Actions      *loan.Actions
	PiggyBank    *piggybank.Service
	Media        *ancillary.Media
	News         *ancillary.News
	History      *ancillary.History
	Transactions *ancillary.TransactionService
	TxLog        txlog.Log
	Navigator    *view.Navigator
	Hub          *ws.Hub
	JWT          *auth.JWTManager

	pool    *pgxpool.Pool
	redis   *goredis.Client
	closers []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	chain, err := blockchain.NewBackendFromConfig(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("chain backend: %w", err)
	}
	a.Chain = chain
	a.closers = append(a.closers, chain.Close)

	provider, err := a.walletProvider()
	if err != nil {
		a.Close()
		return nil, err
	}
	store, err := a.sessionStore()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Wallet = wallet.NewAdapter(provider, store, logger)

	minBalance, err := blockchain.ParseEther(cfg.MinWalletBalance)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid MIN_WALLET_BALANCE: %w", err)
	}
	a.Projection = loan.NewProjection(chain, logger, a.Metrics)
	a.Actions = loan.NewActions(chain, a.Wallet, a.Projection, loan.ActionsConfig{
		TxGasLimit:       cfg.TxGasLimit,
		CreateGasLimit:   cfg.CreateGasLimit,
		MinWalletBalance: minBalance,
	}, logger, a.Metrics)
	a.PiggyBank = piggybank.NewService(chain, a.Wallet, cfg.TxGasLimit, logger, a.Metrics)

	a.Media = ancillary.NewMedia(ancillary.MediaConfig{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Size:    cfg.ImageSize,
		Timeout: cfg.HTTPClientTimeout,
	}, logger, a.Metrics)
	a.News = ancillary.NewNews(ancillary.NewsConfig{
		BaseURL: cfg.NewsAPIURL,
		APIKey:  cfg.NewsAPIKey,
		Query:   cfg.NewsQuery,
		Timeout: cfg.HTTPClientTimeout,
	}, logger, a.Metrics)
	a.History = ancillary.NewHistory(ancillary.HistoryConfig{
		BaseURL: cfg.EtherscanAPIURL,
		APIKey:  cfg.EtherscanAPIKey,
		Timeout: cfg.HTTPClientTimeout,
	}, logger, a.Metrics)
	a.TxLog = a.transactionLog()
	a.Transactions = ancillary.NewTransactionService(a.Media, a.TxLog, logger)

	a.Navigator = view.NewNavigator(a.Wallet, a.Projection, a.PiggyBank, a.News, logger)
	a.Hub = ws.NewHub()
	notifier := ws.NewNotifier(a.Hub, logger)

	a.Wallet.OnAccountChange(a.Navigator.HandleSession)
	a.Wallet.OnAccountChange(notifier.PublishSession)
	a.Projection.OnRefresh(notifier.PublishSnapshot)
	a.Wallet.OnAccountChange(func(s wallet.Session) {
		if !s.Connected {
			return
		}
		// Login refetches the projection; the action paths refresh on their own.
		go func() {
			if err := a.Projection.Refresh(context.Background()); err != nil {
				logger.Warn("refresh after login failed", "err", err)
			}
		}()
	})

	a.JWT = auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)

	if _, err := a.Wallet.Restore(ctx); err != nil {
		logger.Warn("restore wallet session failed", "err", err)
	}
	return a, nil
}

// Router builds the HTTP surface over the wired components.
func (a *App) Router() *gin.Engine {
	cookieCfg := auth.CookieConfig{Domain: a.Config.CookieDomain, Secure: a.Config.CookieSecure}
	return server.NewRouter(a.Config, a.Logger, server.Dependencies{
		ReadyChecks:      a.readyChecks(),
		SessionHandler:   handlers.NewSessionHandler(a.Wallet, a.JWT, cookieCfg, a.Config.SessionTTL),
		LoanHandler:      handlers.NewLoanHandler(a.Projection, a.Actions, a.Chain),
		PiggyBankHandler: handlers.NewPiggyBankHandler(a.PiggyBank),
		AncillaryHandler: handlers.NewAncillaryHandler(a.Transactions, a.Media, a.News, a.History, int(a.Config.TxLogCapacity)),
		ViewHandler:      handlers.NewViewHandler(a.Navigator),
		WSHandler:        ws.NewHandler(a.Hub, a.Logger),
		Sessions:         a.Wallet,
		JWTManager:       a.JWT,
		MetricsHandler:   a.MetricsHandler(),
	})
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) readyChecks() map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{
		"chain": handlers.PingFunc(func(ctx context.Context) error {
			_, err := a.Chain.LoanCount(ctx)
			return err
		}),
	}
	if a.pool != nil {
		checks["database"] = a.pool
	}
	if a.redis != nil {
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	return checks
}

func (a *App) openStores(ctx context.Context) error {
	sessionStore := strings.ToLower(a.Config.SessionStore)
	txlogStore := strings.ToLower(a.Config.TxLogStore)

	if sessionStore == "postgres" {
		pool, err := db.NewPostgresPool(ctx, a.Config)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
	}
	if sessionStore == "redis" || txlogStore == "redis" {
		client, err := db.NewRedisClient(ctx, a.Config)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		a.closers = append(a.closers, func() { _ = client.Close() })
	}
	return nil
}

func (a *App) sessionStore() (wallet.Store, error) {
	switch strings.ToLower(a.Config.SessionStore) {
	case "", "memory":
		return wallet.NewMemoryStore(), nil
	case "redis":
		return redisrepo.NewSessionStore(a.redis), nil
	case "postgres":
		return postgresrepo.NewSessionRepository(a.pool), nil
	default:
		return nil, fmt.Errorf("invalid SESSION_STORE: %s", a.Config.SessionStore)
	}
}

func (a *App) transactionLog() txlog.Log {
	if strings.ToLower(a.Config.TxLogStore) == "redis" {
		return redisrepo.NewTxLogStore(a.redis, int(a.Config.TxLogCapacity))
	}
	return txlog.NewRing(int(a.Config.TxLogCapacity))
}

func (a *App) walletProvider() (wallet.Provider, error) {
	switch strings.ToLower(a.Config.WalletMode) {
	case "none":
		return nil, nil
	case "", "key":
		if strings.TrimSpace(a.Config.WalletPrivateKey) == "" {
			a.Logger.Warn("WALLET_PRIVATE_KEY not set; wallet connect is unavailable")
			return nil, nil
		}
		p, err := wallet.NewKeyProvider(a.Config.WalletPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("wallet key: %w", err)
		}
		return p, nil
	case "keystore":
		p := wallet.NewKeystoreProvider(a.Config.KeystoreDir, a.Config.KeystorePassphrase)
		a.closers = append(a.closers, p.Close)
		return p, nil
	default:
		return nil, fmt.Errorf("invalid WALLET_MODE: %s", a.Config.WalletMode)
	}
}

func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Metrics.Registry, promhttp.HandlerOpts{})
}
