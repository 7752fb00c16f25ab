package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davidahmann/spendgate/internal/api"
	"github.com/davidahmann/spendgate/internal/auth"
	"github.com/davidahmann/spendgate/internal/config"
	"github.com/davidahmann/spendgate/internal/crypto"
	"github.com/davidahmann/spendgate/internal/engine"
	"github.com/davidahmann/spendgate/internal/ledger"
	"github.com/davidahmann/spendgate/internal/ledger/pgstore"
	"github.com/davidahmann/spendgate/internal/ledger/sqlstore"
	"github.com/davidahmann/spendgate/internal/logging"
	"github.com/davidahmann/spendgate/internal/metrics"
	"github.com/davidahmann/spendgate/internal/policy"
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv, listenAndServe, newGateway); err != nil {
		fatalf("server error: %v", err)
	}
}

var runFn = run
var fatalf = log.Fatalf

// gateway is a configured server plus the background workers that live
// as long as it does.
type gateway struct {
	server *http.Server
	start  func(ctx context.Context)
	close  func() error
}

type envFn func(string) string
type listenFn func(*http.Server) error
type gatewayFactory func(cfg config.Config, logger *slog.Logger) (*gateway, error)

func run(args []string, getenv envFn, listen listenFn, factory gatewayFactory) error {
	fs := flag.NewFlagSet("spendgate-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to spendgate config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile := *configPath
	if cfgFile == "" {
		cfgFile = getenv("SPENDGATE_CONFIG_PATH")
	}

	var cfg config.Config
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	cfg.ListenAddr = firstNonEmpty(getenv("SPENDGATE_LISTEN_ADDR"), cfg.ListenAddr, ":8080")
	cfg.PolicyPath = firstNonEmpty(getenv("SPENDGATE_POLICY_PATH"), cfg.PolicyPath, "policies/spendgate.yaml")
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}

	gw, err := factory(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if gw.close != nil {
			if err := gw.close(); err != nil {
				logger.Warn("gateway close failed", "error", err)
			}
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if gw.start != nil {
		gw.start(ctx)
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = gw.server.Shutdown(shutdownCtx)
	}()

	logger.Info("spendgate-gateway listening", "addr", cfg.ListenAddr, "policy_path", cfg.PolicyPath)
	if err := listen(gw.server); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func newGateway(cfg config.Config, logger *slog.Logger) (*gateway, error) {
	policies, err := policy.NewStore(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}
	for _, p := range policy.Lint(policies.Snapshot().Policy) {
		logger.Warn("policy problem", "problem", p.String())
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, nil)
	}

	store, closer, err := openLedger(cfg.DB, logger)
	if err != nil {
		return nil, err
	}
	signer, err := loadSigner(cfg.SigningKey, logger)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	if err := api.RegisterSigner(store, signer, time.Now()); err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("register signing key: %w", err)
	}

	service := &api.EvaluateService{
		Engine:   engine.New(engine.Options{VerifyAlternatives: cfg.Engine.VerifyAlternatives()}),
		Policies: policies,
		Ledger:   store,
		Signer:   signer,
		Metrics:  collector,
	}
	h := &api.Handler{
		Auth:    auth.NewAuthenticatorFromEnv(),
		Service: service,
		Metrics: collector,
	}

	retention := &ledger.Retention{
		Store:    store,
		MaxAge:   time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour,
		Schedule: cfg.Audit.PruneSchedule,
		Logger:   logger,
		OnPrune: func(removed int64, err error) {
			if err == nil {
				collector.RecordAuditPruned(removed)
			}
		},
	}

	start := func(ctx context.Context) {
		if cfg.WatchPolicy {
			watcher := &policy.Watcher{Store: policies, Logger: logger, OnReload: service.OnPolicyReload}
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					logger.Error("policy watcher exited", "error", err)
				}
			}()
		}
		if err := retention.Start(ctx); err != nil {
			logger.Error("audit retention not started", "error", err)
		}
	}

	return &gateway{
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           api.NewRouter(h, logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
		start: start,
		close: closer.Close,
	}, nil
}

func openLedger(db config.DBConfig, logger *slog.Logger) (ledger.Store, io.Closer, error) {
	switch db.Driver {
	case "sqlite":
		store, err := sqlstore.OpenSQLite(db.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := migrateLedger(store.DB(), ledger.DBSQLite, logger); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, store, nil
	case "postgres":
		store, err := pgstore.OpenPostgres(db.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := migrateLedger(store.DB(), ledger.DBPostgres, logger); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, store, nil
	default:
		return ledger.NewInMemoryStore(), nopCloser{}, nil
	}
}

func migrateLedger(db *sql.DB, driver ledger.DBDriver, logger *slog.Logger) error {
	if err := ledger.Migrate(db, driver); err != nil {
		return fmt.Errorf("migrate %s: %w", driver, err)
	}
	versions, err := ledger.AppliedVersions(db, driver)
	if err != nil {
		return fmt.Errorf("read %s schema version: %w", driver, err)
	}
	if len(versions) > 0 {
		logger.Info("audit ledger ready", "driver", driver, "schema", versions[len(versions)-1])
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// loadSigner reads the configured key or falls back to an ephemeral one,
// whose audit records can only be verified by this process.
func loadSigner(cfg config.SigningKeyConfig, logger *slog.Logger) (ledger.KeySigner, error) {
	if cfg.PrivateKeyPath != "" {
		priv, _, err := crypto.LoadPrivateKey(cfg.PrivateKeyPath)
		if err != nil {
			return ledger.KeySigner{}, fmt.Errorf("load signing key: %w", err)
		}
		return ledger.KeySigner{ID: cfg.KeyID, Priv: priv}, nil
	}
	priv, pub, err := crypto.EphemeralKeyPair()
	if err != nil {
		return ledger.KeySigner{}, err
	}
	keyID := "ephemeral-" + crypto.ShortDigest(crypto.DigestWithPrefix(pub), 12)
	logger.Warn("no signing key configured; using ephemeral key", "key_id", keyID)
	return ledger.KeySigner{ID: keyID, Priv: priv}, nil
}

func listenAndServe(server *http.Server) error {
	return server.ListenAndServe()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
