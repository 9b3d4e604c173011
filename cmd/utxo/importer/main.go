package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/metrics"
	rpcclient2 "github.com/goodnatureofminers/blockinsight7000-chainstore/internal/pkg/btcd/rpcclient"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/repository/sqlstore"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/script"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/service/deferred"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/service/importer"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/validator"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type config struct {
	SQLiteDSN    string        `long:"sqlite-dsn" env:"CHAINSTORE_SQLITE_DSN" description:"SQLite DSN" default:"chainstore.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"`
	AutoMigrate  bool          `long:"auto-migrate" env:"CHAINSTORE_AUTO_MIGRATE" description:"create missing tables on start"`
	Network      string        `long:"network" env:"CHAINSTORE_NETWORK" description:"network name" default:"mainnet" choice:"mainnet" choice:"testnet3" choice:"regtest" choice:"simnet" choice:"signet"`
	NameRegistry bool          `long:"name-registry" env:"CHAINSTORE_NAME_REGISTRY" description:"index namecoin-style name scripts"`
	RPCURL       string        `long:"rpc-url" env:"CHAINSTORE_RPC_URL" description:"node RPC URL" default:"http://127.0.0.1:8332"`
	RPCUser      string        `long:"rpc-user" env:"CHAINSTORE_RPC_USER" description:"node RPC username"`
	RPCPassword  string        `long:"rpc-password" env:"CHAINSTORE_RPC_PASSWORD" description:"node RPC password"`
	PollInterval time.Duration `long:"poll-interval" env:"CHAINSTORE_POLL_INTERVAL" description:"delay between tip checks once synced" default:"5s"`
	MetricsAddr  string        `long:"metrics-addr" env:"CHAINSTORE_METRICS_ADDR" description:"address for metrics server" default:":2112"`

	HeadCache            bool `long:"head-cache" env:"CHAINSTORE_HEAD_CACHE" description:"keep the chain head in memory"`
	InlineReconnectLimit int  `long:"inline-reconnect-limit" env:"CHAINSTORE_INLINE_RECONNECT_LIMIT" description:"orphans reconnected per call before the rest is deferred, 0 for no limit" default:"10000"`
	BatchSize            int  `long:"batch-size" env:"CHAINSTORE_BATCH_SIZE" description:"rows per bulk insert" default:"500"`

	SchedulerWorkers     int           `long:"scheduler-workers" env:"CHAINSTORE_SCHEDULER_WORKERS" description:"deferred task workers" default:"4"`
	SchedulerBatch       int           `long:"scheduler-batch" env:"CHAINSTORE_SCHEDULER_BATCH" description:"deferred tasks per flush" default:"16"`
	SchedulerInterval    time.Duration `long:"scheduler-interval" env:"CHAINSTORE_SCHEDULER_INTERVAL" description:"deferred queue flush interval" default:"500ms"`
	SchedulerRPS         int           `long:"scheduler-rps" env:"CHAINSTORE_SCHEDULER_RPS" description:"deferred queue flushes per second" default:"10"`
	SchedulerTaskTimeout time.Duration `long:"scheduler-task-timeout" env:"CHAINSTORE_SCHEDULER_TASK_TIMEOUT" description:"timeout of a single deferred task" default:"5m"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("utxo importer failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	params, err := networkParams(cfg.Network)
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("network", params.Name))

	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	db, err := sqlstore.Open(cfg.SQLiteDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() {
			_ = sqlDB.Close()
		}()
	}
	if cfg.AutoMigrate {
		if err := schema.AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("migrate store: %w", err)
		}
	}

	scheduler, err := deferred.NewScheduler(logger.Named("scheduler"), metrics.NewScheduler(), deferred.Options{
		Workers:       cfg.SchedulerWorkers,
		BatchSize:     cfg.SchedulerBatch,
		FlushInterval: cfg.SchedulerInterval,
		RPS:           cfg.SchedulerRPS,
		TaskTimeout:   cfg.SchedulerTaskTimeout,
	})
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	repo, err := sqlstore.NewRepository(
		db,
		script.NewClassifier(logger.Named("classifier"), cfg.NameRegistry),
		metrics.NewStore(params.Name),
		logger.Named("store"),
		sqlstore.WithHeadCache(cfg.HeadCache),
		sqlstore.WithValidator(validator.NewSanityValidator()),
		sqlstore.WithScheduler(scheduler),
		sqlstore.WithInlineReconnectLimit(cfg.InlineReconnectLimit),
		sqlstore.WithBatchSize(cfg.BatchSize),
	)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}

	rpcClient, err := newRPCClient(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword)
	if err != nil {
		return fmt.Errorf("init rpc client: %w", err)
	}
	rpc := rpcclient2.NewObservedClient(rpcClient, metrics.NewRPCClient(params.Name))
	defer rpc.Shutdown()

	svc, err := importer.NewService(rpc, repo, metrics.NewImporter(params.Name), logger.Named("importer"), cfg.PollInterval)
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}

func networkParams(name string) (*chaincfg.Params, error) {
	for _, params := range []*chaincfg.Params{
		&chaincfg.MainNetParams,
		&chaincfg.TestNet3Params,
		&chaincfg.RegressionNetParams,
		&chaincfg.SimNetParams,
		&chaincfg.SigNetParams,
	} {
		if params.Name == name {
			return params, nil
		}
	}
	return nil, fmt.Errorf("unknown network %q", name)
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}

func newRPCClient(rawURL, user, password string) (*rpcclient.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Scheme != "http" {
		return nil, fmt.Errorf("rpc url scheme %q not supported, use http", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("rpc url missing host")
	}

	return rpcclient.New(&rpcclient.ConnConfig{
		Host:         parsed.Host,
		User:         user,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
}
