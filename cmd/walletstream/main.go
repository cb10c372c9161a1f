package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fystack/walletstream/internal/filter"
	"github.com/fystack/walletstream/internal/ingest"
	jupiterrpc "github.com/fystack/walletstream/internal/rpc/jupiter"
	solanarpc "github.com/fystack/walletstream/internal/rpc/solana"
	"github.com/fystack/walletstream/internal/tokens"
	"github.com/fystack/walletstream/internal/watchlist"
	"github.com/fystack/walletstream/pkg/addressbloomfilter"
	"github.com/fystack/walletstream/pkg/common/config"
	"github.com/fystack/walletstream/pkg/common/enum"
	"github.com/fystack/walletstream/pkg/common/logger"
	"github.com/fystack/walletstream/pkg/events"
	"github.com/fystack/walletstream/pkg/infra"
	"github.com/fystack/walletstream/pkg/model"
	"github.com/fystack/walletstream/pkg/repository"
	"github.com/fystack/walletstream/pkg/retry"
)

const version = "1.0.0"

// --- CLI definitions --- //

type CLI struct {
	Serve       ServeCmd       `cmd:"" help:"Run the block filter and webhook ingestion server."`
	KVLoad      KVLoadCmd      `cmd:"" name:"kv-load" help:"Load monitored addresses from the DB into the membership lists."`
	CreateLists CreateListsCmd `cmd:"" name:"create-lists" help:"Create empty membership lists."`
}

type ServeCmd struct {
	ConfigPath string `help:"Path to config file." default:"configs/config.yaml" name:"config"`
	Debug      bool   `help:"Enable debug logs." name:"debug"`
}

type KVLoadCmd struct {
	ConfigPath string `help:"Path to config file." default:"configs/config.yaml" name:"config"`
}

type CreateListsCmd struct {
	ConfigPath string `help:"Path to config file." default:"configs/config.yaml" name:"config"`
}

func (c *ServeCmd) Run() error {
	runServe(c.ConfigPath, c.Debug)
	return nil
}

func (c *KVLoadCmd) Run() error {
	runKVLoad(c.ConfigPath)
	return nil
}

func (c *CreateListsCmd) Run() error {
	runCreateLists(c.ConfigPath)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("walletstream"),
		kong.Description("Address-activity monitoring pipeline: block filters, webhook ingestion, activity log."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

func loadConfig(configPath string, debug bool) config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Load config failed", "err", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger.Init(&logger.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
	logger.Info("Config loaded", "environment", cfg.Environment)
	return cfg
}

func runServe(configPath string, debug bool) {
	cfg := loadConfig(configPath, debug)
	ctx := context.Background()

	db, err := infra.NewDBConnection(cfg.DB.URL, cfg.Environment)
	if err != nil {
		logger.Fatal("Database connection failed", "err", err)
	}
	if err := db.AutoMigrate(&model.MonitoredUser{}, &model.ActivityLog{}, &model.Token{}); err != nil {
		logger.Fatal("Migration failed", "err", err)
	}

	users := repository.NewUserStore(db)
	activities := repository.NewActivityStore(db)
	tokenStore := repository.NewTokenStore(db)

	nc, err := infra.GetNATSConnection(cfg.NATS, cfg.Environment)
	if err != nil {
		logger.Fatal("NATS connection failed", "err", err)
	}
	emitter := events.NewEmitter(nc, cfg.NATS.SubjectPrefix)
	defer emitter.Close()

	store, err := newWatchlistStore(cfg)
	if err != nil {
		logger.Fatal("Watchlist store init failed", "err", err)
	}
	defer store.Close()

	var bloomFilter addressbloomfilter.WatchedAddressBloomFilter
	if cfg.Watchlist.Bloom.Enabled {
		bloomFilter = addressbloomfilter.NewWatchedAddressBloomFilter(addressbloomfilter.Config{
			UserStore:         users,
			ExpectedItems:     cfg.Watchlist.Bloom.ExpectedItems,
			FalsePositiveRate: cfg.Watchlist.Bloom.FalsePositiveRate,
			BatchSize:         cfg.Watchlist.Bloom.BatchSize,
		})
		// An unwarmed filter would drop every candidate, so failing to
		// warm it is fatal rather than degraded.
		if err := bloomFilter.Initialize(ctx); err != nil {
			logger.Fatal("Bloom filter warmup failed", "err", err)
		}
	}

	var caller tokens.ContractCaller
	if cfg.Tokens.EVMEndpoint != "" {
		client, err := ethclient.Dial(cfg.Tokens.EVMEndpoint)
		if err != nil {
			logger.Fatal("EVM RPC dial failed", "endpoint", cfg.Tokens.EVMEndpoint, "err", err)
		}
		caller = client
	}
	evmResolver, err := tokens.NewEVMResolver(tokenStore, caller)
	if err != nil {
		logger.Fatal("EVM token resolver init failed", "err", err)
	}

	var supply tokens.SupplyReader
	if cfg.Tokens.SolanaEndpoint != "" {
		supply = solanarpc.NewClient(cfg.Tokens.SolanaEndpoint)
	}
	solResolver := tokens.NewSolanaResolver(
		tokenStore,
		jupiterrpc.NewClient(cfg.Tokens.JupiterBaseURL),
		supply,
		tokens.SolanaResolverConfig{
			ListTTL:           time.Duration(cfg.Tokens.ListTTLMinutes) * time.Minute,
			SearchTTL:         time.Duration(cfg.Tokens.SearchTTLMinutes) * time.Minute,
			SearchMinInterval: time.Duration(cfg.Tokens.SearchMinIntervalMillis) * time.Millisecond,
		},
	)

	processor := ingest.NewProcessor(users, activities, emitter, evmResolver, solResolver, cfg.Streams.DefaultNetwork)
	evmFilter := filter.NewEVMFilter(store, cfg.Watchlist.Lists.EVM, bloomFilter)
	solanaFilter := filter.NewSolanaFilter(store, cfg.Watchlist.Lists.Solana, cfg.Filter.DustLamports, bloomFilter)

	handler := NewStreamsHTTPHandler(
		version,
		evmFilter,
		solanaFilter,
		processor,
		cfg.Streams.SecurityTokens,
		time.Duration(cfg.Streams.TimestampMaxAgeSeconds)*time.Second,
	)
	server := startHTTPServer(cfg.Server.Port, handler)

	logger.Info("Pipeline is running... Press Ctrl+C to stop")
	waitForShutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "err", err)
	}
	logger.Info("Pipeline stopped")
}

func runKVLoad(configPath string) {
	cfg := loadConfig(configPath, false)
	ctx := context.Background()

	db, err := infra.NewDBConnection(cfg.DB.URL, cfg.Environment)
	if err != nil {
		logger.Fatal("Database connection failed", "err", err)
	}
	users := repository.NewUserStore(db)

	store, err := newWatchlistStore(cfg)
	if err != nil {
		logger.Fatal("Watchlist store init failed", "err", err)
	}
	defer store.Close()

	load := func(family enum.ChainFamily, listKey string) {
		addresses, err := allWalletAddresses(ctx, users, family)
		if err != nil {
			logger.Fatal("Address listing failed", "family", family, "err", err)
		}
		// One-shot batch job: a few evenly spaced attempts are enough.
		err = retry.Constant(func() error {
			return store.CreateList(ctx, listKey, addresses)
		}, retry.DefaultInterval, retry.DefaultMaxAttempts)
		if err != nil {
			logger.Fatal("List load failed", "list", listKey, "err", err)
		}
		logger.Info("Membership list loaded", "list", listKey, "addresses", len(addresses))
	}

	load(enum.ChainFamilyEVM, cfg.Watchlist.Lists.EVM)
	load(enum.ChainFamilySol, cfg.Watchlist.Lists.Solana)
}

func runCreateLists(configPath string) {
	cfg := loadConfig(configPath, false)
	ctx := context.Background()

	store, err := newWatchlistStore(cfg)
	if err != nil {
		logger.Fatal("Watchlist store init failed", "err", err)
	}
	defer store.Close()

	for _, listKey := range []string{cfg.Watchlist.Lists.EVM, cfg.Watchlist.Lists.Solana} {
		if err := store.CreateList(ctx, listKey, nil); err != nil {
			logger.Fatal("List creation failed", "list", listKey, "err", err)
		}
		logger.Info("Membership list created", "list", listKey)
	}
}

func newWatchlistStore(cfg config.Config) (watchlist.Store, error) {
	switch cfg.Watchlist.Type {
	case enum.WatchlistStoreTypeHTTP:
		return watchlist.NewHTTPStore(cfg.Watchlist.HTTP.BaseURL, cfg.Watchlist.HTTP.APIKey)
	case enum.WatchlistStoreTypeBadger:
		return watchlist.NewBadgerStore(cfg.Watchlist.Badger.Directory)
	default:
		return nil, fmt.Errorf("unknown watchlist store type %q", cfg.Watchlist.Type)
	}
}

func allWalletAddresses(ctx context.Context, users repository.UserStore, family enum.ChainFamily) ([]string, error) {
	const pageSize = 1000

	var all []string
	for offset := 0; ; offset += pageSize {
		page, err := users.ListWalletAddresses(ctx, family, pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
	}
}

func waitForShutdown() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}
