package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"omni-swap/config"
	"omni-swap/pkg/adapter"
	"omni-swap/pkg/api"
	"omni-swap/pkg/executor"
	"omni-swap/pkg/monitor"
	"omni-swap/pkg/pricing"
	"omni-swap/pkg/quote"
	"omni-swap/pkg/swap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the aggregation API server and transaction monitor",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	swapStore, err := swap.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer swapStore.Close()

	// Liquidity sources
	registry := adapter.NewRegistry(cfg.AdapterTimeout, logger)
	bridgeCheckers := make(map[string]monitor.StatusChecker)
	for _, p := range cfg.DEXProviders {
		if err := registry.Register(adapter.NewDEXAggregatorAdapter(p)); err != nil {
			return err
		}
	}
	for _, p := range cfg.BridgeProviders {
		a := adapter.NewBridgeAdapter(p)
		if err := registry.Register(a); err != nil {
			return err
		}
		bridgeCheckers[a.Name()] = a
	}
	if cfg.OneClickJWT != "" {
		a := adapter.NewOneClickAdapter(cfg.OneClickJWT)
		if err := registry.Register(a); err != nil {
			return err
		}
		bridgeCheckers[a.Name()] = a
	}
	for _, v := range cfg.CEXVenues {
		if err := registry.Register(adapter.NewCEXAdapter(v)); err != nil {
			return err
		}
	}

	quotes := quote.NewService(registry, quote.NewRedisCache(rdb), pricing.NewCoinGeckoSource(),
		cfg.PlatformFeeBps, cfg.DefaultSlippageBps, cfg.QuoteTTL, logger)

	// Chain executors, consulted in fixed order
	evmExec, err := executor.NewEVMExecutor(cfg.EVMNetworks)
	if err != nil {
		return err
	}
	executors := executor.NewRegistry(
		evmExec,
		executor.NewSolanaExecutor(cfg.Solana),
		executor.NewSuiExecutor(cfg.Sui),
		executor.NewCEXExecutor(cfg.CEXVenues),
	)

	txStore := monitor.NewRedisTxStore(rdb)
	mon := monitor.NewService(txStore, swapStore, executors, bridgeCheckers, logger)
	mon.SetPublisher(txStore)

	swaps := swap.NewService(quotes, swapStore, executors, mon, cfg.PlatformFeeBps, logger,
		swap.NewAdapterBuilder(registry))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mon.LoadPersistedTransactions(ctx); err != nil {
		return err
	}
	mon.Start(ctx)
	defer mon.Stop()

	// Fold in entries announced by other instances over pubsub.
	sub := txStore.Subscribe(ctx)
	defer sub.Close()
	announcements := make(chan string)
	go func() {
		defer close(announcements)
		for msg := range sub.Channel() {
			announcements <- msg.Payload
		}
	}()
	go mon.RunSubscriber(ctx, announcements)

	server := api.NewServer(cfg.ListenAddr, quotes, swaps, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
