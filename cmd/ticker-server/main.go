package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"stockticker/internal/api"
	"stockticker/internal/auth"
	"stockticker/internal/config"
	"stockticker/internal/feed"
	"stockticker/internal/httpapi"
	"stockticker/internal/source"
	"stockticker/internal/store"
	"stockticker/internal/util"
)

func main() {
	cfgFlag := flag.String("config", "", "path to config file (default $STOCKTICKER_CONFIG or "+config.DefaultPath+")")
	exportPath := flag.String("export-parquet", "", "write every stored snapshot to this parquet file and exit")
	flag.Parse()

	cfg, err := config.Load(config.Path(*cfgFlag))
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging)
	util.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *exportPath != "" {
		n, err := store.ExportParquet(ctx, st, *exportPath)
		if err != nil {
			log.Fatalf("exporting parquet: %v", err)
		}
		fmt.Printf("exported %d snapshots to %s\n", n, *exportPath)
		return
	}

	if err := run(ctx, cfg, st, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, st *store.SQLiteStore, logger *slog.Logger) error {
	if _, err := store.SeedIfEmpty(ctx, st, cfg.Storage.SeedPath, logger); err != nil {
		logger.Warn("seeding store", "path", cfg.Storage.SeedPath, "error", err)
	}

	authSvc := auth.NewService(st, cfg.Server.TokenTTL, logger.With("component", "auth"))
	if err := authSvc.EnsureDefaultUsers(ctx); err != nil {
		return fmt.Errorf("creating default users: %w", err)
	}

	hub := httpapi.NewHub(logger.With("component", "websocket"))
	broker := feed.NewBroker()
	if latest, err := st.Latest(ctx); err == nil {
		broker.Publish(latest)
	}

	apiSrv := httpapi.NewServer(st, authSvc, hub, cfg.Storage.SeedPath, logger.With("component", "http"))
	feedSrv := feed.NewServer(broker, logger.With("component", "grpc"))

	grpcAddr := ""
	if cfg.Server.GRPCPort > 0 {
		grpcAddr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
	}
	srv := api.NewServer(
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		grpcAddr,
		apiSrv.Handler(),
		logger,
		func(gs *grpc.Server) { feedSrv.RegisterGRPC(gs) },
	)

	src, err := newSource(ctx, cfg, st, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	if src != nil {
		pub := source.NewPublisher(src, st, cfg.Server.PublishInterval, logger.With("component", "publisher"), apiSrv, broker)
		g.Go(func() error { return pub.Run(gctx) })
	}
	return g.Wait()
}

// newSource picks the live Alpaca source when credentials are configured
// and otherwise replays the stored history. It returns nil when there is
// nothing to publish.
func newSource(ctx context.Context, cfg *config.Config, st store.SnapshotStore, logger *slog.Logger) (source.Source, error) {
	if cfg.Server.PublishInterval <= 0 {
		return nil, nil
	}

	if cfg.Alpaca.Enabled() {
		symbols := cfg.Alpaca.Symbols
		if len(symbols) == 0 {
			if latest, err := st.Latest(ctx); err == nil {
				symbols = latest.Symbols
			}
		}
		logger.Info("publishing live Alpaca prices", "symbols", len(symbols))
		return source.NewAlpacaSource(cfg.Alpaca, symbols), nil
	}

	snaps, err := st.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading replay history: %w", err)
	}
	if len(snaps) == 0 {
		logger.Warn("no stored snapshots to replay, publisher disabled")
		return nil, nil
	}
	replay, err := source.NewReplaySource(snaps)
	if err != nil {
		return nil, err
	}
	logger.Info("replaying stored snapshots", "snapshots", len(snaps))
	return replay, nil
}
