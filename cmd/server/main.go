package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arhyth/ledgerx"
	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 10 * time.Second

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfp := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()
	cfg, err := ledgerx.LoadConfig(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error loading config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, err := snowflake.NewNode(cfg.Engine.NodeID)
	if err != nil {
		logger.Fatal().Err(err).Msg("error creating snowflake node")
	}

	var repo ledgerx.Repository
	if cfg.Database.ConnectionString == "" {
		logger.Warn().Msg("no database configured, using in-memory store")
		mem := ledgerx.NewMemoryStore(node)
		seeded, err := mem.SeedAccounts(ctx, cfg.Seed.Accounts)
		if err != nil {
			logger.Fatal().Err(err).Msg("error seeding accounts")
		}
		for _, a := range seeded {
			logger.Info().Stringer("acctID", a.ID).Str("name", a.Name).Msg("account seeded")
		}
		repo = mem
	} else {
		pgendpt, err := ledgerx.NewPostgresEndpoint(ctx, cfg.Database, node, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("error starting database")
		}
		defer pgendpt.Close()
		repo = pgendpt
	}

	pub, err := ledgerx.NewPublisher(cfg.Events)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting event publisher")
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Err(err).Msg("error closing event publisher")
		}
	}()

	engine := ledgerx.NewEngine(repo, node, &logger,
		ledgerx.WithMaxAttempts(cfg.Engine.MaxAttempts),
		ledgerx.WithRetryBackoff(cfg.Engine.RetryBackoff),
		ledgerx.WithPublisher(pub),
	)
	svc := ledgerx.Chain(ledgerx.NewService(engine, &logger),
		ledgerx.NewLoggingMiddleware(&logger),
		ledgerx.NewInstrumentingMiddleware(),
		ledgerx.NewValidationMiddleware(),
		ledgerx.NewCircuitBreakMiddleware(ledgerx.NewServiceBreaker(cfg.Breaker, &logger)),
		ledgerx.NewLimitMiddleware(ledgerx.NewServiceLimits(cfg.Limits)),
	)
	hndlr := ledgerx.NewHTTPHandler(svc, &logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      hndlr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		logger.Info().Msg("shutting down")
		return srv.Shutdown(sctx)
	})

	if err = g.Wait(); err != nil {
		logger.Err(err).Msg("server stopped with error")
	}
}
