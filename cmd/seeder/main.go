package main

import (
	"context"
	"flag"
	"os"

	"github.com/arhyth/ledgerx"
	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfp := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()
	cfg, err := ledgerx.LoadConfig(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error loading config")
	}
	if cfg.Database.ConnectionString == "" {
		logger.Fatal().Msg("seeder needs database.conn_str or " + ledgerx.EnvConnStr)
	}

	node, err := snowflake.NewNode(cfg.Engine.NodeID)
	if err != nil {
		logger.Fatal().Err(err).Msg("error creating snowflake node")
	}

	ctx := context.Background()
	lh, err := ledgerx.NewLocalHelper(ctx, cfg.Database.ConnectionString, node)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting local helper")
	}
	defer lh.Close(ctx)

	if _, err = lh.InitDB(ctx); err != nil {
		logger.Fatal().Err(err).Msg("error initializing database")
	}
	seeded, err := lh.SeedAccounts(ctx, cfg.Seed.Accounts)
	if err != nil {
		logger.Fatal().Err(err).Msg("error seeding accounts")
	}
	for _, a := range seeded {
		logger.Info().
			Stringer("acctID", a.ID).
			Str("name", a.Name).
			Msg("account seeded")
	}
}
