package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"guesthouse/internal/adapters/cms"
	"guesthouse/internal/adapters/observability"
	redisad "guesthouse/internal/adapters/redis"
	"guesthouse/internal/app"
	"guesthouse/internal/domain"
	"guesthouse/internal/shared"
	mysqlrepo "guesthouse/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		log.Error().Err(err).Msg("ingestor failed")
		os.Exit(1)
	}
}

// run owns every resource it opens, so they are closed before main exits.
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingestor", flag.ContinueOnError)
	only := fs.String("type", "", "sync a single document type (house, galleryImage, amenity, pricingPlan, faq)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *only != "" && !slices.Contains(domain.DocTypes, domain.DocType(*only)) {
		return fmt.Errorf("unknown document type %q", *only)
	}

	cfg, err := shared.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.Serve(cfg.MetricsAddr)

	log.Info().
		Str("base", cfg.CMSBase).
		Str("dataset", cfg.CMSDataset).
		Int("workers", cfg.Workers).
		Msg("ingestor starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	client, err := cms.New(cfg.CMSBase, cfg.CMSDataset, cfg.CMSToken, cfg.CMSRPS)
	if err != nil {
		return fmt.Errorf("cms client: %w", err)
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()

	ing := app.NewIngestionService(client, repo, cache, cfg.SiteLocales())

	if *only != "" {
		res, err := ing.SyncType(ctx, domain.DocType(*only))
		if err != nil {
			return err
		}
		log.Info().Str("type", *only).Int("synced", res.Synced).Int64("deleted", res.Deleted).Bool("skipped", res.Skipped).Msg("sync ok")
		return nil
	}

	results, err := ing.SyncAll(ctx, cfg.Workers)
	total := 0
	for _, r := range results {
		total += r.Synced
	}
	if err != nil {
		return fmt.Errorf("ingestion finished with errors (%d synced): %w", total, err)
	}
	log.Info().Int("synced", total).Msg("ingestion completed")
	return nil
}
