package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "guesthouse/internal/adapters/http_server"
	"guesthouse/internal/adapters/mail"
	"guesthouse/internal/adapters/observability"
	redisad "guesthouse/internal/adapters/redis"
	"guesthouse/internal/app"
	"guesthouse/internal/shared"
	mysqlrepo "guesthouse/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("API failed")
		os.Exit(1)
	}
	log.Info().Msg("API stopped")
}

// run serves until ctx is cancelled; everything it opens is closed on return.
func run(ctx context.Context) error {
	cfg, err := shared.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve(cfg.MetricsAddr)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	log.Info().Msg("database connection ok")

	// deps
	locales := cfg.SiteLocales()
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		// reads fall through to MySQL while redis is down
		log.Warn().Err(err).Msg("redis ping failed")
	}
	q := app.NewQueryService(repo, cache, cfg.CacheTTL, locales)

	tpl, err := mail.NewTemplates()
	if err != nil {
		return fmt.Errorf("mail templates: %w", err)
	}
	mailer, err := mail.NewClient(cfg.MailBase, cfg.MailKey, cfg.MailRPS)
	if err != nil {
		return fmt.Errorf("mail client: %w", err)
	}
	contact := app.NewContactService(cfg.Mailboxes(), cfg.Mode(), tpl, mailer, repo, cfg.MailFrom)
	log.Info().Str("mode", string(cfg.Mode())).Strs("locales", locales.All()).Msg("contact routing")

	// http
	srv := server.New(cfg.CORSOrigins)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, C: contact, Locales: locales})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
