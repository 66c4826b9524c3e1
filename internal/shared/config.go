package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rs/zerolog/log"

	"guesthouse/internal/domain"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" env-default:"prod"`
	HTTPAddr    string `env:"HTTP_ADDR" env-default:":8080"`
	MetricsAddr string `env:"METRICS_ADDR"` // empty: /metrics on the API mux only

	MySQLDSN  string `env:"MYSQL_DSN" env-default:"root:root@tcp(localhost:3306)/guesthouse?parseTime=true&charset=utf8mb4&loc=UTC"`
	RedisAddr string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" env-default:"0"`

	CMSBase    string `env:"CMS_BASE_URL" env-default:"https://cms.example.com/v2021-10-21"`
	CMSDataset string `env:"CMS_DATASET" env-default:"production"`
	CMSToken   string `env:"CMS_TOKEN"`
	CMSRPS     int    `env:"CMS_RPS" env-default:"5"`
	Workers    int    `env:"INGEST_WORKERS" env-default:"4"`

	CacheTTL      time.Duration `env:"CACHE_TTL" env-default:"15m"`
	Locales       []string      `env:"LOCALES" env-separator:"," env-default:"en,ja"`
	DefaultLocale string        `env:"DEFAULT_LOCALE" env-default:"en"`

	MailBase string `env:"MAIL_API_URL" env-default:"https://api.resend.com"`
	MailKey  string `env:"MAIL_API_KEY"`
	MailFrom string `env:"MAIL_FROM" env-default:"Guesthouse <noreply@guesthouse.example>"`
	MailRPS  int    `env:"MAIL_RPS" env-default:"2"`

	DevMailbox     string `env:"CONTACT_DEV_MAILBOX" env-default:"dev@guesthouse.example"`
	GeneralMailbox string `env:"CONTACT_GENERAL_MAILBOX" env-default:"hello@guesthouse.example"`
	PlaceDomain    string `env:"CONTACT_PLACE_DOMAIN" env-default:"guesthouse.example"`

	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
}

// Load reads the configuration from the environment (defaults via env-default tags).
func Load() (Config, error) {
	var c Config
	if err := cleanenv.ReadEnv(&c); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if c.CMSToken == "" {
		log.Warn().Msg("CMS_TOKEN is empty")
	}
	if c.MailKey == "" {
		log.Warn().Msg("MAIL_API_KEY is empty")
	}
	return c, nil
}

func (c Config) validate() error {
	switch {
	case c.CMSRPS < 1:
		return fmt.Errorf("CMS_RPS must be positive, got %d", c.CMSRPS)
	case c.Workers < 1:
		return fmt.Errorf("INGEST_WORKERS must be positive, got %d", c.Workers)
	case c.CacheTTL < time.Second:
		return fmt.Errorf("CACHE_TTL must be at least 1s, got %s", c.CacheTTL)
	case strings.TrimSpace(c.DefaultLocale) == "":
		return fmt.Errorf("DEFAULT_LOCALE is empty")
	case c.PlaceDomain == "" || c.GeneralMailbox == "" || c.DevMailbox == "":
		return fmt.Errorf("contact mailboxes are not configured")
	}
	return nil
}

// Mode is production only for APP_ENV prod/production.
func (c Config) Mode() domain.Mode {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return domain.ModeProduction
	default:
		return domain.ModeNonProduction
	}
}

func (c Config) SiteLocales() domain.Locales {
	return domain.NewLocales(c.Locales, c.DefaultLocale)
}

func (c Config) Mailboxes() domain.Mailboxes {
	return domain.Mailboxes{
		Development: c.DevMailbox,
		General:     c.GeneralMailbox,
		PlaceDomain: c.PlaceDomain,
	}
}
