package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Environment string
	DBDSN       string
	Storage     string
	HTTPAddr    string
	Timezone    string

	ReminderInterval  time.Duration
	ReminderLead      time.Duration
	ReminderTolerance time.Duration

	AllowDeclineConfirmed bool
	RequireOfferSubset    bool

	NATSURL    string
	NATSStream string

	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	SMTPFrom   string
	SMTPUseTLS bool

	TelegramToken string
	OTLPEndpoint  string
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv собирает конфиг из функции чтения переменных
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Environment: p.str("ENV", "development"),
		DBDSN:       p.str("DB_DSN", ""),
		Storage:     strings.ToLower(p.str("STORAGE", StoragePostgres)),
		HTTPAddr:    p.str("HTTP_ADDR", ":8080"),
		Timezone:    p.str("TIMEZONE", "UTC"),

		ReminderInterval:  p.duration("REMINDER_INTERVAL", time.Hour),
		ReminderLead:      p.duration("REMINDER_LEAD", 24*time.Hour),
		ReminderTolerance: p.duration("REMINDER_TOLERANCE", 2*time.Hour),

		AllowDeclineConfirmed: p.boolean("ALLOW_DECLINE_CONFIRMED", false),
		RequireOfferSubset:    p.boolean("REQUIRE_OFFER_SUBSET", false),

		NATSURL:    p.str("NATS_URL", ""),
		NATSStream: p.str("NATS_STREAM", "ASKGRANDPA"),

		SMTPHost:   p.str("SMTP_HOST", ""),
		SMTPPort:   p.integer("SMTP_PORT", 587),
		SMTPUser:   p.str("SMTP_USER", ""),
		SMTPPass:   p.str("SMTP_PASS", ""),
		SMTPFrom:   p.str("SMTP_FROM", ""),
		SMTPUseTLS: p.boolean("SMTP_USE_TLS", false),

		TelegramToken: p.str("TELEGRAM_TOKEN", ""),
		OTLPEndpoint:  p.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required but not set")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}

	if c.ReminderLead <= 0 || c.ReminderTolerance <= 0 || c.ReminderInterval <= 0 {
		return fmt.Errorf("reminder durations must be positive")
	}
	if c.ReminderTolerance >= c.ReminderLead {
		return fmt.Errorf("REMINDER_TOLERANCE (%s) must be shorter than REMINDER_LEAD (%s)", c.ReminderTolerance, c.ReminderLead)
	}
	// Окна соседних проходов должны перекрываться, иначе встреча может выпасть из всех
	if c.ReminderInterval > 2*c.ReminderTolerance {
		return fmt.Errorf("REMINDER_INTERVAL (%s) must not exceed twice REMINDER_TOLERANCE (%s)", c.ReminderInterval, c.ReminderTolerance)
	}

	if c.SMTPHost != "" && c.SMTPFrom == "" {
		return fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}

	return nil
}

// Location зона, в которой интерпретируются даты предложений
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (p *parser) boolean(key string, def bool) bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (p *parser) integer(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}
