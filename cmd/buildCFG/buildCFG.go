package buildCFG

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pickupBoard/internal/mailer"
	"pickupBoard/internal/rabbit"
	"pickupBoard/internal/store"
)

// Source is the subset of the wbf config loader the builders read from.
type Source interface {
	GetString(key string) string
	GetInt(key string) int
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type AutomationConfig struct {
	BaseURL      string
	Token        string
	BlastWebhook string
	Timeout      time.Duration
}

type AuthConfig struct {
	Secret     string
	Issuer     string
	StoreToken string
}

type CacheConfig struct {
	Path        string
	TemplateTTL time.Duration
	BlastMaxAge time.Duration
}

type StoreConfig struct {
	store.Config
	Location *time.Location
}

var errMissing = errors.New("missing required config key")

func required(cfg Source, key string) (string, error) {
	v := cfg.GetString(key)
	if v == "" {
		return "", fmt.Errorf("%w: %s", errMissing, key)
	}
	return v, nil
}

func duration(cfg Source, log *zerolog.Logger, key string, def time.Duration) time.Duration {
	raw := cfg.GetString(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("bad duration, using default")
		return def
	}
	return d
}

func BuildServerConfig(cfg Source, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port not set, defaulting to 8080")
	}
	return ServerConfig{
		Port:            port,
		ShutdownTimeout: duration(cfg, log, "server.shutdown_timeout", 10*time.Second),
	}
}

func BuildStoreConfig(cfg Source, log *zerolog.Logger) (StoreConfig, error) {
	baseURL, err := required(cfg, "store.base_url")
	if err != nil {
		return StoreConfig{}, err
	}
	baseID, err := required(cfg, "store.base_id")
	if err != nil {
		return StoreConfig{}, err
	}

	tz := cfg.GetString("store.timezone")
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return StoreConfig{}, fmt.Errorf("store.timezone: %w", err)
	}

	sc := StoreConfig{
		Config: store.Config{
			BaseURL: baseURL,
			BaseID:  baseID,
			Timeout: duration(cfg, log, "store.timeout", 15*time.Second),
		},
		Location: loc,
	}
	log.Info().Str("base_id", baseID).Str("timezone", tz).Msg("store config loaded")
	return sc, nil
}

func BuildAutomationConfig(cfg Source, log *zerolog.Logger) (AutomationConfig, error) {
	baseURL, err := required(cfg, "automation.base_url")
	if err != nil {
		return AutomationConfig{}, err
	}
	hook := cfg.GetString("automation.blast_webhook")
	if hook == "" {
		log.Warn().Msg("automation.blast_webhook not set, recruitment blasts are disabled")
	}
	return AutomationConfig{
		BaseURL:      baseURL,
		Token:        cfg.GetString("automation.token"),
		BlastWebhook: hook,
		Timeout:      duration(cfg, log, "automation.timeout", 15*time.Second),
	}, nil
}

// BuildRabbitConfig reads the exchange/queue pair under prefix
// ("rabbit.blasts", "rabbit.notifications").
func BuildRabbitConfig(cfg Source, log *zerolog.Logger, prefix string, delayed bool) (rabbit.Config, error) {
	url, err := required(cfg, "rabbit.url")
	if err != nil {
		return rabbit.Config{}, err
	}
	exchange, err := required(cfg, prefix+".exchange")
	if err != nil {
		return rabbit.Config{}, err
	}
	rc := rabbit.Config{
		URL:      url,
		Exchange: exchange,
		Queue:    cfg.GetString(prefix + ".queue"),
		Delayed:  delayed,
	}
	log.Info().Str("exchange", rc.Exchange).Str("queue", rc.Queue).Msg("rabbit config loaded")
	return rc, nil
}

func BuildMailConfig(cfg Source, log *zerolog.Logger) mailer.Config {
	mc := mailer.Config{
		Host:     cfg.GetString("mail.host"),
		Port:     cfg.GetString("mail.port"),
		Username: cfg.GetString("mail.username"),
		Password: cfg.GetString("mail.password"),
		From:     cfg.GetString("mail.from"),
	}
	if mc.Port == "" {
		mc.Port = "587"
	}
	if mc.Host == "" {
		log.Warn().Msg("mail.host not set, confirmation emails are disabled")
	}
	return mc
}

func BuildAuthConfig(cfg Source, log *zerolog.Logger) (AuthConfig, error) {
	secret, err := required(cfg, "auth.jwt_secret")
	if err != nil {
		return AuthConfig{}, err
	}
	token, err := required(cfg, "auth.store_token")
	if err != nil {
		return AuthConfig{}, err
	}
	if len(secret) < 32 {
		log.Warn().Msg("auth.jwt_secret is shorter than 32 bytes")
	}
	return AuthConfig{Secret: secret, Issuer: cfg.GetString("auth.issuer"), StoreToken: token}, nil
}

func BuildCacheConfig(cfg Source, log *zerolog.Logger) CacheConfig {
	path := cfg.GetString("cache.path")
	if path == "" {
		path = "data/pickup-board.db"
	}
	return CacheConfig{
		Path:        path,
		TemplateTTL: duration(cfg, log, "cache.template_ttl", 10*time.Minute),
		BlastMaxAge: time.Duration(cfg.GetInt("cache.blast_retention_days")) * 24 * time.Hour,
	}
}
