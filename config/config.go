package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de polycopy.
type Config struct {
	Portfolio PortfolioConfig `yaml:"portfolio"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// PortfolioConfig controla la carga y el refresco del portfolio.
type PortfolioConfig struct {
	UserID          string `yaml:"user_id"` // usuario por defecto del modo report
	Wallet          string `yaml:"wallet"`  // wallet cuyas posiciones reconcilian las órdenes
	RefreshSeconds  int    `yaml:"refresh_seconds"`
	HistoryPageSize int    `yaml:"history_page_size"`
	HistoryMaxPages int    `yaml:"history_max_pages"`
	PageSize        int    `yaml:"page_size"`
	QuoteWorkers    int    `yaml:"quote_workers"`
	OverlayEnabled  *bool  `yaml:"overlay_enabled"` // nil = true
	TableLimit      int    `yaml:"table_limit"`     // filas de la tabla de consola; 0 = todas
}

// APIConfig contiene los base URLs de las APIs de Polymarket.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
	DataBase  string `yaml:"data_base"`
}

// StorageConfig controla dónde se persisten los datos.
// Si PostgresURL está definido tiene prioridad sobre SQLite.
type StorageConfig struct {
	DSN         string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
	PostgresURL string `yaml:"postgres_url"`
}

// CacheConfig controla el cache Redis de quotes y metadata. Sin URL no hay cache.
type CacheConfig struct {
	RedisURL           string `yaml:"redis_url"`
	QuoteTTLSeconds    int    `yaml:"quote_ttl_seconds"`
	ResolvedTTLSeconds int    `yaml:"resolved_ttl_seconds"`
	MetaTTLSeconds     int    `yaml:"meta_ttl_seconds"`
}

// ServerConfig controla el API HTTP.
type ServerConfig struct {
	Addr                  string `yaml:"addr"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	MaxPageSize           int    `yaml:"max_page_size"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// RefreshInterval devuelve el intervalo de refresco como time.Duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Portfolio.RefreshSeconds) * time.Second
}

// Overlay indica si se piden precios live.
func (c *Config) Overlay() bool {
	return c.Portfolio.OverlayEnabled == nil || *c.Portfolio.OverlayEnabled
}

// QuoteTTL es el TTL de los quotes live en Redis.
func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.Cache.QuoteTTLSeconds) * time.Second
}

// ResolvedTTL es el TTL de los quotes de mercados ya resueltos.
func (c *Config) ResolvedTTL() time.Duration {
	return time.Duration(c.Cache.ResolvedTTLSeconds) * time.Second
}

// MetaTTL es el TTL de la metadata de mercados en Redis.
func (c *Config) MetaTTL() time.Duration {
	return time.Duration(c.Cache.MetaTTLSeconds) * time.Second
}

// RequestTimeout es el timeout por request del API HTTP.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.PostgresURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("POLYCOPY_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("POLYCOPY_USER_ID"); v != "" {
		cfg.Portfolio.UserID = v
	}
	if v := os.Getenv("POLYCOPY_WALLET"); v != "" {
		cfg.Portfolio.Wallet = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Portfolio.RefreshSeconds <= 0 {
		cfg.Portfolio.RefreshSeconds = 60
	}
	if cfg.Portfolio.HistoryPageSize <= 0 {
		cfg.Portfolio.HistoryPageSize = 50
	}
	if cfg.Portfolio.HistoryMaxPages <= 0 {
		cfg.Portfolio.HistoryMaxPages = 10
	}
	if cfg.Portfolio.PageSize <= 0 {
		cfg.Portfolio.PageSize = 20
	}
	if cfg.Portfolio.QuoteWorkers <= 0 {
		cfg.Portfolio.QuoteWorkers = 8
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polycopy.db"
	}
	if cfg.Cache.QuoteTTLSeconds <= 0 {
		cfg.Cache.QuoteTTLSeconds = 15
	}
	if cfg.Cache.ResolvedTTLSeconds <= 0 {
		cfg.Cache.ResolvedTTLSeconds = 6 * 3600
	}
	if cfg.Cache.MetaTTLSeconds <= 0 {
		cfg.Cache.MetaTTLSeconds = 6 * 3600
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestTimeoutSeconds <= 0 {
		cfg.Server.RequestTimeoutSeconds = 30
	}
	if cfg.Server.MaxPageSize <= 0 {
		cfg.Server.MaxPageSize = 100
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
