package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	GCP     GCPConfig
	PubSub  PubSubConfig
	Orders  OrdersConfig
	Metrics MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Orders.PromoPercents(); err != nil {
		return nil, err
	}
	if _, err := cfg.Orders.FlatShipping(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MARKETCORE_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"MARKETCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MARKETCORE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"MARKETCORE_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN string `envconfig:"MARKETCORE_DB_DSN"`

	LegacyHost     string `envconfig:"MARKETCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKETCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKETCORE_DB_USER"`
	LegacyPassword string `envconfig:"MARKETCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKETCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKETCORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETCORE_REDIS_URL"`
	Address      string        `envconfig:"MARKETCORE_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKETCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type GCPConfig struct {
	ProjectID string `envconfig:"MARKETCORE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic    string        `envconfig:"MARKETCORE_PUBSUB_ORDERS_TOPIC"`
	PublishTimeout time.Duration `envconfig:"MARKETCORE_PUBSUB_PUBLISH_TIMEOUT" default:"10s"`
}

// Enabled reports whether order events should be published.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.OrdersTopic) != ""
}

type OrdersConfig struct {
	DefaultProvider  string        `envconfig:"MARKETCORE_ORDERS_DEFAULT_PROVIDER" default:"cod"`
	DefaultCurrency  string        `envconfig:"MARKETCORE_ORDERS_DEFAULT_CURRENCY" default:"USD"`
	FlatShippingFee  string        `envconfig:"MARKETCORE_ORDERS_FLAT_SHIPPING_FEE" default:"40.00"`
	PromoCodes       []string      `envconfig:"MARKETCORE_ORDERS_PROMO_CODES" default:"WELCOME10:10"`
	IntentGuardTTL   time.Duration `envconfig:"MARKETCORE_ORDERS_INTENT_GUARD_TTL" default:"24h"`
	NotifyTimeout    time.Duration `envconfig:"MARKETCORE_ORDERS_NOTIFY_TIMEOUT" default:"5s"`
	ListDefaultLimit int           `envconfig:"MARKETCORE_ORDERS_LIST_DEFAULT_LIMIT" default:"20"`
}

// FlatShipping parses the configured per-sub-order shipping fee.
func (o OrdersConfig) FlatShipping() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(o.FlatShippingFee))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", EnvOrdersFlatShippingFee, err)
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", EnvOrdersFlatShippingFee)
	}
	return fee, nil
}

// PromoPercents parses CODE:PERCENT pairs into a lookup table.
func (o OrdersConfig) PromoPercents() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(o.PromoCodes))
	for _, raw := range o.PromoCodes {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		code, pct, ok := strings.Cut(raw, ":")
		if !ok || strings.TrimSpace(code) == "" {
			return nil, fmt.Errorf("invalid promo entry %q (expected CODE:PERCENT)", raw)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil || value < 0 || value > 100 {
			return nil, fmt.Errorf("invalid promo percent in %q", raw)
		}
		out[strings.TrimSpace(code)] = decimal.NewFromFloat(value)
	}
	return out, nil
}

type MetricsConfig struct {
	Namespace string `envconfig:"MARKETCORE_METRICS_NAMESPACE" default:"marketcore"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
