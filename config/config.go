package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Backend   BackendConfig
	Session   SessionConfig
	Database  DatabaseConfig
	Poller    PollerConfig
	Locations LocationsConfig
	Log       LogConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
	Notify    NotifyConfig
	Frontend  FrontendConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Version     string
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	GinMode         string
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BackendConfig points at the marketplace API the dashboard fronts.
type BackendConfig struct {
	BaseURL              string
	PushURL              string
	RequestTimeout       time.Duration
	DialTimeout          time.Duration
	ReconnectAttempts    int
	ReconnectDelay       time.Duration
	BreakerFailures      uint32
	BreakerOpenTimeout   time.Duration
	BreakerHalfOpenCalls uint32
}

type SessionConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	CookieName      string
	// SealKey is base64 of the 32 byte key used to seal backend tokens at rest.
	SealKey string
}

func (s SessionConfig) SealKeyBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(s.SealKey)
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogQueries      bool
}

type PollerConfig struct {
	MinFetchInterval time.Duration
	PollInterval     time.Duration
	AlertDuration    time.Duration
	NotificationCap  int
}

type LocationsConfig struct {
	Enabled         bool
	RefreshInterval time.Duration
}

type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         time.Duration
}

type RateLimitConfig struct {
	LoginPerMinute int
	LoginBurst     int
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

type NotifyConfig struct {
	Telegram TelegramConfig
	Kafka    KafkaConfig
}

type TelegramConfig struct {
	Token  string
	ChatID int64
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type FrontendConfig struct {
	BuildPath string
}

// Load reads .env (if present), then the environment and an optional
// dashboard.yaml, in that order of precedence from lowest to highest.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("dashboard")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/dashboard")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := fromViper(v)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bahiran-dashboard")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "0.0.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8083)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 20*time.Second)
	v.SetDefault("gin.mode", "debug")

	v.SetDefault("backend.base_url", "https://api.bahirandelivery.cloud")
	v.SetDefault("backend.push_url", "wss://api.bahirandelivery.cloud/ws")
	v.SetDefault("backend.request_timeout", 15*time.Second)
	v.SetDefault("backend.dial_timeout", 20*time.Second)
	v.SetDefault("backend.reconnect_attempts", 10)
	v.SetDefault("backend.reconnect_delay", 2*time.Second)
	v.SetDefault("backend.breaker_failures", 5)
	v.SetDefault("backend.breaker_open_timeout", 30*time.Second)
	v.SetDefault("backend.breaker_half_open_calls", 1)

	v.SetDefault("session.secret", "")
	v.SetDefault("session.access_ttl", 15*time.Minute)
	v.SetDefault("session.refresh_ttl", 12*time.Hour)
	v.SetDefault("session.issuer", "bahiran-dashboard")
	v.SetDefault("session.cookie", "dashboard_session")
	v.SetDefault("session.seal_key", "")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "dashboard.db")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("db.log_queries", false)

	v.SetDefault("poller.min_fetch_interval", 3*time.Second)
	v.SetDefault("poller.poll_interval", 30*time.Second)
	v.SetDefault("poller.alert_duration", 5*time.Second)
	v.SetDefault("poller.notification_cap", 10)

	v.SetDefault("locations.enabled", true)
	v.SetDefault("locations.refresh_interval", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.max_age", 12*time.Hour)

	v.SetDefault("ratelimit.login_per_minute", 10)
	v.SetDefault("ratelimit.login_burst", 5)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "bahiran-dashboard")
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.sample_rate", 0.1)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "dashboard.order-alerts")

	v.SetDefault("frontend.build_path", "./frontend/build")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		App: AppConfig{
			Name:        v.GetString("app.name"),
			Environment: v.GetString("app.env"),
			Version:     v.GetString("app.version"),
		},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			GinMode:         v.GetString("gin.mode"),
		},
		Backend: BackendConfig{
			BaseURL:              strings.TrimRight(v.GetString("backend.base_url"), "/"),
			PushURL:              v.GetString("backend.push_url"),
			RequestTimeout:       v.GetDuration("backend.request_timeout"),
			DialTimeout:          v.GetDuration("backend.dial_timeout"),
			ReconnectAttempts:    v.GetInt("backend.reconnect_attempts"),
			ReconnectDelay:       v.GetDuration("backend.reconnect_delay"),
			BreakerFailures:      v.GetUint32("backend.breaker_failures"),
			BreakerOpenTimeout:   v.GetDuration("backend.breaker_open_timeout"),
			BreakerHalfOpenCalls: v.GetUint32("backend.breaker_half_open_calls"),
		},
		Session: SessionConfig{
			Secret:          v.GetString("session.secret"),
			AccessTokenTTL:  v.GetDuration("session.access_ttl"),
			RefreshTokenTTL: v.GetDuration("session.refresh_ttl"),
			Issuer:          v.GetString("session.issuer"),
			CookieName:      v.GetString("session.cookie"),
			SealKey:         v.GetString("session.seal_key"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("db.driver")),
			DSN:             v.GetString("db.dsn"),
			MaxOpenConns:    v.GetInt("db.max_open_conns"),
			MaxIdleConns:    v.GetInt("db.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db.conn_max_lifetime"),
			LogQueries:      v.GetBool("db.log_queries"),
		},
		Poller: PollerConfig{
			MinFetchInterval: v.GetDuration("poller.min_fetch_interval"),
			PollInterval:     v.GetDuration("poller.poll_interval"),
			AlertDuration:    v.GetDuration("poller.alert_duration"),
			NotificationCap:  v.GetInt("poller.notification_cap"),
		},
		Locations: LocationsConfig{
			Enabled:         v.GetBool("locations.enabled"),
			RefreshInterval: v.GetDuration("locations.refresh_interval"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			OutputPath: v.GetString("log.output"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getList(v, "cors.allowed_origins"),
			MaxAge:         v.GetDuration("cors.max_age"),
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: v.GetInt("ratelimit.login_per_minute"),
			LoginBurst:     v.GetInt("ratelimit.login_burst"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("tracing.enabled"),
			ServiceName: v.GetString("tracing.service_name"),
			Endpoint:    v.GetString("tracing.endpoint"),
			SampleRate:  v.GetFloat64("tracing.sample_rate"),
		},
		Notify: NotifyConfig{
			Telegram: TelegramConfig{
				Token:  v.GetString("telegram.token"),
				ChatID: v.GetInt64("telegram.chat_id"),
			},
			Kafka: KafkaConfig{
				Brokers: getList(v, "kafka.brokers"),
				Topic:   v.GetString("kafka.topic"),
			},
		},
		Frontend: FrontendConfig{
			BuildPath: v.GetString("frontend.build_path"),
		},
	}
}

// getList accepts both YAML lists and comma separated environment values.
func getList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Session.Secret == "" {
		errs = append(errs, "SESSION_SECRET is required")
	} else if len(cfg.Session.Secret) < 32 && cfg.App.Environment == "production" {
		errs = append(errs, "SESSION_SECRET must be at least 32 characters in production")
	}

	if key, err := cfg.Session.SealKeyBytes(); err != nil || len(key) != 32 {
		errs = append(errs, "SESSION_SEAL_KEY must be base64 of exactly 32 bytes")
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("DB_DRIVER %q is not supported (postgres, sqlite)", cfg.Database.Driver))
	}

	if cfg.Backend.BaseURL == "" {
		errs = append(errs, "BACKEND_BASE_URL is required")
	}

	if cfg.Poller.MinFetchInterval < 0 || cfg.Poller.AlertDuration <= 0 {
		errs = append(errs, "poller intervals must be positive")
	}

	if cfg.Poller.NotificationCap <= 0 {
		errs = append(errs, "POLLER_NOTIFICATION_CAP must be positive")
	}

	if cfg.Notify.Telegram.Token != "" && cfg.Notify.Telegram.ChatID == 0 {
		errs = append(errs, "TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
