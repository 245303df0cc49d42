package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override,
// e.g. CONTRASTKIT_SESSION_SECRET for session.secret.
const EnvPrefix = "CONTRASTKIT"

// DevSessionSecret is the default signing secret. Release builds must override it.
const DevSessionSecret = "contrastkit-dev-secret-change-me"

// KVDriver selects the key-value backend.
type KVDriver string

const (
	KVDriverMemory KVDriver = "memory"
	KVDriverRedis  KVDriver = "redis"
	KVDriverMongo  KVDriver = "mongo"
)

// Config is the full service configuration.
type Config struct {
	HTTPAddr      string `mapstructure:"http_addr"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	LogLevel      string `mapstructure:"log_level"`
	LogPretty     bool   `mapstructure:"log_pretty"`

	Session   SessionConfig   `mapstructure:"session"`
	KV        KVConfig        `mapstructure:"kv"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Webflow   WebflowConfig   `mapstructure:"webflow"`
	Widget    WidgetConfig    `mapstructure:"widget"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Events    EventsConfig    `mapstructure:"events"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type SessionConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type KVConfig struct {
	Driver          KVDriver `mapstructure:"driver"`
	RedisURL        string   `mapstructure:"redis_url"`
	MongoURI        string   `mapstructure:"mongo_uri"`
	MongoDB         string   `mapstructure:"mongo_db"`
	MongoCollection string   `mapstructure:"mongo_collection"`
	// EncryptionKey is a base64 encoded 32 byte key. When empty, access
	// tokens are stored in plain text.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type RateLimitConfig struct {
	Window  time.Duration `mapstructure:"window"`
	Max     int           `mapstructure:"max"`
	Backend string        `mapstructure:"backend"`
	Exempt  []string      `mapstructure:"exempt"`
}

type WebflowConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RedirectURL  string        `mapstructure:"redirect_url"`
	AuthorizeURL string        `mapstructure:"authorize_url"`
	TokenURL     string        `mapstructure:"token_url"`
	APIBaseURL   string        `mapstructure:"api_base_url"`
	Scopes       []string      `mapstructure:"scopes"`
	Timeout      time.Duration `mapstructure:"timeout"`
	// ExtensionOrigin receives the session token from the OAuth popup.
	// Empty means https://<client_id>.webflow-ext.com.
	ExtensionOrigin string `mapstructure:"extension_origin"`
}

type WidgetConfig struct {
	ScriptURL     string `mapstructure:"script_url"`
	ScriptVersion string `mapstructure:"script_version"`
	IntegrityHash string `mapstructure:"integrity_hash"`
	DisplayName   string `mapstructure:"display_name"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	PriceID       string `mapstructure:"price_id"`
	APIBaseURL    string `mapstructure:"api_base_url"`
	TrialDays     int    `mapstructure:"trial_days"`
	Currency      string `mapstructure:"currency"`
	// WebhookTolerance bounds the age of a signed webhook timestamp. Zero
	// disables the check.
	WebhookTolerance time.Duration `mapstructure:"webhook_tolerance"`
}

type EventsConfig struct {
	WebhookURL     string        `mapstructure:"webhook_url"`
	AMQPURL        string        `mapstructure:"amqp_url"`
	AMQPExchange   string        `mapstructure:"amqp_exchange"`
	AMQPRoutingKey string        `mapstructure:"amqp_routing_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	// AuditFile receives the audit trail. "-" is stdout, empty disables it.
	AuditFile string `mapstructure:"audit_file"`
}

type TelemetryConfig struct {
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	ServiceName    string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("public_base_url", "http://localhost:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	v.SetDefault("session.secret", DevSessionSecret)
	v.SetDefault("session.ttl", "24h")

	v.SetDefault("kv.driver", string(KVDriverMemory))
	v.SetDefault("kv.redis_url", "redis://localhost:6379/0")
	v.SetDefault("kv.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("kv.mongo_db", "contrastkit")
	v.SetDefault("kv.mongo_collection", "kv")
	v.SetDefault("kv.encryption_key", "")

	v.SetDefault("rate_limit.window", "15m")
	v.SetDefault("rate_limit.max", 100)
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.exempt", []string{
		"/api/accessibility/domain-lookup",
		"/api/accessibility/create-trial",
		"/api/accessibility/payment-status",
		"/api/accessibility/validate-domain",
		"/api/accessibility/setup-payment",
		"/api/accessibility/create-subscription",
		"/api/accessibility/create-payment-intent",
		"/api/accessibility/cancel-subscription",
		"/api/accessibility/subscription-status",
		"/api/stripe/webhook",
		"/api/webflow/webhook",
		"/health",
		"/metrics",
	})

	v.SetDefault("webflow.client_id", "")
	v.SetDefault("webflow.client_secret", "")
	v.SetDefault("webflow.redirect_url", "http://localhost:8080/api/auth/callback")
	v.SetDefault("webflow.authorize_url", "https://webflow.com/oauth/authorize")
	v.SetDefault("webflow.token_url", "https://api.webflow.com/oauth/access_token")
	v.SetDefault("webflow.api_base_url", "https://api.webflow.com/v2")
	v.SetDefault("webflow.scopes", []string{
		"sites:read", "sites:write", "custom_code:read", "custom_code:write", "authorized_user:read",
	})
	v.SetDefault("webflow.timeout", "15s")
	v.SetDefault("webflow.extension_origin", "")

	v.SetDefault("widget.script_url", "http://localhost:8080/widget.js")
	v.SetDefault("widget.script_version", "1.0.0")
	v.SetDefault("widget.integrity_hash", "")
	v.SetDefault("widget.display_name", "ContrastKit")

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.price_id", "")
	v.SetDefault("stripe.api_base_url", "")
	v.SetDefault("stripe.trial_days", 7)
	v.SetDefault("stripe.currency", "usd")
	v.SetDefault("stripe.webhook_tolerance", "0s")

	v.SetDefault("events.webhook_url", "")
	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.amqp_exchange", "contrastkit.events")
	v.SetDefault("events.amqp_routing_key", "contrastkit")
	v.SetDefault("events.timeout", "5s")
	v.SetDefault("events.audit_file", "")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.service_name", "contrastkit-api")
}

// Load reads configuration from the given file (or the default search path
// when empty), environment variables and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/contrastkit/")
		v.AddConfigPath("$HOME/.contrastkit")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if cfg.Webflow.ExtensionOrigin == "" && cfg.Webflow.ClientID != "" {
		cfg.Webflow.ExtensionOrigin = "https://" + cfg.Webflow.ClientID + ".webflow-ext.com"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return errors.New("session.secret is required")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}

	switch c.KV.Driver {
	case KVDriverMemory:
	case KVDriverRedis:
		if c.KV.RedisURL == "" {
			return errors.New("kv.redis_url is required for the redis driver")
		}
	case KVDriverMongo:
		if c.KV.MongoURI == "" || c.KV.MongoDB == "" {
			return errors.New("kv.mongo_uri and kv.mongo_db are required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown kv.driver %q", c.KV.Driver)
	}

	if c.RateLimit.Window <= 0 || c.RateLimit.Max <= 0 {
		return errors.New("rate_limit.window and rate_limit.max must be positive")
	}
	if c.RateLimit.Backend != "memory" && c.RateLimit.Backend != "redis" {
		return fmt.Errorf("unknown rate_limit.backend %q", c.RateLimit.Backend)
	}

	return nil
}
