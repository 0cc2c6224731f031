package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	defaultConfigPath = "./config/config.yaml"
	minSecretLength   = 32
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	Storage    `yaml:"storage"`
	Postgres   `yaml:"postgres"`
	Tokens     `yaml:"tokens"`
	Hashing    `yaml:"hashing"`
	RabbitMQ   `yaml:"rabbitmq"`
	Redis      `yaml:"redis"`
	RateLimit  `yaml:"rate_limit"`
	Google     `yaml:"google"`
	Frontend   `yaml:"frontend"`
	Email      `yaml:"email"`
	OTel       `yaml:"otel"`
	HTTPServer `yaml:"http_server"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	PublicURL       string        `yaml:"public_url" env:"PUBLIC_URL" env-default:"http://localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env-default:"5s"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE" env-default:"disable"`
}

type Tokens struct {
	SessionSecret           string        `yaml:"session_secret" env:"JWT_SECRET" env-required:"true"`
	SessionTTL              time.Duration `yaml:"session_ttl" env:"JWT_EXPIRES_IN" env-default:"168h"`
	VerificationTokenSecret string        `yaml:"verification_token_secret" env:"VERIFICATION_TOKEN_SECRET"`
	VerificationTokenTTL    time.Duration `yaml:"verification_token_ttl" env-default:"24h"`
	ResetTokenTTL           time.Duration `yaml:"reset_token_ttl" env-default:"1h"`
}

type Hashing struct {
	BcryptCost int `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
}

type RabbitMQ struct {
	URL            string        `yaml:"url" env:"RABBITMQ_URL"`
	QueueName      string        `yaml:"queue_name" env:"RABBITMQ_QUEUE" env-default:"emails"`
	PublishTimeout time.Duration `yaml:"publish_timeout" env-default:"15s"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Limit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type RateLimit struct {
	Disabled      bool  `yaml:"disabled" env:"RATE_LIMIT_DISABLED"`
	Auth          Limit `yaml:"auth"`
	PasswordReset Limit `yaml:"password_reset"`
	Verification  Limit `yaml:"verification"`
}

type Google struct {
	ClientID     string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	CallbackURL  string `yaml:"callback_url" env:"GOOGLE_CALLBACK_URL" env-default:"http://localhost:8080/auth/google/callback"`
}

type Frontend struct {
	URL            string   `yaml:"url" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:","`
}

type Email struct {
	Host     string `yaml:"host" env:"EMAIL_HOST" env-default:"smtp.gmail.com"`
	Port     int    `yaml:"port" env:"EMAIL_PORT" env-default:"587"`
	Username string `yaml:"username" env:"EMAIL_USER"`
	Password string `yaml:"password" env:"EMAIL_PASS"`
	From     string `yaml:"from" env:"EMAIL_FROM"`
}

type OTel struct {
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `yaml:"service_name" env-default:"credentials_service"`
}

// GoogleEnabled reports whether both OAuth client credentials are present.
func (c *Config) GoogleEnabled() bool {
	return strings.TrimSpace(c.Google.ClientID) != "" && strings.TrimSpace(c.Google.ClientSecret) != ""
}

// Origins returns the CORS allow list: the frontend plus any extra origins.
func (c *Config) Origins() []string {
	origins := make([]string, 0, len(c.Frontend.AllowedOrigins)+1)
	if u := strings.TrimSpace(c.Frontend.URL); u != "" {
		origins = append(origins, u)
	}
	for _, o := range c.Frontend.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// MailFrom is the sender address used for outgoing mail.
func (c *Config) MailFrom() string {
	if c.Email.From != "" {
		return c.Email.From
	}
	if c.Email.Username != "" {
		return c.Email.Username
	}
	return "noreply@localhost"
}

func (c *Config) Validate() error {
	const op = "config.Validate"

	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("%s: unknown env %q", op, c.Env)
	}

	if len(c.Tokens.SessionSecret) < minSecretLength {
		return fmt.Errorf("%s: session secret must be at least %d characters long", op, minSecretLength)
	}

	if c.Tokens.SessionTTL <= 0 {
		return fmt.Errorf("%s: session ttl must be positive", op)
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.User == "" || c.Postgres.DBName == "" {
			return fmt.Errorf("%s: postgres user and dbname are required", op)
		}
	default:
		return fmt.Errorf("%s: unknown storage driver %q", op, c.Storage.Driver)
	}

	if c.Hashing.BcryptCost < 4 || c.Hashing.BcryptCost > 31 {
		return fmt.Errorf("%s: bcrypt cost %d out of range", op, c.Hashing.BcryptCost)
	}

	return nil
}

func (c *Config) setDefaults() {
	if c.Tokens.VerificationTokenSecret == "" {
		c.Tokens.VerificationTokenSecret = c.Tokens.SessionSecret + ":email_verification"
	}

	// local runs get lenient windows unless limits are set explicitly
	authLimit := Limit{Requests: 5, Window: 15 * time.Minute}
	resetLimit := Limit{Requests: 3, Window: time.Hour}
	verifyLimit := Limit{Requests: 10, Window: time.Hour}
	if c.Env == EnvLocal {
		authLimit = Limit{Requests: 100, Window: time.Minute}
		resetLimit = Limit{Requests: 10, Window: 5 * time.Minute}
		verifyLimit = Limit{Requests: 30, Window: 5 * time.Minute}
	}

	if c.RateLimit.Auth.Requests == 0 || c.RateLimit.Auth.Window == 0 {
		c.RateLimit.Auth = authLimit
	}
	if c.RateLimit.PasswordReset.Requests == 0 || c.RateLimit.PasswordReset.Window == 0 {
		c.RateLimit.PasswordReset = resetLimit
	}
	if c.RateLimit.Verification.Requests == 0 || c.RateLimit.Verification.Window == 0 {
		c.RateLimit.Verification = verifyLimit
	}
}

// Path resolves the config location from CONFIG_PATH, falling back to the default.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return defaultConfigPath
}

func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	return cfg
}
