package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env string `env:"APP_ENV" env-default:"development"`

	HTTPServer
	Postgres
	Auth
	Redis
	AMQP
}

type HTTPServer struct {
	BindAddress     string        `env:"BIND_ADDRESS" env-default:"0.0.0.0"`
	Port            string        `env:"PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"5s"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" env-default:"1m"`
	AllowOrigins    []string      `env:"CORS_ALLOW_ORIGINS" env-default:"*" env-separator:","`
}

type Postgres struct {
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     string `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"postgres"`
	Password string `env:"DB_PASSWORD" env-default:"postgres"`
	Name     string `env:"DB_NAME" env-default:"wikicomments"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`

	Pool
}

type Pool struct {
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"100"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
}

// DSN renders the key/value connection string understood by pgx.
func (p Postgres) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		p.Host, p.User, p.Password, p.Name, p.Port, p.SSLMode,
	)
}

type Auth struct {
	JWTSecret     string        `env:"JWT_SECRET" env-required:"true"`
	TokenTTL      time.Duration `env:"JWT_TTL" env-default:"72h"`
	CommentSecret string        `env:"COMMENT_SECRET" env-required:"true"`
}

// Redis backs the comment throttle. Addr left empty disables it.
type Redis struct {
	Addr           string        `env:"REDIS_ADDR"`
	Password       string        `env:"REDIS_PASSWORD"`
	DB             int           `env:"REDIS_DB" env-default:"0"`
	ThrottleLimit  int64         `env:"COMMENT_THROTTLE_LIMIT" env-default:"10"`
	ThrottleWindow time.Duration `env:"COMMENT_THROTTLE_WINDOW" env-default:"1m"`
}

// AMQP backs comment event publishing. URL left empty disables it.
type AMQP struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE" env-default:"wikicomments.events"`
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// New loads an optional dotenv file and then reads the environment.
func New(envFile string) (*Config, error) {
	conf := &Config{}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("godotenv.Load: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(conf); err != nil {
		return nil, fmt.Errorf("cleanenv.ReadEnv: %w", err)
	}

	return conf, nil
}
