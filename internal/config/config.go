package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"HTTP"`
	Postgres PostgresConfig `yaml:"POSTGRES"`
	Redis    RedisConfig    `yaml:"REDIS"`
	Kafka    KafkaConfig    `yaml:"KAFKA"`
	Auth     AuthConfig     `yaml:"AUTH"`
	Voting   VotingConfig   `yaml:"VOTING"`
	LogLevel string         `yaml:"LOG_LEVEL" env:"LOG_LEVEL" env-default:"info"`
	Metrics  MetricsConfig  `yaml:"METRICS"`
}

// HTTPConfig.AllowedOrigins lists extra websocket origin patterns. When empty
// only same-host websocket handshakes are accepted.
type HTTPConfig struct {
	Addr            string        `yaml:"HTTP_ADDR"             env:"HTTP_ADDR"             env-default:"0.0.0.0:8080"`
	ShutdownTimeout time.Duration `yaml:"HTTP_SHUTDOWN_TIMEOUT" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"30s"`
	AllowedOrigins  []string      `yaml:"HTTP_ALLOWED_ORIGINS"  env:"HTTP_ALLOWED_ORIGINS"  env-separator:","`
}

type PostgresConfig struct {
	Host     string `yaml:"POSTGRES_HOST"     env:"POSTGRES_HOST"     env-default:"localhost"`
	Port     string `yaml:"POSTGRES_PORT"     env:"POSTGRES_PORT"     env-default:"5432"`
	User     string `yaml:"POSTGRES_USER"     env:"POSTGRES_USER"     env-default:"postgres"`
	Password string `yaml:"POSTGRES_PASSWORD" env:"POSTGRES_PASSWORD"`
	DB       string `yaml:"POSTGRES_DB"       env:"POSTGRES_DB"       env-default:"ballot"`
	SSLMode  string `yaml:"POSTGRES_SSLMODE"  env:"POSTGRES_SSLMODE"  env-default:"disable"`
}

func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DB,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	URL        string        `yaml:"REDIS_URL"         env:"REDIS_URL"`
	ResultsTTL time.Duration `yaml:"REDIS_RESULTS_TTL" env:"REDIS_RESULTS_TTL" env-default:"24h"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"KAFKA_BROKERS" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"KAFKA_TOPIC"   env:"KAFKA_TOPIC"   env-default:"poll-events"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"JWT_SECRET"       env:"JWT_SECRET" env-required:"true"`
	TokenTTL  time.Duration `yaml:"JWT_TOKEN_TTL"    env:"JWT_TOKEN_TTL" env-default:"15m"`
}

type VotingConfig struct {
	// RequiredFields lists extra profile fields as "key:Label" pairs.
	RequiredFields      string        `yaml:"VOTING_REQUIRED_FIELDS"        env:"VOTING_REQUIRED_FIELDS"`
	LiveResultsInterval time.Duration `yaml:"VOTING_LIVE_RESULTS_INTERVAL"  env:"VOTING_LIVE_RESULTS_INTERVAL" env-default:"5s"`
}

type MetricsConfig struct {
	Namespace string `yaml:"METRICS_NAMESPACE" env:"METRICS_NAMESPACE" env-default:"ballot"`
}

func New() (*Config, error) {
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if _, err := config.ProfileRequirements(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ProfileRequirements resolves the configured field list into the set the
// eligibility check uses.
func (c *Config) ProfileRequirements() (domain.ProfileRequirements, error) {
	fields, err := ParseProfileFields(c.Voting.RequiredFields)
	if err != nil {
		return domain.ProfileRequirements{}, err
	}
	return domain.NewProfileRequirements(fields...), nil
}

func ParseProfileFields(raw string) ([]domain.ProfileField, error) {
	var fields []domain.ProfileField
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, label, _ := strings.Cut(item, ":")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid VOTING_REQUIRED_FIELDS entry %q", item)
		}
		fields = append(fields, domain.ProfileField{Key: key, Label: strings.TrimSpace(label)})
	}
	return fields, nil
}
