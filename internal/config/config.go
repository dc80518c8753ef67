package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	QueueBackendSQS   = "sqs"
	QueueBackendKafka = "kafka"

	MailProviderSES  = "ses"
	MailProviderSMTP = "smtp"
)

type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"` // environment
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	AWS        AWSConfig        `yaml:"aws"`
	Cognito    CognitoConfig    `yaml:"cognito"`
	Queue      QueueConfig      `yaml:"queue"`
	Mail       MailConfig       `yaml:"mail"`
	Storage    StorageConfig    `yaml:"storage"`
	CORS       CORSConfig       `yaml:"cors"`
	Migrations MigrationsConfig `yaml:"migrations"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// DatabaseConfig структура по работе с БД.
// При заданном SecretID логин, пароль, хост, порт и имя базы берутся из Secrets Manager.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"-" env:"DB_PASSWORD"`
	Name     string `yaml:"name" env:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	SecretID string `yaml:"secret_id" env:"AWS_DB_SECRET_ID"`
}

type AWSConfig struct {
	Region string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
	// Endpoint для LocalStack
	Endpoint string `yaml:"endpoint" env:"AWS_ENDPOINT"`
}

// CognitoConfig — пул пользователей, чьи ID-токены принимает API.
type CognitoConfig struct {
	Region             string        `yaml:"region" env:"COGNITO_REGION"`
	UserPoolID         string        `yaml:"user_pool_id" env:"COGNITO_USER_POOL_ID"`
	ClientID           string        `yaml:"client_id" env:"COGNITO_CLIENT_ID"`
	JWKSURL            string        `yaml:"jwks_url" env:"COGNITO_JWKS_URL"`
	KeyTTL             time.Duration `yaml:"key_ttl" env-default:"1h"`
	MinRefreshInterval time.Duration `yaml:"min_refresh_interval" env-default:"30s"`
}

type QueueConfig struct {
	Backend           string        `yaml:"backend" env:"QUEUE_BACKEND" env-default:"sqs"`
	Name              string        `yaml:"name" env:"SQS_ORDER_CONFIRMATION_QUEUE_NAME" env-default:"order-confirmation-queue"`
	URL               string        `yaml:"url" env:"SQS_ORDER_CONFIRMATION_QUEUE_URL"`
	WaitTime          time.Duration `yaml:"wait_time" env-default:"20s"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout" env-default:"30s"`
	MaxMessages       int32         `yaml:"max_messages" env-default:"10"`
	DispatchTimeout   time.Duration `yaml:"dispatch_timeout" env-default:"5s"`
	Kafka             KafkaConfig   `yaml:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"order-confirmation"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"order-notifier"`

	// DeadLetterTopic принимает письма, которые не удалось отправить; пустое значение отключает.
	DeadLetterTopic string `yaml:"dead_letter_topic" env:"KAFKA_DEAD_LETTER_TOPIC" env-default:"order-confirmation-dlq"`
}

type MailConfig struct {
	Provider string     `yaml:"provider" env:"MAIL_PROVIDER" env-default:"ses"`
	From     string     `yaml:"from" env:"MAIL_FROM" env-default:"orders@kronor.shop"`
	Team     string     `yaml:"team" env:"MAIL_TEAM" env-default:"Cloudonauts"`
	SMTP     SMTPConfig `yaml:"smtp"`
}

type SMTPConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"1025"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"-" env:"SMTP_PASS"`
}

type StorageConfig struct {
	Bucket string `yaml:"bucket" env:"AWS_BUCKET_NAME"`
	ACL    string `yaml:"acl" env:"AWS_S3_ACL" env-default:"private"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_WHITE_LIST" env-separator:","`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}
	return cfg
}

// Load читает YAML с переопределением из env и проверяет согласованность секций.
func Load(configPath string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv для Lambda, где файла конфига нет.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Database.SecretID == "" {
		if c.Database.User == "" {
			errs = append(errs, errors.New("database.user is required without database.secret_id"))
		}
		if c.Database.Password == "" {
			errs = append(errs, errors.New("DB_PASSWORD is required without database.secret_id"))
		}
		if c.Database.Name == "" {
			errs = append(errs, errors.New("database.name is required without database.secret_id"))
		}
	}

	switch c.Queue.Backend {
	case QueueBackendSQS:
	case QueueBackendKafka:
		if len(c.Queue.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("queue.kafka.brokers is required for kafka backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown queue.backend %q", c.Queue.Backend))
	}

	switch c.Mail.Provider {
	case MailProviderSES, MailProviderSMTP:
	default:
		errs = append(errs, fmt.Errorf("unknown mail.provider %q", c.Mail.Provider))
	}

	return errors.Join(errs...)
}

// Issuer возвращает адрес пула Cognito. Регион пула по умолчанию совпадает с регионом AWS.
func (c *Config) Issuer() string {
	region := c.Cognito.Region
	if region == "" {
		region = c.AWS.Region
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, c.Cognito.UserPoolID)
}

func (c *Config) JWKSURL() string {
	if c.Cognito.JWKSURL != "" {
		return c.Cognito.JWKSURL
	}
	return c.Issuer() + "/.well-known/jwks.json"
}
