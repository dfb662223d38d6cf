package config

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	Log         Log           `yaml:"log"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Redis       *redis.Client `yaml:"redis"`
	Server      Server        `yaml:"server"`
	OpenAI      OpenAI        `yaml:"openai"`
	Annotation  Annotation    `yaml:"annotation"`
	Auth        Auth          `yaml:"auth"`
	Stripe      Stripe        `yaml:"stripe"`
}

type App struct {
	Environment string `yaml:"environment" validate:"required,oneof=production staging develop"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol" validate:"omitempty,oneof=http https"`
}

type Log struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type Server struct {
	HttpPort       string   `yaml:"http_port" validate:"required"`
	Workers        int      `yaml:"workers" validate:"gte=1"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type OpenAI struct {
	APIKey             string `yaml:"api_key" validate:"required"`
	BaseURL            string `yaml:"base_url" validate:"omitempty,url"`
	TranscriptionModel string `yaml:"transcription_model" validate:"required"`
	ChatModel          string `yaml:"chat_model" validate:"required"`
}

type Annotation struct {
	// Timeout bounds one pipeline run. Zero leaves it unbounded.
	Timeout time.Duration `yaml:"timeout"`
	UserId  string        `yaml:"user_id"`
}

type Auth struct {
	AllowedEmail       string        `yaml:"allowed_email" validate:"required,email"`
	Secret             string        `yaml:"secret" validate:"required,min=16"`
	GoogleClientID     string        `yaml:"google_client_id"`
	GoogleClientSecret string        `yaml:"google_client_secret"`
	RedirectURL        string        `yaml:"redirect_url" validate:"omitempty,url"`
	TokenTTL           time.Duration `yaml:"token_ttl"`
}

type Stripe struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url" validate:"omitempty,url"`
	Currency      string `yaml:"currency" validate:"omitempty,len=3"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
	QueueName    string `json:"queue_name"`
	RoutingKey   string `json:"routing_key"`
}

func setDefault(v *viper.Viper) {
	v.SetDefault("app.environment", "develop")
	v.SetDefault("app.protocol", "http")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.workers", 2)
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("rabbitmq_kind", "direct")
	v.SetDefault("rabbitmq_exchange", "starlog_exchange")
	v.SetDefault("rabbitmq_queue", "starlog_export_queue")
	v.SetDefault("rabbitmq_routing_key", "starlog.export.request")
	v.SetDefault("minio.bucket", "captains-log")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("openai.transcription_model", "whisper-1")
	v.SetDefault("openai.chat_model", "gpt-3.5-turbo")
	v.SetDefault("annotation.timeout", "2m")
	v.SetDefault("annotation.user_id", "01")
	v.SetDefault("auth.token_ttl", "720h")
	v.SetDefault("stripe.base_url", "https://api.stripe.com")
	v.SetDefault("stripe.currency", "usd")
}

func Load(path string) (*Config, error) {
	// .env values never override variables already present in the environment
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefault(v)
	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", v.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host:         v.GetString("rabbitmq_host"),
		Port:         v.GetInt("rabbitmq_port"),
		User:         v.GetString("rabbitmq_user"),
		Pass:         v.GetString("rabbitmq_pass"),
		Kind:         v.GetString("rabbitmq_kind"),
		ExchangeName: v.GetString("rabbitmq_exchange"),
		QueueName:    v.GetString("rabbitmq_queue"),
		RoutingKey:   v.GetString("rabbitmq_routing_key"),
	}

	minioClient, err := minio.New(v.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(v.GetString("minio.access_id"), v.GetString("minio.secret_access_key"), ""),
		Secure: v.GetBool("minio.secure"),
	})
	if err != nil {
		return nil, err
	}

	redisOpts, err := redis.ParseURL(v.GetString("redis.url"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		MinIOBucket: v.GetString("minio.bucket"),
		App: App{
			Environment: v.GetString("app.environment"),
			Host:        v.GetString("app.host"),
			Protocol:    v.GetString("app.protocol"),
		},
		Log: Log{
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
		},
		Server: Server{
			HttpPort:       v.GetString("server.port"),
			Workers:        v.GetInt("server.workers"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
		},
		OpenAI: OpenAI{
			APIKey:             v.GetString("openai.api_key"),
			BaseURL:            v.GetString("openai.base_url"),
			TranscriptionModel: v.GetString("openai.transcription_model"),
			ChatModel:          v.GetString("openai.chat_model"),
		},
		Annotation: Annotation{
			Timeout: v.GetDuration("annotation.timeout"),
			UserId:  v.GetString("annotation.user_id"),
		},
		Auth: Auth{
			AllowedEmail:       v.GetString("auth.allowed_email"),
			Secret:             v.GetString("auth.secret"),
			GoogleClientID:     v.GetString("auth.google_client_id"),
			GoogleClientSecret: v.GetString("auth.google_client_secret"),
			RedirectURL:        v.GetString("auth.redirect_url"),
			TokenTTL:           v.GetDuration("auth.token_ttl"),
		},
		Stripe: Stripe{
			SecretKey:     v.GetString("stripe.secret_key"),
			WebhookSecret: v.GetString("stripe.webhook_secret"),
			BaseURL:       v.GetString("stripe.base_url"),
			Currency:      v.GetString("stripe.currency"),
		},
		DB:      db,
		Queue:   rabbitmq,
		Storage: minioClient,
		Redis:   redis.NewClient(redisOpts),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the plain settings. Client handles are not inspected.
func Validate(cfg *Config) error {
	validate := validator.New()
	for _, s := range []any{cfg.App, cfg.Server, cfg.OpenAI, cfg.Auth, cfg.Stripe} {
		if err := validate.Struct(s); err != nil {
			return err
		}
	}
	return nil
}
