// config/config.go
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// --- Sections, mirroring config.yaml ---

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type MongoConfig struct {
	URI     string        `mapstructure:"uri"`
	DBName  string        `mapstructure:"dbName"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Issuer     string `mapstructure:"issuer"`
	Expiration string `mapstructure:"expiration"`
}

// TTL parses Expiration as a Go duration.
func (j JWTConfig) TTL() (time.Duration, error) {
	return time.ParseDuration(j.Expiration)
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cacheTTL"`
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type RabbitMQConfig struct {
	URL                string `mapstructure:"url"`
	Exchange           string `mapstructure:"exchange"`
	Queue              string `mapstructure:"queue"`
	DeadLetterExchange string `mapstructure:"deadLetterExchange"`
	DeadLetterQueue    string `mapstructure:"deadLetterQueue"`
	Prefetch           int    `mapstructure:"prefetch"`
}

func (r RabbitMQConfig) Enabled() bool { return r.URL != "" }

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
	Prefix           string `mapstructure:"prefix"`
}

func (s S3Config) Enabled() bool { return s.Bucket != "" }

// MailConfig seeds the email block of the stored settings until an admin edits it.
type MailConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	FromAddress string `mapstructure:"fromAddress"`
	FromName    string `mapstructure:"fromName"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or console
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
	Compress   bool   `mapstructure:"compress"`
}

type SurveyConfig struct {
	BaseURL string `mapstructure:"baseURL"`
}

type RateLimitConfig struct {
	LoginPerMinute int `mapstructure:"loginPerMinute"`
}

type SeedConfig struct {
	AdminEmail    string `mapstructure:"adminEmail"`
	AdminPassword string `mapstructure:"adminPassword"`
	AdminName     string `mapstructure:"adminName"`
}

// --- Root config ---

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	S3        S3Config        `mapstructure:"s3"`
	Mail      MailConfig      `mapstructure:"mail"`
	Log       LogConfig       `mapstructure:"log"`
	Survey    SurveyConfig    `mapstructure:"survey"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
	Seed      SeedConfig      `mapstructure:"seed"`
}

var envBindings = map[string]string{
	"server.port":                 "SERVER_PORT",
	"server.mode":                 "GIN_MODE",
	"server.allowedOrigins":       "SERVER_ALLOWED_ORIGINS",
	"mongo.uri":                   "MONGO_URI",
	"mongo.dbName":                "MONGO_DBNAME",
	"jwt.secret":                  "JWT_SECRET",
	"jwt.issuer":                  "JWT_ISSUER",
	"jwt.expiration":              "JWT_EXPIRATION",
	"redis.addr":                  "REDIS_ADDR",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"rabbitmq.url":                "RABBITMQ_URL",
	"rabbitmq.exchange":           "RABBITMQ_EXCHANGE",
	"rabbitmq.queue":              "RABBITMQ_QUEUE",
	"s3.bucket":                   "S3_BUCKET",
	"s3.region":                   "S3_REGION",
	"s3.accessKeyID":              "S3_ACCESS_KEY_ID",
	"s3.secretAccessKey":          "S3_SECRET_ACCESS_KEY",
	"s3.cloudFrontDomain":         "S3_CLOUDFRONT_DOMAIN",
	"mail.host":                   "SMTP_HOST",
	"mail.port":                   "SMTP_PORT",
	"mail.username":               "SMTP_USERNAME",
	"mail.password":               "SMTP_PASSWORD",
	"mail.fromAddress":            "MAIL_FROM_ADDRESS",
	"mail.fromName":               "MAIL_FROM_NAME",
	"log.level":                   "LOG_LEVEL",
	"log.format":                  "LOG_FORMAT",
	"log.file":                    "LOG_FILE",
	"survey.baseURL":              "SURVEY_BASE_URL",
	"rateLimit.loginPerMinute":    "RATE_LIMIT_LOGIN_PER_MINUTE",
	"seed.adminEmail":             "SEED_ADMIN_EMAIL",
	"seed.adminPassword":          "SEED_ADMIN_PASSWORD",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.dbName", "kol")
	v.SetDefault("mongo.timeout", "10s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "kol-campaign-api")
	v.SetDefault("jwt.expiration", "24h")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cacheTTL", "60s")
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "kol.email")
	v.SetDefault("rabbitmq.queue", "kol.email.jobs")
	v.SetDefault("rabbitmq.deadLetterExchange", "kol.email.dlx")
	v.SetDefault("rabbitmq.deadLetterQueue", "kol.email.dead")
	v.SetDefault("rabbitmq.prefetch", 8)
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.accessKeyID", "")
	v.SetDefault("s3.secretAccessKey", "")
	v.SetDefault("s3.cloudFrontDomain", "")
	v.SetDefault("s3.prefix", "exports")
	v.SetDefault("mail.host", "localhost")
	v.SetDefault("mail.port", 1025)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.fromAddress", "surveys@example.com")
	v.SetDefault("mail.fromName", "KOL Surveys")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSizeMB", 100)
	v.SetDefault("log.maxBackups", 5)
	v.SetDefault("log.maxAgeDays", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("survey.baseURL", "http://localhost:3000/survey")
	v.SetDefault("rateLimit.loginPerMinute", 10)
	v.SetDefault("seed.adminEmail", "superadmin@example.com")
	v.SetDefault("seed.adminPassword", "")
	v.SetDefault("seed.adminName", "Super Admin")
}

// LoadConfig reads config.yaml from path and overrides it with environment variables.
// A missing file is fine: defaults and the environment are used instead.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)
	for key, env := range envBindings {
		if err = v.BindEnv(key, env); err != nil {
			return
		}
	}

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}
	return config, nil
}

// Validate checks the settings the server cannot run without.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret (JWT_SECRET) must be set")
	}
	ttl, err := c.JWT.TTL()
	if err != nil {
		return fmt.Errorf("jwt.expiration: %w", err)
	}
	if ttl <= 0 {
		return errors.New("jwt.expiration must be positive")
	}
	if c.Mongo.URI == "" || c.Mongo.DBName == "" {
		return errors.New("mongo.uri and mongo.dbName must be set")
	}
	return nil
}
