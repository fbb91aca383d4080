// Package config reads config required for the entire application
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	EnvLive        = "live"
	EnvDevelopment = "development"
	EnvCI          = "ci"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongoDB  = "mongodb"
)

/*
Config holds all the configurations required for the application to function.
Most drivers like Postgres, MongoDB etc. have optional "client name" field. Make use of the
`cfg.AppFullname()` to set these. It helps us easily identify which version of the app is
communicating with the respective dependency. Especially when we have multiple versions of
deployed, connected to the same dependencies. It would also help us forcefully remove connections
from dependencies if required.
*/
type Config struct {
	AppName      string `json:"appName,omitempty" env:"APP_NAME" envDefault:"item-service"`
	Version      string `json:"version,omitempty" env:"APP_VERSION" envDefault:"v0.0.0"`
	AppBuildDate string `json:"appBuild,omitempty" env:"APP_BUILT_AT" envDefault:"0000-00-00"`
	Environment  string `json:"environment,omitempty" env:"ENVIRONMENT" envDefault:""`
	// LogLevel is refreshable at runtime, see Watch
	LogLevel string `json:"logLevel,omitempty" mapstructure:"log-level" env:"LOG_LEVEL" envDefault:"info"`

	// ItemService is refreshable at runtime, see Watch
	ItemService struct {
		Factor float64 `json:"factor" mapstructure:"factor" env:"ITEM_SERVICE_FACTOR" envDefault:"1"`
	} `json:"itemService" mapstructure:"item-service"`

	HTTP struct {
		Host              string        `json:"host,omitempty" env:"APP_HTTP_HOST" envDefault:""`
		Port              int           `json:"port,omitempty" env:"APP_HTTP_PORT" envDefault:"5001"`
		ReadHeaderTimeout time.Duration `json:"readHeaderTimeout,omitempty" env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
		ReadTimeout       time.Duration `json:"readTimeout,omitempty" env:"HTTP_READ_TIMEOUT" envDefault:"60s"`
		WriteTimeout      time.Duration `json:"writeTimeout,omitempty" env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
		IdleTimeout       time.Duration `json:"idleTimeout,omitempty" env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
		EnableAccesslog   bool
	} `json:"http,omitempty"`
	GRPC struct {
		Host            string        `json:"grpcHost,omitempty" env:"APP_GRPC_HOST" envDefault:""`
		Port            int           `json:"grpcPort,omitempty" env:"APP_GRPC_PORT" envDefault:"5002"`
		ConnTimeout     time.Duration `json:"grpcTimeout,omitempty" env:"APP_GRPC_TIMEOUT" envDefault:"15s"`
		EnableAccesslog bool
	}

	Store struct {
		// Driver should be one of "postgres", "mongodb"
		Driver      string        `json:"driver,omitempty" env:"STORE_DRIVER" envDefault:"postgres"`
		PingTimeout time.Duration `json:"pingTimeout,omitempty" env:"STORE_PING_TIMEOUT" envDefault:"3s"`
	} `json:"store,omitempty"`

	Postgres struct {
		Host            string        `json:"host,omitempty" env:"POSTGRES_HOST" envDefault:"localhost"`
		Port            int           `json:"port,omitempty" env:"POSTGRES_PORT" envDefault:"5432"`
		Database        string        `json:"database,omitempty" env:"POSTGRES_DATABASE" envDefault:"restaurant"`
		Username        string        `json:"username,omitempty" env:"POSTGRES_USERNAME" envDefault:"postgres"`
		Password        string        `json:"password,omitempty" env:"POSTGRES_PASSWORD"`
		SSLMode         string        `json:"sslMode,omitempty" env:"POSTGRES_SSLMODE" envDefault:"disable"`
		MaxConns        int32         `json:"maxConns,omitempty" env:"POSTGRES_MAX_CONNS" envDefault:"25"`
		MinConns        int32         `json:"minConns,omitempty" env:"POSTGRES_MIN_CONNS" envDefault:"5"`
		MaxConnLifetime time.Duration `json:"maxConnLifetime,omitempty" env:"POSTGRES_MAX_CONN_LIFETIME" envDefault:"1h"`
		MaxConnIdleTime time.Duration `json:"maxConnIdleTime,omitempty" env:"POSTGRES_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	} `json:"postgres,omitempty"`

	MongoDB struct {
		Hosts     []string `json:"hosts,omitempty" env:"MONGODB_HOSTS" envDefault:"localhost"`
		Database  string   `json:"database,omitempty" env:"MONGODB_DATABASE" envDefault:"restaurant"`
		Namespace string   `json:"namespace,omitempty" env:"MONGODB_NAMESPACE"`
		Username  string   `json:"username,omitempty" env:"MONGODB_USERNAME"`
		Password  string   `json:"password,omitempty" env:"MONGODB_PASSWORD"`
		// AuthMechanism for MongoDB should be one of "SCRAM-SHA-256", "SCRAM-SHA-1", "MONGODB-CR", "PLAIN", "GSSAPI", "MONGODB-X509",
		AuthMechanism   string        `json:"authMechanism,omitempty" env:"MONGODB_AUTH_MECHANISM" envDefault:"SCRAM-SHA-1"`
		AuthDatabase    string        `json:"authDatabase,omitempty" env:"MONGODB_AUTH_DATABASE"`
		MaxConnIdleTime time.Duration `json:"maxIdleTimeout,omitempty" env:"MONGODB_IDLE_TIMEOUT" envDefault:"4m"`
	} `json:"mongoDB,omitempty"`

	Kafka struct {
		Enabled  bool `json:"enabled" env:"KAFKA_ENABLED" envDefault:"true"`
		LogLevel int8 `json:"logLevel,omitempty" env:"KAFKA_LOG_LEVEL" envDefault:"1"` // loglevel 1 is >= error

		Seeds         []string `json:"seeds,omitempty" env:"KAFKA_SEEDS" envDefault:"localhost:9092"`
		Topics        []string `json:"topics,omitempty" env:"KAFKA_TOPICS" envDefault:"item-service.refresh"`
		ConsumerGroup string   `json:"consumerGroup,omitempty" env:"KAFKA_CONSUMERGROUP" envDefault:""`

		IdleTimeout            time.Duration `json:"idleTimeout,omitempty" env:"KAFKA_IDLETIMEOUT" envDefault:"3s"`
		RequestTimeoutOverhead time.Duration `json:"requestTimeoutOverhead,omitempty" env:"KAFKA_REQTIMEOUT" envDefault:"3s"`
		RetryTimeout           time.Duration `json:"retryTimeout,omitempty" env:"KAFKA_RETTIMEOUT" envDefault:"3s"`
		SessionTimeout         time.Duration `json:"sessionTimeout,omitempty" env:"KAFKA_SESSTIMEOUT" envDefault:"60s"`
		CommitTimeout          time.Duration `json:"CommitTimeout,omitempty" env:"KAFKA_COMMTIMEOUT" envDefault:"5s"`

		AuthMechanism string `json:"authMechanism,omitempty" env:"KAFKA_AUTH_MECHANISM" envDefault:""`
		SASLUsername  string `json:"saslUsername,omitempty" env:"KAFKA_SASL_USERNAME" envDefault:""`
		SASLPassword  string `json:"saslPassword,omitempty" env:"KAFKA_SASL_PASSWORD" envDefault:""`
		CACertificate string `json:"caCertificate,omitempty" env:"KAFKA_CA_CERT" envDefault:""`

		FetchMaxBytes int32 `json:"fetchMaxBytes,omitempty" env:"KAFKA_FETCH_MAXBYTES" envDefault:"1048576"` // 1MiB

		EnableTLSDialer bool `json:"enableTLSDialer,omitempty" env:"KAFKA_ENABLE_TLSDIALER" envDefault:"false"`
	}
	APM struct {
		Debug              bool    `json:"debug" env:"TRACES_DEBUG"`
		TracesSampleRate   float64 `json:"tracesSampleRate" env:"TRACES_SAMPLE_RATE"`
		TracesCollectorURL string  `json:"collectorUrl" env:"TRACES_COLLECTOR_URL"`
		MetricScrapePort   uint16  `json:"metricScrapePort" env:"METRIC_SCRAPE_PORT" envDefault:"2223"`
	} `json:"apm"`

	source *viper.Viper
}

func (cfg *Config) AppFullname() string {
	return fmt.Sprintf("%s%s", cfg.AppName, cfg.Version)
}

// PostgresDSN returns the connection string for the configured PostgreSQL server.
func (cfg *Config) PostgresDSN() string {
	pg := cfg.Postgres
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&application_name=%s",
		pg.Username,
		pg.Password,
		pg.Host,
		pg.Port,
		pg.Database,
		pg.SSLMode,
		cfg.AppFullname(),
	)
}

// FileInUse reports the config file that was read, an empty string means env only.
func (cfg *Config) FileInUse() string {
	if cfg.source == nil {
		return ""
	}
	return cfg.source.ConfigFileUsed()
}

// Watch calls onChange with a freshly read Config every time the config file changes.
// It is a noop when no config file was found at Load.
func (cfg *Config) Watch(onChange func(updated *Config, err error)) {
	if cfg.FileInUse() == "" {
		return
	}

	vpr := cfg.source
	vpr.OnConfigChange(func(_ fsnotify.Event) {
		updated, err := unmarshal(vpr)
		onChange(updated, err)
	})
	vpr.WatchConfig()
}

// Load reads defaults and environment variables, then the optional YAML file `fileName`
// under `path`. Keys present in the file can still be overridden by their environment
// variable, e.g. `item-service.factor` by ITEM_SERVICE_FACTOR.
func Load(path, fileName string) (*Config, error) {
	vpr := viper.New()
	vpr.AddConfigPath(path)
	vpr.SetConfigName(fileName)
	vpr.SetConfigType("yaml")
	vpr.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vpr.AutomaticEnv()

	err := vpr.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed reading config file: %w", err)
		}
		vpr = nil
	}

	return unmarshal(vpr)
}

func unmarshal(vpr *viper.Viper) (*Config, error) {
	configs := &Config{source: vpr}
	err := env.Parse(configs)
	if err != nil {
		return nil, fmt.Errorf("failed parsing env config: %w", err)
	}

	if vpr == nil {
		return configs, nil
	}

	err = vpr.Unmarshal(configs)
	if err != nil {
		return nil, fmt.Errorf("failed unmarshaling config file: %w", err)
	}

	return configs, nil
}
