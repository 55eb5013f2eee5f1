package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML duration strings
// such as "5s" or "1m30s".
type Duration time.Duration

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Auth      AuthConfig      `yaml:"auth"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string   `yaml:"port" env:"SERVER_PORT"`
	Interface    string   `yaml:"interface" env:"SERVER_INTERFACE"`
	ReadTimeout  Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host      string   `yaml:"host" env:"REDIS_HOST"`
	Port      string   `yaml:"port" env:"REDIS_PORT"`
	Password  string   `yaml:"password" env:"REDIS_PASSWORD"`
	DB        int      `yaml:"db" env:"REDIS_DB"`
	OpTimeout Duration `yaml:"op_timeout" env:"REDIS_OP_TIMEOUT"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     string `yaml:"port" env:"POSTGRES_PORT"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Database string `yaml:"database" env:"POSTGRES_DATABASE"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSL_MODE"`
}

// ConnectionString returns the PostgreSQL connection string
func (p PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret            string `yaml:"secret" env:"JWT_SECRET"`
	ExpirationSeconds int    `yaml:"expiration_seconds" env:"JWT_EXPIRATION_SECONDS"`
	SigningMethod     string `yaml:"signing_method" env:"JWT_SIGNING_METHOD"`
}

// WebSocketConfig holds WebSocket tuning configuration
type WebSocketConfig struct {
	ReadLimitBytes   int64    `yaml:"read_limit_bytes" env:"WEBSOCKET_READ_LIMIT_BYTES"`
	PongTimeout      Duration `yaml:"pong_timeout" env:"WEBSOCKET_PONG_TIMEOUT"`
	PingInterval     Duration `yaml:"ping_interval" env:"WEBSOCKET_PING_INTERVAL"`
	WriteTimeout     Duration `yaml:"write_timeout" env:"WEBSOCKET_WRITE_TIMEOUT"`
	SendBufferSize   int      `yaml:"send_buffer_size" env:"WEBSOCKET_SEND_BUFFER_SIZE"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	BroadcastChannel string   `yaml:"broadcast_channel" env:"WEBSOCKET_BROADCAST_CHANNEL"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level" env:"LOGGING_LEVEL"`
	IsDev            bool   `yaml:"is_dev" env:"LOGGING_IS_DEV"`
	LogDir           string `yaml:"log_dir" env:"LOGGING_LOG_DIR"`
	MaxAgeDays       int    `yaml:"max_age_days" env:"LOGGING_MAX_AGE_DAYS"`
	MaxSizeMB        int    `yaml:"max_size_mb" env:"LOGGING_MAX_SIZE_MB"`
	MaxBackups       int    `yaml:"max_backups" env:"LOGGING_MAX_BACKUPS"`
	AlsoLogToConsole bool   `yaml:"also_log_to_console" env:"LOGGING_ALSO_LOG_TO_CONSOLE"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load(configFile string) (*Config, error) {
	config := getDefaultConfig()

	// Load from YAML file if provided
	if configFile != "" {
		if err := loadFromYAML(config, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config from YAML: %w", err)
		}
	}

	// Override with environment variables
	if err := overrideWithEnv(config); err != nil {
		return nil, fmt.Errorf("failed to override with environment variables: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// getDefaultConfig returns a configuration with default values
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Interface:    "0.0.0.0",
			ReadTimeout:  Duration(5 * time.Second),
			WriteTimeout: Duration(10 * time.Second),
			IdleTimeout:  Duration(60 * time.Second),
		},
		Redis: RedisConfig{
			Host:      "localhost",
			Port:      "6379",
			Password:  "",
			DB:        0,
			OpTimeout: Duration(3 * time.Second),
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "",
			Database: "tutorhive",
			SSLMode:  "disable",
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				Secret:            "",
				ExpirationSeconds: 3600,
				SigningMethod:     "HS256",
			},
		},
		WebSocket: WebSocketConfig{
			ReadLimitBytes:   16 * 1024,
			PongTimeout:      Duration(60 * time.Second),
			PingInterval:     Duration(30 * time.Second),
			WriteTimeout:     Duration(10 * time.Second),
			SendBufferSize:   256,
			AllowedOrigins:   nil,
			BroadcastChannel: "livehub:broadcast",
		},
		Logging: LoggingConfig{
			Level:            "info",
			IsDev:            false,
			LogDir:           "logs",
			MaxAgeDays:       7,
			MaxSizeMB:        100,
			MaxBackups:       10,
			AlsoLogToConsole: true,
		},
	}
}

// loadFromYAML loads configuration from a YAML file
func loadFromYAML(config *Config, configFile string) error {
	data, err := os.ReadFile(configFile) // #nosec G304 - config path is operator-supplied
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// overrideWithEnv overrides configuration values with environment variables
func overrideWithEnv(config *Config) error {
	return overrideStructWithEnv(reflect.ValueOf(config).Elem())
}

// overrideStructWithEnv recursively overrides struct fields with environment variables
func overrideStructWithEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// Skip unexported fields
		if !field.CanSet() {
			continue
		}

		// Handle nested structs
		if field.Kind() == reflect.Struct {
			if err := overrideStructWithEnv(field); err != nil {
				return err
			}
			continue
		}

		// Get environment variable name from tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldFromString(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// setFieldFromString sets a struct field value from a string based on the field type
func setFieldFromString(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value: %s", value)
		}
		field.SetBool(boolVal)
	case reflect.Int:
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid int value: %s", value)
		}
		field.SetInt(int64(intVal))
	case reflect.Int64:
		// Duration fields accept Go duration strings
		if field.Type() == reflect.TypeOf(Duration(0)) || field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration value: %s", value)
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid int64 value: %s", value)
			}
			field.SetInt(intVal)
		}
	default:
		return fmt.Errorf("unsupported field kind: %s", field.Kind())
	}
	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port == "" {
		problems = append(problems, "server.port must not be empty")
	}
	if c.Auth.JWT.Secret == "" {
		problems = append(problems, "auth.jwt.secret must be set (JWT_SECRET)")
	}
	if c.Auth.JWT.SigningMethod != "HS256" && c.Auth.JWT.SigningMethod != "HS384" && c.Auth.JWT.SigningMethod != "HS512" {
		problems = append(problems, fmt.Sprintf("auth.jwt.signing_method %q is not supported", c.Auth.JWT.SigningMethod))
	}
	if c.Redis.OpTimeout <= 0 {
		problems = append(problems, "redis.op_timeout must be positive")
	}
	if c.WebSocket.SendBufferSize <= 0 {
		problems = append(problems, "websocket.send_buffer_size must be positive")
	}
	if c.WebSocket.BroadcastChannel == "" {
		problems = append(problems, "websocket.broadcast_channel must not be empty")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
