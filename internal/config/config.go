// Package config provides Viper-based configuration loading for the lobby server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backend names.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// StorageConfig selects the persistence backend for each store.
type StorageConfig struct {
	// Players is the player store backend: "memory" or "postgres".
	Players string `mapstructure:"players"`
	// Rooms is the room store backend: "memory", "postgres", or "redis".
	Rooms string `mapstructure:"rooms"`
	// SeedFile optionally preloads the memory player store from YAML.
	SeedFile string `mapstructure:"seed_file"`
}

// UsesPostgres reports whether any store is backed by PostgreSQL.
func (s StorageConfig) UsesPostgres() bool {
	return s.Players == BackendPostgres || s.Rooms == BackendPostgres
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds settings for the Redis room store.
type RedisConfig struct {
	// URL is a redis:// connection URL.
	URL          string `mapstructure:"url"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	// RoomTTL bounds how long an untouched room survives.
	RoomTTL time.Duration `mapstructure:"room_ttl"`
}

// TCPConfig holds settings for the framed TCP acceptor.
type TCPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// ReadTimeout is the per-frame read timeout; zero disables it.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-frame write timeout; zero disables it.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxFrameSize is the largest accepted inbound frame in bytes.
	MaxFrameSize int `mapstructure:"max_frame_size"`
	// OutboxSize is the number of outbound frames queued per connection.
	OutboxSize int `mapstructure:"outbox_size"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (t TCPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// WebSocketConfig holds settings for the optional WebSocket acceptor.
type WebSocketConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Addr returns the "host:port" listen address.
func (w WebSocketConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// AdminConfig holds settings for the gRPC health endpoint.
type AdminConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
	// HealthInterval is how often readiness checks run.
	HealthInterval time.Duration `mapstructure:"health_interval"`
	// HealthTimeout bounds each storage ping.
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
}

// Addr returns the "host:port" gRPC address.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.GRPCHost, a.GRPCPort)
}

// LobbyConfig holds gameplay settings.
type LobbyConfig struct {
	RoomCodeLength   int    `mapstructure:"room_code_length"`
	RoomCodeAlphabet string `mapstructure:"room_code_alphabet"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	TCP       TCPConfig       `mapstructure:"tcp"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Lobby     LobbyConfig     `mapstructure:"lobby"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants. Database and Redis settings
// are only checked when a store uses them.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	add(validateStorage(c.Storage))
	if c.Storage.UsesPostgres() {
		add(validateDatabase(c.Database))
	}
	if c.Storage.Rooms == BackendRedis {
		add(validateRedis(c.Redis))
	}
	add(validateTCP(c.TCP))
	if c.WebSocket.Enabled {
		add(validateWebSocket(c.WebSocket))
	}
	if c.Admin.Enabled {
		add(validateAdmin(c.Admin))
	}
	add(validateLobby(c.Lobby))
	add(validateLogging(c.Logging))

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	var errs []string
	if s.Players != BackendMemory && s.Players != BackendPostgres {
		errs = append(errs, fmt.Sprintf("storage.players must be one of [memory, postgres], got %q", s.Players))
	}
	switch s.Rooms {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		errs = append(errs, fmt.Sprintf("storage.rooms must be one of [memory, postgres, redis], got %q", s.Rooms))
	}
	if s.SeedFile != "" && s.Players != BackendMemory {
		errs = append(errs, "storage.seed_file requires storage.players = memory")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateRedis(r RedisConfig) error {
	var errs []string
	if !strings.HasPrefix(r.URL, "redis://") && !strings.HasPrefix(r.URL, "rediss://") {
		errs = append(errs, fmt.Sprintf("redis.url must start with redis:// or rediss://, got %q", r.URL))
	}
	if r.PoolSize < 0 {
		errs = append(errs, fmt.Sprintf("redis.pool_size must be >= 0, got %d", r.PoolSize))
	}
	if r.MinIdleConns < 0 {
		errs = append(errs, fmt.Sprintf("redis.min_idle_conns must be >= 0, got %d", r.MinIdleConns))
	}
	if r.RoomTTL < 0 {
		errs = append(errs, "redis.room_ttl must not be negative")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateTCP(t TCPConfig) error {
	var errs []string
	if t.Port < 0 || t.Port > 65535 {
		errs = append(errs, fmt.Sprintf("tcp.port must be 0-65535, got %d", t.Port))
	}
	if t.ReadTimeout < 0 {
		errs = append(errs, "tcp.read_timeout must not be negative")
	}
	if t.WriteTimeout < 0 {
		errs = append(errs, "tcp.write_timeout must not be negative")
	}
	if t.MaxFrameSize < 1 {
		errs = append(errs, fmt.Sprintf("tcp.max_frame_size must be >= 1, got %d", t.MaxFrameSize))
	}
	if t.OutboxSize < 1 {
		errs = append(errs, fmt.Sprintf("tcp.outbox_size must be >= 1, got %d", t.OutboxSize))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateWebSocket(w WebSocketConfig) error {
	var errs []string
	if w.Port < 0 || w.Port > 65535 {
		errs = append(errs, fmt.Sprintf("websocket.port must be 0-65535, got %d", w.Port))
	}
	if !strings.HasPrefix(w.Path, "/") {
		errs = append(errs, fmt.Sprintf("websocket.path must start with /, got %q", w.Path))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateAdmin(a AdminConfig) error {
	var errs []string
	if a.GRPCHost == "" {
		errs = append(errs, "admin.grpc_host must not be empty")
	}
	if a.GRPCPort < 0 || a.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("admin.grpc_port must be 0-65535, got %d", a.GRPCPort))
	}
	if a.HealthInterval <= 0 {
		errs = append(errs, fmt.Sprintf("admin.health_interval must be positive, got %s", a.HealthInterval))
	}
	if a.HealthTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("admin.health_timeout must be positive, got %s", a.HealthTimeout))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLobby(l LobbyConfig) error {
	var errs []string
	if l.RoomCodeLength < 1 {
		errs = append(errs, fmt.Sprintf("lobby.room_code_length must be >= 1, got %d", l.RoomCodeLength))
	}
	if len(l.RoomCodeAlphabet) < 2 {
		errs = append(errs, "lobby.room_code_alphabet must contain at least 2 characters")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and LOBBY_ environment
// overrides installed but no config file.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("LOBBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.players", BackendMemory)
	v.SetDefault("storage.rooms", BackendMemory)
	v.SetDefault("storage.seed_file", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "lobby")
	v.SetDefault("database.password", "lobby")
	v.SetDefault("database.name", "lobby")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.room_ttl", "2h")

	v.SetDefault("tcp.host", "0.0.0.0")
	v.SetDefault("tcp.port", 9000)
	v.SetDefault("tcp.read_timeout", "0s")
	v.SetDefault("tcp.write_timeout", "10s")
	v.SetDefault("tcp.max_frame_size", 64<<10)
	v.SetDefault("tcp.outbox_size", 64)

	v.SetDefault("websocket.enabled", false)
	v.SetDefault("websocket.host", "0.0.0.0")
	v.SetDefault("websocket.port", 9001)
	v.SetDefault("websocket.path", "/ws")

	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.grpc_host", "127.0.0.1")
	v.SetDefault("admin.grpc_port", 9090)
	v.SetDefault("admin.health_interval", "2s")
	v.SetDefault("admin.health_timeout", "1s")

	v.SetDefault("lobby.room_code_length", 6)
	v.SetDefault("lobby.room_code_alphabet", "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
