// Package config loads sqltree's settings from a TOML file, a .env file and
// SQLTREE_* environment variables, in increasing order of precedence.
//
//	[service]
//	base_url = "http://localhost:8080/api"
//
//	[store]
//	backend = "sqlite"   # file, memory, sqlite, redis or mongo
//
//	[cache]
//	backend = "file"     # file, memory, redis or none
//
//	[layout]
//	hgap = 80
//	vgap = 120
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/sqltree/pkg/derivation"
	"github.com/matzehuels/sqltree/pkg/errors"
	"github.com/matzehuels/sqltree/pkg/integrations/converter"
)

// AppName names the config and cache directories.
const AppName = "sqltree"

// Backend names.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendNone   = "none"
)

var (
	storeBackends = []string{BackendFile, BackendMemory, BackendSQLite, BackendRedis, BackendMongo}
	cacheBackends = []string{BackendFile, BackendMemory, BackendRedis, BackendNone}
)

// Environment variables overriding the file.
const (
	EnvBaseURL   = "SQLTREE_BASE_URL"
	EnvStore     = "SQLTREE_STORE"
	EnvCache     = "SQLTREE_CACHE"
	EnvRedisAddr = "SQLTREE_REDIS_ADDR"
	EnvMongoURI  = "SQLTREE_MONGO_URI"
	EnvAddr      = "SQLTREE_ADDR"
)

// Config holds all settings.
type Config struct {
	Service ServiceConfig      `toml:"service"`
	Store   StoreConfig        `toml:"store"`
	Cache   CacheConfig        `toml:"cache"`
	Redis   RedisConfig        `toml:"redis"`
	Mongo   MongoConfig        `toml:"mongo"`
	Layout  derivation.Options `toml:"layout"`
	Server  ServerConfig       `toml:"server"`
}

// ServiceConfig locates the conversion service.
type ServiceConfig struct {
	BaseURL string `toml:"base_url"`
}

// StoreConfig selects where the schema history lives.
type StoreConfig struct {
	Backend string `toml:"backend"`
	// Path is the SQLite database file.
	Path string `toml:"path"`
	// Key is the document key inside the backend.
	Key string `toml:"key"`
}

// CacheConfig selects the conversion and render cache.
type CacheConfig struct {
	Backend  string `toml:"backend"`
	Dir      string `toml:"dir"`
	TTLHours int    `toml:"ttl_hours"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// RedisConfig is shared by the redis cache and store backends.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// MongoConfig configures the mongo store backend.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{BaseURL: converter.DefaultBaseURL},
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    filepath.Join(dataDir(), "history.db"),
		},
		Cache: CacheConfig{
			Backend:  BackendFile,
			Dir:      CacheDir(),
			TTLHours: 7 * 24,
		},
		Redis: RedisConfig{Addr: "localhost:6379", Prefix: AppName + ":"},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   AppName,
			Collection: "history",
		},
		Layout: derivation.Options{}.WithDefaults(),
		Server: ServerConfig{Addr: ":8090"},
	}
}

// Dir returns the configuration directory: $XDG_CONFIG_HOME/sqltree or the
// platform equivalent.
func Dir() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, AppName)
	}
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}

// DefaultPath is the config file read when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// CacheDir returns $XDG_CACHE_HOME/sqltree or the platform equivalent.
func CacheDir() string {
	if base := os.Getenv("XDG_CACHE_HOME"); base != "" {
		return filepath.Join(base, AppName)
	}
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, AppName)
	}
	return filepath.Join(os.TempDir(), AppName, "cache")
}

func dataDir() string {
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return filepath.Join(base, AppName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", AppName)
	}
	return filepath.Join(os.TempDir(), AppName, "data")
}

// Load reads the TOML file at path (DefaultPath when empty) over the
// defaults, then applies the environment. A missing file is not an error.
// A .env file in the working directory is loaded into the environment
// first, never overriding variables that are already set.
func Load(path string) (*Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Layout = cfg.Layout.WithDefaults()
	return cfg, cfg.Validate()
}

// LoadEnvFile loads path into the environment if it exists.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from SQLTREE_* variables.
func (c *Config) ApplyEnv() error {
	setFromEnv(&c.Service.BaseURL, EnvBaseURL)
	setFromEnv(&c.Store.Backend, EnvStore)
	setFromEnv(&c.Cache.Backend, EnvCache)
	setFromEnv(&c.Redis.Addr, EnvRedisAddr)
	setFromEnv(&c.Mongo.URI, EnvMongoURI)
	setFromEnv(&c.Server.Addr, EnvAddr)
	if v := os.Getenv("SQLTREE_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return errors.New(errors.ErrCodeInvalidInput, "SQLTREE_REDIS_DB must be a number, got %q", v)
		}
		c.Redis.DB = db
	}
	return nil
}

func setFromEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate checks backend names and required fields.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(storeBackends, c.Store.Backend) {
		errs = append(errs, errors.New(errors.ErrCodeInvalidInput, "unknown store backend %q", c.Store.Backend))
	}
	if !slices.Contains(cacheBackends, c.Cache.Backend) {
		errs = append(errs, errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q", c.Cache.Backend))
	}
	if c.Store.Backend == BackendSQLite && c.Store.Path == "" {
		errs = append(errs, errors.New(errors.ErrCodeInvalidInput, "store.path is required for the sqlite store"))
	}
	if c.Store.Backend == BackendMongo && c.Mongo.URI == "" {
		errs = append(errs, errors.New(errors.ErrCodeInvalidInput, "mongo.uri is required for the mongo store"))
	}
	if (c.Store.Backend == BackendRedis || c.Cache.Backend == BackendRedis) && c.Redis.Addr == "" {
		errs = append(errs, errors.New(errors.ErrCodeInvalidInput, "redis.addr is required for redis backends"))
	}
	if c.Service.BaseURL != "" {
		if err := errors.ValidateURL(c.Service.BaseURL); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Cache.TTLHours < 0 {
		errs = append(errs, errors.New(errors.ErrCodeInvalidInput, "cache.ttl_hours must not be negative"))
	}
	return errors.Join(errs...)
}

// Save writes c as TOML to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
