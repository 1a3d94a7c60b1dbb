package server

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"taskflow/internal/domain/errors"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Addr            string
	Port            int
	DBStr           string
	MigratePath     string
	Storage         string
	JWTSecret       string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	RedisAddr       string
	SentryDSN       string
	LogLevel        string
	LogFormat       string
	UploadDir       string
	ShutdownTimeout time.Duration
}

const (
	defaultAddr            = "0.0.0.0"
	defaultPort            = 8080
	defaultDBStr           = "postgresql://taskflow:taskflow@db:5432/taskflow?sslmode=disable"
	defaultMigratePath     = "migrations"
	defaultJWTSecret       = "taskflow-dev-secret"
	defaultAccessTTL       = 15 * time.Minute
	defaultRefreshTTL      = 7 * 24 * time.Hour
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultUploadDir       = "uploads"
	defaultShutdownTimeout = 30 * time.Second
)

func DefaultConfig() *Config {
	return &Config{
		Addr:            defaultAddr,
		Port:            defaultPort,
		DBStr:           defaultDBStr,
		MigratePath:     defaultMigratePath,
		Storage:         StoragePostgres,
		JWTSecret:       defaultJWTSecret,
		AccessTTL:       defaultAccessTTL,
		RefreshTTL:      defaultRefreshTTL,
		LogLevel:        defaultLogLevel,
		LogFormat:       defaultLogFormat,
		UploadDir:       defaultUploadDir,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Addr, strconv.Itoa(c.Port))
}

// fileConfig mirrors Config for JSON and YAML files. Durations are
// strings such as "15m".
type fileConfig struct {
	Addr            *string `json:"addr" yaml:"addr"`
	Port            *int    `json:"port" yaml:"port"`
	DBStr           *string `json:"db_str" yaml:"db_str"`
	MigratePath     *string `json:"migrate_path" yaml:"migrate_path"`
	Storage         *string `json:"storage" yaml:"storage"`
	JWTSecret       *string `json:"jwt_secret" yaml:"jwt_secret"`
	AccessTTL       *string `json:"access_ttl" yaml:"access_ttl"`
	RefreshTTL      *string `json:"refresh_ttl" yaml:"refresh_ttl"`
	RedisAddr       *string `json:"redis_addr" yaml:"redis_addr"`
	SentryDSN       *string `json:"sentry_dsn" yaml:"sentry_dsn"`
	LogLevel        *string `json:"log_level" yaml:"log_level"`
	LogFormat       *string `json:"log_format" yaml:"log_format"`
	UploadDir       *string `json:"upload_dir" yaml:"upload_dir"`
	ShutdownTimeout *string `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type flagValues struct {
	configFile      string
	addr            string
	port            int
	dbStr           string
	migratePath     string
	storage         string
	jwtSecret       string
	accessTTL       time.Duration
	refreshTTL      time.Duration
	redisAddr       string
	sentryDSN       string
	logLevel        string
	logFormat       string
	uploadDir       string
	shutdownTimeout time.Duration
}

func newFlagSet(v *flagValues) *pflag.FlagSet {
	fs := pflag.NewFlagSet("taskflow", pflag.ContinueOnError)
	fs.StringVarP(&v.configFile, "config", "c", "", "path to a JSON or YAML config file")
	fs.StringVar(&v.addr, "addr", defaultAddr, "listen address")
	fs.IntVar(&v.port, "port", defaultPort, "listen port")
	fs.StringVar(&v.dbStr, "dbstr", defaultDBStr, "PostgreSQL connection string")
	fs.StringVar(&v.migratePath, "migratepath", defaultMigratePath, "directory with SQL migrations")
	fs.StringVar(&v.storage, "storage", StoragePostgres, "storage backend: postgres or memory")
	fs.StringVar(&v.jwtSecret, "jwt-secret", "", "secret used to sign tokens")
	fs.DurationVar(&v.accessTTL, "access-ttl", defaultAccessTTL, "access token lifetime")
	fs.DurationVar(&v.refreshTTL, "refresh-ttl", defaultRefreshTTL, "refresh token lifetime")
	fs.StringVar(&v.redisAddr, "redis-addr", "", "Redis address for notification fan-out (disabled when empty)")
	fs.StringVar(&v.sentryDSN, "sentry-dsn", "", "Sentry DSN (disabled when empty)")
	fs.StringVar(&v.logLevel, "log-level", defaultLogLevel, "log level")
	fs.StringVar(&v.logFormat, "log-format", defaultLogFormat, "log format: text or json")
	fs.StringVar(&v.uploadDir, "upload-dir", defaultUploadDir, "directory for task attachments")
	fs.DurationVar(&v.shutdownTimeout, "shutdown-timeout", defaultShutdownTimeout, "graceful shutdown timeout")
	return fs
}

// ReadConfig builds the configuration from defaults, an optional config
// file, the environment (including a .env file) and args, in that order
// of precedence.
func ReadConfig(args []string) (*Config, error) {
	var flags flagValues
	fs := newFlagSet(&flags)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to load .env")
	}

	cfg := DefaultConfig()

	configPath := flags.configFile
	if configPath == "" {
		configPath = os.Getenv("CONFIG")
	}
	if configPath != "" {
		if err := loadConfigFile(cfg, configPath); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	applyFlagOverrides(cfg, fs, &flags)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == defaultJWTSecret {
		log.Warn("using the built-in JWT secret, set JWT_SECRET in production")
	}
	return cfg, nil
}

func loadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w %s: %v", errors.ErrConfigFileReadFailed, path, err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("%w %s: %v", errors.ErrConfigParseFailed, path, err)
	}
	if err := fc.apply(cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	log.WithField("path", path).Info("config file loaded")
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string, key string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("%w %s=%q", errors.ErrConfigInvalidFormat, key, *src)
	}
	*dst = d
	return nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	setString(&cfg.Addr, fc.Addr)
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	setString(&cfg.DBStr, fc.DBStr)
	setString(&cfg.MigratePath, fc.MigratePath)
	setString(&cfg.Storage, fc.Storage)
	setString(&cfg.JWTSecret, fc.JWTSecret)
	setString(&cfg.RedisAddr, fc.RedisAddr)
	setString(&cfg.SentryDSN, fc.SentryDSN)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.UploadDir, fc.UploadDir)
	if err := setDuration(&cfg.AccessTTL, fc.AccessTTL, "access_ttl"); err != nil {
		return err
	}
	if err := setDuration(&cfg.RefreshTTL, fc.RefreshTTL, "refresh_ttl"); err != nil {
		return err
	}
	return setDuration(&cfg.ShutdownTimeout, fc.ShutdownTimeout, "shutdown_timeout")
}

func envDuration(dst *time.Duration, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warnf("%s in %s: %s", errors.ErrConfigInvalidFormat, key, raw)
		return
	}
	*dst = d
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyEnvOverrides(cfg *Config) {
	envString(&cfg.Addr, "ADDR")
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err != nil {
			log.Warnf("%s in PORT: %s", errors.ErrConfigInvalidFormat, port)
		} else if p < 1 || p > 65535 {
			log.Warnf("%s: port must be between 1 and 65535, got %d", errors.ErrConfigInvalidFormat, p)
		} else {
			cfg.Port = p
		}
	}
	envString(&cfg.DBStr, "DB_STR")
	envString(&cfg.MigratePath, "MIGRATE_PATH")
	envString(&cfg.Storage, "STORAGE")
	envString(&cfg.JWTSecret, "JWT_SECRET")
	envDuration(&cfg.AccessTTL, "ACCESS_TTL")
	envDuration(&cfg.RefreshTTL, "REFRESH_TTL")
	envString(&cfg.RedisAddr, "REDIS_ADDR")
	envString(&cfg.SentryDSN, "SENTRY_DSN")
	envString(&cfg.LogLevel, "LOG_LEVEL")
	envString(&cfg.LogFormat, "LOG_FORMAT")
	envString(&cfg.UploadDir, "UPLOAD_DIR")
	envDuration(&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT")

	if cfg.DBStr == defaultDBStr {
		dbUser := os.Getenv("DB_USER")
		dbPassword := os.Getenv("DB_PASSWORD")
		dbName := os.Getenv("DB_NAME")
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		if dbUser != "" && dbPassword != "" && dbName != "" && dbHost != "" && dbPort != "" {
			cfg.DBStr = fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, dbHost, dbPort, dbName)
		}
	}
}

// applyFlagOverrides only copies flags that were set on the command line.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet, v *flagValues) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("addr", func() { cfg.Addr = v.addr })
	set("port", func() { cfg.Port = v.port })
	set("dbstr", func() { cfg.DBStr = v.dbStr })
	set("migratepath", func() { cfg.MigratePath = v.migratePath })
	set("storage", func() { cfg.Storage = v.storage })
	set("jwt-secret", func() { cfg.JWTSecret = v.jwtSecret })
	set("access-ttl", func() { cfg.AccessTTL = v.accessTTL })
	set("refresh-ttl", func() { cfg.RefreshTTL = v.refreshTTL })
	set("redis-addr", func() { cfg.RedisAddr = v.redisAddr })
	set("sentry-dsn", func() { cfg.SentryDSN = v.sentryDSN })
	set("log-level", func() { cfg.LogLevel = v.logLevel })
	set("log-format", func() { cfg.LogFormat = v.logFormat })
	set("upload-dir", func() { cfg.UploadDir = v.uploadDir })
	set("shutdown-timeout", func() { cfg.ShutdownTimeout = v.shutdownTimeout })
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", errors.ErrConfigInvalidFormat, c.Port)
	}
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("%w: storage must be %s or %s, got %q", errors.ErrConfigInvalidFormat, StoragePostgres, StorageMemory, c.Storage)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: jwt secret must not be empty", errors.ErrConfigInvalidFormat)
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("%w: token lifetimes must be positive", errors.ErrConfigInvalidFormat)
	}
	return nil
}
