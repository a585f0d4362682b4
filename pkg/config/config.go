package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Documents    DocumentsConfig
	Idempotency  IdempotencyConfig
	Maintenance  MaintenanceConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Documents.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DOMEO_APP_ENV" required:"true"`
	Port         string `envconfig:"DOMEO_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"DOMEO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DOMEO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DOMEO_DB_DSN"`
	Driver string `envconfig:"DOMEO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DOMEO_DB_HOST"`
	LegacyPort     int    `envconfig:"DOMEO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DOMEO_DB_USER"`
	LegacyPassword string `envconfig:"DOMEO_DB_PASSWORD"`
	LegacyName     string `envconfig:"DOMEO_DB_NAME"`
	LegacySSLMode  string `envconfig:"DOMEO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DOMEO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DOMEO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DOMEO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DOMEO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded SQLite one.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

// RedisConfig is optional: with neither URL nor address set the service runs
// without idempotency replay and without the find-or-create lock.
type RedisConfig struct {
	URL          string        `envconfig:"DOMEO_REDIS_URL"`
	Address      string        `envconfig:"DOMEO_REDIS_ADDR"`
	Password     string        `envconfig:"DOMEO_REDIS_PASSWORD"`
	DB           int           `envconfig:"DOMEO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DOMEO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DOMEO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DOMEO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DOMEO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DOMEO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type DocumentsConfig struct {
	FuzzyCandidateLimit  int           `envconfig:"DOMEO_DOCUMENTS_FUZZY_CANDIDATE_LIMIT" default:"10"`
	LockTTL              time.Duration `envconfig:"DOMEO_DOCUMENTS_LOCK_TTL" default:"10s"`
	LockWait             time.Duration `envconfig:"DOMEO_DOCUMENTS_LOCK_WAIT" default:"3s"`
	DefaultDocumentTypes []string      `envconfig:"DOMEO_DOCUMENTS_DEFAULT_TYPES" default:"quote,invoice"`
}

func (d DocumentsConfig) validate() error {
	if d.FuzzyCandidateLimit <= 0 {
		return fmt.Errorf("%s must be positive", EnvDocumentsFuzzyLimit)
	}
	if len(d.DefaultDocumentTypes) == 0 {
		return fmt.Errorf("%s must list at least one document type", EnvDocumentsDefaultTypes)
	}
	return nil
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"DOMEO_IDEMPOTENCY_TTL" default:"24h"`
}

// MaintenanceConfig drives cmd/cron-worker.
type MaintenanceConfig struct {
	Interval                  time.Duration `envconfig:"DOMEO_MAINTENANCE_INTERVAL" default:"6h"`
	LockTTL                   time.Duration `envconfig:"DOMEO_MAINTENANCE_LOCK_TTL" default:"2h"`
	NotificationRetentionDays int           `envconfig:"DOMEO_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DOMEO_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
