package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/circularlabs/rfid-trace/pkg/enums"
)

// EnvPrefix namespaces every environment variable consumed by the service.
const EnvPrefix = "RFIDTRACE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names referenced directly by tests and tooling.
const (
	EnvAppEnv   = "RFIDTRACE_APP_ENV"
	EnvPort     = "RFIDTRACE_APP_PORT"
	EnvDBDSN    = "RFIDTRACE_DB_DSN"
	EnvDBHost   = "RFIDTRACE_DB_HOST"
	EnvDBUser   = "RFIDTRACE_DB_USER"
	EnvDBName   = "RFIDTRACE_DB_NAME"
	EnvRedisURL = "RFIDTRACE_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	Scan  ScanConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Scan.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RFIDTRACE_APP_ENV" required:"true"`
	Port         string `envconfig:"RFIDTRACE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RFIDTRACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RFIDTRACE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"RFIDTRACE_AUTO_MIGRATE" default:"false"`
	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `envconfig:"RFIDTRACE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "prod")
}

type DBConfig struct {
	DSN    string `envconfig:"RFIDTRACE_DB_DSN"`
	Driver string `envconfig:"RFIDTRACE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RFIDTRACE_DB_HOST"`
	LegacyPort     int    `envconfig:"RFIDTRACE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RFIDTRACE_DB_USER"`
	LegacyPassword string `envconfig:"RFIDTRACE_DB_PASSWORD"`
	LegacyName     string `envconfig:"RFIDTRACE_DB_NAME"`
	LegacySSLMode  string `envconfig:"RFIDTRACE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RFIDTRACE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RFIDTRACE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RFIDTRACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RFIDTRACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RFIDTRACE_REDIS_URL"`
	Address      string        `envconfig:"RFIDTRACE_REDIS_ADDR"`
	Password     string        `envconfig:"RFIDTRACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"RFIDTRACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RFIDTRACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RFIDTRACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RFIDTRACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RFIDTRACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RFIDTRACE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis connection is configured at all. The lock
// backend falls back to in-process locking when it is not.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// ScanConfig tunes the scan-event reconciliation pipeline.
type ScanConfig struct {
	// CorrectionWindow bounds how long after an aggregate snapshot a
	// duplicate submission is treated as a correction instead of dropped.
	CorrectionWindow time.Duration `envconfig:"RFIDTRACE_SCAN_CORRECTION_WINDOW" default:"12h"`
	// PartitionThreshold is the batch size above which events are fanned out.
	PartitionThreshold int `envconfig:"RFIDTRACE_SCAN_PARTITION_THRESHOLD" default:"50"`
	// PartitionFanout is the number of parallel partitions for large batches.
	PartitionFanout int `envconfig:"RFIDTRACE_SCAN_PARTITION_FANOUT" default:"5"`
	// DeviceMarker is the accepted device-class marker scans must carry.
	DeviceMarker string `envconfig:"RFIDTRACE_SCAN_DEVICE_MARKER" default:"CIRCULAR"`
	// DiscardPolicy selects supplier_pool or per_client discard accounting.
	DiscardPolicy string `envconfig:"RFIDTRACE_SCAN_DISCARD_POLICY" default:"supplier_pool"`
	// LockBackend selects local or redis per-key reconciliation locks.
	LockBackend string `envconfig:"RFIDTRACE_SCAN_LOCK_BACKEND" default:"local"`
	// LockTTL bounds how long a redis reconciliation lock may be held.
	LockTTL time.Duration `envconfig:"RFIDTRACE_SCAN_LOCK_TTL" default:"30s"`
}

// Validate checks the scan pipeline settings. Load runs it once; services
// built from a hand-assembled config run it again.
func (s ScanConfig) Validate() error {
	if s.PartitionThreshold <= 0 {
		return fmt.Errorf("scan partition threshold must be positive")
	}
	if s.PartitionFanout <= 0 {
		return fmt.Errorf("scan partition fanout must be positive")
	}
	if s.DeviceMarker == "" {
		return fmt.Errorf("scan device marker is required")
	}
	if _, err := enums.ParseDiscardPolicy(s.DiscardPolicy); err != nil {
		return err
	}
	switch s.LockBackend {
	case "local", "redis":
	default:
		return fmt.Errorf("invalid lock backend %q", s.LockBackend)
	}
	return nil
}

// DiscardPolicyValue returns the typed discard policy; validate has already
// run by the time anyone calls this.
func (s ScanConfig) DiscardPolicyValue() enums.DiscardPolicy {
	policy, err := enums.ParseDiscardPolicy(s.DiscardPolicy)
	if err != nil {
		return enums.DiscardPolicySupplierPool
	}
	return policy
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
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
