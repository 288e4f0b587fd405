package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/greatvovan/bacon-number/internal/util"

	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration, read from the environment (and a
// .env file, if present).
type Config struct {
	Debug   bool   `envconfig:"DEBUG" default:"false"`
	LogJSON bool   `envconfig:"LOG_JSON" default:"false"`
	Port    string `envconfig:"PORT" default:"8080"`

	// DBDSN may reference other variables, e.g. postgres://$DB_HOST:$DB_PORT/$DB_NAME.
	DBDSN        string `envconfig:"DB_DSN" default:"postgres://$DB_HOST:$DB_PORT/$DB_NAME"`
	DBUser       string `envconfig:"DB_USER"`
	DBPassword   string `envconfig:"DB_PASSWORD"`
	DBMaxRetries int    `envconfig:"DB_MAX_RETRIES" default:"3"`
	DBMigrate    bool   `envconfig:"DB_MIGRATE" default:"false"`

	DirectoryMode string `envconfig:"DIRECTORY_MODE" default:"cached"`
	ActorsTable   string `envconfig:"ACTORS_TABLE" default:"actors"`
	PeersTable    string `envconfig:"PEERS_TABLE" default:"peers"`

	BaconName          string        `envconfig:"BACON_NAME" default:"Kevin Bacon"`
	StartupEstimate    time.Duration `envconfig:"STARTUP_ESTIMATE" default:"60s"`
	MinRetryAfter      time.Duration `envconfig:"MIN_RETRY_AFTER" default:"5s"`
	SchemaPollInterval time.Duration `envconfig:"SCHEMA_POLL_INTERVAL" default:"5s"`

	SnapshotBackend string        `envconfig:"SNAPSHOT_BACKEND" default:"file"`
	GraphCachePath  string        `envconfig:"GRAPH_CACHE_PATH" default:"graph.bin"`
	SnapshotKey     string        `envconfig:"SNAPSHOT_KEY" default:"snapshots/graph.bin"`
	SnapshotLock    bool          `envconfig:"SNAPSHOT_LOCK" default:"false"`
	SnapshotLockTTL time.Duration `envconfig:"SNAPSHOT_LOCK_TTL" default:"5m"`

	AWSRegion    string `envconfig:"AWS_REGION"`
	AWSEndpoint  string `envconfig:"AWS_ENDPOINT"`
	AWSAccessKey string `envconfig:"AWS_ACCESS_KEY"`
	AWSSecretKey string `envconfig:"AWS_SECRET_KEY"`
	AWSBucket    string `envconfig:"AWS_BUCKET"`

	RabbitMQUser     string `envconfig:"RABBITMQ_USER"`
	RabbitMQPassword string `envconfig:"RABBITMQ_PASSWORD"`
	RabbitMQHost     string `envconfig:"RABBITMQ_HOST"`
	RabbitMQPort     string `envconfig:"RABBITMQ_PORT" default:"5672"`

	AuthURL        string `envconfig:"AUTH_URL"`
	MasterAPIKey   string `envconfig:"MASTER_API_KEY"`
	MasterUserID   int64  `envconfig:"MASTER_USER_ID"`
	MasterUserRole string `envconfig:"MASTER_USER_ROLE" default:"admin"`
}

const (
	DirectoryCached = "cached"
	DirectoryOnline = "online"

	SnapshotFile = "file"
	SnapshotS3   = "s3"
	SnapshotNone = "none"
)

// Load reads .env, then the environment, and validates the result.
func Load() (*Config, error) {
	util.LoadEnv()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg.DBDSN = os.ExpandEnv(cfg.DBDSN)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the option combinations that environment parsing alone
// cannot.
func (c *Config) Validate() error {
	switch c.DirectoryMode {
	case DirectoryCached, DirectoryOnline:
	default:
		return fmt.Errorf("invalid DIRECTORY_MODE %q", c.DirectoryMode)
	}

	switch c.SnapshotBackend {
	case SnapshotFile:
		if c.GraphCachePath == "" {
			return fmt.Errorf("GRAPH_CACHE_PATH is required for the file snapshot backend")
		}
	case SnapshotS3:
		if c.AWSBucket == "" {
			return fmt.Errorf("AWS_BUCKET is required for the s3 snapshot backend")
		}
	case SnapshotNone:
	default:
		return fmt.Errorf("invalid SNAPSHOT_BACKEND %q", c.SnapshotBackend)
	}

	if c.BaconName == "" {
		return fmt.Errorf("BACON_NAME must not be empty")
	}
	if c.MinRetryAfter <= 0 {
		return fmt.Errorf("MIN_RETRY_AFTER must be positive")
	}
	return nil
}

// QueueEnabled reports whether a RabbitMQ broker is configured.
func (c *Config) QueueEnabled() bool {
	return c.RabbitMQHost != ""
}

// AuthEnabled reports whether the rebuild endpoint requires credentials.
func (c *Config) AuthEnabled() bool {
	return c.AuthURL != "" || c.MasterAPIKey != ""
}

// DatabaseURL returns DBDSN with DB_USER and DB_PASSWORD filled in, unless
// the DSN already carries credentials.
func (c *Config) DatabaseURL() string {
	u, err := url.Parse(c.DBDSN)
	if err != nil || c.DBUser == "" || u.User != nil {
		return c.DBDSN
	}
	if c.DBPassword != "" {
		u.User = url.UserPassword(c.DBUser, c.DBPassword)
	} else {
		u.User = url.User(c.DBUser)
	}
	return u.String()
}
