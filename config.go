package indexpool

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kbforge/indexpool/internal/fault"
	"github.com/kbforge/indexpool/internal/schedule"
)

// Config holds everything the service needs to run. Zero values for the
// tunables are filled with the Default* constants by New; the connection
// settings (DatabaseURI, Region, bucket, queue) have no defaults and must
// be provided, either directly or via ConfigFromEnv.
type Config struct {
	// DatabaseURI is the Postgres connection string.
	DatabaseURI string

	// Region is the AWS region for the vector bucket and the queue.
	Region string

	// VectorBucketARN is the vector bucket new indexes are created in.
	VectorBucketARN string

	// VectorBucketName is the bucket's name, used by list operations.
	VectorBucketName string

	// QueueURL is the ingestion queue messages are sent to.
	QueueURL string

	// MinPool is the AVAILABLE + fresh-PROVISIONING floor.
	MinPool int

	// MaxProvisioners caps concurrent remote create/delete calls.
	MaxProvisioners int

	// StuckThreshold ages PROVISIONING rows out of pool capacity and
	// into the cleanup sweep.
	StuckThreshold time.Duration

	// ReconcileInterval is the periodic reconcile wake.
	ReconcileInterval time.Duration

	// CleanupAt is the daily sweep time, "HH:MM" in the local zone.
	CleanupAt string

	// EmbeddingDimension is the vector dimension of new indexes.
	EmbeddingDimension int32

	// NonFilterableMetadataKeys are passed through to index creation.
	NonFilterableMetadataKeys []string

	// Registerer receives the pool metrics. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// Environment variable names read by ConfigFromEnv.
const (
	EnvDatabaseURI        = "DATABASE_URI"
	EnvRegion             = "AWS_REGION"
	EnvVectorBucketARN    = "AWS_VECTOR_BUCKET_ARN"
	EnvVectorBucketName   = "AWS_VECTOR_BUCKET_NAME"
	EnvQueueURL           = "AWS_QUEUE_URL"
	EnvMinPool            = "MIN_INDEX_POOL"
	EnvMaxProvisioners    = "MAX_INDEX_PROVISIONER"
	EnvStuckThreshold     = "TIME_THRESHOLD"
	EnvCleanupSchedule    = "CLEANUP_SCHEDULE"
	EnvEmbeddingDimension = "EMBEDDING_MODEL_DIMENSION"
	EnvNonFilterableKeys  = "NON_FILTERABLE_METADATA_KEY"
)

// ConfigFromEnv builds a Config from the process environment. Unset
// tunables stay zero and are defaulted by New; unset connection settings
// surface through Config.Validate. TIME_THRESHOLD is read as whole
// minutes, matching the deployment convention.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		DatabaseURI:      os.Getenv(EnvDatabaseURI),
		Region:           os.Getenv(EnvRegion),
		VectorBucketARN:  os.Getenv(EnvVectorBucketARN),
		VectorBucketName: os.Getenv(EnvVectorBucketName),
		QueueURL:         os.Getenv(EnvQueueURL),
		CleanupAt:        os.Getenv(EnvCleanupSchedule),
	}

	var err error
	if cfg.MinPool, err = envInt(EnvMinPool); err != nil {
		return Config{}, err
	}
	if cfg.MaxProvisioners, err = envInt(EnvMaxProvisioners); err != nil {
		return Config{}, err
	}
	minutes, err := envInt(EnvStuckThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.StuckThreshold = time.Duration(minutes) * time.Minute
	dim, err := envInt(EnvEmbeddingDimension)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDimension = int32(dim)

	if raw := os.Getenv(EnvNonFilterableKeys); raw != "" {
		for _, key := range strings.Split(raw, ",") {
			if key = strings.TrimSpace(key); key != "" {
				cfg.NonFilterableMetadataKeys = append(cfg.NonFilterableMetadataKeys, key)
			}
		}
	}
	return cfg, nil
}

func envInt(name string) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", fault.ErrConfig, name, raw)
	}
	return v, nil
}

// withDefaults fills zero-valued tunables with the package defaults.
func (c Config) withDefaults() Config {
	if c.MinPool == 0 {
		c.MinPool = DefaultMinPool
	}
	if c.MaxProvisioners == 0 {
		c.MaxProvisioners = DefaultMaxProvisioners
	}
	if c.StuckThreshold == 0 {
		c.StuckThreshold = DefaultStuckThreshold
	}
	if c.ReconcileInterval == 0 {
		c.ReconcileInterval = DefaultReconcileInterval
	}
	if c.CleanupAt == "" {
		c.CleanupAt = DefaultCleanupAt
	}
	if c.EmbeddingDimension == 0 {
		c.EmbeddingDimension = DefaultEmbeddingDimension
	}
	if c.Registerer == nil {
		c.Registerer = prometheus.DefaultRegisterer
	}
	return c
}

// Validate reports the first invalid field. Called by New after defaults
// and options are applied; all violations wrap ErrConfig.
func (c Config) Validate() error {
	switch {
	case c.DatabaseURI == "":
		return fmt.Errorf("%w: database URI must not be empty", fault.ErrConfig)
	case c.Region == "":
		return fmt.Errorf("%w: AWS region must not be empty", fault.ErrConfig)
	case c.VectorBucketARN == "":
		return fmt.Errorf("%w: vector bucket ARN must not be empty", fault.ErrConfig)
	case c.VectorBucketName == "":
		return fmt.Errorf("%w: vector bucket name must not be empty", fault.ErrConfig)
	case c.QueueURL == "":
		return fmt.Errorf("%w: queue URL must not be empty", fault.ErrConfig)
	case c.MinPool < 0:
		return fmt.Errorf("%w: min pool must not be negative, got %d", fault.ErrConfig, c.MinPool)
	case c.MaxProvisioners <= 0:
		return fmt.Errorf("%w: max provisioners must be greater than 0, got %d", fault.ErrConfig, c.MaxProvisioners)
	case c.StuckThreshold <= 0:
		return fmt.Errorf("%w: stuck threshold must be greater than 0, got %v", fault.ErrConfig, c.StuckThreshold)
	case c.ReconcileInterval <= 0:
		return fmt.Errorf("%w: reconcile interval must be greater than 0, got %v", fault.ErrConfig, c.ReconcileInterval)
	case c.EmbeddingDimension <= 0:
		return fmt.Errorf("%w: embedding dimension must be greater than 0, got %d", fault.ErrConfig, c.EmbeddingDimension)
	}
	if _, _, err := schedule.ParseTimeOfDay(c.CleanupAt); err != nil {
		return fmt.Errorf("%w: cleanup schedule: %v", fault.ErrConfig, err)
	}
	return nil
}
