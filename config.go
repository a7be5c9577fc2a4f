package brainy

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// StorageKind selects which internal/storage.Adapter backend a Store uses.
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageFS     StorageKind = "filesystem"
	StorageObject StorageKind = "objectStore"
	StorageSQLite StorageKind = "sqlite"
)

// Role is an instance's operational role (§4.H, §4.J).
type Role string

const (
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
	RoleHybrid Role = "hybrid"
)

// StorageConfig configures the selected storage backend. Only the fields
// relevant to Kind need be set; the rest are ignored.
type StorageConfig struct {
	Kind StorageKind `json:"kind" validate:"required,oneof=memory filesystem objectStore sqlite"`

	// filesystem
	RootDir string `json:"rootDir,omitempty"`

	// sqlite
	Path string `json:"path,omitempty"`

	// objectStore
	Bucket          string `json:"bucket,omitempty"`
	Prefix          string `json:"prefix,omitempty"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	AccessKeyID     string `json:"-"`
	SecretAccessKey string `json:"-"`
}

// DistributedConfig configures multi-node deployment (§4.H).
type DistributedConfig struct {
	Role              Role          `json:"role,omitempty" validate:"omitempty,oneof=reader writer hybrid"`
	InstanceID        string        `json:"instanceId,omitempty"`
	HeartbeatInterval time.Duration `json:"heartbeatInterval,omitempty"`
	PollInterval      time.Duration `json:"pollInterval,omitempty"`
	PartitionCount    int           `json:"partitionCount,omitempty" validate:"omitempty,min=1"`

	// AllowSearchOnWriter opts a writer-role instance into permitting
	// search anyway (§4.J: "rejects search with WriteOnly unless
	// explicitly allowed").
	AllowSearchOnWriter bool `json:"allowSearchOnWriter,omitempty"`
}

// CacheConfig sizes the query planner's result cache and entity caches
// (§4.I, §5).
type CacheConfig struct {
	SearchTTL     time.Duration `json:"searchTTL,omitempty"`
	SearchMaxSize int           `json:"searchMaxSize,omitempty" validate:"omitempty,min=1"`
	EntityMaxSize int           `json:"entityMaxSize,omitempty" validate:"omitempty,min=1"`
}

// FusionWeights weights the three triple-intelligence score components
// (§4.I). They need not sum to 1; the planner normalizes at use time.
type FusionWeights struct {
	Vector float64 `json:"vector"`
	Graph  float64 `json:"graph"`
	Field  float64 `json:"field"`
}

// HNSWConfig tunes the type-aware HNSW index (§4.E).
type HNSWConfig struct {
	M              int `json:"m,omitempty" validate:"omitempty,min=2"`
	EfConstruction int `json:"efConstruction,omitempty" validate:"omitempty,min=1"`
	EfSearch       int `json:"efSearch,omitempty" validate:"omitempty,min=1"`
}

// Config is the single configuration record consumed at store construction
// (§6). Unknown keys (when loaded from JSON) are ignored; invalid values
// fail fast with ErrInvalidConfig.
type Config struct {
	Dimensions int           `json:"dimensions" validate:"required,min=1"`
	Distance   string        `json:"distance,omitempty" validate:"omitempty,oneof=euclidean cosine dot"`
	HNSW       HNSWConfig    `json:"hnsw,omitempty"`
	Storage    StorageConfig `json:"storage"`
	Distributed DistributedConfig `json:"distributed,omitempty"`
	Cache       CacheConfig       `json:"cache,omitempty"`
	Weights     FusionWeights     `json:"weights,omitempty"`

	MinWeight float64 `json:"minWeight,omitempty"`
	MaxWeight float64 `json:"maxWeight,omitempty"`

	Logger   Logger   `json:"-"`
	Embedder Embedder `json:"-"`
}

// DefaultConfig returns a Config with sane defaults: an in-memory backend,
// 384-dimensional cosine vectors, and hybrid role — mirroring the
// teacher's one-function zero-config-defaults idiom.
func DefaultConfig() Config {
	return Config{
		Dimensions: DefaultDimension,
		Distance:   string(distanceCosine),
		HNSW: HNSWConfig{
			M:              DefaultM,
			EfConstruction: DefaultEfConstruction,
			EfSearch:       DefaultEfSearch,
		},
		Storage: StorageConfig{Kind: StorageMemory},
		Distributed: DistributedConfig{
			Role:              RoleHybrid,
			HeartbeatInterval: 30 * time.Second,
			PollInterval:      30 * time.Second,
			PartitionCount:    16,
		},
		Cache: CacheConfig{
			SearchTTL:     3 * time.Minute,
			SearchMaxSize: 1000,
			EntityMaxSize: 10000,
		},
		Weights:   FusionWeights{Vector: 0.6, Graph: 0.2, Field: 0.2},
		MinWeight: DefaultMinWeight,
		MaxWeight: DefaultMaxWeight,
	}
}

const distanceCosine = "cosine"

var cfgValidator = validator.New()

// normalize fills in zero-valued optional fields with defaults and
// validates the result, returning ErrInvalidConfig on failure.
func (c *Config) normalize() error {
	d := DefaultConfig()
	if c.Distance == "" {
		c.Distance = d.Distance
	}
	if c.HNSW.M == 0 {
		c.HNSW.M = d.HNSW.M
	}
	if c.HNSW.EfConstruction == 0 {
		c.HNSW.EfConstruction = d.HNSW.EfConstruction
	}
	if c.HNSW.EfSearch == 0 {
		c.HNSW.EfSearch = d.HNSW.EfSearch
	}
	if c.Storage.Kind == "" {
		c.Storage.Kind = d.Storage.Kind
	}
	if c.Distributed.Role == "" {
		c.Distributed.Role = d.Distributed.Role
	}
	if c.Distributed.HeartbeatInterval == 0 {
		c.Distributed.HeartbeatInterval = d.Distributed.HeartbeatInterval
	}
	if c.Distributed.PollInterval == 0 {
		c.Distributed.PollInterval = d.Distributed.PollInterval
	}
	if c.Distributed.PartitionCount == 0 {
		c.Distributed.PartitionCount = d.Distributed.PartitionCount
	}
	if c.Cache.SearchTTL == 0 {
		c.Cache.SearchTTL = d.Cache.SearchTTL
	}
	if c.Cache.SearchMaxSize == 0 {
		c.Cache.SearchMaxSize = d.Cache.SearchMaxSize
	}
	if c.Cache.EntityMaxSize == 0 {
		c.Cache.EntityMaxSize = d.Cache.EntityMaxSize
	}
	if c.Weights == (FusionWeights{}) {
		c.Weights = d.Weights
	}
	if c.MinWeight == 0 && c.MaxWeight == 0 {
		c.MinWeight, c.MaxWeight = d.MinWeight, d.MaxWeight
	}
	if c.MaxWeight <= c.MinWeight {
		return wrapErr("config", KindInvalidConfig, "minWeight/maxWeight",
			fmt.Errorf("maxWeight (%v) must exceed minWeight (%v)", c.MaxWeight, c.MinWeight))
	}

	if err := cfgValidator.Struct(c); err != nil {
		return wrapErr("config", KindInvalidConfig, "", err)
	}
	switch c.Storage.Kind {
	case StorageFS:
		if c.Storage.RootDir == "" {
			return wrapErr("config", KindInvalidConfig, "storage.rootDir", fmt.Errorf("required for filesystem backend"))
		}
	case StorageObject:
		if c.Storage.Bucket == "" {
			return wrapErr("config", KindInvalidConfig, "storage.bucket", fmt.Errorf("required for objectStore backend"))
		}
	case StorageSQLite:
		if c.Storage.Path == "" {
			return wrapErr("config", KindInvalidConfig, "storage.path", fmt.Errorf("required for sqlite backend"))
		}
	}
	return nil
}
