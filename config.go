package memo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goforj/memo/memocore"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	defaultStorePrefix           = "app"
	defaultStoreTTL              = time.Hour
	defaultMemoryCleanupInterval = 10 * time.Minute
	defaultSQLTable              = "memo_entries"
	defaultDynamoTable           = "memo_entries"
	defaultDynamoRegion          = "us-east-1"
)

func defaultFileDir() string {
	return filepath.Join(os.TempDir(), "memo-store")
}

// BaseConfig holds the settings shared by every driver.
type BaseConfig = memocore.BaseConfig

// StoreConfig controls how a backing Store is constructed.
type StoreConfig struct {
	memocore.BaseConfig

	Driver Driver

	// MemoryCleanupInterval controls how often the memory driver sweeps expired entries.
	MemoryCleanupInterval time.Duration

	// FileDir is where the file driver keeps one file per key.
	FileDir string

	// RedisClient is required when DriverRedis is used.
	RedisClient RedisClient

	// NATSKeyValue is required when DriverNATS is used.
	NATSKeyValue NATSKeyValue

	// SQLDriverName is one of sqlite, pgx/postgres or mysql.
	SQLDriverName string
	SQLDSN        string
	SQLTable      string

	// DynamoClient overrides the client built from DynamoRegion/DynamoEndpoint.
	DynamoClient   DynamoAPI
	DynamoEndpoint string
	DynamoRegion   string
	DynamoTable    string

	MemcachedAddresses []string
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = defaultStoreTTL
	}
	if c.MemoryCleanupInterval <= 0 {
		c.MemoryCleanupInterval = defaultMemoryCleanupInterval
	}
	if c.Prefix == "" {
		c.Prefix = defaultStorePrefix
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	if c.FileDir == "" {
		c.FileDir = defaultFileDir()
	}
	if c.SQLTable == "" {
		c.SQLTable = defaultSQLTable
	}
	if c.DynamoTable == "" {
		c.DynamoTable = defaultDynamoTable
	}
	if c.DynamoRegion == "" {
		c.DynamoRegion = defaultDynamoRegion
	}
	c.MemcachedAddresses = lo.Uniq(lo.Filter(c.MemcachedAddresses, func(addr string, _ int) bool {
		return strings.TrimSpace(addr) != ""
	}))
	return c
}

// Validate reports every problem with the configuration at once. NewStore
// calls it after applying defaults.
func (c StoreConfig) Validate() error {
	result := multierror.Append(nil, c.validateSettings())
	switch c.Driver {
	case DriverRedis:
		if c.RedisClient == nil {
			result = multierror.Append(result, errors.New("redis driver requires RedisClient"))
		}
	case DriverNATS:
		if c.NATSKeyValue == nil {
			result = multierror.Append(result, errors.New("nats driver requires NATSKeyValue"))
		}
	case DriverSQL:
		if c.SQLDriverName == "" || c.SQLDSN == "" {
			result = multierror.Append(result, errors.New("sql driver requires SQLDriverName and SQLDSN"))
		}
		if err := validateSQLTableName(c.SQLTable); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// validateSettings covers the fields a config file can set.
func (c StoreConfig) validateSettings() error {
	var result *multierror.Error
	if !lo.Contains(memocore.Drivers(), c.Driver) {
		result = multierror.Append(result, fmt.Errorf("unknown store driver %q", c.Driver))
	}
	if !lo.Contains([]CompressionCodec{CompressionNone, CompressionGzip}, c.Compression) {
		result = multierror.Append(result, fmt.Errorf("%w: %q", ErrUnsupportedCodec, c.Compression))
	}
	if c.MaxValueBytes < 0 {
		result = multierror.Append(result, fmt.Errorf("max value bytes must not be negative, got %d", c.MaxValueBytes))
	}
	if n := len(c.EncryptionKey); n != 0 && !lo.Contains([]int{16, 24, 32}, n) {
		result = multierror.Append(result, ErrEncryptionKey)
	}
	return result.ErrorOrNil()
}

// storeFile is the serialisable subset of StoreConfig. Clients and keys
// are wired in code.
type storeFile struct {
	Driver                string        `yaml:"driver"`
	DefaultTTL            time.Duration `yaml:"default_ttl"`
	Prefix                string        `yaml:"prefix"`
	Compression           string        `yaml:"compression"`
	MaxValueBytes         int           `yaml:"max_value_bytes"`
	MemoryCleanupInterval time.Duration `yaml:"memory_cleanup_interval"`
	FileDir               string        `yaml:"file_dir"`
	SQL                   struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		Table  string `yaml:"table"`
	} `yaml:"sql"`
	Dynamo struct {
		Endpoint string `yaml:"endpoint"`
		Region   string `yaml:"region"`
		Table    string `yaml:"table"`
	} `yaml:"dynamo"`
	MemcachedAddresses []string `yaml:"memcached_addresses"`
}

// ParseStoreConfig decodes a YAML store configuration. Durations use Go
// syntax ("90s", "1h").
//
// Example: redis-less sqlite tier
//
//	cfg, err := memo.ParseStoreConfig([]byte(`
//	driver: sql
//	default_ttl: 24h
//	sql:
//	  driver: sqlite
//	  dsn: file:memo.db
//	`))
func ParseStoreConfig(data []byte) (StoreConfig, error) {
	var f storeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return StoreConfig{}, fmt.Errorf("parse store config: %w", err)
	}
	cfg := StoreConfig{
		BaseConfig: BaseConfig{
			DefaultTTL:    f.DefaultTTL,
			Prefix:        f.Prefix,
			Compression:   CompressionCodec(f.Compression),
			MaxValueBytes: f.MaxValueBytes,
		},
		Driver:                Driver(f.Driver),
		MemoryCleanupInterval: f.MemoryCleanupInterval,
		FileDir:               f.FileDir,
		SQLDriverName:         f.SQL.Driver,
		SQLDSN:                f.SQL.DSN,
		SQLTable:              f.SQL.Table,
		DynamoEndpoint:        f.Dynamo.Endpoint,
		DynamoRegion:          f.Dynamo.Region,
		DynamoTable:           f.Dynamo.Table,
		MemcachedAddresses:    f.MemcachedAddresses,
	}
	if err := cfg.withDefaults().validateSettings(); err != nil {
		return StoreConfig{}, fmt.Errorf("parse store config: %w", err)
	}
	return cfg, nil
}

// LoadStoreConfig reads a YAML store configuration from path.
func LoadStoreConfig(path string) (StoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StoreConfig{}, err
	}
	return ParseStoreConfig(data)
}
