// Package config provides configuration loading and management for the connector.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/zoom-search-connector/internal/model"
	"github.com/stacklok/zoom-search-connector/internal/telemetry"
)

// EnvPrefix is the prefix of every environment variable read by the connector.
const EnvPrefix = "ZOOM_CONNECTOR"

const (
	// DefaultTokenURL is the Zoom OAuth token endpoint
	DefaultTokenURL = "https://zoom.us/oauth/token"

	// DefaultAPIBaseURL is the Zoom REST API root
	DefaultAPIBaseURL = "https://api.zoom.us/v2"

	// DefaultDataDirectory holds local state when no other location is configured
	DefaultDataDirectory = ".zoom-connector"

	// DefaultRetryCount is the number of retries for transient failures
	DefaultRetryCount = 3

	// DefaultThreadCount is the default size of both worker pools
	DefaultThreadCount = 5

	// DefaultBatchSize is the maximum number of documents per index call
	DefaultBatchSize = 100

	// DefaultMaxBatchBytes is the maximum serialized size of one index call
	DefaultMaxBatchBytes = 10_000_000

	// DefaultRetryBaseInterval is the first backoff delay
	DefaultRetryBaseInterval = time.Second

	// DefaultRetryMaxInterval caps a single backoff delay
	DefaultRetryMaxInterval = 30 * time.Second

	// DefaultRequestTimeout bounds a single HTTP attempt
	DefaultRequestTimeout = 30 * time.Second

	// DefaultZoomRequestsPerSecond stays below the lightest per-second API rate limit
	DefaultZoomRequestsPerSecond = 10
)

const (
	// StorageTypeFile keeps checkpoints and snapshots in JSON files
	StorageTypeFile = "file"

	// StorageTypePostgres keeps checkpoints and snapshots in PostgreSQL
	StorageTypePostgres = "postgres"

	// StorageTypeMongoDB keeps checkpoints and snapshots in MongoDB
	StorageTypeMongoDB = "mongodb"
)

const (
	// UnresolvedPolicyIndex indexes documents whose owner has no mapping with only the read privilege tag
	UnresolvedPolicyIndex = "index"

	// UnresolvedPolicySkip drops documents whose owner has no mapping
	UnresolvedPolicySkip = "skip"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks; this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Zoom            ZoomConfig            `yaml:"zoom"`
	WorkplaceSearch WorkplaceSearchConfig `yaml:"workplaceSearch"`

	// Objects selects the object types to sync and their field filters.
	// An empty map syncs every object type with all fields.
	Objects map[string]*ObjectConfig `yaml:"objects,omitempty"`

	// StartTime and EndTime bound full sync windows (RFC 3339, UTC).
	StartTime string `yaml:"startTime,omitempty"`
	EndTime   string `yaml:"endTime,omitempty"`

	// RetryCount is the retry budget for transient failures. Nil means DefaultRetryCount.
	RetryCount        *int   `yaml:"retryCount,omitempty"`
	RetryBaseInterval string `yaml:"retryBaseInterval,omitempty"`
	RetryMaxInterval  string `yaml:"retryMaxInterval,omitempty"`
	RequestTimeout    string `yaml:"requestTimeout,omitempty"`

	ZoomSyncThreadCount             int `yaml:"zoomSyncThreadCount,omitempty"`
	EnterpriseSearchSyncThreadCount int `yaml:"enterpriseSearchSyncThreadCount,omitempty"`
	QueueSize                       int `yaml:"queueSize,omitempty"`

	// EnableDocumentPermission attaches permission tags to documents. Nil means enabled.
	EnableDocumentPermission   *bool  `yaml:"enableDocumentPermission,omitempty"`
	UnresolvedPermissionPolicy string `yaml:"unresolvedPermissionPolicy,omitempty"`

	Storage    *StorageConfig    `yaml:"storage,omitempty"`
	StatusPath string            `yaml:"statusPath,omitempty"`
	Schedule   *ScheduleConfig   `yaml:"schedule,omitempty"`
	Logging    *LoggingConfig    `yaml:"logging,omitempty"`
	Telemetry  *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ZoomConfig holds the source API credentials and endpoints
type ZoomConfig struct {
	ClientID         string `yaml:"clientId"`
	ClientSecret     string `yaml:"clientSecret,omitempty"`
	ClientSecretFile string `yaml:"clientSecretFile,omitempty"`
	RefreshToken     string `yaml:"refreshToken,omitempty"`
	TokenURL         string `yaml:"tokenUrl,omitempty"`
	APIBaseURL       string `yaml:"apiBaseUrl,omitempty"`

	// TokenStorePath persists rotated access and refresh tokens between runs
	TokenStorePath string `yaml:"tokenStorePath,omitempty"`

	// UserMapping is the path of the two-column source id to target id CSV table
	UserMapping string `yaml:"userMapping,omitempty"`

	// RequestsPerSecond paces calls to the API. Zero means DefaultZoomRequestsPerSecond.
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`
}

// WorkplaceSearchConfig holds the target API settings
type WorkplaceSearchConfig struct {
	HostURL       string `yaml:"hostUrl"`
	APIKey        string `yaml:"apiKey,omitempty"`
	APIKeyFile    string `yaml:"apiKeyFile,omitempty"`
	SourceID      string `yaml:"sourceId"`
	BatchSize     int    `yaml:"batchSize,omitempty"`
	MaxBatchBytes int    `yaml:"maxBatchBytes,omitempty"`

	// RequestsPerSecond paces calls to the API. Zero leaves them unpaced.
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`
}

// ObjectConfig defines the field filter of one object type
type ObjectConfig struct {
	IncludeFields []string `yaml:"includeFields,omitempty"`
	ExcludeFields []string `yaml:"excludeFields,omitempty"`
}

// StorageConfig selects where checkpoints and id-set snapshots live
type StorageConfig struct {
	Type     string             `yaml:"type"`
	File     *FileStorageConfig `yaml:"file,omitempty"`
	Database *DatabaseConfig    `yaml:"database,omitempty"`
	MongoDB  *MongoDBConfig     `yaml:"mongodb,omitempty"`
}

// FileStorageConfig defines the directory of the file backend
type FileStorageConfig struct {
	Directory string `yaml:"directory"`
}

// MongoDBConfig defines MongoDB connection settings
type MongoDBConfig struct {
	URI      string `yaml:"uri,omitempty"`
	URIFile  string `yaml:"uriFile,omitempty"`
	Database string `yaml:"database"`
}

// ScheduleConfig defines the intervals used by the schedule command.
// An empty interval disables that mode.
type ScheduleConfig struct {
	Incremental string `yaml:"incremental,omitempty"`
	Full        string `yaml:"full,omitempty"`
	Deletion    string `yaml:"deletion,omitempty"`
	Permission  string `yaml:"permission,omitempty"`
}

// LoggingConfig enables an additional rotating log file
type LoggingConfig struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"maxSizeMb,omitempty"`
	MaxBackups int    `yaml:"maxBackups,omitempty"`
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if c.Zoom.ClientID == "" {
		errs = append(errs, fmt.Errorf("zoom.clientId is required"))
	}
	if c.Zoom.ClientSecret == "" && c.Zoom.ClientSecretFile == "" && os.Getenv(EnvPrefix+"_ZOOM_CLIENT_SECRET") == "" {
		errs = append(errs, fmt.Errorf("zoom.clientSecret, zoom.clientSecretFile or %s_ZOOM_CLIENT_SECRET is required", EnvPrefix))
	}
	if err := validateURL("zoom.tokenUrl", c.Zoom.TokenURL, false); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("zoom.apiBaseUrl", c.Zoom.APIBaseURL, false); err != nil {
		errs = append(errs, err)
	}

	if err := validateURL("workplaceSearch.hostUrl", c.WorkplaceSearch.HostURL, true); err != nil {
		errs = append(errs, err)
	}
	if c.WorkplaceSearch.SourceID == "" {
		errs = append(errs, fmt.Errorf("workplaceSearch.sourceId is required"))
	}
	if c.WorkplaceSearch.APIKey == "" && c.WorkplaceSearch.APIKeyFile == "" &&
		os.Getenv(EnvPrefix+"_WORKPLACE_SEARCH_API_KEY") == "" {
		errs = append(errs, fmt.Errorf(
			"workplaceSearch.apiKey, workplaceSearch.apiKeyFile or %s_WORKPLACE_SEARCH_API_KEY is required", EnvPrefix))
	}
	if c.Zoom.RequestsPerSecond < 0 || c.WorkplaceSearch.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requestsPerSecond cannot be negative"))
	}
	if c.WorkplaceSearch.BatchSize < 0 || c.WorkplaceSearch.MaxBatchBytes < 0 {
		errs = append(errs, fmt.Errorf("workplaceSearch batch limits cannot be negative"))
	}

	for name := range c.Objects {
		if _, err := model.ParseObjectType(name); err != nil {
			errs = append(errs, fmt.Errorf("objects: %w", err))
		}
	}

	start, err := parseTime("startTime", c.StartTime)
	if err != nil {
		errs = append(errs, err)
	}
	end, err := parseTime("endTime", c.EndTime)
	if err != nil {
		errs = append(errs, err)
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		errs = append(errs, fmt.Errorf("endTime must be after startTime"))
	}

	if c.RetryCount != nil && *c.RetryCount < 0 {
		errs = append(errs, fmt.Errorf("retryCount cannot be negative"))
	}
	for field, value := range map[string]string{
		"retryBaseInterval": c.RetryBaseInterval,
		"retryMaxInterval":  c.RetryMaxInterval,
		"requestTimeout":    c.RequestTimeout,
	} {
		if err := validateDuration(field, value); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ZoomSyncThreadCount < 0 || c.EnterpriseSearchSyncThreadCount < 0 || c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("thread counts and queueSize cannot be negative"))
	}

	switch c.UnresolvedPermissionPolicy {
	case "", UnresolvedPolicyIndex, UnresolvedPolicySkip:
	default:
		errs = append(errs, fmt.Errorf("unresolvedPermissionPolicy must be %q or %q, got %q",
			UnresolvedPolicyIndex, UnresolvedPolicySkip, c.UnresolvedPermissionPolicy))
	}

	if err := c.Storage.validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	if err := c.Schedule.validate(); err != nil {
		errs = append(errs, fmt.Errorf("schedule: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func (s *StorageConfig) validate() error {
	if s == nil {
		return nil
	}
	switch s.Type {
	case "", StorageTypeFile:
		return nil
	case StorageTypePostgres:
		if s.Database == nil {
			return fmt.Errorf("database settings are required for storage type %q", s.Type)
		}
		if s.Database.Host == "" || s.Database.Database == "" {
			return fmt.Errorf("database host and database are required")
		}
		return validateDuration("database.connMaxLifetime", s.Database.ConnMaxLifetime)
	case StorageTypeMongoDB:
		if s.MongoDB == nil || s.MongoDB.Database == "" {
			return fmt.Errorf("mongodb.database is required for storage type %q", s.Type)
		}
		if s.MongoDB.URI == "" && s.MongoDB.URIFile == "" && os.Getenv(EnvPrefix+"_MONGODB_URI") == "" {
			return fmt.Errorf("mongodb.uri, mongodb.uriFile or %s_MONGODB_URI is required", EnvPrefix)
		}
		return nil
	default:
		return fmt.Errorf("unsupported storage type %q", s.Type)
	}
}

func (s *ScheduleConfig) validate() error {
	if s == nil {
		return nil
	}
	var errs []error
	for field, value := range map[string]string{
		"incremental": s.Incremental,
		"full":        s.Full,
		"deletion":    s.Deletion,
		"permission":  s.Permission,
	} {
		if err := validateDuration(field, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validateURL(field, value string, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", field, value)
	}
	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}

func parseTime(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC 3339, got %q: %w", field, value, err)
	}
	return t.UTC(), nil
}

// readSecret returns the trimmed content of file if set, then the env variable, then the inline value.
func readSecret(file, envName, inline string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return "", fmt.Errorf("failed to read secret from file %s: %w", file, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if v := os.Getenv(envName); v != "" {
		return v, nil
	}
	return inline, nil
}
