package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stacklok/zoom-search-connector/internal/model"
)

// GetObjectTypes returns the configured object types in extraction order.
func (c *Config) GetObjectTypes() []model.ObjectType {
	if len(c.Objects) == 0 {
		return model.AllObjectTypes()
	}
	types := make([]model.ObjectType, 0, len(c.Objects))
	for name := range c.Objects {
		if t, err := model.ParseObjectType(name); err == nil {
			types = append(types, t)
		}
	}
	return model.SortObjectTypes(types)
}

// GetFieldFilter returns the include and exclude patterns of an object type.
func (c *Config) GetFieldFilter(t model.ObjectType) (include, exclude []string) {
	obj := c.Objects[string(t)]
	if obj == nil {
		return nil, nil
	}
	return obj.IncludeFields, obj.ExcludeFields
}

// GetStartTime returns the lower bound of full sync windows. Zero when unset.
func (c *Config) GetStartTime() time.Time {
	t, _ := parseTime("startTime", c.StartTime)
	return t
}

// GetEndTime returns the upper bound of full sync windows, or now when unset.
func (c *Config) GetEndTime(now time.Time) time.Time {
	t, _ := parseTime("endTime", c.EndTime)
	if t.IsZero() {
		return now.UTC()
	}
	return t
}

// GetRetryCount returns the retry budget for transient failures.
func (c *Config) GetRetryCount() int {
	if c.RetryCount == nil {
		return DefaultRetryCount
	}
	return *c.RetryCount
}

// GetRetryBaseInterval returns the first backoff delay.
func (c *Config) GetRetryBaseInterval() time.Duration {
	return durationOr(c.RetryBaseInterval, DefaultRetryBaseInterval)
}

// GetRetryMaxInterval returns the cap of a single backoff delay.
func (c *Config) GetRetryMaxInterval() time.Duration {
	return durationOr(c.RetryMaxInterval, DefaultRetryMaxInterval)
}

// GetRequestTimeout returns the timeout of a single HTTP attempt.
func (c *Config) GetRequestTimeout() time.Duration {
	return durationOr(c.RequestTimeout, DefaultRequestTimeout)
}

// GetExtractionWorkers returns the size of the extractor pool.
func (c *Config) GetExtractionWorkers() int {
	if c.ZoomSyncThreadCount <= 0 {
		return DefaultThreadCount
	}
	return c.ZoomSyncThreadCount
}

// GetIndexingWorkers returns the size of the indexer pool.
func (c *Config) GetIndexingWorkers() int {
	if c.EnterpriseSearchSyncThreadCount <= 0 {
		return DefaultThreadCount
	}
	return c.EnterpriseSearchSyncThreadCount
}

// GetQueueSize returns the capacity of the hand-off queue between the pools.
func (c *Config) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 4 * c.GetIndexingWorkers() * c.GetBatchSize()
	}
	return c.QueueSize
}

// PermissionsEnabled reports whether documents carry permission tags.
func (c *Config) PermissionsEnabled() bool {
	return c.EnableDocumentPermission == nil || *c.EnableDocumentPermission
}

// GetUnresolvedPermissionPolicy returns how documents with unmapped owners are handled.
func (c *Config) GetUnresolvedPermissionPolicy() string {
	if c.UnresolvedPermissionPolicy == "" {
		return UnresolvedPolicyIndex
	}
	return c.UnresolvedPermissionPolicy
}

// GetBatchSize returns the maximum number of documents per index call.
func (c *Config) GetBatchSize() int {
	if c.WorkplaceSearch.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.WorkplaceSearch.BatchSize
}

// GetMaxBatchBytes returns the maximum serialized size of one index call.
func (c *Config) GetMaxBatchBytes() int {
	if c.WorkplaceSearch.MaxBatchBytes <= 0 {
		return DefaultMaxBatchBytes
	}
	return c.WorkplaceSearch.MaxBatchBytes
}

// GetStorageType returns the configured storage backend.
func (c *Config) GetStorageType() string {
	if c.Storage == nil || c.Storage.Type == "" {
		return StorageTypeFile
	}
	return c.Storage.Type
}

// GetStorageDirectory returns the directory of the file backend.
func (c *Config) GetStorageDirectory() string {
	if c.Storage == nil || c.Storage.File == nil || c.Storage.File.Directory == "" {
		return DefaultDataDirectory
	}
	return c.Storage.File.Directory
}

// GetStatusPath returns the directory run summaries are written to.
func (c *Config) GetStatusPath() string {
	if c.StatusPath == "" {
		return filepath.Join(DefaultDataDirectory, "status")
	}
	return c.StatusPath
}

// GetTokenURL returns the OAuth token endpoint.
func (z *ZoomConfig) GetTokenURL() string {
	if z.TokenURL == "" {
		return DefaultTokenURL
	}
	return z.TokenURL
}

// GetAPIBaseURL returns the source API root without a trailing slash.
func (z *ZoomConfig) GetAPIBaseURL() string {
	if z.APIBaseURL == "" {
		return DefaultAPIBaseURL
	}
	return strings.TrimRight(z.APIBaseURL, "/")
}

// GetTokenStorePath returns where rotated tokens are persisted.
func (z *ZoomConfig) GetTokenStorePath() string {
	if z.TokenStorePath == "" {
		return filepath.Join(DefaultDataDirectory, "zoom_tokens.json")
	}
	return z.TokenStorePath
}

// GetRequestsPerSecond returns the pacing of source API calls.
func (z *ZoomConfig) GetRequestsPerSecond() float64 {
	if z.RequestsPerSecond <= 0 {
		return DefaultZoomRequestsPerSecond
	}
	return z.RequestsPerSecond
}

// GetClientSecret returns the OAuth client secret using the following priority:
// 1. Read from ClientSecretFile if specified
// 2. Read from ZOOM_CONNECTOR_ZOOM_CLIENT_SECRET
// 3. The inline ClientSecret value
func (z *ZoomConfig) GetClientSecret() (string, error) {
	secret, err := readSecret(z.ClientSecretFile, EnvPrefix+"_ZOOM_CLIENT_SECRET", z.ClientSecret)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", fmt.Errorf("no zoom client secret configured")
	}
	return secret, nil
}

// GetRefreshToken returns the bootstrap refresh token, preferring ZOOM_CONNECTOR_ZOOM_REFRESH_TOKEN.
func (z *ZoomConfig) GetRefreshToken() string {
	if v := os.Getenv(EnvPrefix + "_ZOOM_REFRESH_TOKEN"); v != "" {
		return v
	}
	return z.RefreshToken
}

// GetAPIKey returns the target API key using the same priority as GetClientSecret.
func (w *WorkplaceSearchConfig) GetAPIKey() (string, error) {
	key, err := readSecret(w.APIKeyFile, EnvPrefix+"_WORKPLACE_SEARCH_API_KEY", w.APIKey)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("no workplace search api key configured")
	}
	return key, nil
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from ZOOM_CONNECTOR_DATABASE_PASSWORD environment variable
func (d *DatabaseConfig) GetPassword() (string, error) {
	password, err := readSecret(d.PasswordFile, EnvPrefix+"_DATABASE_PASSWORD", "")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", fmt.Errorf(
			"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable", EnvPrefix,
		)
	}
	return password, nil
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	port := d.Port
	if port == 0 {
		port = 5432
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		port,
		d.Database,
		sslMode,
	), nil
}

// GetURI returns the MongoDB connection URI.
func (m *MongoDBConfig) GetURI() (string, error) {
	uri, err := readSecret(m.URIFile, EnvPrefix+"_MONGODB_URI", m.URI)
	if err != nil {
		return "", err
	}
	if uri == "" {
		return "", fmt.Errorf("no mongodb uri configured")
	}
	return uri, nil
}

// GetScheduleInterval returns the interval configured for a mode, or zero when disabled.
func (c *Config) GetScheduleInterval(mode string) time.Duration {
	if c.Schedule == nil {
		return 0
	}
	var value string
	switch mode {
	case "incremental":
		value = c.Schedule.Incremental
	case "full":
		value = c.Schedule.Full
	case "deletion":
		value = c.Schedule.Deletion
	case "permission":
		value = c.Schedule.Permission
	}
	return durationOr(value, 0)
}

func durationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
