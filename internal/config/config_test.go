package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/zoom-search-connector/internal/model"
)

const minimalYAML = `zoom:
  clientId: client
  clientSecret: secret
  refreshToken: refresh
workplaceSearch:
  hostUrl: https://search.example.com
  apiKey: key
  sourceId: source
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		yamlContent string
		wantErr     string
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:        "minimal_config_uses_defaults",
			yamlContent: minimalYAML,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, DefaultRetryCount, cfg.GetRetryCount())
				assert.Equal(t, DefaultThreadCount, cfg.GetExtractionWorkers())
				assert.Equal(t, DefaultThreadCount, cfg.GetIndexingWorkers())
				assert.Equal(t, DefaultBatchSize, cfg.GetBatchSize())
				assert.Equal(t, DefaultMaxBatchBytes, cfg.GetMaxBatchBytes())
				assert.Equal(t, StorageTypeFile, cfg.GetStorageType())
				assert.True(t, cfg.PermissionsEnabled())
				assert.Equal(t, UnresolvedPolicyIndex, cfg.GetUnresolvedPermissionPolicy())
				assert.Equal(t, model.AllObjectTypes(), cfg.GetObjectTypes())
				assert.Equal(t, DefaultTokenURL, cfg.Zoom.GetTokenURL())
				assert.Equal(t, DefaultAPIBaseURL, cfg.Zoom.GetAPIBaseURL())
				assert.True(t, cfg.GetStartTime().IsZero())
				assert.Equal(t, float64(DefaultZoomRequestsPerSecond), cfg.Zoom.GetRequestsPerSecond())
			},
		},
		{
			name: "full_config",
			yamlContent: minimalYAML + `objects:
  users:
    includeFields: ["first_name", "email"]
  meetings:
    excludeFields: ["join_url"]
startTime: "2024-01-01T00:00:00Z"
endTime: "2024-06-01T00:00:00Z"
retryCount: 0
zoomSyncThreadCount: 8
enterpriseSearchSyncThreadCount: 3
enableDocumentPermission: false
unresolvedPermissionPolicy: skip
storage:
  type: postgres
  database:
    host: localhost
    port: 5432
    user: connector
    database: connector
schedule:
  incremental: 1h
  deletion: 24h
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, []model.ObjectType{model.Users, model.Meetings}, cfg.GetObjectTypes())
				include, exclude := cfg.GetFieldFilter(model.Users)
				assert.Equal(t, []string{"first_name", "email"}, include)
				assert.Empty(t, exclude)
				_, exclude = cfg.GetFieldFilter(model.Meetings)
				assert.Equal(t, []string{"join_url"}, exclude)
				assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.GetStartTime())
				assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), cfg.GetEndTime(time.Now()))
				assert.Equal(t, 0, cfg.GetRetryCount())
				assert.Equal(t, 8, cfg.GetExtractionWorkers())
				assert.Equal(t, 3, cfg.GetIndexingWorkers())
				assert.False(t, cfg.PermissionsEnabled())
				assert.Equal(t, UnresolvedPolicySkip, cfg.GetUnresolvedPermissionPolicy())
				assert.Equal(t, StorageTypePostgres, cfg.GetStorageType())
				assert.Equal(t, time.Hour, cfg.GetScheduleInterval("incremental"))
				assert.Equal(t, time.Duration(0), cfg.GetScheduleInterval("full"))
			},
		},
		{
			name:        "missing_client_id",
			yamlContent: "zoom:\n  clientSecret: s\nworkplaceSearch:\n  hostUrl: https://h\n  apiKey: k\n  sourceId: s\n",
			wantErr:     "zoom.clientId is required",
		},
		{
			name:        "missing_target",
			yamlContent: "zoom:\n  clientId: c\n  clientSecret: s\n",
			wantErr:     "workplaceSearch.hostUrl is required",
		},
		{
			name:        "unknown_object_type",
			yamlContent: minimalYAML + "objects:\n  webinars: {}\n",
			wantErr:     `unknown object type "webinars"`,
		},
		{
			name:        "invalid_start_time",
			yamlContent: minimalYAML + "startTime: yesterday\n",
			wantErr:     "startTime must be RFC 3339",
		},
		{
			name:        "end_before_start",
			yamlContent: minimalYAML + "startTime: \"2024-06-01T00:00:00Z\"\nendTime: \"2024-01-01T00:00:00Z\"\n",
			wantErr:     "endTime must be after startTime",
		},
		{
			name:        "negative_retry_count",
			yamlContent: minimalYAML + "retryCount: -1\n",
			wantErr:     "retryCount cannot be negative",
		},
		{
			name:        "negative_rate_limit",
			yamlContent: strings.Replace(minimalYAML, "  apiKey: key\n", "  apiKey: key\n  requestsPerSecond: -2\n", 1),
			wantErr:     "requestsPerSecond cannot be negative",
		},
		{
			name:        "invalid_policy",
			yamlContent: minimalYAML + "unresolvedPermissionPolicy: drop\n",
			wantErr:     "unresolvedPermissionPolicy",
		},
		{
			name:        "unsupported_storage",
			yamlContent: minimalYAML + "storage:\n  type: redis\n",
			wantErr:     `unsupported storage type "redis"`,
		},
		{
			name:        "mongodb_requires_database",
			yamlContent: minimalYAML + "storage:\n  type: mongodb\n  mongodb:\n    uri: mongodb://localhost\n",
			wantErr:     "mongodb.database is required",
		},
		{
			name:        "invalid_schedule",
			yamlContent: minimalYAML + "schedule:\n  full: weekly\n",
			wantErr:     "schedule: full: invalid duration",
		},
		{
			name:        "invalid_yaml",
			yamlContent: "zoom: [",
			wantErr:     "failed to parse YAML config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := LoadConfig(WithConfigPath(writeConfig(t, tt.yamlContent)))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig()
	require.Error(t, err)

	_, err = LoadConfig(WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to evaluate symlinks")
}

func TestSecretsFromFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	secretFile := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(secretFile, []byte("from-file\n"), 0600))

	zoomCfg := &ZoomConfig{ClientSecret: "inline", ClientSecretFile: secretFile}
	secret, err := zoomCfg.GetClientSecret()
	require.NoError(t, err)
	assert.Equal(t, "from-file", secret)

	wsCfg := &WorkplaceSearchConfig{APIKey: "inline-key"}
	key, err := wsCfg.GetAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "inline-key", key)

	dbCfg := &DatabaseConfig{Host: "db", User: "u@x", PasswordFile: secretFile, Database: "conn"}
	conn, err := dbCfg.GetConnectionString()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u%40x:from-file@db:5432/conn?sslmode=require", conn)

	_, err = (&WorkplaceSearchConfig{APIKeyFile: filepath.Join(dir, "missing")}).GetAPIKey()
	assert.Error(t, err)
}
