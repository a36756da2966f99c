package database

import (
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	t.Parallel()

	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	require.Len(t, downs, len(ups))
	for i, up := range ups {
		assert.Equal(t, strings.TrimSuffix(up, ".up.sql"), strings.TrimSuffix(downs[i], ".down.sql"))
	}

	_, err = migrationsFromSource()
	assert.NoError(t, err)
}

func TestDriverURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/db?sslmode=disable", "pgx5://u:p@localhost:5432/db?sslmode=disable"},
		{"postgresql://localhost/db", "pgx5://localhost/db"},
		{"pgx5://localhost/db", "pgx5://localhost/db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, driverURL(tt.in))
	}
}

// TestMigrations steps every migration up and down against a live database.
// It runs only when ZOOM_CONNECTOR_TEST_DATABASE_URL points at a scratch database.
func TestMigrations(t *testing.T) {
	connString := os.Getenv("ZOOM_CONNECTOR_TEST_DATABASE_URL")
	if connString == "" || testing.Short() {
		t.Skip("ZOOM_CONNECTOR_TEST_DATABASE_URL not set")
	}

	m, err := NewFromConnectionString(connString)
	require.NoError(t, err)
	defer m.Close()

	fnames, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)

	require.NoError(t, MigrateDown(m, 0))
	for i := 1; i <= len(fnames); i++ {
		assert.NoError(t, m.Steps(i))
		assert.NoError(t, m.Steps(-i))
		assert.NoError(t, m.Steps(i))
		require.NoError(t, MigrateDown(m, 0))
	}
	require.NoError(t, MigrateUp(m))
	require.NoError(t, MigrateUp(m))
}
