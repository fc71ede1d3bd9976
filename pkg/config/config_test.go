package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	unsetenv(t, "MINT_DESK_STORE", "PORT", "MINT_DESK_COLLECTION", "MINT_DESK_CORS_ORIGINS")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "mint-requests", cfg.CollectionPath)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoadConfigReadsEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MINT_DESK_STORE", "firebase")
	t.Setenv("FIREBASE_DATABASE_URL", "https://example-default-rtdb.firebaseio.com/")
	t.Setenv("MINT_DESK_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("MINT_DESK_CHAIN_ID", "137")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DriverFirebase, cfg.StoreDriver)
	assert.Equal(t, int64(137), cfg.ChainID)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestValidateRejectsIncompleteDrivers(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"firebase without url", Config{StoreDriver: DriverFirebase, CollectionPath: "c"}},
		{"postgres without dsn", Config{StoreDriver: DriverPostgres, CollectionPath: "c"}},
		{"unknown driver", Config{StoreDriver: "mongo", CollectionPath: "c"}},
		{"empty collection", Config{StoreDriver: DriverSQLite, SQLitePath: "x.db"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

// unsetenv clears keys for the duration of the test.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}
