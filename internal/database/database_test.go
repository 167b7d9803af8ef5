package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tildaslashalef/shepherd/internal/config"
)

func TestBuildSQLiteDSN(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Path:            "/tmp/shepherd.db",
		JournalMode:     "WAL",
		SynchronousMode: "NORMAL",
		BusyTimeout:     5000,
		ForeignKeys:     true,
	}

	dsn := buildSQLiteDSN(cfg)
	assert.True(t, strings.HasPrefix(dsn, "/tmp/shepherd.db?"))
	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_synchronous=NORMAL")
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.Contains(t, dsn, "_foreign_keys=true")
	assert.Contains(t, dsn, "cache=shared")
}

func TestBuildSQLiteDSNMemory(t *testing.T) {
	assert.Equal(t, ":memory:", buildSQLiteDSN(&config.DatabaseConfig{Path: ":memory:"}))
	assert.Equal(t, "file::memory:?cache=shared", buildSQLiteDSN(&config.DatabaseConfig{Path: "file::memory:?cache=shared"}))
}
