package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnvOverride(t *testing.T) {
	t.Setenv("CHIRPER_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	// 显式指定的文件不存在时应报错
	require.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "database:\n" +
		"  driver: sqlite\n" +
		"  dsn: \"file::memory:\"\n" +
		"search:\n" +
		"  max_per_page: 50\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CHIRPER_CONFIG", path)
	t.Setenv("CHIRPER_SEARCH_DEFAULT_PER_PAGE", "5")
	t.Setenv("CHIRPER_DATABASE_TWEETS_DSN", "file:tweets?mode=memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 50, cfg.Search.MaxPerPage)
	assert.Equal(t, 5, cfg.Search.DefaultPerPage)
	assert.Equal(t, 300*time.Second, cfg.Cache.ProfileTTL)
	assert.Equal(t, "file::memory:", cfg.Database.UsersDSN)
	assert.Equal(t, "file:tweets?mode=memory", cfg.Database.TweetsDSN)
	assert.Equal(t, "local", cfg.Outbox.Transport)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Driver: "mysql"},
		Search:   SearchConfig{DefaultPerPage: 20, MaxPerPage: 100},
		Outbox:   OutboxConfig{Transport: "local"},
	}
	assert.Error(t, cfg.Validate())

	cfg.Database.Driver = "postgres"
	assert.NoError(t, cfg.Validate())

	cfg.Search.DefaultPerPage = 200
	assert.Error(t, cfg.Validate())

	cfg.Search.DefaultPerPage = 20
	cfg.Outbox.Transport = "kafka"
	assert.Error(t, cfg.Validate())
}
