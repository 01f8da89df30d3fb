package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvBizinfoKey, EnvTelegramToken, EnvTelegramChatID, EnvGeminiKey,
		EnvSMTPServer, EnvSMTPPort, EnvSMTPUser, EnvSMTPPass, EnvSMTPFrom, EnvSMTPTo,
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.State.Driver)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "telegram", cfg.NotifyDriver)
	assert.Equal(t, 40, cfg.IRISLimit)
	assert.Equal(t, 200, cfg.BizinfoResultCount)

	biz := cfg.Sources[SourceBizinfo]
	assert.Equal(t, "item", biz.Mode)
	assert.Equal(t, 30, biz.MaxPerRun)
	assert.Equal(t, 500*time.Millisecond, biz.Pace)
	assert.Equal(t, "seen.json", biz.StateFile)

	ks := cfg.Sources[SourceKStartup]
	assert.Equal(t, "digest", ks.Mode)
	assert.Equal(t, 600*time.Millisecond, ks.Pace)
	assert.Equal(t, 10, ks.DigestMax)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv(EnvBizinfoKey, "  key-with-spaces \n")
	t.Setenv(EnvTelegramChatID, "@grants")
	t.Setenv("SOURCES_IRIS_ENABLED", "false")
	t.Setenv("SOURCES_KSTARTUP_MAX_PER_RUN", "5")
	t.Setenv("BIZINFO_HASHTAGS", "전북,충남")
	t.Setenv("STATE_DRIVER", "SQLite")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "key-with-spaces", cfg.BizinfoKey)
	assert.Equal(t, "@grants", cfg.TelegramChatID)
	assert.False(t, cfg.Sources[SourceIRIS].Enabled)
	assert.Equal(t, 5, cfg.Sources[SourceKStartup].MaxPerRun)
	assert.Equal(t, []string{"전북", "충남"}, cfg.BizinfoHashtags)
	assert.Equal(t, "sqlite", cfg.State.Driver)
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "grantwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
state:
  driver: redis
  redis_addr: redis:6379
sources:
  bizinfo:
    mode: digest
    pace: 2s
kstartup:
  urls:
    - https://www.k-startup.go.kr/a
    - https://www.k-startup.go.kr/b
notify:
  driver: console
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.State.Driver)
	assert.Equal(t, "redis:6379", cfg.State.RedisAddr)
	assert.Equal(t, "digest", cfg.Sources[SourceBizinfo].Mode)
	assert.Equal(t, 2*time.Second, cfg.Sources[SourceBizinfo].Pace)
	assert.Equal(t, []string{"https://www.k-startup.go.kr/a", "https://www.k-startup.go.kr/b"}, cfg.KStartupURLs)
	assert.Equal(t, "console", cfg.NotifyDriver)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestValidateMissing(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate(SourceNames, false)
	var missing *MissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{EnvBizinfoKey, EnvTelegramToken, EnvTelegramChatID}, missing.Vars)
	assert.Contains(t, err.Error(), EnvTelegramChatID)

	// K-Startup and IRIS need no API key; dry runs need no delivery secrets.
	require.NoError(t, cfg.Validate([]string{SourceKStartup, SourceIRIS}, true))

	cfg.SummaryEnabled = true
	err = cfg.Validate([]string{SourceIRIS}, true)
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{EnvGeminiKey}, missing.Vars)
}

func TestValidateDrivers(t *testing.T) {
	cfg := &Config{
		State:        StateConfig{Driver: "etcd"},
		NotifyDriver: "console",
		Sources:      map[string]SourceConfig{SourceIRIS: {Mode: "digest"}},
	}
	require.ErrorIs(t, cfg.Validate([]string{SourceIRIS}, false), ErrUnknownDriver)

	cfg.State.Driver = "file"
	cfg.NotifyDriver = "pigeon"
	require.ErrorIs(t, cfg.Validate([]string{SourceIRIS}, false), ErrUnknownDriver)

	cfg.NotifyDriver = "email"
	err := cfg.Validate([]string{SourceIRIS}, false)
	var missing *MissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{EnvSMTPServer, EnvSMTPFrom, EnvSMTPTo}, missing.Vars)

	cfg.NotifyDriver = "console"
	cfg.Sources[SourceIRIS] = SourceConfig{Mode: "weekly"}
	require.Error(t, cfg.Validate([]string{SourceIRIS}, false))
}

func TestSelected(t *testing.T) {
	cfg := &Config{Sources: map[string]SourceConfig{
		SourceBizinfo:  {Enabled: true},
		SourceKStartup: {Enabled: false},
		SourceIRIS:     {Enabled: true},
	}}

	got, err := cfg.Selected(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{SourceBizinfo, SourceIRIS}, got)

	got, err = cfg.Selected([]string{"IRIS", "kstartup"})
	require.NoError(t, err)
	assert.Equal(t, []string{SourceKStartup, SourceIRIS}, got)

	_, err = cfg.Selected([]string{"nara"})
	require.ErrorIs(t, err, ErrUnknownSource)
}
