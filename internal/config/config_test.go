package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	t.Setenv("GOOGLE_KEY", "")
	t.Setenv("SECTORSCAN_PROVIDER_API_KEY", "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "infirmier libéral", cfg.Search.Keyword)
	assert.Equal(t, "Paris, France", cfg.Search.Zone)
	assert.Equal(t, 3, cfg.Search.GridSize)
	assert.InDelta(t, 70.0, cfg.Search.BlockSizeKM, 0.001)
	assert.InDelta(t, 100.0, cfg.Search.MinRadiusMeters, 0.001)
	assert.Equal(t, 2, cfg.Search.RequestsPerSecond)
	assert.Equal(t, 3, cfg.Search.DensePages)
	assert.False(t, cfg.Search.HasCenter())
	assert.Equal(t, 2*time.Second, cfg.Provider.PageDelay)
	assert.Equal(t, "resultats.csv", cfg.Output.CSV)
	assert.Equal(t, "api_logs.csv", cfg.Output.CallLog)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Provider.APIKey)

	require.NoError(t, cfg.Validate())
	err = cfg.RequireCredential()
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestLoadFromYAML(t *testing.T) {
	dir := inTempDir(t)

	yaml := `
search:
  keyword: kinésithérapeute
  zone: Lyon, France
  grid_size: 5
  requests_per_second: 4
provider:
  page_delay: 500ms
output:
  csv: kines
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sectorscan.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "kinésithérapeute", cfg.Search.Keyword)
	assert.Equal(t, "Lyon, France", cfg.Search.Zone)
	assert.Equal(t, 5, cfg.Search.GridSize)
	assert.Equal(t, 4, cfg.Search.RequestsPerSecond)
	assert.Equal(t, 500*time.Millisecond, cfg.Provider.PageDelay)
	assert.Equal(t, "kines.csv", cfg.Output.CSV)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.InDelta(t, 100.0, cfg.Search.MinRadiusMeters, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sectorscan.yaml"), []byte("search:\n  grid_size: 5\n"), 0644))
	t.Setenv("SECTORSCAN_SEARCH_GRID_SIZE", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.GridSize)
}

func TestLoadCredentialAlias(t *testing.T) {
	inTempDir(t)
	t.Setenv("GOOGLE_KEY", "abc123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.Provider.APIKey)
	assert.NoError(t, cfg.RequireCredential())
}

func TestLoadFlagOverrides(t *testing.T) {
	inTempDir(t)
	t.Setenv("SECTORSCAN_SEARCH_GRID_SIZE", "7")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("grid", 3, "")
	fs.String("keyword", "", "")
	require.NoError(t, fs.Parse([]string{"--grid", "9"}))

	cfg, err := Load(WithFlag("search.grid_size", fs.Lookup("grid")), WithFlag("search.keyword", fs.Lookup("keyword")))
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Search.GridSize)
	assert.Equal(t, "infirmier libéral", cfg.Search.Keyword)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  keyword: dentiste\n"), 0644))

	cfg, err := Load(WithConfigFile(path))
	require.NoError(t, err)
	assert.Equal(t, "dentiste", cfg.Search.Keyword)

	_, err = Load(WithConfigFile(filepath.Join(dir, "missing.yaml")))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	inTempDir(t)
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name string
		mut  func(*Config)
		key  string
	}{
		{"empty keyword", func(c *Config) { c.Search.Keyword = "  " }, "search.keyword"},
		{"zero grid", func(c *Config) { c.Search.GridSize = 0 }, "search.grid_size"},
		{"negative block", func(c *Config) { c.Search.BlockSizeKM = -1 }, "search.block_size_km"},
		{"zero radius", func(c *Config) { c.Search.MinRadiusMeters = 0 }, "search.min_radius_m"},
		{"zero rps", func(c *Config) { c.Search.RequestsPerSecond = 0 }, "search.requests_per_second"},
		{"bad lat", func(c *Config) { c.Search.CenterLat = 91 }, "search.center_lat"},
		{"polar lat", func(c *Config) { c.Search.CenterLat = -89.5 }, "search.center_lat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mut(&c)
			err := c.Validate()
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.key, ce.Key)
		})
	}
}

func TestNormalizeOutputPath(t *testing.T) {
	assert.Equal(t, "resultats.csv", NormalizeOutputPath(""))
	assert.Equal(t, "out.csv", NormalizeOutputPath("out"))
	assert.Equal(t, "OUT.CSV", NormalizeOutputPath("OUT.CSV"))
	assert.Equal(t, "dir/x.csv", NormalizeOutputPath(" dir/x.csv "))
}

func TestParams(t *testing.T) {
	inTempDir(t)
	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.Params()
	assert.Equal(t, "infirmier libéral", p.Keyword)
	assert.Equal(t, 3, p.GridSize)
	assert.Equal(t, "resultats.csv", p.OutputPath)
	assert.Equal(t, 3, p.DensePages)
}

func TestInitLogger(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "session.log")
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json", File: path}))
	zap.L().Info("hello")
	_ = zap.L().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	zap.ReplaceGlobals(zap.NewNop())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
