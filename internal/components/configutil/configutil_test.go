package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Root    string `json:"root"`
	Port    int    `json:"port"`
	Verbose bool   `json:"verbose"`
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
}

func TestReadConfigMergesLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{
		// trailing commas and comments are allowed
		root: "downloads",
		port: 8000,
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ port: 9000 }`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, testConfig{Root: "downloads", Port: 9000}, cfg)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestReadConfigOr(t *testing.T) {
	dir := t.TempDir()
	fallback := testConfig{Root: "temp_downloads", Port: 8000}

	cfg, err := ReadConfigOr(filepath.Join(dir, "config.json5"), fallback)
	require.NoError(t, err)
	require.Equal(t, fallback, cfg)

	writeFile(t, filepath.Join(dir, "config.json5"), `{ port: 8080 }`)
	cfg, err = ReadConfigOr(filepath.Join(dir, "config.json5"), fallback)
	require.NoError(t, err)
	require.Equal(t, testConfig{Root: "temp_downloads", Port: 8080}, cfg)
}

func TestLoadEnvIgnoresMissingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "PASTPAPERS_TEST_VALUE=loaded\n")
	t.Cleanup(func() { os.Unsetenv("PASTPAPERS_TEST_VALUE") })

	err := LoadEnv(filepath.Join(dir, "missing.env"), filepath.Join(dir, ".env"))
	require.NoError(t, err)
	require.Equal(t, "loaded", os.Getenv("PASTPAPERS_TEST_VALUE"))
}
