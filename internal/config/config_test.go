package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

var testRequired = map[string]string{
	EnvRegion:       "ny",
	EnvStorageZone:  "site-bucket",
	EnvStorageToken: "storage-token",
	EnvPullZoneID:   "12345",
	EnvAPIKey:       "bunny-api-key",
	EnvCacheZoneID:  "cf-zone",
	EnvCacheAPIKey:  "cf-key",
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	for key, value := range testRequired {
		t.Setenv(key, value)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	keys := append(RequiredKeys(),
		EnvCacheEmail, EnvDistDir, EnvRepoDir, EnvBuildCommand,
		EnvUploadTimeout, EnvPurgeTimeout, EnvGitTimeout,
		EnvUploadConcurrency, EnvUploadRPS, EnvUploadBurst, EnvExtensions,
		EnvLogFormat, EnvVerbose,
	)
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	setRequiredEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DistDir != defaultDistDir {
		t.Fatalf("expected default dist dir %s, got %s", defaultDistDir, cfg.DistDir)
	}
	if cfg.UploadConcurrency != 1 {
		t.Fatalf("expected sequential uploads by default, got %d", cfg.UploadConcurrency)
	}
	if cfg.UploadTimeout != 2*time.Minute || cfg.PurgeTimeout != 30*time.Second {
		t.Fatalf("unexpected timeouts: upload=%s purge=%s", cfg.UploadTimeout, cfg.PurgeTimeout)
	}
	if len(cfg.Extensions) == 0 || !slices.Contains(cfg.Extensions, "woff2") {
		t.Fatalf("expected default allowlist, got %v", cfg.Extensions)
	}
	if cfg.Region != "ny" || cfg.CacheAPIKey != "cf-key" {
		t.Fatalf("required values not loaded: %+v", cfg)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("expected json log format by default, got %s", cfg.LogFormat)
	}
}

func TestLoadReportsEachMissingKey(t *testing.T) {
	for _, key := range RequiredKeys() {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			setRequiredEnv(t)
			t.Setenv(key, "")

			_, err := Load(nil)
			var missing *MissingConfigError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingConfigError, got %v", err)
			}
			if !slices.Equal(missing.Keys, []string{key}) {
				t.Fatalf("expected only %s to be reported, got %v", key, missing.Keys)
			}
		})
	}
}

func TestLoadReportsAllMissingKeysAtOnce(t *testing.T) {
	clearEnv(t)

	_, err := Load(nil)
	var missing *MissingConfigError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingConfigError, got %v", err)
	}
	if !slices.Equal(missing.Keys, RequiredKeys()) {
		t.Fatalf("expected %v, got %v", RequiredKeys(), missing.Keys)
	}
}

func TestLoadStripsQuotes(t *testing.T) {
	clearEnv(t)
	setRequiredEnv(t)
	t.Setenv(EnvStorageToken, `"quoted-token"`)
	t.Setenv(EnvRegion, `'de'`)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.StorageToken != "quoted-token" {
		t.Fatalf("expected quotes stripped, got %q", cfg.StorageToken)
	}
	if cfg.Region != "de" {
		t.Fatalf("expected quotes stripped, got %q", cfg.Region)
	}
}

func TestLoadQuotesOnlyValueCountsAsMissing(t *testing.T) {
	clearEnv(t)
	setRequiredEnv(t)
	t.Setenv(EnvAPIKey, `""`)

	_, err := Load(nil)
	var missing *MissingConfigError
	if !errors.As(err, &missing) || !slices.Contains(missing.Keys, EnvAPIKey) {
		t.Fatalf("expected %s to be reported missing, got %v", EnvAPIKey, err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "deploy.env", `BUNNY_REGION="la"
BUNNY_STORAGE_ZONE=site-bucket
BUNNY_STORAGE_TOKEN='file-token'
BUNNY_PULLZONE_ID=42
BUNNY_API_KEY=key
CLOUDFLARE_ZONE_ID=zone
CLOUDFLARE_API_KEY=cfkey
`)
	t.Setenv(EnvPullZoneID, "99")

	cfg, err := Load(&CLIOverrides{EnvFile: path})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Region != "la" || cfg.StorageToken != "file-token" {
		t.Fatalf("env file values not applied: %+v", cfg)
	}
	if cfg.PullZoneID != "99" {
		t.Fatalf("expected process environment to win over env file, got %s", cfg.PullZoneID)
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	clearEnv(t)
	setRequiredEnv(t)

	if _, err := Load(&CLIOverrides{EnvFile: filepath.Join(t.TempDir(), "nope.env")}); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestLoadYAMLAndCLIOverrides(t *testing.T) {
	clearEnv(t)
	setRequiredEnv(t)
	t.Setenv(EnvDistDir, "public")

	path := writeFile(t, "sitepublish.yaml", `
region: primary
dist_dir: build
timeouts:
  upload: 45s
upload:
  concurrency: 4
  rps: 10
  extensions: [HTML, .css]
`)

	dist := "out"
	concurrency := 2
	cfg, err := Load(&CLIOverrides{ConfigFile: path, DistDir: &dist, UploadConcurrency: &concurrency})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Region != "primary" {
		t.Fatalf("expected YAML region to override env, got %s", cfg.Region)
	}
	if cfg.DistDir != "out" {
		t.Fatalf("expected CLI dist dir, got %s", cfg.DistDir)
	}
	if cfg.UploadConcurrency != 2 {
		t.Fatalf("expected CLI concurrency, got %d", cfg.UploadConcurrency)
	}
	if cfg.UploadTimeout != 45*time.Second || cfg.UploadRPS != 10 {
		t.Fatalf("YAML upload settings not applied: %s %v", cfg.UploadTimeout, cfg.UploadRPS)
	}
	if want := []string{"html", "css"}; !slices.Equal(cfg.Extensions, want) {
		t.Fatalf("expected %v, got %v", want, cfg.Extensions)
	}
}

func TestLoadRejectsInvalidCLIValues(t *testing.T) {
	clearEnv(t)
	setRequiredEnv(t)

	zero := 0
	if _, err := Load(&CLIOverrides{UploadConcurrency: &zero}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	format := "xml"
	if _, err := Load(&CLIOverrides{LogFormat: &format}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for log format, got %v", err)
	}
}

func TestParseExtensions(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		got, err := parseExtensions(" .HTML, css ,, js")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []string{"html", "css", "js"}; !slices.Equal(got, want) {
			t.Fatalf("unexpected extensions: %v", got)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := parseExtensions(" , "); err == nil {
			t.Fatalf("expected error for empty list")
		}
	})
}
