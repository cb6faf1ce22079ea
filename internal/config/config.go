package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/sitepublish/internal/selector"
)

// Environment keys for the required settings.
const (
	EnvRegion       = "BUNNY_REGION"
	EnvStorageZone  = "BUNNY_STORAGE_ZONE"
	EnvStorageToken = "BUNNY_STORAGE_TOKEN"
	EnvPullZoneID   = "BUNNY_PULLZONE_ID"
	EnvAPIKey       = "BUNNY_API_KEY"
	EnvCacheZoneID  = "CLOUDFLARE_ZONE_ID"
	EnvCacheAPIKey  = "CLOUDFLARE_API_KEY"
)

// Environment keys for the optional settings.
const (
	EnvCacheEmail        = "CLOUDFLARE_EMAIL"
	EnvDistDir           = "SITEPUBLISH_DIST_DIR"
	EnvRepoDir           = "SITEPUBLISH_REPO_DIR"
	EnvBuildCommand      = "SITEPUBLISH_BUILD_COMMAND"
	EnvUploadTimeout     = "SITEPUBLISH_UPLOAD_TIMEOUT"
	EnvPurgeTimeout      = "SITEPUBLISH_PURGE_TIMEOUT"
	EnvGitTimeout        = "SITEPUBLISH_GIT_TIMEOUT"
	EnvUploadConcurrency = "SITEPUBLISH_UPLOAD_CONCURRENCY"
	EnvUploadRPS         = "SITEPUBLISH_UPLOAD_RPS"
	EnvUploadBurst       = "SITEPUBLISH_UPLOAD_BURST"
	EnvExtensions        = "SITEPUBLISH_EXTENSIONS"
	EnvLogFormat         = "SITEPUBLISH_LOG_FORMAT"
	EnvVerbose           = "SITEPUBLISH_VERBOSE"
	EnvGitUsername       = "GIT_USERNAME"
	EnvGitToken          = "GIT_TOKEN"
	EnvGitAuthorName     = "GIT_AUTHOR_NAME"
	EnvGitAuthorEmail    = "GIT_AUTHOR_EMAIL"
)

const (
	defaultEnvFile           = ".env"
	defaultDistDir           = "dist"
	defaultRepoDir           = "."
	defaultLogFormat         = "json"
	defaultUploadConcurrency = 1
	defaultUploadBurst       = 1
)

var requiredKeys = []string{
	EnvRegion,
	EnvStorageZone,
	EnvStorageToken,
	EnvPullZoneID,
	EnvAPIKey,
	EnvCacheZoneID,
	EnvCacheAPIKey,
}

var quoteStripper = strings.NewReplacer(`"`, "", `'`, "")

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > env file > Defaults
type Config struct {
	Region       string `env:"BUNNY_REGION" validate:"required"`
	StorageZone  string `env:"BUNNY_STORAGE_ZONE" validate:"required"`
	StorageToken string `env:"BUNNY_STORAGE_TOKEN" validate:"required"`
	PullZoneID   string `env:"BUNNY_PULLZONE_ID" validate:"required"`
	APIKey       string `env:"BUNNY_API_KEY" validate:"required"`
	CacheZoneID  string `env:"CLOUDFLARE_ZONE_ID" validate:"required"`
	CacheAPIKey  string `env:"CLOUDFLARE_API_KEY" validate:"required"`
	CacheEmail   string `env:"CLOUDFLARE_EMAIL"`

	DistDir      string `env:"SITEPUBLISH_DIST_DIR" validate:"required"`
	RepoDir      string `env:"SITEPUBLISH_REPO_DIR" validate:"required"`
	BuildCommand string `env:"SITEPUBLISH_BUILD_COMMAND"`

	UploadTimeout     time.Duration `env:"SITEPUBLISH_UPLOAD_TIMEOUT"`
	PurgeTimeout      time.Duration `env:"SITEPUBLISH_PURGE_TIMEOUT"`
	GitTimeout        time.Duration `env:"SITEPUBLISH_GIT_TIMEOUT"`
	UploadConcurrency int           `env:"SITEPUBLISH_UPLOAD_CONCURRENCY" validate:"min=1"`
	UploadRPS         float64       `env:"SITEPUBLISH_UPLOAD_RPS" validate:"gte=0"`
	UploadBurst       int           `env:"SITEPUBLISH_UPLOAD_BURST" validate:"min=1"`
	Extensions        []string      `env:"SITEPUBLISH_EXTENSIONS" validate:"min=1"`

	GitUsername    string `env:"GIT_USERNAME"`
	GitToken       string `env:"GIT_TOKEN"`
	GitAuthorName  string `env:"GIT_AUTHOR_NAME"`
	GitAuthorEmail string `env:"GIT_AUTHOR_EMAIL"`

	LogFormat string `env:"SITEPUBLISH_LOG_FORMAT" validate:"oneof=json console"`
	Verbose   bool   `env:"SITEPUBLISH_VERBOSE"`
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Region       string       `yaml:"region"`
	StorageZone  string       `yaml:"storage_zone"`
	StorageToken string       `yaml:"storage_token"`
	PullZoneID   string       `yaml:"pullzone_id"`
	APIKey       string       `yaml:"api_key"`
	CacheZoneID  string       `yaml:"cache_zone_id"`
	CacheAPIKey  string       `yaml:"cache_api_key"`
	CacheEmail   string       `yaml:"cache_email"`
	DistDir      string       `yaml:"dist_dir"`
	RepoDir      string       `yaml:"repo_dir"`
	BuildCommand string       `yaml:"build_command"`
	LogFormat    string       `yaml:"log_format"`
	Timeouts     yamlTimeouts `yaml:"timeouts"`
	Upload       yamlUpload   `yaml:"upload"`
	Git          yamlGit      `yaml:"git"`
}

// yamlTimeouts represents the timeouts section in YAML.
type yamlTimeouts struct {
	Upload string `yaml:"upload"`
	Purge  string `yaml:"purge"`
	Git    string `yaml:"git"`
}

// yamlUpload represents the upload section in YAML.
type yamlUpload struct {
	Concurrency *int     `yaml:"concurrency"`
	RPS         *float64 `yaml:"rps"`
	Burst       *int     `yaml:"burst"`
	Extensions  []string `yaml:"extensions"`
}

type yamlGit struct {
	Username    string `yaml:"username"`
	Token       string `yaml:"token"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile        string
	EnvFile           string
	DistDir           *string
	RepoDir           *string
	BuildCommand      *string
	UploadConcurrency *int
	LogFormat         *string
	Verbose           *bool
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > env file > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	envFile := ""
	if overrides != nil {
		envFile = overrides.EnvFile
	}
	fileValues, err := readEnvFile(envFile)
	if err != nil {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	applyEnvConfig(&cfg, envLookup(fileValues))

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// RequiredKeys returns the environment keys that must be set before any
// publish action runs, in declaration order.
func RequiredKeys() []string {
	out := make([]string, len(requiredKeys))
	copy(out, requiredKeys)
	return out
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		DistDir:           defaultDistDir,
		RepoDir:           defaultRepoDir,
		UploadTimeout:     2 * time.Minute,
		PurgeTimeout:      30 * time.Second,
		GitTimeout:        2 * time.Minute,
		UploadConcurrency: defaultUploadConcurrency,
		UploadBurst:       defaultUploadBurst,
		Extensions:        append([]string(nil), selector.DefaultExtensions...),
		LogFormat:         defaultLogFormat,
	}
}

// readEnvFile parses KEY=VALUE pairs. An empty path falls back to .env in the
// working directory when it exists.
func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return map[string]string{}, nil
		}
		path = defaultEnvFile
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

// envLookup resolves a key from the process environment first and the env
// file second.
func envLookup(fileValues map[string]string) func(string) string {
	return func(key string) string {
		if v := sanitize(os.Getenv(key)); v != "" {
			return v
		}
		return sanitize(fileValues[key])
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config, lookup func(string) string) {
	setString(&cfg.Region, lookup(EnvRegion))
	setString(&cfg.StorageZone, lookup(EnvStorageZone))
	setString(&cfg.StorageToken, lookup(EnvStorageToken))
	setString(&cfg.PullZoneID, lookup(EnvPullZoneID))
	setString(&cfg.APIKey, lookup(EnvAPIKey))
	setString(&cfg.CacheZoneID, lookup(EnvCacheZoneID))
	setString(&cfg.CacheAPIKey, lookup(EnvCacheAPIKey))
	setString(&cfg.CacheEmail, lookup(EnvCacheEmail))
	setString(&cfg.DistDir, lookup(EnvDistDir))
	setString(&cfg.RepoDir, lookup(EnvRepoDir))
	setString(&cfg.BuildCommand, lookup(EnvBuildCommand))
	setString(&cfg.GitUsername, lookup(EnvGitUsername))
	setString(&cfg.GitToken, lookup(EnvGitToken))
	setString(&cfg.GitAuthorName, lookup(EnvGitAuthorName))
	setString(&cfg.GitAuthorEmail, lookup(EnvGitAuthorEmail))
	setString(&cfg.LogFormat, strings.ToLower(lookup(EnvLogFormat)))

	setDuration(&cfg.UploadTimeout, lookup(EnvUploadTimeout))
	setDuration(&cfg.PurgeTimeout, lookup(EnvPurgeTimeout))
	setDuration(&cfg.GitTimeout, lookup(EnvGitTimeout))

	if raw := lookup(EnvUploadConcurrency); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.UploadConcurrency = value
		}
	}

	if raw := lookup(EnvUploadRPS); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value >= 0 {
			cfg.UploadRPS = value
		}
	}

	if raw := lookup(EnvUploadBurst); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.UploadBurst = value
		}
	}

	if raw := lookup(EnvExtensions); raw != "" {
		if exts, err := parseExtensions(raw); err == nil {
			cfg.Extensions = exts
		}
	}

	if raw := lookup(EnvVerbose); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Verbose = value
		}
	}
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	setString(&cfg.Region, sanitize(yamlCfg.Region))
	setString(&cfg.StorageZone, sanitize(yamlCfg.StorageZone))
	setString(&cfg.StorageToken, sanitize(yamlCfg.StorageToken))
	setString(&cfg.PullZoneID, sanitize(yamlCfg.PullZoneID))
	setString(&cfg.APIKey, sanitize(yamlCfg.APIKey))
	setString(&cfg.CacheZoneID, sanitize(yamlCfg.CacheZoneID))
	setString(&cfg.CacheAPIKey, sanitize(yamlCfg.CacheAPIKey))
	setString(&cfg.CacheEmail, sanitize(yamlCfg.CacheEmail))
	setString(&cfg.DistDir, sanitize(yamlCfg.DistDir))
	setString(&cfg.RepoDir, sanitize(yamlCfg.RepoDir))
	setString(&cfg.BuildCommand, sanitize(yamlCfg.BuildCommand))
	setString(&cfg.LogFormat, strings.ToLower(sanitize(yamlCfg.LogFormat)))
	setString(&cfg.GitUsername, sanitize(yamlCfg.Git.Username))
	setString(&cfg.GitToken, sanitize(yamlCfg.Git.Token))
	setString(&cfg.GitAuthorName, sanitize(yamlCfg.Git.AuthorName))
	setString(&cfg.GitAuthorEmail, sanitize(yamlCfg.Git.AuthorEmail))

	setDuration(&cfg.UploadTimeout, yamlCfg.Timeouts.Upload)
	setDuration(&cfg.PurgeTimeout, yamlCfg.Timeouts.Purge)
	setDuration(&cfg.GitTimeout, yamlCfg.Timeouts.Git)

	if yamlCfg.Upload.Concurrency != nil && *yamlCfg.Upload.Concurrency > 0 {
		cfg.UploadConcurrency = *yamlCfg.Upload.Concurrency
	}

	if yamlCfg.Upload.RPS != nil && *yamlCfg.Upload.RPS >= 0 {
		cfg.UploadRPS = *yamlCfg.Upload.RPS
	}

	if yamlCfg.Upload.Burst != nil && *yamlCfg.Upload.Burst > 0 {
		cfg.UploadBurst = *yamlCfg.Upload.Burst
	}

	if len(yamlCfg.Upload.Extensions) > 0 {
		if exts, err := parseExtensions(strings.Join(yamlCfg.Upload.Extensions, ",")); err == nil {
			cfg.Extensions = exts
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.DistDir != nil {
		setString(&cfg.DistDir, sanitize(*overrides.DistDir))
	}

	if overrides.RepoDir != nil {
		setString(&cfg.RepoDir, sanitize(*overrides.RepoDir))
	}

	if overrides.BuildCommand != nil {
		setString(&cfg.BuildCommand, sanitize(*overrides.BuildCommand))
	}

	if overrides.UploadConcurrency != nil {
		if *overrides.UploadConcurrency <= 0 {
			return fmt.Errorf("%w: concurrency must be >= 1, got %d", ErrInvalidConfig, *overrides.UploadConcurrency)
		}
		cfg.UploadConcurrency = *overrides.UploadConcurrency
	}

	if overrides.LogFormat != nil && *overrides.LogFormat != "" {
		cfg.LogFormat = strings.ToLower(*overrides.LogFormat)
	}

	if overrides.Verbose != nil && *overrides.Verbose {
		cfg.Verbose = true
	}

	return nil
}

// validateConfig validates the final configuration. Missing required keys are
// collected and reported together.
func validateConfig(cfg Config) error {
	err := newValidator().Struct(cfg)

	var verrs validator.ValidationErrors
	if err != nil && !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	var (
		missing []string
		invalid error
	)
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		if invalid == nil {
			invalid = fmt.Errorf("%w: %s failed %q check", ErrInvalidConfig, fe.Field(), fe.Tag())
		}
	}
	if len(missing) > 0 {
		return &MissingConfigError{Keys: missing}
	}
	if invalid != nil {
		return invalid
	}

	if cfg.UploadTimeout <= 0 || cfg.PurgeTimeout <= 0 || cfg.GitTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}

	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("env"); name != "" {
			return name
		}
		return field.Name
	})
	return v
}

// parseExtensions parses a comma-separated allowlist. Entries are
// lower-cased and a leading dot is dropped.
func parseExtensions(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	exts := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(strings.TrimPrefix(sanitize(part), "."))
		if part == "" {
			continue
		}
		exts = append(exts, part)
	}
	if len(exts) == 0 {
		return nil, fmt.Errorf("no extensions provided")
	}
	return exts, nil
}

func sanitize(value string) string {
	return strings.TrimSpace(quoteStripper.Replace(value))
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, raw string) {
	raw = sanitize(raw)
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
	}
}
