// Package config loads host configuration from defaults, .env files, an
// optional YAML file, the environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"elicate/internal/logger"
)

// EnvPrefix prefixes every Elicate environment variable.
const EnvPrefix = "ELICATE_"

// Setting names. Each is read from ELICATE_<NAME> in .env files and the
// environment, and from the flag or YAML key of the same name in lower case
// with dashes.
const (
	KeyStorage     = "STORAGE"
	KeyStoragePath = "STORAGE_PATH"
	KeyRedisURL    = "REDIS_URL"
	KeyProvider    = "PROVIDER"
	KeyModel       = "MODEL"
	KeyLogLevel    = "LOG_LEVEL"
	// KeyTokenEncoding names the tiktoken encoding the context trimmer counts
	// with. Empty selects the byte-based estimate.
	KeyTokenEncoding = "TOKEN_ENCODING"
)

// DefaultTokenEncoding is the encoding used by current OpenAI chat models.
const DefaultTokenEncoding = "cl100k_base"

var settingKeys = []string{KeyStorage, KeyStoragePath, KeyRedisURL, KeyProvider, KeyModel, KeyLogLevel, KeyTokenEncoding}

// providerKeyVars lists the conventional API key variables per provider, most
// specific first.
var providerKeyVars = map[string][]string{
	"openai":    {"ELICATE_OPENAI_API_KEY", "OPENAI_API_KEY"},
	"anthropic": {"ELICATE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
	"gemini":    {"ELICATE_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// FlagName returns the flag and YAML key for a setting, e.g. "storage-path".
func FlagName(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "_", "-")
}

// Options controls where Load looks.
type Options struct {
	// ConfigDir defaults to <user config dir>/elicate.
	ConfigDir string
	// WorkDir holds the local .env; defaults to the working directory.
	WorkDir string
	// Environ defaults to os.Environ.
	Environ func() []string
	// Flags are consulted last; only flags the user changed take effect.
	Flags *viper.Viper
	// SkipFiles ignores .env and YAML files, for tests.
	SkipFiles bool
}

// Sources records which files contributed to the configuration.
type Sources struct {
	ConfigEnvPath   string
	ConfigEnvLoaded bool
	LocalEnvPath    string
	LocalEnvLoaded  bool
	YAMLPath        string
	YAMLLoaded      bool
}

// Config is the merged host configuration.
type Config struct {
	ConfigDir string
	Sources   Sources
	values    map[string]string
}

// Load merges, from lowest to highest priority: built-in defaults, the config
// directory's elicate.yaml, the config directory's .env, the local .env,
// environment variables, and changed flags.
func Load(opts Options) (*Config, error) {
	if opts.ConfigDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate config directory: %w", err)
		}
		opts.ConfigDir = filepath.Join(base, "elicate")
	}
	if opts.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		opts.WorkDir = wd
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}

	c := &Config{ConfigDir: opts.ConfigDir, values: defaults(opts.ConfigDir)}

	if !opts.SkipFiles {
		yamlPath := filepath.Join(opts.ConfigDir, "elicate.yaml")
		loaded, err := c.loadYAML(yamlPath)
		if err != nil {
			return nil, err
		}
		c.Sources.YAMLPath, c.Sources.YAMLLoaded = yamlPath, loaded

		configEnv := filepath.Join(opts.ConfigDir, ".env")
		if loaded, err = c.loadDotEnv(configEnv); err != nil {
			return nil, err
		}
		c.Sources.ConfigEnvPath, c.Sources.ConfigEnvLoaded = configEnv, loaded

		localEnv := filepath.Join(opts.WorkDir, ".env")
		if loaded, err = c.loadDotEnv(localEnv); err != nil {
			return nil, err
		}
		c.Sources.LocalEnvPath, c.Sources.LocalEnvLoaded = localEnv, loaded
	}

	c.loadEnviron(opts.Environ())

	if opts.Flags != nil {
		for _, key := range settingKeys {
			name := FlagName(key)
			if opts.Flags.IsSet(name) {
				if v := opts.Flags.GetString(name); v != "" {
					c.values[EnvPrefix+key] = v
				}
			}
		}
	}

	logger.Debug("Configuration loaded",
		"config_dir", c.ConfigDir,
		"config_env", c.Sources.ConfigEnvLoaded,
		"local_env", c.Sources.LocalEnvLoaded,
		"yaml", c.Sources.YAMLLoaded)
	return c, nil
}

func defaults(configDir string) map[string]string {
	return map[string]string{
		EnvPrefix + KeyStorage:       "memory",
		EnvPrefix + KeyStoragePath:   filepath.Join(configDir, "overrides.yaml"),
		EnvPrefix + KeyProvider:      "openai",
		EnvPrefix + KeyModel:         "",
		EnvPrefix + KeyLogLevel:      "info",
		EnvPrefix + KeyTokenEncoding: DefaultTokenEncoding,
	}
}

func (c *Config) loadYAML(path string) (bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, key := range settingKeys {
		if name := FlagName(key); v.IsSet(name) {
			c.values[EnvPrefix+key] = v.GetString(name)
		}
	}
	for provider := range providerKeyVars {
		if name := provider + "-api-key"; v.IsSet(name) {
			c.values[providerKeyVars[provider][0]] = v.GetString(name)
		}
	}
	return true, nil
}

func (c *Config) loadDotEnv(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read .env file %s: %w", path, err)
	}
	envMap, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return false, fmt.Errorf("failed to parse .env file %s: %w", path, err)
	}
	for key, value := range envMap {
		c.values[key] = value
	}
	return true, nil
}

// loadEnviron copies ELICATE_* and provider key variables; everything else in
// the process environment is ignored.
func (c *Config) loadEnviron(environ []string) {
	known := make(map[string]struct{})
	for _, vars := range providerKeyVars {
		for _, v := range vars {
			known[v] = struct{}{}
		}
	}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		_, isKey := known[key]
		if isKey || strings.HasPrefix(key, EnvPrefix) {
			c.values[key] = value
		}
	}
}

// Get returns the merged value of a setting such as KeyStorage.
func (c *Config) Get(key string) string {
	return c.values[EnvPrefix+key]
}

// Storage returns the storage backend kind.
func (c *Config) Storage() string { return c.Get(KeyStorage) }

// StorageLocation returns the path or URL the storage backend opens.
func (c *Config) StorageLocation() string {
	if c.Storage() == "redis" {
		return c.Get(KeyRedisURL)
	}
	return c.Get(KeyStoragePath)
}

// Provider returns the default model provider.
func (c *Config) Provider() string { return c.Get(KeyProvider) }

// Model returns the default model. Empty means each provider's own default.
func (c *Config) Model() string { return c.Get(KeyModel) }

// LogLevel returns the configured log level.
func (c *Config) LogLevel() string { return c.Get(KeyLogLevel) }

// TokenEncoding returns the tiktoken encoding name, or "" for estimates.
func (c *Config) TokenEncoding() string { return c.Get(KeyTokenEncoding) }

// APIKey returns the configured key for provider, or "" when none is set.
func (c *Config) APIKey(provider string) string {
	for _, name := range providerKeyVars[strings.ToLower(provider)] {
		if v := c.values[name]; v != "" {
			return v
		}
	}
	return ""
}
