package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/temirov/ingest/internal/types"
	"github.com/temirov/ingest/internal/utils"
)

// Cache backend kinds accepted by cache.backend.
const (
	CacheBackendNone   = "none"
	CacheBackendMemory = "memory"
	CacheBackendFile   = "file"
	CacheBackendS3     = "s3"
	CacheBackendBadger = "badger"
	CacheBackendTiered = "tiered"
)

const (
	environmentPrefix                = "INGEST"
	defaultMaxConcurrentAcquisitions = 4
	defaultBuildTimeout              = 60 * time.Second
	defaultCloneRetries              = 3
	defaultFreshnessWindow           = time.Hour
	defaultMemoryEntries             = 128
	defaultTokenizerModel            = "gpt-4o"
	defaultS3Region                  = "us-east-1"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
	// SkipEnvironment disables .env loading and environment overrides.
	SkipEnvironment bool
}

// ApplicationConfiguration holds every setting of the ingestion service.
type ApplicationConfiguration struct {
	Cache  CacheConfiguration  `mapstructure:"cache"`
	Ingest IngestConfiguration `mapstructure:"ingest"`
	Limits LimitsConfiguration `mapstructure:"limits"`
	Tokens TokenConfiguration  `mapstructure:"tokens"`
}

// CacheConfiguration selects and configures the digest cache backend.
type CacheConfiguration struct {
	Backend         string              `mapstructure:"backend"`
	Directory       string              `mapstructure:"dir"`
	MemoryEntries   int                 `mapstructure:"memory_entries"`
	FreshnessWindow time.Duration       `mapstructure:"freshness_window"`
	S3              S3Configuration     `mapstructure:"s3"`
	Badger          BadgerConfiguration `mapstructure:"badger"`
}

// S3Configuration describes an S3 compatible object store.
type S3Configuration struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    *bool  `mapstructure:"use_ssl"`
	Prefix    string `mapstructure:"prefix"`
}

// BadgerConfiguration locates the embedded key-value store.
type BadgerConfiguration struct {
	Directory string `mapstructure:"dir"`
}

// IngestConfiguration bounds the pipeline's resource use.
type IngestConfiguration struct {
	MaxConcurrentAcquisitions int           `mapstructure:"max_concurrent_acquisitions"`
	BuildTimeout              time.Duration `mapstructure:"build_timeout"`
	CloneRetries              int           `mapstructure:"clone_retries"`
	WorkDirectory             string        `mapstructure:"work_dir"`
}

// LimitsConfiguration provides request budget defaults.
type LimitsConfiguration struct {
	MaxFileSize  int64 `mapstructure:"max_file_size"`
	MaxTotalSize int64 `mapstructure:"max_total_size"`
	MaxFileCount int   `mapstructure:"max_file_count"`
}

// TokenConfiguration controls token estimation.
type TokenConfiguration struct {
	Enabled *bool  `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	// Command runs an external estimator instead of the built-in encodings.
	Command []string `mapstructure:"command"`
}

// environmentBindings maps configuration keys to the environment variables that override them.
// The unprefixed S3 names are accepted for compatibility with existing deployments.
var environmentBindings = map[string][]string{
	"cache.backend":                      {environmentPrefix + "_CACHE_BACKEND"},
	"cache.dir":                          {environmentPrefix + "_CACHE_DIR"},
	"cache.memory_entries":               {environmentPrefix + "_CACHE_MEMORY_ENTRIES"},
	"cache.freshness_window":             {environmentPrefix + "_CACHE_FRESHNESS_WINDOW"},
	"cache.s3.endpoint":                  {environmentPrefix + "_CACHE_S3_ENDPOINT", "S3_ENDPOINT"},
	"cache.s3.region":                    {environmentPrefix + "_CACHE_S3_REGION", "S3_REGION"},
	"cache.s3.access_key":                {environmentPrefix + "_CACHE_S3_ACCESS_KEY", "S3_ACCESS_KEY"},
	"cache.s3.secret_key":                {environmentPrefix + "_CACHE_S3_SECRET_KEY", "S3_SECRET_KEY"},
	"cache.s3.bucket":                    {environmentPrefix + "_CACHE_S3_BUCKET", "S3_BUCKET_NAME"},
	"cache.s3.prefix":                    {environmentPrefix + "_CACHE_S3_PREFIX", "S3_DIRECTORY_PREFIX"},
	"cache.s3.use_ssl":                   {environmentPrefix + "_CACHE_S3_USE_SSL"},
	"cache.badger.dir":                   {environmentPrefix + "_CACHE_BADGER_DIR"},
	"ingest.max_concurrent_acquisitions": {environmentPrefix + "_MAX_CONCURRENT_ACQUISITIONS"},
	"ingest.build_timeout":               {environmentPrefix + "_BUILD_TIMEOUT"},
	"ingest.clone_retries":               {environmentPrefix + "_CLONE_RETRIES"},
	"ingest.work_dir":                    {environmentPrefix + "_WORK_DIR"},
	"limits.max_file_size":               {environmentPrefix + "_MAX_FILE_SIZE"},
	"limits.max_total_size":              {environmentPrefix + "_MAX_TOTAL_SIZE"},
	"limits.max_file_count":              {environmentPrefix + "_MAX_FILE_COUNT"},
	"tokens.enabled":                     {environmentPrefix + "_TOKENS_ENABLED"},
	"tokens.model":                       {environmentPrefix + "_TOKENS_MODEL"},
	"tokens.command":                     {environmentPrefix + "_TOKENS_COMMAND"},
}

// DefaultApplicationConfiguration returns the built-in settings.
func DefaultApplicationConfiguration() ApplicationConfiguration {
	tokensEnabled := true
	return ApplicationConfiguration{
		Cache: CacheConfiguration{
			Backend:         CacheBackendMemory,
			MemoryEntries:   defaultMemoryEntries,
			FreshnessWindow: defaultFreshnessWindow,
			S3:              S3Configuration{Region: defaultS3Region},
		},
		Ingest: IngestConfiguration{
			MaxConcurrentAcquisitions: defaultMaxConcurrentAcquisitions,
			BuildTimeout:              defaultBuildTimeout,
			CloneRetries:              defaultCloneRetries,
		},
		Limits: LimitsConfiguration{
			MaxFileSize:  types.DefaultMaxFileSize,
			MaxTotalSize: types.DefaultMaxTotalSize,
			MaxFileCount: types.DefaultMaxFileCount,
		},
		Tokens: TokenConfiguration{Enabled: &tokensEnabled, Model: defaultTokenizerModel},
	}
}

// LoadApplicationConfiguration layers defaults, the global file, the local (or explicit)
// file, and environment variables, in increasing precedence.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	merged := DefaultApplicationConfiguration()

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}

	if !options.SkipEnvironment {
		_ = godotenv.Load(filepath.Join(workingDirectory, ".env"))
		environmentConfig, envErr := loadConfigurationFromEnvironment()
		if envErr != nil {
			return ApplicationConfiguration{}, envErr
		}
		merged = merged.Merge(environmentConfig)
	}

	merged.Cache.Backend = strings.ToLower(strings.TrimSpace(merged.Cache.Backend))
	if validateErr := merged.Validate(); validateErr != nil {
		return ApplicationConfiguration{}, validateErr
	}
	return merged, nil
}

// Validate reports settings that cannot be used to build a service.
func (config ApplicationConfiguration) Validate() error {
	switch config.Cache.Backend {
	case CacheBackendNone, CacheBackendMemory, CacheBackendFile, CacheBackendS3, CacheBackendBadger, CacheBackendTiered:
	default:
		return fmt.Errorf("%w: %q", types.ErrUnsupportedCacheBackendKind, config.Cache.Backend)
	}
	if config.Ingest.MaxConcurrentAcquisitions <= 0 {
		return fmt.Errorf("ingest.max_concurrent_acquisitions must be positive, got %d", config.Ingest.MaxConcurrentAcquisitions)
	}
	if config.Ingest.CloneRetries < 0 {
		return fmt.Errorf("ingest.clone_retries must not be negative, got %d", config.Ingest.CloneRetries)
	}
	return nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

func loadConfigurationFromEnvironment() (ApplicationConfiguration, error) {
	reader := viper.New()
	for key, environmentNames := range environmentBindings {
		bindArguments := append([]string{key}, environmentNames...)
		if bindErr := reader.BindEnv(bindArguments...); bindErr != nil {
			return ApplicationConfiguration{}, fmt.Errorf("bind environment for %s: %w", key, bindErr)
		}
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode environment configuration: %w", decodeErr)
	}
	return config, nil
}

// Merge overlays the non-zero fields of override onto the receiver.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Cache = result.Cache.merge(override.Cache)
	result.Ingest = result.Ingest.merge(override.Ingest)
	result.Limits = result.Limits.merge(override.Limits)
	result.Tokens = result.Tokens.merge(override.Tokens)
	return result
}

func (config CacheConfiguration) merge(override CacheConfiguration) CacheConfiguration {
	result := config
	result.Backend = overrideString(result.Backend, override.Backend)
	result.Directory = overrideString(result.Directory, override.Directory)
	if override.MemoryEntries > 0 {
		result.MemoryEntries = override.MemoryEntries
	}
	if override.FreshnessWindow > 0 {
		result.FreshnessWindow = override.FreshnessWindow
	}
	result.S3 = result.S3.merge(override.S3)
	result.Badger.Directory = overrideString(result.Badger.Directory, override.Badger.Directory)
	return result
}

func (config S3Configuration) merge(override S3Configuration) S3Configuration {
	result := config
	result.Endpoint = overrideString(result.Endpoint, override.Endpoint)
	result.Region = overrideString(result.Region, override.Region)
	result.AccessKey = overrideString(result.AccessKey, override.AccessKey)
	result.SecretKey = overrideString(result.SecretKey, override.SecretKey)
	result.Bucket = overrideString(result.Bucket, override.Bucket)
	result.Prefix = overrideString(result.Prefix, override.Prefix)
	if override.UseSSL != nil {
		result.UseSSL = cloneBool(override.UseSSL)
	}
	return result
}

func (config IngestConfiguration) merge(override IngestConfiguration) IngestConfiguration {
	result := config
	if override.MaxConcurrentAcquisitions > 0 {
		result.MaxConcurrentAcquisitions = override.MaxConcurrentAcquisitions
	}
	if override.BuildTimeout > 0 {
		result.BuildTimeout = override.BuildTimeout
	}
	if override.CloneRetries > 0 {
		result.CloneRetries = override.CloneRetries
	}
	result.WorkDirectory = overrideString(result.WorkDirectory, override.WorkDirectory)
	return result
}

func (config LimitsConfiguration) merge(override LimitsConfiguration) LimitsConfiguration {
	result := config
	if override.MaxFileSize > 0 {
		result.MaxFileSize = override.MaxFileSize
	}
	if override.MaxTotalSize > 0 {
		result.MaxTotalSize = override.MaxTotalSize
	}
	if override.MaxFileCount > 0 {
		result.MaxFileCount = override.MaxFileCount
	}
	return result
}

func (config TokenConfiguration) merge(override TokenConfiguration) TokenConfiguration {
	result := config
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	if len(override.Command) > 0 {
		result.Command = append([]string(nil), override.Command...)
	}
	return result
}

// TokensEnabled reports whether token estimation is switched on.
func (config TokenConfiguration) TokensEnabled() bool {
	return config.Enabled == nil || *config.Enabled
}

// SSLEnabled reports whether the S3 client should use TLS.
func (config S3Configuration) SSLEnabled() bool {
	return config.UseSSL == nil || *config.UseSSL
}

func overrideString(current, override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return current
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
