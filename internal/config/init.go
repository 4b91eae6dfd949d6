package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/temirov/ingest/internal/utils"
)

// InitTarget selects the configuration file InitializeConfiguration writes.
type InitTarget string

const (
	// InitTargetLocal writes ingest.yaml into the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes ~/.ingest/ingest.yaml.
	InitTargetGlobal InitTarget = "global"

	configurationFileType = "yaml"

	errorInitWorkingDirectoryFormat = "determine working directory for configuration: %w"
	errorInitHomeDirectoryFormat    = "resolve home directory for configuration: %w"
	errorInitCreateDirectoryFormat  = "create configuration directory %s: %w"
	errorInitUnsupportedTarget      = "unsupported init target %q"
	errorInitExistsFormat           = "configuration file already exists at %s"
	errorInitInspectFormat          = "inspect configuration path %s: %w"
	errorInitWriteFormat            = "write configuration to %s: %w"
)

// InitOptions controls InitializeConfiguration.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
}

// InitializeConfiguration writes the built-in defaults as a YAML file and returns its
// path. An existing file is replaced only with Force.
func InitializeConfiguration(options InitOptions) (string, error) {
	destinationPath, resolveError := initDestination(options)
	if resolveError != nil {
		return "", resolveError
	}
	if _, statError := os.Stat(destinationPath); statError == nil {
		if !options.Force {
			return "", fmt.Errorf(errorInitExistsFormat, destinationPath)
		}
	} else if !os.IsNotExist(statError) {
		return "", fmt.Errorf(errorInitInspectFormat, destinationPath, statError)
	}

	writer := viper.New()
	writer.SetConfigType(configurationFileType)
	for key, value := range DefaultApplicationConfiguration().settings() {
		writer.Set(key, value)
	}
	if writeError := writer.WriteConfigAs(destinationPath); writeError != nil {
		return "", fmt.Errorf(errorInitWriteFormat, destinationPath, writeError)
	}
	if chmodError := os.Chmod(destinationPath, 0o600); chmodError != nil {
		return "", fmt.Errorf(errorInitWriteFormat, destinationPath, chmodError)
	}
	return destinationPath, nil
}

func initDestination(options InitOptions) (string, error) {
	switch options.Target {
	case InitTargetLocal, "":
		workingDirectory := options.WorkingDirectory
		if workingDirectory == "" {
			current, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf(errorInitWorkingDirectoryFormat, err)
			}
			workingDirectory = current
		}
		return filepath.Join(workingDirectory, utils.ConfigFileName), nil
	case InitTargetGlobal:
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf(errorInitHomeDirectoryFormat, err)
		}
		configurationDirectory := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName)
		if err := os.MkdirAll(configurationDirectory, 0o755); err != nil {
			return "", fmt.Errorf(errorInitCreateDirectoryFormat, configurationDirectory, err)
		}
		return filepath.Join(configurationDirectory, utils.ConfigFileName), nil
	default:
		return "", fmt.Errorf(errorInitUnsupportedTarget, options.Target)
	}
}

// settings flattens the configuration into viper keys. Secrets are left out.
func (config ApplicationConfiguration) settings() map[string]any {
	return map[string]any{
		"cache.backend":                      config.Cache.Backend,
		"cache.dir":                          config.Cache.Directory,
		"cache.memory_entries":               config.Cache.MemoryEntries,
		"cache.freshness_window":             config.Cache.FreshnessWindow.String(),
		"cache.s3.endpoint":                  config.Cache.S3.Endpoint,
		"cache.s3.region":                    config.Cache.S3.Region,
		"cache.s3.bucket":                    config.Cache.S3.Bucket,
		"cache.s3.prefix":                    config.Cache.S3.Prefix,
		"cache.s3.use_ssl":                   config.Cache.S3.SSLEnabled(),
		"cache.badger.dir":                   config.Cache.Badger.Directory,
		"ingest.max_concurrent_acquisitions": config.Ingest.MaxConcurrentAcquisitions,
		"ingest.build_timeout":               config.Ingest.BuildTimeout.String(),
		"ingest.clone_retries":               config.Ingest.CloneRetries,
		"ingest.work_dir":                    config.Ingest.WorkDirectory,
		"limits.max_file_size":               config.Limits.MaxFileSize,
		"limits.max_total_size":              config.Limits.MaxTotalSize,
		"limits.max_file_count":              config.Limits.MaxFileCount,
		"tokens.enabled":                     config.Tokens.TokensEnabled(),
		"tokens.model":                       config.Tokens.Model,
	}
}
