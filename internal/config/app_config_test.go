package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/temirov/ingest/internal/types"
	"github.com/temirov/ingest/internal/utils"
)

type configTestCase struct {
	name               string
	globalContent      string
	localContent       string
	explicitPath       string
	explicitContent    string
	environment        map[string]string
	expectBackend      string
	expectModel        string
	expectTokens       bool
	expectAcquisitions int
	expectFreshness    time.Duration
	expectBucket       string
}

func TestLoadApplicationConfigurationMergesSources(t *testing.T) {
	testCases := []configTestCase{
		{
			name:               "defaults_only",
			expectBackend:      CacheBackendMemory,
			expectModel:        "gpt-4o",
			expectTokens:       true,
			expectAcquisitions: 4,
			expectFreshness:    time.Hour,
		},
		{
			name:               "local_overrides_global",
			globalContent:      "cache:\n  backend: file\n  freshness_window: 10m\ntokens:\n  model: global-model\n",
			localContent:       "cache:\n  backend: badger\ntokens:\n  enabled: false\n",
			expectBackend:      CacheBackendBadger,
			expectModel:        "global-model",
			expectTokens:       false,
			expectAcquisitions: 4,
			expectFreshness:    10 * time.Minute,
		},
		{
			name:               "explicit_path_replaces_local",
			localContent:       "cache:\n  backend: file\n",
			explicitPath:       "custom.yaml",
			explicitContent:    "ingest:\n  max_concurrent_acquisitions: 9\n",
			expectBackend:      CacheBackendMemory,
			expectModel:        "gpt-4o",
			expectTokens:       true,
			expectAcquisitions: 9,
			expectFreshness:    time.Hour,
		},
		{
			name:          "environment_wins",
			localContent:  "cache:\n  backend: file\n",
			environment:   map[string]string{"INGEST_CACHE_BACKEND": "S3", "S3_BUCKET_NAME": "digests", "INGEST_CACHE_FRESHNESS_WINDOW": "5m"},
			expectBackend: CacheBackendS3,
			expectModel:   "gpt-4o",
			expectTokens:  true,
			expectBucket:  "digests",
			// acquisitions keep their default
			expectAcquisitions: 4,
			expectFreshness:    5 * time.Minute,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			homeDir := t.TempDir()
			workingDir := t.TempDir()
			configDir := filepath.Join(homeDir, utils.GlobalConfigDirectoryName)
			if err := os.MkdirAll(configDir, 0o755); err != nil {
				t.Fatalf("create config dir: %v", err)
			}
			if testCase.globalContent != "" {
				globalPath := filepath.Join(configDir, utils.ConfigFileName)
				if err := os.WriteFile(globalPath, []byte(testCase.globalContent), 0o600); err != nil {
					t.Fatalf("write global config: %v", err)
				}
			}
			if testCase.localContent != "" {
				localPath := filepath.Join(workingDir, utils.ConfigFileName)
				if err := os.WriteFile(localPath, []byte(testCase.localContent), 0o600); err != nil {
					t.Fatalf("write local config: %v", err)
				}
			}
			if testCase.explicitPath != "" {
				target := filepath.Join(workingDir, testCase.explicitPath)
				if err := os.WriteFile(target, []byte(testCase.explicitContent), 0o600); err != nil {
					t.Fatalf("write explicit config: %v", err)
				}
			}

			t.Setenv("HOME", homeDir)
			t.Setenv("USERPROFILE", homeDir)
			for key, value := range testCase.environment {
				t.Setenv(key, value)
			}

			loadedConfig, err := LoadApplicationConfiguration(LoadOptions{
				WorkingDirectory: workingDir,
				ExplicitFilePath: testCase.explicitPath,
				SkipEnvironment:  len(testCase.environment) == 0,
			})
			if err != nil {
				t.Fatalf("LoadApplicationConfiguration error: %v", err)
			}
			if loadedConfig.Cache.Backend != testCase.expectBackend {
				t.Fatalf("expected backend %s, got %s", testCase.expectBackend, loadedConfig.Cache.Backend)
			}
			if loadedConfig.Tokens.Model != testCase.expectModel {
				t.Fatalf("expected model %q, got %q", testCase.expectModel, loadedConfig.Tokens.Model)
			}
			if loadedConfig.Tokens.TokensEnabled() != testCase.expectTokens {
				t.Fatalf("expected tokens enabled %t", testCase.expectTokens)
			}
			if loadedConfig.Ingest.MaxConcurrentAcquisitions != testCase.expectAcquisitions {
				t.Fatalf("expected %d acquisitions, got %d", testCase.expectAcquisitions, loadedConfig.Ingest.MaxConcurrentAcquisitions)
			}
			if loadedConfig.Cache.FreshnessWindow != testCase.expectFreshness {
				t.Fatalf("expected freshness %s, got %s", testCase.expectFreshness, loadedConfig.Cache.FreshnessWindow)
			}
			if loadedConfig.Cache.S3.Bucket != testCase.expectBucket {
				t.Fatalf("expected bucket %q, got %q", testCase.expectBucket, loadedConfig.Cache.S3.Bucket)
			}
		})
	}
}

func TestLoadApplicationConfigurationRejectsUnknownBackend(t *testing.T) {
	workingDir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	if err := os.WriteFile(filepath.Join(workingDir, utils.ConfigFileName), []byte("cache:\n  backend: redis\n"), 0o600); err != nil {
		t.Fatalf("write local config: %v", err)
	}
	_, err := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: workingDir, SkipEnvironment: true})
	if !errors.Is(err, types.ErrUnsupportedCacheBackendKind) {
		t.Fatalf("expected unsupported backend error, got %v", err)
	}
}

func TestMergeKeepsBaseForZeroOverride(t *testing.T) {
	base := DefaultApplicationConfiguration()
	merged := base.Merge(ApplicationConfiguration{})
	if merged.Limits != base.Limits || merged.Ingest != base.Ingest {
		t.Fatalf("expected zero override to keep defaults")
	}
}
