package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitConfig(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	for _, section := range []string{
		"# ferry configuration file",
		"logging:",
		"broker:",
		"file_service:",
		"source:",
		"destination:",
		"stream:",
		"journal:",
	} {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	_, err = InitConfig(false)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("Expected 'already exists' error, got: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force failed: %v", err)
	}
}

func TestGeneratedConfigIsLoadable(t *testing.T) {
	clearLegacyEnv(t)
	configPath := filepath.Join(t.TempDir(), "custom", "config.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected INFO log level in generated config, got %q", cfg.Logging.Level)
	}
	if cfg.Broker.UploadQueue != "FILE_PART_UPLOAD" {
		t.Errorf("Expected default upload queue in generated config, got %q", cfg.Broker.UploadQueue)
	}
	if cfg.Stream.ChunkSize != GetDefaultConfig().Stream.ChunkSize {
		t.Errorf("Chunk size changed through the generated file: %v", cfg.Stream.ChunkSize)
	}
}
