package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// envPrefix namespaces lexrag environment variables.
	envPrefix = "LEXRAG_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Environment variables use the LEXRAG_ prefix with an underscore separating
// the section from the field:
//
//	LEXRAG_SERVER_ADDR          -> server.addr
//	LEXRAG_QDRANT_HOST          -> qdrant.host
//	LEXRAG_LLM_ANTHROPIC_API_KEY -> llm.anthropic_api_key
//
// If configPath is empty, no file is read and defaults plus env apply.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		info, err := os.Stat(configPath)
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
		}
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// transformEnvKey maps an environment variable to a koanf key.
// The first underscore separates the section; the rest stays a field name.
// Example: LEXRAG_SERVER_MAX_UPLOAD_BYTES -> server.max_upload_bytes.
func transformEnvKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}
