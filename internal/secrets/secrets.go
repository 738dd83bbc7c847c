// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets resolves provider API keys. Keys come from, in order of
// precedence: the loaded configuration, the process environment, and a
// directory of plain-text files where the filename is the key name and the
// trimmed contents are the value.
//
// Supported key files: openai-api-key, anthropic-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/miranda/internal/logging"
	"github.com/pdiddy/miranda/pkg/types"
)

// Key file names and their environment variables.
const (
	OpenAIKey    = "openai-api-key"
	AnthropicKey = "anthropic-api-key"

	OpenAIEnv    = "OPENAI_API_KEY"
	AnthropicEnv = "ANTHROPIC_API_KEY"
)

var envFor = map[string]string{
	OpenAIKey:    OpenAIEnv,
	AnthropicKey: AnthropicEnv,
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, log *logging.Logger) (map[string]string, error) {
	if log == nil {
		log = logging.Nop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", "name", name, "error", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Lookup returns the value for key from the environment, falling back to
// the loaded files.
func Lookup(files map[string]string, key string) string {
	if env, ok := envFor[key]; ok {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return files[key]
}

// Apply fills empty credentials in cfg. The completion key follows the
// provider; embeddings always use the OpenAI key.
func Apply(cfg *types.AIConfig, files map[string]string) {
	if cfg.APIKey == "" {
		if cfg.Provider == types.ProviderAnthropic {
			cfg.APIKey = Lookup(files, AnthropicKey)
		} else {
			cfg.APIKey = Lookup(files, OpenAIKey)
		}
	}
	if cfg.EmbedAPIKey == "" {
		cfg.EmbedAPIKey = Lookup(files, OpenAIKey)
	}
}
