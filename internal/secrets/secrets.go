// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text
// files and from a dotenv file. In the directory, each file is one secret: the
// filename is the key name and the trimmed contents are the value. Dotenv
// variables are normalised to the same key names (ANTHROPIC_API_KEY becomes
// anthropic-api-key).
//
// Supported keys: anthropic-api-key, gemini-api-key, ncbi-api-key, contact-email.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pdiddy/medpaper/pkg/types"
)

// Key names.
const (
	AnthropicAPIKey = "anthropic-api-key"
	GeminiAPIKey    = "gemini-api-key"
	NCBIAPIKey      = "ncbi-api-key"
	ContactEmail    = "contact-email"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadEnv reads a dotenv file and returns its variables under normalised key
// names. A missing file yields an empty map. The process environment is not
// modified.
func LoadEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[KeyName(k)] = v
	}
	return out, nil
}

// KeyName maps an environment variable name onto a secret key name.
func KeyName(env string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(env)), "_", "-")
}

// LoadAll merges the secrets directory and the dotenv file. Directory
// entries win over dotenv entries with the same key.
func LoadAll(dir, envFile string) (map[string]string, error) {
	out, err := LoadEnv(envFile)
	if err != nil {
		return nil, err
	}
	files, err := Load(dir)
	if err != nil {
		return nil, err
	}
	for k, v := range files {
		out[k] = v
	}
	return out, nil
}

// Apply fills credentials that cfg leaves empty. Values already set in the
// configuration are kept.
func Apply(cfg *types.Config, s map[string]string) {
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case types.ProviderClaude:
			cfg.LLM.APIKey = s[AnthropicAPIKey]
		case types.ProviderGemini:
			cfg.LLM.APIKey = s[GeminiAPIKey]
		}
	}
	if cfg.Literature.NCBIAPIKey == "" {
		cfg.Literature.NCBIAPIKey = s[NCBIAPIKey]
	}
	if cfg.Literature.Email == "" {
		cfg.Literature.Email = s[ContactEmail]
	}
}
