package client

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
)

const (
	envAPIKey = "GATEWAY_API_KEY"
	envAPIURL = "GATEWAY_API_URL"
	envUserID = "GATEWAY_USER_ID"

	defaultAPIURL = "http://localhost:8080"
)

// GlobalConfig is the client configuration stored in config.json.
type GlobalConfig struct {
	APIKey string `json:"api_key,omitempty"`
	APIURL string `json:"api_url,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "gateway"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetConfigPath returns the full path to the config.json file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads config.json. A missing file yields a nil config and
// no error.
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := sonic.ConfigStd.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveGlobalConfig writes config.json with 0600 permissions.
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := sonic.ConfigStd.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CredentialSource names where a setting came from.
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceDefault      CredentialSource = "default"
	SourceNone         CredentialSource = "none"
)

// Setting is a resolved configuration value and its origin.
type Setting struct {
	Value  string           `json:"value,omitempty"`
	Source CredentialSource `json:"source"`
}

// ResolvedConfig is the effective client configuration.
type ResolvedConfig struct {
	APIKey Setting `json:"api_key"`
	APIURL Setting `json:"api_url"`
	UserID Setting `json:"user_id"`
}

func resolve(flag, env string, global func(*GlobalConfig) string, config *GlobalConfig) Setting {
	if flag != "" {
		return Setting{Value: flag, Source: SourceFlag}
	}
	if v := os.Getenv(env); v != "" {
		return Setting{Value: v, Source: SourceEnv}
	}
	if config != nil {
		if v := global(config); v != "" {
			return Setting{Value: v, Source: SourceGlobalConfig}
		}
	}
	return Setting{Source: SourceNone}
}

// ResolveConfig applies the cascade flag, then environment, then
// config.json, then defaults.
func ResolveConfig(flagAPIKey, flagAPIURL, flagUserID string) (*ResolvedConfig, error) {
	config, err := LoadGlobalConfig()
	if err != nil {
		return nil, err
	}

	rc := &ResolvedConfig{
		APIKey: resolve(flagAPIKey, envAPIKey, func(c *GlobalConfig) string { return c.APIKey }, config),
		APIURL: resolve(flagAPIURL, envAPIURL, func(c *GlobalConfig) string { return c.APIURL }, config),
		UserID: resolve(flagUserID, envUserID, func(c *GlobalConfig) string { return c.UserID }, config),
	}
	if rc.APIURL.Value == "" {
		rc.APIURL = Setting{Value: defaultAPIURL, Source: SourceDefault}
	}
	return rc, nil
}
