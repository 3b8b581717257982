package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds client settings from ~/.ragchat.yaml.
type Config struct {
	ServerURL string `yaml:"server_url"`
	UserID    string `yaml:"user_id"`
	Model     string `yaml:"model"`
	Agent     string `yaml:"agent"`
	AuthToken string `yaml:"auth_token"`
}

const defaultServerURL = "http://localhost:8080"

// LoadConfig loads ~/.ragchat.yaml. Returns a default config if the file
// doesn't exist. RAGCHAT_TOKEN in the environment overrides the stored
// auth token.
func LoadConfig() (*Config, error) {
	config := &Config{ServerURL: defaultServerURL}

	home, err := os.UserHomeDir()
	if err == nil {
		data, err := os.ReadFile(filepath.Join(home, ".ragchat.yaml"))
		if err == nil {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if config.ServerURL == "" {
		config.ServerURL = defaultServerURL
	}
	if token := os.Getenv("RAGCHAT_TOKEN"); token != "" {
		config.AuthToken = token
	}
	return config, nil
}
