package server

import (
	"errors"
	"os"
	"path/filepath"
)

// findConfigFile resolves rel against the working directory and up to seven
// of its parents, so binaries and tests find config/ from any package dir.
func findConfigFile(rel string, what string) (string, error) {
	path := rel
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: " + what + " not found")
}

// configPath prefers the environment override over the searched default.
func configPath(envKey string, rel string, what string) (string, error) {
	if p := os.Getenv(envKey); p != "" {
		return p, nil
	}
	return findConfigFile(rel, what)
}

func defaultAllowlistPath() (string, error) {
	return configPath("ALLOWLIST_PATH", "config/routing/allowlist.yaml", "allowlist")
}

func defaultAuthzModelPath() (string, error) {
	return configPath("AUTHZ_MODEL_PATH", "config/access/model.conf", "authz model")
}

func defaultAuthzPolicyPath() (string, error) {
	return configPath("AUTHZ_POLICY_PATH", "config/access/policy.csv", "authz policy")
}

func defaultDetectorConfigPath() (string, error) {
	return configPath("FORENSICS_CONFIG_PATH", "config/forensics/detectors.yaml", "detector config")
}
