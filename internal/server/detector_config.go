package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jacksonlee411/claimwatch/pkg/forensics"
	"github.com/jacksonlee411/claimwatch/pkg/riskpolicy"
	"github.com/jacksonlee411/claimwatch/pkg/rules"
)

// DetectorConfig is config/forensics/detectors.yaml. Thresholds left out of
// the file keep their defaults; an empty rule list selects the default rules.
type DetectorConfig struct {
	Version    int                  `yaml:"version"`
	Thresholds forensics.Thresholds `yaml:"thresholds"`
	Rules      []rules.Rule         `yaml:"rules"`
	// RiskPolicy is a Rego file, relative to the config file unless absolute.
	RiskPolicy string `yaml:"risk_policy"`

	dir string
}

// Detectors is a DetectorConfig compiled for use.
type Detectors struct {
	Thresholds forensics.Thresholds
	Rules      *rules.Engine
	Policy     *riskpolicy.Policy
}

func ParseDetectorConfigYAML(b []byte) (DetectorConfig, error) {
	c := DetectorConfig{Thresholds: forensics.DefaultThresholds()}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return DetectorConfig{}, err
	}
	if c.Version != 1 {
		return DetectorConfig{}, errors.New("detector config: unsupported version")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return DetectorConfig{}, fmt.Errorf("detector config: %w", err)
	}
	return c, nil
}

func LoadDetectorConfig(path string) (DetectorConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return DetectorConfig{}, err
	}
	c, err := ParseDetectorConfigYAML(b)
	if err != nil {
		return DetectorConfig{}, err
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// Build compiles the rules and prepares the risk policy.
func (c DetectorConfig) Build(ctx context.Context) (Detectors, error) {
	defs := c.Rules
	if len(defs) == 0 {
		defs = rules.DefaultRules()
	}
	engine, err := rules.NewEngine(defs)
	if err != nil {
		return Detectors{}, fmt.Errorf("detector config: %w", err)
	}

	policyPath := strings.TrimSpace(c.RiskPolicy)
	if policyPath != "" && !filepath.IsAbs(policyPath) {
		policyPath = filepath.Join(c.dir, policyPath)
	}
	policy, err := riskpolicy.Load(ctx, policyPath)
	if err != nil {
		return Detectors{}, fmt.Errorf("detector config: %w", err)
	}
	return Detectors{Thresholds: c.Thresholds, Rules: engine, Policy: policy}, nil
}

// loadDetectors reads the detector config when one can be found and falls back
// to the built-in detectors otherwise. An explicit FORENSICS_CONFIG_PATH must
// exist.
func loadDetectors(ctx context.Context) (Detectors, error) {
	path, err := defaultDetectorConfigPath()
	if err != nil {
		return DetectorConfig{Version: 1, Thresholds: forensics.DefaultThresholds()}.Build(ctx)
	}
	c, err := LoadDetectorConfig(path)
	if err != nil {
		return Detectors{}, err
	}
	return c.Build(ctx)
}
