// Package riskpolicy classifies an analysis report and its alerts into a risk
// level using a Rego policy.
package riskpolicy

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/jacksonlee411/claimwatch/pkg/rules"
)

const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"

	query = "data.claimwatch.risk.decision"
)

//go:embed risk.rego
var defaultModule string

type Decision struct {
	Level   string   `json:"level"`
	Reasons []string `json:"reasons"`
}

type Policy struct {
	prepared rego.PreparedEvalQuery
}

// New prepares a policy from Rego source. Empty source selects the built-in
// policy. The module must define data.claimwatch.risk.decision.
func New(ctx context.Context, module string) (*Policy, error) {
	name := "custom.rego"
	if strings.TrimSpace(module) == "" {
		name = "risk.rego"
		module = defaultModule
	}
	prepared, err := rego.New(
		rego.Query(query),
		rego.Module(name, module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare risk policy: %w", err)
	}
	return &Policy{prepared: prepared}, nil
}

// Load reads a Rego module from path. An empty path selects the built-in policy.
func Load(ctx context.Context, path string) (*Policy, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return New(ctx, "")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(b)) == "" {
		return nil, fmt.Errorf("risk policy %s is empty", path)
	}
	return New(ctx, string(b))
}

// Evaluate classifies a JSON-shaped report and the alerts raised against it.
func (p *Policy) Evaluate(ctx context.Context, report map[string]any, alerts []rules.Alert) (Decision, error) {
	input, err := toInput(report, alerts)
	if err != nil {
		return Decision{}, err
	}
	rs, err := p.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate risk policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, errors.New("risk policy produced no decision")
	}

	b, err := json.Marshal(rs[0].Expressions[0].Value)
	if err != nil {
		return Decision{}, err
	}
	var d Decision
	if err := json.Unmarshal(b, &d); err != nil {
		return Decision{}, fmt.Errorf("decode risk decision: %w", err)
	}
	switch d.Level {
	case LevelLow, LevelMedium, LevelHigh:
	default:
		return Decision{}, fmt.Errorf("risk policy returned unknown level %q", d.Level)
	}
	if d.Reasons == nil {
		d.Reasons = []string{}
	}
	return d, nil
}

func toInput(report map[string]any, alerts []rules.Alert) (map[string]any, error) {
	b, err := json.Marshal(struct {
		Report map[string]any `json:"report"`
		Alerts []rules.Alert  `json:"alerts"`
	}{Report: report, Alerts: alerts})
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	// the policy counts and iterates both
	if out["alerts"] == nil {
		out["alerts"] = []any{}
	}
	if out["report"] == nil {
		out["report"] = map[string]any{}
	}
	return out, nil
}
