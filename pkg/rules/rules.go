// Package rules evaluates CEL alert rules against an analysis report.
//
// Each rule is a boolean expression over the variable `report`, which holds the
// report in its JSON shape (numbers are doubles, undefined metrics are null).
// A rule that cannot be evaluated against a given report, for example because
// it selects a section that did not run, is skipped rather than fired.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	default:
		return false
	}
}

type Rule struct {
	ID       string   `yaml:"id" json:"id"`
	Severity Severity `yaml:"severity" json:"severity"`
	Expr     string   `yaml:"expr" json:"expr"`
	Message  string   `yaml:"message" json:"message"`
}

type Alert struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type SkippedRule struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

type Result struct {
	Alerts  []Alert       `json:"alerts"`
	Skipped []SkippedRule `json:"skipped_rules"`
}

// HasSeverity reports whether any alert carries the given severity.
func (r Result) HasSeverity(s Severity) bool {
	for _, a := range r.Alerts {
		if a.Severity == s {
			return true
		}
	}
	return false
}

var newRulesCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("report", cel.MapType(cel.StringType, cel.DynType)))
}

var programCache sync.Map

type compiledRule struct {
	Rule
	program cel.Program
}

type Engine struct {
	rules []compiledRule
}

// NewEngine validates and compiles every rule. Compilation failures are
// configuration errors and abort construction.
func NewEngine(rules []Rule) (*Engine, error) {
	seen := make(map[string]bool, len(rules))
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		r.ID = strings.TrimSpace(r.ID)
		r.Severity = Severity(strings.ToLower(strings.TrimSpace(string(r.Severity))))
		if r.ID == "" {
			return nil, errors.New("rule id required")
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate rule id: %s", r.ID)
		}
		seen[r.ID] = true
		if !r.Severity.Valid() {
			return nil, fmt.Errorf("rule %s: invalid severity %q", r.ID, r.Severity)
		}
		program, err := loadOrCompileProgram(r.Expr)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		out = append(out, compiledRule{Rule: r, program: program})
	}
	return &Engine{rules: out}, nil
}

func (e *Engine) Len() int { return len(e.rules) }

// Evaluate runs every rule in order against the JSON-shaped report.
func (e *Engine) Evaluate(report map[string]any) Result {
	res := Result{Alerts: make([]Alert, 0), Skipped: make([]SkippedRule, 0)}
	for _, r := range e.rules {
		out, _, err := r.program.Eval(map[string]any{"report": report})
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRule{RuleID: r.ID, Reason: err.Error()})
			continue
		}
		fired, ok := out.Value().(bool)
		if !ok {
			res.Skipped = append(res.Skipped, SkippedRule{RuleID: r.ID, Reason: "expression did not yield a bool"})
			continue
		}
		if fired {
			res.Alerts = append(res.Alerts, Alert{RuleID: r.ID, Severity: r.Severity, Message: r.Message})
		}
	}
	return res
}

// ReportValue converts any JSON-marshalable report into the map rules see.
func ReportValue(report any) (map[string]any, error) {
	b, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func loadOrCompileProgram(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("expression required")
	}
	if cached, ok := programCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newRulesCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, errors.New("expression output type mismatch")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	programCache.Store(expr, program)
	return program, nil
}
