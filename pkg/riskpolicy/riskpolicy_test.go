package riskpolicy

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/jacksonlee411/claimwatch/pkg/rules"
)

func TestDefaultPolicy_Levels(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, "")
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	cases := []struct {
		name   string
		alerts []rules.Alert
		want   string
	}{
		{name: "no alerts", alerts: nil, want: LevelLow},
		{name: "low only", alerts: []rules.Alert{{RuleID: "new_vendors", Severity: rules.SeverityLow, Message: "m"}}, want: LevelMedium},
		{name: "any high", alerts: []rules.Alert{
			{RuleID: "quarter_end_rush", Severity: rules.SeverityLow, Message: "m"},
			{RuleID: "threshold_splitting", Severity: rules.SeverityHigh, Message: "m"},
		}, want: LevelHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := p.Evaluate(ctx, map[string]any{}, tc.alerts)
			if err != nil {
				t.Fatalf("err=%v", err)
			}
			if d.Level != tc.want {
				t.Fatalf("level=%s", d.Level)
			}
			if len(d.Reasons) != len(tc.alerts) {
				t.Fatalf("reasons=%v", d.Reasons)
			}
		})
	}
}

func TestDefaultPolicy_ReportsFailedSections(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, "")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	report := map[string]any{
		"timing_patterns": map[string]any{"error": "no valid timestamp data available"},
		"claim_stats":     map[string]any{"total_claims": 3.0},
	}
	d, err := p.Evaluate(ctx, report, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if d.Level != LevelLow {
		t.Fatalf("level=%s", d.Level)
	}
	if !slices.Contains(d.Reasons, "timing_patterns not analyzed: no valid timestamp data available") {
		t.Fatalf("reasons=%v", d.Reasons)
	}
}

func TestLoad_CustomModule(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "strict.rego")
	src := `package claimwatch.risk

decision := {"level": "high", "reasons": ["always"]}
`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("err=%v", err)
	}
	p, err := Load(ctx, path)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	d, err := p.Evaluate(ctx, nil, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if d.Level != LevelHigh || !slices.Equal(d.Reasons, []string{"always"}) {
		t.Fatalf("d=%+v", d)
	}
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	if _, err := Load(ctx, filepath.Join(dir, "missing.rego")); err == nil {
		t.Fatal("expected error")
	}

	empty := filepath.Join(dir, "empty.rego")
	if err := os.WriteFile(empty, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, err := Load(ctx, empty); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("err=%v", err)
	}

	if _, err := New(ctx, "package claimwatch.risk\n\ndecision := {"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEvaluate_UnknownLevel(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, "package claimwatch.risk\n\ndecision := {\"level\": \"severe\", \"reasons\": []}\n")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, err := p.Evaluate(ctx, nil, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestEvaluate_UndefinedDecision(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, "package claimwatch.risk\n\ndecision := {\"level\": \"low\"} if { input.never }\n")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, err := p.Evaluate(ctx, nil, nil); err == nil {
		t.Fatal("expected error")
	}
}
