// Package authz decides whether a caller role may read a forensics resource
// within an agency, using a casbin model with agency domains.
package authz

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

func ModeFromEnv() (Mode, error) {
	return ParseMode(os.Getenv("AUTHZ_MODE"), os.Getenv("AUTHZ_UNSAFE_ALLOW_DISABLED") == "1")
}

// ParseMode accepts enforce, shadow or disabled; empty means enforce. Disabling
// authorization must be opted into explicitly.
func ParseMode(raw string, allowDisabled bool) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(raw)))
	switch {
	case m == "":
		return ModeEnforce, nil
	case m == ModeEnforce || m == ModeShadow:
		return m, nil
	case m == ModeDisabled && allowDisabled:
		return m, nil
	case m == ModeDisabled:
		return "", errors.New("authz: AUTHZ_MODE=disabled requires AUTHZ_UNSAFE_ALLOW_DISABLED=1")
	}
	return "", fmt.Errorf("authz: invalid AUTHZ_MODE %q (expected enforce|shadow|disabled)", raw)
}

// Authorizer evaluates role/agency/object requests. In shadow mode decisions are
// computed but never enforced.
type Authorizer struct {
	enforcer *casbin.Enforcer
	mode     Mode
}

// NewAuthorizer loads the casbin model and policy. Every policy row must grant
// a known forensics object and action, and none may grant the anonymous role.
func NewAuthorizer(modelPath string, policyPath string, mode Mode) (*Authorizer, error) {
	enforcer, err := casbin.NewEnforcer(modelPath)
	if err != nil {
		return nil, err
	}
	enforcer.SetAdapter(fileadapter.NewAdapter(policyPath))
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := checkGrants(enforcer); err != nil {
		return nil, fmt.Errorf("authz: %s: %w", policyPath, err)
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

func checkGrants(e *casbin.Enforcer) error {
	sec, ok := e.GetModel()["p"]
	if !ok {
		return nil
	}
	ast, ok := sec["p"]
	if !ok {
		return nil
	}
	for _, rule := range ast.Policy {
		if len(rule) < 4 {
			return fmt.Errorf("policy row %v: want sub, dom, obj, act", rule)
		}
		sub, obj, act := rule[0], rule[2], rule[3]
		switch {
		case sub == SubjectFromRole(RoleAnonymous):
			return fmt.Errorf("policy row %v grants the anonymous role", rule)
		case !KnownObject(obj):
			return fmt.Errorf("policy row %v: unknown object %q", rule, obj)
		case act != ActionRead:
			return fmt.Errorf("policy row %v: unknown action %q", rule, act)
		}
	}
	return nil
}

func (a *Authorizer) Mode() Mode { return a.mode }

// SubjectFromRole maps a caller role header to a casbin subject.
func SubjectFromRole(role string) string {
	if role = strings.ToLower(strings.TrimSpace(role)); role == "" {
		role = RoleAnonymous
	}
	return "role:" + role
}

// DomainFromAgency maps the calling agency to a casbin domain. Calls without an
// agency fall into the global domain.
func DomainFromAgency(agency string) string {
	if agency = strings.ToLower(strings.TrimSpace(agency)); agency == "" {
		return DomainGlobal
	}
	return agency
}

// Authorize reports whether subject may perform action on object in domain and
// whether that decision is binding.
func (a *Authorizer) Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error) {
	switch a.mode {
	case ModeDisabled:
		return true, false, nil
	case ModeEnforce, ModeShadow:
	default:
		return false, false, fmt.Errorf("authz: unknown mode %q", a.mode)
	}
	enforced = a.mode == ModeEnforce
	allowed, err = a.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return false, enforced, err
	}
	return allowed, enforced, nil
}
