package server

import (
	"net/http"
	"strings"

	"github.com/jacksonlee411/claimwatch/internal/routing"
	"github.com/jacksonlee411/claimwatch/pkg/authz"
)

const (
	headerRole   = "X-Claimwatch-Role"
	headerAgency = "X-Claimwatch-Agency"
)

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath, err := defaultAuthzModelPath()
	if err != nil {
		return nil, err
	}
	policyPath, err := defaultAuthzPolicyPath()
	if err != nil {
		return nil, err
	}
	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}
	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

// withAuthz resolves the caller's role and agency from request headers, stores
// the agency on the context, and enforces the route's casbin requirement.
func withAuthz(classifier *routing.Classifier, a authorizer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassPublicAPI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		agency := strings.TrimSpace(r.Header.Get(headerAgency))
		subject := authz.SubjectFromRole(r.Header.Get(headerRole))
		domain := authz.DomainFromAgency(agency)

		allowed, enforced, err := a.Authorize(subject, domain, object, action)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		if agency != "" {
			r = r.WithContext(withAgency(r.Context(), domain))
		}
		next.ServeHTTP(w, r)
	})
}

func authzRequirementForRoute(method string, path string) (object string, action string, ok bool) {
	if routing.MatchTemplate(routeVendorProfile, path) {
		if method == http.MethodGet {
			return authz.ObjectForensicsLedger, authz.ActionRead, true
		}
		return "", "", false
	}

	switch path {
	case routeAnalyses:
		if method == http.MethodPost {
			return authz.ObjectForensicsAnalyses, authz.ActionRead, true
		}
		return "", "", false
	case routeLedgerAnalyses:
		if method == http.MethodGet {
			return authz.ObjectForensicsLedger, authz.ActionRead, true
		}
		return "", "", false
	case routeVerifications:
		if method == http.MethodPost {
			return authz.ObjectForensicsVerifications, authz.ActionRead, true
		}
		return "", "", false
	default:
		return "", "", false
	}
}
