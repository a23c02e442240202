package routing

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

type Allowlist struct {
	Version     int                   `yaml:"version"`
	Entrypoints map[string]Entrypoint `yaml:"entrypoints"`
}

type Entrypoint struct {
	Routes []Route `yaml:"routes"`
}

type Route struct {
	Path       string   `yaml:"path"`
	Methods    []string `yaml:"methods"`
	RouteClass string   `yaml:"route_class"`
}

var knownMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

func ParseAllowlistYAML(b []byte) (Allowlist, error) {
	var a Allowlist
	if err := yaml.Unmarshal(b, &a); err != nil {
		return Allowlist{}, err
	}
	if a.Version != 1 {
		return Allowlist{}, errors.New("allowlist: unsupported version")
	}
	if a.Entrypoints == nil {
		return Allowlist{}, errors.New("allowlist: missing entrypoints")
	}
	for name, ep := range a.Entrypoints {
		for _, r := range ep.Routes {
			for _, m := range r.Methods {
				if !slices.Contains(knownMethods, strings.ToUpper(m)) {
					return Allowlist{}, fmt.Errorf("allowlist: %s %s: unknown method %q", name, r.Path, m)
				}
			}
		}
	}
	return a, nil
}

func LoadAllowlist(path string) (Allowlist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Allowlist{}, err
	}
	return ParseAllowlistYAML(b)
}

// Lookup returns the declared class of method+path on an entrypoint. Paths are
// compared literally, so pattern routes are looked up by their pattern.
func (a Allowlist) Lookup(entrypoint string, method string, path string) (RouteClass, bool) {
	for _, r := range a.Entrypoints[entrypoint].Routes {
		if r.Path != path {
			continue
		}
		for _, m := range r.Methods {
			if strings.EqualFold(m, method) {
				return RouteClass(r.RouteClass), true
			}
		}
	}
	return "", false
}
