package routing

import "strings"

// PathPattern matches paths segment by segment; a {name} segment captures any
// single non-empty segment.
type PathPattern struct {
	raw      string
	segments []patternSegment
}

type patternSegment struct {
	literal string
	param   string
}

func parsePathPattern(raw string) (PathPattern, bool) {
	if !strings.Contains(raw, "{") {
		return PathPattern{}, false
	}
	if raw == "" || raw[0] != '/' {
		return PathPattern{}, false
	}

	parts := splitPathSegments(raw)
	segments := make([]patternSegment, 0, len(parts))
	for _, s := range parts {
		if s == "" {
			return PathPattern{}, false
		}
		if isParamSegment(s) {
			segments = append(segments, patternSegment{param: s[1 : len(s)-1]})
			continue
		}
		if strings.ContainsAny(s, "{}") {
			return PathPattern{}, false
		}
		segments = append(segments, patternSegment{literal: s})
	}
	return PathPattern{raw: raw, segments: segments}, true
}

func (p PathPattern) Match(path string) bool {
	_, ok := p.Params(path)
	return ok
}

// Params returns the captured segments when path matches.
func (p PathPattern) Params(path string) (map[string]string, bool) {
	if p.raw == "" {
		return nil, false
	}
	in := splitPathSegments(path)
	if len(in) != len(p.segments) {
		return nil, false
	}
	params := make(map[string]string)
	for i, seg := range p.segments {
		got := in[i]
		if got == "" {
			return nil, false
		}
		if seg.param != "" {
			params[seg.param] = got
			continue
		}
		if got != seg.literal {
			return nil, false
		}
	}
	return params, true
}

func splitPathSegments(path string) []string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isParamSegment(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2 && !strings.ContainsAny(s[1:len(s)-1], "{}")
}

// MatchTemplate reports whether path matches template, which may be a plain
// path or a {name} pattern.
func MatchTemplate(template string, path string) bool {
	if p, ok := parsePathPattern(template); ok {
		return p.Match(path)
	}
	return template == path
}
