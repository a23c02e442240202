package routing

import (
	"encoding/json"
	"net/http"
	"strings"
)

type ErrorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    ErrorEnvelopeMeta `json:"meta"`
}

type ErrorEnvelopeMeta struct {
	Path       string     `json:"path"`
	Method     string     `json:"method"`
	RouteClass RouteClass `json:"route_class"`
}

// WriteError writes the JSON error envelope. Every route class of this service
// answers in JSON.
func WriteError(w http.ResponseWriter, r *http.Request, rc RouteClass, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Code:    code,
		Message: normalizeErrorMessage(code, message),
		TraceID: TraceIDFromRequest(r),
		Meta: ErrorEnvelopeMeta{
			Path:       r.URL.Path,
			Method:     r.Method,
			RouteClass: rc,
		},
	})
}

// normalizeErrorMessage turns a bare machine code into a sentence when the
// caller passed no human message.
func normalizeErrorMessage(code string, message string) string {
	message = strings.TrimSpace(message)
	code = strings.TrimSpace(code)
	if message != "" && message != code {
		return message
	}
	if code == "" {
		return "Request failed."
	}
	words := strings.FieldsFunc(strings.ToLower(code), func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	if len(words) == 0 {
		return "Request failed."
	}
	s := strings.Join(words, " ")
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

// TraceIDFromRequest extracts the W3C trace id from the traceparent header.
func TraceIDFromRequest(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}
