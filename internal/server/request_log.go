package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jacksonlee411/claimwatch/internal/routing"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func withRequestLog(classifier *routing.Classifier, log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		rc := routing.RouteClassPublicAPI
		if classifier != nil {
			rc = classifier.Classify(r.URL.Path)
		}
		ev := log.Info()
		switch {
		case rec.status >= 500:
			ev = log.Error()
		case rc == routing.RouteClassOps:
			ev = log.Debug()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route_class", string(rc)).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Str("trace_id", routing.TraceIDFromRequest(r)).
			Dur("elapsed", time.Since(started)).
			Msg("request")
	})
}
