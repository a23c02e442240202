package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jacksonlee411/claimwatch/internal/routing"
	"github.com/jacksonlee411/claimwatch/modules/procurement/domain/ports"
	"github.com/jacksonlee411/claimwatch/modules/procurement/infrastructure/persistence"
	"github.com/jacksonlee411/claimwatch/modules/procurement/presentation/controllers"
	"github.com/jacksonlee411/claimwatch/modules/procurement/services"
)

const (
	routeAnalyses       = "/forensics/api/analyses"
	routeLedgerAnalyses = "/forensics/api/analyses:ledger"
	routeVendorProfile  = "/forensics/api/ledger/vendors/{vendor_address}"
	routeVerifications  = "/forensics/api/verifications"

	entrypointServer = "server"
)

// ledgerDB is the subset of *pgxpool.Pool the server uses.
type ledgerDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

type HandlerOptions struct {
	// LedgerStore defaults to the pgx store over DB.
	LedgerStore ports.LedgerStore
	// DB defaults to a pool from DATABASE_URL / DB_* when either is set.
	DB ledgerDB
	// Authorizer defaults to casbin from config/access.
	Authorizer authorizer
	// Detectors defaults to config/forensics/detectors.yaml, then built-ins.
	Detectors *Detectors
	Logger    zerolog.Logger
	// Registry defaults to a fresh registry with Go and process collectors.
	Registry *prometheus.Registry
	Now      func() time.Time
}

func NewHandler(log zerolog.Logger) (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{Logger: log})
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	ctx := context.Background()

	allowlistPath, err := defaultAllowlistPath()
	if err != nil {
		return nil, err
	}
	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}
	classifier, err := routing.NewClassifier(a, entrypointServer)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	db := opts.DB
	if db == nil && opts.LedgerStore == nil && databaseConfigured() {
		pool, err := pgxpool.New(ctx, dbDSNFromEnv())
		if err != nil {
			return nil, err
		}
		db = pool
	}
	store := opts.LedgerStore
	if store == nil && db != nil {
		store = persistence.NewLedgerPGStore(db)
	}
	if store == nil {
		log.Warn().Msg("no database configured; ledger routes answer ledger_unavailable")
	}

	detectors := opts.Detectors
	if detectors == nil {
		d, err := loadDetectors(ctx)
		if err != nil {
			return nil, err
		}
		detectors = &d
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	svc, err := services.NewAnalysisService(ctx, services.AnalysisServiceOptions{
		Store:      store,
		Rules:      detectors.Rules,
		Policy:     detectors.Policy,
		Thresholds: &detectors.Thresholds,
		Now:        opts.Now,
		Logger:     log.With().Str("component", "analysis").Logger(),
		Metrics:    services.NewMetrics(reg),
	})
	if err != nil {
		return nil, err
	}
	forensicsAPI := controllers.ForensicsController{Agency: currentAgency, Service: svc}

	az := opts.Authorizer
	if az == nil {
		loaded, err := loadAuthorizer()
		if err != nil {
			return nil, err
		}
		az = loaded
	}

	routes := []struct {
		rc      routing.RouteClass
		method  string
		path    string
		handler http.Handler
	}{
		{routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok\n"))
		})},
		{routing.RouteClassOps, http.MethodGet, "/healthz", readinessHandler(db)},
		{routing.RouteClassOps, http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})},
		{routing.RouteClassInternalAPI, http.MethodPost, routeAnalyses, http.HandlerFunc(forensicsAPI.HandleAnalysesAPI)},
		{routing.RouteClassInternalAPI, http.MethodGet, routeLedgerAnalyses, http.HandlerFunc(forensicsAPI.HandleLedgerAnalysesAPI)},
		{routing.RouteClassInternalAPI, http.MethodGet, routeVendorProfile, http.HandlerFunc(forensicsAPI.HandleVendorProfileAPI)},
		{routing.RouteClassInternalAPI, http.MethodPost, routeVerifications, http.HandlerFunc(forensicsAPI.HandleVerificationsAPI)},
	}

	router := routing.NewRouter(classifier, log)
	for _, rt := range routes {
		rc, ok := a.Lookup(entrypointServer, rt.method, rt.path)
		if !ok {
			return nil, fmt.Errorf("server: route %s %s missing from allowlist", rt.method, rt.path)
		}
		if rc != rt.rc {
			return nil, fmt.Errorf("server: route %s %s is %s in allowlist, registered as %s", rt.method, rt.path, rc, rt.rc)
		}
		router.Handle(rt.rc, rt.method, rt.path, rt.handler)
	}

	var h http.Handler = router
	h = withAuthz(classifier, az, h)
	h = withRequestLog(classifier, log, h)
	return h, nil
}

func readinessHandler(db ledgerDB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				routing.WriteError(w, r, routing.RouteClassOps, http.StatusServiceUnavailable, "db_unavailable", "database unavailable")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
}
