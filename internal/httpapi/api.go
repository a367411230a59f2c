// Package httpapi is the HTTP layer. It authenticates the chat bridge and
// the mail poller, then delegates everything to the dispatch pipeline.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"adjutant.org/internal/auth"
	"adjutant.org/internal/dispatch"
	"adjutant.org/internal/jobs"
	"adjutant.org/internal/mailintake"
	"adjutant.org/internal/obs"
)

// ReadyProbe — простая проверка готовности (ping БД, если она настроена).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config carries everything the HTTP layer depends on.
type Config struct {
	Service    *dispatch.Service
	Parser     *mailintake.Parser
	Jobs       jobs.Store
	Operators  auth.Registry
	Superadmin string
	ReadyProbe ReadyProbe
	Version    string
}

// API — HTTP слой.
type API struct {
	mux        *http.ServeMux
	svc        *dispatch.Service
	parser     *mailintake.Parser
	jobs       jobs.Store
	operators  auth.Registry
	superadmin string
	readyProbe ReadyProbe
	version    string
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        cfg.Service,
		parser:     cfg.Parser,
		jobs:       cfg.Jobs,
		operators:  cfg.Operators,
		superadmin: cfg.Superadmin,
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// pipeline
	a.mux.HandleFunc("POST /v1/requests", a.handleRequest)
	a.mux.HandleFunc("POST /v1/selections", a.handleSelection)
	a.mux.HandleFunc("POST /v1/mail-events", a.handleMailEvent)
	a.mux.HandleFunc("GET /v1/jobs", a.handleListJobs)

	// operator administration
	a.mux.HandleFunc("GET /v1/operators", a.handleListOperators)
	a.mux.HandleFunc("POST /v1/operators", a.handleAddOperator)
	a.mux.HandleFunc("DELETE /v1/operators/{id}", a.handleRemoveOperator)
	a.mux.HandleFunc("POST /v1/auth/token", a.handleIssueToken)

	// корень — 404
	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler возвращает готовый http.Handler: метрики снаружи, затем заголовки,
// логирование, лимиты и аутентификация.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 20, 10)
	h = Logging(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "adjutant",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "adjutant",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
