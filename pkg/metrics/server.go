package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pg-sharding/pgprof/pkg/monitor"
	"github.com/pg-sharding/pgprof/pkg/proflog"
	"github.com/pg-sharding/pgprof/pkg/redact"
	"github.com/pg-sharding/pgprof/pkg/statistics"
)

const index = `<!DOCTYPE html>
<html>
<head><title>pgprof</title></head>
<body>
<h1>pgprof</h1>
<ul>
  <li><a href="/metrics">Prometheus Metrics</a></li>
  <li><a href="/stats">Statement statistics (CSV)</a></li>
  <li><a href="/monitors">Monitors (JSON)</a></li>
  <li><a href="/connections">Open connections</a></li>
  <li><a href="/health">Health Check</a></li>
</ul>
</body>
</html>`

type handlers struct {
	admin  statistics.Admin
	logger *zerolog.Logger
}

// NewRouter builds the operator routes over admin. /metrics serves g.
func NewRouter(admin statistics.Admin, g prometheus.Gatherer, logger *zerolog.Logger) *mux.Router {
	h := &handlers{admin: admin, logger: proflog.OrDefault(logger)}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	r.HandleFunc("/monitors", h.monitors).Methods(http.MethodGet)
	r.HandleFunc("/connections", h.connections).Methods(http.MethodGet)
	r.HandleFunc("/reset", h.reset).Methods(http.MethodPost)
	r.HandleFunc("/dump", h.dump).Methods(http.MethodPost)
	r.HandleFunc("/log", h.log).Methods(http.MethodPost)
	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(index))
	}).Methods(http.MethodGet)
	return r
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	out, err := h.admin.ToCSV()
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	_, _ = w.Write([]byte(out))
}

type monitorView struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Units     string   `json:"units"`
	Hits      int64    `json:"hits"`
	Avg       *float64 `json:"avg,omitempty"`
	Total     float64  `json:"total"`
	Min       float64  `json:"min"`
	Max       float64  `json:"max"`
	Active    int64    `json:"active"`
	MaxActive int64    `json:"max_active"`
}

func viewOf(st monitor.Stat) monitorView {
	v := monitorView{
		ID:        st.Fingerprint(),
		Label:     redact.SQL(st.Label),
		Units:     st.Units,
		Hits:      st.Hits,
		Total:     st.TotalMillis(),
		Min:       st.MinMillis(),
		Max:       st.MaxMillis(),
		Active:    st.Active,
		MaxActive: st.MaxActive,
	}
	if avg := st.Avg(); !math.IsNaN(avg) {
		v.Avg = &avg
	}
	return v
}

func (h *handlers) monitors(w http.ResponseWriter, _ *http.Request) {
	stats := h.admin.Statistics()
	views := make([]monitorView, len(stats))
	for i, st := range stats {
		views[i] = viewOf(st)
	}
	h.writeJSON(w, views)
}

func (h *handlers) connections(w http.ResponseWriter, _ *http.Request) {
	callers := h.admin.Callers()
	if callers == nil {
		callers = []string{}
	}
	h.writeJSON(w, struct {
		Open    int      `json:"open"`
		Callers []string `json:"callers"`
	}{
		Open:    h.admin.OpenConnections(),
		Callers: callers,
	})
}

func (h *handlers) reset(w http.ResponseWriter, _ *http.Request) {
	h.admin.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) dump(w http.ResponseWriter, _ *http.Request) {
	if err := h.admin.DumpMe(); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) log(w http.ResponseWriter, _ *http.Request) {
	h.admin.LogMe()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *handlers) fail(w http.ResponseWriter, err error) {
	h.logger.Error().Err(err).Msg("admin request failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// Server is the operator HTTP endpoint.
type Server struct {
	srv    *http.Server
	logger *zerolog.Logger
}

// StartServer serves the operator routes on addr in the background.
func StartServer(addr string, admin statistics.Admin, g prometheus.Gatherer, logger *zerolog.Logger) *Server {
	logger = proflog.OrDefault(logger)
	s := &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(admin, g, logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}

	logger.Info().
		Str("addr", addr).
		Msg("Starting admin server")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().
				Err(err).
				Msg("Admin server failed")
		}
	}()
	return s
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
