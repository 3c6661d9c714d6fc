// Package gateway exposes the lookup service over HTTP. Each endpoint maps a
// query-string parameter onto a channel command, validates it, consults the
// result cache, and runs the collector on a miss.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"lookup-gateway/cache"
	"lookup-gateway/circuitbreaker"
	"lookup-gateway/config"
	"lookup-gateway/internal"
	"lookup-gateway/logger"
	"lookup-gateway/metrics"
	"lookup-gateway/types"
)

// Runner executes one lookup query end to end.
type Runner interface {
	Run(ctx context.Context, command, param string) (*types.QueryResult, error)
}

// Handler serves the lookup endpoints.
type Handler struct {
	cfg      *config.Config
	runner   Runner
	store    *cache.Store
	breaker  *circuitbreaker.Tracker
	metrics  *metrics.Collector
	obs      *logger.ObservabilityLogger
	validate *validator.Validate
}

// New creates a handler. store, metrics and obs may be nil.
func New(cfg *config.Config, runner Runner, store *cache.Store, breaker *circuitbreaker.Tracker, m *metrics.Collector, obs *logger.ObservabilityLogger) *Handler {
	return &Handler{
		cfg:      cfg,
		runner:   runner,
		store:    store,
		breaker:  breaker,
		metrics:  m,
		obs:      obs,
		validate: validator.New(),
	}
}

// lookupRoute binds one endpoint to a channel command and a validation rule
// for its single query parameter.
type lookupRoute struct {
	command    string
	paramName  string
	rule       string
	invalidMsg string
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	routes := map[string]lookupRoute{
		"/rqh":    {"/rqh", "dni", "required,len=8,numeric", "DNI inválido. Debe tener 8 dígitos numéricos."},
		"/dend":   {"/dend", "dni", "required,len=8,numeric", "DNI inválido. Debe tener 8 dígitos numéricos."},
		"/dence":  {"/dence", "ce", "required,min=6,max=12", "Carnet de extranjería inválido. Debe tener entre 6 y 12 caracteres."},
		"/denpas": {"/denpas", "pasaporte", "required,min=6,max=12", "Pasaporte inválido. Debe tener entre 6 y 12 caracteres."},
		"/denci":  {"/denci", "ci", "required,min=6,max=12", "Cédula de identidad inválida. Debe tener entre 6 y 12 caracteres."},
		"/denp":   {"/denp", "placa", "required,min=5,max=7", "Placa inválida. Debe tener entre 5 y 7 caracteres."},
		"/denar":  {"/denar", "serie", "required,min=5,max=13", "Serie de armamento inválida. Debe tener entre 5 y 13 caracteres."},
		"/dencl":  {"/dencl", "clave", "required,min=5,max=11", "Clave de denuncia inválida. Debe tener entre 5 y 11 caracteres."},
		"/fis":    {"/fis", "dni", "required,len=8,numeric", "DNI inválido. Debe tener 8 dígitos numéricos."},
		"/fisruc": {"/fisruc", "ruc", "required,len=11,numeric", "RUC inválido. Debe tener 11 dígitos numéricos."},
	}
	for path, route := range routes {
		mux.HandleFunc(path, h.lookupEndpoint(route))
	}
	mux.HandleFunc("/fisnm", h.handleNameSearch)
	mux.HandleFunc("/command", h.handleRawCommand)
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/health", h.handleHealth)
	mux.Handle("/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(h.cfg.DownloadDir))))
}

func (h *Handler) lookupEndpoint(route lookupRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, requestID := h.begin(r)
		value := r.URL.Query().Get(route.paramName)
		if value == "" {
			h.writeValidationError(w, requestID, "Parámetro '"+route.paramName+"' requerido")
			return
		}
		if err := h.validate.Var(value, route.rule); err != nil {
			h.writeValidationError(w, requestID, route.invalidMsg)
			return
		}
		h.execute(ctx, w, requestID, route.command, value)
	}
}

// handleNameSearch joins the three name parts into the pipe-delimited form
// the channel expects. At least one part must be present.
func (h *Handler) handleNameSearch(w http.ResponseWriter, r *http.Request) {
	ctx, requestID := h.begin(r)
	q := r.URL.Query()
	nombres := q.Get("nombres")
	paterno := q.Get("paterno")
	materno := q.Get("materno")
	if nombres == "" && paterno == "" && materno == "" {
		h.writeValidationError(w, requestID, "Se requiere al menos un parámetro: 'nombres', 'paterno' o 'materno'")
		return
	}
	param := nombres + "|" + paterno + "|" + materno
	h.execute(ctx, w, requestID, "/nm", param)
}

// handleRawCommand forwards an arbitrary command without validation beyond
// requiring it to be present.
func (h *Handler) handleRawCommand(w http.ResponseWriter, r *http.Request) {
	ctx, requestID := h.begin(r)
	cmd := r.URL.Query().Get("cmd")
	if cmd == "" {
		h.writeValidationError(w, requestID, "Parámetro 'cmd' requerido")
		return
	}
	param := r.URL.Query().Get("param")
	h.execute(ctx, w, requestID, cmd, param)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	primary := h.cfg.PrimaryChannel
	status := map[string]any{
		"status": "online",
		"channels": map[string]string{
			"primary": primary,
			"backup":  h.cfg.BackupChannel,
		},
		"primary_blocked": h.breaker.IsBlocked(primary),
		"cache_enabled":   h.cfg.CacheEnabled,
		"cache_dir":       h.cfg.CacheDir,
	}
	if until, ok := h.breaker.BlockedUntil(primary); ok {
		status["primary_blocked_until"] = until
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// begin assigns the request ID and logs the inbound request.
func (h *Handler) begin(r *http.Request) (context.Context, string) {
	requestID := internal.NewRequestID()
	ctx := internal.WithRequestID(r.Context(), requestID)
	log.Printf("📥 [%s] %s %s", requestID, r.Method, r.URL.Path)
	if h.obs != nil {
		h.obs.Request(requestID, "Inbound request", map[string]interface{}{
			"path":   r.URL.Path,
			"remote": r.RemoteAddr,
		})
	}
	return ctx, requestID
}

// execute runs the command through the cache and the collector. Query
// outcomes, including named failures, are returned with HTTP 200; only
// parameter validation uses 400.
func (h *Handler) execute(ctx context.Context, w http.ResponseWriter, requestID, command, param string) {
	key := cache.Fingerprint(command, param)
	if cached, ok := h.store.Lookup(key); ok {
		log.Printf("📦 [%s] Cache hit for %s %s", requestID, command, param)
		if h.metrics != nil {
			h.metrics.CacheHits.Inc()
		}
		if h.obs != nil {
			h.obs.CacheEvent(requestID, "Cache hit", map[string]interface{}{"command": command})
		}
		h.count(command, cached.Status)
		writeJSON(w, http.StatusOK, cached)
		return
	}
	if h.metrics != nil {
		h.metrics.CacheMisses.Inc()
	}

	result, err := h.runner.Run(ctx, command, param)
	if err != nil {
		log.Printf("❌ [%s] Query %s failed: %v", requestID, command, err)
		if h.obs != nil {
			h.obs.Error(logger.ComponentGateway, logger.CategoryError, requestID, "Query failed", map[string]interface{}{
				"command": command,
				"error":   err.Error(),
			})
		}
		h.count(command, types.StatusError)
		writeJSON(w, http.StatusOK, types.Failure(err.Error()))
		return
	}

	h.store.Save(key, result)
	h.count(command, result.Status)
	log.Printf("✅ [%s] Query %s completed", requestID, command)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) count(command, status string) {
	if h.metrics != nil {
		h.metrics.QueriesTotal.WithLabelValues(command, status).Inc()
	}
}

func (h *Handler) writeValidationError(w http.ResponseWriter, requestID, message string) {
	log.Printf("⚠️ [%s] Validation failed: %s", requestID, message)
	if h.obs != nil {
		h.obs.Warn(logger.ComponentGateway, logger.CategoryValidation, requestID, message, nil)
	}
	writeJSON(w, http.StatusBadRequest, types.Failure(message))
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("⚠️ Failed to encode response: %v", err)
	}
}
