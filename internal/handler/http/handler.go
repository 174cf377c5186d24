package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/webitel/im-tag-router/internal/domain/model"
	"github.com/webitel/im-tag-router/internal/domain/registry"
	"github.com/webitel/im-tag-router/internal/service"
)

const maxPublishBody = 1 << 20

// Handler exposes the WebSocket endpoint plus the producer and introspection API.
type Handler struct {
	logger   *slog.Logger
	router   service.Router
	hub      registry.Hubber
	ws       http.Handler
	gatherer prometheus.Gatherer
	wsPath   string
}

func NewHandler(logger *slog.Logger, router service.Router, hub registry.Hubber, ws http.Handler, gatherer prometheus.Gatherer, wsPath string) *Handler {
	if wsPath == "" {
		wsPath = "/ws"
	}
	return &Handler{
		logger:   logger,
		router:   router,
		hub:      hub,
		ws:       ws,
		gatherer: gatherer,
		wsPath:   wsPath,
	}
}

// Routes builds the chi mux.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Handle(h.wsPath, h.ws)
	r.Post("/publish", h.Publish)
	r.Get("/stats", h.Stats)
	r.Get("/healthz", h.Healthz)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Publish fans out a wire request submitted by a server-side producer.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPublishBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(body) > maxPublishBody {
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("request body is too large"))
		return
	}

	resp, err := h.router.PublishText(r.Context(), body)
	if err != nil {
		status := statusOf(err)
		h.logger.DebugContext(r.Context(), "PUBLISH_REJECTED",
			"request_id", middleware.GetReqID(r.Context()),
			"status", status,
			"err", err,
		)
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Stats())
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrAuthorization):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
