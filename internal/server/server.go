package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ragtools/ragproxy/internal/chat"
	"github.com/ragtools/ragproxy/internal/sysmon"
)

// maxRequestBodySize caps inbound chat request bodies.
const maxRequestBodySize = 1 << 20

type Server struct {
	orchestrator   *chat.Orchestrator
	probe          sysmon.ReadyProbe
	sampleInterval time.Duration
	toolProxy      *httputil.ReverseProxy
	metrics        http.Handler
}

type Options struct {
	// Probe checks the local model daemon's readiness, used by the
	// health route and the metrics stream.
	Probe sysmon.ReadyProbe
	// ToolServerEndpoint enables pass-through of document ingestion
	// routes to the tool service.
	ToolServerEndpoint string
	// MetricsRegistry enables the Prometheus exposition route.
	MetricsRegistry *prometheus.Registry
	// SampleInterval controls the metrics stream cadence. Defaults to
	// one second.
	SampleInterval time.Duration
}

// NewHandler returns the complete HTTP surface: the chat route, health and
// live-metrics routes, and a pass-through to the tool service's ingestion
// routes.
func NewHandler(orchestrator *chat.Orchestrator, options *Options) (http.Handler, error) {
	if options == nil {
		options = &Options{}
	}

	s := &Server{
		orchestrator:   orchestrator,
		probe:          options.Probe,
		sampleInterval: options.SampleInterval,
	}
	if s.sampleInterval <= 0 {
		s.sampleInterval = time.Second
	}

	if options.ToolServerEndpoint != "" {
		target, err := url.Parse(options.ToolServerEndpoint)
		if err != nil {
			return nil, err
		}
		s.toolProxy = httputil.NewSingleHostReverseProxy(target)
	}

	if options.MetricsRegistry != nil {
		s.metrics = promhttp.HandlerFor(options.MetricsRegistry, promhttp.HandlerOpts{})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics/sse", s.handleMetricsStream)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	if s.toolProxy != nil {
		mux.Handle("/rag/upload", s.toolProxy)
		mux.Handle("/rag/list", s.toolProxy)
	}

	return chainMiddlewares(mux, withLogging, withCORS, withRequestID), nil
}

// errorResponse is the envelope for all failed requests.
type errorResponse struct {
	Error     string `json:"error"`
	LatencyMs int64  `json:"latencyMs"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", start)
		return
	}

	var request chat.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), start)
		return
	}

	response, err := s.orchestrator.Handle(r.Context(), &request)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrNoMessages) || errors.Is(err, chat.ErrUnknownProvider) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error(), start)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ready := false
	if s.probe != nil {
		ready = s.probe(r.Context())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"vllm_ready": ready,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string, start time.Time) {
	writeJSON(w, status, errorResponse{
		Error:     message,
		LatencyMs: time.Since(start).Milliseconds(),
	})
}
