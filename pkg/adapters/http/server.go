package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/prt/internal/logging"
	"github.com/aretw0/prt/internal/presentation/graph"
	"github.com/aretw0/prt/internal/runtime"
	"github.com/aretw0/prt/pkg/domain"
	"github.com/aretw0/prt/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Definitions resolves machine definitions by name. *registry.Registry satisfies it.
type Definitions interface {
	Definition(name string) (*runtime.Definition, bool)
	Definitions() []string
}

// Server exposes a running program for introspection: machine records,
// Mermaid graphs of definitions, lifecycle notifications over SSE and metrics.
type Server struct {
	Defs    Definitions
	Streams *StreamManager

	mu        sync.RWMutex
	inspector ports.Inspector
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithGatherer serves /metrics from g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server over defs. Machine routes answer 503 until Attach is called.
func NewServer(defs Definitions, opts ...Option) *Server {
	s := &Server{
		Defs:    defs,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	return s
}

// NewHandler creates a handler inspecting a single run.
func NewHandler(inspector ports.Inspector, defs Definitions, opts ...Option) http.Handler {
	s := NewServer(defs, opts...)
	s.Attach(inspector)
	return s.Handler()
}

// Attach points the machine routes at inspector, usually the current run.
func (s *Server) Attach(inspector ports.Inspector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inspector = inspector
}

func (s *Server) current() ports.Inspector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inspector
}

// Handler returns the chi router serving all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/machines", s.ListMachines)
	r.Get("/machines/{id}", s.GetMachine)
	r.Get("/machines/{id}/graph", s.GetMachineGraph)
	r.Get("/definitions", s.ListDefinitions)
	r.Get("/definitions/{name}/graph", s.GetDefinitionGraph)
	r.Get("/events", s.SubscribeEvents)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func writeMermaid(w http.ResponseWriter, src string) {
	w.Header().Set("Content-Type", "text/vnd.mermaid; charset=utf-8")
	_, _ = w.Write([]byte(src))
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// ListMachines handles the GET /machines request.
func (s *Server) ListMachines(w http.ResponseWriter, r *http.Request) {
	in := s.current()
	if in == nil {
		http.Error(w, "No run attached", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, in.Machines())
}

func (s *Server) machine(w http.ResponseWriter, r *http.Request) (domain.MachineRecord, bool) {
	in := s.current()
	if in == nil {
		http.Error(w, "No run attached", http.StatusServiceUnavailable)
		return domain.MachineRecord{}, false
	}
	rec, err := in.Machine(domain.MachineID(chi.URLParam(r, "id")))
	if errors.Is(err, domain.ErrMachineNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return domain.MachineRecord{}, false
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Inspect error: %v", err), http.StatusInternalServerError)
		s.logger.Error("inspect failed", "err", err)
		return domain.MachineRecord{}, false
	}
	return rec, true
}

// GetMachine handles the GET /machines/{id} request.
func (s *Server) GetMachine(w http.ResponseWriter, r *http.Request) {
	if rec, ok := s.machine(w, r); ok {
		s.writeJSON(w, rec)
	}
}

// GetMachineGraph handles the GET /machines/{id}/graph request: the machine's
// definition with its active states highlighted.
func (s *Server) GetMachineGraph(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.machine(w, r)
	if !ok {
		return
	}
	def, ok := s.Defs.Definition(rec.Type)
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown machine type %s", rec.Type), http.StatusNotFound)
		return
	}
	writeMermaid(w, graph.GenerateMermaid(def, graph.OverlayFromRecord(rec)))
}

// ListDefinitions handles the GET /definitions request.
func (s *Server) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	names := s.Defs.Definitions()
	sort.Strings(names)
	s.writeJSON(w, names)
}

// GetDefinitionGraph handles the GET /definitions/{name}/graph request.
func (s *Server) GetDefinitionGraph(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	def, ok := s.Defs.Definition(name)
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown machine type %s", name), http.StatusNotFound)
		return
	}
	writeMermaid(w, graph.GenerateMermaid(def, nil))
}

// Hooks returns lifecycle hooks that broadcast every notification as JSON to
// the SSE subscribers of its run.
func (s *Server) Hooks() domain.LifecycleHooks {
	publish := func(runID string, v any) {
		b, err := json.Marshal(v)
		if err != nil {
			s.logger.Error("event encode failed", "err", err)
			return
		}
		s.Streams.Broadcast(runID, string(b))
	}
	return domain.LifecycleHooks{
		OnMachineCreated: func(_ context.Context, e *domain.MachineEvent) { publish(e.RunID, e) },
		OnMachineHalted:  func(_ context.Context, e *domain.MachineEvent) { publish(e.RunID, e) },
		OnStep:           func(_ context.Context, e *domain.StepEvent) { publish(e.RunID, e) },
		OnSend:           func(_ context.Context, e *domain.SendEvent) { publish(e.RunID, e) },
	}
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // RunID ("" for all runs) -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logging.NewNop(),
	}
}

// Subscribe registers a channel for the notifications of runID, or of every run when runID is empty.
func (sm *StreamManager) Subscribe(runID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 64)
	if _, ok := sm.subscribers[runID]; !ok {
		sm.subscribers[runID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[runID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[runID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, runID)
			}
		}
	}
}

// Broadcast delivers msg to the subscribers of runID and to those of every run.
func (sm *StreamManager) Broadcast(runID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	keys := []string{runID}
	if runID != "" {
		keys = append(keys, "")
	}
	for _, key := range keys {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				// Drop message if channel is full (slow client)
				sm.logger.Warn("SSE: Client buffer full, dropping message", "run", runID)
			}
		}
	}
}

// SubscribeEvents handles the GET /events request (SSE).
// ?run_id= restricts the stream to one run, ?watch=step,send to some notification types.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	runID := r.URL.Query().Get("run_id")
	watch := make(map[domain.EventType]bool)
	if v := r.URL.Query().Get("watch"); v != "" {
		for _, field := range strings.Split(v, ",") {
			watch[domain.EventType(strings.TrimSpace(field))] = true
		}
	}

	ch, cancel := s.Streams.Subscribe(runID)
	defer cancel()
	s.logger.Info("SSE: Subscribing to run events", "run", runID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 {
				var base domain.EventBase
				if err := json.Unmarshal([]byte(msg), &base); err == nil && !watch[base.Type] {
					continue
				}
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
