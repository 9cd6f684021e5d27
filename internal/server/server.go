package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"panstitch/internal/pipeline"
	"panstitch/internal/storage"

	"github.com/gorilla/mux"
)

// Server exposes the stitch pipeline over HTTP: job submission, job
// history and a websocket stream of results.
type Server struct {
	addr     string
	store    *storage.Store
	pipeline *pipeline.Pipeline
	hub      *Hub
	log      *slog.Logger
	server   *http.Server
}

// NewServer creates a server bound to addr.
func NewServer(addr string, store *storage.Store, pipe *pipeline.Pipeline, log *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		store:    store,
		pipeline: pipe,
		hub:      NewHub(log),
		log:      log,
	}
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	r := mux.NewRouter()
	s.setupRoutes(r)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: r,
	}

	go s.hub.Run(ctx)
	go s.forwardResults(ctx)

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctxShutdown)
	}()

	s.log.Info("server starting", "addr", s.addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) setupRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/stitch", s.handleSubmitStitch).Methods("POST")
	r.HandleFunc("/api/jobs", s.handleJobs).Methods("GET")
	r.HandleFunc("/api/jobs/{id}", s.handleJob).Methods("GET")
	r.HandleFunc("/ws", s.hub.HandleWebSocket)
}

// forwardResults feeds pipeline results into the websocket hub.
func (s *Server) forwardResults(ctx context.Context) {
	resCh, unsubscribe := s.pipeline.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-resCh:
			if !ok {
				return
			}
			payload, err := json.Marshal(map[string]any{
				"job_id": res.Job.ID,
				"type":   res.Job.Type,
				"error":  errString(res.Error),
				"meta":   res.Meta,
			})
			if err == nil {
				s.hub.Broadcast(payload)
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// stitchSubmission is the POST /api/stitch body.
type stitchSubmission struct {
	InputDir   string   `json:"input_dir"`
	Images     []string `json:"images"`
	Output     string   `json:"output"`
	Pano       *bool    `json:"pano"`
	Projection string   `json:"projection"`
	SlopePlain float64  `json:"slope_plain"`
	Straighten bool     `json:"straighten"`
}

func (s *Server) handleSubmitStitch(w http.ResponseWriter, r *http.Request) {
	var sub stitchSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if sub.InputDir == "" && len(sub.Images) == 0 {
		http.Error(w, "input_dir or images required", http.StatusBadRequest)
		return
	}

	options := map[string]any{}
	if len(sub.Images) > 0 {
		options["images"] = sub.Images
	}
	if sub.Pano != nil {
		options["pano"] = *sub.Pano
	}
	if sub.Projection != "" {
		options["projection"] = sub.Projection
	}
	if sub.SlopePlain > 0 {
		options["slope_plain"] = sub.SlopePlain
	}
	if sub.Straighten {
		options["straighten"] = true
	}

	job := pipeline.Job{
		ID:        fmt.Sprintf("stitch-%d", time.Now().UnixNano()),
		Type:      pipeline.JobStitch,
		InputPath: sub.InputDir,
		Output:    sub.Output,
		Options:   options,
	}
	if err := s.pipeline.Submit(job); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": job.ID})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.RecentJobs(100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := s.store.Job(id)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	meta, _ := s.store.JobMeta(id)
	transforms, _ := s.store.Transforms(id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job":        rec,
		"meta":       meta,
		"transforms": transforms,
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
