// Package server exposes the case service as a REST API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/caseflow/caseflow"
	"github.com/caseflow/caseflow/casework"
	"github.com/caseflow/caseflow/service/cases"
	"github.com/caseflow/caseflow/service/dao"
	"github.com/caseflow/caseflow/service/review"
)

// Server serves the case API over HTTP.
type Server struct {
	cases          *cases.Service
	reviews        review.Service
	allowedOrigins []string
	httpServer     *http.Server
}

// New builds a server around a wired service.
func New(svc *caseflow.Service) *Server {
	ret := &Server{
		cases:          svc.Cases(),
		reviews:        svc.Reviews(),
		allowedOrigins: svc.Config().AllowedOrigins,
	}
	ret.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", svc.Config().Port),
		Handler:           ret.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return ret
}

// Handler returns the routed HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/cases/{type}", s.handleSubmit)
	mux.HandleFunc("GET /api/v1/cases", s.handleList)
	mux.HandleFunc("GET /api/v1/cases/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/cases/{id}/results", s.handleResults)
	mux.HandleFunc("GET /api/v1/reviews", s.handleListReviews)
	mux.HandleFunc("POST /api/v1/reviews/{id}/decision", s.handleDecide)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /docs", s.handleDocs)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	return s.cors(mux)
}

// ListenAndServe blocks serving the API until the context is cancelled or the
// listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	log.Printf("case API listening on %s", s.httpServer.Addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	caseType := casework.CaseType(r.PathValue("type"))
	if !caseType.Valid() {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown case type %q", r.PathValue("type")))
		return
	}
	intake := &casework.Intake{}
	if err := json.NewDecoder(r.Body).Decode(intake); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	record, err := s.cases.Submit(r.Context(), caseType, intake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success":       true,
		"caseId":        record.ID,
		"status":        record.Status,
		"message":       fmt.Sprintf("Your %s case has been submitted and is being analysed.", caseType),
		"estimatedTime": caseType.EstimatedTime(),
		"agentsWorking": s.cases.AgentsWorking(caseType),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.cases.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeCaseError(w, r.PathValue("id"), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	report, err := s.cases.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeCaseError(w, r.PathValue("id"), err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []casework.Status
	if value := r.URL.Query().Get("status"); value != "" {
		statuses = append(statuses, casework.Status(value))
	}
	records, err := s.cases.List(r.Context(), statuses...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*casework.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cases": records})
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	pending, err := s.reviews.ListPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pending == nil {
		pending = []*review.Request{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reviews": pending})
}

type decisionRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	request := &decisionRequest{}
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	decision, err := s.reviews.Decide(r.Context(), r.PathValue("id"), request.Approved, request.Reason)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "caseflow",
		"status":  "running",
		"docs":    "/docs",
	})
}

func (s *Server) writeCaseError(w http.ResponseWriter, caseID string, err error) {
	switch {
	case errors.Is(err, dao.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("case %s not found", caseID))
	case errors.Is(err, cases.ErrProcessing):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("case %s is still processing", caseID))
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
