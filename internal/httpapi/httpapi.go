// Package httpapi exposes the engine and the text evaluator over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/consentwatch/internal/engine"
	"github.com/ppiankov/consentwatch/internal/extract"
	"github.com/ppiankov/consentwatch/internal/model"
	"github.com/ppiankov/consentwatch/internal/sensitivity"
)

const maxBodyBytes = 1 << 20

// TextRequest is the body of POST /v1/text.
type TextRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the HTTP API.
type Server struct {
	engine  *engine.Engine
	session *sensitivity.Session
	log     io.Writer
}

// New builds the API. session may be nil, which answers text requests with 503.
func New(e *engine.Engine, session *sensitivity.Session, log io.Writer) *Server {
	if log == nil {
		log = os.Stderr
	}
	return &Server{engine: e, session: session, log: log}
}

// Routes returns the router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/exchanges", s.evaluateExchange)
		r.Post("/exchanges/{domain}", s.evaluateExchangeDomain)
		r.Post("/text", s.evaluateText)
		r.Get("/text", s.banner)
		r.Delete("/text", s.clearBanner)
		r.Get("/history/{domain}", s.history)
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) evaluateExchange(w http.ResponseWriter, r *http.Request) {
	var c extract.Capture
	if !decode(w, r, &c) {
		return
	}
	out, err := s.engine.Process(r.Context(), c)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) evaluateExchangeDomain(w http.ResponseWriter, r *http.Request) {
	domain, ok := model.ParseDomain(chi.URLParam(r, "domain"))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown domain %q", chi.URLParam(r, "domain")))
		return
	}
	var c extract.Capture
	if !decode(w, r, &c) {
		return
	}
	report, err := s.engine.ProcessDomain(r.Context(), c, domain)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if report == nil {
		writeJSON(w, http.StatusOK, engine.Outcome{Skipped: true})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) evaluateText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if s.session == nil {
		writeError(w, http.StatusServiceUnavailable, sensitivity.ErrUnconfigured.Error())
		return
	}
	res, err := s.session.Submit(r.Context(), req.Text)
	if err != nil {
		s.fail(w, TextStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, model.TextEvaluation{Result: res, Visible: s.session.Visible(res)})
}

func (s *Server) banner(w http.ResponseWriter, _ *http.Request) {
	if s.session == nil {
		writeJSON(w, http.StatusOK, sensitivity.Banner{})
		return
	}
	writeJSON(w, http.StatusOK, s.session.Banner())
}

func (s *Server) clearBanner(w http.ResponseWriter, _ *http.Request) {
	if s.session != nil {
		s.session.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	domain, ok := model.ParseDomain(chi.URLParam(r, "domain"))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown domain %q", chi.URLParam(r, "domain")))
		return
	}
	entries, err := s.engine.History(r.Context(), domain)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	resp := model.HistoryPage{Domain: domain, Reports: make([]*model.Report, 0, len(entries))}
	for _, e := range entries {
		resp.Reports = append(resp.Reports, e.Report)
	}
	writeJSON(w, http.StatusOK, resp)
}

// TextStatus maps a text evaluation error to an HTTP status.
func TextStatus(err error) int {
	switch {
	case errors.Is(err, sensitivity.ErrUnconfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, sensitivity.ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, sensitivity.ErrMalformedResponse), errors.Is(err, sensitivity.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		fmt.Fprintf(s.log, "httpapi: %v\n", err)
	}
	writeError(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
