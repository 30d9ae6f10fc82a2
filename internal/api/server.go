package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/sergkorol/kommunist/config"
	"github.com/sergkorol/kommunist/internal/domain"
	"github.com/sergkorol/kommunist/internal/service"
)

// maxBodyBytes bounds uploaded documents and event lists.
const maxBodyBytes = 8 << 20

// APIResponse is the envelope of every JSON reply.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ImportRequest struct {
	Document string `json:"document"`
	Path     string `json:"path,omitempty"`
	Calendar string `json:"calendar,omitempty"`
}

type ImportResponse struct {
	Calendar string       `json:"calendar"`
	Created  int          `json:"created"`
	Updated  int          `json:"updated"`
	Skipped  []SkipItem   `json:"skipped,omitempty"`
	Partial  *PartialItem `json:"partial,omitempty"`
}

type SkipItem struct {
	Index   int    `json:"index"`
	UID     string `json:"uid,omitempty"`
	Summary string `json:"summary"`
	Reason  string `json:"reason"`
}

type PartialItem struct {
	Summary   string `json:"summary"`
	Applied   int    `json:"applied"`
	Remaining int    `json:"remaining"`
	Error     string `json:"error"`
}

type ExportRequest struct {
	Events  []domain.Event `json:"events"`
	Name    string         `json:"name,omitempty"`
	Deliver bool           `json:"deliver,omitempty"`
}

type ExportResponse struct {
	Name     string `json:"name"`
	Document string `json:"document,omitempty"`
}

// Server exposes import and export over HTTP with Basic Auth.
type Server struct {
	cfg     *config.Config
	imports *service.ImportService
	exports *service.ExportService
	mux     *http.ServeMux
	server  *http.Server
}

func New(cfg *config.Config, imports *service.ImportService, exports *service.ExportService) *Server {
	s := &Server{
		cfg:     cfg,
		imports: imports,
		exports: exports,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if s.cfg.APIUsername == "" || s.cfg.APIPassword == "" {
		log.Println("REST API disabled (API_USERNAME or API_PASSWORD not set)")
		return
	}

	s.mux.HandleFunc("/api/calendars", s.basicAuth(s.apiCalendars))
	s.mux.HandleFunc("/api/import", s.basicAuth(s.apiImport))
	s.mux.HandleFunc("/api/export", s.basicAuth(s.apiExport))
}

// Handle mounts an extra handler, such as the telegram webhook.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    ":" + s.cfg.ServerPort,
		Handler: s.mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on :%s", s.cfg.ServerPort)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// basicAuth middleware
func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != s.cfg.APIUsername || password != s.cfg.APIPassword {
			w.Header().Set("WWW-Authenticate", `Basic realm="Kommunist API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

// GET /api/calendars - list store calendars
func (s *Server) apiCalendars(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names, err := s.imports.ListCalendarNames(r.Context())
	if err != nil {
		jsonError(w, err.Error(), errorStatus(err))
		return
	}
	jsonResponse(w, names)
}

// POST /api/import - import a document body or a server-side path
func (s *Server) apiImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ImportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		jsonError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Document == "" && req.Path == "" {
		jsonError(w, "document or path is required", http.StatusBadRequest)
		return
	}

	var (
		result *service.ImportResult
		err    error
	)
	if req.Document != "" {
		result, err = s.imports.ImportText(r.Context(), req.Document, req.Calendar)
	} else {
		result, err = s.imports.ImportDocument(r.Context(), req.Path, req.Calendar)
	}

	var partial *service.PartialImportError
	if errors.As(err, &partial) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		resp := importResponse(result)
		resp.Partial = &PartialItem{
			Summary:   partial.Summary,
			Applied:   partial.Applied,
			Remaining: partial.Remaining,
			Error:     partial.Err.Error(),
		}
		json.NewEncoder(w).Encode(APIResponse{Success: false, Data: resp, Error: err.Error()})
		return
	}
	if err != nil {
		jsonError(w, err.Error(), errorStatus(err))
		return
	}

	log.Printf("API import: %s", service.FormatResult(result))
	jsonResponse(w, importResponse(result))
}

// POST /api/export - encode events, returning or delivering the document
func (s *Server) apiExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ExportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		jsonError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	for i := range req.Events {
		if err := req.Events[i].Validate(); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	name := req.Name
	if name == "" {
		name = service.DefaultDocumentName
	}

	if req.Deliver {
		if err := s.exports.Export(r.Context(), req.Events, name); err != nil {
			jsonError(w, err.Error(), http.StatusBadGateway)
			return
		}
		jsonResponse(w, ExportResponse{Name: name})
		return
	}

	doc, err := s.exports.Encode(req.Events)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, ExportResponse{Name: name, Document: doc})
}

func importResponse(r *service.ImportResult) ImportResponse {
	if r == nil {
		return ImportResponse{}
	}
	resp := ImportResponse{
		Calendar: r.Calendar.Name,
		Created:  r.Created,
		Updated:  r.Updated,
	}
	for _, sk := range r.Skipped {
		resp.Skipped = append(resp.Skipped, SkipItem{
			Index:   sk.Index,
			UID:     sk.UID,
			Summary: sk.Summary,
			Reason:  string(sk.Reason),
		})
	}
	return resp
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrMalformedDocument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInputNotFound), errors.Is(err, domain.ErrCalendarNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoCalendarsAvailable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
