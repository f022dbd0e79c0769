package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ppiankov/plancheck/internal/extract"
	"github.com/ppiankov/plancheck/internal/logger"
	"github.com/ppiankov/plancheck/internal/pipeline"
	"github.com/ppiankov/plancheck/internal/rulegen"
	"github.com/ppiankov/plancheck/internal/store"
	"github.com/ppiankov/plancheck/internal/util"
)

const defaultAuthority = "UNKNOWN"

var errMissingFile = errors.New("file required")

type checkTextRequest struct {
	Authority string `json:"authority"`
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
}

type extractURLRequest struct {
	PDFURL    string `json:"pdf_url"`
	Authority string `json:"authority"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	authority := r.URL.Query().Get("authority")
	if authority == "" {
		authority = defaultAuthority
	}

	slug, rules, err := s.pipeline.Rules(r.Context(), authority)
	if err != nil {
		respondPipelineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"authority": slug,
		"count":     len(rules),
		"rules":     rules,
	})
}

func (s *Server) handleRuleSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.pipeline.Store().List(r.Context())
	if err != nil {
		respondPipelineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":     len(sets),
		"rule_sets": sets,
	})
}

// handleCheckDrawing accepts a multipart upload (file + authority) or JSON {authority, text}
func (s *Server) handleCheckDrawing(w http.ResponseWriter, r *http.Request) {
	if isJSON(r) {
		var req checkTextRequest
		if err := decodeJSON(w, r, s.config.MaxUploadBytes, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			respondError(w, http.StatusBadRequest, "text required", nil)
			return
		}

		report, err := s.pipeline.CheckText(r.Context(), orDefault(req.Authority), req.Source, req.Text)
		if err != nil {
			respondPipelineError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, report)
		return
	}

	upload, err := s.readUpload(w, r)
	if err != nil {
		respondUploadError(w, err)
		return
	}

	report, err := s.pipeline.CheckDocument(r.Context(), upload.authority, upload.name, upload.data)
	if err != nil {
		respondPipelineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleExtractFromURL(w http.ResponseWriter, r *http.Request) {
	var req extractURLRequest
	if err := decodeJSON(w, r, 1<<20, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.PDFURL == "" {
		respondError(w, http.StatusBadRequest, "pdf_url required", nil)
		return
	}

	report, err := s.pipeline.ExtractRulesFromURL(r.Context(), orDefault(req.Authority), req.PDFURL)
	if err != nil {
		respondPipelineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleExtractFromFile(w http.ResponseWriter, r *http.Request) {
	upload, err := s.readUpload(w, r)
	if err != nil {
		respondUploadError(w, err)
		return
	}

	report, err := s.pipeline.ExtractRulesFromDocument(r.Context(), upload.authority, upload.name, upload.data)
	if err != nil {
		respondPipelineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

type upload struct {
	authority string
	name      string
	data      []byte
}

// readUpload reads the multipart "file" and "authority" fields. Spooled temp files are
// removed before returning.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, fmt.Errorf("parse upload: %w", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errMissingFile
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	return &upload{
		authority: orDefault(r.FormValue("authority")),
		name:      header.Filename,
		data:      data,
	}, nil
}

func orDefault(authority string) string {
	if strings.TrimSpace(authority) == "" {
		return defaultAuthority
	}
	return authority
}

func isJSON(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/json"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

func respondUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "upload too large", err)
	case errors.Is(err, errMissingFile):
		respondError(w, http.StatusBadRequest, "file required", nil)
	default:
		respondError(w, http.StatusBadRequest, "invalid upload", err)
	}
}

// respondPipelineError maps pipeline sentinels to HTTP statuses
func respondPipelineError(w http.ResponseWriter, err error) {
	var statusErr *pipeline.StatusError
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "rules not found", err)
	case errors.Is(err, store.ErrInvalidAuthority),
		errors.Is(err, extract.ErrUnsupportedDocument),
		errors.Is(err, rulegen.ErrNoText):
		respondError(w, http.StatusBadRequest, "invalid input", err)
	case errors.Is(err, rulegen.ErrNoCandidates):
		respondError(w, http.StatusUnprocessableEntity, "no rules could be extracted", err)
	case errors.Is(err, pipeline.ErrNoProvider):
		respondError(w, http.StatusServiceUnavailable, "rule extraction is not configured", err)
	case errors.Is(err, pipeline.ErrTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "document too large", err)
	case errors.Is(err, util.ErrDisallowed), errors.As(err, &statusErr):
		respondError(w, http.StatusBadGateway, "document could not be fetched", err)
	default:
		logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error(), nil)
	}
}
