package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/apperr"
	"github.com/talentsift/talentsift/internal/chunker"
	"github.com/talentsift/talentsift/internal/docstore"
	"github.com/talentsift/talentsift/internal/ranker"
)

// documentPayload is the upload body shared by JD and CV endpoints. Exactly
// one of raw_text and base64_content should be set.
type documentPayload struct {
	Filename      string `json:"filename"`
	RawText       string `json:"raw_text"`
	Base64Content string `json:"base64_content"`
	ContentType   string `json:"content_type"`
}

func (d documentPayload) content() chunker.Content {
	mime := d.ContentType
	if mime == "" {
		mime = "application/pdf"
	}
	return chunker.Content{RawText: d.RawText, Base64: d.Base64Content, MIME: mime}
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/jd", s.handleUploadJD)
		r.Get("/jds", s.handleListJDs)
		r.Get("/jd/{id}/cvs", s.handleListCVs)
		r.Post("/cv", s.handleUploadCV)
		r.Post("/cv/batch", s.handleUploadCVBatch)
		r.Post("/rank", s.handleRank)
		r.Post("/questions", s.handleQuestions)
		r.Get("/documents/{id}/text", s.handleDocumentText)
	})
}

func (s *Server) handleUploadJD(w http.ResponseWriter, r *http.Request) {
	var payload documentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondError(w, apperr.New(apperr.KindInput, "invalid request body"))
		return
	}

	result, err := s.ingestor.ProcessJD(r.Context(), payload.content(), payload.Filename)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleUploadCV(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		documentPayload
		JDID string `json:"jd_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondError(w, apperr.New(apperr.KindInput, "invalid request body"))
		return
	}

	result, err := s.ingestor.ProcessCV(r.Context(), payload.content(), payload.Filename, payload.JDID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleUploadCVBatch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		JDID  string            `json:"jd_id"`
		Items []documentPayload `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondError(w, apperr.New(apperr.KindInput, "invalid request body"))
		return
	}
	if payload.JDID == "" {
		s.respondError(w, apperr.New(apperr.KindInput, "jd_id is required"))
		return
	}
	if len(payload.Items) == 0 {
		s.respondError(w, apperr.New(apperr.KindInput, "items must not be empty"))
		return
	}

	contents := make([]chunker.Content, len(payload.Items))
	filenames := make([]string, len(payload.Items))
	for i, item := range payload.Items {
		contents[i] = item.content()
		filenames[i] = item.Filename
	}

	results := s.ingestor.ProcessCVBatch(r.Context(), contents, filenames, payload.JDID)
	s.respondJSON(w, http.StatusOK, map[string]any{"jd_id": payload.JDID, "results": results})
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		JDID  string   `json:"jd_id"`
		CVIDs []string `json:"cv_ids"`
		TopN  int      `json:"top_n"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondError(w, apperr.New(apperr.KindInput, "invalid request body"))
		return
	}
	if payload.JDID == "" || len(payload.CVIDs) == 0 {
		s.respondError(w, apperr.New(apperr.KindInput, "jd_id and cv_ids are required"))
		return
	}

	candidates := make([]ranker.Candidate, len(payload.CVIDs))
	for i, cvID := range payload.CVIDs {
		filename := "CV_" + cvID
		if doc, err := s.catalog.Get(r.Context(), cvID); err == nil && doc.Filename != "" {
			filename = doc.Filename
		}
		candidates[i] = ranker.Candidate{CVID: cvID, Filename: filename}
	}

	ranked, err := s.ranker.Rank(r.Context(), payload.JDID, candidates, payload.TopN)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"jd_id": payload.JDID, "ranked_cvs": ranked})
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		JDID string `json:"jd_id"`
		CVID string `json:"cv_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondError(w, apperr.New(apperr.KindInput, "invalid request body"))
		return
	}

	questions, err := s.questions.Generate(r.Context(), payload.JDID, payload.CVID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, questions)
}

func (s *Server) handleListCVs(w http.ResponseWriter, r *http.Request) {
	jdID := chi.URLParam(r, "id")

	docs, err := s.catalog.CVsForJD(r.Context(), jdID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	type cvEntry struct {
		CVID       string `json:"cv_id"`
		Filename   string `json:"filename"`
		Structured string `json:"structured_data,omitempty"`
		UploadedAt string `json:"uploaded_at"`
	}
	entries := make([]cvEntry, len(docs))
	for i, doc := range docs {
		entries[i] = cvEntry{
			CVID:       doc.ID,
			Filename:   doc.Filename,
			Structured: doc.Structured,
			UploadedAt: doc.UploadedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"jd_id": jdID, "cvs": entries})
}

func (s *Server) handleListJDs(w http.ResponseWriter, r *http.Request) {
	docs, err := s.catalog.ListByKind(r.Context(), docstore.KindJD)
	if err != nil {
		s.respondError(w, err)
		return
	}

	type jdEntry struct {
		JDID       string `json:"jd_id"`
		Filename   string `json:"filename"`
		Keywords   string `json:"keywords,omitempty"`
		UploadedAt string `json:"uploaded_at"`
	}
	entries := make([]jdEntry, len(docs))
	for i, doc := range docs {
		entries[i] = jdEntry{
			JDID:       doc.ID,
			Filename:   doc.Filename,
			Keywords:   doc.Structured,
			UploadedAt: doc.UploadedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"jds": entries})
}

func (s *Server) handleDocumentText(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")

	kind := docstore.Kind(r.URL.Query().Get("kind"))
	if !kind.Valid() {
		s.respondError(w, apperr.New(apperr.KindInput, "kind query parameter must be jd or cv"))
		return
	}

	text, err := s.texts.ReconstructFullText(r.Context(), docID, kind)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"doc_id": docID, "text": text})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("encoding response failed", zap.Error(err))
	}
}

// respondError maps the error's kind to an HTTP status and renders the
// user-facing message, keeping the full cause in the logs only.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindInput:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindUpstream:
		status = http.StatusBadGateway
	}

	if status >= 500 {
		s.log.Error("request failed", zap.Error(err))
	} else {
		s.log.Warn("request rejected", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": apperr.MessageOf(err)})
}
