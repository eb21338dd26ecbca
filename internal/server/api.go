package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/observatory/quicklook/internal/archive"
)

// writeJSON emits a single-key payload, matching the shape of the archive
// API's consumers. Lists are never null, always at least [].
func (s *Server) writeJSON(w http.ResponseWriter, key string, values []string, err error) {
	switch {
	case errors.Is(err, archive.ErrNotFound):
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Error("archive api", zap.Error(err))
		s.writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if values == nil {
		values = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{key: values})
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (s *Server) apiProposals(w http.ResponseWriter, r *http.Request) {
	values, err := s.archive.Proposals(r.Context())
	s.writeJSON(w, "proposals", values, err)
}

func (s *Server) apiInstrumentProposals(w http.ResponseWriter, r *http.Request) {
	values, err := s.archive.InstrumentProposals(r.Context(), chi.URLParam(r, "instrument"))
	s.writeJSON(w, "proposals", values, err)
}

func (s *Server) apiFilenamesByProposal(w http.ResponseWriter, r *http.Request) {
	values, err := s.archive.FilenamesByProposal(r.Context(), chi.URLParam(r, "proposal"))
	s.writeJSON(w, "filenames", values, err)
}

func (s *Server) apiFilenamesByRootname(w http.ResponseWriter, r *http.Request) {
	values, err := s.archive.FilenamesByRootname(r.Context(), chi.URLParam(r, "rootname"))
	s.writeJSON(w, "filenames", values, err)
}

func (s *Server) apiPreviewImagesByProposal(w http.ResponseWriter, r *http.Request) {
	values, err := s.archive.PreviewImagesByProposal(r.Context(), chi.URLParam(r, "proposal"))
	s.writeJSON(w, "preview_images", values, err)
}

func (s *Server) apiPreviewImagesByRootname(w http.ResponseWriter, r *http.Request) {
	values, err := s.archive.PreviewImagesByRootname(r.Context(), chi.URLParam(r, "rootname"))
	s.writeJSON(w, "preview_images", values, err)
}

func (s *Server) apiThumbnailsByProposal(w http.ResponseWriter, r *http.Request) {
	values, err := s.archive.ThumbnailsByProposal(r.Context(), chi.URLParam(r, "proposal"))
	s.writeJSON(w, "thumbnails", values, err)
}

func (s *Server) apiThumbnailByRootname(w http.ResponseWriter, r *http.Request) {
	value, err := s.archive.ThumbnailByRootname(r.Context(), chi.URLParam(r, "rootname"))
	if err != nil {
		s.writeJSON(w, "thumbnails", nil, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"thumbnail": value})
}
