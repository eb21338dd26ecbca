package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/observatory/quicklook"
	"github.com/observatory/quicklook/internal/archive"
	"github.com/observatory/quicklook/internal/cache"
	"github.com/observatory/quicklook/pkg/orchestrator"
	"github.com/observatory/quicklook/pkg/render"

	"go.uber.org/zap"
)

const (
	queryResultLimit = 500
	queryCSVFilename = "quicklook_query_results.csv"
	timestampDisplay = "2006-01-02 15:04:05"
)

// renderForm runs the pipeline for one portal operation. A fresh CSRF token
// is attached unless the caller already set one.
func (s *Server) renderForm(ctx context.Context, operationID string, options render.RenderOptions) (string, error) {
	if _, ok := options.Hidden[csrfFieldName]; !ok {
		options.Hidden = render.MergeHiddenFields(options.Hidden,
			render.CSRFToken(csrfFieldName, s.csrf.Issue()))
	}

	out, err := s.generator.Generate(ctx, orchestrator.Request{
		Source:        quicklook.PortalSource(),
		OperationID:   operationID,
		ThemeName:     s.theme,
		ThemeVariant:  s.themeVariant,
		RenderOptions: options,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *Server) handleQueryPage(w http.ResponseWriter, r *http.Request) {
	form, err := s.renderForm(r.Context(), quicklook.OpSubmitQuery, render.RenderOptions{})
	if err != nil {
		s.logger.Error("render query form", zap.Error(err))
		s.renderError(w, http.StatusInternalServerError, "The query form could not be rendered.")
		return
	}
	s.renderPage(w, http.StatusOK, "query.tmpl", map[string]any{"form": form})
}

func (s *Server) handleQuerySubmit(w http.ResponseWriter, r *http.Request) {
	form, err := parseForm(r)
	if err != nil {
		s.renderError(w, http.StatusBadRequest, "The submitted form could not be read.")
		return
	}
	if !s.csrf.Verify(form.Get(csrfFieldName)) {
		s.renderError(w, http.StatusForbidden,
			"The form token is missing or expired. Go back and resubmit.")
		return
	}

	ctx := r.Context()
	values := formValues(form)

	spec, fieldErrors := querySpecFromForm(form, s.catalog)
	if fieldErrors == nil {
		if err := spec.Validate(s.catalog); err != nil {
			fieldErrors = map[string][]string{"form": {userMessage(err)}}
		}
	}
	if fieldErrors != nil {
		s.renderQueryInvalid(w, r, values, fieldErrors)
		return
	}

	spec.Limit = queryResultLimit
	observations, err := s.archive.Search(ctx, spec)
	if err != nil {
		s.logger.Error("archive search", zap.Error(err))
		s.renderError(w, http.StatusInternalServerError, "The archive query failed.")
		return
	}

	if form.Get("action") == "download" {
		s.serveQueryCSV(w, observations)
		return
	}

	rendered, err := s.renderForm(ctx, quicklook.OpSubmitQuery,
		render.RenderOptions{Values: values})
	if err != nil {
		s.logger.Error("render query form", zap.Error(err))
		s.renderError(w, http.StatusInternalServerError, "The query form could not be rendered.")
		return
	}

	data := map[string]any{
		"form":     rendered,
		"searched": true,
		"results":  observationRows(observations),
	}
	if url := s.csvDownloadURL(ctx, form, observations); url != "" {
		data["download_url"] = url
	}
	s.renderPage(w, http.StatusOK, "query.tmpl", data)
}

// renderQueryInvalid re-renders the query form with the user's input and
// inline errors. Keys that match no form field surface in the banner.
func (s *Server) renderQueryInvalid(w http.ResponseWriter, r *http.Request, values map[string]any, payload map[string][]string) {
	fields := map[string][]string{}
	var formErrors []string
	for key, messages := range payload {
		switch key {
		case "form", "instruments":
			formErrors = render.MergeFormErrors(formErrors, messages...)
		default:
			fields[key] = messages
		}
	}

	rendered, err := s.renderForm(r.Context(), quicklook.OpSubmitQuery, render.RenderOptions{
		Values:     values,
		Errors:     fields,
		FormErrors: formErrors,
	})
	if err != nil {
		s.logger.Error("render query form", zap.Error(err))
		s.renderError(w, http.StatusInternalServerError, "The query form could not be rendered.")
		return
	}
	s.renderPage(w, http.StatusUnprocessableEntity, "query.tmpl", map[string]any{"form": rendered})
}

// csvDownloadURL caches the result set as CSV and returns a one-shot
// download link. Returns "" when caching is unavailable or fails; the page
// still renders, just without the link.
func (s *Server) csvDownloadURL(ctx context.Context, form map[string][]string, observations []archive.Observation) string {
	if s.cache == nil || len(observations) == 0 {
		return ""
	}

	// The CSRF token changes per render and must not perturb the key.
	parts := make(map[string][]string, len(form))
	for k, v := range form {
		if k != csrfFieldName {
			parts[k] = v
		}
	}
	key := cache.ContentKey(quicklook.OpSubmitQuery, parts)
	payload, ok := s.cache.Get(ctx, key)
	if !ok {
		var buf bytes.Buffer
		if err := archive.WriteCSV(&buf, observations); err != nil {
			s.logger.Warn("write query csv", zap.Error(err))
			return ""
		}
		payload = cache.Payload{
			ContentType: "text/csv; charset=utf-8",
			Filename:    queryCSVFilename,
			Body:        buf.Bytes(),
		}
		s.cache.Put(ctx, key, payload)
	}

	token, err := s.cache.IssueToken(ctx, payload)
	if err != nil {
		s.logger.Warn("issue download token", zap.Error(err))
		return ""
	}
	return "/download/" + token
}

// serveQueryCSV streams the result set directly, for the form's Download
// submit button.
func (s *Server) serveQueryCSV(w http.ResponseWriter, observations []archive.Observation) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+queryCSVFilename+`"`)
	if err := archive.WriteCSV(w, observations); err != nil {
		s.logger.Warn("write query csv", zap.Error(err))
	}
}

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	rootname := strings.TrimSpace(r.URL.Query().Get("rootname"))
	data := map[string]any{"rootname": rootname}
	if rootname == "" {
		s.renderPage(w, http.StatusOK, "explore.tmpl", data)
		return
	}

	observations, err := s.archive.ObservationsByRootname(r.Context(), rootname)
	switch {
	case errors.Is(err, archive.ErrNotFound):
		data["error"] = "No observations match " + rootname + "."
		s.renderPage(w, http.StatusNotFound, "explore.tmpl", data)
		return
	case err != nil:
		s.logger.Error("explore lookup", zap.String("rootname", rootname), zap.Error(err))
		s.renderError(w, http.StatusInternalServerError, "The observation lookup failed.")
		return
	}

	data["results"] = exploreRows(observations)
	s.renderPage(w, http.StatusOK, "explore.tmpl", data)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.renderError(w, http.StatusNotFound, "Downloads are not available.")
		return
	}
	payload, ok := s.cache.Redeem(r.Context(), chi.URLParam(r, "token"))
	if !ok {
		s.renderError(w, http.StatusNotFound, "This download link is unknown or has expired.")
		return
	}

	w.Header().Set("Content-Type", payload.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+payload.Filename+`"`)
	w.Write(payload.Body)
}

func observationRows(observations []archive.Observation) []map[string]any {
	rows := make([]map[string]any, 0, len(observations))
	for _, obs := range observations {
		rows = append(rows, map[string]any{
			"rootname":   obs.Rootname,
			"instrument": obs.Instrument,
			"proposal":   obs.Proposal,
			"obs_start":  obs.ObsStart.UTC().Format(timestampDisplay),
			"detector":   obs.Detector,
			"filter":     obs.Filter,
			"exp_type":   obs.ExpType,
			"anomalies":  strings.Join(obs.Anomalies, ", "),
		})
	}
	return rows
}

func exploreRows(observations []archive.Observation) []map[string]any {
	rows := make([]map[string]any, 0, len(observations))
	for _, obs := range observations {
		rows = append(rows, map[string]any{
			"rootname":   obs.Rootname,
			"instrument": obs.Instrument,
			"proposal":   obs.Proposal,
			"obs_start":  obs.ObsStart.UTC().Format(timestampDisplay),
			"aperture":   obs.Aperture,
			"subarray":   obs.Subarray,
			"thumbnail":  obs.ThumbnailPath,
			"preview":    obs.PreviewPath,
		})
	}
	return rows
}

// userMessage strips the package prefix from an error meant for the page.
func userMessage(err error) string {
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, ": "); ok && strings.HasPrefix(msg, "archive:") {
		return rest
	}
	return msg
}
