package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/observatory/quicklook"
	"github.com/observatory/quicklook/internal/cache"
	"github.com/observatory/quicklook/internal/edb"
	"github.com/observatory/quicklook/pkg/render"

	"go.uber.org/zap"
)

const seriesCSVFilename = "quicklook_mnemonic_series.csv"

// edbForms renders the three telemetry forms. activeOp names the form being
// resubmitted with sticky values and errors; the other two render fresh.
func (s *Server) edbForms(ctx context.Context, activeOp string, active render.RenderOptions) (map[string]any, error) {
	data := map[string]any{}
	for op, key := range map[string]string{
		quicklook.OpSearchMnemonic:   "search_form",
		quicklook.OpQueryMnemonic:    "query_form",
		quicklook.OpExploreInventory: "explore_form",
	} {
		options := render.RenderOptions{}
		if op == activeOp {
			options = active
		}
		rendered, err := s.renderForm(ctx, op, options)
		if err != nil {
			return nil, err
		}
		data[key] = rendered
	}
	return data, nil
}

// renderEDB renders the telemetry page, merging result data over the forms.
func (s *Server) renderEDB(w http.ResponseWriter, r *http.Request, status int, activeOp string, active render.RenderOptions, extra map[string]any) {
	data, err := s.edbForms(r.Context(), activeOp, active)
	if err != nil {
		s.logger.Error("render edb forms", zap.Error(err))
		s.renderError(w, http.StatusInternalServerError, "The telemetry forms could not be rendered.")
		return
	}
	for key, value := range extra {
		data[key] = value
	}
	s.renderPage(w, status, "edb.tmpl", data)
}

func (s *Server) handleEDBPage(w http.ResponseWriter, r *http.Request) {
	s.renderEDB(w, r, http.StatusOK, "", render.RenderOptions{}, nil)
}

// edbSubmission verifies the CSRF token and returns the parsed form. A nil
// form means the response has already been written.
func (s *Server) edbSubmission(w http.ResponseWriter, r *http.Request) url.Values {
	form, err := parseForm(r)
	if err != nil {
		s.renderError(w, http.StatusBadRequest, "The submitted form could not be read.")
		return nil
	}
	if !s.csrf.Verify(form.Get(csrfFieldName)) {
		s.renderError(w, http.StatusForbidden,
			"The form token is missing or expired. Go back and resubmit.")
		return nil
	}
	return form
}

func (s *Server) handleMnemonicSearch(w http.ResponseWriter, r *http.Request) {
	form := s.edbSubmission(w, r)
	if form == nil {
		return
	}

	values := formValues(form)
	term := strings.TrimSpace(form.Get("search"))
	if len(term) < 2 {
		s.renderEDB(w, r, http.StatusUnprocessableEntity, quicklook.OpSearchMnemonic,
			render.RenderOptions{
				Values: values,
				Errors: map[string][]string{"search": {"enter at least two characters"}},
			}, nil)
		return
	}

	mnemonics, err := s.edb.Search(r.Context(), term)
	if err != nil {
		s.logger.Error("mnemonic search", zap.Error(err))
		s.renderError(w, http.StatusInternalServerError, "The mnemonic search failed.")
		return
	}

	s.renderEDB(w, r, http.StatusOK, quicklook.OpSearchMnemonic,
		render.RenderOptions{Values: values},
		map[string]any{"mnemonics": mnemonicRows(mnemonics)})
}

func (s *Server) handleMnemonicQuery(w http.ResponseWriter, r *http.Request) {
	form := s.edbSubmission(w, r)
	if form == nil {
		return
	}

	values := formValues(form)
	fieldErrors := map[string][]string{}

	identifier := strings.TrimSpace(form.Get("mnemonic"))
	if identifier == "" {
		fieldErrors["mnemonic"] = append(fieldErrors["mnemonic"], "a mnemonic identifier is required")
	}

	start, err := parseDate(form.Get("time_range_start"))
	if err != nil {
		fieldErrors["time_range"] = append(fieldErrors["time_range"], err.Error())
	}
	end, err := parseDate(form.Get("time_range_end"))
	if err != nil {
		fieldErrors["time_range"] = append(fieldErrors["time_range"], err.Error())
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		fieldErrors["time_range"] = append(fieldErrors["time_range"], "end date is before start date")
	}
	if !end.IsZero() {
		end = end.Add(24*time.Hour - time.Second)
	}

	if len(fieldErrors) > 0 {
		s.renderEDB(w, r, http.StatusUnprocessableEntity, quicklook.OpQueryMnemonic,
			render.RenderOptions{Values: values, Errors: fieldErrors}, nil)
		return
	}

	series, err := s.edb.QueryRange(r.Context(), identifier, start, end)
	switch {
	case errors.Is(err, edb.ErrNotFound):
		s.renderEDB(w, r, http.StatusUnprocessableEntity, quicklook.OpQueryMnemonic,
			render.RenderOptions{
				Values: values,
				Errors: map[string][]string{"mnemonic": {identifier + " is not a known mnemonic"}},
			}, nil)
		return
	case err != nil:
		s.logger.Error("mnemonic query", zap.String("mnemonic", identifier), zap.Error(err))
		s.renderError(w, http.StatusInternalServerError, "The telemetry query failed.")
		return
	}

	row := map[string]any{
		"identifier": series.Mnemonic.Identifier,
		"count":      series.Stats.Count,
		"min":        formatValue(series.Stats.Min),
		"max":        formatValue(series.Stats.Max),
		"mean":       formatValue(series.Stats.Mean),
		"stddev":     formatValue(series.Stats.StdDev),
	}
	if form.Get("output") == "csv" {
		if url := s.seriesDownloadURL(r.Context(), series); url != "" {
			row["download_url"] = url
		}
	}

	s.renderEDB(w, r, http.StatusOK, quicklook.OpQueryMnemonic,
		render.RenderOptions{Values: values},
		map[string]any{"series": row})
}

func (s *Server) handleInventoryExplore(w http.ResponseWriter, r *http.Request) {
	form := s.edbSubmission(w, r)
	if form == nil {
		return
	}

	ctx := r.Context()
	values := formValues(form)

	inventory, err := s.edb.Inventory(ctx)
	if err != nil {
		s.logger.Error("edb inventory", zap.Error(err))
		s.renderError(w, http.StatusInternalServerError, "The inventory lookup failed.")
		return
	}

	extra := map[string]any{"inventory": inventoryRows(inventory)}
	if form.Get("detailed") == "true" {
		explored, err := s.edb.Explore(ctx, strings.TrimSpace(form.Get("filter")))
		if err != nil {
			s.logger.Error("edb explore", zap.Error(err))
			s.renderError(w, http.StatusInternalServerError, "The inventory exploration failed.")
			return
		}
		extra["explored"] = exploredRows(explored)
	}

	s.renderEDB(w, r, http.StatusOK, quicklook.OpExploreInventory,
		render.RenderOptions{Values: values}, extra)
}

// seriesDownloadURL caches the sample series as CSV behind a one-shot token.
func (s *Server) seriesDownloadURL(ctx context.Context, series edb.Series) string {
	if s.cache == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := edb.WriteCSV(&buf, series); err != nil {
		s.logger.Warn("write series csv", zap.Error(err))
		return ""
	}
	token, err := s.cache.IssueToken(ctx, cache.Payload{
		ContentType: "text/csv; charset=utf-8",
		Filename:    seriesCSVFilename,
		Body:        buf.Bytes(),
	})
	if err != nil {
		s.logger.Warn("issue download token", zap.Error(err))
		return ""
	}
	return "/download/" + token
}

func mnemonicRows(mnemonics []edb.Mnemonic) []map[string]any {
	rows := make([]map[string]any, 0, len(mnemonics))
	for _, m := range mnemonics {
		rows = append(rows, map[string]any{
			"identifier":  m.Identifier,
			"subsystem":   m.Subsystem,
			"description": m.Description,
			"unit":        m.Unit,
		})
	}
	return rows
}

func inventoryRows(inventory []edb.SubsystemCount) []map[string]any {
	rows := make([]map[string]any, 0, len(inventory))
	for _, entry := range inventory {
		rows = append(rows, map[string]any{
			"subsystem": entry.Subsystem,
			"count":     entry.Count,
		})
	}
	return rows
}

func exploredRows(results []edb.ExploreResult) []map[string]any {
	rows := make([]map[string]any, 0, len(results))
	for _, entry := range results {
		rows = append(rows, map[string]any{
			"identifier": entry.Mnemonic.Identifier,
			"count":      entry.Stats.Count,
			"min":        formatValue(entry.Stats.Min),
			"max":        formatValue(entry.Stats.Max),
			"mean":       formatValue(entry.Stats.Mean),
		})
	}
	return rows
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
