package server

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/observatory/quicklook/internal/archive"
	"github.com/observatory/quicklook/internal/catalog"
)

// dateLayout is the wire format for the query form's date-range inputs.
const dateLayout = "2006-01-02"

// instrumentPrefix marks the per-instrument panel toggles in the query form.
const instrumentPrefix = "instruments."

// formValues flattens url.Values into the map the renderer expects for
// sticky re-renders. Multi-valued keys (checkbox groups) become []string,
// everything else a plain string. The CSRF token never round-trips.
func formValues(form url.Values) map[string]any {
	values := make(map[string]any, len(form))
	for key, vals := range form {
		if key == csrfFieldName {
			continue
		}
		switch len(vals) {
		case 0:
		case 1:
			values[key] = vals[0]
		default:
			values[key] = append([]string(nil), vals...)
		}
	}
	return values
}

// parseForm reads the request body with a sane size cap.
func parseForm(r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("server: parse form: %w", err)
	}
	return r.PostForm, nil
}

// querySpecFromForm maps the query form's submitted values onto an archive
// query. Field errors are keyed by form field name so the page can show them
// inline; a nil error map means the spec is ready to run.
func querySpecFromForm(form url.Values, cat *catalog.Catalog) (archive.QuerySpec, map[string][]string) {
	fieldErrors := map[string][]string{}
	spec := archive.QuerySpec{
		Selections: map[string]map[catalog.Kind][]string{},
		SortOrder:  form.Get("sort_order"),
	}

	for _, instrument := range cat.Instruments() {
		if form.Get(instrumentPrefix+instrument) == "true" {
			spec.Instruments = append(spec.Instruments, instrument)
		}
	}
	sort.Strings(spec.Instruments)

	if len(spec.Instruments) == 0 {
		fieldErrors["instruments"] = append(fieldErrors["instruments"],
			"select at least one instrument")
	}

	switch spec.SortOrder {
	case "":
		spec.SortOrder = archive.SortAscending
	case archive.SortAscending, archive.SortDescending, archive.SortRecent:
	default:
		fieldErrors["sort_order"] = append(fieldErrors["sort_order"],
			fmt.Sprintf("unknown sort order %q", spec.SortOrder))
	}

	var err error
	if spec.Start, err = parseDate(form.Get("obs_date_start")); err != nil {
		fieldErrors["obs_date"] = append(fieldErrors["obs_date"], err.Error())
	}
	if spec.End, err = parseDate(form.Get("obs_date_end")); err != nil {
		fieldErrors["obs_date"] = append(fieldErrors["obs_date"], err.Error())
	}
	if !spec.Start.IsZero() && !spec.End.IsZero() && spec.End.Before(spec.Start) {
		fieldErrors["obs_date"] = append(fieldErrors["obs_date"],
			"end date is before start date")
	}
	if !spec.End.IsZero() {
		// The form collects dates, not instants; an end date covers the
		// whole day.
		spec.End = spec.End.Add(24*time.Hour - time.Second)
	}

	for _, instrument := range spec.Instruments {
		for _, kind := range catalog.Kinds() {
			field := instrument + "_" + string(kind)
			values := form[field]
			if len(values) == 0 {
				continue
			}
			for _, value := range values {
				if !cat.Valid(instrument, kind, value) {
					fieldErrors[field] = append(fieldErrors[field],
						fmt.Sprintf("%s is not a known %s value", value, strings.ReplaceAll(string(kind), "_", " ")))
				}
			}
			if spec.Selections[instrument] == nil {
				spec.Selections[instrument] = map[catalog.Kind][]string{}
			}
			spec.Selections[instrument][kind] = append([]string(nil), values...)
		}
	}

	if len(fieldErrors) == 0 {
		return spec, nil
	}
	return spec, fieldErrors
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a valid date (expected YYYY-MM-DD)", value)
	}
	return t.UTC(), nil
}
