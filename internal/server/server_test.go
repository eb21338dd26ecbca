package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observatory/quicklook/internal/archive"
	"github.com/observatory/quicklook/internal/cache"
	"github.com/observatory/quicklook/internal/catalog"
	"github.com/observatory/quicklook/internal/edb"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	cat, err := catalog.New()
	require.NoError(t, err)

	store, err := archive.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	telemetry, err := edb.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { telemetry.Close() })

	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	seedArchive(t, ctx, store)
	seedEDB(t, ctx, telemetry)

	srv, err := New(Options{
		Catalog: cat,
		Archive: store,
		EDB:     telemetry,
		Cache:   cache.NewFromClient(client),
	})
	require.NoError(t, err)
	return srv, srv.Router()
}

func seedArchive(t *testing.T, ctx context.Context, store *archive.Store) {
	t.Helper()
	observations := []archive.Observation{
		{
			Rootname:      "jw01022001001_02101_00001_mirimage",
			Instrument:    "miri",
			Proposal:      "1022",
			ObsStart:      time.Date(2025, 3, 10, 4, 30, 0, 0, time.UTC),
			ObsEnd:        time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC),
			Detector:      "MIRIMAGE",
			Aperture:      "MIRIM_FULL",
			Filter:        "F770W",
			ExpType:       "MIR_IMAGE",
			ReadPattern:   "FASTR1",
			Subarray:      "FULL",
			Anomalies:     []string{"snowball"},
			PreviewPath:   "/previews/jw01022001001_02101_00001_mirimage.jpg",
			ThumbnailPath: "/thumbs/jw01022001001_02101_00001_mirimage.thumb",
		},
		{
			Rootname:    "jw02733001001_02101_00002_nrcb1",
			Instrument:  "nircam",
			Proposal:    "2733",
			ObsStart:    time.Date(2025, 4, 2, 11, 0, 0, 0, time.UTC),
			ObsEnd:      time.Date(2025, 4, 2, 11, 20, 0, 0, time.UTC),
			Detector:    "NRCB1",
			Aperture:    "NRCB1_FULL",
			Filter:      "F200W",
			ExpType:     "NRC_IMAGE",
			ReadPattern: "SHALLOW4",
			Subarray:    "FULL",
		},
	}
	for _, obs := range observations {
		require.NoError(t, store.Insert(ctx, obs))
	}
}

func seedEDB(t *testing.T, ctx context.Context, store *edb.Store) {
	t.Helper()
	require.NoError(t, store.AddMnemonic(ctx, edb.Mnemonic{
		Identifier:  "SA_ZFGOUTFOV",
		Subsystem:   "SA",
		Description: "Number of guide stars out of FGS field of view",
		Unit:        "count",
		DataType:    "float",
	}))
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.AddSamples(ctx, "SA_ZFGOUTFOV", []edb.Sample{
		{Time: base, Value: 4},
		{Time: base.Add(time.Minute), Value: 6},
		{Time: base.Add(2 * time.Minute), Value: 8},
	}))
}

// submitForm posts url-encoded values with a valid CSRF token attached.
func submitForm(t *testing.T, handler http.Handler, srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	form.Set(csrfFieldName, srv.csrf.Issue())
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestQueryPageRenders(t *testing.T) {
	_, handler := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/query", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	// The page extends the shared layout; the doctype proves the parent
	// template resolved.
	assert.Contains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, body, `action="/query"`)
	assert.Contains(t, body, `name="instruments.miri"`)
	assert.Contains(t, body, `name="`+csrfFieldName+`"`)
}

func TestQuerySubmitRejectsBadCSRF(t *testing.T) {
	_, handler := newTestServer(t)

	form := url.Values{csrfFieldName: {"bogus"}, "instruments.miri": {"true"}}
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestQuerySubmitValidationErrors(t *testing.T) {
	srv, handler := newTestServer(t)

	rec := submitForm(t, handler, srv, "/query", url.Values{
		"sort_order": {"ascending"},
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "select at least one instrument")
}

func TestQuerySubmitStickyValues(t *testing.T) {
	srv, handler := newTestServer(t)

	rec := submitForm(t, handler, srv, "/query", url.Values{
		"instruments.miri": {"true"},
		"obs_date_start":   {"not-a-date"},
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "not a valid date")
	// The MIRI toggle stays checked on re-render.
	assert.Contains(t, body, `name="instruments.miri" value="true" checked`)
}

func TestQuerySubmitReturnsResults(t *testing.T) {
	srv, handler := newTestServer(t)

	rec := submitForm(t, handler, srv, "/query", url.Values{
		"instruments.miri": {"true"},
		"miri_anomalies":   {"snowball"},
		"sort_order":       {"ascending"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "jw01022001001_02101_00001_mirimage")
	assert.NotContains(t, body, "jw02733001001_02101_00002_nrcb1")
	assert.Contains(t, body, "/download/")
}

func TestQueryDownloadRoundTrip(t *testing.T) {
	srv, handler := newTestServer(t)

	rec := submitForm(t, handler, srv, "/query", url.Values{
		"instruments.nircam": {"true"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	start := strings.Index(rec.Body.String(), "/download/")
	require.NotEqual(t, -1, start)
	link := rec.Body.String()[start:]
	link = link[:strings.IndexByte(link, '"')]

	dl := httptest.NewRecorder()
	handler.ServeHTTP(dl, httptest.NewRequest(http.MethodGet, link, nil))

	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, "text/csv; charset=utf-8", dl.Header().Get("Content-Type"))
	assert.Contains(t, dl.Body.String(), "jw02733001001_02101_00002_nrcb1")

	// Tokens are one-shot.
	again := httptest.NewRecorder()
	handler.ServeHTTP(again, httptest.NewRequest(http.MethodGet, link, nil))
	assert.Equal(t, http.StatusNotFound, again.Code)
}

func TestQueryDownloadButtonStreamsCSV(t *testing.T) {
	srv, handler := newTestServer(t)

	rec := submitForm(t, handler, srv, "/query", url.Values{
		"instruments.miri": {"true"},
		"action":           {"download"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "jw01022001001_02101_00001_mirimage")
}

func TestExplorePage(t *testing.T) {
	_, handler := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explore?rootname=jw01022", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "jw01022001001_02101_00001_mirimage")
	assert.Contains(t, body, "/thumbs/jw01022001001_02101_00001_mirimage.thumb")

	missing := httptest.NewRecorder()
	handler.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/explore?rootname=jw99999", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestEDBSearchForm(t *testing.T) {
	srv, handler := newTestServer(t)

	rec := submitForm(t, handler, srv, "/edb/search", url.Values{
		"search": {"fgs"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SA_ZFGOUTFOV")

	short := submitForm(t, handler, srv, "/edb/search", url.Values{
		"search": {"x"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, short.Code)
	assert.Contains(t, short.Body.String(), "at least two characters")
}

func TestEDBQueryForm(t *testing.T) {
	srv, handler := newTestServer(t)

	rec := submitForm(t, handler, srv, "/edb/query", url.Values{
		"mnemonic":         {"SA_ZFGOUTFOV"},
		"time_range_start": {"2025-06-01"},
		"time_range_end":   {"2025-06-01"},
		"output":           {"csv"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "SA_ZFGOUTFOV")
	assert.Contains(t, body, "/download/")

	unknown := submitForm(t, handler, srv, "/edb/query", url.Values{
		"mnemonic": {"NO_SUCH_MNEMONIC"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, unknown.Code)
	assert.Contains(t, unknown.Body.String(), "not a known mnemonic")
}

func TestEDBExploreForm(t *testing.T) {
	srv, handler := newTestServer(t)

	rec := submitForm(t, handler, srv, "/edb/explore", url.Values{
		"detailed": {"true"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<td>SA</td>")
	assert.Contains(t, body, "SA_ZFGOUTFOV")
}

func TestArchiveAPI(t *testing.T) {
	_, handler := newTestServer(t)

	cases := []struct {
		path string
		key  string
		want string
	}{
		{"/api/proposals", "proposals", "1022"},
		{"/api/miri/proposals", "proposals", "1022"},
		{"/api/1022/filenames", "filenames", "jw01022001001_02101_00001_mirimage"},
		{"/api/jw01022/filenames", "filenames", "jw01022001001_02101_00001_mirimage"},
		{"/api/1022/preview_images", "preview_images", "/previews/jw01022001001_02101_00001_mirimage.jpg"},
		{"/api/jw01022/preview_images", "preview_images", "/previews/jw01022001001_02101_00001_mirimage.jpg"},
		{"/api/1022/thumbnails", "thumbnails", "/thumbs/jw01022001001_02101_00001_mirimage.thumb"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var payload map[string][]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
			assert.Contains(t, payload[tc.key], tc.want)
		})
	}
}

func TestArchiveAPIThumbnailByRootname(t *testing.T) {
	_, handler := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/jw01022001001_02101_00001_mirimage/thumbnails", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "/thumbs/jw01022001001_02101_00001_mirimage.thumb", payload["thumbnail"])
}

func TestArchiveAPINotFound(t *testing.T) {
	_, handler := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/9999/filenames", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCSRFTokenLifecycle(t *testing.T) {
	signer, err := newCSRFSigner("test-secret")
	require.NoError(t, err)

	token := signer.Issue()
	assert.True(t, signer.Verify(token))
	assert.False(t, signer.Verify("garbage"))
	assert.False(t, signer.Verify(token+"x"))

	// Expired tokens fail verification.
	signer.now = func() time.Time { return time.Now().Add(csrfMaxAge + time.Minute) }
	assert.False(t, signer.Verify(token))
}

func TestMetricsEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/query", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quicklook_http_requests_total")
}
