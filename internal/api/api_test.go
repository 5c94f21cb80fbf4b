package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"oqt-web/internal/catalog"
	"oqt-web/internal/health"
	"oqt-web/internal/loader"
	"oqt-web/internal/regions"
	"oqt-web/internal/render"
	"oqt-web/internal/source"
	"oqt-web/internal/viewer"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegions = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":3,"properties":{},"geometry":{"type":"Polygon","coordinates":[[[8,49],[9,49],[9,50],[8,50],[8,49]]]}}]}`

const testReport = `{"properties":{"report.metadata.name":"Simple Report","report.result.label":"red"}}`

type fetchFunc func(ctx context.Context, report, id string) (*loader.Report, error)

func (f fetchFunc) FetchReport(ctx context.Context, report, id string) (*loader.Report, error) {
	return f(ctx, report, id)
}

func newDeps(t *testing.T, f viewer.Fetcher) Deps {
	t.Helper()
	c, err := regions.Parse([]byte(testRegions))
	require.NoError(t, err)
	r, err := render.New()
	require.NoError(t, err)
	return Deps{Regions: c, Catalog: catalog.Default(), Fetcher: f, Renderer: r}
}

func okFetcher(calls *atomic.Int32) fetchFunc {
	return func(ctx context.Context, report, id string) (*loader.Report, error) {
		calls.Add(1)
		return &loader.Report{Tier: loader.TierStatic, Body: []byte(testReport)}, nil
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRegions(t *testing.T) {
	mux := BuildRoutes(newDeps(t, okFetcher(new(atomic.Int32))))
	rec := get(t, mux, "/regions")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Regions struct {
			Features []json.RawMessage `json:"features"`
		} `json:"regions"`
		Markers struct {
			Features []struct {
				ID       any `json:"id"`
				Geometry struct {
					Type        string     `json:"type"`
					Coordinates [2]float64 `json:"coordinates"`
				} `json:"geometry"`
			} `json:"features"`
		} `json:"markers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Regions.Features, 1)
	require.Len(t, body.Markers.Features, 1)
	assert.Equal(t, "3", body.Markers.Features[0].ID)
	assert.Equal(t, "Point", body.Markers.Features[0].Geometry.Type)
	assert.Equal(t, [2]float64{8.5, 49.5}, body.Markers.Features[0].Geometry.Coordinates)
}

func TestRegionsEmptyCollection(t *testing.T) {
	d := newDeps(t, okFetcher(new(atomic.Int32)))
	d.Regions = nil
	rec := get(t, BuildRoutes(d), "/regions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"features":[]`)
}

func TestReports(t *testing.T) {
	rec := get(t, BuildRoutes(newDeps(t, okFetcher(new(atomic.Int32)))), "/reports")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []catalog.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Equal(t, catalog.Default().Entries(), entries)
}

func TestReport(t *testing.T) {
	var calls atomic.Int32
	mux := BuildRoutes(newDeps(t, okFetcher(&calls)))

	rec := get(t, mux, "/report?report=SimpleReport&id=3")
	require.Equal(t, http.StatusOK, rec.Code)
	var res render.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "3", res.Feature)
	assert.Equal(t, loader.TierStatic, res.Tier)
	assert.Contains(t, res.Sections[render.SectionDots], "Bad Quality")
	require.NotNil(t, res.MiniMap)
	assert.Equal(t, "#f03", res.MiniMap.Style.FillColor)

	cases := []struct {
		target string
		msg    string
	}{
		{"/report?report=SimpleReport&id=99", viewer.AlertNoRegion},
		{"/report?report=SimpleReport", viewer.AlertNoRegion},
		{"/report?report=Report&id=3", viewer.AlertNoReport},
		{"/report?report=Nope&id=3", viewer.AlertNoReport},
		{"/report?id=99", viewer.AlertNoRegion},
	}
	for _, tc := range cases {
		rec := get(t, mux, tc.target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.target)
		assert.Contains(t, rec.Body.String(), tc.msg, tc.target)
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestReportUpstreamFailure(t *testing.T) {
	mux := BuildRoutes(newDeps(t, fetchFunc(func(ctx context.Context, report, id string) (*loader.Report, error) {
		return nil, errors.New("boom")
	})))
	rec := get(t, mux, "/report?report=RoadReport&id=3")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), viewer.AlertFetchFailed)
}

func TestReportFallsBackToDefaultAfter404(t *testing.T) {
	var posts atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		http.NotFound(w, r)
	}))
	defer upstream.Close()

	fsys := fstest.MapFS{loader.DefaultReportFile: {Data: []byte(
		`{"properties":{"report.metadata.name":"Default Report","report.result.label":"undefined","report.result.html":"<table id=\"default-table\"></table>"}}`)}}
	l := loader.New(loader.Config{Static: source.NewFS(fsys), APIURL: upstream.URL, ReportAPI: true, Client: upstream.Client()})
	mux := BuildRoutes(newDeps(t, l))

	rec := get(t, mux, "/report?report=SimpleReport&id=3")
	require.Equal(t, http.StatusOK, rec.Code)
	var res render.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, loader.TierDefault, res.Tier)
	assert.Equal(t, "Default Report", res.Report)
	assert.Contains(t, res.Sections[render.SectionText], `<table id="default-table"></table>`)
	assert.Contains(t, res.Sections[render.SectionDots], "Undefined Quality")
	assert.EqualValues(t, 1, posts.Load())
}

func TestStatsWithoutDatabase(t *testing.T) {
	rec := get(t, BuildRoutes(newDeps(t, okFetcher(new(atomic.Int32)))), "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 0, body["total"])
	assert.EqualValues(t, 1, body["regions"])
	assert.Equal(t, []any{}, body["top"])
}

func TestHealthz(t *testing.T) {
	c, err := regions.Parse([]byte(testRegions))
	require.NoError(t, err)

	rec := get(t, Healthz(nil, c), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	m := health.NewManager(time.Minute)
	m.Register(health.Func("oqt_api", func(ctx context.Context) error { return errors.New("down") }))
	m.Run(context.Background())
	rec = get(t, Healthz(m, c), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unhealthy":["oqt_api"]`)
}

func TestVisitorIP(t *testing.T) {
	cases := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded-for", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.1:5000", "1.2.3.4"},
		{"real-ip", map[string]string{"X-Real-IP": "5.6.7.8"}, "10.0.0.1:5000", "5.6.7.8"},
		{"forwarded", map[string]string{"Forwarded": `for="9.9.9.9";proto=https`}, "", "9.9.9.9"},
		{"remote", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"remote-v6", nil, "[::1]:1234", "::1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, getVisitorIP(r))
		})
	}
}

func TestBloomPositions(t *testing.T) {
	a := bloomPositions([]byte("1.2.3.4"), visitorBloomBits, visitorBloomHashes)
	b := bloomPositions([]byte("1.2.3.4"), visitorBloomBits, visitorBloomHashes)
	require.Len(t, a, visitorBloomHashes)
	assert.Equal(t, a, b)
	for _, p := range a {
		assert.Less(t, p, int64(visitorBloomBits))
	}
	first, err := bloomCheckAndSet(context.Background(), nil, "k", a, time.Minute)
	require.NoError(t, err)
	assert.False(t, first)
	assert.Equal(t, "oqt:visitors:20260102", visitorKey(time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC)))
}

type memBitmap struct {
	bits map[string]map[int64]bool
}

func newMemBitmap() *memBitmap { return &memBitmap{bits: map[string]map[int64]bool{}} }

func (b *memBitmap) GetBit(ctx context.Context, key string, offset int64) (int64, error) {
	if b.bits[key][offset] {
		return 1, nil
	}
	return 0, nil
}

func (b *memBitmap) SetBits(ctx context.Context, key string, offsets []int64, ttl time.Duration) error {
	if b.bits[key] == nil {
		b.bits[key] = map[int64]bool{}
	}
	for _, p := range offsets {
		b.bits[key][p] = true
	}
	return nil
}

type recordedReport struct {
	report, id, tier string
	ok               bool
}

type memStats struct {
	mu       sync.Mutex
	visitors []bool
	reports  []recordedReport
}

func (m *memStats) IncrStats(ctx context.Context, newVisitor bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visitors = append(m.visitors, newVisitor)
	return nil
}

func (m *memStats) RecordReport(ctx context.Context, report, featureID, tier string, ok bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, recordedReport{report: report, id: featureID, tier: tier, ok: ok})
	return nil
}

func TestStatsFetcherRecordsCompletedRequests(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want []recordedReport
	}{
		{"success", nil, []recordedReport{{"SimpleReport", "3", loader.TierStatic, true}}},
		{"failure", errors.New("upstream down"), []recordedReport{{"SimpleReport", "3", "", false}}},
		{"cancelled", context.Canceled, nil},
		{"wrapped-cancel", fmt.Errorf("static: %w", context.Canceled), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := &memStats{}
			next := fetchFunc(func(ctx context.Context, report, id string) (*loader.Report, error) {
				if tc.err != nil {
					return nil, tc.err
				}
				return &loader.Report{Tier: loader.TierStatic, Body: []byte(testReport)}, nil
			})
			f := &statsFetcher{next: next, st: st, visitor: "1.2.3.4", now: time.Now}

			rep, err := f.FetchReport(context.Background(), "SimpleReport", "3")
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.Nil(t, rep)
			} else {
				require.NoError(t, err)
				assert.Equal(t, loader.TierStatic, rep.Tier)
			}
			assert.Equal(t, tc.want, st.reports)
			assert.Len(t, st.visitors, len(tc.want))
		})
	}
}

func TestStatsFetcherCountsVisitorOncePerDay(t *testing.T) {
	st := &memStats{}
	bits := newMemBitmap()
	day := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	now := day
	fetch := func(visitor string, bm bitmap) {
		f := &statsFetcher{next: okFetcher(new(atomic.Int32)), st: st, bits: bm, visitor: visitor, now: func() time.Time { return now }}
		_, err := f.FetchReport(context.Background(), "SimpleReport", "3")
		require.NoError(t, err)
	}

	fetch("1.2.3.4", bits)
	fetch("1.2.3.4", bits)
	fetch("5.6.7.8", bits)
	fetch("9.9.9.9", nil)
	now = day.Add(24 * time.Hour)
	fetch("1.2.3.4", bits)

	assert.Equal(t, []bool{true, false, true, false, true}, st.visitors)
	assert.Len(t, bits.bits, 2)
	assert.Contains(t, bits.bits, "oqt:visitors:20260304")
	assert.Contains(t, bits.bits, "oqt:visitors:20260305")
}

func TestWebsocketSession(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(BuildRoutes(newDeps(t, okFetcher(&calls))))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(viewer.Event{Type: viewer.EventLoad, Search: "?id=3&report=SimpleReport"}))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ops []string
	for {
		var p viewer.Patch
		require.NoError(t, conn.ReadJSON(&p))
		ops = append(ops, p.Op)
		if p.Op == viewer.PatchResults {
			require.NotNil(t, p.Result)
			assert.Equal(t, "3", p.Result.Feature)
			assert.Contains(t, p.Result.Sections[render.SectionDots], "Report: Simple Report")
			break
		}
		require.NotEqual(t, viewer.PatchAlert, p.Op, p.Message)
	}
	assert.Equal(t, viewer.PatchInfo, ops[0])
	assert.Contains(t, ops, viewer.PatchLoading)
	assert.Contains(t, ops, viewer.PatchClear)
	assert.EqualValues(t, 1, calls.Load())
}
