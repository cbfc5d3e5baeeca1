package api_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/revenue-tracker/internal/api"
	"github.com/dvloznov/revenue-tracker/internal/jobs"
	"github.com/dvloznov/revenue-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/revenue-tracker/internal/ledger"
	"github.com/dvloznov/revenue-tracker/internal/pipeline"
	"github.com/dvloznov/revenue-tracker/internal/reports"
	"github.com/dvloznov/revenue-tracker/internal/session"
	"github.com/dvloznov/revenue-tracker/internal/source"
)

const queried = "analyst"

type testServer struct {
	handler  http.Handler
	sessions *session.MemoryStore
	jobs     *inmemory.Store
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	sessions := session.NewMemoryStore()
	w, err := source.ParseWindow("2018-08-01", "2018-08-31")
	require.NoError(t, err)
	_, err = pipeline.Consolidate(ctx, source.NewCSVLoader("../../testdata/revenue", nil), sessions, queried, w)
	require.NoError(t, err)

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(10, 1, jobStore)
	t.Cleanup(func() { queue.Close() })

	handler := api.NewRouter(api.Deps{
		Sessions:         sessions,
		Jobs:             jobStore,
		Publisher:        queue,
		Markets:          reports.DefaultMarkets,
		DefaultSessionID: "default",
	}, zerolog.Nop())

	return &testServer{handler: handler, sessions: sessions, jobs: jobStore}
}

func (s *testServer) do(t *testing.T, method, target, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestUnqueriedSessionConflicts(t *testing.T) {
	s := newServer(t)

	for _, path := range []string{
		"/api/transactions",
		"/api/transactions/export.csv",
		"/api/dashboard",
		"/api/top/organizers",
		"/api/charts/sales_flag",
		"/api/organizers/634364434",
	} {
		t.Run(path, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, path, "newcomer", "")
			assert.Equal(t, http.StatusConflict, rec.Code)
			assert.Contains(t, rec.Body.String(), "POST /api/queries")
		})
	}

	// A failed query leaves the session present but unqueried.
	require.NoError(t, s.sessions.Save(context.Background(), "failed", &session.State{}))
	rec := s.do(t, http.MethodGet, "/api/dashboard", "failed", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateQueryAndJobs(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/queries", "", `{"start_date":"2018-08-01","end_date":"2018-08-31"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var created map[string]string
	decode(t, rec, &created)
	assert.Equal(t, "default", created["session_id"])
	assert.Equal(t, "pending", created["status"])
	require.NotEmpty(t, created["job_id"])

	rec = s.do(t, http.MethodGet, "/api/jobs/"+created["job_id"], "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var job jobs.ConsolidateJob
	decode(t, rec, &job)
	assert.Equal(t, "default", job.SessionID)
	assert.Equal(t, "2018-08-31", job.Window.End.String())

	rec = s.do(t, http.MethodGet, "/api/jobs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, rec, &list)
	assert.Equal(t, 1, list.Count)

	// Listing is per session.
	rec = s.do(t, http.MethodGet, "/api/jobs", "someone-else", "")
	decode(t, rec, &list)
	assert.Equal(t, 0, list.Count)

	rec = s.do(t, http.MethodGet, "/api/jobs/does-not-exist", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateQuery_BadRequests(t *testing.T) {
	s := newServer(t)
	for name, body := range map[string]string{
		"malformed":    `{`,
		"missing end":  `{"start_date":"2018-08-01"}`,
		"bad date":     `{"start_date":"2018-13-01","end_date":"2018-08-31"}`,
		"end precedes": `{"start_date":"2018-08-31","end_date":"2018-08-01"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/queries", "", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListTransactions(t *testing.T) {
	s := newServer(t)

	var body struct {
		Currency string            `json:"currency"`
		Rows     []json.RawMessage `json:"rows"`
		Count    int               `json:"count"`
		Grouped  *struct {
			Groups []json.RawMessage `json:"groups"`
		} `json:"grouped"`
		StartDate string `json:"start_date"`
	}

	rec := s.do(t, http.MethodGet, "/api/transactions", queried, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, 27, body.Count)
	assert.Equal(t, "2018-08-01", body.StartDate)

	rec = s.do(t, http.MethodGet, "/api/transactions?currency=ARS", queried, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, 11, body.Count)

	body.Grouped = nil
	rec = s.do(t, http.MethodGet, "/api/transactions?groupby=currency", queried, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	require.NotNil(t, body.Grouped)
	assert.Len(t, body.Grouped.Groups, 2)

	var byColumns struct {
		Grouped *struct {
			By     string `json:"by"`
			Groups []struct {
				Key []string `json:"key"`
			} `json:"groups"`
		} `json:"grouped"`
	}
	rec = s.do(t, http.MethodGet, "/api/transactions?groupby=payment_processor,currency", queried, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &byColumns)
	require.NotNil(t, byColumns.Grouped)
	assert.Equal(t, "payment_processor,currency", byColumns.Grouped.By)
	require.Len(t, byColumns.Grouped.Groups, 5)
	for _, g := range byColumns.Grouped.Groups {
		assert.Len(t, g.Key, 2)
	}

	for _, q := range []string{"groupby=fortnight", "groupby=PaidTix,currency", "start_date=yesterday"} {
		rec = s.do(t, http.MethodGet, "/api/transactions?"+q, queried, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestExport(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/api/transactions/export.csv?currency=BRL", queried, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "transactions_2018-08-01_2018-08-31.csv")
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1+16)
	assert.Equal(t, "transaction_created_date", records[0][0])

	rec = s.do(t, http.MethodGet, "/api/transactions/export.csv?groupby=currency", queried, "")
	require.Equal(t, http.StatusOK, rec.Code)
	records, err = csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, "currency", records[0][0])

	rec = s.do(t, http.MethodGet, "/api/transactions/export.xlsx", queried, "")
	require.Equal(t, http.StatusOK, rec.Code)
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Ledger")
	require.NoError(t, err)
	assert.Len(t, rows, 28)
}

func TestDetails(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/api/organizers/497321858", queried, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var org reports.Detail
	decode(t, rec, &org)
	require.NotNil(t, org.Details)
	assert.Equal(t, "497321858", org.Details.OrganizerID)
	assert.Equal(t, 10500, org.Details.PaidTix)

	rec = s.do(t, http.MethodGet, "/api/events/88128252", queried, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var event reports.Detail
	decode(t, rec, &event)
	require.NotNil(t, event.Details)
	assert.Len(t, event.Rows, 7)

	rec = s.do(t, http.MethodGet, "/api/organizers/000", queried, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/events/88128252?start_date=2018-02-30", queried, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardTopCharts(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/api/dashboard", queried, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dash struct {
		Markets []reports.MarketSummary `json:"markets"`
	}
	decode(t, rec, &dash)
	require.Len(t, dash.Markets, 2)
	assert.Equal(t, "ARS", dash.Markets[0].Currency)
	assert.Equal(t, 1148, dash.Markets[0].Totals.PaidTix)

	for _, kind := range []string{"organizers", "refunds", "events"} {
		rec = s.do(t, http.MethodGet, "/api/top/"+kind, queried, "")
		assert.Equal(t, http.StatusOK, rec.Code, kind)
	}
	rec = s.do(t, http.MethodGet, "/api/top/venues", queried, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/charts/payment_processor", queried, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var charts map[string]reports.Chart
	decode(t, rec, &charts)
	assert.Contains(t, charts, "Argentina")
	assert.Contains(t, charts, "Brazil")

	rec = s.do(t, http.MethodGet, "/api/charts/sales_flag?filter=bogus", queried, "")
	require.Equal(t, http.StatusOK, rec.Code)
	charts = nil
	decode(t, rec, &charts)
	assert.Empty(t, charts)

	rec = s.do(t, http.MethodGet, "/api/charts/pie", queried, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRates(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPut, "/api/rates", queried, `{"rates":{"ars":40,"BRL":4}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var set struct {
		Applied bool `json:"applied"`
	}
	decode(t, rec, &set)
	assert.True(t, set.Applied)

	rec = s.do(t, http.MethodGet, "/api/dashboard", queried, "")
	var dash struct {
		Markets []reports.MarketSummary `json:"markets"`
	}
	decode(t, rec, &dash)
	assert.Equal(t, "USD", dash.Markets[0].Currency)
	assert.Equal(t, "USD", dash.Markets[1].Currency)

	rec = s.do(t, http.MethodDelete, "/api/rates", queried, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/dashboard", queried, "")
	decode(t, rec, &dash)
	assert.Equal(t, "ARS", dash.Markets[0].Currency)

	for _, body := range []string{`{}`, `{"rates":{"ARS":-1}}`, `not json`} {
		rec = s.do(t, http.MethodPut, "/api/rates", queried, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec = s.do(t, http.MethodPut, "/api/rates", "newcomer", `{"rates":{"ARS":40}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/rates", "newcomer", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGlossaryAndRouting(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/api/glossary", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var glossary map[string]string
	decode(t, rec, &glossary)
	assert.Contains(t, glossary, "eb_perc_take_rate")

	rec = s.do(t, http.MethodGet, "/api/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/dashboard", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = s.do(t, http.MethodOptions, "/api/dashboard", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

// octoberLoader serves the August fixtures as if they were October's.
type octoberLoader struct {
	source.Loader
}

func (l octoberLoader) Load(ctx context.Context, kind ledger.Kind, w source.Window) (ledger.RawTable, error) {
	t, err := l.Loader.Load(ctx, kind, w)
	if err != nil {
		return t, err
	}
	for _, row := range t.Rows {
		for i, v := range row {
			if s, ok := v.(string); ok && strings.HasPrefix(s, "2018-08-") {
				row[i] = "2018-10-" + strings.TrimPrefix(s, "2018-08-")
			}
		}
	}
	return t, nil
}

func TestRates_SurviveRequery(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	rec := s.do(t, http.MethodPut, "/api/rates", queried, `{"rates":{"ARS":40,"BRL":4}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w, err := source.ParseWindow("2018-10-01", "2018-10-31")
	require.NoError(t, err)
	loader := octoberLoader{source.NewCSVLoader("../../testdata/revenue", nil)}
	_, err = pipeline.Consolidate(ctx, loader, s.sessions, queried, w)
	require.NoError(t, err)

	rec = s.do(t, http.MethodGet, "/api/dashboard", queried, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dash struct {
		Markets []reports.MarketSummary `json:"markets"`
	}
	decode(t, rec, &dash)
	require.Len(t, dash.Markets, 2)
	assert.Equal(t, "USD", dash.Markets[0].Currency)
	assert.Equal(t, "USD", dash.Markets[1].Currency)
}

func TestRates_EmptyLedger(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	require.NoError(t, s.sessions.Save(ctx, "empty", &session.State{Queried: true}))

	rec := s.do(t, http.MethodPut, "/api/rates", "empty", `{"rates":{"ARS":40}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	st, err := s.sessions.Load(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"ARS": 40}, st.Rates)
}
