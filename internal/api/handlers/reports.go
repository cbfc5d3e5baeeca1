package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/revenue-tracker/internal/api/middleware"
	"github.com/dvloznov/revenue-tracker/internal/export"
	"github.com/dvloznov/revenue-tracker/internal/ledger"
	"github.com/dvloznov/revenue-tracker/internal/reports"
	"github.com/dvloznov/revenue-tracker/internal/session"
)

const notQueriedMessage = "No consolidated data for this session. POST /api/queries with start_date and end_date first."

// ReportsHandler serves the reports over the caller's session ledger.
type ReportsHandler struct {
	store        session.Store
	markets      reports.Markets
	defaultRates map[string]float64
	log          zerolog.Logger
}

// NewReportsHandler creates a new reports handler. defaultRates, when set,
// apply to sessions that have no rates of their own.
func NewReportsHandler(store session.Store, markets reports.Markets, defaultRates map[string]float64, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		store:        store,
		markets:      markets,
		defaultRates: defaultRates,
		log:          log,
	}
}

// loadState returns the queried state of the caller's session. It answers
// 409 when the session has not been consolidated yet.
func (h *ReportsHandler) loadState(w http.ResponseWriter, r *http.Request) (*session.State, bool) {
	id := middleware.GetSessionID(r.Context())
	st, err := h.store.Load(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) || (err == nil && !st.Queried) {
		middleware.WriteError(w, http.StatusConflict, notQueriedMessage)
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Str("session_id", id).Msg("Failed to load session")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load session")
		return nil, false
	}
	return st, true
}

// conversion returns the rates in effect for st.
func (h *ReportsHandler) conversion(st *session.State) ledger.Conversion {
	return st.EffectiveConversion(h.defaultRates)
}

func criteria(r *http.Request) (ledger.Criteria, error) {
	params := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return ledger.ParseCriteria(params)
}

// grouping reads groupby: a named grouping or a comma-separated column list.
func grouping(r *http.Request) (*ledger.GroupKey, error) {
	value := strings.TrimSpace(r.URL.Query().Get("groupby"))
	if value == "" {
		return nil, nil
	}
	k, err := ledger.ParseGroupKey(value)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// ListTransactions handles GET /api/transactions
func (h *ReportsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	st, ok := h.loadState(w, r)
	if !ok {
		return
	}
	c, err := criteria(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	by, err := grouping(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	listing, err := reports.Transactions(st.Ledger, c, h.conversion(st), by)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if listing.Rows == nil && listing.Grouped == nil {
		listing.Rows = ledger.Ledger{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_time":   st.RunTime,
		"start_date": st.Window.Start,
		"end_date":   st.Window.End,
		"currency":   listing.Currency,
		"rows":       listing.Rows,
		"grouped":    listing.Grouped,
		"totals":     listing.Totals,
		"count":      len(listing.Rows),
	})
}

// ExportCSV handles GET /api/transactions/export.csv
func (h *ReportsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.exportTransactions(w, r, "text/csv", "csv", export.WriteCSV, export.WriteGroupedCSV)
}

// ExportXLSX handles GET /api/transactions/export.xlsx
func (h *ReportsHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.exportTransactions(w, r,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx",
		export.WriteXLSX, export.WriteGroupedXLSX)
}

func (h *ReportsHandler) exportTransactions(
	w http.ResponseWriter,
	r *http.Request,
	contentType, ext string,
	writeLedger func(io.Writer, ledger.Ledger) error,
	writeGrouped func(io.Writer, ledger.Grouped) error,
) {
	st, ok := h.loadState(w, r)
	if !ok {
		return
	}
	c, err := criteria(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	by, err := grouping(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	listing, err := reports.Transactions(st.Ledger, c, h.conversion(st), by)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Render fully before writing headers so a failure can still be reported.
	var buf bytes.Buffer
	if listing.Grouped != nil {
		err = writeGrouped(&buf, *listing.Grouped)
	} else {
		err = writeLedger(&buf, listing.Rows)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to export transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to export transactions")
		return
	}

	name := "transactions"
	if st.Window.Start.IsValid() {
		name = fmt.Sprintf("transactions_%s_%s", st.Window.Start, st.Window.End)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"."+ext))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GetOrganizer handles GET /api/organizers/{id}
func (h *ReportsHandler) GetOrganizer(w http.ResponseWriter, r *http.Request) {
	h.detail(w, r, "Organizer", reports.OrganizerDetail)
}

// GetEvent handles GET /api/events/{id}
func (h *ReportsHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	h.detail(w, r, "Event", reports.EventDetail)
}

func (h *ReportsHandler) detail(
	w http.ResponseWriter,
	r *http.Request,
	subject string,
	build func(ledger.Ledger, string, ledger.Criteria, ledger.Conversion) *reports.Detail,
) {
	st, ok := h.loadState(w, r)
	if !ok {
		return
	}
	c, err := criteria(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	d := build(st.Ledger, chi.URLParam(r, "id"), c, h.conversion(st))
	if d.Details == nil {
		middleware.WriteError(w, http.StatusNotFound, subject+" not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, d)
}

// Dashboard handles GET /api/dashboard
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	st, ok := h.loadState(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_time":   st.RunTime,
		"start_date": st.Window.Start,
		"end_date":   st.Window.End,
		"markets":    reports.Dashboard(st.Ledger, h.conversion(st), h.markets),
	})
}

// Top handles GET /api/top/{kind} for organizers, refunds and events.
func (h *ReportsHandler) Top(w http.ResponseWriter, r *http.Request) {
	var spec ledger.RankSpec
	switch chi.URLParam(r, "kind") {
	case "organizers":
		spec = ledger.TopOrganizers
	case "refunds":
		spec = ledger.TopOrganizersByRefund
	case "events":
		spec = ledger.TopEvents
	default:
		middleware.WriteError(w, http.StatusNotFound, "Unknown ranking")
		return
	}
	st, ok := h.loadState(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reports.Top(st.Ledger, spec, h.conversion(st), h.markets))
}

// Chart handles GET /api/charts/{kind}?filter=gtv|gtf|organizers
func (h *ReportsHandler) Chart(w http.ResponseWriter, r *http.Request) {
	var build func(ledger.Ledger, string, ledger.Conversion, reports.Markets) map[string]reports.Chart
	switch chi.URLParam(r, "kind") {
	case "payment_processor":
		build = reports.PaymentProcessorChart
	case "sales_flag":
		build = reports.SalesFlagChart
	default:
		middleware.WriteError(w, http.StatusNotFound, "Unknown chart")
		return
	}
	st, ok := h.loadState(w, r)
	if !ok {
		return
	}
	metric := r.URL.Query().Get("filter")
	if metric == "" {
		metric = reports.MetricGTV
	}
	middleware.WriteJSON(w, http.StatusOK, build(st.Ledger, metric, h.conversion(st), h.markets))
}

// SetRates handles PUT /api/rates. The body holds either per-currency
// divisors applied to every month of whatever ledger the session holds, or a
// month-keyed table.
func (h *ReportsHandler) SetRates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rates      map[string]float64 `json:"rates"`
		Conversion ledger.Conversion  `json:"conversion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Rates) == 0 && len(req.Conversion) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "rates or conversion is required")
		return
	}
	for _, v := range req.Rates {
		if v <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Rates must be positive")
			return
		}
	}

	for _, perCurrency := range req.Conversion {
		for _, v := range perCurrency {
			if v <= 0 {
				middleware.WriteError(w, http.StatusBadRequest, "Rates must be positive")
				return
			}
		}
	}

	st, ok := h.loadState(w, r)
	if !ok {
		return
	}

	if len(req.Conversion) > 0 {
		st.Conversion = req.Conversion
		st.Rates = nil
	} else {
		rates := make(map[string]float64, len(req.Rates))
		for cur, v := range req.Rates {
			rates[strings.ToUpper(strings.TrimSpace(cur))] = v
		}
		st.Conversion = nil
		st.Rates = rates
	}
	conv := h.conversion(st)
	id := middleware.GetSessionID(r.Context())
	if err := h.store.Save(r.Context(), id, st); err != nil {
		h.log.Error().Err(err).Str("session_id", id).Msg("Failed to save rates")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save rates")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"conversion": conv,
		"applied":    conv.Covers(st.Ledger),
	})
}

// ClearRates handles DELETE /api/rates
func (h *ReportsHandler) ClearRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := middleware.GetSessionID(ctx)

	st, err := h.store.Load(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("session_id", id).Msg("Failed to load session")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}
	st.Conversion = nil
	st.Rates = nil
	if err := h.store.Save(ctx, id, st); err != nil {
		h.log.Error().Err(err).Str("session_id", id).Msg("Failed to clear rates")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to clear rates")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Glossary handles GET /api/glossary
func Glossary(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, ledger.Glossary)
}
