package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"p2pstats/internal/domain"
	"p2pstats/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

// Wire shape of POST /api/reports. Period bounds accept a date or a full
// RFC3339 timestamp; granularity and collections map straight to the domain
type createReportRequest struct {
	From        string              `json:"from"`
	To          string              `json:"to"`
	Granularity string              `json:"granularity"`
	Precision   int32               `json:"precision,omitempty"`
	Fiat        string              `json:"fiat,omitempty"`
	Asset       string              `json:"asset,omitempty"`
	Collections []domain.Collection `json:"collections"`
	PeriodStats []domain.PeriodStat `json:"period_stats,omitempty"`
}

func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var body createReportRequest

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body", err.Error())
		return
	}

	from, err := parsePeriodBound(body.From)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "bad_request", "invalid from", err.Error())
		return
	}
	to, err := parsePeriodBound(body.To)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "bad_request", "invalid to", err.Error())
		return
	}

	g, err := domain.ParseGranularity(body.Granularity)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "bad_request", "invalid granularity", err.Error())
		return
	}

	req := &domain.ReportRequest{
		Period: domain.Period{
			From:        from,
			To:          to,
			Granularity: g,
			Precision:   body.Precision,
		},
		Fiat:        body.Fiat,
		Asset:       body.Asset,
		Collections: normalizeCollections(body.Collections),
		PeriodStats: body.PeriodStats,
	}

	series, err := h.Reporter.BuildReport(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPeriod), errors.Is(err, domain.ErrUnknownGranularity):
			h.writeError(w, r, http.StatusBadRequest, "bad_request", "invalid period", err.Error())
		default:
			h.Log.Errorf("BuildReport failed: %v", err)
			h.writeError(w, r, http.StatusInternalServerError, "internal", "failed to build report", nil)
		}
		return
	}

	if err := httputil.JSON(w, http.StatusOK, series, nil); err != nil {
		h.Log.Errorf("CreateReport handler error: %s", err.Error())
	}
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, r, http.StatusBadRequest, "bad_request", "report id is required", nil)
		return
	}

	series, err := h.Reporter.GetReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrReportNotFound) {
			h.writeError(w, r, http.StatusNotFound, "not_found", "report not found", nil)
			return
		}
		h.Log.Errorf("GetReport failed: %v", err)
		h.writeError(w, r, http.StatusInternalServerError, "internal", "failed to fetch report", nil)
		return
	}

	if err := httputil.JSON(w, http.StatusOK, series, nil); err != nil {
		h.Log.Errorf("GetReport handler error: %s", err.Error())
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string, details any) {
	if err := httputil.Error(w, r, status, code, msg, details); err != nil {
		h.Log.Errorf("Failed to write error response: %v", err)
	}
}

func parsePeriodBound(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// normalizeCollections converts json.Number values back to plain types the
// classifier understands. UseNumber keeps big ids exact during decode
func normalizeCollections(cols []domain.Collection) []domain.Collection {
	for ci := range cols {
		for ri := range cols[ci].Rows {
			for k, v := range cols[ci].Rows[ri] {
				if n, ok := v.(json.Number); ok {
					cols[ci].Rows[ri][k] = n.String()
				}
			}
		}
	}
	return cols
}
